package routes

import (
	"lockbox/internal/controllers"

	"github.com/labstack/echo/v4"
)

func runRentalRouter(secureGroup *echo.Group, rentalCtrl *controllers.RentalController) {
	meGroup := secureGroup.Group("/me")
	{
		meGroup.GET("/rentals", rentalCtrl.GetMyRentals)
		meGroup.GET("/rentals/:id", rentalCtrl.GetMyRental)
		meGroup.POST("/rentals/:id/open", rentalCtrl.Open)
	}

	itemGroup := secureGroup.Group("/order-items")
	{
		itemGroup.POST("/:id/extend", rentalCtrl.Extend)
		itemGroup.POST("/:id/settle", rentalCtrl.Settle)
		itemGroup.POST("/:id/complete", rentalCtrl.Complete)
	}
}
