package routes

import (
	"lockbox/internal/controllers"

	"github.com/labstack/echo/v4"
)

func runCartRouter(secureGroup *echo.Group, cartCtrl *controllers.CartController) {
	cartGroup := secureGroup.Group("/cart")
	{
		cartGroup.GET("", cartCtrl.GetCart)
		cartGroup.POST("/items", cartCtrl.AddToCart)
		cartGroup.DELETE("/items/:lockerId", cartCtrl.RemoveFromCart)
	}
}
