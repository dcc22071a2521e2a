package routes

import (
	"lockbox/internal/controllers"
	"lockbox/internal/entities"
	"lockbox/pkg/middleware"

	"github.com/labstack/echo/v4"
)

func runLockerRouter(api *echo.Group, secureGroup *echo.Group, lockerCtrl *controllers.LockerController, tariffCtrl *controllers.TariffController, authMW *middleware.AuthMiddleware) {
	// Витрина свободных ячеек и тарифы доступны без входа: киоск показывает
	// их до авторизации.
	api.GET("/lockers", lockerCtrl.GetLockers)
	api.GET("/tariffs", tariffCtrl.GetTariffs)

	managerGroup := secureGroup.Group("/manager", authMW.RequireRoles(entities.RoleManager, entities.RoleAdmin))
	{
		managerGroup.GET("/lockers", lockerCtrl.GetManagerLockers)
		managerGroup.POST("/lockers/:id/freeze", lockerCtrl.Freeze)
		managerGroup.POST("/lockers/:id/unfreeze", lockerCtrl.Unfreeze)
		managerGroup.POST("/lockers/:id/open", lockerCtrl.Open)
		managerGroup.POST("/lockers/:id/release-unpaid", lockerCtrl.ReleaseUnpaid)
	}
}
