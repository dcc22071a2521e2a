package routes

import (
	"lockbox/internal/controllers"

	"github.com/labstack/echo/v4"
)

// Контроллеры киосков не умеют куки и JWT: их аутентифицирует общий токен в
// заголовке, который проверяет сам сервис.
func runDeviceRouter(api *echo.Group, deviceCtrl *controllers.DeviceController) {
	deviceGroup := api.Group("/device")
	{
		deviceGroup.GET("/poll", deviceCtrl.Poll)
		deviceGroup.POST("/confirm", deviceCtrl.Confirm)
	}
}
