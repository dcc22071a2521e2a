package routes

import (
	"lockbox/internal/controllers"
	"lockbox/internal/entities"
	"lockbox/pkg/middleware"

	"github.com/labstack/echo/v4"
)

func runAdminRouter(
	secureGroup *echo.Group,
	lockerCtrl *controllers.LockerController,
	tariffCtrl *controllers.TariffController,
	auditCtrl *controllers.AuditController,
	authMW *middleware.AuthMiddleware,
) {
	adminGroup := secureGroup.Group("/admin", authMW.RequireRoles(entities.RoleAdmin))
	{
		adminGroup.POST("/lockers", lockerCtrl.CreateLocker)
		adminGroup.PATCH("/lockers/:id", lockerCtrl.UpdateLocker)
		adminGroup.DELETE("/lockers/:id", lockerCtrl.DeleteLocker)

		adminGroup.POST("/tariffs", tariffCtrl.CreateTariff)
		adminGroup.PATCH("/tariffs/:id", tariffCtrl.UpdateTariff)

		adminGroup.GET("/settings", tariffCtrl.GetSettings)
		adminGroup.PUT("/settings", tariffCtrl.UpdateSetting)
		adminGroup.PUT("/settings/grace-period", tariffCtrl.SetGracePeriod)

		adminGroup.GET("/reports/usage", auditCtrl.UsageReport)
	}
}
