package routes

import (
	"lockbox/internal/controllers"
	"lockbox/internal/entities"
	"lockbox/pkg/middleware"

	"github.com/labstack/echo/v4"
)

func runAuditRouter(secureGroup *echo.Group, auditCtrl *controllers.AuditController, authMW *middleware.AuthMiddleware) {
	auditGroup := secureGroup.Group("/audit", authMW.RequireRoles(entities.RoleManager, entities.RoleAdmin))
	{
		auditGroup.GET("", auditCtrl.GetLogs)
		auditGroup.GET("/export", auditCtrl.ExportCsv)
	}
}
