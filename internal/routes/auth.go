package routes

import (
	"lockbox/internal/controllers"
	"lockbox/pkg/middleware"

	"github.com/labstack/echo/v4"
)

func runAuthRouter(api *echo.Group, secureGroup *echo.Group, authCtrl *controllers.AuthController, rateLimitMW *middleware.RateLimitMiddleware) {
	authGroup := api.Group("/auth", rateLimitMW.Limit)
	{
		authGroup.POST("/login", authCtrl.Login)
		authGroup.POST("/otp/start", authCtrl.StartOtp)
		authGroup.POST("/otp/verify", authCtrl.VerifyOtp)
		authGroup.POST("/refresh", authCtrl.Refresh)
		authGroup.POST("/logout", authCtrl.Logout)
	}
	secureGroup.GET("/auth/session", authCtrl.Session)
}
