package routes

import (
	"lockbox/internal/controllers"
	"lockbox/pkg/middleware"

	"github.com/labstack/echo/v4"
)

func runOrderRouter(api *echo.Group, secureGroup *echo.Group, orderCtrl *controllers.OrderController, paymentCtrl *controllers.PaymentController, rateLimitMW *middleware.RateLimitMiddleware) {
	{
		secureGroup.GET("/orders/:id", orderCtrl.GetOrder)
		secureGroup.POST("/orders/payment", orderCtrl.CreatePayment)
		secureGroup.POST("/orders/:id/cancel", orderCtrl.CancelOrder)
		secureGroup.POST("/payments/confirm-mock", orderCtrl.ConfirmMockPayment)
	}

	// Вебхук провайдера не проходит авторизацию: подлинность проверяется
	// подписью внутри сервиса. Лимитер прикрывает открытый эндпоинт от
	// перебора вслепую.
	api.POST("/payments/webhook", paymentCtrl.Webhook, rateLimitMW.Limit)
}
