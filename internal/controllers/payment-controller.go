package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"lockbox/internal/dto"
	"lockbox/internal/services"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const webhookSignatureHeader = "X-Webhook-Signature"

type PaymentController struct {
	paymentService services.PaymentServiceInterface
	logger         *zap.Logger
}

func NewPaymentController(paymentService services.PaymentServiceInterface, logger *zap.Logger) *PaymentController {
	return &PaymentController{paymentService: paymentService, logger: logger}
}

// Webhook принимает уведомления провайдера. Сырое тело сохраняется целиком:
// провайдер присылает больше полей, чем мы разбираем.
func (ctrl *PaymentController) Webhook(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Не удалось прочитать тело запроса"), ctrl.logger)
	}

	var payload dto.WebhookDTO
	if err := json.Unmarshal(raw, &payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат уведомления"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	payload.Object.Raw = raw

	signature := c.Request().Header.Get(webhookSignatureHeader)
	if err := ctrl.paymentService.HandleWebhook(c.Request().Context(), signature, payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "", http.StatusOK)
}
