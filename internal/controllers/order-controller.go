package controllers

import (
	"net/http"

	"lockbox/internal/dto"
	"lockbox/internal/services"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type OrderController struct {
	orderService   services.OrderServiceInterface
	paymentService services.PaymentServiceInterface
	logger         *zap.Logger
}

func NewOrderController(orderService services.OrderServiceInterface, paymentService services.PaymentServiceInterface, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: orderService, paymentService: paymentService, logger: logger}
}

func (ctrl *OrderController) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	order, err := ctrl.orderService.GetUserOrder(ctx, userID, c.Param("id"))
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, order, "", http.StatusOK)
}

// CreatePayment готовит корзину к оплате и создаёт платёж у провайдера.
func (ctrl *OrderController) CreatePayment(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	result, err := ctrl.paymentService.CreatePaymentForOrder(ctx, actorFromCtx(ctx), userID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, result, "Платёж создан", http.StatusCreated)
}

func (ctrl *OrderController) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.orderService.CancelOrder(ctx, actorFromCtx(ctx), userID, c.Param("id")); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Заказ отменён", http.StatusOK)
}

// ConfirmMockPayment - самоподтверждение платежа в мок-режиме.
func (ctrl *OrderController) ConfirmMockPayment(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	var payload dto.ConfirmMockPaymentDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.paymentService.ConfirmMockPayment(ctx, actorFromCtx(ctx), userID, payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Платёж подтверждён", http.StatusOK)
}
