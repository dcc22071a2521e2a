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

type CartController struct {
	cartService   services.CartServiceInterface
	lockerService services.LockerServiceInterface
	logger        *zap.Logger
}

func NewCartController(cartService services.CartServiceInterface, lockerService services.LockerServiceInterface, logger *zap.Logger) *CartController {
	return &CartController{cartService: cartService, lockerService: lockerService, logger: logger}
}

func (ctrl *CartController) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	cart, err := ctrl.cartService.GetCart(ctx, userID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, cart, "", http.StatusOK)
}

func (ctrl *CartController) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	var payload dto.AddToCartDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	// Сначала зачистка истёкших броней: чужая зависшая бронь не должна
	// блокировать добавление.
	if _, err := ctrl.lockerService.ReleaseExpiredHolds(ctx); err != nil {
		ctrl.logger.Warn("снятие истёкших броней перед добавлением не прошло", zap.Error(err))
	}

	cart, err := ctrl.cartService.AddToCart(ctx, userID, payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, cart, "Ячейка добавлена в корзину", http.StatusCreated)
}

func (ctrl *CartController) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	payload := dto.RemoveFromCartDTO{LockerID: c.Param("lockerId")}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	cart, err := ctrl.cartService.RemoveFromCart(ctx, userID, payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, cart, "Ячейка убрана из корзины", http.StatusOK)
}
