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

type RentalController struct {
	rentalService  services.RentalServiceInterface
	lockerService  services.LockerServiceInterface
	paymentService services.PaymentServiceInterface
	logger         *zap.Logger
}

func NewRentalController(
	rentalService services.RentalServiceInterface,
	lockerService services.LockerServiceInterface,
	paymentService services.PaymentServiceInterface,
	logger *zap.Logger,
) *RentalController {
	return &RentalController{
		rentalService:  rentalService,
		lockerService:  lockerService,
		paymentService: paymentService,
		logger:         logger,
	}
}

// GetMyRentals отдаёт аренды пользователя. Перед чтением истёкшие аренды
// переводятся в актуальный статус, чтобы долг в ответе не отставал.
func (ctrl *RentalController) GetMyRentals(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if _, err := ctrl.lockerService.RefreshExpiredRentals(ctx); err != nil {
		ctrl.logger.Warn("обновление истёкших аренд перед чтением не прошло", zap.Error(err))
	}

	rentals, err := ctrl.rentalService.GetUserRentals(ctx, userID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, rentals, "", http.StatusOK)
}

func (ctrl *RentalController) GetMyRental(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	rental, err := ctrl.rentalService.GetUserRental(ctx, userID, c.Param("id"))
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, rental, "", http.StatusOK)
}

func (ctrl *RentalController) Extend(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	var payload dto.ExtendRentalDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	result, err := ctrl.paymentService.CreateExtensionPayment(ctx, actorFromCtx(ctx), userID, c.Param("id"), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, result, "Платёж за продление создан", http.StatusCreated)
}

func (ctrl *RentalController) Settle(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	result, err := ctrl.paymentService.CreateSettlementPayment(ctx, actorFromCtx(ctx), userID, c.Param("id"))
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, result, "Платёж за погашение создан", http.StatusCreated)
}

func (ctrl *RentalController) Complete(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.rentalService.CompleteRental(ctx, actorFromCtx(ctx), userID, c.Param("id")); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Аренда завершена", http.StatusOK)
}

// Open ставит команду на открытие ячейки арендатору.
func (ctrl *RentalController) Open(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.lockerService.OpenForRental(ctx, actorFromCtx(ctx), userID, c.Param("id")); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Команда на открытие поставлена", http.StatusOK)
}
