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

type LockerController struct {
	lockerService services.LockerServiceInterface
	logger        *zap.Logger
}

func NewLockerController(lockerService services.LockerServiceInterface, logger *zap.Logger) *LockerController {
	return &LockerController{lockerService: lockerService, logger: logger}
}

// GetLockers - витрина доступности. Перед чтением снимаются истёкшие брони,
// чтобы зависшая бронь не показывала ячейку занятой.
func (ctrl *LockerController) GetLockers(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := ctrl.lockerService.ReleaseExpiredHolds(ctx); err != nil {
		ctrl.logger.Warn("снятие истёкших броней перед чтением не прошло", zap.Error(err))
	}

	var filter dto.GetLockersQueryDTO
	if err := c.Bind(&filter); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверные параметры фильтра"), ctrl.logger)
	}

	lockers, err := ctrl.lockerService.GetLockers(ctx, filter)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, lockers, "", http.StatusOK)
}

func (ctrl *LockerController) GetManagerLockers(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := ctrl.lockerService.ReleaseExpiredHolds(ctx); err != nil {
		ctrl.logger.Warn("снятие истёкших броней перед чтением не прошло", zap.Error(err))
	}
	if _, err := ctrl.lockerService.RefreshExpiredRentals(ctx); err != nil {
		ctrl.logger.Warn("обновление истёкших аренд перед чтением не прошло", zap.Error(err))
	}

	var filter dto.GetLockersQueryDTO
	if err := c.Bind(&filter); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверные параметры фильтра"), ctrl.logger)
	}

	lockers, err := ctrl.lockerService.GetManagerLockers(ctx, filter)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, lockers, "", http.StatusOK)
}

func (ctrl *LockerController) CreateLocker(c echo.Context) error {
	var payload dto.CreateLockerDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	locker, err := ctrl.lockerService.CreateLocker(c.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, locker, "Ячейка создана", http.StatusCreated)
}

func (ctrl *LockerController) UpdateLocker(c echo.Context) error {
	var payload dto.UpdateLockerDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	locker, err := ctrl.lockerService.UpdateLocker(c.Request().Context(), c.Param("id"), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, locker, "Ячейка обновлена", http.StatusOK)
}

func (ctrl *LockerController) DeleteLocker(c echo.Context) error {
	if err := ctrl.lockerService.DeleteLocker(c.Request().Context(), c.Param("id")); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Ячейка удалена", http.StatusOK)
}

func (ctrl *LockerController) Freeze(c echo.Context) error {
	var payload dto.FreezeLockerDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	ctx := c.Request().Context()
	locker, err := ctrl.lockerService.Freeze(ctx, actorFromCtx(ctx), c.Param("id"), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, locker, "Ячейка заморожена", http.StatusOK)
}

func (ctrl *LockerController) Unfreeze(c echo.Context) error {
	ctx := c.Request().Context()
	locker, err := ctrl.lockerService.Unfreeze(ctx, actorFromCtx(ctx), c.Param("id"))
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, locker, "Ячейка разморожена", http.StatusOK)
}

func (ctrl *LockerController) Open(c echo.Context) error {
	ctx := c.Request().Context()
	if err := ctrl.lockerService.AdminOpen(ctx, actorFromCtx(ctx), c.Param("id")); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Команда на открытие поставлена", http.StatusOK)
}

func (ctrl *LockerController) ReleaseUnpaid(c echo.Context) error {
	ctx := c.Request().Context()
	if err := ctrl.lockerService.ReleaseUnpaid(ctx, actorFromCtx(ctx), c.Param("id")); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Ячейка освобождена", http.StatusOK)
}
