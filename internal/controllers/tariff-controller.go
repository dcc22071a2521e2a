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

type TariffController struct {
	tariffService   services.TariffServiceInterface
	settingsService services.SettingsServiceInterface
	logger          *zap.Logger
}

func NewTariffController(
	tariffService services.TariffServiceInterface,
	settingsService services.SettingsServiceInterface,
	logger *zap.Logger,
) *TariffController {
	return &TariffController{tariffService: tariffService, settingsService: settingsService, logger: logger}
}

// GetTariffs - публичный список тарифов. Клиентам отдаются только активные,
// админ через ?all=true видит и отключённые.
func (ctrl *TariffController) GetTariffs(c echo.Context) error {
	onlyActive := c.QueryParam("all") != "true"
	tariffs, err := ctrl.tariffService.GetTariffs(c.Request().Context(), onlyActive)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, tariffs, "", http.StatusOK)
}

func (ctrl *TariffController) CreateTariff(c echo.Context) error {
	var payload dto.CreateTariffDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	tariff, err := ctrl.tariffService.Create(c.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, tariff, "Тариф создан", http.StatusCreated)
}

func (ctrl *TariffController) UpdateTariff(c echo.Context) error {
	var payload dto.UpdateTariffDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	tariff, err := ctrl.tariffService.Update(c.Request().Context(), c.Param("id"), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, tariff, "Тариф обновлён", http.StatusOK)
}

func (ctrl *TariffController) GetSettings(c echo.Context) error {
	settings, err := ctrl.settingsService.GetAll(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, settings, "", http.StatusOK)
}

func (ctrl *TariffController) UpdateSetting(c echo.Context) error {
	var payload dto.UpdateSettingDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	setting, err := ctrl.settingsService.Update(c.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, setting, "Настройка сохранена", http.StatusOK)
}

func (ctrl *TariffController) SetGracePeriod(c echo.Context) error {
	var payload dto.GracePeriodDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	setting, err := ctrl.settingsService.SetGracePeriod(c.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, setting, "Льготный период сохранён", http.StatusOK)
}
