package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"lockbox/internal/dto"
	"lockbox/internal/services"
	apperrors "lockbox/pkg/errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const deviceTokenHeader = "X-Device-Token"

type DeviceController struct {
	deviceService services.DeviceServiceInterface
	logger        *zap.Logger
}

func NewDeviceController(deviceService services.DeviceServiceInterface, logger *zap.Logger) *DeviceController {
	return &DeviceController{deviceService: deviceService, logger: logger}
}

// Токен передаётся параметром запроса - так ходит прошивка киоска. Заголовок
// оставлен как запасной вариант для отладки с curl.
func deviceToken(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	return c.Request().Header.Get(deviceTokenHeader)
}

// Прошивка разбирает ответ построчно и JSON-конверт не понимает, поэтому
// ошибки на маршрутах устройства уходят плоским текстом.
func (ctrl *DeviceController) deviceError(c echo.Context, err error) error {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		return c.String(httpErr.Code, httpErr.Message)
	}
	ctrl.logger.Error("ошибка на маршруте устройства", zap.Error(err))
	return c.String(http.StatusInternalServerError, "Внутренняя ошибка сервера")
}

// Poll опрашивается контроллером киоска раз в несколько секунд. Ответ нарочно
// упрощён под прошивку: "OK" без команд, "OPEN <номер>" для одной команды,
// JSON-список только когда команд несколько.
func (ctrl *DeviceController) Poll(c echo.Context) error {
	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		return ctrl.deviceError(c, apperrors.NewInvalidRequestError("Не указан device_id"))
	}

	commands, err := ctrl.deviceService.Poll(c.Request().Context(), deviceID, deviceToken(c))
	if err != nil {
		return ctrl.deviceError(c, err)
	}

	switch len(commands.Open) {
	case 0:
		return c.String(http.StatusOK, "OK")
	case 1:
		return c.String(http.StatusOK, fmt.Sprintf("OPEN %d", commands.Open[0]))
	default:
		return c.JSON(http.StatusOK, commands)
	}
}

func (ctrl *DeviceController) Confirm(c echo.Context) error {
	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		return ctrl.deviceError(c, apperrors.NewInvalidRequestError("Не указан device_id"))
	}

	var payload dto.ConfirmCommandDTO
	if err := c.Bind(&payload); err != nil {
		return ctrl.deviceError(c, apperrors.NewInvalidRequestError("Неверный формат запроса"))
	}
	if err := c.Validate(&payload); err != nil {
		return ctrl.deviceError(c, apperrors.NewInvalidRequestError("Неверный номер ячейки"))
	}

	if err := ctrl.deviceService.Confirm(c.Request().Context(), deviceID, deviceToken(c), payload); err != nil {
		return ctrl.deviceError(c, err)
	}
	return c.String(http.StatusOK, "OK")
}
