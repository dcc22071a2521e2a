package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lockbox/internal/dto"
	"lockbox/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeviceService struct {
	open      []int
	confirmed []int
	lastToken string
}

func (f *fakeDeviceService) Poll(_ context.Context, _, token string) (*dto.OpenCommandsDTO, error) {
	f.lastToken = token
	return &dto.OpenCommandsDTO{Open: f.open}, nil
}

func (f *fakeDeviceService) Confirm(_ context.Context, _, _ string, payload dto.ConfirmCommandDTO) error {
	f.confirmed = append(f.confirmed, payload.LockerNumber)
	return nil
}

func (f *fakeDeviceService) CleanupExpiredCommands(context.Context) (int64, error) { return 0, nil }

func newDeviceTestContext(t *testing.T, method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = utils.NewValidator(validator.New())
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// Прошивка киоска разбирает ответ построчно, поэтому формат для нуля и одной
// команды - простой текст, и только для нескольких - JSON.
func TestDevicePoll_NoCommands(t *testing.T) {
	ctrl := NewDeviceController(&fakeDeviceService{}, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodGet, "/api/device/poll?device_id=kiosk-1", "")

	require.NoError(t, ctrl.Poll(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDevicePoll_SingleCommand(t *testing.T) {
	ctrl := NewDeviceController(&fakeDeviceService{open: []int{3}}, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodGet, "/api/device/poll?device_id=kiosk-1", "")

	require.NoError(t, ctrl.Poll(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OPEN 3", rec.Body.String())
}

func TestDevicePoll_ManyCommands(t *testing.T) {
	ctrl := NewDeviceController(&fakeDeviceService{open: []int{3, 7}}, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodGet, "/api/device/poll?device_id=kiosk-1", "")

	require.NoError(t, ctrl.Poll(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"open":[3,7]}`, rec.Body.String())
}

func TestDevicePoll_MissingDeviceID(t *testing.T) {
	ctrl := NewDeviceController(&fakeDeviceService{}, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodGet, "/api/device/poll", "")

	require.NoError(t, ctrl.Poll(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevicePoll_TokenFromQueryParam(t *testing.T) {
	// Прошивка передаёт токен параметром запроса: GET poll?device_id&token.
	svc := &fakeDeviceService{}
	ctrl := NewDeviceController(svc, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodGet, "/api/device/poll?device_id=kiosk-1&token=device-secret", "")

	require.NoError(t, ctrl.Poll(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "device-secret", svc.lastToken)
}

func TestDevicePoll_TokenHeaderFallback(t *testing.T) {
	svc := &fakeDeviceService{}
	ctrl := NewDeviceController(svc, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodGet, "/api/device/poll?device_id=kiosk-1", "")
	c.Request().Header.Set("X-Device-Token", "header-secret")

	require.NoError(t, ctrl.Poll(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "header-secret", svc.lastToken)
}

func TestDeviceConfirm_PassesLockerNumber(t *testing.T) {
	svc := &fakeDeviceService{}
	ctrl := NewDeviceController(svc, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodPost, "/api/device/confirm?device_id=kiosk-1&token=device-secret", `{"locker_number":5}`)

	require.NoError(t, ctrl.Confirm(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, []int{5}, svc.confirmed)
}

func TestDeviceConfirm_InvalidNumber(t *testing.T) {
	svc := &fakeDeviceService{}
	ctrl := NewDeviceController(svc, zap.NewNop())
	c, rec := newDeviceTestContext(t, http.MethodPost, "/api/device/confirm?device_id=kiosk-1", `{"locker_number":0}`)

	require.NoError(t, ctrl.Confirm(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Неверный номер ячейки", rec.Body.String())
	assert.Empty(t, svc.confirmed)
}
