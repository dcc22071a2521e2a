package services

import (
	"context"
	"testing"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDeviceToken = "device-secret"

func newDeviceServiceForTest(cmdRepo *fakeDeviceCmdRepo, token string) DeviceServiceInterface {
	cfg := &config.Config{Device: config.DeviceConfig{Token: token}}
	return NewDeviceService(cmdRepo, &fakeAuditService{}, cfg, zap.NewNop())
}

func TestDevicePoll_WrongToken(t *testing.T) {
	svc := newDeviceServiceForTest(newFakeDeviceCmdRepo(), testDeviceToken)

	_, err := svc.Poll(context.Background(), "kiosk-1", "wrong-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestDevicePoll_EmptyConfiguredToken(t *testing.T) {
	// Пустой токен в конфигурации не должен означать "пускать всех".
	svc := newDeviceServiceForTest(newFakeDeviceCmdRepo(), "")

	_, err := svc.Poll(context.Background(), "kiosk-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestDevicePoll_ReturnsPendingNumbers(t *testing.T) {
	expiresAt := time.Now().Add(30 * time.Second)
	cmdRepo := newFakeDeviceCmdRepo()
	cmdRepo.pending = []entities.DeviceCommand{
		{ID: "cmd-1", DeviceID: "kiosk-1", LockerNumber: 3, Status: entities.DeviceCommandStatusPending, ExpiresAt: expiresAt},
		{ID: "cmd-2", DeviceID: "kiosk-1", LockerNumber: 7, Status: entities.DeviceCommandStatusPending, ExpiresAt: expiresAt},
	}
	svc := newDeviceServiceForTest(cmdRepo, testDeviceToken)

	commands, err := svc.Poll(context.Background(), "kiosk-1", testDeviceToken)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, commands.Open)
}

// Неподтверждённая команда живёт ограниченное время: после очистки контроллер
// её больше не увидит.
func TestDeviceCommands_ExpiredCommandLeavesQueue(t *testing.T) {
	cmdRepo := newFakeDeviceCmdRepo()
	cmdRepo.pending = []entities.DeviceCommand{
		{
			ID:           "cmd-1",
			DeviceID:     "kiosk-1",
			LockerNumber: 3,
			Status:       entities.DeviceCommandStatusPending,
			ExpiresAt:    time.Now().Add(30 * time.Second),
		},
	}
	svc := newDeviceServiceForTest(cmdRepo, testDeviceToken)

	commands, err := svc.Poll(context.Background(), "kiosk-1", testDeviceToken)
	require.NoError(t, err)
	require.Equal(t, []int{3}, commands.Open)

	// Устройство не подтвердило открытие, срок команды вышел.
	cmdRepo.pending[0].ExpiresAt = time.Now().Add(-time.Second)

	count, err := svc.CleanupExpiredCommands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	commands, err = svc.Poll(context.Background(), "kiosk-1", testDeviceToken)
	require.NoError(t, err)
	assert.Empty(t, commands.Open)
}

func TestDeviceConfirm_NoPendingCommand(t *testing.T) {
	svc := newDeviceServiceForTest(newFakeDeviceCmdRepo(), testDeviceToken)

	err := svc.Confirm(context.Background(), "kiosk-1", testDeviceToken, dto.ConfirmCommandDTO{LockerNumber: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeviceConfirm_ClosesOldestPending(t *testing.T) {
	confirmedAt := time.Now()
	cmdRepo := newFakeDeviceCmdRepo()
	cmdRepo.confirmed = &entities.DeviceCommand{
		ID:           "cmd-1",
		DeviceID:     "kiosk-1",
		LockerNumber: 3,
		Status:       entities.DeviceCommandStatusConfirmed,
		ConfirmedAt:  &confirmedAt,
	}
	svc := newDeviceServiceForTest(cmdRepo, testDeviceToken)

	err := svc.Confirm(context.Background(), "kiosk-1", testDeviceToken, dto.ConfirmCommandDTO{LockerNumber: 3})
	assert.NoError(t, err)
}
