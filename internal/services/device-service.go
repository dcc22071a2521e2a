package services

import (
	"context"
	"crypto/subtle"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"go.uber.org/zap"
)

type DeviceServiceInterface interface {
	// Poll отдаёт контроллеру его очередь команд на открытие.
	Poll(ctx context.Context, deviceID, token string) (*dto.OpenCommandsDTO, error)
	Confirm(ctx context.Context, deviceID, token string, payload dto.ConfirmCommandDTO) error
	CleanupExpiredCommands(ctx context.Context) (int64, error)
}

type DeviceService struct {
	deviceCmdRepo repositories.DeviceCommandRepositoryInterface
	auditService  AuditServiceInterface
	cfg           *config.Config
	logger        *zap.Logger
}

func NewDeviceService(
	deviceCmdRepo repositories.DeviceCommandRepositoryInterface,
	auditService AuditServiceInterface,
	cfg *config.Config,
	logger *zap.Logger,
) DeviceServiceInterface {
	return &DeviceService{
		deviceCmdRepo: deviceCmdRepo,
		auditService:  auditService,
		cfg:           cfg,
		logger:        logger,
	}
}

// checkToken сравнивает общий токен устройства за постоянное время, чтобы по
// времени ответа нельзя было подобрать токен посимвольно.
func (s *DeviceService) checkToken(token string) error {
	if s.cfg.Device.Token == "" {
		return apperrors.NewUnauthorizedError("Токен устройства не настроен")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Device.Token)) != 1 {
		return apperrors.NewUnauthorizedError("Неверный токен устройства")
	}
	return nil
}

func (s *DeviceService) Poll(ctx context.Context, deviceID, token string) (*dto.OpenCommandsDTO, error) {
	if err := s.checkToken(token); err != nil {
		return nil, err
	}
	commands, err := s.deviceCmdRepo.FindPendingByDevice(ctx, deviceID, time.Now())
	if err != nil {
		return nil, err
	}
	open := make([]int, 0, len(commands))
	for i := range commands {
		open = append(open, commands[i].LockerNumber)
	}
	return &dto.OpenCommandsDTO{Open: open}, nil
}

// Confirm закрывает ожидающую команду по номеру ячейки. Подтверждение без
// подходящей команды отклоняется: это либо повтор, либо подделка.
func (s *DeviceService) Confirm(ctx context.Context, deviceID, token string, payload dto.ConfirmCommandDTO) error {
	if err := s.checkToken(token); err != nil {
		return err
	}
	cmd, err := s.deviceCmdRepo.ConfirmPending(ctx, deviceID, payload.LockerNumber, time.Now())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFoundError("Нет ожидающей команды для этой ячейки")
		}
		return err
	}

	s.auditService.Log(ctx, dto.CreateAuditLogDTO{
		ActorType: entities.ActorTypeDevice,
		ActorID:   &deviceID,
		Action:    entities.AuditActionDeviceConfirm,
		Metadata: map[string]interface{}{
			"commandId":    cmd.ID,
			"lockerNumber": cmd.LockerNumber,
		},
	})
	return nil
}

func (s *DeviceService) CleanupExpiredCommands(ctx context.Context) (int64, error) {
	count, err := s.deviceCmdRepo.ExpireStale(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("просроченные команды контроллеров сняты с очереди", zap.Int64("count", count))
	}
	return count, nil
}
