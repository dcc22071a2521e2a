package scheduler

import (
	"context"
	"time"

	"lockbox/internal/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler гоняет фоновые зачистки раз в минуту. Ошибка одной зачистки не
// мешает остальным и не роняет планировщик: следующая попытка через минуту.
type Scheduler struct {
	scheduler     gocron.Scheduler
	lockerService services.LockerServiceInterface
	deviceService services.DeviceServiceInterface
	logger        *zap.Logger
}

func New(
	lockerService services.LockerServiceInterface,
	deviceService services.DeviceServiceInterface,
	logger *zap.Logger,
) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		scheduler:     s,
		lockerService: lockerService,
		deviceService: deviceService,
		logger:        logger,
	}, nil
}

func (s *Scheduler) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(s.runSweeps),
		gocron.WithName("lockbox-sweeps"),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	s.logger.Info("планировщик фоновых зачисток запущен")
	return nil
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) runSweeps() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.lockerService.ReleaseExpiredHolds(ctx); err != nil {
		s.logger.Error("зачистка истёкших броней не прошла", zap.Error(err))
	}
	if _, err := s.lockerService.RefreshExpiredRentals(ctx); err != nil {
		s.logger.Error("обновление истёкших аренд не прошло", zap.Error(err))
	}
	if _, err := s.lockerService.ReleaseExpiredFreezes(ctx); err != nil {
		s.logger.Error("разморозка ячеек по сроку не прошла", zap.Error(err))
	}
	if _, err := s.deviceService.CleanupExpiredCommands(ctx); err != nil {
		s.logger.Error("зачистка просроченных команд не прошла", zap.Error(err))
	}
}
