package driver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type MockLockerDriver struct {
	logger *zap.Logger
}

func NewMockLockerDriver(logger *zap.Logger) LockerDriver {
	return &MockLockerDriver{logger: logger}
}

func (d *MockLockerDriver) Open(ctx context.Context, lockerID string) error {
	d.logger.Info("Mock: открытие ячейки", zap.String("lockerId", lockerID))
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (d *MockLockerDriver) Status(ctx context.Context, lockerID string) (DriverStatus, error) {
	return StatusUnknown, nil
}
