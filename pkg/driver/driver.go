package driver

import "context"

type DriverStatus string

const (
	StatusOpen    DriverStatus = "OPEN"
	StatusClosed  DriverStatus = "CLOSED"
	StatusUnknown DriverStatus = "UNKNOWN"
)

// LockerDriver - абстракция аппаратного привода замка. Вызов Open может быть
// fire-and-forget: единственным долговечным свидетельством авторизованного
// открытия остаётся запись в журнале аудита.
type LockerDriver interface {
	Open(ctx context.Context, lockerID string) error
	Status(ctx context.Context, lockerID string) (DriverStatus, error)
}
