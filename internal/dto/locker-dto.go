package dto

import (
	"time"

	"lockbox/internal/entities"
)

type GetLockersQueryDTO struct {
	Status []entities.LockerStatus `query:"status"`
	Search string                  `query:"search"`
}

type FreezeLockerDTO struct {
	Until  *time.Time `json:"until"`
	Reason string     `json:"reason" validate:"omitempty,max=500"`
}

type CreateLockerDTO struct {
	Number   int     `json:"number" validate:"required,min=1"`
	DeviceID *string `json:"deviceId"`
}

type UpdateLockerDTO struct {
	Status   *entities.LockerStatus `json:"status" validate:"omitempty,oneof=FREE HELD OCCUPIED FROZEN OUT_OF_ORDER"`
	DeviceID *string                `json:"deviceId"`
}

// ManagerLockerDTO - ячейка с текущей арендой для панели менеджера.
type ManagerLockerDTO struct {
	entities.Locker
	CurrentRental *entities.OrderItem `json:"currentRental"`
}
