package entities

import "time"

type LockerStatus string

const (
	LockerStatusFree       LockerStatus = "FREE"
	LockerStatusHeld       LockerStatus = "HELD"
	LockerStatusOccupied   LockerStatus = "OCCUPIED"
	LockerStatusFrozen     LockerStatus = "FROZEN"
	LockerStatusOutOfOrder LockerStatus = "OUT_OF_ORDER"
)

type Locker struct {
	ID           string       `json:"id"`
	Number       int          `json:"number"`
	Status       LockerStatus `json:"status"`
	DeviceID     *string      `json:"deviceId,omitempty"`
	FreezeUntil  *time.Time   `json:"freezeUntil,omitempty"`
	FreezeReason *string      `json:"freezeReason,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
