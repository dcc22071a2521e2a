package entities

import "time"

type DeviceCommandStatus string

const (
	DeviceCommandStatusPending   DeviceCommandStatus = "PENDING"
	DeviceCommandStatusConfirmed DeviceCommandStatus = "CONFIRMED"
	DeviceCommandStatusExpired   DeviceCommandStatus = "EXPIRED"
)

type DeviceCommandType string

const DeviceCommandOpen DeviceCommandType = "OPEN"

// DeviceCommand - команда для встраиваемого контроллера. Доставка best-effort:
// устройство само опрашивает сервер и подтверждает исполнение.
type DeviceCommand struct {
	ID           string              `json:"id"`
	DeviceID     string              `json:"deviceId"`
	LockerNumber int                 `json:"lockerNumber"`
	Command      DeviceCommandType   `json:"command"`
	Status       DeviceCommandStatus `json:"status"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	CreatedAt    time.Time           `json:"createdAt"`
	ConfirmedAt  *time.Time          `json:"confirmedAt,omitempty"`
}
