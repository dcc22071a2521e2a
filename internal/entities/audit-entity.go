package entities

import (
	"encoding/json"
	"time"
)

type ActorType string

const (
	ActorTypeUser    ActorType = "USER"
	ActorTypeManager ActorType = "MANAGER"
	ActorTypeAdmin   ActorType = "ADMIN"
	ActorTypeSystem  ActorType = "SYSTEM"
	ActorTypeDevice  ActorType = "DEVICE"
)

type AuditAction string

const (
	AuditActionLockerFreeze        AuditAction = "LOCKER_FREEZE"
	AuditActionLockerUnfreeze      AuditAction = "LOCKER_UNFREEZE"
	AuditActionLockerOpen          AuditAction = "LOCKER_OPEN"
	AuditActionLockerReleaseUnpaid AuditAction = "LOCKER_RELEASE_UNPAID"
	AuditActionPaymentCreate       AuditAction = "PAYMENT_CREATE"
	AuditActionPaymentSucceeded    AuditAction = "PAYMENT_SUCCEEDED"
	AuditActionRentalCreate        AuditAction = "RENTAL_CREATE"
	AuditActionRentalExtend        AuditAction = "RENTAL_EXTEND"
	AuditActionRentalSettle        AuditAction = "RENTAL_SETTLE"
	AuditActionRentalComplete      AuditAction = "RENTAL_COMPLETE"
	AuditActionOrderCancel         AuditAction = "ORDER_CANCEL"
	AuditActionDeviceConfirm       AuditAction = "DEVICE_CONFIRM"
)

// OpenSource - источник права на открытие ячейки: оплаченная аренда либо
// административное действие.
type OpenSource string

const (
	OpenSourcePaid  OpenSource = "PAID"
	OpenSourceAdmin OpenSource = "ADMIN"
)

type AuditLog struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	ActorType   ActorType       `json:"actorType"`
	ActorID     *string         `json:"actorId,omitempty"`
	Action      AuditAction     `json:"action"`
	LockerID    *string         `json:"lockerId,omitempty"`
	OrderID     *string         `json:"orderId,omitempty"`
	OrderItemID *string         `json:"orderItemId,omitempty"`
	PaymentID   *string         `json:"paymentId,omitempty"`
	UserID      *string         `json:"userId,omitempty"`
	Phone       *string         `json:"phone,omitempty"`
	IP          *string         `json:"ip,omitempty"`
	UserAgent   *string         `json:"userAgent,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}
