package dto

import (
	"time"

	"lockbox/internal/entities"
)

type AuditQueryDTO struct {
	From           *time.Time
	To             *time.Time
	LockerID       string
	UserPhone      string
	ManagerID      string
	Action         entities.AuditAction
	OnlyPaidOpens  bool
	OnlyAdminOpens bool
}

type CreateAuditLogDTO struct {
	ActorType   entities.ActorType
	ActorID     *string
	Action      entities.AuditAction
	LockerID    *string
	OrderID     *string
	OrderItemID *string
	PaymentID   *string
	UserID      *string
	Phone       *string
	IP          *string
	UserAgent   *string
	Metadata    map[string]interface{}
}
