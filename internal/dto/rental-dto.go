package dto

import (
	"time"

	"lockbox/internal/entities"
)

// RentalViewDTO - аренда глазами пользователя: позиция заказа плюс расчёт
// задолженности, если аренда вышла за оплаченное время.
type RentalViewDTO struct {
	entities.OrderItem
	OverdueMeta *OverdueMetaDTO `json:"overdueMeta,omitempty"`
}

type ExtendRentalDTO struct {
	TariffID string `json:"tariffId" validate:"omitempty,uuid4"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=30"`
}

// OverdueMetaDTO - расчёт долга по просроченной аренде. Просроченное время
// тарифицируется целыми периодами тарифа, частичный период не продаётся.
type OverdueMetaDTO struct {
	OverdueMinutes int       `json:"overdueMinutes"`
	ExtendMinutes  int       `json:"extendMinutes"`
	OverdueRub     int       `json:"overdueRub"`
	PaidMinutes    int       `json:"paidMinutes"`
	EndAt          time.Time `json:"endAt"`
}
