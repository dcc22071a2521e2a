package entities

import "time"

type OrderStatus string

const (
	OrderStatusDraft           OrderStatus = "DRAFT"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Status    OrderStatus `json:"status"`
	TotalRub  int         `json:"totalRub"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	Items []OrderItem `json:"items,omitempty"`
}

type OrderItemStatus string

const (
	OrderItemStatusCreated         OrderItemStatus = "CREATED"
	OrderItemStatusAwaitingPayment OrderItemStatus = "AWAITING_PAYMENT"
	OrderItemStatusActive          OrderItemStatus = "ACTIVE"
	OrderItemStatusOverdue         OrderItemStatus = "OVERDUE"
	OrderItemStatusExpired         OrderItemStatus = "EXPIRED"
	OrderItemStatusClosed          OrderItemStatus = "CLOSED"
)

// LiveItemStatuses - статусы, при которых позиция заказа удерживает ячейку.
// Инвариант: на одну ячейку не более одной "живой" позиции.
var LiveItemStatuses = []OrderItemStatus{
	OrderItemStatusAwaitingPayment,
	OrderItemStatusActive,
	OrderItemStatusOverdue,
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	LockerID  string          `json:"lockerId"`
	TariffID  string          `json:"tariffId"`
	Status    OrderItemStatus `json:"status"`
	HoldUntil *time.Time      `json:"holdUntil,omitempty"`
	StartAt   *time.Time      `json:"startAt,omitempty"`
	EndAt     *time.Time      `json:"endAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`

	Locker *Locker `json:"locker,omitempty"`
	Tariff *Tariff `json:"tariff,omitempty"`
	Order  *Order  `json:"order,omitempty"`
}
