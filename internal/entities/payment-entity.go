package entities

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusCanceled  PaymentStatus = "CANCELED"
)

type PaymentIntentKind string

const (
	IntentNewRental         PaymentIntentKind = "NEW_RENTAL"
	IntentExtension         PaymentIntentKind = "EXTENSION"
	IntentOverdueSettlement PaymentIntentKind = "OVERDUE_SETTLEMENT"
)

// PaymentIntent - явное описание того, за что берутся деньги. Хранится в
// отдельной колонке и никогда не перезаписывается данными провайдера.
type PaymentIntent struct {
	Kind PaymentIntentKind `json:"kind"`

	// NEW_RENTAL
	OrderID string `json:"orderId,omitempty"`

	// EXTENSION
	ExtendOrderItemID string `json:"extendOrderItemId,omitempty"`
	TariffID          string `json:"tariffId,omitempty"`
	Quantity          int    `json:"quantity,omitempty"`

	// OVERDUE_SETTLEMENT
	SettleOrderItemID string `json:"settleOrderItemId,omitempty"`
	ExtendMinutes     int    `json:"extendMinutes,omitempty"`
}

func NewRentalIntent(orderID string) PaymentIntent {
	return PaymentIntent{Kind: IntentNewRental, OrderID: orderID}
}

func ExtensionIntent(orderItemID, tariffID string, quantity int) PaymentIntent {
	return PaymentIntent{Kind: IntentExtension, ExtendOrderItemID: orderItemID, TariffID: tariffID, Quantity: quantity}
}

func OverdueSettlementIntent(orderItemID string, extendMinutes int) PaymentIntent {
	return PaymentIntent{Kind: IntentOverdueSettlement, SettleOrderItemID: orderItemID, ExtendMinutes: extendMinutes}
}

func (i PaymentIntent) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

func ParsePaymentIntent(raw []byte) (PaymentIntent, error) {
	var intent PaymentIntent
	err := json.Unmarshal(raw, &intent)
	return intent, err
}

type Payment struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"orderId"`
	Status            PaymentStatus   `json:"status"`
	AmountRub         int             `json:"amountRub"`
	Intent            PaymentIntent   `json:"intent"`
	ProviderPaymentID *string         `json:"providerPaymentId,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
