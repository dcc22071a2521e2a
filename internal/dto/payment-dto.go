package dto

import "encoding/json"

// WebhookDTO - входящее уведомление платёжного провайдера.
// Доставка at-least-once, обработчик обязан быть идемпотентным.
type WebhookDTO struct {
	Event  string          `json:"event" validate:"required"`
	Object WebhookObjectDTO `json:"object"`
}

type WebhookObjectDTO struct {
	ID     string          `json:"id"`
	Status string          `json:"status,omitempty"`
	Raw    json.RawMessage `json:"-"`
}
