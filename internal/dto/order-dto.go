package dto

type CreatePaymentResultDTO struct {
	ConfirmationURL string `json:"confirmationUrl"`
	PaymentID       string `json:"paymentId"`
}

type ConfirmMockPaymentDTO struct {
	OrderID string `json:"orderId" validate:"required,uuid4"`
}
