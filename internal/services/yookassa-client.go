package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const yookassaBaseURL = "https://api.yookassa.ru/v3"

// PaymentProviderInterface - создание платежа у внешнего провайдера.
type PaymentProviderInterface interface {
	CreatePayment(ctx context.Context, req ProviderPaymentRequest) (*ProviderPayment, error)
}

type ProviderPaymentRequest struct {
	AmountRub   int
	Description string
	PaymentID   string
	OrderID     string
}

type ProviderPayment struct {
	ID              string
	Status          string
	ConfirmationURL string
	Raw             json.RawMessage
}

type yookassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yookassaConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type yookassaCreateRequest struct {
	Amount       yookassaAmount       `json:"amount"`
	Capture      bool                 `json:"capture"`
	Confirmation yookassaConfirmation `json:"confirmation"`
	Description  string               `json:"description,omitempty"`
	Metadata     map[string]string    `json:"metadata"`
}

type yookassaPaymentResponse struct {
	ID           string                `json:"id"`
	Status       string                `json:"status"`
	Confirmation *yookassaConfirmation `json:"confirmation"`
}

type YooKassaClient struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewYooKassaClient(cfg *config.Config, logger *zap.Logger) PaymentProviderInterface {
	return &YooKassaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// CreatePayment регистрирует платёж в ЮKassa. Ключ идемпотентности - наш
// идентификатор платежа: повтор запроса не создаст второй платёж у провайдера.
func (c *YooKassaClient) CreatePayment(ctx context.Context, req ProviderPaymentRequest) (*ProviderPayment, error) {
	body := yookassaCreateRequest{
		Amount:  yookassaAmount{Value: fmt.Sprintf("%d.00", req.AmountRub), Currency: "RUB"},
		Capture: true,
		Confirmation: yookassaConfirmation{
			Type:      "redirect",
			ReturnURL: c.cfg.YooKassa.SuccessURL,
		},
		Description: req.Description,
		Metadata: map[string]string{
			"paymentId": req.PaymentID,
			"orderId":   req.OrderID,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса к ЮKassa: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, yookassaBaseURL+"/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса к ЮKassa: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())
	httpReq.SetBasicAuth(c.cfg.YooKassa.ShopID, c.cfg.YooKassa.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewServiceUnavailableError("Платёжный сервис недоступен, попробуйте позже", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewServiceUnavailableError("Платёжный сервис недоступен, попробуйте позже", err)
	}

	switch {
	case resp.StatusCode >= 500:
		c.logger.Error("ЮKassa вернула ошибку сервера",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
		return nil, apperrors.NewServiceUnavailableError("Платёжный сервис недоступен, попробуйте позже", nil)
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Error("неверные учётные данные магазина ЮKassa")
		return nil, apperrors.NewInvalidRequestError("Платёж отклонён провайдером")
	case resp.StatusCode >= 400:
		c.logger.Warn("ЮKassa отклонила запрос на платёж",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
		return nil, apperrors.NewInvalidRequestError("Платёж отклонён провайдером")
	}

	var parsed yookassaPaymentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа ЮKassa: %w", err)
	}

	result := &ProviderPayment{ID: parsed.ID, Status: parsed.Status, Raw: respBody}
	if parsed.Confirmation != nil {
		result.ConfirmationURL = parsed.Confirmation.ConfirmationURL
	}
	return result, nil
}
