package services

import (
	"context"
	"testing"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPaymentServiceForTest(paymentRepo *fakePaymentRepo, orderRepo *fakeOrderRepo, activator *fakeActivator, cfg *config.Config) PaymentServiceInterface {
	return NewPaymentService(
		paymentRepo,
		orderRepo,
		nil,
		nil,
		activator,
		nil,
		fakeTxManager{},
		&fakeAuditService{},
		cfg,
		zap.NewNop(),
	)
}

func mockConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{BaseURL: "http://localhost:8080"},
		YooKassa: config.YooKassaConfig{MockPayments: true},
	}
}

func TestMarkPaymentSucceeded_ActivatesOnce(t *testing.T) {
	payment := &entities.Payment{
		ID:        "pay-1",
		OrderID:   "order-1",
		Status:    entities.PaymentStatusCreated,
		AmountRub: 200,
		Intent:    entities.NewRentalIntent("order-1"),
	}
	paymentRepo := newFakePaymentRepo(payment)
	activator := &fakeActivator{}
	svc := newPaymentServiceForTest(paymentRepo, newFakeOrderRepo(), activator, mockConfig())

	require.NoError(t, svc.MarkPaymentSucceeded(context.Background(), "pay-1", nil))
	assert.Equal(t, 1, activator.calls)
	assert.Equal(t, entities.PaymentStatusSucceeded, activator.payments[0].Status)

	// Повторное подтверждение того же платежа - no-op без второй активации.
	require.NoError(t, svc.MarkPaymentSucceeded(context.Background(), "pay-1", nil))
	assert.Equal(t, 1, activator.calls)
}

func TestMarkPaymentSucceeded_UnknownPayment(t *testing.T) {
	svc := newPaymentServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(), &fakeActivator{}, mockConfig())

	err := svc.MarkPaymentSucceeded(context.Background(), "no-such-payment", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConfirmMockPayment_DisabledOutsideMockMode(t *testing.T) {
	cfg := mockConfig()
	cfg.YooKassa.MockPayments = false
	svc := newPaymentServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(), &fakeActivator{}, cfg)

	err := svc.ConfirmMockPayment(context.Background(), Actor{}, "user-1", dto.ConfirmMockPaymentDTO{OrderID: "order-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestConfirmMockPayment_ForeignOrder(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "owner", Status: entities.OrderStatusAwaitingPayment}
	svc := newPaymentServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(order), &fakeActivator{}, mockConfig())

	err := svc.ConfirmMockPayment(context.Background(), Actor{}, "intruder", dto.ConfirmMockPaymentDTO{OrderID: "order-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	cfg := mockConfig()
	cfg.YooKassa.WebhookSecret = "top-secret"
	svc := newPaymentServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(), &fakeActivator{}, cfg)

	err := svc.HandleWebhook(context.Background(), "wrong", dto.WebhookDTO{
		Event:  "payment.succeeded",
		Object: dto.WebhookObjectDTO{ID: "prov-1"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestHandleWebhook_UnknownPaymentIgnored(t *testing.T) {
	svc := newPaymentServiceForTest(newFakePaymentRepo(), newFakeOrderRepo(), &fakeActivator{}, mockConfig())

	// Неизвестный платёж не должен приводить к ошибке: провайдер перестанет
	// слать повторы только на 200.
	err := svc.HandleWebhook(context.Background(), "", dto.WebhookDTO{
		Event:  "payment.succeeded",
		Object: dto.WebhookObjectDTO{ID: "prov-unknown"},
	})
	assert.NoError(t, err)
}
