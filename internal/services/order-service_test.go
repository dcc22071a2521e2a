package services

import (
	"context"
	"testing"
	"time"

	"lockbox/internal/entities"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOrderServiceForTest(
	orderRepo *fakeOrderRepo,
	itemRepo *fakeItemRepo,
	lockerRepo *fakeLockerRepo,
	paymentRepo *fakePaymentRepo,
	audit *fakeAuditService,
) OrderServiceInterface {
	cfg := &config.Config{Lockers: config.LockersConfig{HoldMinutes: 10}}
	return NewOrderService(
		orderRepo,
		itemRepo,
		lockerRepo,
		newFakeTariffRepo(hourlyTariff),
		paymentRepo,
		nil, // аренда в этих сценариях не затрагивается
		fakeTxManager{},
		audit,
		cfg,
		zap.NewNop(),
	)
}

func TestPrepareForPayment_EmptyCart(t *testing.T) {
	svc := newOrderServiceForTest(newFakeOrderRepo(), newFakeItemRepo(), newFakeLockerRepo(), newFakePaymentRepo(), &fakeAuditService{})

	_, err := svc.PrepareForPayment(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestPrepareForPayment_ExpiredHoldResetsCart(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusDraft}
	past := time.Now().Add(-time.Minute)
	item := &entities.OrderItem{
		ID:        "item-1",
		OrderID:   order.ID,
		LockerID:  "locker-1",
		TariffID:  hourlyTariff.ID,
		Status:    entities.OrderItemStatusAwaitingPayment,
		HoldUntil: &past,
	}
	itemRepo := newFakeItemRepo(item)
	lockerRepo := newFakeLockerRepo()
	svc := newOrderServiceForTest(newFakeOrderRepo(order), itemRepo, lockerRepo, newFakePaymentRepo(), &fakeAuditService{})

	_, err := svc.PrepareForPayment(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	// Истёкшая бронь снимается, ячейка возвращается в оборот.
	assert.Contains(t, itemRepo.resetIDs, "item-1")
	assert.Equal(t, entities.LockerStatusFree, lockerRepo.statusSet["locker-1"])
}

func TestPrepareForPayment_MovesOrderToAwaiting(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusDraft}
	future := time.Now().Add(5 * time.Minute)
	item := &entities.OrderItem{
		ID:        "item-1",
		OrderID:   order.ID,
		LockerID:  "locker-1",
		TariffID:  hourlyTariff.ID,
		Status:    entities.OrderItemStatusAwaitingPayment,
		HoldUntil: &future,
	}
	itemRepo := newFakeItemRepo(item)
	orderRepo := newFakeOrderRepo(order)
	svc := newOrderServiceForTest(orderRepo, itemRepo, newFakeLockerRepo(), newFakePaymentRepo(), &fakeAuditService{})

	prepared, err := svc.PrepareForPayment(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusAwaitingPayment, prepared.Status)

	// Дедлайн оплаты и расчётный конец аренды пересчитаны от текущего момента.
	stored := itemRepo.items["item-1"]
	require.NotNil(t, stored.HoldUntil)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *stored.HoldUntil, time.Minute)
	require.NotNil(t, stored.EndAt)
	assert.WithinDuration(t, time.Now().Add(time.Duration(hourlyTariff.DurationMinutes)*time.Minute), *stored.EndAt, time.Minute)
}

func TestActivate_NewRentalActivatesItems(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusAwaitingPayment}
	future := time.Now().Add(5 * time.Minute)
	item := &entities.OrderItem{
		ID:        "item-1",
		OrderID:   order.ID,
		LockerID:  "locker-1",
		TariffID:  hourlyTariff.ID,
		Status:    entities.OrderItemStatusAwaitingPayment,
		HoldUntil: &future,
	}
	itemRepo := newFakeItemRepo(item)
	lockerRepo := newFakeLockerRepo()
	orderRepo := newFakeOrderRepo(order)
	audit := &fakeAuditService{}
	svc := newOrderServiceForTest(orderRepo, itemRepo, lockerRepo, newFakePaymentRepo(), audit)

	payment := &entities.Payment{
		ID:      "payment-1",
		OrderID: order.ID,
		Status:  entities.PaymentStatusSucceeded,
		Intent:  entities.NewRentalIntent(order.ID),
	}
	err := svc.Activate(context.Background(), nil, payment)
	require.NoError(t, err)

	stored := itemRepo.items["item-1"]
	assert.Equal(t, entities.OrderItemStatusActive, stored.Status)
	assert.Nil(t, stored.HoldUntil)
	assert.Equal(t, entities.LockerStatusOccupied, lockerRepo.statusSet["locker-1"])
	assert.Equal(t, entities.OrderStatusPaid, order.Status)

	require.Len(t, audit.logged, 1)
	assert.Equal(t, entities.AuditActionRentalCreate, audit.logged[0].Action)
}

func TestActivate_AlreadyPaidOrderRejected(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusPaid}
	svc := newOrderServiceForTest(newFakeOrderRepo(order), newFakeItemRepo(), newFakeLockerRepo(), newFakePaymentRepo(), &fakeAuditService{})

	payment := &entities.Payment{
		ID:      "payment-1",
		OrderID: order.ID,
		Intent:  entities.NewRentalIntent(order.ID),
	}
	err := svc.Activate(context.Background(), nil, payment)
	require.Error(t, err)
}

func TestCancelOrder_PaidOrderRejected(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusPaid}
	svc := newOrderServiceForTest(newFakeOrderRepo(order), newFakeItemRepo(), newFakeLockerRepo(), newFakePaymentRepo(), &fakeAuditService{})

	err := svc.CancelOrder(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-1", "order-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCancelOrder_FreesLockersAndDeletesOrder(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusAwaitingPayment}
	future := time.Now().Add(5 * time.Minute)
	item := &entities.OrderItem{
		ID:        "item-1",
		OrderID:   order.ID,
		LockerID:  "locker-1",
		TariffID:  hourlyTariff.ID,
		Status:    entities.OrderItemStatusAwaitingPayment,
		HoldUntil: &future,
	}
	orderRepo := newFakeOrderRepo(order)
	itemRepo := newFakeItemRepo(item)
	lockerRepo := newFakeLockerRepo()
	paymentRepo := newFakePaymentRepo(&entities.Payment{
		ID:      "payment-1",
		OrderID: order.ID,
		Status:  entities.PaymentStatusCreated,
		Intent:  entities.NewRentalIntent(order.ID),
	})
	audit := &fakeAuditService{}
	svc := newOrderServiceForTest(orderRepo, itemRepo, lockerRepo, paymentRepo, audit)

	err := svc.CancelOrder(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, entities.LockerStatusFree, lockerRepo.statusSet["locker-1"])
	assert.Empty(t, orderRepo.orders)
	assert.Empty(t, itemRepo.items)
	assert.Empty(t, paymentRepo.payments)

	require.Len(t, audit.logged, 1)
	assert.Equal(t, entities.AuditActionOrderCancel, audit.logged[0].Action)
}

func TestCancelOrder_ForeignUser(t *testing.T) {
	order := &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusDraft}
	svc := newOrderServiceForTest(newFakeOrderRepo(order), newFakeItemRepo(), newFakeLockerRepo(), newFakePaymentRepo(), &fakeAuditService{})

	err := svc.CancelOrder(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-2", "order-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
