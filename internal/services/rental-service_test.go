package services

import (
	"context"
	"testing"
	"time"

	"lockbox/internal/entities"
	apperrors "lockbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var hourlyTariff = &entities.Tariff{
	ID:              "tariff-hourly",
	Code:            entities.TariffCodeHourly,
	Name:            "Почасовой",
	PriceRub:        200,
	DurationMinutes: 60,
	Active:          true,
}

// overdueItem собирает просроченную позицию, у которой аренда закончилась
// minutesAgo минут назад.
func overdueItem(minutesAgo int) *entities.OrderItem {
	start := time.Now().Add(-time.Duration(minutesAgo+60) * time.Minute)
	end := time.Now().Add(-time.Duration(minutesAgo) * time.Minute)
	return &entities.OrderItem{
		ID:       "item-1",
		OrderID:  "order-1",
		LockerID: "locker-1",
		TariffID: hourlyTariff.ID,
		Status:   entities.OrderItemStatusOverdue,
		StartAt:  &start,
		EndAt:    &end,
		Tariff:   hourlyTariff,
		Order:    &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusPaid},
	}
}

func newRentalServiceForTest(itemRepo *fakeItemRepo, lockerRepo *fakeLockerRepo, paymentRepo *fakePaymentRepo, grace int) RentalServiceInterface {
	return newRentalServiceWithOrders(newFakeOrderRepo(), itemRepo, lockerRepo, paymentRepo, grace)
}

func newRentalServiceWithOrders(orderRepo *fakeOrderRepo, itemRepo *fakeItemRepo, lockerRepo *fakeLockerRepo, paymentRepo *fakePaymentRepo, grace int) RentalServiceInterface {
	return NewRentalService(
		orderRepo,
		itemRepo,
		lockerRepo,
		newFakeTariffRepo(hourlyTariff),
		paymentRepo,
		fakeTxManager{},
		&fakeSettingsService{grace: grace},
		&fakeAuditService{},
		zap.NewNop(),
	)
}

func TestCalculateOverdueMeta_ActiveWithoutOverdue(t *testing.T) {
	start := time.Now().Add(-30 * time.Minute)
	end := time.Now().Add(30 * time.Minute)
	item := overdueItem(0)
	item.Status = entities.OrderItemStatusActive
	item.StartAt = &start
	item.EndAt = &end

	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	meta, err := svc.CalculateOverdueMeta(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.OverdueMinutes)
	assert.Equal(t, 0, meta.OverdueRub)
	assert.Equal(t, 60, meta.PaidMinutes)
}

func TestCalculateOverdueMeta_WithinGracePeriod(t *testing.T) {
	// 10 минут просрочки при льготных 15: долг не начисляется.
	item := overdueItem(10)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	meta, err := svc.CalculateOverdueMeta(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 10, meta.OverdueMinutes)
	assert.Equal(t, 0, meta.OverdueRub)
	assert.Equal(t, 0, meta.ExtendMinutes)
}

func TestCalculateOverdueMeta_BeyondGraceChargesFullPeriod(t *testing.T) {
	// 25 минут просрочки по часовому тарифу: округление вверх до целого
	// периода, долг - полный час.
	item := overdueItem(25)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	meta, err := svc.CalculateOverdueMeta(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 25, meta.OverdueMinutes)
	assert.Equal(t, 60, meta.ExtendMinutes)
	assert.Equal(t, 200, meta.OverdueRub)
}

func TestCalculateOverdueMeta_MultiplePeriods(t *testing.T) {
	item := overdueItem(130)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	meta, err := svc.CalculateOverdueMeta(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 180, meta.ExtendMinutes)
	assert.Equal(t, 600, meta.OverdueRub)
}

func TestCalculateOverdueMeta_SettlementExtendsCoverage(t *testing.T) {
	// Успешное погашение на 60 минут сдвигает покрытие: просрочка в 25 минут
	// оказывается внутри оплаченного окна.
	item := overdueItem(25)
	paymentRepo := newFakePaymentRepo()
	paymentRepo.succeeded = []entities.Payment{{
		ID:      "pay-settle",
		OrderID: item.OrderID,
		Status:  entities.PaymentStatusSucceeded,
		Intent:  entities.OverdueSettlementIntent(item.ID, 60),
	}}
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), paymentRepo, 15)

	meta, err := svc.CalculateOverdueMeta(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.OverdueMinutes)
	assert.Equal(t, 0, meta.OverdueRub)
	assert.Equal(t, 120, meta.PaidMinutes)
}

func TestQuoteSettlement_NoDebt(t *testing.T) {
	item := overdueItem(5)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	_, err := svc.QuoteSettlement(context.Background(), "user-1", item.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestQuoteSettlement_ForeignUser(t *testing.T) {
	item := overdueItem(25)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	_, err := svc.QuoteSettlement(context.Background(), "someone-else", item.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestApplyExtension_OverdueBecomesActive(t *testing.T) {
	item := overdueItem(25)
	itemRepo := newFakeItemRepo(item)
	svc := newRentalServiceForTest(itemRepo, newFakeLockerRepo(), newFakePaymentRepo(), 15)

	payment := &entities.Payment{
		ID:      "pay-ext",
		OrderID: item.OrderID,
		Intent:  entities.ExtensionIntent(item.ID, hourlyTariff.ID, 2),
	}
	require.NoError(t, svc.ApplyExtension(context.Background(), nil, payment))

	// Конец аренды в прошлом, поэтому отсчёт от текущего момента.
	newEnd, ok := itemRepo.extended[item.ID]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), newEnd, time.Minute)
	assert.Equal(t, entities.OrderItemStatusActive, itemRepo.statusSet[item.ID])
}

func TestApplyExtension_IncrementsOrderTotal(t *testing.T) {
	item := overdueItem(25)
	order := &entities.Order{ID: item.OrderID, UserID: "user-1", Status: entities.OrderStatusPaid, TotalRub: 200}
	orderRepo := newFakeOrderRepo(order)
	svc := newRentalServiceWithOrders(orderRepo, newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	payment := &entities.Payment{
		ID:        "pay-ext",
		OrderID:   item.OrderID,
		AmountRub: 400,
		Intent:    entities.ExtensionIntent(item.ID, hourlyTariff.ID, 2),
	}
	require.NoError(t, svc.ApplyExtension(context.Background(), nil, payment))

	// Два оплаченных часа по 200₽ добавляются к итогу заказа.
	assert.Equal(t, 600, order.TotalRub)
}

func TestApplySettlement_DoesNotMoveEnd(t *testing.T) {
	item := overdueItem(25)
	itemRepo := newFakeItemRepo(item)
	svc := newRentalServiceForTest(itemRepo, newFakeLockerRepo(), newFakePaymentRepo(), 15)

	payment := &entities.Payment{
		ID:        "pay-settle",
		OrderID:   item.OrderID,
		AmountRub: 200,
		Intent:    entities.OverdueSettlementIntent(item.ID, 60),
	}
	require.NoError(t, svc.ApplySettlement(context.Background(), nil, payment))

	_, moved := itemRepo.extended[item.ID]
	assert.False(t, moved, "погашение не должно двигать конец аренды")
	_, statusChanged := itemRepo.statusSet[item.ID]
	assert.False(t, statusChanged, "погашение само по себе не меняет статус позиции")
}

func TestCompleteRental_OverdueWithDebtRejected(t *testing.T) {
	item := overdueItem(25)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	err := svc.CompleteRental(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-1", item.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCompleteRental_ActiveFreesLocker(t *testing.T) {
	item := overdueItem(0)
	item.Status = entities.OrderItemStatusActive
	itemRepo := newFakeItemRepo(item)
	lockerRepo := newFakeLockerRepo()
	svc := newRentalServiceForTest(itemRepo, lockerRepo, newFakePaymentRepo(), 15)

	err := svc.CompleteRental(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-1", item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.OrderItemStatusClosed, itemRepo.statusSet[item.ID])
	assert.Equal(t, entities.LockerStatusFree, lockerRepo.statusSet[item.LockerID])
}

func TestGetUserRental_AttachesOverdueMeta(t *testing.T) {
	item := overdueItem(25)
	svc := newRentalServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakePaymentRepo(), 15)

	view, err := svc.GetUserRental(context.Background(), "user-1", item.ID)
	require.NoError(t, err)
	require.NotNil(t, view.OverdueMeta)
	assert.Equal(t, 200, view.OverdueMeta.OverdueRub)
}
