package services

import (
	"context"
	"testing"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/pkg/config"
	"lockbox/pkg/driver"
	apperrors "lockbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOverdueCalc struct {
	overdueRub int
}

func (f *fakeOverdueCalc) CalculateOverdueMeta(context.Context, *entities.OrderItem) (*dto.OverdueMetaDTO, error) {
	return &dto.OverdueMetaDTO{OverdueRub: f.overdueRub}, nil
}

func newLockerServiceForTest(itemRepo *fakeItemRepo, lockerRepo *fakeLockerRepo, orderRepo *fakeOrderRepo, cmdRepo *fakeDeviceCmdRepo, calc OverdueCalculatorInterface) LockerServiceInterface {
	cfg := &config.Config{Lockers: config.LockersConfig{HoldMinutes: 10, CommandTTLSeconds: 30}}
	return NewLockerService(
		lockerRepo,
		itemRepo,
		orderRepo,
		cmdRepo,
		fakeTxManager{},
		&fakeAuditService{},
		calc,
		driver.NewMockLockerDriver(zap.NewNop()),
		cfg,
		zap.NewNop(),
	)
}

func TestReleaseExpiredHolds_ResetsItemsAndFreesLockers(t *testing.T) {
	itemRepo := newFakeItemRepo()
	itemRepo.expiredHolds = []entities.OrderItem{
		{ID: "item-1", OrderID: "order-1", LockerID: "locker-1", Status: entities.OrderItemStatusAwaitingPayment},
		{ID: "item-2", OrderID: "order-2", LockerID: "locker-2", Status: entities.OrderItemStatusAwaitingPayment},
	}
	lockerRepo := newFakeLockerRepo()
	orderRepo := newFakeOrderRepo()
	svc := newLockerServiceForTest(itemRepo, lockerRepo, orderRepo, newFakeDeviceCmdRepo(), &fakeOverdueCalc{})

	released, err := svc.ReleaseExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, itemRepo.resetIDs)
	assert.Equal(t, entities.LockerStatusFree, lockerRepo.statusSet["locker-1"])
	assert.Equal(t, entities.LockerStatusFree, lockerRepo.statusSet["locker-2"])
	assert.ElementsMatch(t, []string{"order-1", "order-2"}, orderRepo.demoted)
}

func TestRefreshExpiredRentals_SplitsPaidAndUnpaid(t *testing.T) {
	paidOrder := &entities.Order{ID: "order-paid", Status: entities.OrderStatusPaid}
	unpaidOrder := &entities.Order{ID: "order-unpaid", Status: entities.OrderStatusAwaitingPayment}

	itemRepo := newFakeItemRepo()
	itemRepo.expiredActive = []entities.OrderItem{
		{ID: "item-paid", OrderID: paidOrder.ID, LockerID: "locker-paid", Status: entities.OrderItemStatusActive, Order: paidOrder},
		{ID: "item-unpaid", OrderID: unpaidOrder.ID, LockerID: "locker-unpaid", Status: entities.OrderItemStatusActive, Order: unpaidOrder},
	}
	lockerRepo := newFakeLockerRepo()
	svc := newLockerServiceForTest(itemRepo, lockerRepo, newFakeOrderRepo(), newFakeDeviceCmdRepo(), &fakeOverdueCalc{})

	refreshed, err := svc.RefreshExpiredRentals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)

	// Оплаченная аренда истекает и ячейка возвращается в оборот.
	assert.Equal(t, entities.OrderItemStatusExpired, itemRepo.statusSet["item-paid"])
	assert.Equal(t, entities.LockerStatusFree, lockerRepo.statusSet["locker-paid"])

	// Неоплаченная уходит в просрочку, ячейка остаётся занятой.
	assert.Equal(t, entities.OrderItemStatusOverdue, itemRepo.statusSet["item-unpaid"])
	_, freed := lockerRepo.statusSet["locker-unpaid"]
	assert.False(t, freed)
}

func TestOpenForRental_OverdueWithDebtRejected(t *testing.T) {
	deviceID := "kiosk-1"
	start := time.Now().Add(-2 * time.Hour)
	end := time.Now().Add(-time.Hour)
	item := &entities.OrderItem{
		ID:       "item-1",
		OrderID:  "order-1",
		LockerID: "locker-1",
		Status:   entities.OrderItemStatusOverdue,
		StartAt:  &start,
		EndAt:    &end,
		Locker:   &entities.Locker{ID: "locker-1", Number: 3, DeviceID: &deviceID},
		Order:    &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusPaid},
	}
	svc := newLockerServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakeOrderRepo(), newFakeDeviceCmdRepo(), &fakeOverdueCalc{overdueRub: 200})

	err := svc.OpenForRental(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-1", item.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestOpenForRental_ActiveEnqueuesCommand(t *testing.T) {
	deviceID := "kiosk-1"
	item := &entities.OrderItem{
		ID:       "item-1",
		OrderID:  "order-1",
		LockerID: "locker-1",
		Status:   entities.OrderItemStatusActive,
		Locker:   &entities.Locker{ID: "locker-1", Number: 3, DeviceID: &deviceID},
		Order:    &entities.Order{ID: "order-1", UserID: "user-1", Status: entities.OrderStatusPaid},
	}
	cmdRepo := newFakeDeviceCmdRepo()
	svc := newLockerServiceForTest(newFakeItemRepo(item), newFakeLockerRepo(), newFakeOrderRepo(), cmdRepo, &fakeOverdueCalc{})

	require.NoError(t, svc.OpenForRental(context.Background(), Actor{Type: entities.ActorTypeUser}, "user-1", item.ID))
	require.Len(t, cmdRepo.created, 1)
	assert.Equal(t, deviceID, cmdRepo.created[0].DeviceID)
	assert.Equal(t, 3, cmdRepo.created[0].LockerNumber)
	assert.Equal(t, entities.DeviceCommandStatusPending, cmdRepo.created[0].Status)
}
