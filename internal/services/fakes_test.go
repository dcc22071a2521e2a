package services

import (
	"context"
	"encoding/json"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	apperrors "lockbox/pkg/errors"

	"github.com/jackc/pgx/v5"
)

func errNotFoundForTest() error { return apperrors.ErrNotFound }

// Заглушки зависимостей для юнит-тестов сервисов. Встраивание интерфейса
// позволяет реализовать только те методы, которые нужны конкретному тесту.

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeAuditService struct {
	logged []dto.CreateAuditLogDTO
}

func (f *fakeAuditService) Log(_ context.Context, payload dto.CreateAuditLogDTO) {
	f.logged = append(f.logged, payload)
}

func (f *fakeAuditService) LogTx(_ context.Context, _ repositories.Querier, payload dto.CreateAuditLogDTO) error {
	f.logged = append(f.logged, payload)
	return nil
}

func (f *fakeAuditService) Query(context.Context, dto.AuditQueryDTO) ([]entities.AuditLog, error) {
	return nil, nil
}

func (f *fakeAuditService) ExportCsv(context.Context, dto.AuditQueryDTO) ([]byte, error) {
	return nil, nil
}

type fakeSettingsService struct {
	grace int
}

func (f *fakeSettingsService) GetAll(context.Context) ([]entities.Setting, error) { return nil, nil }

func (f *fakeSettingsService) Update(context.Context, dto.UpdateSettingDTO) (*entities.Setting, error) {
	return nil, nil
}

func (f *fakeSettingsService) GracePeriodMinutes(context.Context, entities.TariffCode) int {
	return f.grace
}

func (f *fakeSettingsService) SetGracePeriod(context.Context, dto.GracePeriodDTO) (*entities.Setting, error) {
	return nil, nil
}

type fakeItemRepo struct {
	repositories.OrderItemRepositoryInterface

	items map[string]*entities.OrderItem

	expiredHolds  []entities.OrderItem
	expiredActive []entities.OrderItem

	statusSet map[string]entities.OrderItemStatus
	extended  map[string]time.Time
	resetIDs  []string
}

func newFakeItemRepo(items ...*entities.OrderItem) *fakeItemRepo {
	m := make(map[string]*entities.OrderItem, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &fakeItemRepo{
		items:     m,
		statusSet: make(map[string]entities.OrderItemStatus),
		extended:  make(map[string]time.Time),
	}
}

func (f *fakeItemRepo) FindByID(_ context.Context, _ repositories.Querier, id string) (*entities.OrderItem, error) {
	if it, ok := f.items[id]; ok {
		return it, nil
	}
	return nil, errNotFoundForTest()
}

func (f *fakeItemRepo) FindByIDWithRelations(_ context.Context, id string) (*entities.OrderItem, error) {
	if it, ok := f.items[id]; ok {
		return it, nil
	}
	return nil, errNotFoundForTest()
}

func (f *fakeItemRepo) SetStatus(_ context.Context, _ repositories.Querier, id string, status entities.OrderItemStatus) error {
	f.statusSet[id] = status
	return nil
}

func (f *fakeItemRepo) SetStatusMany(_ context.Context, _ repositories.Querier, ids []string, status entities.OrderItemStatus) error {
	for _, id := range ids {
		f.statusSet[id] = status
	}
	return nil
}

func (f *fakeItemRepo) ExtendEnd(_ context.Context, _ repositories.Querier, id string, newEnd time.Time) error {
	f.extended[id] = newEnd
	return nil
}

func (f *fakeItemRepo) ResetToCreated(_ context.Context, _ repositories.Querier, ids []string) error {
	f.resetIDs = append(f.resetIDs, ids...)
	return nil
}

func (f *fakeItemRepo) FindExpiredHolds(context.Context, repositories.Querier, time.Time) ([]entities.OrderItem, error) {
	return f.expiredHolds, nil
}

func (f *fakeItemRepo) FindExpiredActive(context.Context, repositories.Querier, time.Time) ([]entities.OrderItem, error) {
	return f.expiredActive, nil
}

func (f *fakeItemRepo) FindByOrderAndLocker(_ context.Context, _ repositories.Querier, orderID, lockerID string) (*entities.OrderItem, error) {
	for _, it := range f.items {
		if it.OrderID == orderID && it.LockerID == lockerID {
			return it, nil
		}
	}
	return nil, errNotFoundForTest()
}

func (f *fakeItemRepo) Create(_ context.Context, _ repositories.Querier, item *entities.OrderItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemRepo) Delete(_ context.Context, _ repositories.Querier, id string) error {
	delete(f.items, id)
	return nil
}

func (f *fakeItemRepo) SetHold(_ context.Context, _ repositories.Querier, id string, holdUntil time.Time) error {
	if it, ok := f.items[id]; ok {
		it.Status = entities.OrderItemStatusAwaitingPayment
		it.HoldUntil = &holdUntil
	}
	return nil
}

func (f *fakeItemRepo) FindByOrder(_ context.Context, _ repositories.Querier, orderID string) ([]entities.OrderItem, error) {
	var out []entities.OrderItem
	for _, it := range f.items {
		if it.OrderID == orderID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeItemRepo) SetAwaitingPayment(_ context.Context, _ repositories.Querier, id string, startAt, endAt, holdUntil time.Time) error {
	if it, ok := f.items[id]; ok {
		it.Status = entities.OrderItemStatusAwaitingPayment
		it.StartAt = &startAt
		it.EndAt = &endAt
		it.HoldUntil = &holdUntil
	}
	return nil
}

func (f *fakeItemRepo) MarkActive(_ context.Context, _ repositories.Querier, id string, startAt, endAt time.Time) error {
	if it, ok := f.items[id]; ok {
		it.Status = entities.OrderItemStatusActive
		it.StartAt = &startAt
		it.EndAt = &endAt
		it.HoldUntil = nil
	}
	return nil
}

func (f *fakeItemRepo) FindActiveHold(_ context.Context, _ repositories.Querier, lockerID string, now time.Time) (*entities.OrderItem, error) {
	for _, it := range f.items {
		if it.LockerID == lockerID && it.Status == entities.OrderItemStatusAwaitingPayment &&
			it.HoldUntil != nil && it.HoldUntil.After(now) {
			return it, nil
		}
	}
	return nil, errNotFoundForTest()
}

func (f *fakeItemRepo) FindLiveByLocker(_ context.Context, _ repositories.Querier, lockerID string) (*entities.OrderItem, error) {
	for _, it := range f.items {
		if it.LockerID != lockerID {
			continue
		}
		switch it.Status {
		case entities.OrderItemStatusAwaitingPayment, entities.OrderItemStatusActive, entities.OrderItemStatusOverdue:
			return it, nil
		}
	}
	return nil, errNotFoundForTest()
}

func (f *fakeItemRepo) DeleteByOrder(_ context.Context, _ repositories.Querier, orderID string) error {
	for id, it := range f.items {
		if it.OrderID == orderID {
			delete(f.items, id)
		}
	}
	return nil
}

func (f *fakeItemRepo) FindByOrderWithRelations(_ context.Context, orderID string) ([]entities.OrderItem, error) {
	var out []entities.OrderItem
	for _, it := range f.items {
		if it.OrderID == orderID {
			out = append(out, *it)
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	repositories.OrderRepositoryInterface

	orders   map[string]*entities.Order
	demoted  []string
	statuses map[string]entities.OrderStatus
}

func newFakeOrderRepo(orders ...*entities.Order) *fakeOrderRepo {
	m := make(map[string]*entities.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrderRepo{orders: m, statuses: make(map[string]entities.OrderStatus)}
}

func (f *fakeOrderRepo) FindByID(_ context.Context, _ repositories.Querier, id string) (*entities.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, errNotFoundForTest()
}

func (f *fakeOrderRepo) FindDraftByUser(_ context.Context, _ repositories.Querier, userID string) (*entities.Order, error) {
	for _, o := range f.orders {
		if o.UserID == userID && o.Status == entities.OrderStatusDraft {
			return o, nil
		}
	}
	return nil, errNotFoundForTest()
}

func (f *fakeOrderRepo) Create(_ context.Context, _ repositories.Querier, order *entities.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, _ repositories.Querier, id string, status entities.OrderStatus) error {
	f.statuses[id] = status
	if o, ok := f.orders[id]; ok {
		o.Status = status
	}
	return nil
}

func (f *fakeOrderRepo) Delete(_ context.Context, _ repositories.Querier, id string) error {
	delete(f.orders, id)
	return nil
}

func (f *fakeOrderRepo) IncrementTotal(_ context.Context, _ repositories.Querier, id string, deltaRub int) error {
	if o, ok := f.orders[id]; ok {
		o.TotalRub += deltaRub
	}
	return nil
}

func (f *fakeOrderRepo) RecalculateTotal(context.Context, repositories.Querier, string) (int, error) {
	return 0, nil
}

func (f *fakeOrderRepo) DemoteStaleAwaiting(_ context.Context, _ repositories.Querier, orderIDs []string) error {
	f.demoted = append(f.demoted, orderIDs...)
	return nil
}

type fakeLockerRepo struct {
	repositories.LockerRepositoryInterface

	holdResult    bool
	holdCalls     int
	reclaimResult bool
	reclaimCalls  int
	statusSet     map[string]entities.LockerStatus
}

func newFakeLockerRepo() *fakeLockerRepo {
	return &fakeLockerRepo{statusSet: make(map[string]entities.LockerStatus)}
}

func (f *fakeLockerRepo) TryHold(context.Context, repositories.Querier, string) (bool, error) {
	f.holdCalls++
	return f.holdResult, nil
}

func (f *fakeLockerRepo) TryHoldFromHeld(context.Context, repositories.Querier, string) (bool, error) {
	f.reclaimCalls++
	return f.reclaimResult, nil
}

func (f *fakeLockerRepo) UpdateStatus(_ context.Context, _ repositories.Querier, lockerID string, status entities.LockerStatus) error {
	f.statusSet[lockerID] = status
	return nil
}

func (f *fakeLockerRepo) UpdateStatusMany(_ context.Context, _ repositories.Querier, lockerIDs []string, status entities.LockerStatus) error {
	for _, id := range lockerIDs {
		f.statusSet[id] = status
	}
	return nil
}

type fakePaymentRepo struct {
	repositories.PaymentRepositoryInterface

	payments  map[string]*entities.Payment
	succeeded []entities.Payment
}

func newFakePaymentRepo(payments ...*entities.Payment) *fakePaymentRepo {
	m := make(map[string]*entities.Payment, len(payments))
	for _, p := range payments {
		m[p.ID] = p
	}
	return &fakePaymentRepo{payments: m}
}

func (f *fakePaymentRepo) FindByID(_ context.Context, _ repositories.Querier, id string) (*entities.Payment, error) {
	if p, ok := f.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, errNotFoundForTest()
}

func (f *fakePaymentRepo) FindByProviderID(_ context.Context, providerPaymentID string) (*entities.Payment, error) {
	for _, p := range f.payments {
		if p.ProviderPaymentID != nil && *p.ProviderPaymentID == providerPaymentID {
			return p, nil
		}
	}
	return nil, errNotFoundForTest()
}

func (f *fakePaymentRepo) FindSucceededByOrder(_ context.Context, _ repositories.Querier, orderID string) ([]entities.Payment, error) {
	var out []entities.Payment
	for _, p := range f.succeeded {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// MarkSucceeded повторяет семантику условного обновления: переход срабатывает
// только из CREATED.
func (f *fakePaymentRepo) MarkSucceeded(_ context.Context, _ repositories.Querier, id string, _ json.RawMessage) (bool, error) {
	p, ok := f.payments[id]
	if !ok {
		return false, errNotFoundForTest()
	}
	if p.Status != entities.PaymentStatusCreated {
		return false, nil
	}
	p.Status = entities.PaymentStatusSucceeded
	return true, nil
}

func (f *fakePaymentRepo) DeleteByOrder(_ context.Context, _ repositories.Querier, orderID string) error {
	for id, p := range f.payments {
		if p.OrderID == orderID {
			delete(f.payments, id)
		}
	}
	return nil
}

type fakeTariffRepo struct {
	repositories.TariffRepositoryInterface

	tariffs map[string]*entities.Tariff
}

func newFakeTariffRepo(tariffs ...*entities.Tariff) *fakeTariffRepo {
	m := make(map[string]*entities.Tariff, len(tariffs))
	for _, t := range tariffs {
		m[t.ID] = t
	}
	return &fakeTariffRepo{tariffs: m}
}

func (f *fakeTariffRepo) FindByID(_ context.Context, _ repositories.Querier, id string) (*entities.Tariff, error) {
	if t, ok := f.tariffs[id]; ok {
		return t, nil
	}
	return nil, errNotFoundForTest()
}

type fakeDeviceCmdRepo struct {
	repositories.DeviceCommandRepositoryInterface

	created   []*entities.DeviceCommand
	pending   []entities.DeviceCommand
	confirmed *entities.DeviceCommand
	expired   int64
}

func newFakeDeviceCmdRepo() *fakeDeviceCmdRepo {
	return &fakeDeviceCmdRepo{}
}

func (f *fakeDeviceCmdRepo) Create(_ context.Context, _ repositories.Querier, cmd *entities.DeviceCommand) error {
	f.created = append(f.created, cmd)
	return nil
}

func (f *fakeDeviceCmdRepo) FindPendingByDevice(_ context.Context, deviceID string, now time.Time) ([]entities.DeviceCommand, error) {
	var out []entities.DeviceCommand
	for _, cmd := range f.pending {
		if cmd.DeviceID == deviceID && cmd.ExpiresAt.After(now) {
			out = append(out, cmd)
		}
	}
	return out, nil
}

func (f *fakeDeviceCmdRepo) ConfirmPending(context.Context, string, int, time.Time) (*entities.DeviceCommand, error) {
	if f.confirmed == nil {
		return nil, errNotFoundForTest()
	}
	return f.confirmed, nil
}

func (f *fakeDeviceCmdRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	var kept []entities.DeviceCommand
	var stale int64
	for _, cmd := range f.pending {
		if cmd.ExpiresAt.After(now) {
			kept = append(kept, cmd)
			continue
		}
		stale++
	}
	f.pending = kept
	f.expired += stale
	return stale, nil
}

type fakeActivator struct {
	calls    int
	payments []*entities.Payment
}

func (f *fakeActivator) Activate(_ context.Context, _ pgx.Tx, payment *entities.Payment) error {
	f.calls++
	f.payments = append(f.payments, payment)
	return nil
}
