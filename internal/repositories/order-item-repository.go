package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lockbox/internal/entities"
	apperrors "lockbox/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const itemColumns = `oi.id, oi.order_id, oi.locker_id, oi.tariff_id, oi.status, oi.hold_until, oi.start_at, oi.end_at, oi.created_at, oi.updated_at`

type OrderItemRepositoryInterface interface {
	FindByID(ctx context.Context, q Querier, id string) (*entities.OrderItem, error)
	FindByIDWithRelations(ctx context.Context, id string) (*entities.OrderItem, error)
	FindByOrder(ctx context.Context, q Querier, orderID string) ([]entities.OrderItem, error)
	FindByOrderWithRelations(ctx context.Context, orderID string) ([]entities.OrderItem, error)
	FindByOrderAndLocker(ctx context.Context, q Querier, orderID, lockerID string) (*entities.OrderItem, error)
	FindLiveByLocker(ctx context.Context, q Querier, lockerID string) (*entities.OrderItem, error)
	FindActiveHold(ctx context.Context, q Querier, lockerID string, now time.Time) (*entities.OrderItem, error)
	FindUserRentals(ctx context.Context, userID string) ([]entities.OrderItem, error)
	FindCurrentByLockers(ctx context.Context, lockerIDs []string) (map[string]entities.OrderItem, error)

	Create(ctx context.Context, q Querier, item *entities.OrderItem) error
	Delete(ctx context.Context, q Querier, id string) error
	DeleteByOrder(ctx context.Context, q Querier, orderID string) error

	SetAwaitingPayment(ctx context.Context, q Querier, id string, startAt, endAt, holdUntil time.Time) error
	SetHold(ctx context.Context, q Querier, id string, holdUntil time.Time) error
	ResetToCreated(ctx context.Context, q Querier, ids []string) error
	MarkActive(ctx context.Context, q Querier, id string, startAt, endAt time.Time) error
	ExtendEnd(ctx context.Context, q Querier, id string, newEnd time.Time) error
	SetStatus(ctx context.Context, q Querier, id string, status entities.OrderItemStatus) error
	SetStatusMany(ctx context.Context, q Querier, ids []string, status entities.OrderItemStatus) error

	FindExpiredHolds(ctx context.Context, q Querier, now time.Time) ([]entities.OrderItem, error)
	FindExpiredActive(ctx context.Context, q Querier, now time.Time) ([]entities.OrderItem, error)
	FindUnpaidByLocker(ctx context.Context, q Querier, lockerID string) ([]entities.OrderItem, error)
}

type OrderItemRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrderItemRepository(storage *pgxpool.Pool, logger *zap.Logger) OrderItemRepositoryInterface {
	return &OrderItemRepository{storage: storage, logger: logger}
}

func (r *OrderItemRepository) querier(q Querier) Querier {
	if q == nil {
		return r.storage
	}
	return q
}

func scanItem(row pgx.Row) (*entities.OrderItem, error) {
	var it entities.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.LockerID, &it.TariffID, &it.Status, &it.HoldUntil, &it.StartAt, &it.EndAt, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования позиции заказа: %w", err)
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]entities.OrderItem, error) {
	defer rows.Close()
	items := make([]entities.OrderItem, 0)
	for rows.Next() {
		var it entities.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.LockerID, &it.TariffID, &it.Status, &it.HoldUntil, &it.StartAt, &it.EndAt, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции в списке: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderItemRepository) FindByID(ctx context.Context, q Querier, id string) (*entities.OrderItem, error) {
	return scanItem(r.querier(q).QueryRow(ctx,
		`SELECT `+itemColumns+` FROM order_items oi WHERE oi.id = $1`, id))
}

// FindByIDWithRelations грузит позицию вместе с ячейкой, тарифом и заказом.
func (r *OrderItemRepository) FindByIDWithRelations(ctx context.Context, id string) (*entities.OrderItem, error) {
	row := r.storage.QueryRow(ctx, `
		SELECT `+itemColumns+`,
			l.id, l.number, l.status, l.device_id, l.freeze_until, l.freeze_reason, l.created_at, l.updated_at,
			t.id, t.code, t.name, t.price_rub, t.duration_minutes, t.active, t.created_at, t.updated_at,
			o.id, o.user_id, o.status, o.total_rub, o.created_at, o.updated_at
		FROM order_items oi
		JOIN lockers l ON l.id = oi.locker_id
		JOIN tariffs t ON t.id = oi.tariff_id
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.id = $1`, id)

	var it entities.OrderItem
	var l entities.Locker
	var t entities.Tariff
	var o entities.Order
	err := row.Scan(
		&it.ID, &it.OrderID, &it.LockerID, &it.TariffID, &it.Status, &it.HoldUntil, &it.StartAt, &it.EndAt, &it.CreatedAt, &it.UpdatedAt,
		&l.ID, &l.Number, &l.Status, &l.DeviceID, &l.FreezeUntil, &l.FreezeReason, &l.CreatedAt, &l.UpdatedAt,
		&t.ID, &t.Code, &t.Name, &t.PriceRub, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt,
		&o.ID, &o.UserID, &o.Status, &o.TotalRub, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки позиции заказа: %w", err)
	}
	it.Locker = &l
	it.Tariff = &t
	it.Order = &o
	return &it, nil
}

func (r *OrderItemRepository) FindByOrder(ctx context.Context, q Querier, orderID string) ([]entities.OrderItem, error) {
	rows, err := r.querier(q).Query(ctx,
		`SELECT `+itemColumns+` FROM order_items oi WHERE oi.order_id = $1 ORDER BY oi.created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций заказа: %w", err)
	}
	return collectItems(rows)
}

// FindByOrderWithRelations - позиции заказа вместе с ячейками и тарифами,
// в порядке добавления в корзину.
func (r *OrderItemRepository) FindByOrderWithRelations(ctx context.Context, orderID string) ([]entities.OrderItem, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT `+itemColumns+`,
			l.id, l.number, l.status, l.device_id, l.freeze_until, l.freeze_reason, l.created_at, l.updated_at,
			t.id, t.code, t.name, t.price_rub, t.duration_minutes, t.active, t.created_at, t.updated_at
		FROM order_items oi
		JOIN lockers l ON l.id = oi.locker_id
		JOIN tariffs t ON t.id = oi.tariff_id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций заказа: %w", err)
	}
	defer rows.Close()

	items := make([]entities.OrderItem, 0)
	for rows.Next() {
		var it entities.OrderItem
		var l entities.Locker
		var t entities.Tariff
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.LockerID, &it.TariffID, &it.Status, &it.HoldUntil, &it.StartAt, &it.EndAt, &it.CreatedAt, &it.UpdatedAt,
			&l.ID, &l.Number, &l.Status, &l.DeviceID, &l.FreezeUntil, &l.FreezeReason, &l.CreatedAt, &l.UpdatedAt,
			&t.ID, &t.Code, &t.Name, &t.PriceRub, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции заказа: %w", err)
		}
		it.Locker = &l
		it.Tariff = &t
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderItemRepository) FindByOrderAndLocker(ctx context.Context, q Querier, orderID, lockerID string) (*entities.OrderItem, error) {
	return scanItem(r.querier(q).QueryRow(ctx,
		`SELECT `+itemColumns+` FROM order_items oi WHERE oi.order_id = $1 AND oi.locker_id = $2 LIMIT 1`, orderID, lockerID))
}

func (r *OrderItemRepository) FindLiveByLocker(ctx context.Context, q Querier, lockerID string) (*entities.OrderItem, error) {
	return scanItem(r.querier(q).QueryRow(ctx, `
		SELECT `+itemColumns+` FROM order_items oi
		WHERE oi.locker_id = $1 AND oi.status IN ('AWAITING_PAYMENT', 'ACTIVE', 'OVERDUE')
		ORDER BY oi.created_at DESC LIMIT 1`, lockerID))
}

// FindActiveHold - живая бронь на ячейку (hold_until в будущем).
func (r *OrderItemRepository) FindActiveHold(ctx context.Context, q Querier, lockerID string, now time.Time) (*entities.OrderItem, error) {
	return scanItem(r.querier(q).QueryRow(ctx, `
		SELECT `+itemColumns+` FROM order_items oi
		WHERE oi.locker_id = $1 AND oi.status = 'AWAITING_PAYMENT' AND oi.hold_until > $2
		LIMIT 1`, lockerID, now))
}

func (r *OrderItemRepository) FindUserRentals(ctx context.Context, userID string) ([]entities.OrderItem, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT `+itemColumns+`,
			l.id, l.number, l.status, l.device_id, l.freeze_until, l.freeze_reason, l.created_at, l.updated_at,
			t.id, t.code, t.name, t.price_rub, t.duration_minutes, t.active, t.created_at, t.updated_at,
			o.id, o.user_id, o.status, o.total_rub, o.created_at, o.updated_at
		FROM order_items oi
		JOIN lockers l ON l.id = oi.locker_id
		JOIN tariffs t ON t.id = oi.tariff_id
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1
		ORDER BY oi.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения аренд пользователя: %w", err)
	}
	defer rows.Close()

	items := make([]entities.OrderItem, 0)
	for rows.Next() {
		var it entities.OrderItem
		var l entities.Locker
		var t entities.Tariff
		var o entities.Order
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.LockerID, &it.TariffID, &it.Status, &it.HoldUntil, &it.StartAt, &it.EndAt, &it.CreatedAt, &it.UpdatedAt,
			&l.ID, &l.Number, &l.Status, &l.DeviceID, &l.FreezeUntil, &l.FreezeReason, &l.CreatedAt, &l.UpdatedAt,
			&t.ID, &t.Code, &t.Name, &t.PriceRub, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt,
			&o.ID, &o.UserID, &o.Status, &o.TotalRub, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования аренды: %w", err)
		}
		it.Locker = &l
		it.Tariff = &t
		it.Order = &o
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindCurrentByLockers - последняя живая позиция на каждую из ячеек,
// для панели менеджера.
func (r *OrderItemRepository) FindCurrentByLockers(ctx context.Context, lockerIDs []string) (map[string]entities.OrderItem, error) {
	if len(lockerIDs) == 0 {
		return map[string]entities.OrderItem{}, nil
	}
	rows, err := r.storage.Query(ctx, `
		SELECT DISTINCT ON (oi.locker_id) `+itemColumns+`
		FROM order_items oi
		WHERE oi.locker_id = ANY($1) AND oi.status IN ('AWAITING_PAYMENT', 'ACTIVE', 'OVERDUE')
		ORDER BY oi.locker_id, oi.created_at DESC`, lockerIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения текущих аренд: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	result := make(map[string]entities.OrderItem, len(items))
	for _, it := range items {
		result[it.LockerID] = it
	}
	return result, nil
}

func (r *OrderItemRepository) Create(ctx context.Context, q Querier, item *entities.OrderItem) error {
	err := r.querier(q).QueryRow(ctx, `
		INSERT INTO order_items (id, order_id, locker_id, tariff_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		item.ID, item.OrderID, item.LockerID, item.TariffID, item.Status,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания позиции заказа: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) Delete(ctx context.Context, q Querier, id string) error {
	_, err := r.querier(q).Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции заказа: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) DeleteByOrder(ctx context.Context, q Querier, orderID string) error {
	_, err := r.querier(q).Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиций заказа: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) SetAwaitingPayment(ctx context.Context, q Querier, id string, startAt, endAt, holdUntil time.Time) error {
	_, err := r.querier(q).Exec(ctx, `
		UPDATE order_items
		SET status = 'AWAITING_PAYMENT', start_at = $2, end_at = $3, hold_until = $4, updated_at = now()
		WHERE id = $1`, id, startAt, endAt, holdUntil)
	if err != nil {
		return fmt.Errorf("ошибка перевода позиции в ожидание оплаты: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) SetHold(ctx context.Context, q Querier, id string, holdUntil time.Time) error {
	_, err := r.querier(q).Exec(ctx, `
		UPDATE order_items
		SET status = 'AWAITING_PAYMENT', hold_until = $2, updated_at = now()
		WHERE id = $1`, id, holdUntil)
	if err != nil {
		return fmt.Errorf("ошибка установки брони: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) ResetToCreated(ctx context.Context, q Querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.querier(q).Exec(ctx, `
		UPDATE order_items
		SET status = 'CREATED', hold_until = NULL, updated_at = now()
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("ошибка сброса позиций в CREATED: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) MarkActive(ctx context.Context, q Querier, id string, startAt, endAt time.Time) error {
	_, err := r.querier(q).Exec(ctx, `
		UPDATE order_items
		SET status = 'ACTIVE', start_at = $2, end_at = $3, hold_until = NULL, updated_at = now()
		WHERE id = $1`, id, startAt, endAt)
	if err != nil {
		return fmt.Errorf("ошибка активации позиции: %w", err)
	}
	return nil
}

// ExtendEnd продлевает аренду не трогая start_at.
func (r *OrderItemRepository) ExtendEnd(ctx context.Context, q Querier, id string, newEnd time.Time) error {
	_, err := r.querier(q).Exec(ctx, `
		UPDATE order_items
		SET status = 'ACTIVE', end_at = $2, updated_at = now()
		WHERE id = $1`, id, newEnd)
	if err != nil {
		return fmt.Errorf("ошибка продления позиции: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) SetStatus(ctx context.Context, q Querier, id string, status entities.OrderItemStatus) error {
	_, err := r.querier(q).Exec(ctx,
		`UPDATE order_items SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса позиции: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) SetStatusMany(ctx context.Context, q Querier, ids []string, status entities.OrderItemStatus) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.querier(q).Exec(ctx,
		`UPDATE order_items SET status = $2, updated_at = now() WHERE id = ANY($1)`, ids, status)
	if err != nil {
		return fmt.Errorf("ошибка массового обновления статуса позиций: %w", err)
	}
	return nil
}

func (r *OrderItemRepository) FindExpiredHolds(ctx context.Context, q Querier, now time.Time) ([]entities.OrderItem, error) {
	rows, err := r.querier(q).Query(ctx, `
		SELECT `+itemColumns+` FROM order_items oi
		WHERE oi.status = 'AWAITING_PAYMENT' AND oi.hold_until IS NOT NULL AND oi.hold_until < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших броней: %w", err)
	}
	return collectItems(rows)
}

// FindExpiredActive - активные позиции с истёкшим end_at, вместе с заказом
// (статус заказа решает, EXPIRED или OVERDUE).
func (r *OrderItemRepository) FindExpiredActive(ctx context.Context, q Querier, now time.Time) ([]entities.OrderItem, error) {
	rows, err := r.querier(q).Query(ctx, `
		SELECT `+itemColumns+`, o.id, o.user_id, o.status, o.total_rub, o.created_at, o.updated_at
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.status = 'ACTIVE' AND oi.end_at IS NOT NULL AND oi.end_at < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших аренд: %w", err)
	}
	defer rows.Close()

	items := make([]entities.OrderItem, 0)
	for rows.Next() {
		var it entities.OrderItem
		var o entities.Order
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.LockerID, &it.TariffID, &it.Status, &it.HoldUntil, &it.StartAt, &it.EndAt, &it.CreatedAt, &it.UpdatedAt,
			&o.ID, &o.UserID, &o.Status, &o.TotalRub, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования истёкшей аренды: %w", err)
		}
		it.Order = &o
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderItemRepository) FindUnpaidByLocker(ctx context.Context, q Querier, lockerID string) ([]entities.OrderItem, error) {
	rows, err := r.querier(q).Query(ctx, `
		SELECT `+itemColumns+` FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.locker_id = $1
		  AND oi.status IN ('AWAITING_PAYMENT', 'ACTIVE', 'OVERDUE')
		  AND o.status IN ('DRAFT', 'AWAITING_PAYMENT')`, lockerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска неоплаченных аренд: %w", err)
	}
	return collectItems(rows)
}
