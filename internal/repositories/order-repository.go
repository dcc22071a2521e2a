package repositories

import (
	"context"
	"errors"
	"fmt"

	"lockbox/internal/entities"
	apperrors "lockbox/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const orderColumns = `id, user_id, status, total_rub, created_at, updated_at`

type OrderRepositoryInterface interface {
	FindByID(ctx context.Context, q Querier, id string) (*entities.Order, error)
	FindDraftByUser(ctx context.Context, q Querier, userID string) (*entities.Order, error)
	Create(ctx context.Context, q Querier, order *entities.Order) error
	UpdateStatus(ctx context.Context, q Querier, id string, status entities.OrderStatus) error
	IncrementTotal(ctx context.Context, q Querier, id string, deltaRub int) error
	RecalculateTotal(ctx context.Context, q Querier, id string) (int, error)
	Delete(ctx context.Context, q Querier, id string) error

	// DemoteStaleAwaiting возвращает в DRAFT заказы из списка, в которых не
	// осталось ни одной позиции в AWAITING_PAYMENT.
	DemoteStaleAwaiting(ctx context.Context, q Querier, orderIDs []string) error
}

type OrderRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrderRepository(storage *pgxpool.Pool, logger *zap.Logger) OrderRepositoryInterface {
	return &OrderRepository{storage: storage, logger: logger}
}

func (r *OrderRepository) querier(q Querier) Querier {
	if q == nil {
		return r.storage
	}
	return q
}

func scanOrder(row pgx.Row) (*entities.Order, error) {
	var o entities.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalRub, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования заказа: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, q Querier, id string) (*entities.Order, error) {
	return scanOrder(r.querier(q).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *OrderRepository) FindDraftByUser(ctx context.Context, q Querier, userID string) (*entities.Order, error) {
	return scanOrder(r.querier(q).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND status = 'DRAFT' ORDER BY created_at DESC LIMIT 1`, userID))
}

func (r *OrderRepository) Create(ctx context.Context, q Querier, order *entities.Order) error {
	err := r.querier(q).QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, total_rub)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.Status, order.TotalRub,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания заказа: %w", err)
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, q Querier, id string, status entities.OrderStatus) error {
	_, err := r.querier(q).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}
	return nil
}

func (r *OrderRepository) IncrementTotal(ctx context.Context, q Querier, id string, deltaRub int) error {
	_, err := r.querier(q).Exec(ctx,
		`UPDATE orders SET total_rub = total_rub + $2, updated_at = now() WHERE id = $1`, id, deltaRub)
	if err != nil {
		return fmt.Errorf("ошибка изменения суммы заказа: %w", err)
	}
	return nil
}

// RecalculateTotal пересчитывает сумму заказа как сумму тарифов его позиций.
func (r *OrderRepository) RecalculateTotal(ctx context.Context, q Querier, id string) (int, error) {
	var total int
	err := r.querier(q).QueryRow(ctx, `
		UPDATE orders o
		SET total_rub = COALESCE((
			SELECT SUM(t.price_rub)
			FROM order_items oi
			JOIN tariffs t ON t.id = oi.tariff_id
			WHERE oi.order_id = o.id
		), 0), updated_at = now()
		WHERE o.id = $1
		RETURNING total_rub`, id).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка пересчёта суммы заказа: %w", err)
	}
	return total, nil
}

func (r *OrderRepository) Delete(ctx context.Context, q Querier, id string) error {
	_, err := r.querier(q).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления заказа: %w", err)
	}
	return nil
}

func (r *OrderRepository) DemoteStaleAwaiting(ctx context.Context, q Querier, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	_, err := r.querier(q).Exec(ctx, `
		UPDATE orders o
		SET status = 'DRAFT', updated_at = now()
		WHERE o.id = ANY($1)
		  AND o.status = 'AWAITING_PAYMENT'
		  AND NOT EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = o.id AND oi.status = 'AWAITING_PAYMENT'
		  )`, orderIDs)
	if err != nil {
		return fmt.Errorf("ошибка возврата заказов в черновик: %w", err)
	}
	return nil
}
