package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lockbox/internal/entities"
	apperrors "lockbox/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const paymentColumns = `id, order_id, status, amount_rub, intent, provider_payment_id, payload, created_at, updated_at`

type PaymentRepositoryInterface interface {
	FindByID(ctx context.Context, q Querier, id string) (*entities.Payment, error)
	FindByProviderID(ctx context.Context, providerPaymentID string) (*entities.Payment, error)
	FindLatestByOrder(ctx context.Context, orderID string) (*entities.Payment, error)
	FindSucceededByOrder(ctx context.Context, q Querier, orderID string) ([]entities.Payment, error)
	Create(ctx context.Context, payment *entities.Payment) error
	SetProviderData(ctx context.Context, id string, providerPaymentID string, payload json.RawMessage) error

	// MarkSucceeded - условный переход CREATED->SUCCEEDED. Ноль затронутых
	// строк означает, что платёж уже обработан (или отменён) - активацию
	// повторять нельзя.
	MarkSucceeded(ctx context.Context, q Querier, id string, providerPayload json.RawMessage) (bool, error)
	MarkCanceled(ctx context.Context, id string) error
	DeleteByOrder(ctx context.Context, q Querier, orderID string) error
}

type PaymentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewPaymentRepository(storage *pgxpool.Pool, logger *zap.Logger) PaymentRepositoryInterface {
	return &PaymentRepository{storage: storage, logger: logger}
}

func (r *PaymentRepository) querier(q Querier) Querier {
	if q == nil {
		return r.storage
	}
	return q
}

func scanPayment(row pgx.Row) (*entities.Payment, error) {
	var p entities.Payment
	var intentRaw []byte
	err := row.Scan(&p.ID, &p.OrderID, &p.Status, &p.AmountRub, &intentRaw, &p.ProviderPaymentID, &p.Payload, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования платежа: %w", err)
	}
	if p.Intent, err = entities.ParsePaymentIntent(intentRaw); err != nil {
		return nil, fmt.Errorf("ошибка разбора назначения платежа: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, q Querier, id string) (*entities.Payment, error) {
	return scanPayment(r.querier(q).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *PaymentRepository) FindByProviderID(ctx context.Context, providerPaymentID string) (*entities.Payment, error) {
	return scanPayment(r.storage.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_payment_id = $1`, providerPaymentID))
}

func (r *PaymentRepository) FindLatestByOrder(ctx context.Context, orderID string) (*entities.Payment, error) {
	return scanPayment(r.storage.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

func (r *PaymentRepository) FindSucceededByOrder(ctx context.Context, q Querier, orderID string) ([]entities.Payment, error) {
	rows, err := r.querier(q).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 AND status = 'SUCCEEDED' ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей заказа: %w", err)
	}
	defer rows.Close()

	payments := make([]entities.Payment, 0)
	for rows.Next() {
		var p entities.Payment
		var intentRaw []byte
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Status, &p.AmountRub, &intentRaw, &p.ProviderPaymentID, &p.Payload, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования платежа в списке: %w", err)
		}
		if p.Intent, err = entities.ParsePaymentIntent(intentRaw); err != nil {
			return nil, fmt.Errorf("ошибка разбора назначения платежа: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entities.Payment) error {
	intentRaw, err := payment.Intent.Marshal()
	if err != nil {
		return fmt.Errorf("ошибка сериализации назначения платежа: %w", err)
	}
	err = r.storage.QueryRow(ctx, `
		INSERT INTO payments (id, order_id, status, amount_rub, intent, provider_payment_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		payment.ID, payment.OrderID, payment.Status, payment.AmountRub, intentRaw, payment.ProviderPaymentID, payment.Payload,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания платежа: %w", err)
	}
	return nil
}

// SetProviderData сохраняет идентификатор и ответ провайдера. Колонка intent
// намеренно не трогается.
func (r *PaymentRepository) SetProviderData(ctx context.Context, id string, providerPaymentID string, payload json.RawMessage) error {
	_, err := r.storage.Exec(ctx, `
		UPDATE payments
		SET provider_payment_id = $2, payload = $3, updated_at = now()
		WHERE id = $1`, id, providerPaymentID, payload)
	if err != nil {
		return fmt.Errorf("ошибка сохранения данных провайдера: %w", err)
	}
	return nil
}

func (r *PaymentRepository) MarkSucceeded(ctx context.Context, q Querier, id string, providerPayload json.RawMessage) (bool, error) {
	tag, err := r.querier(q).Exec(ctx, `
		UPDATE payments
		SET status = 'SUCCEEDED', payload = COALESCE($2, payload), updated_at = now()
		WHERE id = $1 AND status = 'CREATED'`, id, providerPayload)
	if err != nil {
		return false, fmt.Errorf("ошибка подтверждения платежа: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) MarkCanceled(ctx context.Context, id string) error {
	_, err := r.storage.Exec(ctx,
		`UPDATE payments SET status = 'CANCELED', updated_at = now() WHERE id = $1 AND status = 'CREATED'`, id)
	if err != nil {
		return fmt.Errorf("ошибка отмены платежа: %w", err)
	}
	return nil
}

func (r *PaymentRepository) DeleteByOrder(ctx context.Context, q Querier, orderID string) error {
	_, err := r.querier(q).Exec(ctx, `DELETE FROM payments WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("ошибка удаления платежей заказа: %w", err)
	}
	return nil
}
