package repositories

import (
	"context"
	"fmt"

	"lockbox/internal/dto"
	"lockbox/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const auditQueryLimit = 500

const auditColumns = `id, timestamp, actor_type, actor_id, action, locker_id, order_id, order_item_id, payment_id, user_id, phone, ip, user_agent, metadata`

type AuditRepositoryInterface interface {
	Create(ctx context.Context, q Querier, log *entities.AuditLog) error
	Query(ctx context.Context, filter dto.AuditQueryDTO) ([]entities.AuditLog, error)
}

type AuditRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewAuditRepository(storage *pgxpool.Pool, logger *zap.Logger) AuditRepositoryInterface {
	return &AuditRepository{storage: storage, logger: logger}
}

func (r *AuditRepository) querier(q Querier) Querier {
	if q == nil {
		return r.storage
	}
	return q
}

// Create пишет запись журнала. Журнал только пополняется, обновлений и
// удалений у него нет.
func (r *AuditRepository) Create(ctx context.Context, q Querier, log *entities.AuditLog) error {
	err := r.querier(q).QueryRow(ctx, `
		INSERT INTO audit_logs (id, actor_type, actor_id, action, locker_id, order_id, order_item_id, payment_id, user_id, phone, ip, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING timestamp`,
		log.ID, log.ActorType, log.ActorID, log.Action, log.LockerID, log.OrderID, log.OrderItemID,
		log.PaymentID, log.UserID, log.Phone, log.IP, log.UserAgent, log.Metadata,
	).Scan(&log.Timestamp)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал аудита: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, filter dto.AuditQueryDTO) ([]entities.AuditLog, error) {
	builder := sq.Select(auditColumns).
		From("audit_logs").
		PlaceholderFormat(sq.Dollar)

	if filter.Action != "" {
		builder = builder.Where(sq.Eq{"action": filter.Action})
	}
	if filter.LockerID != "" {
		builder = builder.Where(sq.Eq{"locker_id": filter.LockerID})
	}
	if filter.UserPhone != "" {
		builder = builder.Where(sq.Eq{"phone": filter.UserPhone})
	}
	if filter.ManagerID != "" {
		builder = builder.Where(sq.Eq{"actor_id": filter.ManagerID}).
			Where(sq.Eq{"actor_type": []entities.ActorType{entities.ActorTypeManager, entities.ActorTypeAdmin}})
	}
	if filter.OnlyPaidOpens {
		builder = builder.Where(sq.Eq{"action": entities.AuditActionLockerOpen}).
			Where(sq.Expr("metadata->>'source' = ?", string(entities.OpenSourcePaid)))
	}
	if filter.OnlyAdminOpens {
		builder = builder.Where(sq.Eq{"action": entities.AuditActionLockerOpen}).
			Where(sq.Expr("metadata->>'source' = ?", string(entities.OpenSourceAdmin)))
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"timestamp": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.LtOrEq{"timestamp": *filter.To})
	}

	query, args, err := builder.OrderBy("timestamp DESC").Limit(auditQueryLimit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса журнала аудита: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала аудита: %w", err)
	}
	defer rows.Close()

	logs := make([]entities.AuditLog, 0)
	for rows.Next() {
		var l entities.AuditLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.ActorType, &l.ActorID, &l.Action, &l.LockerID, &l.OrderID,
			&l.OrderItemID, &l.PaymentID, &l.UserID, &l.Phone, &l.IP, &l.UserAgent, &l.Metadata); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
