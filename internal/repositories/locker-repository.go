package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	apperrors "lockbox/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const lockerColumns = `id, number, status, device_id, freeze_until, freeze_reason, created_at, updated_at`

type LockerRepositoryInterface interface {
	GetLockers(ctx context.Context, filter dto.GetLockersQueryDTO) ([]entities.Locker, error)
	FindByID(ctx context.Context, q Querier, id string) (*entities.Locker, error)
	FindByNumber(ctx context.Context, deviceID string, number int) (*entities.Locker, error)
	Create(ctx context.Context, locker *entities.Locker) error
	Update(ctx context.Context, id string, upd dto.UpdateLockerDTO) error
	Delete(ctx context.Context, id string) error

	// TryHold - условное обновление FREE->HELD. Ноль затронутых строк
	// означает, что ячейку успел занять конкурирующий запрос.
	TryHold(ctx context.Context, q Querier, lockerID string) (bool, error)
	TryHoldFromHeld(ctx context.Context, q Querier, lockerID string) (bool, error)
	UpdateStatus(ctx context.Context, q Querier, lockerID string, status entities.LockerStatus) error
	UpdateStatusMany(ctx context.Context, q Querier, lockerIDs []string, status entities.LockerStatus) error

	SetFrozen(ctx context.Context, lockerID string, until *time.Time, reason *string) error
	ClearFreeze(ctx context.Context, lockerID string) error
	ReleaseExpiredFreezes(ctx context.Context) (int64, error)
}

type LockerRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewLockerRepository(storage *pgxpool.Pool, logger *zap.Logger) LockerRepositoryInterface {
	return &LockerRepository{storage: storage, logger: logger}
}

func scanLocker(row pgx.Row) (*entities.Locker, error) {
	var l entities.Locker
	err := row.Scan(&l.ID, &l.Number, &l.Status, &l.DeviceID, &l.FreezeUntil, &l.FreezeReason, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования ячейки: %w", err)
	}
	return &l, nil
}

func (r *LockerRepository) GetLockers(ctx context.Context, filter dto.GetLockersQueryDTO) ([]entities.Locker, error) {
	builder := sq.Select(lockerColumns).
		From("lockers").
		OrderBy("number ASC").
		PlaceholderFormat(sq.Dollar)

	if len(filter.Status) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Search != "" {
		if number, err := strconv.Atoi(filter.Search); err == nil {
			builder = builder.Where(sq.Eq{"number": number})
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса списка ячеек: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ячеек: %w", err)
	}
	defer rows.Close()

	lockers := make([]entities.Locker, 0)
	for rows.Next() {
		var l entities.Locker
		if err := rows.Scan(&l.ID, &l.Number, &l.Status, &l.DeviceID, &l.FreezeUntil, &l.FreezeReason, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ячейки в списке: %w", err)
		}
		lockers = append(lockers, l)
	}
	return lockers, rows.Err()
}

func (r *LockerRepository) FindByID(ctx context.Context, q Querier, id string) (*entities.Locker, error) {
	if q == nil {
		q = r.storage
	}
	return scanLocker(q.QueryRow(ctx, `SELECT `+lockerColumns+` FROM lockers WHERE id = $1`, id))
}

func (r *LockerRepository) FindByNumber(ctx context.Context, deviceID string, number int) (*entities.Locker, error) {
	return scanLocker(r.storage.QueryRow(ctx,
		`SELECT `+lockerColumns+` FROM lockers WHERE device_id = $1 AND number = $2`, deviceID, number))
}

func (r *LockerRepository) Create(ctx context.Context, locker *entities.Locker) error {
	err := r.storage.QueryRow(ctx, `
		INSERT INTO lockers (id, number, status, device_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		locker.ID, locker.Number, locker.Status, locker.DeviceID,
	).Scan(&locker.CreatedAt, &locker.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.NewConflictError("Ячейка с таким номером уже существует")
		}
		return fmt.Errorf("ошибка создания ячейки: %w", err)
	}
	return nil
}

func (r *LockerRepository) Update(ctx context.Context, id string, upd dto.UpdateLockerDTO) error {
	builder := sq.Update("lockers").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)

	if upd.Status != nil {
		builder = builder.Set("status", *upd.Status)
	}
	if upd.DeviceID != nil {
		builder = builder.Set("device_id", *upd.DeviceID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса обновления ячейки: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления ячейки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LockerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.storage.Exec(ctx, `DELETE FROM lockers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		// FK RESTRICT: ячейку с историей аренд удалять нельзя.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.NewConflictError("Нельзя удалить ячейку, на которую ссылаются аренды")
		}
		return fmt.Errorf("ошибка удаления ячейки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LockerRepository) TryHold(ctx context.Context, q Querier, lockerID string) (bool, error) {
	if q == nil {
		q = r.storage
	}
	tag, err := q.Exec(ctx,
		`UPDATE lockers SET status = 'HELD', updated_at = now() WHERE id = $1 AND status = 'FREE'`, lockerID)
	if err != nil {
		return false, fmt.Errorf("ошибка захвата ячейки: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TryHoldFromHeld перезахватывает HELD-ячейку, чья бронь уже истекла.
// Живость конкурирующей брони проверяет вызывающая сторона.
func (r *LockerRepository) TryHoldFromHeld(ctx context.Context, q Querier, lockerID string) (bool, error) {
	if q == nil {
		q = r.storage
	}
	tag, err := q.Exec(ctx,
		`UPDATE lockers SET status = 'HELD', updated_at = now() WHERE id = $1 AND status IN ('FREE', 'HELD')`, lockerID)
	if err != nil {
		return false, fmt.Errorf("ошибка перезахвата ячейки: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LockerRepository) UpdateStatus(ctx context.Context, q Querier, lockerID string, status entities.LockerStatus) error {
	if q == nil {
		q = r.storage
	}
	_, err := q.Exec(ctx, `UPDATE lockers SET status = $2, updated_at = now() WHERE id = $1`, lockerID, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса ячейки: %w", err)
	}
	return nil
}

func (r *LockerRepository) UpdateStatusMany(ctx context.Context, q Querier, lockerIDs []string, status entities.LockerStatus) error {
	if len(lockerIDs) == 0 {
		return nil
	}
	if q == nil {
		q = r.storage
	}
	_, err := q.Exec(ctx, `UPDATE lockers SET status = $2, updated_at = now() WHERE id = ANY($1)`, lockerIDs, status)
	if err != nil {
		return fmt.Errorf("ошибка массового обновления статуса ячеек: %w", err)
	}
	return nil
}

func (r *LockerRepository) SetFrozen(ctx context.Context, lockerID string, until *time.Time, reason *string) error {
	tag, err := r.storage.Exec(ctx, `
		UPDATE lockers
		SET status = 'FROZEN', freeze_until = $2, freeze_reason = $3, updated_at = now()
		WHERE id = $1`, lockerID, until, reason)
	if err != nil {
		return fmt.Errorf("ошибка заморозки ячейки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LockerRepository) ClearFreeze(ctx context.Context, lockerID string) error {
	tag, err := r.storage.Exec(ctx, `
		UPDATE lockers
		SET status = 'FREE', freeze_until = NULL, freeze_reason = NULL, updated_at = now()
		WHERE id = $1`, lockerID)
	if err != nil {
		return fmt.Errorf("ошибка разморозки ячейки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LockerRepository) ReleaseExpiredFreezes(ctx context.Context) (int64, error) {
	tag, err := r.storage.Exec(ctx, `
		UPDATE lockers
		SET status = 'FREE', freeze_until = NULL, freeze_reason = NULL, updated_at = now()
		WHERE status = 'FROZEN' AND freeze_until IS NOT NULL AND freeze_until < now()`)
	if err != nil {
		return 0, fmt.Errorf("ошибка снятия истёкших заморозок: %w", err)
	}
	return tag.RowsAffected(), nil
}
