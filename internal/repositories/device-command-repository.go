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

type DeviceCommandRepositoryInterface interface {
	Create(ctx context.Context, q Querier, cmd *entities.DeviceCommand) error
	FindPendingByDevice(ctx context.Context, deviceID string, now time.Time) ([]entities.DeviceCommand, error)
	ConfirmPending(ctx context.Context, deviceID string, lockerNumber int, now time.Time) (*entities.DeviceCommand, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type DeviceCommandRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewDeviceCommandRepository(storage *pgxpool.Pool, logger *zap.Logger) DeviceCommandRepositoryInterface {
	return &DeviceCommandRepository{storage: storage, logger: logger}
}

func (r *DeviceCommandRepository) querier(q Querier) Querier {
	if q == nil {
		return r.storage
	}
	return q
}

func (r *DeviceCommandRepository) Create(ctx context.Context, q Querier, cmd *entities.DeviceCommand) error {
	err := r.querier(q).QueryRow(ctx, `
		INSERT INTO device_commands (id, device_id, locker_number, command, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		cmd.ID, cmd.DeviceID, cmd.LockerNumber, cmd.Command, cmd.Status, cmd.ExpiresAt,
	).Scan(&cmd.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания команды контроллера: %w", err)
	}
	return nil
}

func (r *DeviceCommandRepository) FindPendingByDevice(ctx context.Context, deviceID string, now time.Time) ([]entities.DeviceCommand, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT id, device_id, locker_number, command, status, expires_at, confirmed_at, created_at
		FROM device_commands
		WHERE device_id = $1 AND status = 'PENDING' AND expires_at > $2
		ORDER BY created_at`, deviceID, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения команд контроллера: %w", err)
	}
	defer rows.Close()

	commands := make([]entities.DeviceCommand, 0)
	for rows.Next() {
		var c entities.DeviceCommand
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.LockerNumber, &c.Command, &c.Status, &c.ExpiresAt, &c.ConfirmedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования команды контроллера: %w", err)
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// ConfirmPending закрывает самую старую ожидающую команду для ячейки.
// Подтверждение просроченной команды не проходит.
func (r *DeviceCommandRepository) ConfirmPending(ctx context.Context, deviceID string, lockerNumber int, now time.Time) (*entities.DeviceCommand, error) {
	var c entities.DeviceCommand
	err := r.storage.QueryRow(ctx, `
		UPDATE device_commands
		SET status = 'CONFIRMED', confirmed_at = $3
		WHERE id = (
			SELECT id FROM device_commands
			WHERE device_id = $1 AND locker_number = $2 AND status = 'PENDING' AND expires_at > $3
			ORDER BY created_at
			LIMIT 1
		)
		RETURNING id, device_id, locker_number, command, status, expires_at, confirmed_at, created_at`,
		deviceID, lockerNumber, now,
	).Scan(&c.ID, &c.DeviceID, &c.LockerNumber, &c.Command, &c.Status, &c.ExpiresAt, &c.ConfirmedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка подтверждения команды контроллера: %w", err)
	}
	return &c, nil
}

func (r *DeviceCommandRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.storage.Exec(ctx,
		`UPDATE device_commands SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка просрочки команд контроллера: %w", err)
	}
	return tag.RowsAffected(), nil
}
