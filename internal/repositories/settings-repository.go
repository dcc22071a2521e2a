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

type SettingsRepositoryInterface interface {
	Get(ctx context.Context, key string) (*entities.Setting, error)
	GetAll(ctx context.Context) ([]entities.Setting, error)
	Upsert(ctx context.Context, key string, value string) (*entities.Setting, error)
}

type SettingsRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewSettingsRepository(storage *pgxpool.Pool, logger *zap.Logger) SettingsRepositoryInterface {
	return &SettingsRepository{storage: storage, logger: logger}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (*entities.Setting, error) {
	var s entities.Setting
	err := r.storage.QueryRow(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения настройки %q: %w", key, err)
	}
	return &s, nil
}

func (r *SettingsRepository) GetAll(ctx context.Context) ([]entities.Setting, error) {
	rows, err := r.storage.Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	defer rows.Close()

	settings := make([]entities.Setting, 0)
	for rows.Next() {
		var s entities.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования настройки: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *SettingsRepository) Upsert(ctx context.Context, key string, value string) (*entities.Setting, error) {
	var s entities.Setting
	err := r.storage.QueryRow(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		RETURNING key, value, updated_at`, key, value,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения настройки %q: %w", key, err)
	}
	return &s, nil
}
