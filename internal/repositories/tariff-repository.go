package repositories

import (
	"context"
	"errors"
	"fmt"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	apperrors "lockbox/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tariffColumns = `id, code, name, price_rub, duration_minutes, active, created_at, updated_at`

type TariffRepositoryInterface interface {
	GetTariffs(ctx context.Context, onlyActive bool) ([]entities.Tariff, error)
	FindByID(ctx context.Context, q Querier, id string) (*entities.Tariff, error)
	FindDefault(ctx context.Context) (*entities.Tariff, error)
	Create(ctx context.Context, tariff *entities.Tariff) error
	Update(ctx context.Context, id string, upd dto.UpdateTariffDTO) error
}

type TariffRepository struct {
	storage *pgxpool.Pool
}

func NewTariffRepository(storage *pgxpool.Pool) TariffRepositoryInterface {
	return &TariffRepository{storage: storage}
}

func scanTariff(row pgx.Row) (*entities.Tariff, error) {
	var t entities.Tariff
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.PriceRub, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования тарифа: %w", err)
	}
	return &t, nil
}

func (r *TariffRepository) GetTariffs(ctx context.Context, onlyActive bool) ([]entities.Tariff, error) {
	builder := sq.Select(tariffColumns).From("tariffs").OrderBy("duration_minutes ASC").PlaceholderFormat(sq.Dollar)
	if onlyActive {
		builder = builder.Where(sq.Eq{"active": true})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса тарифов: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тарифов: %w", err)
	}
	defer rows.Close()

	tariffs := make([]entities.Tariff, 0)
	for rows.Next() {
		var t entities.Tariff
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.PriceRub, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования тарифа в списке: %w", err)
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, rows.Err()
}

func (r *TariffRepository) FindByID(ctx context.Context, q Querier, id string) (*entities.Tariff, error) {
	if q == nil {
		q = r.storage
	}
	return scanTariff(q.QueryRow(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE id = $1`, id))
}

// FindDefault - самый дешёвый активный тариф.
func (r *TariffRepository) FindDefault(ctx context.Context) (*entities.Tariff, error) {
	return scanTariff(r.storage.QueryRow(ctx,
		`SELECT `+tariffColumns+` FROM tariffs WHERE active = true ORDER BY price_rub ASC LIMIT 1`))
}

func (r *TariffRepository) Create(ctx context.Context, tariff *entities.Tariff) error {
	err := r.storage.QueryRow(ctx, `
		INSERT INTO tariffs (id, code, name, price_rub, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		tariff.ID, tariff.Code, tariff.Name, tariff.PriceRub, tariff.DurationMinutes, tariff.Active,
	).Scan(&tariff.CreatedAt, &tariff.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания тарифа: %w", err)
	}
	return nil
}

func (r *TariffRepository) Update(ctx context.Context, id string, upd dto.UpdateTariffDTO) error {
	builder := sq.Update("tariffs").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)

	if upd.Name != nil {
		builder = builder.Set("name", *upd.Name)
	}
	if upd.PriceRub != nil {
		builder = builder.Set("price_rub", *upd.PriceRub)
	}
	if upd.DurationMinutes != nil {
		builder = builder.Set("duration_minutes", *upd.DurationMinutes)
	}
	if upd.Active != nil {
		builder = builder.Set("active", *upd.Active)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса обновления тарифа: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления тарифа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
