package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type RevenueRow struct {
	Day       time.Time
	Payments  int
	AmountRub int
}

type StatusCountRow struct {
	Status string
	Count  int
}

type LockerUsageRow struct {
	Number  int
	Rentals int
}

type ReportRepositoryInterface interface {
	RevenueByDay(ctx context.Context, from, to time.Time) ([]RevenueRow, error)
	RentalsByStatus(ctx context.Context) ([]StatusCountRow, error)
	BusiestLockers(ctx context.Context, from, to time.Time, limit int) ([]LockerUsageRow, error)
}

type ReportRepository struct {
	storage *pgxpool.Pool
}

func NewReportRepository(storage *pgxpool.Pool) ReportRepositoryInterface {
	return &ReportRepository{storage: storage}
}

func (r *ReportRepository) RevenueByDay(ctx context.Context, from, to time.Time) ([]RevenueRow, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT date_trunc('day', updated_at) AS day, count(*), COALESCE(sum(amount_rub), 0)
		FROM payments
		WHERE status = 'SUCCEEDED' AND updated_at >= $1 AND updated_at < $2
		GROUP BY day
		ORDER BY day`, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения отчёта по выручке: %w", err)
	}
	defer rows.Close()

	result := make([]RevenueRow, 0)
	for rows.Next() {
		var row RevenueRow
		if err := rows.Scan(&row.Day, &row.Payments, &row.AmountRub); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки отчёта: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *ReportRepository) RentalsByStatus(ctx context.Context) ([]StatusCountRow, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT status, count(*) FROM order_items GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения отчёта по арендам: %w", err)
	}
	defer rows.Close()

	result := make([]StatusCountRow, 0)
	for rows.Next() {
		var row StatusCountRow
		if err := rows.Scan(&row.Status, &row.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки отчёта: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *ReportRepository) BusiestLockers(ctx context.Context, from, to time.Time, limit int) ([]LockerUsageRow, error) {
	rows, err := r.storage.Query(ctx, `
		SELECT l.number, count(oi.id) AS rentals
		FROM order_items oi
		JOIN lockers l ON l.id = oi.locker_id
		WHERE oi.created_at >= $1 AND oi.created_at < $2
		GROUP BY l.number
		ORDER BY rentals DESC, l.number
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения отчёта по загрузке ячеек: %w", err)
	}
	defer rows.Close()

	result := make([]LockerUsageRow, 0)
	for rows.Next() {
		var row LockerUsageRow
		if err := rows.Scan(&row.Number, &row.Rentals); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки отчёта: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
