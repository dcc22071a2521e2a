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

type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*entities.User, error)
	FindByPhone(ctx context.Context, phone string) (*entities.User, error)
	UpsertByPhone(ctx context.Context, id string, phone string) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error

	CreateOtp(ctx context.Context, otp *entities.OtpRequest) error
	FindActiveOtp(ctx context.Context, phone string, now time.Time) (*entities.OtpRequest, error)
	CountRecentOtp(ctx context.Context, phone string, since time.Time) (int, error)
	IncrementOtpAttempts(ctx context.Context, id string) (int, error)
	ConsumeOtp(ctx context.Context, id string) error
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

const userColumns = `id, phone, role, password_hash, created_at`

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(&u.ID, &u.Phone, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entities.User, error) {
	return scanUser(r.storage.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*entities.User, error) {
	return scanUser(r.storage.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// UpsertByPhone находит или создаёт пользователя по номеру телефона.
// Роль существующего пользователя при этом не меняется.
func (r *UserRepository) UpsertByPhone(ctx context.Context, id string, phone string) (*entities.User, error) {
	return scanUser(r.storage.QueryRow(ctx, `
		INSERT INTO users (id, phone, role)
		VALUES ($1, $2, 'USER')
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING `+userColumns, id, phone))
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	err := r.storage.QueryRow(ctx, `
		INSERT INTO users (id, phone, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		user.ID, user.Phone, user.Role, user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("Пользователь с таким телефоном уже существует")
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *UserRepository) CreateOtp(ctx context.Context, otp *entities.OtpRequest) error {
	err := r.storage.QueryRow(ctx, `
		INSERT INTO otp_requests (id, phone, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		otp.ID, otp.Phone, otp.CodeHash, otp.ExpiresAt,
	).Scan(&otp.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания OTP-запроса: %w", err)
	}
	return nil
}

func (r *UserRepository) FindActiveOtp(ctx context.Context, phone string, now time.Time) (*entities.OtpRequest, error) {
	var o entities.OtpRequest
	err := r.storage.QueryRow(ctx, `
		SELECT id, phone, code_hash, attempts, expires_at, consumed_at, created_at
		FROM otp_requests
		WHERE phone = $1 AND consumed_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, phone, now,
	).Scan(&o.ID, &o.Phone, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.ConsumedAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска OTP-запроса: %w", err)
	}
	return &o, nil
}

func (r *UserRepository) CountRecentOtp(ctx context.Context, phone string, since time.Time) (int, error) {
	var count int
	err := r.storage.QueryRow(ctx,
		`SELECT count(*) FROM otp_requests WHERE phone = $1 AND created_at >= $2`, phone, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта OTP-запросов: %w", err)
	}
	return count, nil
}

func (r *UserRepository) IncrementOtpAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.storage.QueryRow(ctx,
		`UPDATE otp_requests SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("ошибка учёта попытки ввода OTP: %w", err)
	}
	return attempts, nil
}

func (r *UserRepository) ConsumeOtp(ctx context.Context, id string) error {
	_, err := r.storage.Exec(ctx,
		`UPDATE otp_requests SET consumed_at = now() WHERE id = $1 AND consumed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("ошибка погашения OTP-запроса: %w", err)
	}
	return nil
}
