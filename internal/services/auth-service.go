package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxOtpAttempts = 5

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
}

type AuthServiceInterface interface {
	// Login - вход по телефону и паролю. Персонал входит по своему
	// bcrypt-паролю, остальные - по общему статическому паролю киоска.
	Login(ctx context.Context, payload dto.LoginDTO) (*entities.User, *AuthTokens, error)
	StartOtp(ctx context.Context, payload dto.StartOtpDTO) error
	VerifyOtp(ctx context.Context, payload dto.VerifyOtpDTO) (*entities.User, *AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*entities.User, *AuthTokens, error)
	GetSession(ctx context.Context, userID string) (*dto.SessionDTO, error)
}

type AuthService struct {
	userRepo   repositories.UserRepositoryInterface
	jwtService service.JWTService
	cfg        *config.Config
	logger     *zap.Logger
}

func NewAuthService(
	userRepo repositories.UserRepositoryInterface,
	jwtService service.JWTService,
	cfg *config.Config,
	logger *zap.Logger,
) AuthServiceInterface {
	return &AuthService{userRepo: userRepo, jwtService: jwtService, cfg: cfg, logger: logger}
}

func (s *AuthService) issueTokens(user *entities.User) (*AuthTokens, error) {
	access, refresh, err := s.jwtService.GenerateTokens(user)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска токенов: %w", err)
	}
	return &AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) Login(ctx context.Context, payload dto.LoginDTO) (*entities.User, *AuthTokens, error) {
	user, err := s.userRepo.FindByPhone(ctx, payload.Phone)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, nil, err
	}

	if user != nil && user.PasswordHash != nil {
		if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(payload.Password)) != nil {
			return nil, nil, apperrors.NewUnauthorizedError("Неверный телефон или пароль")
		}
	} else {
		if subtle.ConstantTimeCompare([]byte(payload.Password), []byte(s.cfg.Auth.StaticPassword)) != 1 {
			return nil, nil, apperrors.NewUnauthorizedError("Неверный телефон или пароль")
		}
		user, err = s.userRepo.UpsertByPhone(ctx, uuid.NewString(), payload.Phone)
		if err != nil {
			return nil, nil, err
		}
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("пользователь вошёл по паролю",
		zap.String("userId", user.ID), zap.String("role", string(user.Role)))
	return user, tokens, nil
}

func hashOtpCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("ошибка генерации OTP-кода: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

func (s *AuthService) StartOtp(ctx context.Context, payload dto.StartOtpDTO) error {
	since := time.Now().Add(-s.cfg.Auth.OTPRateLimitWindow)
	count, err := s.userRepo.CountRecentOtp(ctx, payload.Phone, since)
	if err != nil {
		return err
	}
	if count >= s.cfg.Auth.OTPRateLimitCount {
		return apperrors.NewConflictError("Слишком много запросов кода, попробуйте позже")
	}

	code, err := generateOtpCode()
	if err != nil {
		return err
	}
	otp := &entities.OtpRequest{
		ID:        uuid.NewString(),
		Phone:     payload.Phone,
		CodeHash:  hashOtpCode(code),
		ExpiresAt: time.Now().Add(s.cfg.Auth.OTPTTL),
	}
	if err := s.userRepo.CreateOtp(ctx, otp); err != nil {
		return err
	}

	// SMS-шлюза нет, код уходит в лог. TODO: подключить шлюз перед выкаткой
	// на реальные киоски.
	s.logger.Info("отправлен OTP-код", zap.String("phone", payload.Phone), zap.String("code", code))
	return nil
}

func (s *AuthService) VerifyOtp(ctx context.Context, payload dto.VerifyOtpDTO) (*entities.User, *AuthTokens, error) {
	otp, err := s.userRepo.FindActiveOtp(ctx, payload.Phone, time.Now())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewUnauthorizedError("Код не запрашивался или истёк")
		}
		return nil, nil, err
	}

	attempts, err := s.userRepo.IncrementOtpAttempts(ctx, otp.ID)
	if err != nil {
		return nil, nil, err
	}
	if attempts > maxOtpAttempts {
		return nil, nil, apperrors.NewUnauthorizedError("Превышено число попыток, запросите новый код")
	}

	if subtle.ConstantTimeCompare([]byte(hashOtpCode(payload.Code)), []byte(otp.CodeHash)) != 1 {
		return nil, nil, apperrors.NewUnauthorizedError("Неверный код")
	}
	if err := s.userRepo.ConsumeOtp(ctx, otp.ID); err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.UpsertByPhone(ctx, uuid.NewString(), payload.Phone)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("пользователь вошёл по OTP", zap.String("userId", user.ID))
	return user, tokens, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*entities.User, *AuthTokens, error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil {
		return nil, nil, apperrors.NewUnauthorizedError("Недействительный refresh-токен")
	}
	if !claims.IsRefreshToken {
		return nil, nil, apperrors.NewUnauthorizedError("Ожидался refresh-токен")
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewUnauthorizedError("Пользователь не найден")
		}
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) GetSession(ctx context.Context, userID string) (*dto.SessionDTO, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.SessionDTO{UserID: user.ID, Phone: user.Phone, Role: string(user.Role)}, nil
}
