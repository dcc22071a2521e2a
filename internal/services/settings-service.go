package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	apperrors "lockbox/pkg/errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Льготные периоды по умолчанию, пока админ не переопределил их в настройках.
const (
	DefaultGraceHourlyMinutes = 15
	DefaultGraceDailyMinutes  = 120
)

const settingsCacheTTL = time.Minute

func gracePeriodKey(code entities.TariffCode) string {
	return "grace_period_minutes:" + string(code)
}

type SettingsServiceInterface interface {
	GetAll(ctx context.Context) ([]entities.Setting, error)
	Update(ctx context.Context, payload dto.UpdateSettingDTO) (*entities.Setting, error)
	GracePeriodMinutes(ctx context.Context, code entities.TariffCode) int
	SetGracePeriod(ctx context.Context, payload dto.GracePeriodDTO) (*entities.Setting, error)
}

type SettingsService struct {
	settingsRepo repositories.SettingsRepositoryInterface
	redisClient  *redis.Client
	logger       *zap.Logger
}

func NewSettingsService(settingsRepo repositories.SettingsRepositoryInterface, redisClient *redis.Client, logger *zap.Logger) SettingsServiceInterface {
	return &SettingsService{settingsRepo: settingsRepo, redisClient: redisClient, logger: logger}
}

func (s *SettingsService) GetAll(ctx context.Context) ([]entities.Setting, error) {
	return s.settingsRepo.GetAll(ctx)
}

func (s *SettingsService) Update(ctx context.Context, payload dto.UpdateSettingDTO) (*entities.Setting, error) {
	setting, err := s.settingsRepo.Upsert(ctx, payload.Key, payload.Value)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, payload.Key)
	return setting, nil
}

// GracePeriodMinutes читает льготный период для тарифа: сперва кеш, потом
// БД, и значение по умолчанию, если настройка не задана. Ошибки здесь не
// фатальны - расчёт просрочки должен работать даже без Redis.
func (s *SettingsService) GracePeriodMinutes(ctx context.Context, code entities.TariffCode) int {
	key := gracePeriodKey(code)

	if cached, err := s.redisClient.Get(ctx, "settings:"+key).Result(); err == nil {
		if minutes, convErr := strconv.Atoi(cached); convErr == nil {
			return minutes
		}
	}

	setting, err := s.settingsRepo.Get(ctx, key)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Warn("не удалось прочитать льготный период, используется значение по умолчанию",
				zap.String("tariffCode", string(code)), zap.Error(err))
		}
		return defaultGraceMinutes(code)
	}

	minutes, err := strconv.Atoi(setting.Value)
	if err != nil || minutes < 0 {
		s.logger.Warn("некорректное значение льготного периода в настройках",
			zap.String("key", key), zap.String("value", setting.Value))
		return defaultGraceMinutes(code)
	}

	if err := s.redisClient.Set(ctx, "settings:"+key, setting.Value, settingsCacheTTL).Err(); err != nil {
		s.logger.Debug("не удалось закешировать настройку", zap.String("key", key), zap.Error(err))
	}
	return minutes
}

func (s *SettingsService) SetGracePeriod(ctx context.Context, payload dto.GracePeriodDTO) (*entities.Setting, error) {
	key := gracePeriodKey(entities.TariffCode(payload.TariffCode))
	setting, err := s.settingsRepo.Upsert(ctx, key, strconv.Itoa(payload.Minutes))
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения льготного периода: %w", err)
	}
	s.invalidate(ctx, key)
	return setting, nil
}

func (s *SettingsService) invalidate(ctx context.Context, key string) {
	if err := s.redisClient.Del(ctx, "settings:"+key).Err(); err != nil {
		s.logger.Debug("не удалось сбросить кеш настройки", zap.String("key", key), zap.Error(err))
	}
}

func defaultGraceMinutes(code entities.TariffCode) int {
	if code == entities.TariffCodeDaily {
		return DefaultGraceDailyMinutes
	}
	return DefaultGraceHourlyMinutes
}
