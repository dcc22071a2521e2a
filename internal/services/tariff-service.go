package services

import (
	"context"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TariffServiceInterface interface {
	GetTariffs(ctx context.Context, onlyActive bool) ([]entities.Tariff, error)
	GetTariff(ctx context.Context, id string) (*entities.Tariff, error)
	Create(ctx context.Context, payload dto.CreateTariffDTO) (*entities.Tariff, error)
	Update(ctx context.Context, id string, payload dto.UpdateTariffDTO) (*entities.Tariff, error)
}

type TariffService struct {
	tariffRepo repositories.TariffRepositoryInterface
	logger     *zap.Logger
}

func NewTariffService(tariffRepo repositories.TariffRepositoryInterface, logger *zap.Logger) TariffServiceInterface {
	return &TariffService{tariffRepo: tariffRepo, logger: logger}
}

func (s *TariffService) GetTariffs(ctx context.Context, onlyActive bool) ([]entities.Tariff, error) {
	return s.tariffRepo.GetTariffs(ctx, onlyActive)
}

func (s *TariffService) GetTariff(ctx context.Context, id string) (*entities.Tariff, error) {
	return s.tariffRepo.FindByID(ctx, nil, id)
}

func (s *TariffService) Create(ctx context.Context, payload dto.CreateTariffDTO) (*entities.Tariff, error) {
	tariff := &entities.Tariff{
		ID:              uuid.NewString(),
		Code:            entities.TariffCode(payload.Code),
		Name:            payload.Name,
		PriceRub:        payload.PriceRub,
		DurationMinutes: payload.DurationMinutes,
		Active:          true,
	}
	if err := s.tariffRepo.Create(ctx, tariff); err != nil {
		return nil, err
	}
	s.logger.Info("создан тариф", zap.String("id", tariff.ID), zap.String("code", payload.Code))
	return tariff, nil
}

// Update меняет цену и срок только для будущих аренд: уже активные позиции
// хранят рассчитанный end_at и от изменения тарифа не зависят.
func (s *TariffService) Update(ctx context.Context, id string, payload dto.UpdateTariffDTO) (*entities.Tariff, error) {
	if err := s.tariffRepo.Update(ctx, id, payload); err != nil {
		return nil, err
	}
	return s.tariffRepo.FindByID(ctx, nil, id)
}
