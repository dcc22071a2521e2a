package services

import (
	"context"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type CartServiceInterface interface {
	GetCart(ctx context.Context, userID string) (*dto.CartDTO, error)
	AddToCart(ctx context.Context, userID string, payload dto.AddToCartDTO) (*dto.CartDTO, error)
	RemoveFromCart(ctx context.Context, userID string, payload dto.RemoveFromCartDTO) (*dto.CartDTO, error)
}

type CartService struct {
	orderRepo  repositories.OrderRepositoryInterface
	itemRepo   repositories.OrderItemRepositoryInterface
	lockerRepo repositories.LockerRepositoryInterface
	tariffRepo repositories.TariffRepositoryInterface
	txManager  repositories.TxManagerInterface
	cfg        *config.Config
	logger     *zap.Logger
}

func NewCartService(
	orderRepo repositories.OrderRepositoryInterface,
	itemRepo repositories.OrderItemRepositoryInterface,
	lockerRepo repositories.LockerRepositoryInterface,
	tariffRepo repositories.TariffRepositoryInterface,
	txManager repositories.TxManagerInterface,
	cfg *config.Config,
	logger *zap.Logger,
) CartServiceInterface {
	return &CartService{
		orderRepo:  orderRepo,
		itemRepo:   itemRepo,
		lockerRepo: lockerRepo,
		tariffRepo: tariffRepo,
		txManager:  txManager,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *CartService) holdDuration() time.Duration {
	return time.Duration(s.cfg.Lockers.HoldMinutes) * time.Minute
}

// GetCart возвращает черновик заказа пользователя. Пустая корзина - это
// отсутствие черновика, а не отдельное состояние.
func (s *CartService) GetCart(ctx context.Context, userID string) (*dto.CartDTO, error) {
	order, err := s.orderRepo.FindDraftByUser(ctx, nil, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &dto.CartDTO{}, nil
		}
		return nil, err
	}
	items, err := s.itemRepo.FindByOrderWithRelations(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &dto.CartDTO{Order: order}, nil
}

// AddToCart бронирует ячейку и кладёт её в черновик заказа. Бронь держится
// ограниченное время, дальше ячейку снимает фоновая очистка.
func (s *CartService) AddToCart(ctx context.Context, userID string, payload dto.AddToCartDTO) (*dto.CartDTO, error) {
	tariffID := payload.TariffID
	if tariffID == "" {
		tariff, err := s.tariffRepo.FindDefault(ctx)
		if err != nil {
			return nil, err
		}
		tariffID = tariff.ID
	} else {
		tariff, err := s.tariffRepo.FindByID(ctx, nil, tariffID)
		if err != nil {
			return nil, err
		}
		if !tariff.Active {
			return nil, apperrors.NewConflictError("Тариф больше не действует")
		}
	}

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.FindDraftByUser(ctx, tx, userID)
		if apperrors.IsNotFound(err) {
			order = &entities.Order{ID: uuid.NewString(), UserID: userID, Status: entities.OrderStatusDraft}
			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if _, err := s.itemRepo.FindByOrderAndLocker(ctx, tx, order.ID, payload.LockerID); err == nil {
			return apperrors.NewConflictError("Ячейка уже в корзине")
		} else if !apperrors.IsNotFound(err) {
			return err
		}

		// FREE -> HELD одним условным обновлением: проигравший конкурент
		// получает конфликт, а не чужую бронь.
		held, err := s.lockerRepo.TryHold(ctx, tx, payload.LockerID)
		if err != nil {
			return err
		}
		if !held {
			if err := s.reclaimExpiredHold(ctx, tx, payload.LockerID); err != nil {
				return err
			}
		}

		item := &entities.OrderItem{
			ID:       uuid.NewString(),
			OrderID:  order.ID,
			LockerID: payload.LockerID,
			TariffID: tariffID,
			Status:   entities.OrderItemStatusCreated,
		}
		if err := s.itemRepo.Create(ctx, tx, item); err != nil {
			return err
		}
		if err := s.itemRepo.SetHold(ctx, tx, item.ID, time.Now().Add(s.holdDuration())); err != nil {
			return err
		}
		if _, err := s.orderRepo.RecalculateTotal(ctx, tx, order.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// reclaimExpiredHold перехватывает HELD-ячейку, чья бронь истекла, не
// дожидаясь фоновой очистки. Живая чужая бронь остаётся неприкосновенной.
func (s *CartService) reclaimExpiredHold(ctx context.Context, tx pgx.Tx, lockerID string) error {
	if _, err := s.itemRepo.FindActiveHold(ctx, tx, lockerID, time.Now()); err == nil {
		return apperrors.NewConflictError("Ячейка уже занята")
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	reclaimed, err := s.lockerRepo.TryHoldFromHeld(ctx, tx, lockerID)
	if err != nil {
		return err
	}
	if !reclaimed {
		return apperrors.NewConflictError("Ячейка уже занята")
	}

	// Просроченная позиция прежнего владельца снимается, иначе она будет
	// держать ячейку как "живая".
	stale, err := s.itemRepo.FindLiveByLocker(ctx, tx, lockerID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return s.itemRepo.ResetToCreated(ctx, tx, []string{stale.ID})
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID string, payload dto.RemoveFromCartDTO) (*dto.CartDTO, error) {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.FindDraftByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		item, err := s.itemRepo.FindByOrderAndLocker(ctx, tx, order.ID, payload.LockerID)
		if err != nil {
			return err
		}
		if err := s.itemRepo.Delete(ctx, tx, item.ID); err != nil {
			return err
		}
		// Бронь пользователя снимается вместе с позицией.
		if item.Status == entities.OrderItemStatusAwaitingPayment {
			if err := s.lockerRepo.UpdateStatus(ctx, tx, item.LockerID, entities.LockerStatusFree); err != nil {
				return err
			}
		}
		rest, err := s.itemRepo.FindByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		// Пустой черновик не живёт: корзина без позиций - это отсутствие заказа.
		if len(rest) == 0 {
			return s.orderRepo.Delete(ctx, tx, order.ID)
		}
		if _, err := s.orderRepo.RecalculateTotal(ctx, tx, order.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}
