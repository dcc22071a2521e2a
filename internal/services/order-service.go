package services

import (
	"context"
	"fmt"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type OrderServiceInterface interface {
	GetUserOrder(ctx context.Context, userID, orderID string) (*entities.Order, error)

	// PrepareForPayment переводит черновик в AWAITING_PAYMENT. Если хоть одна
	// бронь успела истечь, заказ не готовится: истёкшие брони снимаются и
	// возвращается конфликт, чтобы не взять деньги за недоступную ячейку.
	PrepareForPayment(ctx context.Context, userID string) (*entities.Order, error)

	// Activate применяет успешный платёж в рамках транзакции координатора.
	Activate(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error

	CancelOrder(ctx context.Context, actor Actor, userID, orderID string) error
}

type OrderService struct {
	orderRepo     repositories.OrderRepositoryInterface
	itemRepo      repositories.OrderItemRepositoryInterface
	lockerRepo    repositories.LockerRepositoryInterface
	tariffRepo    repositories.TariffRepositoryInterface
	paymentRepo   repositories.PaymentRepositoryInterface
	rentalService RentalServiceInterface
	txManager     repositories.TxManagerInterface
	auditService  AuditServiceInterface
	cfg           *config.Config
	logger        *zap.Logger
}

func NewOrderService(
	orderRepo repositories.OrderRepositoryInterface,
	itemRepo repositories.OrderItemRepositoryInterface,
	lockerRepo repositories.LockerRepositoryInterface,
	tariffRepo repositories.TariffRepositoryInterface,
	paymentRepo repositories.PaymentRepositoryInterface,
	rentalService RentalServiceInterface,
	txManager repositories.TxManagerInterface,
	auditService AuditServiceInterface,
	cfg *config.Config,
	logger *zap.Logger,
) OrderServiceInterface {
	return &OrderService{
		orderRepo:     orderRepo,
		itemRepo:      itemRepo,
		lockerRepo:    lockerRepo,
		tariffRepo:    tariffRepo,
		paymentRepo:   paymentRepo,
		rentalService: rentalService,
		txManager:     txManager,
		auditService:  auditService,
		cfg:           cfg,
		logger:        logger,
	}
}

func (s *OrderService) GetUserOrder(ctx context.Context, userID, orderID string) (*entities.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NewForbiddenError("Заказ принадлежит другому пользователю")
	}
	items, err := s.itemRepo.FindByOrderWithRelations(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *OrderService) PrepareForPayment(ctx context.Context, userID string) (*entities.Order, error) {
	var order *entities.Order
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.FindDraftByUser(ctx, tx, userID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewInvalidRequestError("Корзина пуста")
			}
			return err
		}
		items, err := s.itemRepo.FindByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperrors.NewInvalidRequestError("Корзина пуста")
		}

		now := time.Now()
		var expired []entities.OrderItem
		for i := range items {
			it := items[i]
			if it.Status == entities.OrderItemStatusCreated ||
				(it.HoldUntil != nil && it.HoldUntil.Before(now)) {
				expired = append(expired, it)
			}
		}
		if len(expired) > 0 {
			ids := make([]string, 0, len(expired))
			lockerIDs := make([]string, 0, len(expired))
			for i := range expired {
				ids = append(ids, expired[i].ID)
				if expired[i].Status == entities.OrderItemStatusAwaitingPayment {
					lockerIDs = append(lockerIDs, expired[i].LockerID)
				}
			}
			if err := s.itemRepo.ResetToCreated(ctx, tx, ids); err != nil {
				return err
			}
			if err := s.lockerRepo.UpdateStatusMany(ctx, tx, lockerIDs, entities.LockerStatusFree); err != nil {
				return err
			}
			return apperrors.NewConflictError("Срок брони истёк, соберите корзину заново")
		}

		holdUntil := now.Add(time.Duration(s.cfg.Lockers.HoldMinutes) * time.Minute)
		for i := range items {
			tariff, err := s.tariffRepo.FindByID(ctx, tx, items[i].TariffID)
			if err != nil {
				return err
			}
			end := now.Add(time.Duration(tariff.DurationMinutes) * time.Minute)
			if err := s.itemRepo.SetAwaitingPayment(ctx, tx, items[i].ID, now, end, holdUntil); err != nil {
				return err
			}
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, entities.OrderStatusAwaitingPayment); err != nil {
			return err
		}
		total, err := s.orderRepo.RecalculateTotal(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		order.Status = entities.OrderStatusAwaitingPayment
		order.TotalRub = total
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Activate - точка входа для координатора платежей. Диспетчеризация по
// явному назначению платежа, а не по содержимому payload провайдера.
func (s *OrderService) Activate(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error {
	switch payment.Intent.Kind {
	case entities.IntentNewRental:
		return s.activateNewRental(ctx, tx, payment)
	case entities.IntentExtension:
		return s.rentalService.ApplyExtension(ctx, tx, payment)
	case entities.IntentOverdueSettlement:
		return s.rentalService.ApplySettlement(ctx, tx, payment)
	default:
		return fmt.Errorf("неизвестное назначение платежа %q", payment.Intent.Kind)
	}
}

func (s *OrderService) activateNewRental(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error {
	order, err := s.orderRepo.FindByID(ctx, tx, payment.Intent.OrderID)
	if err != nil {
		return err
	}
	if order.Status == entities.OrderStatusPaid {
		// Повторная активация означает дыру в защите координатора.
		return fmt.Errorf("заказ %s уже оплачен", order.ID)
	}

	items, err := s.itemRepo.FindByOrder(ctx, tx, order.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range items {
		it := items[i]
		if it.Status != entities.OrderItemStatusAwaitingPayment {
			continue
		}
		tariff, err := s.tariffRepo.FindByID(ctx, tx, it.TariffID)
		if err != nil {
			return err
		}
		end := now.Add(time.Duration(tariff.DurationMinutes) * time.Minute)
		if err := s.itemRepo.MarkActive(ctx, tx, it.ID, now, end); err != nil {
			return err
		}
		if err := s.lockerRepo.UpdateStatus(ctx, tx, it.LockerID, entities.LockerStatusOccupied); err != nil {
			return err
		}
		if err := s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
			ActorType:   entities.ActorTypeSystem,
			Action:      entities.AuditActionRentalCreate,
			LockerID:    &it.LockerID,
			OrderID:     &order.ID,
			OrderItemID: &it.ID,
			PaymentID:   &payment.ID,
			UserID:      &order.UserID,
			Metadata:    map[string]interface{}{"endAt": end},
		}); err != nil {
			return err
		}
	}
	return s.orderRepo.UpdateStatus(ctx, tx, order.ID, entities.OrderStatusPaid)
}

// CancelOrder удаляет неоплаченный заказ целиком вместе с платежами и
// позициями, возвращая забронированные ячейки в оборот.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, userID, orderID string) error {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return apperrors.NewForbiddenError("Заказ принадлежит другому пользователю")
		}
		if order.Status != entities.OrderStatusDraft && order.Status != entities.OrderStatusAwaitingPayment {
			return apperrors.NewConflictError("Оплаченный заказ отменить нельзя")
		}

		items, err := s.itemRepo.FindByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		lockerIDs := make([]string, 0, len(items))
		for i := range items {
			if items[i].Status == entities.OrderItemStatusAwaitingPayment {
				lockerIDs = append(lockerIDs, items[i].LockerID)
			}
		}
		if err := s.lockerRepo.UpdateStatusMany(ctx, tx, lockerIDs, entities.LockerStatusFree); err != nil {
			return err
		}
		if err := s.paymentRepo.DeleteByOrder(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.itemRepo.DeleteByOrder(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.orderRepo.Delete(ctx, tx, order.ID); err != nil {
			return err
		}

		return s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
			ActorType: actor.Type,
			ActorID:   actor.ID,
			Action:    entities.AuditActionOrderCancel,
			OrderID:   &orderID,
			UserID:    &userID,
			IP:        actor.IP,
			UserAgent: actor.UserAgent,
			Metadata:  map[string]interface{}{"items": len(items)},
		})
	})
	return err
}
