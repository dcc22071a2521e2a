package services

import (
	"context"
	"fmt"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	apperrors "lockbox/pkg/errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// OverdueCalculatorInterface отдаёт расчёт задолженности по позиции. Вынесен
// отдельно, чтобы сервис ячеек мог проверять право на открытие, не завися от
// всего сервиса аренд.
type OverdueCalculatorInterface interface {
	CalculateOverdueMeta(ctx context.Context, item *entities.OrderItem) (*dto.OverdueMetaDTO, error)
}

// ExtensionQuote - рассчитанная стоимость продления до создания платежа.
type ExtensionQuote struct {
	Item      *entities.OrderItem
	TariffID  string
	Quantity  int
	AmountRub int
}

// SettlementQuote - рассчитанная стоимость погашения просрочки.
type SettlementQuote struct {
	Item          *entities.OrderItem
	ExtendMinutes int
	AmountRub     int
}

type RentalServiceInterface interface {
	OverdueCalculatorInterface

	GetUserRentals(ctx context.Context, userID string) ([]dto.RentalViewDTO, error)
	GetUserRental(ctx context.Context, userID, itemID string) (*dto.RentalViewDTO, error)

	QuoteExtension(ctx context.Context, userID, itemID string, payload dto.ExtendRentalDTO) (*ExtensionQuote, error)
	QuoteSettlement(ctx context.Context, userID, itemID string) (*SettlementQuote, error)

	// ApplyExtension и ApplySettlement вызываются координатором платежей в
	// рамках его транзакции.
	ApplyExtension(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error
	ApplySettlement(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error

	CompleteRental(ctx context.Context, actor Actor, userID, itemID string) error
}

type RentalService struct {
	orderRepo       repositories.OrderRepositoryInterface
	itemRepo        repositories.OrderItemRepositoryInterface
	lockerRepo      repositories.LockerRepositoryInterface
	tariffRepo      repositories.TariffRepositoryInterface
	paymentRepo     repositories.PaymentRepositoryInterface
	txManager       repositories.TxManagerInterface
	settingsService SettingsServiceInterface
	auditService    AuditServiceInterface
	logger          *zap.Logger
}

func NewRentalService(
	orderRepo repositories.OrderRepositoryInterface,
	itemRepo repositories.OrderItemRepositoryInterface,
	lockerRepo repositories.LockerRepositoryInterface,
	tariffRepo repositories.TariffRepositoryInterface,
	paymentRepo repositories.PaymentRepositoryInterface,
	txManager repositories.TxManagerInterface,
	settingsService SettingsServiceInterface,
	auditService AuditServiceInterface,
	logger *zap.Logger,
) RentalServiceInterface {
	return &RentalService{
		orderRepo:       orderRepo,
		itemRepo:        itemRepo,
		lockerRepo:      lockerRepo,
		tariffRepo:      tariffRepo,
		paymentRepo:     paymentRepo,
		txManager:       txManager,
		settingsService: settingsService,
		auditService:    auditService,
		logger:          logger,
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// CalculateOverdueMeta считает долг по просроченной аренде. Покрытое время =
// окно аренды плюс все успешные погашения; просрочка сверх покрытия
// округляется вверх до целых периодов тарифа. В пределах льготного периода
// долг не начисляется.
func (s *RentalService) CalculateOverdueMeta(ctx context.Context, item *entities.OrderItem) (*dto.OverdueMetaDTO, error) {
	if item.StartAt == nil || item.EndAt == nil || item.Tariff == nil {
		return nil, fmt.Errorf("позиция %s не активировалась, долг не считается", item.ID)
	}

	settledMinutes := 0
	payments, err := s.paymentRepo.FindSucceededByOrder(ctx, nil, item.OrderID)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		intent := payments[i].Intent
		if intent.Kind == entities.IntentOverdueSettlement && intent.SettleOrderItemID == item.ID {
			settledMinutes += intent.ExtendMinutes
		}
	}

	coverageEnd := item.EndAt.Add(time.Duration(settledMinutes) * time.Minute)
	paidMinutes := int(item.EndAt.Sub(*item.StartAt).Minutes()) + settledMinutes
	meta := &dto.OverdueMetaDTO{PaidMinutes: paidMinutes, EndAt: coverageEnd}

	now := time.Now()
	if !now.After(coverageEnd) {
		return meta, nil
	}
	meta.OverdueMinutes = ceilDiv(int(now.Sub(coverageEnd).Seconds()), 60)

	grace := s.settingsService.GracePeriodMinutes(ctx, item.Tariff.Code)
	if meta.OverdueMinutes <= grace {
		return meta, nil
	}

	multiplier := ceilDiv(meta.OverdueMinutes, item.Tariff.DurationMinutes)
	meta.ExtendMinutes = multiplier * item.Tariff.DurationMinutes
	meta.OverdueRub = ceilDiv(meta.ExtendMinutes*item.Tariff.PriceRub, item.Tariff.DurationMinutes)
	return meta, nil
}

func (s *RentalService) withMeta(ctx context.Context, item entities.OrderItem) dto.RentalViewDTO {
	view := dto.RentalViewDTO{OrderItem: item}
	if item.Status == entities.OrderItemStatusActive || item.Status == entities.OrderItemStatusOverdue {
		meta, err := s.CalculateOverdueMeta(ctx, &item)
		if err != nil {
			s.logger.Warn("не удалось рассчитать задолженность по аренде",
				zap.String("orderItemId", item.ID), zap.Error(err))
		} else {
			view.OverdueMeta = meta
		}
	}
	return view
}

func (s *RentalService) GetUserRentals(ctx context.Context, userID string) ([]dto.RentalViewDTO, error) {
	items, err := s.itemRepo.FindUserRentals(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]dto.RentalViewDTO, 0, len(items))
	for i := range items {
		views = append(views, s.withMeta(ctx, items[i]))
	}
	return views, nil
}

func (s *RentalService) ownedItem(ctx context.Context, userID, itemID string) (*entities.OrderItem, error) {
	item, err := s.itemRepo.FindByIDWithRelations(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Order == nil || item.Order.UserID != userID {
		return nil, apperrors.NewForbiddenError("Аренда принадлежит другому пользователю")
	}
	return item, nil
}

func (s *RentalService) GetUserRental(ctx context.Context, userID, itemID string) (*dto.RentalViewDTO, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	view := s.withMeta(ctx, *item)
	return &view, nil
}

func (s *RentalService) QuoteExtension(ctx context.Context, userID, itemID string, payload dto.ExtendRentalDTO) (*ExtensionQuote, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != entities.OrderItemStatusActive {
		return nil, apperrors.NewConflictError("Продлить можно только активную аренду")
	}

	tariffID := payload.TariffID
	if tariffID == "" {
		tariffID = item.TariffID
	}
	tariff, err := s.tariffRepo.FindByID(ctx, nil, tariffID)
	if err != nil {
		return nil, err
	}
	if !tariff.Active {
		return nil, apperrors.NewConflictError("Тариф больше не действует")
	}

	quantity := payload.Quantity
	if quantity == 0 {
		quantity = 1
	}
	return &ExtensionQuote{
		Item:      item,
		TariffID:  tariff.ID,
		Quantity:  quantity,
		AmountRub: quantity * tariff.PriceRub,
	}, nil
}

func (s *RentalService) QuoteSettlement(ctx context.Context, userID, itemID string) (*SettlementQuote, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != entities.OrderItemStatusOverdue {
		return nil, apperrors.NewConflictError("По аренде нет просрочки")
	}
	meta, err := s.CalculateOverdueMeta(ctx, item)
	if err != nil {
		return nil, err
	}
	if meta.OverdueRub <= 0 {
		return nil, apperrors.NewConflictError("Задолженность отсутствует")
	}
	return &SettlementQuote{
		Item:          item,
		ExtendMinutes: meta.ExtendMinutes,
		AmountRub:     meta.OverdueRub,
	}, nil
}

// ApplyExtension добавляет оплаченные периоды к аренде. Отсчёт от конца
// текущего окна, но не раньше текущего момента.
func (s *RentalService) ApplyExtension(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error {
	intent := payment.Intent
	item, err := s.itemRepo.FindByID(ctx, tx, intent.ExtendOrderItemID)
	if err != nil {
		return err
	}
	if item.Status != entities.OrderItemStatusActive && item.Status != entities.OrderItemStatusOverdue {
		return fmt.Errorf("позиция %s в статусе %s, продление неприменимо", item.ID, item.Status)
	}
	tariff, err := s.tariffRepo.FindByID(ctx, tx, intent.TariffID)
	if err != nil {
		return err
	}

	now := time.Now()
	base := now
	if item.EndAt != nil && item.EndAt.After(now) {
		base = *item.EndAt
	}
	newEnd := base.Add(time.Duration(intent.Quantity*tariff.DurationMinutes) * time.Minute)
	if err := s.itemRepo.ExtendEnd(ctx, tx, item.ID, newEnd); err != nil {
		return err
	}
	if item.Status == entities.OrderItemStatusOverdue {
		if err := s.itemRepo.SetStatus(ctx, tx, item.ID, entities.OrderItemStatusActive); err != nil {
			return err
		}
	}
	// Оплаченное продление входит в итог заказа наравне с исходной арендой.
	if err := s.orderRepo.IncrementTotal(ctx, tx, item.OrderID, intent.Quantity*tariff.PriceRub); err != nil {
		return err
	}

	return s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
		ActorType:   entities.ActorTypeSystem,
		Action:      entities.AuditActionRentalExtend,
		LockerID:    &item.LockerID,
		OrderID:     &item.OrderID,
		OrderItemID: &item.ID,
		PaymentID:   &payment.ID,
		Metadata: map[string]interface{}{
			"quantity": intent.Quantity,
			"newEndAt": newEnd,
		},
	})
}

// ApplySettlement гасит долг за уже прошедшее время. Конец аренды не
// двигается: оплачивается просрочка, а не новое время.
func (s *RentalService) ApplySettlement(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error {
	intent := payment.Intent
	item, err := s.itemRepo.FindByID(ctx, tx, intent.SettleOrderItemID)
	if err != nil {
		return err
	}
	if item.Status != entities.OrderItemStatusOverdue {
		return fmt.Errorf("позиция %s в статусе %s, погашение неприменимо", item.ID, item.Status)
	}

	return s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
		ActorType:   entities.ActorTypeSystem,
		Action:      entities.AuditActionRentalSettle,
		LockerID:    &item.LockerID,
		OrderID:     &item.OrderID,
		OrderItemID: &item.ID,
		PaymentID:   &payment.ID,
		Metadata: map[string]interface{}{
			"extendMinutes": intent.ExtendMinutes,
			"amountRub":     payment.AmountRub,
		},
	})
}

// CompleteRental завершает аренду по инициативе пользователя. Просроченную
// аренду можно завершить только без непогашенного долга.
func (s *RentalService) CompleteRental(ctx context.Context, actor Actor, userID, itemID string) error {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	switch item.Status {
	case entities.OrderItemStatusActive:
	case entities.OrderItemStatusOverdue:
		meta, err := s.CalculateOverdueMeta(ctx, item)
		if err != nil {
			return err
		}
		if meta.OverdueRub > 0 {
			return apperrors.NewConflictError("Сначала погасите задолженность по аренде")
		}
	default:
		return apperrors.NewConflictError("Аренда уже завершена")
	}

	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.itemRepo.SetStatus(ctx, tx, item.ID, entities.OrderItemStatusClosed); err != nil {
			return err
		}
		if err := s.lockerRepo.UpdateStatus(ctx, tx, item.LockerID, entities.LockerStatusFree); err != nil {
			return err
		}
		return s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
			ActorType:   actor.Type,
			ActorID:     actor.ID,
			Action:      entities.AuditActionRentalComplete,
			LockerID:    &item.LockerID,
			OrderID:     &item.OrderID,
			OrderItemID: &item.ID,
			UserID:      &userID,
			IP:          actor.IP,
			UserAgent:   actor.UserAgent,
		})
	})
}
