package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RentalActivator применяет успешный платёж к домену аренд. Интерфейс
// разрывает цикл между координатором платежей и сервисом заказов: координатор
// знает только про активацию, а не про весь сервис.
type RentalActivator interface {
	Activate(ctx context.Context, tx pgx.Tx, payment *entities.Payment) error
}

type PaymentServiceInterface interface {
	CreatePaymentForOrder(ctx context.Context, actor Actor, userID string) (*dto.CreatePaymentResultDTO, error)
	CreateExtensionPayment(ctx context.Context, actor Actor, userID, itemID string, payload dto.ExtendRentalDTO) (*dto.CreatePaymentResultDTO, error)
	CreateSettlementPayment(ctx context.Context, actor Actor, userID, itemID string) (*dto.CreatePaymentResultDTO, error)

	// MarkPaymentSucceeded идемпотентен: повторное подтверждение того же
	// платежа не активирует аренду второй раз.
	MarkPaymentSucceeded(ctx context.Context, paymentID string, providerPayload json.RawMessage) error

	ConfirmMockPayment(ctx context.Context, actor Actor, userID string, payload dto.ConfirmMockPaymentDTO) error
	HandleWebhook(ctx context.Context, signature string, payload dto.WebhookDTO) error
}

type PaymentService struct {
	paymentRepo   repositories.PaymentRepositoryInterface
	orderRepo     repositories.OrderRepositoryInterface
	orderService  OrderServiceInterface
	rentalService RentalServiceInterface
	activator     RentalActivator
	provider      PaymentProviderInterface
	txManager     repositories.TxManagerInterface
	auditService  AuditServiceInterface
	cfg           *config.Config
	logger        *zap.Logger
}

func NewPaymentService(
	paymentRepo repositories.PaymentRepositoryInterface,
	orderRepo repositories.OrderRepositoryInterface,
	orderService OrderServiceInterface,
	rentalService RentalServiceInterface,
	activator RentalActivator,
	provider PaymentProviderInterface,
	txManager repositories.TxManagerInterface,
	auditService AuditServiceInterface,
	cfg *config.Config,
	logger *zap.Logger,
) PaymentServiceInterface {
	return &PaymentService{
		paymentRepo:   paymentRepo,
		orderRepo:     orderRepo,
		orderService:  orderService,
		rentalService: rentalService,
		activator:     activator,
		provider:      provider,
		txManager:     txManager,
		auditService:  auditService,
		cfg:           cfg,
		logger:        logger,
	}
}

// registerPayment сохраняет платёж и получает ссылку на оплату. В мок-режиме
// провайдер не вызывается: подтверждение делает сам пользователь.
func (s *PaymentService) registerPayment(ctx context.Context, actor Actor, payment *entities.Payment, description string) (*dto.CreatePaymentResultDTO, error) {
	if payment.AmountRub <= 0 {
		return nil, apperrors.NewInvalidRequestError("Сумма платежа должна быть больше нуля")
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	result := &dto.CreatePaymentResultDTO{PaymentID: payment.ID}
	if s.cfg.YooKassa.MockPayments {
		result.ConfirmationURL = fmt.Sprintf("%s/mock-payment/%s", s.cfg.Server.BaseURL, payment.ID)
		mockID := "mock-" + payment.ID
		if err := s.paymentRepo.SetProviderData(ctx, payment.ID, mockID, nil); err != nil {
			return nil, err
		}
	} else {
		provider, err := s.provider.CreatePayment(ctx, ProviderPaymentRequest{
			AmountRub:   payment.AmountRub,
			Description: description,
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
		})
		if err != nil {
			return nil, err
		}
		if err := s.paymentRepo.SetProviderData(ctx, payment.ID, provider.ID, provider.Raw); err != nil {
			return nil, err
		}
		result.ConfirmationURL = provider.ConfirmationURL
	}

	s.auditService.Log(ctx, dto.CreateAuditLogDTO{
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Action:    entities.AuditActionPaymentCreate,
		OrderID:   &payment.OrderID,
		PaymentID: &payment.ID,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Metadata: map[string]interface{}{
			"amountRub": payment.AmountRub,
			"kind":      payment.Intent.Kind,
		},
	})
	return result, nil
}

func (s *PaymentService) CreatePaymentForOrder(ctx context.Context, actor Actor, userID string) (*dto.CreatePaymentResultDTO, error) {
	order, err := s.orderService.PrepareForPayment(ctx, userID)
	if err != nil {
		return nil, err
	}

	payment := &entities.Payment{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Status:    entities.PaymentStatusCreated,
		AmountRub: order.TotalRub,
		Intent:    entities.NewRentalIntent(order.ID),
	}
	return s.registerPayment(ctx, actor, payment, fmt.Sprintf("Аренда ячеек, заказ %s", order.ID))
}

func (s *PaymentService) CreateExtensionPayment(ctx context.Context, actor Actor, userID, itemID string, payload dto.ExtendRentalDTO) (*dto.CreatePaymentResultDTO, error) {
	quote, err := s.rentalService.QuoteExtension(ctx, userID, itemID, payload)
	if err != nil {
		return nil, err
	}

	payment := &entities.Payment{
		ID:        uuid.NewString(),
		OrderID:   quote.Item.OrderID,
		Status:    entities.PaymentStatusCreated,
		AmountRub: quote.AmountRub,
		Intent:    entities.ExtensionIntent(quote.Item.ID, quote.TariffID, quote.Quantity),
	}
	return s.registerPayment(ctx, actor, payment, fmt.Sprintf("Продление аренды ячейки №%d", quote.Item.Locker.Number))
}

func (s *PaymentService) CreateSettlementPayment(ctx context.Context, actor Actor, userID, itemID string) (*dto.CreatePaymentResultDTO, error) {
	quote, err := s.rentalService.QuoteSettlement(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	payment := &entities.Payment{
		ID:        uuid.NewString(),
		OrderID:   quote.Item.OrderID,
		Status:    entities.PaymentStatusCreated,
		AmountRub: quote.AmountRub,
		Intent:    entities.OverdueSettlementIntent(quote.Item.ID, quote.ExtendMinutes),
	}
	return s.registerPayment(ctx, actor, payment, fmt.Sprintf("Погашение просрочки по ячейке №%d", quote.Item.Locker.Number))
}

func (s *PaymentService) MarkPaymentSucceeded(ctx context.Context, paymentID string, providerPayload json.RawMessage) error {
	return s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		payment, err := s.paymentRepo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		transitioned, err := s.paymentRepo.MarkSucceeded(ctx, tx, paymentID, providerPayload)
		if err != nil {
			return err
		}
		if !transitioned {
			// Платёж уже обработан: повторный вебхук или двойной клик.
			s.logger.Info("повторное подтверждение платежа проигнорировано",
				zap.String("paymentId", paymentID), zap.String("status", string(payment.Status)))
			return nil
		}
		payment.Status = entities.PaymentStatusSucceeded

		if err := s.activator.Activate(ctx, tx, payment); err != nil {
			return fmt.Errorf("ошибка активации по платежу %s: %w", paymentID, err)
		}

		return s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
			ActorType: entities.ActorTypeSystem,
			Action:    entities.AuditActionPaymentSucceeded,
			OrderID:   &payment.OrderID,
			PaymentID: &payment.ID,
			Metadata: map[string]interface{}{
				"amountRub": payment.AmountRub,
				"kind":      payment.Intent.Kind,
			},
		})
	})
}

// ConfirmMockPayment - самоподтверждение платежа пользователем. Работает
// только в мок-режиме, в боевом режиме платежи подтверждает вебхук.
func (s *PaymentService) ConfirmMockPayment(ctx context.Context, actor Actor, userID string, payload dto.ConfirmMockPaymentDTO) error {
	if !s.cfg.YooKassa.MockPayments {
		return apperrors.NewForbiddenError("Ручное подтверждение платежей отключено")
	}

	order, err := s.orderRepo.FindByID(ctx, nil, payload.OrderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return apperrors.NewForbiddenError("Заказ принадлежит другому пользователю")
	}

	payment, err := s.paymentRepo.FindLatestByOrder(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if payment.Status != entities.PaymentStatusCreated {
		return apperrors.NewConflictError("Платёж уже обработан")
	}
	return s.MarkPaymentSucceeded(ctx, payment.ID, nil)
}

// HandleWebhook обрабатывает уведомление провайдера. Неизвестные платежи
// логируются и пропускаются, чтобы провайдер не зациклился на повторах.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, payload dto.WebhookDTO) error {
	if s.cfg.YooKassa.WebhookSecret != "" {
		if subtle.ConstantTimeCompare([]byte(signature), []byte(s.cfg.YooKassa.WebhookSecret)) != 1 {
			return apperrors.NewUnauthorizedError("Неверная подпись вебхука")
		}
	}
	if payload.Object.ID == "" {
		return apperrors.NewInvalidRequestError("В уведомлении нет идентификатора платежа")
	}

	payment, err := s.paymentRepo.FindByProviderID(ctx, payload.Object.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("вебхук по неизвестному платежу",
				zap.String("providerPaymentId", payload.Object.ID), zap.String("event", payload.Event))
			return nil
		}
		return err
	}

	switch payload.Event {
	case "payment.succeeded":
		return s.MarkPaymentSucceeded(ctx, payment.ID, payload.Object.Raw)
	case "payment.canceled":
		if err := s.paymentRepo.MarkCanceled(ctx, payment.ID); err != nil {
			return err
		}
		s.logger.Info("платёж отменён провайдером", zap.String("paymentId", payment.ID))
		return nil
	default:
		s.logger.Info("вебхук с неподдерживаемым событием проигнорирован",
			zap.String("event", payload.Event), zap.String("paymentId", payment.ID))
		return nil
	}
}
