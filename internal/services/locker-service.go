package services

import (
	"context"
	"fmt"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	"lockbox/pkg/driver"
	apperrors "lockbox/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Actor - инициатор действия для журнала аудита.
type Actor struct {
	Type      entities.ActorType
	ID        *string
	IP        *string
	UserAgent *string
}

type LockerServiceInterface interface {
	GetLockers(ctx context.Context, filter dto.GetLockersQueryDTO) ([]entities.Locker, error)
	GetManagerLockers(ctx context.Context, filter dto.GetLockersQueryDTO) ([]dto.ManagerLockerDTO, error)
	CreateLocker(ctx context.Context, payload dto.CreateLockerDTO) (*entities.Locker, error)
	UpdateLocker(ctx context.Context, id string, payload dto.UpdateLockerDTO) (*entities.Locker, error)
	DeleteLocker(ctx context.Context, id string) error

	Freeze(ctx context.Context, actor Actor, lockerID string, payload dto.FreezeLockerDTO) (*entities.Locker, error)
	Unfreeze(ctx context.Context, actor Actor, lockerID string) (*entities.Locker, error)
	AdminOpen(ctx context.Context, actor Actor, lockerID string) error
	OpenForRental(ctx context.Context, actor Actor, userID, orderItemID string) error
	ReleaseUnpaid(ctx context.Context, actor Actor, lockerID string) error

	ReleaseExpiredHolds(ctx context.Context) (int, error)
	ReleaseExpiredFreezes(ctx context.Context) (int64, error)
	RefreshExpiredRentals(ctx context.Context) (int, error)
}

type LockerService struct {
	lockerRepo    repositories.LockerRepositoryInterface
	itemRepo      repositories.OrderItemRepositoryInterface
	orderRepo     repositories.OrderRepositoryInterface
	deviceCmdRepo repositories.DeviceCommandRepositoryInterface
	txManager     repositories.TxManagerInterface
	auditService  AuditServiceInterface
	overdueCalc   OverdueCalculatorInterface
	lockerDriver  driver.LockerDriver
	cfg           *config.Config
	logger        *zap.Logger
}

func NewLockerService(
	lockerRepo repositories.LockerRepositoryInterface,
	itemRepo repositories.OrderItemRepositoryInterface,
	orderRepo repositories.OrderRepositoryInterface,
	deviceCmdRepo repositories.DeviceCommandRepositoryInterface,
	txManager repositories.TxManagerInterface,
	auditService AuditServiceInterface,
	overdueCalc OverdueCalculatorInterface,
	lockerDriver driver.LockerDriver,
	cfg *config.Config,
	logger *zap.Logger,
) LockerServiceInterface {
	return &LockerService{
		lockerRepo:    lockerRepo,
		itemRepo:      itemRepo,
		orderRepo:     orderRepo,
		deviceCmdRepo: deviceCmdRepo,
		txManager:     txManager,
		auditService:  auditService,
		overdueCalc:   overdueCalc,
		lockerDriver:  lockerDriver,
		cfg:           cfg,
		logger:        logger,
	}
}

func (s *LockerService) GetLockers(ctx context.Context, filter dto.GetLockersQueryDTO) ([]entities.Locker, error) {
	return s.lockerRepo.GetLockers(ctx, filter)
}

// GetManagerLockers отдаёт ячейки с их текущей "живой" позицией заказа для
// панели менеджера.
func (s *LockerService) GetManagerLockers(ctx context.Context, filter dto.GetLockersQueryDTO) ([]dto.ManagerLockerDTO, error) {
	lockers, err := s.lockerRepo.GetLockers(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lockers))
	for i := range lockers {
		ids = append(ids, lockers[i].ID)
	}
	current, err := s.itemRepo.FindCurrentByLockers(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]dto.ManagerLockerDTO, 0, len(lockers))
	for i := range lockers {
		row := dto.ManagerLockerDTO{Locker: lockers[i]}
		if item, ok := current[lockers[i].ID]; ok {
			rental := item
			row.CurrentRental = &rental
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *LockerService) CreateLocker(ctx context.Context, payload dto.CreateLockerDTO) (*entities.Locker, error) {
	locker := &entities.Locker{
		ID:       uuid.NewString(),
		Number:   payload.Number,
		Status:   entities.LockerStatusFree,
		DeviceID: payload.DeviceID,
	}
	if err := s.lockerRepo.Create(ctx, locker); err != nil {
		return nil, err
	}
	return locker, nil
}

func (s *LockerService) UpdateLocker(ctx context.Context, id string, payload dto.UpdateLockerDTO) (*entities.Locker, error) {
	if err := s.lockerRepo.Update(ctx, id, payload); err != nil {
		return nil, err
	}
	return s.lockerRepo.FindByID(ctx, nil, id)
}

func (s *LockerService) DeleteLocker(ctx context.Context, id string) error {
	return s.lockerRepo.Delete(ctx, id)
}

// Freeze выводит ячейку из оборота. Замораживать можно только свободную
// ячейку: активную аренду заморозка не прерывает.
func (s *LockerService) Freeze(ctx context.Context, actor Actor, lockerID string, payload dto.FreezeLockerDTO) (*entities.Locker, error) {
	locker, err := s.lockerRepo.FindByID(ctx, nil, lockerID)
	if err != nil {
		return nil, err
	}
	if locker.Status != entities.LockerStatusFree {
		return nil, apperrors.NewConflictError("Заморозить можно только свободную ячейку")
	}
	if payload.Until != nil && payload.Until.Before(time.Now()) {
		return nil, apperrors.NewInvalidRequestError("Срок заморозки уже истёк")
	}

	var reason *string
	if payload.Reason != "" {
		reason = &payload.Reason
	}
	if err := s.lockerRepo.SetFrozen(ctx, lockerID, payload.Until, reason); err != nil {
		return nil, err
	}

	s.auditService.Log(ctx, dto.CreateAuditLogDTO{
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Action:    entities.AuditActionLockerFreeze,
		LockerID:  &lockerID,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Metadata:  map[string]interface{}{"until": payload.Until, "reason": payload.Reason},
	})
	return s.lockerRepo.FindByID(ctx, nil, lockerID)
}

func (s *LockerService) Unfreeze(ctx context.Context, actor Actor, lockerID string) (*entities.Locker, error) {
	locker, err := s.lockerRepo.FindByID(ctx, nil, lockerID)
	if err != nil {
		return nil, err
	}
	if locker.Status != entities.LockerStatusFrozen {
		return nil, apperrors.NewConflictError("Ячейка не заморожена")
	}
	if err := s.lockerRepo.ClearFreeze(ctx, lockerID); err != nil {
		return nil, err
	}

	s.auditService.Log(ctx, dto.CreateAuditLogDTO{
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Action:    entities.AuditActionLockerUnfreeze,
		LockerID:  &lockerID,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	})
	return s.lockerRepo.FindByID(ctx, nil, lockerID)
}

// enqueueOpen ставит команду OPEN контроллеру ячейки и пытается открыть замок
// локальным драйвером. Доставка best-effort: устройство заберёт команду на
// ближайшем опросе.
func (s *LockerService) enqueueOpen(ctx context.Context, locker *entities.Locker) error {
	if locker.DeviceID == nil {
		return apperrors.NewConflictError("К ячейке не привязан контроллер")
	}
	cmd := &entities.DeviceCommand{
		ID:           uuid.NewString(),
		DeviceID:     *locker.DeviceID,
		LockerNumber: locker.Number,
		Command:      entities.DeviceCommandOpen,
		Status:       entities.DeviceCommandStatusPending,
		ExpiresAt:    time.Now().Add(time.Duration(s.cfg.Lockers.CommandTTLSeconds) * time.Second),
	}
	if err := s.deviceCmdRepo.Create(ctx, nil, cmd); err != nil {
		return err
	}

	if err := s.lockerDriver.Open(ctx, locker.ID); err != nil {
		s.logger.Warn("драйвер замка не подтвердил открытие, команда остаётся в очереди",
			zap.String("lockerId", locker.ID), zap.Error(err))
	}
	return nil
}

// AdminOpen открывает ячейку по команде менеджера или админа, минуя проверку
// оплаты. Каждое такое открытие фиксируется с источником ADMIN.
func (s *LockerService) AdminOpen(ctx context.Context, actor Actor, lockerID string) error {
	locker, err := s.lockerRepo.FindByID(ctx, nil, lockerID)
	if err != nil {
		return err
	}
	if err := s.enqueueOpen(ctx, locker); err != nil {
		return err
	}

	s.auditService.Log(ctx, dto.CreateAuditLogDTO{
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Action:    entities.AuditActionLockerOpen,
		LockerID:  &lockerID,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Metadata:  map[string]interface{}{"source": entities.OpenSourceAdmin},
	})
	return nil
}

// OpenForRental открывает ячейку арендатору. Право на открытие даёт только
// позиция в статусе ACTIVE: просроченную аренду сперва нужно погасить.
func (s *LockerService) OpenForRental(ctx context.Context, actor Actor, userID, orderItemID string) error {
	item, err := s.itemRepo.FindByIDWithRelations(ctx, orderItemID)
	if err != nil {
		return err
	}
	if item.Order == nil || item.Order.UserID != userID {
		return apperrors.NewForbiddenError("Аренда принадлежит другому пользователю")
	}
	switch item.Status {
	case entities.OrderItemStatusActive:
	case entities.OrderItemStatusOverdue:
		// Просроченная аренда открывается в пределах льготного периода или
		// после погашения долга.
		meta, err := s.overdueCalc.CalculateOverdueMeta(ctx, item)
		if err != nil {
			return err
		}
		if meta.OverdueRub > 0 {
			return apperrors.NewConflictError("Аренда просрочена, сначала погасите задолженность")
		}
	default:
		return apperrors.NewConflictError("Аренда не активна")
	}
	if item.Locker == nil {
		return fmt.Errorf("у позиции %s не загружена ячейка", orderItemID)
	}

	if err := s.enqueueOpen(ctx, item.Locker); err != nil {
		return err
	}

	s.auditService.Log(ctx, dto.CreateAuditLogDTO{
		ActorType:   entities.ActorTypeUser,
		ActorID:     &userID,
		Action:      entities.AuditActionLockerOpen,
		LockerID:    &item.LockerID,
		OrderID:     &item.OrderID,
		OrderItemID: &orderItemID,
		UserID:      &userID,
		IP:          actor.IP,
		UserAgent:   actor.UserAgent,
		Metadata:    map[string]interface{}{"source": entities.OpenSourcePaid},
	})
	return nil
}

// ReleaseUnpaid принудительно освобождает ячейку с неоплаченной просрочкой:
// вещи изъяты персоналом, долг списывается, ячейка возвращается в оборот.
func (s *LockerService) ReleaseUnpaid(ctx context.Context, actor Actor, lockerID string) error {
	var released []string
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		locker, err := s.lockerRepo.FindByID(ctx, tx, lockerID)
		if err != nil {
			return err
		}
		items, err := s.itemRepo.FindUnpaidByLocker(ctx, tx, lockerID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperrors.NewConflictError("По ячейке нет неоплаченной задолженности")
		}

		ids := make([]string, 0, len(items))
		for i := range items {
			ids = append(ids, items[i].ID)
		}
		if err := s.itemRepo.SetStatusMany(ctx, tx, ids, entities.OrderItemStatusClosed); err != nil {
			return err
		}
		if err := s.lockerRepo.UpdateStatus(ctx, tx, locker.ID, entities.LockerStatusFree); err != nil {
			return err
		}
		released = ids

		return s.auditService.LogTx(ctx, tx, dto.CreateAuditLogDTO{
			ActorType: actor.Type,
			ActorID:   actor.ID,
			Action:    entities.AuditActionLockerReleaseUnpaid,
			LockerID:  &lockerID,
			IP:        actor.IP,
			UserAgent: actor.UserAgent,
			Metadata:  map[string]interface{}{"closedItems": ids},
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info("ячейка освобождена без оплаты",
		zap.String("lockerId", lockerID), zap.Int("closedItems", len(released)))
	return nil
}

// ReleaseExpiredHolds снимает истёкшие удержания: позиции возвращаются в
// CREATED, ячейки - в FREE, заказы без оставшихся позиций "в оплате"
// опускаются обратно в DRAFT.
func (s *LockerService) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	released := 0
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		items, err := s.itemRepo.FindExpiredHolds(ctx, tx, time.Now())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		itemIDs := make([]string, 0, len(items))
		lockerIDs := make([]string, 0, len(items))
		orderIDs := make([]string, 0, len(items))
		for i := range items {
			itemIDs = append(itemIDs, items[i].ID)
			lockerIDs = append(lockerIDs, items[i].LockerID)
			orderIDs = append(orderIDs, items[i].OrderID)
		}

		if err := s.itemRepo.ResetToCreated(ctx, tx, itemIDs); err != nil {
			return err
		}
		if err := s.lockerRepo.UpdateStatusMany(ctx, tx, lockerIDs, entities.LockerStatusFree); err != nil {
			return err
		}
		if err := s.orderRepo.DemoteStaleAwaiting(ctx, tx, orderIDs); err != nil {
			return err
		}
		released = len(items)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка снятия истёкших удержаний: %w", err)
	}
	if released > 0 {
		s.logger.Info("сняты истёкшие удержания ячеек", zap.Int("count", released))
	}
	return released, nil
}

// RefreshExpiredRentals переводит активные позиции с истёкшим end_at в
// следующий статус. Полностью оплаченный заказ истекает и ячейка
// освобождается; неоплаченный уходит в OVERDUE, а ячейка остаётся
// OCCUPIED - вещи арендатора всё ещё внутри.
func (s *LockerService) RefreshExpiredRentals(ctx context.Context) (int, error) {
	refreshed := 0
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		items, err := s.itemRepo.FindExpiredActive(ctx, tx, time.Now())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		var expiredIDs, expiredLockers, overdueIDs []string
		for i := range items {
			it := items[i]
			if it.Order != nil && it.Order.Status == entities.OrderStatusPaid {
				expiredIDs = append(expiredIDs, it.ID)
				expiredLockers = append(expiredLockers, it.LockerID)
			} else {
				overdueIDs = append(overdueIDs, it.ID)
			}
		}

		if err := s.itemRepo.SetStatusMany(ctx, tx, expiredIDs, entities.OrderItemStatusExpired); err != nil {
			return err
		}
		if err := s.lockerRepo.UpdateStatusMany(ctx, tx, expiredLockers, entities.LockerStatusFree); err != nil {
			return err
		}
		if err := s.itemRepo.SetStatusMany(ctx, tx, overdueIDs, entities.OrderItemStatusOverdue); err != nil {
			return err
		}
		refreshed = len(items)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления истёкших аренд: %w", err)
	}
	if refreshed > 0 {
		s.logger.Info("обновлены истёкшие аренды", zap.Int("count", refreshed))
	}
	return refreshed, nil
}

func (s *LockerService) ReleaseExpiredFreezes(ctx context.Context) (int64, error) {
	count, err := s.lockerRepo.ReleaseExpiredFreezes(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("размороженные по сроку ячейки возвращены в оборот", zap.Int64("count", count))
	}
	return count, nil
}
