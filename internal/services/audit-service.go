package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditServiceInterface interface {
	// Log пишет запись аудита. Ошибка записи не должна ронять бизнес-операцию,
	// поэтому внутри транзакций вызывается LogTx, а вне их - Log, который
	// ошибку только логирует.
	Log(ctx context.Context, payload dto.CreateAuditLogDTO)
	LogTx(ctx context.Context, q repositories.Querier, payload dto.CreateAuditLogDTO) error
	Query(ctx context.Context, filter dto.AuditQueryDTO) ([]entities.AuditLog, error)
	ExportCsv(ctx context.Context, filter dto.AuditQueryDTO) ([]byte, error)
}

type AuditService struct {
	auditRepo repositories.AuditRepositoryInterface
	logger    *zap.Logger
}

func NewAuditService(auditRepo repositories.AuditRepositoryInterface, logger *zap.Logger) AuditServiceInterface {
	return &AuditService{auditRepo: auditRepo, logger: logger}
}

func buildAuditLog(payload dto.CreateAuditLogDTO) (*entities.AuditLog, error) {
	var meta json.RawMessage
	if payload.Metadata != nil {
		raw, err := json.Marshal(payload.Metadata)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации метаданных аудита: %w", err)
		}
		meta = raw
	}
	return &entities.AuditLog{
		ID:          uuid.NewString(),
		ActorType:   payload.ActorType,
		ActorID:     payload.ActorID,
		Action:      payload.Action,
		LockerID:    payload.LockerID,
		OrderID:     payload.OrderID,
		OrderItemID: payload.OrderItemID,
		PaymentID:   payload.PaymentID,
		UserID:      payload.UserID,
		Phone:       payload.Phone,
		IP:          payload.IP,
		UserAgent:   payload.UserAgent,
		Metadata:    meta,
	}, nil
}

func (s *AuditService) Log(ctx context.Context, payload dto.CreateAuditLogDTO) {
	if err := s.LogTx(ctx, nil, payload); err != nil {
		s.logger.Error("не удалось записать событие аудита",
			zap.String("action", string(payload.Action)), zap.Error(err))
	}
}

func (s *AuditService) LogTx(ctx context.Context, q repositories.Querier, payload dto.CreateAuditLogDTO) error {
	log, err := buildAuditLog(payload)
	if err != nil {
		return err
	}
	return s.auditRepo.Create(ctx, q, log)
}

func (s *AuditService) Query(ctx context.Context, filter dto.AuditQueryDTO) ([]entities.AuditLog, error) {
	return s.auditRepo.Query(ctx, filter)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportCsv выгружает журнал в CSV для разбора инцидентов.
func (s *AuditService) ExportCsv(ctx context.Context, filter dto.AuditQueryDTO) ([]byte, error) {
	logs, err := s.auditRepo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"timestamp", "action", "actor_type", "actor_id", "locker_id", "order_id", "order_item_id", "payment_id", "user_id", "phone", "ip", "metadata"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("ошибка формирования CSV: %w", err)
	}
	for i := range logs {
		l := &logs[i]
		row := []string{
			l.Timestamp.Format(time.RFC3339),
			string(l.Action),
			string(l.ActorType),
			deref(l.ActorID),
			deref(l.LockerID),
			deref(l.OrderID),
			deref(l.OrderItemID),
			deref(l.PaymentID),
			deref(l.UserID),
			deref(l.Phone),
			deref(l.IP),
			string(l.Metadata),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("ошибка формирования CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ошибка формирования CSV: %w", err)
	}
	return buf.Bytes(), nil
}
