package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"lockbox/internal/repositories"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const busiestLockersLimit = 20

type ReportServiceInterface interface {
	// BuildUsageReport собирает XLSX-отчёт за период: выручка по дням,
	// аренды по статусам, самые загруженные ячейки.
	BuildUsageReport(ctx context.Context, from, to time.Time) (*bytes.Buffer, string, error)
}

type ReportService struct {
	reportRepo repositories.ReportRepositoryInterface
	logger     *zap.Logger
}

func NewReportService(reportRepo repositories.ReportRepositoryInterface, logger *zap.Logger) ReportServiceInterface {
	return &ReportService{reportRepo: reportRepo, logger: logger}
}

func (s *ReportService) BuildUsageReport(ctx context.Context, from, to time.Time) (*bytes.Buffer, string, error) {
	revenue, err := s.reportRepo.RevenueByDay(ctx, from, to)
	if err != nil {
		return nil, "", err
	}
	statuses, err := s.reportRepo.RentalsByStatus(ctx)
	if err != nil {
		return nil, "", err
	}
	busiest, err := s.reportRepo.BusiestLockers(ctx, from, to, busiestLockersLimit)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const revenueSheet = "Выручка"
	f.SetSheetName("Sheet1", revenueSheet)
	f.SetCellValue(revenueSheet, "A1", "Дата")
	f.SetCellValue(revenueSheet, "B1", "Платежей")
	f.SetCellValue(revenueSheet, "C1", "Сумма, руб")
	totalRub := 0
	for i, row := range revenue {
		f.SetCellValue(revenueSheet, fmt.Sprintf("A%d", i+2), row.Day.Format("02.01.2006"))
		f.SetCellValue(revenueSheet, fmt.Sprintf("B%d", i+2), row.Payments)
		f.SetCellValue(revenueSheet, fmt.Sprintf("C%d", i+2), row.AmountRub)
		totalRub += row.AmountRub
	}
	f.SetCellValue(revenueSheet, fmt.Sprintf("A%d", len(revenue)+3), "Итого")
	f.SetCellValue(revenueSheet, fmt.Sprintf("C%d", len(revenue)+3), totalRub)

	const rentalsSheet = "Аренды"
	if _, err := f.NewSheet(rentalsSheet); err != nil {
		return nil, "", fmt.Errorf("ошибка формирования отчёта: %w", err)
	}
	f.SetCellValue(rentalsSheet, "A1", "Статус")
	f.SetCellValue(rentalsSheet, "B1", "Количество")
	for i, row := range statuses {
		f.SetCellValue(rentalsSheet, fmt.Sprintf("A%d", i+2), row.Status)
		f.SetCellValue(rentalsSheet, fmt.Sprintf("B%d", i+2), row.Count)
	}

	const lockersSheet = "Загрузка ячеек"
	if _, err := f.NewSheet(lockersSheet); err != nil {
		return nil, "", fmt.Errorf("ошибка формирования отчёта: %w", err)
	}
	f.SetCellValue(lockersSheet, "A1", "Ячейка №")
	f.SetCellValue(lockersSheet, "B1", "Аренды за период")
	for i, row := range busiest {
		f.SetCellValue(lockersSheet, fmt.Sprintf("A%d", i+2), row.Number)
		f.SetCellValue(lockersSheet, fmt.Sprintf("B%d", i+2), row.Rentals)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("ошибка записи отчёта: %w", err)
	}

	filename := fmt.Sprintf("lockbox-report-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	s.logger.Info("сформирован отчёт по использованию",
		zap.String("filename", filename), zap.Int("revenueRows", len(revenue)))
	return buf, filename, nil
}
