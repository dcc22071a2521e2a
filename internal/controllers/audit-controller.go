package controllers

import (
	"fmt"
	"net/http"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/services"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AuditController struct {
	auditService  services.AuditServiceInterface
	reportService services.ReportServiceInterface
	logger        *zap.Logger
}

func NewAuditController(
	auditService services.AuditServiceInterface,
	reportService services.ReportServiceInterface,
	logger *zap.Logger,
) *AuditController {
	return &AuditController{auditService: auditService, reportService: reportService, logger: logger}
}

func (ctrl *AuditController) GetLogs(c echo.Context) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	logs, err := ctrl.auditService.Query(c.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, logs, "", http.StatusOK)
}

func (ctrl *AuditController) ExportCsv(c echo.Context) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	data, err := ctrl.auditService.ExportCsv(c.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	filename := fmt.Sprintf("lockbox-audit-%s.csv", time.Now().Format("20060102-150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// UsageReport отдаёт XLSX за период. По умолчанию берутся последние 30 дней.
func (ctrl *AuditController) UsageReport(c echo.Context) error {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат даты from, ожидается YYYY-MM-DD"), ctrl.logger)
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат даты to, ожидается YYYY-MM-DD"), ctrl.logger)
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Дата from должна быть раньше to"), ctrl.logger)
	}

	buf, filename, err := ctrl.reportService.BuildUsageReport(c.Request().Context(), from, to)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func parseAuditFilter(c echo.Context) (dto.AuditQueryDTO, error) {
	filter := dto.AuditQueryDTO{
		LockerID:       c.QueryParam("locker_id"),
		UserPhone:      c.QueryParam("user_phone"),
		ManagerID:      c.QueryParam("manager_id"),
		Action:         entities.AuditAction(c.QueryParam("action")),
		OnlyPaidOpens:  c.QueryParam("only_paid_opens") == "true",
		OnlyAdminOpens: c.QueryParam("only_admin_opens") == "true",
	}

	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.NewInvalidRequestError("Неверный формат даты from, ожидается RFC3339")
		}
		filter.From = &parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.NewInvalidRequestError("Неверный формат даты to, ожидается RFC3339")
		}
		filter.To = &parsed
	}
	return filter, nil
}
