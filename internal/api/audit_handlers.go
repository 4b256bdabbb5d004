package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"nnoitra-backend/internal/auth"
	"nnoitra-backend/internal/models"
)

// listAuditLogsHandler handles GET /api/audit. Callers only see their own
// entries.
func (h *Handler) listAuditLogsHandler(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"status":  "error",
			"message": "Invalid or expired session.",
		})
	}

	filter := models.AuditFilter{
		Username: principal.Username(),
		Limit:    50,
		Offset:   0,
	}

	// Parse query parameters
	if limit := c.QueryParam("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 1000 {
			filter.Limit = l
		}
	}
	if offset := c.QueryParam("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}
	if action := c.QueryParam("action"); action != "" {
		filter.Action = action
	}
	if startTime := c.QueryParam("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			filter.StartTime = t
		}
	}
	if endTime := c.QueryParam("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			filter.EndTime = t
		}
	}

	logs, total, err := h.audit.List(c.Request().Context(), filter)
	if err != nil {
		h.log.Error("list audit logs failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Internal server error.",
		})
	}

	if logs == nil {
		logs = []models.AuditLog{}
	}

	return c.JSON(http.StatusOK, models.AuditListResponse{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}
