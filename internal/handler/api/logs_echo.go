package api

import (
	"github.com/labstack/echo/v4"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	xhttp "MarketBrain/pkg/http"
	xlogger "MarketBrain/pkg/logger"
)

// LogsEchoHandler exposes the activity journal.
type LogsEchoHandler struct {
	logger  *xlogger.Logger
	journal drepo.Journal
}

func NewLogsEchoHandler(logger *xlogger.Logger, journal drepo.Journal) *LogsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &LogsEchoHandler{logger: logger, journal: journal}
}

func (h *LogsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/logs")
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
}

func (h *LogsEchoHandler) List(c echo.Context) error {
	req := &models.LogsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.journal == nil {
		return xhttp.ListResponse(c, []models.LogEntry{}, 0)
	}
	rows, err := h.journal.GetLogs(c.Request().Context(), req.Limit, req.Level)
	if err != nil {
		h.logger.Error("failed to read journal", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to read logs").WithError(err))
	}
	if rows == nil {
		rows = []models.LogEntry{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *LogsEchoHandler) Stats(c echo.Context) error {
	if h.journal == nil {
		return xhttp.SuccessResponse(c, models.LogStats{})
	}
	stats, err := h.journal.GetStats(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to read journal stats", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to read log stats").WithError(err))
	}
	return xhttp.SuccessResponse(c, stats)
}
