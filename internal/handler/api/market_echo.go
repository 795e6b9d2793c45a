package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"MarketBrain/internal/domain/models"
	xhttp "MarketBrain/pkg/http"
	xlogger "MarketBrain/pkg/logger"
)

type MoversProvider interface {
	GetMovers(ctx context.Context) ([]models.Mover, error)
}

// MarketEchoHandler serves /api/market.
type MarketEchoHandler struct {
	logger *xlogger.Logger
	movers MoversProvider
}

func NewMarketEchoHandler(logger *xlogger.Logger, movers MoversProvider) *MarketEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &MarketEchoHandler{logger: logger, movers: movers}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/market")
	g.GET("/movers", h.Movers)
}

// Movers never fails the request: an upstream outage yields an empty list.
func (h *MarketEchoHandler) Movers(c echo.Context) error {
	movers, err := h.movers.GetMovers(c.Request().Context())
	if err != nil {
		h.logger.Warn("movers unavailable", xlogger.Error(err))
	}
	if movers == nil {
		movers = []models.Mover{}
	}
	return xhttp.ListResponse(c, movers, int64(len(movers)))
}
