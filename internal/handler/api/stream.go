package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MarketBrain/internal/usecase"
	"MarketBrain/pkg/http/middleware"
	xlogger "MarketBrain/pkg/logger"
)

const writeWait = 5 * time.Second

// StatusSource produces the snapshot pushed to stream subscribers.
type StatusSource interface {
	Status() usecase.SystemStatus
}

// StreamHandler pushes the system status over a websocket at a fixed interval.
type StreamHandler struct {
	logger   *xlogger.Logger
	status   StatusSource
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewStreamHandler(logger *xlogger.Logger, status StatusSource, interval time.Duration, origins []string) *StreamHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StreamHandler{
		logger:   logger,
		status:   status,
		interval: interval,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(origins)},
	}
}

// Non-browser clients send no Origin and are always accepted.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.OriginAllowed(origins, origin)
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/brain/stream", h.Stream)
}

func (h *StreamHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	// Reader goroutine only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(h.status.Status()); err != nil {
			h.logger.Debug("stream client dropped", xlogger.Error(err))
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-gone:
			return nil
		case <-ticker.C:
		}
	}
}
