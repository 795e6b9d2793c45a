package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"MarketBrain/internal/domain/models"
	"MarketBrain/internal/service/ratelimit"
	"MarketBrain/internal/usecase"
	"MarketBrain/pkg/cycle"
	xhttp "MarketBrain/pkg/http"
	xlogger "MarketBrain/pkg/logger"
	"MarketBrain/pkg/util"
)

// LoopController is the supervisor surface used by the API.
type LoopController interface {
	Status() usecase.SystemStatus
	Start(name string) error
	Stop(name string) error
	RunOnce(ctx context.Context, name string) error
}

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	Accuracy(symbol string) float64
	ValidatedCount(symbol string) int
	RecentPatterns(limit int) []models.PatternEvent
	PatternSuccessRate(name string) models.PatternPerformance
	LearningContext(symbol string) models.LearningContext
}

type Predictor interface {
	Predict(ctx context.Context, symbol string) (models.Forecast, error)
}

// BrainEchoHandler serves /api/brain.
type BrainEchoHandler struct {
	logger     *xlogger.Logger
	loops      LoopController
	ledger     LedgerReader
	forecaster Predictor
	limiter    *ratelimit.Limiter
}

func NewBrainEchoHandler(logger *xlogger.Logger, loops LoopController, ledger LedgerReader, forecaster Predictor, limiter *ratelimit.Limiter) *BrainEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &BrainEchoHandler{logger: logger, loops: loops, ledger: ledger, forecaster: forecaster, limiter: limiter}
}

func (h *BrainEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/brain")
	g.GET("/status", h.Status)
	g.POST("/loops/:name/start", h.StartLoop)
	g.POST("/loops/:name/stop", h.StopLoop)
	g.POST("/loops/:name/run", h.RunLoop)
	g.GET("/accuracy", h.Accuracy)
	g.GET("/patterns", h.RecentPatterns)
	g.GET("/patterns/performance", h.PatternPerformance)
	g.GET("/learning/:symbol", h.Learning)
	g.POST("/predict/:symbol", h.Predict)
}

func (h *BrainEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.loops.Status())
}

func (h *BrainEchoHandler) StartLoop(c echo.Context) error {
	req := &models.LoopRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.loops.Start(req.Name); err != nil {
		return h.loopError(c, req.Name, err)
	}
	h.logger.Info("loop started via api", xlogger.String("loop", req.Name))
	return xhttp.SuccessResponse(c, h.loops.Status().Loops[req.Name])
}

func (h *BrainEchoHandler) StopLoop(c echo.Context) error {
	req := &models.LoopRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.loops.Stop(req.Name); err != nil {
		return h.loopError(c, req.Name, err)
	}
	h.logger.Info("loop stop requested via api", xlogger.String("loop", req.Name))
	return xhttp.SuccessResponse(c, h.loops.Status().Loops[req.Name])
}

type runResult struct {
	Loop  cycle.Snapshot `json:"loop"`
	Error string         `json:"error,omitempty"`
}

// RunLoop executes one cycle synchronously. A failing cycle is reported in
// the body; the request itself still succeeds.
func (h *BrainEchoHandler) RunLoop(c echo.Context) error {
	req := &models.LoopRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := runResult{}
	if err := h.loops.RunOnce(c.Request().Context(), req.Name); err != nil {
		if errors.Is(err, usecase.ErrUnknownLoop) {
			return h.loopError(c, req.Name, err)
		}
		res.Error = err.Error()
	}
	res.Loop = h.loops.Status().Loops[req.Name]
	return xhttp.SuccessResponse(c, res)
}

func (h *BrainEchoHandler) loopError(c echo.Context, name string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnknownLoop):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("loop %q is not configured", name).WithError(err))
	case errors.Is(err, usecase.ErrLoopRunning):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("loop already running").WithParam("loop", name))
	default:
		h.logger.Error("loop control failed", xlogger.String("loop", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("loop control failed").WithError(err))
	}
}

type accuracyResponse struct {
	Symbol    string  `json:"symbol,omitempty"`
	Accuracy  float64 `json:"accuracy"`
	Validated int     `json:"validated"`
}

func (h *BrainEchoHandler) Accuracy(c echo.Context) error {
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	return xhttp.SuccessResponse(c, accuracyResponse{
		Symbol:    symbol,
		Accuracy:  h.ledger.Accuracy(symbol),
		Validated: h.ledger.ValidatedCount(symbol),
	})
}

func (h *BrainEchoHandler) RecentPatterns(c echo.Context) error {
	req := &models.RecentPatternsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.ledger.RecentPatterns(req.Limit))
}

func (h *BrainEchoHandler) PatternPerformance(c echo.Context) error {
	req := &models.PatternPerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.ledger.PatternSuccessRate(req.Name))
}

func (h *BrainEchoHandler) Learning(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.ledger.LearningContext(util.NormalizeSymbol(req.Symbol)))
}

func (h *BrainEchoHandler) Predict(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()+":predict") {
		h.logger.Warn("predict rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	fc, err := h.forecaster.Predict(c.Request().Context(), symbol)
	if err != nil {
		if errors.Is(err, usecase.ErrNoPriceHistory) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no price history for %s", symbol).WithError(err))
		}
		h.logger.Error("predict failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("prediction failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, fc)
}
