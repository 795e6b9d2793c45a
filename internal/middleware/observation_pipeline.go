package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketBrain/internal/domain/models"
	domrepo "MarketBrain/internal/domain/repository"
	"MarketBrain/pkg/logger"
)

var (
	ErrTickNil          = errors.New("tick nil")
	ErrSymbolEmpty      = errors.New("symbol empty")
	ErrTimestampBad     = errors.New("timestamp invalid")
	ErrPriceNotPositive = errors.New("price must be positive")
)

// Validator settles ledger rows against an observed price.
type Validator interface {
	Validate(ctx context.Context, symbol string, observed float64) models.ValidationResult
}

// ObservationPipeline sits between live tick sources and the ledger.
// It validates ticks, throttles per symbol and forwards accepted prices.
type ObservationPipeline struct {
	ledger      Validator
	metrics     domrepo.Metrics
	log         *logger.Logger
	minInterval time.Duration
	now         func() time.Time
	// optional symbol rewrite, e.g. feed symbols onto ledger symbols
	transform func(models.Tick) models.Tick

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

type PipelineOption func(*ObservationPipeline)

// WithMinInterval sets the minimum gap between two accepted ticks of a symbol.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *ObservationPipeline) { p.minInterval = d }
}

func WithTransform(fn func(models.Tick) models.Tick) PipelineOption {
	return func(p *ObservationPipeline) { p.transform = fn }
}

// WithSymbolMap rewrites mapped symbols; unmapped symbols pass through.
func WithSymbolMap(m map[string]string) PipelineOption {
	return WithTransform(func(t models.Tick) models.Tick {
		if to, ok := m[t.Symbol]; ok {
			t.Symbol = to
		}
		return t
	})
}

func WithPipelineLogger(log *logger.Logger) PipelineOption {
	return func(p *ObservationPipeline) { p.log = log }
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *ObservationPipeline) { p.now = now }
}

func NewObservationPipeline(ledger Validator, metrics domrepo.Metrics, opts ...PipelineOption) *ObservationPipeline {
	p := &ObservationPipeline{
		ledger:      ledger,
		metrics:     metrics,
		log:         logger.Nop(),
		minInterval: 30 * time.Second,
		now:         time.Now,
		lastSeen:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles and forwards a tick. It returns whether the
// tick reached the ledger; rejected ticks are counted, never propagated.
func (p *ObservationPipeline) Process(ctx context.Context, t *models.Tick) bool {
	start := p.now()
	if err := validateTick(t); err != nil {
		p.recordError("pipeline_validate")
		p.log.Debug("tick rejected", logger.Error(err))
		return false
	}
	tick := *t
	if p.transform != nil {
		tick = p.transform(tick)
		if err := validateTick(&tick); err != nil {
			p.recordError("pipeline_transform_invalid")
			return false
		}
	}
	if !p.allow(tick.Symbol, start) {
		return false
	}

	res := p.ledger.Validate(ctx, tick.Symbol, tick.Price)
	if p.metrics != nil {
		p.metrics.RecordLastPrice(tick.Symbol, tick.Price)
		p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	}
	if res.Predictions > 0 || res.Patterns > 0 {
		p.log.Info("live observation settled ledger rows",
			logger.String("symbol", tick.Symbol),
			logger.Float("price", tick.Price),
			logger.Int("predictions", res.Predictions),
			logger.Int("patterns", res.Patterns))
	}
	return true
}

func (p *ObservationPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateTick(t *models.Tick) error {
	switch {
	case t == nil:
		return ErrTickNil
	case t.Symbol == "":
		return ErrSymbolEmpty
	case t.Timestamp <= 0:
		return ErrTimestampBad
	case !(t.Price > 0):
		return ErrPriceNotPositive
	}
	return nil
}

func (p *ObservationPipeline) allow(symbol string, now time.Time) bool {
	if p.minInterval <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < p.minInterval {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
