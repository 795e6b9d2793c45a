package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	"MarketBrain/pkg/cycle"
	"MarketBrain/pkg/logger"
)

type BrainConfig struct {
	Watchlist          []string
	StaleAfter         time.Duration
	BackfillDays       int
	HealErrorThreshold int
	UpstreamTimeout    time.Duration
}

// Healer is run by the self-heal phase, e.g. to drop cached upstream data.
type Healer func(ctx context.Context) error

type BrainOption func(*Brain)

func WithBrainArchive(a drepo.CandleArchive) BrainOption {
	return func(b *Brain) { b.archive = a }
}

func WithBrainHealers(h ...Healer) BrainOption {
	return func(b *Brain) { b.healers = append(b.healers, h...) }
}

func WithBrainLogger(log *logger.Logger) BrainOption {
	return func(b *Brain) { b.log = log }
}

func WithBrainClock(now func() time.Time) BrainOption {
	return func(b *Brain) { b.now = now }
}

// Brain runs the audit, evaluate, optimize and self-heal phases.
type Brain struct {
	cfg     BrainConfig
	ledger  *Ledger
	prices  drepo.PriceSource
	budget  *ErrorBudget
	archive drepo.CandleArchive
	healers []Healer
	log     *logger.Logger
	now     func() time.Time
}

func NewBrain(cfg BrainConfig, ledger *Ledger, prices drepo.PriceSource, budget *ErrorBudget, opts ...BrainOption) *Brain {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 72 * time.Hour
	}
	if cfg.BackfillDays <= 0 {
		cfg.BackfillDays = 5
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 15 * time.Second
	}
	b := &Brain{cfg: cfg, ledger: ledger, prices: prices, budget: budget, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cycle is the brain loop body. A failing phase is logged and the next phase
// still runs; only cancellation aborts the cycle.
func (b *Brain) Cycle(ctx context.Context, l *cycle.Loop) error {
	b.log.Info("Starting autonomous cycle")

	phases := []struct {
		action string
		run    func(context.Context, *cycle.Loop) error
	}{
		{"Auditing data", b.audit},
		{"Evaluating strategies", b.evaluate},
		{"Optimizing parameters", b.optimize},
		{"Self-healing", b.selfHeal},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.SetAction(ph.action)
		if err := runPhase(ctx, l, ph.run); err != nil {
			b.log.Warn("phase failed", logger.String("phase", ph.action), logger.Error(err))
		}
	}

	b.log.Info("Cycle complete", logger.String("health", string(l.Health())))
	return nil
}

// runPhase turns a panic inside one phase into an error so later phases run.
func runPhase(ctx context.Context, l *cycle.Loop, run func(context.Context, *cycle.Loop) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phase panic: %v", r)
		}
	}()
	return run(ctx, l)
}

// audit backfills watch-list symbols whose latest bar is missing or too old.
func (b *Brain) audit(ctx context.Context, l *cycle.Loop) error {
	var failed int
	for _, symbol := range b.cfg.Watchlist {
		fresh, err := b.isFresh(ctx, symbol)
		if err != nil {
			b.budget.Add()
			b.log.Warn("freshness check failed", logger.String("symbol", symbol), logger.Error(err))
		}
		if fresh {
			b.log.Debug("data is fresh", logger.String("symbol", symbol))
			continue
		}

		b.log.Warn("Data gap detected, triggering backfill", logger.String("symbol", symbol))
		l.SetHealth(cycle.HealthHealing)
		if err := b.backfill(ctx, symbol); err != nil {
			failed++
			b.budget.Add()
			b.log.Warn("backfill failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("audit: %d backfills failed", failed)
	}
	return nil
}

func (b *Brain) isFresh(ctx context.Context, symbol string) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, b.cfg.UpstreamTimeout)
	defer cancel()

	if b.archive != nil {
		last, err := b.archive.LatestBar(cctx, symbol)
		if err == nil && !last.IsZero() {
			return b.now().Sub(last) <= b.cfg.StaleAfter, nil
		}
	}

	bars, err := b.prices.FetchPriceHistory(cctx, symbol, 1)
	if err != nil {
		return false, err
	}
	if len(bars) == 0 {
		return false, nil
	}
	return b.now().Sub(bars[len(bars)-1].Time) <= b.cfg.StaleAfter, nil
}

func (b *Brain) backfill(ctx context.Context, symbol string) error {
	cctx, cancel := context.WithTimeout(ctx, b.cfg.UpstreamTimeout)
	defer cancel()

	bars, err := b.prices.FetchPriceHistory(cctx, symbol, b.cfg.BackfillDays)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars for %s", symbol)
	}
	if b.archive != nil {
		if err := b.archive.StoreBars(cctx, bars); err != nil {
			b.log.Warn("archive backfill failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	b.log.Info("backfill complete", logger.String("symbol", symbol), logger.Int("bars", len(bars)))
	return nil
}

// evaluate settles outstanding ledger rows at the latest close.
func (b *Brain) evaluate(ctx context.Context, _ *cycle.Loop) error {
	symbols := b.ledger.OutstandingSymbols()
	var total models.ValidationResult
	var failed int
	for _, symbol := range symbols {
		price, err := b.latestClose(ctx, symbol)
		if err != nil {
			failed++
			b.budget.Add()
			b.log.Warn("latest close unavailable", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		res := b.ledger.Validate(ctx, symbol, price)
		total.Predictions += res.Predictions
		total.Patterns += res.Patterns
	}
	b.log.Info("Evaluated strategy performance",
		logger.Int("symbols", len(symbols)),
		logger.Int("predictions_validated", total.Predictions),
		logger.Int("patterns_validated", total.Patterns),
		logger.Float("accuracy", b.ledger.Accuracy("")))
	if failed > 0 {
		return fmt.Errorf("evaluate: %d of %d symbols had no price", failed, len(symbols))
	}
	return nil
}

func (b *Brain) latestClose(ctx context.Context, symbol string) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, b.cfg.UpstreamTimeout)
	defer cancel()
	bars, err := b.prices.FetchPriceHistory(cctx, symbol, 5)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no bars for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}

// optimize moves the confidence threshold based on ledger accuracy.
func (b *Brain) optimize(context.Context, *cycle.Loop) error {
	accuracy := b.ledger.Accuracy("")
	samples := b.ledger.ValidatedCount("")
	tun := b.ledger.Tunables()

	switch {
	case accuracy > 80:
		if tun.SetConfidenceMin(ConfidenceLoose) {
			b.log.Info("High accuracy detected, loosening confidence threshold",
				logger.Float("accuracy", accuracy), logger.Float("confidence_min", ConfidenceLoose))
		}
	case accuracy < 60 && samples >= 10:
		if tun.SetConfidenceMin(ConfidenceTight) {
			b.log.Info("Low accuracy detected, tightening confidence threshold",
				logger.Float("accuracy", accuracy), logger.Int("samples", samples), logger.Float("confidence_min", ConfidenceTight))
		}
	}
	return nil
}

// selfHeal resets the upstream error budget once it exceeds the threshold.
func (b *Brain) selfHeal(ctx context.Context, l *cycle.Loop) error {
	count := b.budget.Count()
	if count <= int64(b.cfg.HealErrorThreshold) {
		return nil
	}
	b.log.Warn("High API error rate detected, initiating self-healing", logger.Int64("errors", count))
	b.budget.Reset()
	l.SetHealth(cycle.HealthHealing)

	var failed int
	for _, heal := range b.healers {
		if err := heal(ctx); err != nil {
			failed++
			b.log.Warn("healer failed", logger.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("self-heal: %d healers failed", failed)
	}
	return nil
}
