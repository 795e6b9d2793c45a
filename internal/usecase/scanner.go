package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	"MarketBrain/internal/domain/service"
	"MarketBrain/pkg/cycle"
	"MarketBrain/pkg/logger"
)

type ScannerConfig struct {
	Watchlist       []string
	HistoryDays     int
	SymbolDelay     time.Duration
	UpstreamTimeout time.Duration
}

type ScannerOption func(*Scanner)

func WithScannerArchive(a drepo.CandleArchive) ScannerOption {
	return func(s *Scanner) { s.archive = a }
}

func WithScannerLogger(log *logger.Logger) ScannerOption {
	return func(s *Scanner) { s.log = log }
}

// Scanner walks the watch-list, settles patterns at the latest close and
// records newly detected ones.
type Scanner struct {
	cfg      ScannerConfig
	ledger   *Ledger
	prices   drepo.PriceSource
	detector service.PatternDetector
	budget   *ErrorBudget
	archive  drepo.CandleArchive
	log      *logger.Logger
}

func NewScanner(cfg ScannerConfig, ledger *Ledger, prices drepo.PriceSource, detector service.PatternDetector, budget *ErrorBudget, opts ...ScannerOption) *Scanner {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 15 * time.Second
	}
	s := &Scanner{cfg: cfg, ledger: ledger, prices: prices, detector: detector, budget: budget, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cycle scans every symbol. A symbol failure is logged and skipped.
func (s *Scanner) Cycle(ctx context.Context, l *cycle.Loop) error {
	var found, failed int
	for i, symbol := range s.cfg.Watchlist {
		l.SetAction("Scanning " + symbol)
		recorded, err := s.ScanSymbol(ctx, symbol)
		if err != nil {
			failed++
			s.budget.Add()
			s.log.Warn("scan failed", logger.String("symbol", symbol), logger.Error(err))
		}
		found += len(recorded)

		if i < len(s.cfg.Watchlist)-1 && s.cfg.SymbolDelay > 0 {
			t := time.NewTimer(s.cfg.SymbolDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	s.log.Info("scan complete",
		logger.Int("symbols", len(s.cfg.Watchlist)),
		logger.Int("failed", failed),
		logger.Int("patterns_recorded", found))
	return ctx.Err()
}

// ScanSymbol processes one symbol and returns the newly recorded patterns.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string) ([]models.PatternEvent, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	history, err := s.prices.FetchPriceHistory(cctx, symbol, s.cfg.HistoryDays)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no history for %s", symbol)
	}
	if s.archive != nil {
		if err := s.archive.StoreBars(cctx, history); err != nil {
			s.log.Warn("archive write failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	last := history[len(history)-1].Close
	s.ledger.ValidatePatterns(ctx, symbol, last)

	candidates, err := s.detector.DetectPatterns(cctx, symbol, history)
	if err != nil {
		s.budget.Add()
		s.log.Warn("pattern detection degraded", logger.String("symbol", symbol), logger.Error(err))
	}

	var recorded []models.PatternEvent
	for _, c := range candidates {
		if perf := s.ledger.PatternSuccessRate(c.Name); perf.Total > 0 {
			c.Description += fmt.Sprintf(" (Hist. Success: %.1f%%)", perf.SuccessRate)
		}
		if ev, ok := s.ledger.RecordPattern(ctx, symbol, c, last); ok {
			recorded = append(recorded, ev)
		}
	}
	if len(candidates) > 0 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		s.log.Info("Detected patterns", logger.String("symbol", symbol), logger.Strings("patterns", names))
	}
	return recorded, nil
}
