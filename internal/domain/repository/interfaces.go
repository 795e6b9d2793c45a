package repository

import (
	"context"
	"time"

	"MarketBrain/internal/domain/models"
)

// LedgerStore persists the prediction/pattern ledger. Rows are append-only;
// Save* calls upsert by ID so validation updates overwrite in place.
type LedgerStore interface {
	Load(ctx context.Context) ([]models.Prediction, []models.PatternEvent, error)
	SavePredictions(ctx context.Context, preds []models.Prediction) error
	SavePatterns(ctx context.Context, patterns []models.PatternEvent) error
	Ping(ctx context.Context) error
	Close() error
}

// PriceSource returns daily bars, oldest first. Implementations return an
// empty slice together with the error on failure.
type PriceSource interface {
	FetchPriceHistory(ctx context.Context, symbol string, days int) ([]models.PriceBar, error)
}

type NewsSource interface {
	FetchNews(ctx context.Context, symbol string) ([]models.Headline, error)
}

// TechnicalsSource returns nil without error when the symbol is unsupported.
type TechnicalsSource interface {
	FetchTechnicals(ctx context.Context, symbol string) (*models.TechnicalSummary, error)
}

// CandleArchive keeps fetched bars for offline analysis.
type CandleArchive interface {
	StoreBars(ctx context.Context, bars []models.PriceBar) error
	LatestBar(ctx context.Context, symbol string) (time.Time, error)
	Close() error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.LedgerEvent) error
	Close() error
}

type Journal interface {
	Append(entry models.LogEntry)
	GetLogs(ctx context.Context, limit int, level string) ([]models.LogEntry, error)
	GetStats(ctx context.Context) (models.LogStats, error)
	Close() error
}

// TickStream is a live trade source.
type TickStream interface {
	Run(ctx context.Context, out chan<- models.Tick) error
	Close() error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(symbol string, price float64)
}
