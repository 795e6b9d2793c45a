package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketBrain/internal/domain/models"
	domrepo "MarketBrain/internal/domain/repository"
	pkgch "MarketBrain/pkg/clickhouse"
	applogger "MarketBrain/pkg/logger"
)

// CandleArchiveSchema creates the daily bar table. Re-archived bars replace
// earlier copies of the same (symbol, day).
func CandleArchiveSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.candles_daily (
    day      Date,
    symbol   LowCardinality(String),
    open     Float64,
    high     Float64,
    low      Float64,
    close    Float64,
    volume   Float64,
    ingested DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested)
ORDER BY (symbol, day)`, database),
	}
}

// CHCandleArchive stores fetched daily bars in ClickHouse.
type CHCandleArchive struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleArchive(ch *pkgch.Client, l *applogger.Logger) *CHCandleArchive {
	return newCHCandleArchive(ch.DB(), ch.Database(), l)
}

func newCHCandleArchive(db *sql.DB, database string, l *applogger.Logger) *CHCandleArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleArchive{db: db, table: database + ".candles_daily", l: l}
}

func (a *CHCandleArchive) StoreBars(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (day, symbol, open, high, low, close, volume)", a.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("archive prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if b.Symbol == "" || b.Time.IsZero() {
			continue
		}
		day := b.Time.UTC().Truncate(24 * time.Hour)
		if _, err := stmt.ExecContext(ctx, day, b.Symbol, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("archive append: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive commit: %w", err)
	}
	a.l.Debug("archived bars",
		applogger.String("symbol", bars[0].Symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// LatestBar returns the day of the newest archived bar, or the zero time.
func (a *CHCandleArchive) LatestBar(ctx context.Context, symbol string) (time.Time, error) {
	var last sql.NullTime
	q := fmt.Sprintf("SELECT max(day) FROM %s WHERE symbol = ?", a.table)
	if err := a.db.QueryRowContext(ctx, q, symbol).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("latest bar: %w", err)
	}
	if !last.Valid || last.Time.Year() <= 1970 {
		return time.Time{}, nil
	}
	return last.Time.UTC(), nil
}

// Close is a no-op; the client owns the pool.
func (a *CHCandleArchive) Close() error { return nil }

var _ domrepo.CandleArchive = (*CHCandleArchive)(nil)
