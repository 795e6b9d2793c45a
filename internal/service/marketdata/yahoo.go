package marketdata

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"MarketBrain/internal/domain/models"
	svcmetrics "MarketBrain/internal/service/metrics"
	"MarketBrain/internal/service/ratelimit"
	"MarketBrain/pkg/logger"
)

const sourceName = "yahoo"

// fetchFunc returns raw daily bars for [start, end].
type fetchFunc func(ctx context.Context, symbol string, start, end time.Time) ([]finance.ChartBar, error)

// Yahoo is a PriceSource backed by the Yahoo Finance chart API.
type Yahoo struct {
	limiter *ratelimit.Limiter
	fetch   fetchFunc
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Yahoo)

func WithLimiter(l *ratelimit.Limiter) Option { return func(y *Yahoo) { y.limiter = l } }

func WithLogger(l *logger.Logger) Option { return func(y *Yahoo) { y.log = l } }

func withFetch(f fetchFunc) Option { return func(y *Yahoo) { y.fetch = f } }

func withClock(now func() time.Time) Option { return func(y *Yahoo) { y.now = now } }

func NewYahoo(opts ...Option) *Yahoo {
	y := &Yahoo{fetch: chartBars, log: logger.Nop(), now: time.Now}
	for _, o := range opts {
		o(y)
	}
	return y
}

// FetchPriceHistory returns up to days of daily bars, oldest first. On any
// failure it returns an empty slice and the error.
func (y *Yahoo) FetchPriceHistory(ctx context.Context, symbol string, days int) ([]models.PriceBar, error) {
	if days <= 0 {
		return []models.PriceBar{}, fmt.Errorf("invalid history window %d", days)
	}
	if y.limiter != nil {
		if err := y.limiter.Wait(ctx, sourceName); err != nil {
			return []models.PriceBar{}, err
		}
	}

	end := y.now().UTC()
	start := end.AddDate(0, 0, -days)

	began := time.Now()
	raw, err := y.fetch(ctx, symbol, start, end)
	svcmetrics.Observe(sourceName, began, err)
	if err != nil {
		y.log.Warn("price history fetch failed", logger.String("symbol", symbol), logger.Error(err))
		return []models.PriceBar{}, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}

	bars := make([]models.PriceBar, 0, len(raw))
	for _, b := range raw {
		bar := toPriceBar(symbol, b)
		// yahoo emits null rows for halted sessions
		if bar.Close <= 0 {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func toPriceBar(symbol string, b finance.ChartBar) models.PriceBar {
	return models.PriceBar{
		Symbol: symbol,
		Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
		Open:   b.Open.InexactFloat64(),
		High:   b.High.InexactFloat64(),
		Low:    b.Low.InexactFloat64(),
		Close:  b.Close.InexactFloat64(),
		Volume: float64(b.Volume),
	}
}

func chartBars(ctx context.Context, symbol string, start, end time.Time) ([]finance.ChartBar, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}
	params.Context = &ctx

	iter := chart.Get(params)
	var out []finance.ChartBar
	for iter.Next() {
		out = append(out, *iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
