package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	"MarketBrain/internal/domain/service"
	"MarketBrain/pkg/logger"
)

const (
	forecastHistoryDays = 30
	forecastHorizonDays = 7
	driftLookback       = 5
	fallbackRationale   = "analysis unavailable"
)

var ErrNoPriceHistory = errors.New("no price history")

// Forecaster issues a prediction for one symbol and records it in the ledger.
type Forecaster struct {
	ledger     *Ledger
	prices     drepo.PriceSource
	technicals drepo.TechnicalsSource
	news       drepo.NewsSource
	signals    service.SignalGenerator
	budget     *ErrorBudget
	timeout    time.Duration
	log        *logger.Logger
}

type ForecasterDeps struct {
	Ledger     *Ledger
	Prices     drepo.PriceSource
	Technicals drepo.TechnicalsSource // optional
	News       drepo.NewsSource       // optional
	Signals    service.SignalGenerator
	Budget     *ErrorBudget
	Timeout    time.Duration
	Logger     *logger.Logger
}

func NewForecaster(d ForecasterDeps) *Forecaster {
	if d.Timeout <= 0 {
		d.Timeout = 20 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Budget == nil {
		d.Budget = NewErrorBudget()
	}
	return &Forecaster{
		ledger:     d.Ledger,
		prices:     d.Prices,
		technicals: d.Technicals,
		news:       d.News,
		signals:    d.Signals,
		budget:     d.Budget,
		timeout:    d.Timeout,
		log:        d.Logger,
	}
}

func (f *Forecaster) Predict(ctx context.Context, symbol string) (models.Forecast, error) {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	history, err := f.prices.FetchPriceHistory(cctx, symbol, forecastHistoryDays)
	if err != nil {
		f.budget.Add()
		f.log.Warn("price history unavailable", logger.String("symbol", symbol), logger.Error(err))
	}
	if len(history) == 0 {
		return models.Forecast{}, ErrNoPriceHistory
	}
	current := history[len(history)-1].Close

	f.ledger.ValidatePredictions(ctx, symbol, current)
	learning := f.ledger.LearningContext(symbol)

	var (
		technicals *models.TechnicalSummary
		headlines  []models.Headline
		wg         sync.WaitGroup
	)
	if f.technicals != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := f.technicals.FetchTechnicals(cctx, symbol)
			if err != nil {
				f.budget.Add()
				f.log.Warn("technicals unavailable", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			technicals = t
		}()
	}
	if f.news != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := f.news.FetchNews(cctx, symbol)
			if err != nil {
				f.budget.Add()
				f.log.Warn("news unavailable", logger.String("symbol", symbol), logger.Error(err))
				return
			}
			headlines = h
		}()
	}
	wg.Wait()

	threshold := f.ledger.Tunables().ConfidenceMin()
	result := f.generate(cctx, models.SignalRequest{
		Symbol:          symbol,
		History:         history,
		Technicals:      technicals,
		News:            headlines,
		LearningContext: learning.Summary,
		ConfidenceMin:   threshold,
	})
	if result.Signal != models.SignalNeutral && result.Confidence < threshold {
		f.log.Info("signal below confidence threshold, downgraded",
			logger.String("symbol", symbol),
			logger.String("signal", string(result.Signal)),
			logger.Float("confidence", result.Confidence),
			logger.Float("threshold", threshold))
		result.Signal = models.SignalNeutral
	}

	predicted := round2(current * (1 + Drift(history)))
	fc := models.Forecast{
		Symbol:         symbol,
		Signal:         result.Signal,
		Confidence:     result.Confidence,
		CurrentPrice:   current,
		PredictedPrice: predicted,
		HorizonDays:    forecastHorizonDays,
		Rationale:      result.Rationale,
		Technicals:     technicals,
		Headlines:      len(headlines),
		Learning:       learning,
		IssuedAt:       time.Now().UTC(),
	}
	if p, ok := f.ledger.RecordPrediction(ctx, symbol, fc.Signal, predicted, current, forecastHorizonDays, fc.Rationale); ok {
		fc.IssuedAt = p.IssuedAt
	}
	return fc, nil
}

func (f *Forecaster) generate(ctx context.Context, req models.SignalRequest) models.SignalResult {
	if f.signals == nil {
		return models.SignalResult{Signal: models.SignalNeutral, Rationale: fallbackRationale}
	}
	res, err := f.signals.GenerateSignal(ctx, req)
	if err != nil {
		f.budget.Add()
		f.log.Warn("signal generation failed", logger.String("symbol", req.Symbol), logger.Error(err))
		return models.SignalResult{Signal: models.SignalNeutral, Rationale: fallbackRationale}
	}
	if res.Signal == "" {
		res.Signal = models.SignalNeutral
	}
	return res
}

// Drift is half of the return over the last five bars, or 0 with fewer bars.
func Drift(history []models.PriceBar) float64 {
	if len(history) < driftLookback {
		return 0
	}
	base := history[len(history)-driftLookback].Close
	if base <= 0 {
		return 0
	}
	current := history[len(history)-1].Close
	return (current - base) / base * 0.5
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
