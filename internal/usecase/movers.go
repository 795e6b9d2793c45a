package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	"MarketBrain/pkg/cache"
	"MarketBrain/pkg/logger"
)

// ErrNoMovers is returned when every symbol fetch failed, so nothing is cached.
var ErrNoMovers = errors.New("no movers: all upstream fetches failed")

// MoversKey is the single global cache key for the movers list.
var MoversKey = cache.Key("movers", "global")

// MoversService ranks the configured symbols by their last daily change.
type MoversService struct {
	symbols []string
	days    int
	prices  drepo.PriceSource
	cache   *cache.Snapshot[[]models.Mover]
	budget  *ErrorBudget
	log     *logger.Logger
	timeout time.Duration
}

func NewMoversService(symbols []string, days int, prices drepo.PriceSource, snapshot *cache.Snapshot[[]models.Mover], budget *ErrorBudget, log *logger.Logger) *MoversService {
	if days <= 0 {
		days = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	if budget == nil {
		budget = NewErrorBudget()
	}
	return &MoversService{symbols: symbols, days: days, prices: prices, cache: snapshot, budget: budget, log: log, timeout: 30 * time.Second}
}

// GetMovers serves from the two-tier cache, refreshing when both tiers are stale.
func (m *MoversService) GetMovers(ctx context.Context) ([]models.Mover, error) {
	return m.cache.Get(ctx, m.Refresh)
}

// Invalidate drops cached movers; used as a self-heal action.
func (m *MoversService) Invalidate(ctx context.Context) error {
	return m.cache.Invalidate(ctx)
}

// Refresh computes movers from upstream. Symbols without data are skipped;
// if every fetch fails it returns ErrNoMovers so the cached list survives.
func (m *MoversService) Refresh(ctx context.Context) ([]models.Mover, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	movers := make([]models.Mover, 0, len(m.symbols))
	var failed int
	for _, symbol := range m.symbols {
		bars, err := m.prices.FetchPriceHistory(cctx, symbol, m.days)
		if err != nil {
			failed++
			m.budget.Add()
			m.log.Warn("movers fetch failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		if len(bars) == 0 {
			continue
		}
		last := bars[len(bars)-1]
		var change float64
		if last.Open != 0 {
			change = (last.Close - last.Open) / last.Open * 100
		}
		movers = append(movers, models.Mover{
			Symbol: symbol,
			Price:  last.Close,
			Change: change,
			Volume: last.Volume,
			Type:   assetType(symbol),
		})
	}
	if err := cctx.Err(); err != nil {
		return movers, err
	}
	if failed > 0 && failed == len(m.symbols) {
		return nil, ErrNoMovers
	}
	sort.SliceStable(movers, func(i, j int) bool { return movers[i].Change > movers[j].Change })
	return movers, nil
}

func assetType(symbol string) string {
	if strings.Contains(symbol, "-USD") {
		return "Crypto"
	}
	return "Stock"
}
