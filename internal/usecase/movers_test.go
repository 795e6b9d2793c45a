package usecase

import (
	"context"
	"testing"

	"MarketBrain/internal/domain/models"
	"MarketBrain/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovers_RefreshRanksByChange(t *testing.T) {
	prices := newFakePrices()
	clock := newTestClock()
	prices.history["AAPL"] = []models.PriceBar{{Symbol: "AAPL", Time: clock.Now(), Open: 100, Close: 102, Volume: 10}}
	prices.history["BTC-USD"] = []models.PriceBar{{Symbol: "BTC-USD", Time: clock.Now(), Open: 100, Close: 95, Volume: 5}}
	prices.history["TCS.NS"] = []models.PriceBar{{Symbol: "TCS.NS", Time: clock.Now(), Open: 50, Close: 55, Volume: 7}}
	prices.errs["MSFT"] = errUpstream

	budget := NewErrorBudget()
	mem := cache.NewMemoryCache()
	defer mem.Close()
	svc := NewMoversService([]string{"AAPL", "BTC-USD", "MSFT", "NVDA", "TCS.NS"}, 5,
		prices, cache.NewSnapshot[[]models.Mover](MoversKey, mem, nil), budget, nil)

	movers, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, movers, 3)
	assert.Equal(t, "TCS.NS", movers[0].Symbol)
	assert.InDelta(t, 10.0, movers[0].Change, 1e-9)
	assert.Equal(t, "Stock", movers[0].Type)
	assert.Equal(t, "AAPL", movers[1].Symbol)
	assert.Equal(t, "BTC-USD", movers[2].Symbol)
	assert.Equal(t, "Crypto", movers[2].Type)
	assert.Equal(t, 95.0, movers[2].Price)
	assert.Equal(t, int64(1), budget.Count())
	assert.Equal(t, []int{5}, prices.callsFor("AAPL"))
}

func TestMovers_ServedFromCache(t *testing.T) {
	prices := newFakePrices()
	prices.history["AAPL"] = []models.PriceBar{{Symbol: "AAPL", Open: 100, Close: 101}}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	svc := NewMoversService([]string{"AAPL"}, 5, prices,
		cache.NewSnapshot[[]models.Mover](MoversKey, mem, nil), nil, nil)

	ctx := context.Background()
	first, err := svc.GetMovers(ctx)
	require.NoError(t, err)
	second, err := svc.GetMovers(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, prices.callsFor("AAPL"), 1)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.GetMovers(ctx)
	require.NoError(t, err)
	assert.Len(t, prices.callsFor("AAPL"), 2)
}

func TestMovers_AllFetchesFailingKeepsCache(t *testing.T) {
	prices := newFakePrices()
	prices.history["AAPL"] = []models.PriceBar{{Symbol: "AAPL", Open: 100, Close: 101}}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	svc := NewMoversService([]string{"AAPL", "MSFT"}, 5, prices,
		cache.NewSnapshot[[]models.Mover](MoversKey, mem, nil), nil, nil)

	ctx := context.Background()
	first, err := svc.GetMovers(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	prices.errs["AAPL"] = errUpstream
	prices.errs["MSFT"] = errUpstream
	_, err = svc.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNoMovers)

	// the failed refresh must not overwrite the cached entry
	var cached cache.Entry[[]models.Mover]
	require.NoError(t, mem.Get(ctx, MoversKey, &cached))
	assert.Equal(t, first, cached.Data)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.GetMovers(ctx)
	assert.ErrorIs(t, err, ErrNoMovers)
	assert.ErrorIs(t, mem.Get(ctx, MoversKey, &cached), cache.ErrCacheMiss)
}
