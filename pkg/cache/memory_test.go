package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCache_GetAssignsSameType(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "q", quote{"AAPL", 190.5}, time.Minute))

	var got quote
	require.NoError(t, mc.Get(ctx, "q", &got))
	assert.Equal(t, quote{"AAPL", 190.5}, got)
}

func TestMemoryCache_GetConvertsThroughJSON(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "q", map[string]interface{}{"symbol": "TSLA", "price": 250.0}, time.Minute))

	var got quote
	require.NoError(t, mc.Get(ctx, "q", &got))
	assert.Equal(t, "TSLA", got.Symbol)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "nope", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)

	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsWhenFull(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, mc.Len())
	ok, _ := mc.Exists(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_RejectsNonPointer(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	var s string
	assert.Error(t, mc.Get(ctx, "k", s))
}

func TestMemoryCache_GetRefreshesRecency(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var n int
	require.NoError(t, mc.Get(ctx, "a", &n))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	ok, _ := mc.Exists(ctx, "a")
	assert.True(t, ok)
	ok, _ = mc.Exists(ctx, "b")
	assert.False(t, ok)
}
