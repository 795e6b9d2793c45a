package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingDurable struct {
	*MemoryCache
	setErr error
	getErr error
}

func (f *failingDurable) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryCache.Set(ctx, key, value, exp)
}

func (f *failingDurable) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	return f.MemoryCache.Get(ctx, key, dest)
}

type counter struct {
	calls atomic.Int32
	value []string
	err   error
}

func (c *counter) refresh(context.Context) ([]string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

func newTestSnapshot(t *testing.T, durable Service) (*Snapshot[[]string], *MemoryCache, *fakeClock, *[]string) {
	t.Helper()
	mem := NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	var observed []string
	s := NewSnapshot[[]string]("movers:global", mem, durable,
		WithClock(clock.Now),
		WithObserver(func(layer, result string) { observed = append(observed, layer+"/"+result) }),
	)
	return s, mem, clock, &observed
}

func TestSnapshot_FillsBothLayersOnMiss(t *testing.T) {
	durable := NewMemoryCache()
	defer durable.Close()
	s, mem, clock, _ := newTestSnapshot(t, durable)
	src := &counter{value: []string{"BTC-USD"}}

	got, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, got)
	assert.EqualValues(t, 1, src.calls.Load())

	var e Entry[[]string]
	require.NoError(t, mem.Get(context.Background(), "movers:global", &e))
	assert.Equal(t, clock.Now(), e.Timestamp)
	require.NoError(t, durable.Get(context.Background(), "movers:global", &e))
	assert.Equal(t, []string{"BTC-USD"}, e.Data)
}

func TestSnapshot_MemoryHitWithinWindow(t *testing.T) {
	s, _, clock, observed := newTestSnapshot(t, nil)
	src := &counter{value: []string{"AAPL"}}

	_, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	clock.Advance(4*time.Minute + 59*time.Second)
	_, err = s.Get(context.Background(), src.refresh)
	require.NoError(t, err)

	assert.EqualValues(t, 1, src.calls.Load())
	assert.Contains(t, *observed, "memory/hit")
}

func TestSnapshot_DurableHitIsPromotedWithFreshTimestamp(t *testing.T) {
	durable := NewMemoryCache()
	defer durable.Close()
	s, mem, clock, _ := newTestSnapshot(t, durable)
	src := &counter{value: []string{"ETH-USD"}}

	_, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	got, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH-USD"}, got)
	assert.EqualValues(t, 1, src.calls.Load())

	var e Entry[[]string]
	require.NoError(t, mem.Get(context.Background(), "movers:global", &e))
	assert.Equal(t, clock.Now(), e.Timestamp)

	// durable entry keeps its original age; memory serves from the promotion
	clock.Advance(4 * time.Minute)
	_, err = s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestSnapshot_RefreshWhenBothStale(t *testing.T) {
	durable := NewMemoryCache()
	defer durable.Close()
	s, _, clock, _ := newTestSnapshot(t, durable)
	src := &counter{value: []string{"TSLA"}}

	_, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	clock.Advance(31 * time.Minute)
	_, err = s.Get(context.Background(), src.refresh)
	require.NoError(t, err)

	assert.EqualValues(t, 2, src.calls.Load())
}

func TestSnapshot_RefreshErrorLeavesEntriesUntouched(t *testing.T) {
	durable := NewMemoryCache()
	defer durable.Close()
	s, mem, clock, _ := newTestSnapshot(t, durable)
	src := &counter{value: []string{"NVDA"}}

	_, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	filledAt := clock.Now()

	clock.Advance(45 * time.Minute)
	boom := errors.New("upstream down")
	src.err = boom
	got, err := s.Get(context.Background(), src.refresh)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, got)

	var e Entry[[]string]
	require.NoError(t, mem.Get(context.Background(), "movers:global", &e))
	assert.Equal(t, filledAt, e.Timestamp)
	assert.Equal(t, []string{"NVDA"}, e.Data)
	require.NoError(t, durable.Get(context.Background(), "movers:global", &e))
	assert.Equal(t, filledAt, e.Timestamp)
}

func TestSnapshot_DurableFailuresAreBestEffort(t *testing.T) {
	durable := &failingDurable{
		MemoryCache: NewMemoryCache(),
		setErr:      errors.New("write refused"),
		getErr:      errors.New("read refused"),
	}
	defer durable.Close()
	s, _, _, observed := newTestSnapshot(t, durable)
	src := &counter{value: []string{"MSFT"}}

	got, err := s.Get(context.Background(), src.refresh)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, got)
	assert.Contains(t, *observed, "durable/error")
}

func TestSnapshot_ConcurrentCallersRefreshOnce(t *testing.T) {
	s, _, _, _ := newTestSnapshot(t, nil)
	src := &counter{value: []string{"SOL-USD"}}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Get(context.Background(), src.refresh)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
}

func TestSnapshot_Invalidate(t *testing.T) {
	durable := NewMemoryCache()
	defer durable.Close()
	s, _, _, _ := newTestSnapshot(t, durable)
	src := &counter{value: []string{"AAPL"}}

	_, _ = s.Get(context.Background(), src.refresh)
	require.NoError(t, s.Invalidate(context.Background()))
	_, _ = s.Get(context.Background(), src.refresh)

	assert.EqualValues(t, 2, src.calls.Load())
}
