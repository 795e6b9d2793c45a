package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketBrain/internal/domain/models"
)

type memStore struct {
	mu      sync.Mutex
	preds   map[string]models.Prediction
	pats    map[string]models.PatternEvent
	loadErr error
	saveErr error
	saves   int
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{preds: map[string]models.Prediction{}, pats: map[string]models.PatternEvent{}}
}

func (s *memStore) Load(context.Context) ([]models.Prediction, []models.PatternEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, nil, s.loadErr
	}
	var preds []models.Prediction
	for _, p := range s.preds {
		preds = append(preds, p)
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].IssuedAt.Before(preds[j].IssuedAt) })
	var pats []models.PatternEvent
	for _, p := range s.pats {
		pats = append(pats, p)
	}
	sort.Slice(pats, func(i, j int) bool { return pats[i].DetectedAt.Before(pats[j].DetectedAt) })
	return preds, pats, nil
}

func (s *memStore) SavePredictions(_ context.Context, rows []models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, r := range rows {
		s.preds[r.ID] = r
	}
	return nil
}

func (s *memStore) SavePatterns(_ context.Context, rows []models.PatternEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, r := range rows {
		s.pats[r.ID] = r
	}
	return nil
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) Close() error { return nil }

type captureEvents struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	err    error
}

func (c *captureEvents) PublishEvent(_ context.Context, ev models.LedgerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureEvents) Close() error { return nil }

func (c *captureEvents) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakePrices serves canned histories; symbols in errs fail.
type fakePrices struct {
	mu      sync.Mutex
	history map[string][]models.PriceBar
	errs    map[string]error
	calls   map[string][]int
}

func newFakePrices() *fakePrices {
	return &fakePrices{history: map[string][]models.PriceBar{}, errs: map[string]error{}, calls: map[string][]int{}}
}

func (f *fakePrices) FetchPriceHistory(_ context.Context, symbol string, days int) ([]models.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol] = append(f.calls[symbol], days)
	if err := f.errs[symbol]; err != nil {
		return []models.PriceBar{}, err
	}
	return f.history[symbol], nil
}

func (f *fakePrices) callsFor(symbol string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls[symbol]...)
}

var errUpstream = errors.New("upstream unavailable")

func bars(symbol string, end time.Time, closes ...float64) []models.PriceBar {
	out := make([]models.PriceBar, len(closes))
	start := end.AddDate(0, 0, -(len(closes) - 1))
	for i, c := range closes {
		out[i] = models.PriceBar{
			Symbol: symbol,
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func f64(v float64) *float64 { return &v }

type fakeDetector struct {
	mu         sync.Mutex
	candidates map[string][]models.PatternCandidate
	err        error
	seen       []string
}

func (d *fakeDetector) DetectPatterns(_ context.Context, symbol string, _ []models.PriceBar) ([]models.PatternCandidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, symbol)
	if d.err != nil {
		return nil, d.err
	}
	return append([]models.PatternCandidate(nil), d.candidates[symbol]...), nil
}

type fakeSignals struct {
	result models.SignalResult
	err    error
	last   models.SignalRequest
}

func (s *fakeSignals) GenerateSignal(_ context.Context, req models.SignalRequest) (models.SignalResult, error) {
	s.last = req
	return s.result, s.err
}

type fakeArchive struct {
	mu     sync.Mutex
	stored []models.PriceBar
	latest map[string]time.Time
}

func (a *fakeArchive) StoreBars(_ context.Context, bars []models.PriceBar) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stored = append(a.stored, bars...)
	return nil
}

func (a *fakeArchive) LatestBar(_ context.Context, symbol string) (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest[symbol], nil
}

func (a *fakeArchive) Close() error { return nil }

type fakeTechnicals struct{ summary *models.TechnicalSummary }

func (f fakeTechnicals) FetchTechnicals(context.Context, string) (*models.TechnicalSummary, error) {
	return f.summary, nil
}

type fakeNews struct {
	headlines []models.Headline
	err       error
}

func (f fakeNews) FetchNews(context.Context, string) ([]models.Headline, error) {
	return f.headlines, f.err
}
