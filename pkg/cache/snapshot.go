package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketBrain/pkg/logger"
)

// Entry is the unit stored in both layers of a Snapshot.
type Entry[T any] struct {
	Data      T         `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	LayerMemory  = "memory"
	LayerDurable = "durable"
	LayerRefresh = "refresh"

	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
	ResultError = "error"
)

// SnapshotOption configures a Snapshot.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	memoryTTL  time.Duration
	durableTTL time.Duration
	log        *logger.Logger
	observer   func(layer, result string)
	now        func() time.Time
}

// WithMemoryTTL sets the freshness window of the memory layer.
func WithMemoryTTL(d time.Duration) SnapshotOption {
	return func(c *snapshotConfig) { c.memoryTTL = d }
}

// WithDurableTTL sets the freshness window of the durable layer.
func WithDurableTTL(d time.Duration) SnapshotOption {
	return func(c *snapshotConfig) { c.durableTTL = d }
}

func WithSnapshotLogger(l *logger.Logger) SnapshotOption {
	return func(c *snapshotConfig) { c.log = l }
}

// WithObserver receives every lookup outcome, e.g. for metrics.
func WithObserver(fn func(layer, result string)) SnapshotOption {
	return func(c *snapshotConfig) { c.observer = fn }
}

func WithClock(now func() time.Time) SnapshotOption {
	return func(c *snapshotConfig) { c.now = now }
}

// Snapshot is a single keyed value held in a fast memory layer and an
// optional durable layer, refilled on demand.
//
// Freshness is judged from Entry.Timestamp, not from the backend expiry.
// A durable hit is copied into memory with its timestamp reset to now.
type Snapshot[T any] struct {
	key     string
	memory  Service
	durable Service
	cfg     snapshotConfig
	mu      sync.Mutex
}

// NewSnapshot builds a snapshot on key. durable may be nil.
func NewSnapshot[T any](key string, memory, durable Service, opts ...SnapshotOption) *Snapshot[T] {
	cfg := snapshotConfig{
		memoryTTL:  5 * time.Minute,
		durableTTL: 30 * time.Minute,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Snapshot[T]{key: key, memory: memory, durable: durable, cfg: cfg}
}

// Get returns a fresh value, consulting memory, then durable, then refresh.
// A refresh error is returned as is and leaves both layers untouched.
func (s *Snapshot[T]) Get(ctx context.Context, refresh func(ctx context.Context) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.now()

	var mem Entry[T]
	switch err := s.memory.Get(ctx, s.key, &mem); {
	case err == nil && now.Sub(mem.Timestamp) < s.cfg.memoryTTL:
		s.observe(LayerMemory, ResultHit)
		return mem.Data, nil
	case err == nil:
		s.observe(LayerMemory, ResultStale)
	default:
		s.observe(LayerMemory, ResultMiss)
	}

	if s.durable != nil {
		var dur Entry[T]
		err := s.durable.Get(ctx, s.key, &dur)
		switch {
		case err == nil && now.Sub(dur.Timestamp) < s.cfg.durableTTL:
			s.observe(LayerDurable, ResultHit)
			promoted := Entry[T]{Data: dur.Data, Timestamp: now}
			if err := s.memory.Set(ctx, s.key, promoted, s.cfg.memoryTTL); err != nil {
				s.cfg.log.Warn("promote to memory failed", logger.String("key", s.key), logger.Error(err))
			}
			return dur.Data, nil
		case err == nil:
			s.observe(LayerDurable, ResultStale)
		case errors.Is(err, ErrCacheMiss):
			s.observe(LayerDurable, ResultMiss)
		default:
			s.observe(LayerDurable, ResultError)
			s.cfg.log.Warn("durable read failed", logger.String("key", s.key), logger.Error(err))
		}
	}

	data, err := refresh(ctx)
	if err != nil {
		s.observe(LayerRefresh, ResultError)
		var zero T
		return zero, err
	}
	s.observe(LayerRefresh, ResultHit)

	fresh := Entry[T]{Data: data, Timestamp: s.cfg.now()}
	if err := s.memory.Set(ctx, s.key, fresh, s.cfg.memoryTTL); err != nil {
		s.cfg.log.Warn("memory write failed", logger.String("key", s.key), logger.Error(err))
	}
	if s.durable != nil {
		if err := s.durable.Set(ctx, s.key, fresh, s.cfg.durableTTL); err != nil {
			s.cfg.log.Warn("durable write failed", logger.String("key", s.key), logger.Error(err))
		}
	}
	return data, nil
}

// Invalidate drops the entry from both layers.
func (s *Snapshot[T]) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.memory.Delete(ctx, s.key); err != nil {
		return err
	}
	if s.durable != nil {
		return s.durable.Delete(ctx, s.key)
	}
	return nil
}

// Key returns the cache key.
func (s *Snapshot[T]) Key() string { return s.key }

func (s *Snapshot[T]) observe(layer, result string) {
	if s.cfg.observer != nil {
		s.cfg.observer(layer, result)
	}
}
