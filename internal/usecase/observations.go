package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	mid "MarketBrain/internal/middleware"
	pkgkafka "MarketBrain/pkg/kafka"
	"MarketBrain/pkg/logger"
	"MarketBrain/pkg/util"
)

// TicksHandler feeds ticks from a Kafka topic into the observation pipeline.
// Messages use the {symbol, t, c, v} schema with t in milliseconds.
type TicksHandler struct {
	topic   string
	pipe    *mid.ObservationPipeline
	metrics drepo.Metrics
}

func NewTicksHandler(topic string, pipe *mid.ObservationPipeline, metrics drepo.Metrics) *TicksHandler {
	return &TicksHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *TicksHandler) Topic() string { return h.topic }

// Handle returns an error only for undecodable payloads; those go to the DLQ.
func (h *TicksHandler) Handle(ctx context.Context, b []byte) error {
	var t models.Tick
	if err := json.Unmarshal(b, &t); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("consumer_unmarshal")
		}
		return fmt.Errorf("decode tick: %w", err)
	}
	if h.metrics != nil && t.Timestamp > 0 {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(util.FromUnixMillis(t.Timestamp)).Seconds())
	}
	h.pipe.Process(ctx, &t)
	return nil
}

var _ pkgkafka.MessageHandler = (*TicksHandler)(nil)

// ObservationFeed pumps a live TickStream into the pipeline until ctx ends,
// reconnecting after stream failures.
type ObservationFeed struct {
	stream    drepo.TickStream
	pipe      *mid.ObservationPipeline
	metrics   drepo.Metrics
	log       *logger.Logger
	reconnect time.Duration
	done      chan struct{}
}

func NewObservationFeed(stream drepo.TickStream, pipe *mid.ObservationPipeline, metrics drepo.Metrics, reconnect time.Duration, log *logger.Logger) *ObservationFeed {
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ObservationFeed{stream: stream, pipe: pipe, metrics: metrics, log: log, reconnect: reconnect, done: make(chan struct{})}
}

// Start runs the feed in the background.
func (f *ObservationFeed) Start(ctx context.Context) {
	go f.Run(ctx)
}

func (f *ObservationFeed) Run(ctx context.Context) {
	defer close(f.done)
	ticks := make(chan models.Tick, 256)
	go func() {
		for {
			err := f.stream.Run(ctx, ticks)
			if ctx.Err() != nil {
				return
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				if f.metrics != nil {
					f.metrics.RecordError("stream")
				}
				f.log.Warn("tick stream dropped, reconnecting", logger.Error(err), logger.Duration("retry_in_ms", f.reconnect))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnect):
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticks:
			f.pipe.Process(ctx, &t)
		}
	}
}

// Shutdown closes the stream and waits for Run to return.
func (f *ObservationFeed) Shutdown(ctx context.Context) error {
	err := f.stream.Close()
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
