package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"MarketBrain/internal/domain/models"
	pkgkafka "MarketBrain/pkg/kafka"
	"MarketBrain/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	return db
}

func TestOpenDB_UnknownDriver(t *testing.T) {
	_, err := OpenDB("mysql", "x")
	assert.Error(t, err)
}

func TestGormLedgerStore_UpsertAndLoad(t *testing.T) {
	store, err := NewGormLedgerStore(setupDB(t))
	require.NoError(t, err)
	ctx := context.Background()
	t0 := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

	p1 := models.Prediction{ID: "p1", Symbol: "AAPL", IssuedAt: t0, Signal: models.SignalBuy, PredictedPrice: 110, PriceAtIssue: 100, HorizonDays: 7}
	p2 := models.Prediction{ID: "p2", Symbol: "BTC-USD", IssuedAt: t0.Add(-time.Hour), Signal: models.SignalSell, PredictedPrice: 90, PriceAtIssue: 100, HorizonDays: 7}
	require.NoError(t, store.SavePredictions(ctx, []models.Prediction{p1, p2}))

	actual := 120.0
	validatedAt := t0.Add(25 * time.Hour)
	p1.Validated = true
	p1.Outcome = models.OutcomeCorrect
	p1.ActualPrice = &actual
	p1.ValidatedAt = &validatedAt
	require.NoError(t, store.SavePredictions(ctx, []models.Prediction{p1}))

	target, stop := 130.0, 95.0
	ev := models.PatternEvent{ID: "e1", Symbol: "AAPL", Name: "Bull Flag", Type: models.PatternBullish, DetectedAt: t0, EntryPrice: 100, Target: &target, StopLoss: &stop}
	require.NoError(t, store.SavePatterns(ctx, []models.PatternEvent{ev}))
	require.NoError(t, store.SavePatterns(ctx, nil))

	preds, pats, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "p2", preds[0].ID)
	assert.Equal(t, "p1", preds[1].ID)
	assert.True(t, preds[1].Validated)
	assert.Equal(t, models.OutcomeCorrect, preds[1].Outcome)
	require.NotNil(t, preds[1].ActualPrice)
	assert.Equal(t, 120.0, *preds[1].ActualPrice)

	require.Len(t, pats, 1)
	assert.Equal(t, "Bull Flag", pats[0].Name)
	require.NotNil(t, pats[0].Target)
	assert.Equal(t, 130.0, *pats[0].Target)
	assert.True(t, pats[0].DetectedAt.Equal(t0))

	assert.NoError(t, store.Ping(ctx))
}

func TestGormJournal_LogsAndStats(t *testing.T) {
	j, err := NewGormJournal(setupDB(t), 16)
	require.NoError(t, err)

	log := logger.Nop()
	log.AddSink(JournalSink(j))
	brain := log.With(logger.Component("BRAIN"))

	brain.Info("Starting autonomous cycle")
	brain.Warn("Data gap detected, triggering backfill", logger.String("symbol", "AAPL"))
	brain.Error("cycle failed", logger.Error(errors.New("boom")))
	log.Info("untagged lines are not journaled")
	require.NoError(t, j.Close())

	ctx := context.Background()
	logs, err := j.GetLogs(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "cycle failed", logs[0].Message)
	assert.Equal(t, models.LevelError, logs[0].Level)
	assert.Equal(t, "BRAIN", logs[0].Category)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(logs[1].Metadata), &meta))
	assert.Equal(t, "AAPL", meta["symbol"])
	assert.NotContains(t, meta, logger.ComponentKey)

	warns, err := j.GetLogs(ctx, 10, models.LevelWarning)
	require.NoError(t, err)
	require.Len(t, warns, 1)

	limited, err := j.GetLogs(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	st, err := j.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.LogStats{TotalLogs: 3, ErrorCount: 1, WarningCount: 1}, st)

	// closed journal drops instead of panicking
	j.Append(models.LogEntry{Message: "late"})
	assert.Equal(t, int64(1), j.Dropped())
}

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaEventPublisher_KeysBySymbol(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaEventPublisher(pkgkafka.NewProducerWithWriter(w, "none"), "marketbrain.ledger")

	ev := models.LedgerEvent{Kind: models.EventPatternRecorded, Symbol: "ETH-USD", At: time.Unix(0, 0).UTC()}
	require.NoError(t, pub.PublishEvent(context.Background(), ev))
	require.NoError(t, pub.PublishMessage(context.Background(), "marketbrain.errors", []string{"x"}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "marketbrain.ledger", w.msgs[0].Topic)
	assert.Equal(t, []byte("ETH-USD"), w.msgs[0].Key)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "pattern.recorded", decoded["kind"])
	assert.Equal(t, "marketbrain.errors", w.msgs[1].Topic)
}

func TestCandleArchiveSchema(t *testing.T) {
	stmts := CandleArchiveSchema("marketbrain")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "marketbrain.candles_daily")
	assert.Contains(t, stmts[1], "ReplacingMergeTree")
}
