package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestProducer_EncodesValues(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "events", []byte("AAPL"), map[string]int{"n": 1}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "events", w.msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), w.msgs[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
}

func TestProducer_WrapsWriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, "none")
	err := p.Publish(context.Background(), "events", nil, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

type flakyHandler struct {
	fails int
	calls int
}

func (h *flakyHandler) Topic() string { return "ticks" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	return nil
}

func TestConsumer_RetriesHandler(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	h := &flakyHandler{fails: 2}
	require.NoError(t, c.handleWithRetry(h, kafka.Message{Topic: "ticks"}))
	assert.Equal(t, 3, h.calls)

	h = &flakyHandler{fails: 10}
	assert.Error(t, c.handleWithRetry(h, kafka.Message{Topic: "ticks"}))
	assert.Equal(t, 3, h.calls)
}

func TestBackoffWithJitter_Bounded(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}
