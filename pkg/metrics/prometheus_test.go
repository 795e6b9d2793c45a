package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"MarketBrain/pkg/cycle"
)

func TestRecorder_CycleAndHealth(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.ObserveCycle("brain", time.Second, nil)
	r.ObserveCycle("brain", time.Second, errors.New("boom"))
	r.ObserveHealth("brain", cycle.HealthCritical)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycleFailures.WithLabelValues("brain")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.loopHealth.WithLabelValues("brain")))

	r.ObserveHealth("brain", cycle.HealthHealthy)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.loopHealth.WithLabelValues("brain")))
}

func TestRecorder_Counters(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordCacheLookup("memory", "hit")
	r.RecordCacheLookup("memory", "hit")
	r.RecordValidation("prediction", "Correct")
	r.RecordError("stream")
	r.RecordLastPrice("AAPL", 190.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.validations.WithLabelValues("prediction", "Correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("stream")))
	assert.Equal(t, 190.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")))
}
