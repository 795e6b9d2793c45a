package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketBrain/pkg/cycle"
)

// Recorder implements domain.repository.Metrics, cycle.Observer and the
// ledger validation hook using Prometheus.
type Recorder struct {
	cycleDuration *prometheus.HistogramVec
	cycleFailures *prometheus.CounterVec
	loopHealth    *prometheus.GaugeVec
	cacheLookups  *prometheus.CounterVec
	validations   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketbrain_cycle_duration_seconds",
				Help:    "Duration of loop cycles in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"loop"},
		),
		cycleFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrain_cycle_failures_total",
				Help: "Total number of failed loop cycles",
			},
			[]string{"loop"},
		),
		loopHealth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketbrain_loop_health",
				Help: "Loop health: 0 healthy, 1 healing, 2 critical",
			},
			[]string{"loop"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrain_cache_lookups_total",
				Help: "Snapshot cache lookups by layer and result",
			},
			[]string{"layer", "result"},
		),
		validations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrain_ledger_validations_total",
				Help: "Ledger rows validated by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrain_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketbrain_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketbrain_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) ObserveCycle(loop string, d time.Duration, err error) {
	r.cycleDuration.WithLabelValues(loop).Observe(d.Seconds())
	if err != nil {
		r.cycleFailures.WithLabelValues(loop).Inc()
	}
}

func (r *Recorder) ObserveHealth(loop string, h cycle.Health) {
	var v float64
	switch h {
	case cycle.HealthHealing:
		v = 1
	case cycle.HealthCritical:
		v = 2
	}
	r.loopHealth.WithLabelValues(loop).Set(v)
}

// RecordCacheLookup matches the cache.WithObserver callback.
func (r *Recorder) RecordCacheLookup(layer, result string) {
	r.cacheLookups.WithLabelValues(layer, result).Inc()
}

func (r *Recorder) RecordValidation(kind, outcome string) {
	r.validations.WithLabelValues(kind, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
