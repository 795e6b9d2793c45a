package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketbrain",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of upstream data source calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketbrain",
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Errors by upstream data source",
		},
		[]string{"source"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(UpstreamLatency, UpstreamErrors)
	})
}

// Observe records one upstream call started at start.
func Observe(source string, start time.Time, err error) {
	UpstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		UpstreamErrors.WithLabelValues(source).Inc()
	}
}
