package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketbrain",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template and status class.",
		},
		[]string{"route", "method", "class"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketbrain",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency. Websocket sessions are excluded.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketbrain",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Requests currently being served, open websocket sessions included.",
	})

	regOnce sync.Once
)

// Metrics records request metrics labelled by the echo route template
// (e.g. "/api/brain/loops/:name/run") to keep cardinality low.
func Metrics() echo.MiddlewareFunc {
	regOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := routeOf(c)
			method := c.Request().Method

			httpInFlight.Inc()
			defer httpInFlight.Dec()
			start := time.Now()

			err := next(c)
			if err != nil {
				// let echo write the error so the status is final
				c.Error(err)
			}

			httpRequestsTotal.WithLabelValues(route, method, statusClass(c.Response().Status)).Inc()
			if !isWebsocket(c) {
				httpRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func isWebsocket(c echo.Context) bool {
	return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
