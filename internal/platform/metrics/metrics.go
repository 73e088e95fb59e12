// Package metrics owns the Prometheus registry and every collector the
// service exports at /metrics.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/pkg/rut"
)

const namespace = "medrec"

// Metrics holds the collectors. All methods are safe on a nil receiver so
// tests and tools can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	RUTValidations  *prometheus.CounterVec
	RecordEvents    *prometheus.CounterVec
}

// New creates a registry with the Go and process collectors and registers
// the service metrics on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}, []string{"route"}),
		ActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		RUTValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rut_validations_total",
			Help:      "RUT validations by outcome.",
		}, []string{"outcome"}),
		RecordEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_events_total",
			Help:      "Record changes by topic and action.",
		}, []string{"topic", "action"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	if m == nil {
		return echo.WrapHandler(promhttp.Handler())
	}
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	}))
}

// Middleware records request count, latency and response size per route.
// The route is the registered pattern (/api/v1/patients/:id), never the raw
// path, to keep label cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m == nil {
			return next
		}
		return func(c echo.Context) error {
			m.ActiveRequests.Inc()
			start := time.Now()

			err := next(c)

			m.ActiveRequests.Dec()
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			if size := c.Response().Size; size > 0 {
				m.ResponseSize.WithLabelValues(route).Observe(float64(size))
			}
			return err
		}
	}
}

// ObserveRUT counts one validation by its outcome.
func (m *Metrics) ObserveRUT(res rut.Result) {
	if m == nil {
		return
	}
	m.RUTValidations.WithLabelValues(RUTOutcome(res)).Inc()
}

// RUTOutcome is the outcome label for a validation result.
func RUTOutcome(res rut.Result) string {
	if res.Valid {
		return "valid"
	}
	switch {
	case errors.Is(res.Err, rut.ErrEmpty):
		return "empty"
	case errors.Is(res.Err, rut.ErrTooShort):
		return "too_short"
	case errors.Is(res.Err, rut.ErrInvalidBody):
		return "invalid_body"
	case errors.Is(res.Err, rut.ErrInvalidCheckDigit):
		return "invalid_check_digit"
	case errors.Is(res.Err, rut.ErrChecksumMismatch):
		return "checksum_mismatch"
	default:
		return "invalid"
	}
}

// Publish counts the event. It lets the metrics sit in an events.Fanout next
// to the other consumers.
func (m *Metrics) Publish(_ context.Context, ev events.Event) error {
	if m == nil {
		return nil
	}
	m.RecordEvents.WithLabelValues(ev.Topic, ev.Action).Inc()
	return nil
}

// ObservePool exports connection pool gauges read from p at scrape time.
func (m *Metrics) ObservePool(p db.Pinger) {
	if m == nil || p == nil {
		return
	}
	gauge := func(name, help string, read func(*db.PoolStats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return read(db.GetPoolStats(p.Stat()))
		})
	}
	m.registry.MustRegister(
		gauge("total_connections", "Open connections in the pool.", func(s *db.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("idle_connections", "Idle connections in the pool.", func(s *db.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("acquired_connections", "Connections currently checked out.", func(s *db.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("max_connections", "Configured pool size.", func(s *db.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}
