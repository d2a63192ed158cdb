// Package metrics exposes Prometheus counters for upstream fetches and exports.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sp500"

type Metrics struct {
	registry *prometheus.Registry

	fetchRequests *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	symbolsFetched prometheus.Counter
	symbolsFailed  prometheus.Counter
	exportsTotal   *prometheus.CounterVec
	lastExport     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream requests by source",
		}, []string{"source"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed upstream requests by source",
		}, []string{"source"}),
		fetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_latency_seconds",
			Help:      "Upstream request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by kind",
		}, []string{"kind"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by kind",
		}, []string{"kind"}),
		symbolsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbols_fetched_total",
			Help:      "Symbols whose history was built",
		}),
		symbolsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbols_failed_total",
			Help:      "Symbols whose history fetch failed",
		}),
		exportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export runs by result",
		}, []string{"result"}),
		lastExport: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_export_timestamp_seconds",
			Help:      "Unix time of the last successful export",
		}),
	}
}

func (m *Metrics) ObserveFetch(source string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.fetchRequests.WithLabelValues(source).Inc()
	m.fetchLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) CountFetchError(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) CountCache(kind string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.WithLabelValues(kind).Inc()
	} else {
		m.cacheMisses.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) CountSymbol(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.symbolsFailed.Inc()
	} else {
		m.symbolsFetched.Inc()
	}
}

func (m *Metrics) CountExport(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.exportsTotal.WithLabelValues("error").Inc()
		return
	}
	m.exportsTotal.WithLabelValues("ok").Inc()
	m.lastExport.SetToCurrentTime()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartServer serves /metrics on addr until the returned server is shut down.
func (m *Metrics) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", slog.String("addr", addr), slog.String("err", err.Error()))
		}
	}()
	slog.Info("metrics server started", slog.String("addr", addr))

	return srv
}
