// Package metrics exposes moodlog's counters for Prometheus.
//
// Collectors live on a private registry rather than the global default so
// tests can create as many Metrics as they like. All recording methods are
// safe on a nil *Metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector.
type Metrics struct {
	Registry *prometheus.Registry

	RefreshCycles   *prometheus.CounterVec // outcome: complete|busy|cooldown
	RefreshDuration prometheus.Histogram   // seconds per completed cycle
	Fallbacks       *prometheus.CounterVec // series: overview|trends|entries
	TileRefreshes   *prometheus.CounterVec // outcome: rendered|busy|cooldown|failed
	GatewayErrors   *prometheus.CounterVec // endpoint, status
	PushEvents      *prometheus.CounterVec // event
	PushReconnects  prometheus.Counter
	GuardRestores   *prometheus.CounterVec // panel
	CachedEntries   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RefreshCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodlog_refresh_cycles_total",
				Help: "Analytics refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "moodlog_refresh_duration_seconds",
				Help:    "Duration of completed analytics refresh cycles",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodlog_local_fallbacks_total",
				Help: "Series derived locally because the backend result was empty or failed",
			},
			[]string{"series"},
		),
		TileRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodlog_tile_refreshes_total",
				Help: "Recent analysis tile refreshes by outcome",
			},
			[]string{"outcome"},
		),
		GatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodlog_gateway_errors_total",
				Help: "Failed backend requests",
			},
			[]string{"endpoint", "status"},
		),
		PushEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodlog_push_events_total",
				Help: "Server-push events received",
			},
			[]string{"event"},
		),
		PushReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "moodlog_push_reconnects_total",
				Help: "Push channel reconnect attempts",
			},
		),
		GuardRestores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodlog_guard_restores_total",
				Help: "Result panels restored after being cleared",
			},
			[]string{"panel"},
		),
		CachedEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "moodlog_cached_entries",
				Help: "Entries in the local cache after the last sync",
			},
		),
	}

	m.Registry.MustRegister(
		m.RefreshCycles,
		m.RefreshDuration,
		m.Fallbacks,
		m.TileRefreshes,
		m.GatewayErrors,
		m.PushEvents,
		m.PushReconnects,
		m.GuardRestores,
		m.CachedEntries,
	)
	return m
}

// RecordRefresh counts one analytics refresh attempt.
func (m *Metrics) RecordRefresh(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(outcome).Inc()
	if outcome == "complete" {
		m.RefreshDuration.Observe(dur.Seconds())
	}
}

// RecordFallback counts a locally derived series.
func (m *Metrics) RecordFallback(series string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(series).Inc()
}

// RecordTiles counts one tile refresh attempt.
func (m *Metrics) RecordTiles(outcome string) {
	if m == nil {
		return
	}
	m.TileRefreshes.WithLabelValues(outcome).Inc()
}

// RecordGatewayError counts a failed request. status 0 means network error.
func (m *Metrics) RecordGatewayError(endpoint string, status int) {
	if m == nil {
		return
	}
	m.GatewayErrors.WithLabelValues(endpoint, statusLabel(status)).Inc()
}

// RecordPushEvent counts a received push event.
func (m *Metrics) RecordPushEvent(event string) {
	if m == nil {
		return
	}
	m.PushEvents.WithLabelValues(event).Inc()
}

// RecordReconnect counts a push reconnect.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.PushReconnects.Inc()
}

// RecordRestore counts a panel restore.
func (m *Metrics) RecordRestore(panel string) {
	if m == nil {
		return
	}
	m.GuardRestores.WithLabelValues(panel).Inc()
}

// SetCachedEntries records the cache size.
func (m *Metrics) SetCachedEntries(n int) {
	if m == nil {
		return
	}
	m.CachedEntries.Set(float64(n))
}

func statusLabel(status int) string {
	if status == 0 {
		return "network"
	}
	return http.StatusText(status)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
