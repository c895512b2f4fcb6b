package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordRefresh("complete", 300*time.Millisecond)
	m.RecordRefresh("busy", 0)
	m.RecordRefresh("busy", 0)
	m.RecordTiles("rendered")
	m.RecordFallback("trends")
	m.RecordGatewayError("/journal/entries", 0)
	m.RecordGatewayError("/journal/entries", 401)
	m.RecordPushEvent("journal_created")
	m.RecordReconnect()
	m.RecordRestore("analysis")
	m.SetCachedEntries(12)

	out := scrape(t, m)
	for _, want := range []string{
		`moodlog_refresh_cycles_total{outcome="complete"} 1`,
		`moodlog_refresh_cycles_total{outcome="busy"} 2`,
		`moodlog_refresh_duration_seconds_count 1`,
		`moodlog_tile_refreshes_total{outcome="rendered"} 1`,
		`moodlog_local_fallbacks_total{series="trends"} 1`,
		`moodlog_gateway_errors_total{endpoint="/journal/entries",status="network"} 1`,
		`moodlog_gateway_errors_total{endpoint="/journal/entries",status="Unauthorized"} 1`,
		`moodlog_push_events_total{event="journal_created"} 1`,
		`moodlog_push_reconnects_total 1`,
		`moodlog_guard_restores_total{panel="analysis"} 1`,
		`moodlog_cached_entries 12`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRefresh("complete", time.Second)
	m.RecordTiles("failed")
	m.RecordReconnect()
	m.SetCachedEntries(3)
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordReconnect()
	assert.Contains(t, scrape(t, b), "moodlog_push_reconnects_total 0")
}
