package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/metrics"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/store"
	"github.com/abelbrown/moodlog/internal/tiles"
)

func init() {
	color.NoColor = true
}

func testEnv() *env {
	return &env{events: otel.NewNullLogger(), metrics: metrics.New()}
}

func testClient(t *testing.T, h http.HandlerFunc) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := gateway.New(gateway.Options{BaseURL: srv.URL, Tokens: gateway.StaticToken("tok")})
	require.NoError(t, err)
	return c
}

func failing(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
}

func TestCommandTree(t *testing.T) {
	root := New()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"dashboard", "login", "logout", "whoami", "tiles", "trends", "watch", "events", "stats"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "server", "metrics-addr", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

func TestSubmitEntrySuccess(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"entry":{"id":7,"text":"great day","sentiment":"POSITIVE","score":0.91}}`))
	})

	msg := submitEntry(context.Background(), c, "great day", otel.NewNullLogger())
	require.NoError(t, msg.Err)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, journal.Positive, msg.Entry.Sentiment)
	assert.False(t, msg.Analysis.Local)
	assert.Equal(t, 91, msg.Analysis.ConfidencePct())
}

func TestSubmitEntryFailureUsesLocalEstimate(t *testing.T) {
	c := testClient(t, failing)

	msg := submitEntry(context.Background(), c, "sad and tired", otel.NewNullLogger())
	require.Error(t, msg.Err)
	assert.Nil(t, msg.Entry)
	assert.True(t, msg.Analysis.Local)
	assert.Equal(t, journal.Negative, msg.Analysis.Sentiment)
}

func TestLoadEntriesCachesAndLimits(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"entries":[
			{"id":1,"text":"a","sentiment":"POSITIVE","timestamp":"2024-03-05T10:00:00"},
			{"id":2,"text":"b","sentiment":"NEUTRAL","timestamp":"2024-03-04T10:00:00"},
			{"id":3,"text":"c","sentiment":"NEGATIVE","timestamp":"2024-03-03T10:00:00"}]}`))
	})
	cache, err := store.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	msg := loadEntries(context.Background(), c, cache, 2, testEnv())
	require.NoError(t, msg.Err)
	assert.False(t, msg.Cached)
	assert.Len(t, msg.Entries, 2)

	n, err := cache.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n, "cache keeps the full list")
}

func TestLoadEntriesFallsBackToCache(t *testing.T) {
	c := testClient(t, failing)
	cache, err := store.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)
	require.NoError(t, cache.ReplaceEntries(context.Background(), []journal.Entry{
		{ID: "1", Text: "a", Sentiment: journal.Positive, Timestamp: ts},
		{ID: "2", Text: "b", Sentiment: journal.Negative, Timestamp: ts.Add(-time.Hour)},
	}, ts))

	msg := loadEntries(context.Background(), c, cache, 0, testEnv())
	require.NoError(t, msg.Err)
	assert.True(t, msg.Cached)
	require.Len(t, msg.Entries, 2)
	assert.Equal(t, "1", msg.Entries[0].ID)
}

func TestLoadEntriesWithoutCache(t *testing.T) {
	c := testClient(t, failing)

	msg := loadEntries(context.Background(), c, nil, 0, testEnv())
	assert.Error(t, msg.Err)
	assert.Empty(t, msg.Entries)
}

func TestPrintTiles(t *testing.T) {
	now := time.Date(2024, 3, 10, 14, 0, 0, 0, time.Local)
	score := 0.9
	entries := []journal.Entry{
		{ID: "1", Sentiment: journal.Positive, Score: &score, Timestamp: now.Add(-time.Hour)},
		{ID: "2", Sentiment: journal.Positive, Score: &score, Timestamp: now.Add(-2 * time.Hour)},
	}

	var buf bytes.Buffer
	printTiles(&buf, tiles.Build(entries, now, analytics.DefaultThresholds()))
	out := buf.String()

	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "Positive")
	assert.Contains(t, out, "100%")
	assert.Equal(t, 2, strings.Count(out, tiles.Placeholder), "yesterday and the day before are empty")
}

func TestPrintTrends(t *testing.T) {
	points := []journal.TrendPoint{
		{Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.Local), AvgScore: 0.5},
		{Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local), AvgScore: 0.8},
	}

	var buf bytes.Buffer
	printTrends(&buf, points, analytics.DefaultThresholds())
	out := buf.String()

	assert.Contains(t, out, "2024-03-09")
	assert.Contains(t, out, "0.80")
	assert.Contains(t, out, strings.Repeat("█", 16))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "", bar(0, 10))
	assert.Equal(t, "█████", bar(0.5, 10))
	assert.Equal(t, strings.Repeat("█", 10), bar(1.7, 10), "clamped to width")
	assert.Equal(t, "", bar(-1, 10))
}

func TestHeadOf(t *testing.T) {
	entries := []journal.Entry{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	assert.Len(t, headOf(entries, 2), 2)
	assert.Len(t, headOf(entries, 0), 3)
	assert.Len(t, headOf(entries, 10), 3)
}
