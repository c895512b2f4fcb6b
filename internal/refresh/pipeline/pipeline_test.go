package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/render"
)

var now = time.Date(2024, 3, 10, 14, 0, 0, 0, time.Local)

func score(v float64) *float64 { return &v }

type fakeBackend struct {
	entries     []journal.Entry
	entriesErr  error
	overview    *journal.Overview
	overviewErr error
	trends      []journal.TrendPoint
	trendsErr   error

	entryCalls    atomic.Int32
	overviewCalls atomic.Int32
	trendCalls    atomic.Int32

	// When set, FetchOverview announces itself on started and waits on release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) FetchEntries(ctx context.Context) ([]journal.Entry, error) {
	f.entryCalls.Add(1)
	return f.entries, f.entriesErr
}

func (f *fakeBackend) FetchOverview(ctx context.Context) (*journal.Overview, error) {
	f.overviewCalls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.overview, f.overviewErr
}

func (f *fakeBackend) FetchTrends(ctx context.Context, days int) ([]journal.TrendPoint, error) {
	f.trendCalls.Add(1)
	return f.trends, f.trendsErr
}

type fakeCache struct {
	mu       sync.Mutex
	stored   []journal.Entry
	replaced int
	readErr  error
}

func (c *fakeCache) ReplaceEntries(ctx context.Context, entries []journal.Entry, syncedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = entries
	c.replaced++
	return nil
}

func (c *fakeCache) Entries(ctx context.Context, limit int) ([]journal.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored, c.readErr
}

func todays() []journal.Entry {
	return []journal.Entry{
		{ID: "1", Sentiment: journal.Positive, Score: score(0.9), Timestamp: now.Add(-time.Hour)},
		{ID: "2", Sentiment: journal.Positive, Score: score(0.9), Timestamp: now.Add(-2 * time.Hour)},
		{ID: "3", Sentiment: journal.Negative, Score: score(0.1), Timestamp: now.Add(-3 * time.Hour)},
	}
}

func newTestPipeline(b Backend) (*Pipeline, *render.Board) {
	board := render.NewBoard(render.DashboardMounts...)
	return New(b, board, clockwork.NewFakeClockAt(now)), board
}

func TestRefreshAllBackendData(t *testing.T) {
	b := &fakeBackend{
		entries:  todays(),
		overview: &journal.Overview{Counts: &journal.OverviewCounts{Positive: 5, Neutral: 1}},
		trends:   []journal.TrendPoint{{Date: now, AvgScore: 0.7}},
	}
	p, board := newTestPipeline(b)

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceBackend, res.OverviewSource)
	assert.Equal(t, 5, res.Overview.Positive)
	assert.Equal(t, SourceBackend, res.TrendsSource)
	assert.Len(t, res.Trends, 1)
	assert.Len(t, res.Panels, 3)
	assert.Equal(t, int32(1), b.entryCalls.Load(), "derived panels still need entries")

	for _, m := range render.DashboardMounts {
		assert.Equal(t, 1, board.Renders(m), "mount %s", m)
	}
}

func TestRefreshAllEmptyBackendFallsBack(t *testing.T) {
	b := &fakeBackend{
		entries:  todays(),
		overview: &journal.Overview{}, // counts nil: "not available"
	}
	p, _ := newTestPipeline(b)

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceLocal, res.OverviewSource)
	assert.Equal(t, journal.OverviewCounts{Positive: 2, Negative: 1}, res.Overview)
	assert.Equal(t, SourceLocal, res.TrendsSource)
	assert.Len(t, res.Trends, analytics.DefaultWindowDays)
	assert.Equal(t, int32(1), b.entryCalls.Load(), "entries fetched once per cycle")
}

func TestRefreshAllNoEntriesAnywhere(t *testing.T) {
	b := &fakeBackend{}
	p, _ := newTestPipeline(b)

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Overview.Total())
	require.Len(t, res.Trends, 30)
	for _, pt := range res.Trends {
		assert.Equal(t, 0.5, pt.AvgScore)
	}
	assert.True(t, res.Trends[0].Date.Before(res.Trends[29].Date), "oldest first")
}

func TestRefreshAllFetchErrorsFallBack(t *testing.T) {
	b := &fakeBackend{
		entries:     todays(),
		overviewErr: &gateway.TransportError{Endpoint: "/analytics/overview", Status: 500, Message: "boom"},
		trendsErr:   &gateway.TransportError{Endpoint: "/analytics/trends", Message: "dial tcp: refused"},
	}
	p, board := newTestPipeline(b)

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err, "backend failures never fail the cycle")
	assert.Equal(t, SourceLocal, res.OverviewSource)
	assert.Equal(t, 3, res.Overview.Total())
	assert.Equal(t, SourceLocal, res.TrendsSource)
	assert.Equal(t, 1, board.Renders(render.MountSentiment))
}

func TestRefreshAllEntriesCacheWriteThrough(t *testing.T) {
	b := &fakeBackend{entries: todays()}
	p, _ := newTestPipeline(b)
	cache := &fakeCache{}
	p.Cache = cache

	_, err := p.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.replaced)
	assert.Len(t, cache.stored, 3)
}

func TestRefreshAllEntriesFallBackToCache(t *testing.T) {
	b := &fakeBackend{entriesErr: errors.New("offline")}
	p, _ := newTestPipeline(b)
	p.Cache = &fakeCache{stored: todays()}

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.EntriesSource)
	assert.NoError(t, res.EntriesErr)
	assert.Equal(t, 3, res.Overview.Total())
}

func TestRefreshAllEntriesUnavailable(t *testing.T) {
	b := &fakeBackend{entriesErr: errors.New("offline")}
	p, board := newTestPipeline(b)
	p.Cache = &fakeCache{readErr: errors.New("disk gone")}

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceNone, res.EntriesSource)
	assert.Error(t, res.EntriesErr)
	assert.Len(t, res.Trends, 30)
	assert.Equal(t, 1, board.Renders(render.MountMood))
}

func TestRefreshAllOverlappingIsDropped(t *testing.T) {
	b := &fakeBackend{
		entries: todays(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p, board := newTestPipeline(b)

	done := make(chan error)
	go func() {
		_, err := p.RefreshAll(context.Background())
		done <- err
	}()
	<-b.started

	_, err := p.RefreshAll(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(b.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), b.overviewCalls.Load())
	assert.Equal(t, 1, board.Renders(render.MountSentiment))

	// Sequential cycles always run; there is no cooldown here.
	b.started = nil
	_, err = p.RefreshAll(context.Background())
	assert.NoError(t, err)
}

type panicClassifier struct{}

func (panicClassifier) Name() string { return "stress" }
func (panicClassifier) Classify([]journal.Entry) analytics.Panel {
	panic("bad regex")
}

func TestDerivedPanelFailureIsIsolated(t *testing.T) {
	b := &fakeBackend{entries: todays()}
	p, board := newTestPipeline(b)
	p.Classifiers = []analytics.Classifier{panicClassifier{}, analytics.ActivityClassifier{}, analytics.SleepClassifier{}}

	res, err := p.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Contains(t, res.PanelErrors, "stress")
	assert.Len(t, res.Panels, 2)
	assert.Equal(t, 0, board.Renders(render.MountStress))
	assert.Equal(t, 1, board.Renders(render.MountActivity))
	assert.Equal(t, 1, board.Renders(render.MountSleep))
	assert.False(t, p.State.Refreshing())
}

func TestRefreshAllCancelled(t *testing.T) {
	p, board := newTestPipeline(&fakeBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.RefreshAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, board.Renders(render.MountMood))
	assert.False(t, p.State.Refreshing())
}

func TestTrendSeriesMoodScale(t *testing.T) {
	s := trendSeries([]journal.TrendPoint{{Date: now, AvgScore: 0.74}, {Date: now, AvgScore: 0.5}})
	assert.Equal(t, []float64{7, 5}, s.Values)
	assert.Equal(t, []string{"Mar 10", "Mar 10"}, s.Labels)
}
