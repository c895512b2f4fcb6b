// Package pipeline runs the analytics refresh cycle: overview and trends
// from the backend with local fallbacks, then the derived panels.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/metrics"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/refresh"
	"github.com/abelbrown/moodlog/internal/render"
	"github.com/abelbrown/moodlog/internal/sched"
)

// ErrBusy is returned by RefreshAll when a cycle is already running.
var ErrBusy = errors.New("refresh already in progress")

// Source says where a series came from.
type Source string

const (
	SourceBackend Source = "backend"
	SourceLocal   Source = "local" // derived from entries
	SourceCache   Source = "cache" // entries read from the local cache
	SourceNone    Source = "none"  // entries unavailable
)

// Backend is the part of the gateway the pipeline reads.
type Backend interface {
	FetchEntries(ctx context.Context) ([]journal.Entry, error)
	FetchOverview(ctx context.Context) (*journal.Overview, error)
	FetchTrends(ctx context.Context, days int) ([]journal.TrendPoint, error)
}

// Cache keeps the last fetched entries for offline fallback.
type Cache interface {
	ReplaceEntries(ctx context.Context, entries []journal.Entry, syncedAt time.Time) error
	Entries(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Result is everything one cycle produced.
type Result struct {
	Overview       journal.OverviewCounts
	OverviewSource Source
	Trends         []journal.TrendPoint
	TrendsSource   Source
	Panels         []analytics.Panel
	PanelErrors    map[string]error

	// Entries is set only when some step needed them.
	Entries       []journal.Entry
	EntriesSource Source
	EntriesErr    error

	Duration time.Duration
}

// Pipeline refreshes every analytics chart: overview doughnut, mood trend
// and the derived panels.
type Pipeline struct {
	Backend     Backend
	Cache       Cache // optional
	Renderer    render.Renderer
	State       *refresh.State
	Clock       sched.Clock
	Classifiers []analytics.Classifier
	WindowDays  int

	Events  *otel.Logger
	Metrics *metrics.Metrics
}

// New returns a pipeline with the default window and classifiers.
// Its State has no cooldown: overlapping cycles are dropped, sequential
// ones always run.
func New(b Backend, r render.Renderer, clock sched.Clock) *Pipeline {
	if clock == nil {
		clock = sched.Real()
	}
	return &Pipeline{
		Backend:     b,
		Renderer:    r,
		State:       refresh.NewState(clock, 0),
		Clock:       clock,
		Classifiers: analytics.DefaultClassifiers(analytics.DefaultStressMapping()),
		WindowDays:  analytics.DefaultWindowDays,
	}
}

// panelMounts maps classifier names to dashboard mounts. A classifier not
// listed renders to a mount of its own name, which a Board ignores unless
// registered.
var panelMounts = map[string]render.Mount{
	"stress":   render.MountStress,
	"activity": render.MountActivity,
	"sleep":    render.MountSleep,
}

// RefreshAll runs one cycle. It returns ErrBusy without doing anything when
// another cycle is in flight, and only fails outright when ctx is done;
// every backend failure has a local fallback.
func (p *Pipeline) RefreshAll(ctx context.Context) (*Result, error) {
	if p.State.TryBegin(false) != refresh.Begin {
		p.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindRefreshSkip, Comp: "refresh", Msg: refresh.Busy.String()})
		p.Metrics.RecordRefresh("busy", 0)
		return nil, ErrBusy
	}
	rendered := false
	defer func() { p.State.End(rendered) }()

	start := p.Clock.Now()
	p.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRefreshStart, Comp: "refresh"})

	res := &Result{PanelErrors: make(map[string]error)}
	load := p.entriesLoader(res)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Overview, res.OverviewSource = p.overview(gctx, load)
		return gctx.Err()
	})
	g.Go(func() error {
		res.Trends, res.TrendsSource = p.trends(gctx, load)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		p.Metrics.RecordRefresh("cancelled", 0)
		return nil, fmt.Errorf("refresh: %w", err)
	}

	p.Renderer.RenderDoughnut(render.MountSentiment, res.Overview)
	p.Renderer.RenderLine(render.MountMood, trendSeries(res.Trends))

	entries := load(ctx)
	res.Panels = p.derive(entries, res.PanelErrors)
	rendered = true

	res.Duration = p.Clock.Now().Sub(start)
	p.Events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindRefreshComplete,
		Comp:  "refresh",
		Dur:   res.Duration,
		Count: len(entries),
		Extra: map[string]any{
			"overview": string(res.OverviewSource),
			"trends":   string(res.TrendsSource),
			"entries":  string(res.EntriesSource),
		},
	})
	p.Metrics.RecordRefresh("complete", res.Duration)
	return res, nil
}

// entriesLoader returns a function that fetches entries at most once per
// cycle, writing them through to the cache and falling back to it.
func (p *Pipeline) entriesLoader(res *Result) func(context.Context) []journal.Entry {
	var once sync.Once
	return func(ctx context.Context) []journal.Entry {
		once.Do(func() {
			res.Entries, res.EntriesSource, res.EntriesErr = p.loadEntries(ctx)
		})
		return res.Entries
	}
}

func (p *Pipeline) loadEntries(ctx context.Context) ([]journal.Entry, Source, error) {
	entries, err := p.Backend.FetchEntries(ctx)
	if err == nil {
		if p.Cache != nil {
			if cerr := p.Cache.ReplaceEntries(ctx, entries, p.Clock.Now()); cerr != nil {
				logging.Warn("Refresh: cache write failed", "error", cerr)
				p.Events.Error(otel.KindStoreError, "refresh", cerr)
			} else {
				p.Metrics.SetCachedEntries(len(entries))
			}
		}
		return entries, SourceBackend, nil
	}
	p.fetchFailed("entries", err)

	if p.Cache == nil {
		return nil, SourceNone, err
	}
	cached, cerr := p.Cache.Entries(ctx, 0)
	if cerr != nil {
		logging.Warn("Refresh: cache read failed", "error", cerr)
		p.Events.Error(otel.KindStoreError, "refresh", cerr)
		return nil, SourceNone, errors.Join(err, cerr)
	}
	p.fallback("entries", len(cached))
	return cached, SourceCache, nil
}

func (p *Pipeline) overview(ctx context.Context, load func(context.Context) []journal.Entry) (journal.OverviewCounts, Source) {
	ov, err := p.Backend.FetchOverview(ctx)
	if err != nil {
		p.fetchFailed("overview", err)
	} else if ov != nil && ov.Counts != nil {
		return *ov.Counts, SourceBackend
	}
	entries := load(ctx)
	p.fallback("overview", len(entries))
	return analytics.OverviewFromEntries(entries), SourceLocal
}

func (p *Pipeline) trends(ctx context.Context, load func(context.Context) []journal.Entry) ([]journal.TrendPoint, Source) {
	points, err := p.Backend.FetchTrends(ctx, p.WindowDays)
	if err != nil {
		p.fetchFailed("trends", err)
	} else if len(points) > 0 {
		return points, SourceBackend
	}
	entries := load(ctx)
	p.fallback("trends", len(entries))
	return analytics.TrendsFromEntries(entries, p.Clock.Now(), p.WindowDays), SourceLocal
}

// derive runs every classifier concurrently. A classifier that panics
// loses its own panel and nothing else.
func (p *Pipeline) derive(entries []journal.Entry, errs map[string]error) []analytics.Panel {
	panels := make([]analytics.Panel, len(p.Classifiers))
	failed := make([]error, len(p.Classifiers))

	var wg sync.WaitGroup
	for i, c := range p.Classifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			panels[i], failed[i] = classify(c, entries)
		}()
	}
	wg.Wait()

	var out []analytics.Panel
	for i, c := range p.Classifiers {
		if failed[i] != nil {
			errs[c.Name()] = failed[i]
			logging.Error("Refresh: panel failed", "panel", c.Name(), "error", failed[i])
			p.Events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindPanelError, Comp: "refresh", Panel: c.Name(), Err: failed[i].Error()})
			continue
		}
		p.Renderer.RenderBar(mountFor(c.Name()), barSeries(panels[i]))
		out = append(out, panels[i])
	}
	return out
}

func classify(c analytics.Classifier, entries []journal.Entry) (panel analytics.Panel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s classifier: %v", c.Name(), r)
		}
	}()
	return c.Classify(entries), nil
}

func mountFor(name string) render.Mount {
	if m, ok := panelMounts[name]; ok {
		return m
	}
	return render.Mount(name)
}

func (p *Pipeline) fetchFailed(endpoint string, err error) {
	status := 0
	var te *gateway.TransportError
	if errors.As(err, &te) {
		status = te.Status
	}
	logging.Warn("Refresh: fetch failed, using local fallback", "endpoint", endpoint, "error", err)
	p.Events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "refresh", Endpoint: endpoint, Status: status, Err: err.Error()})
	p.Metrics.RecordGatewayError(endpoint, status)
}

func (p *Pipeline) fallback(series string, n int) {
	p.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFallbackLocal, Comp: "refresh", Panel: series, Count: n})
	p.Metrics.RecordFallback(series)
}

// trendSeries converts trend points to the mood line on a 0-10 scale.
func trendSeries(points []journal.TrendPoint) render.LineSeries {
	s := render.LineSeries{Title: "Mood trend", Min: 0, Max: 10}
	for _, pt := range points {
		s.Labels = append(s.Labels, pt.Date.Format("Jan 2"))
		s.Values = append(s.Values, float64(analytics.MoodScale(pt.AvgScore)))
	}
	return s
}

func barSeries(p analytics.Panel) render.BarSeries {
	return render.BarSeries{
		Title:  p.Name,
		Labels: p.Labels,
		Values: p.Values,
		Max:    p.Max,
		Note:   p.Confidence,
	}
}
