package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/coord"
	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/guard"
	"github.com/abelbrown/moodlog/internal/insight"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/realtime"
	"github.com/abelbrown/moodlog/internal/refresh"
	"github.com/abelbrown/moodlog/internal/refresh/pipeline"
	"github.com/abelbrown/moodlog/internal/render"
	"github.com/abelbrown/moodlog/internal/sched"
	"github.com/abelbrown/moodlog/internal/store"
	"github.com/abelbrown/moodlog/internal/tiles"
	"github.com/abelbrown/moodlog/internal/ui"
)

func addDashboard(topLevel *cobra.Command, opts *options) {
	var cmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Open the journal dashboard (the default command).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}
	topLevel.AddCommand(cmd)
}

// backend is the dashboard's wired refresh machinery, shared by the TUI
// and the headless watcher.
type backend struct {
	board     *render.Board
	pipeline  *pipeline.Pipeline
	tiles     *tiles.Refresher
	push      *realtime.Subscriber // nil when push is disabled
	scheduler *sched.Scheduler
}

func newBackend(e *env, cache *store.Store) *backend {
	cfg := e.cfg
	clock := sched.Real()
	board := render.NewBoard(render.DashboardMounts...)

	p := pipeline.New(e.client, board, clock)
	if cache != nil {
		p.Cache = cache
	}
	p.Classifiers = analytics.DefaultClassifiers(cfg.StressMapping())
	p.WindowDays = cfg.Analytics.WindowDays
	p.Events = e.events
	p.Metrics = e.metrics

	tr := tiles.NewRefresher(e.client, board, clock)
	tr.State = refresh.NewState(clock, cfg.TileCooldown())
	tr.Thresholds = cfg.Thresholds()
	tr.Retries = cfg.Tiles.Retries
	tr.Backoff = cfg.TileBackoff()
	tr.Factor = cfg.Tiles.BackoffFactor
	tr.Events = e.events
	tr.Metrics = e.metrics

	b := &backend{board: board, pipeline: p, tiles: tr, scheduler: sched.New(clock)}
	if cfg.Push.Enabled {
		sub := realtime.New(e.client.StreamURL, nil, clock)
		sub.Delay = cfg.ReconnectDelay()
		sub.Events = e.events
		sub.Metrics = e.metrics
		b.push = sub
	}
	return b
}

// coordinator builds the coordinator and points the push handler at it.
func (b *backend) coordinator(e *env, g *guard.Guard) *coord.Coordinator {
	var push coord.Push
	if b.push != nil {
		push = b.push
	}
	c := coord.New(b.pipeline, b.tiles, push, g, b.scheduler)
	c.Poll = e.cfg.TilePoll()
	c.MidnightOffset = e.cfg.MidnightOffset()
	c.Events = e.events
	if b.push != nil {
		b.push.Handler = c.OnJournalCreated
	}
	return c
}

func runDashboard(parent context.Context, opts *options) error {
	e, err := setup(opts, true)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cache, err := e.openCache()
	if err != nil {
		// Offline fallback is lost, but the dashboard still works online.
		logging.Warn("Entry cache unavailable", "error", err)
		cache = nil
	}

	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	e.events.SetRingBuffer(ring)
	e.events.Info(otel.KindStartup, "main", "dashboard")
	defer e.events.Info(otel.KindShutdown, "main", "dashboard")

	e.serveMetrics(ctx)

	b := newBackend(e, cache)
	panels := guard.NewPanels()
	g := guard.New(panels)
	g.Events = e.events
	g.Metrics = e.metrics
	coordinator := b.coordinator(e, g)

	limit := e.cfg.UI.EntryLimit
	client := e.client

	// Create UI app with dependency injection
	cfg := ui.AppConfig{
		LoadEntries: func() tea.Cmd {
			return func() tea.Msg {
				return loadEntries(ctx, client, cache, limit, e)
			}
		},
		Submit: func(text string) tea.Cmd {
			return func() tea.Msg {
				return submitEntry(ctx, client, text, e.events)
			}
		},
		Delete: func(id string) tea.Cmd {
			return func() tea.Msg {
				err := client.DeleteEntry(ctx, id)
				if err != nil {
					e.events.Error(otel.KindEntryError, "ui", err)
				} else {
					e.events.Info(otel.KindEntryDelete, "ui", id)
				}
				return ui.EntryDeleted{ID: id, Err: err}
			}
		},
		Refresh: func() tea.Cmd {
			return tea.Batch(
				func() tea.Msg {
					out, err := b.tiles.Refresh(ctx, true)
					return ui.TilesRefreshed{Outcome: out, Err: err}
				},
				func() tea.Msg {
					res, err := b.pipeline.RefreshAll(ctx)
					return ui.AnalyticsRefreshed{Result: res, Err: err}
				},
			)
		},
		Board:     b.board,
		Panels:    panels,
		Guard:     g,
		Ring:      ring,
		Events:    e.events,
		User:      e.sess.Get().Username,
		Now:       time.Now,
		ShowDebug: e.cfg.UI.ShowDebug,
	}

	app := ui.NewApp(cfg)

	// Run with alt screen
	program := tea.NewProgram(app, tea.WithAltScreen())

	// Start background coordinator (pass program for Send)
	coordinator.Start(ctx, program)

	_, err = program.Run()

	// Graceful shutdown
	cancel()
	coordinator.Wait()

	return err
}

// loadEntries fetches the entry list, keeping the cache current, and falls
// back to the cache when the backend is unreachable.
func loadEntries(ctx context.Context, client *gateway.Client, cache *store.Store, limit int, e *env) ui.EntriesLoaded {
	entries, err := client.FetchEntries(ctx)
	if err == nil {
		if cache != nil {
			if cerr := cache.ReplaceEntries(ctx, entries, time.Now()); cerr != nil {
				e.events.Error(otel.KindStoreError, "main", cerr)
			} else {
				e.metrics.SetCachedEntries(len(entries))
			}
		}
		return ui.EntriesLoaded{Entries: headOf(entries, limit)}
	}

	logging.Warn("Entries fetch failed", "error", err)
	e.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "main", Endpoint: "/journal/entries", Err: err.Error()})
	if cache == nil {
		return ui.EntriesLoaded{Err: err}
	}
	cached, cerr := cache.Entries(ctx, limit)
	if cerr != nil {
		return ui.EntriesLoaded{Err: err}
	}
	return ui.EntriesLoaded{Entries: cached, Cached: true}
}

// submitEntry creates an entry. On failure the message carries a local
// estimate so the panels still show something.
func submitEntry(ctx context.Context, client *gateway.Client, text string, events *otel.Logger) ui.EntrySubmitted {
	created, err := client.CreateEntry(ctx, gateway.NewEntry{Text: text})
	if err != nil {
		logging.Warn("Entry submit failed", "error", err)
		events.Error(otel.KindEntryError, "ui", err)
		return ui.EntrySubmitted{Err: err, Analysis: insight.LocalAnalyze(text)}
	}
	events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindEntryCreate, Comp: "ui", Msg: string(created.Sentiment)})
	return ui.EntrySubmitted{Entry: &created, Analysis: insight.FromEntry(created)}
}

// headOf returns at most n entries; n <= 0 means all.
func headOf(entries []journal.Entry, n int) []journal.Entry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
