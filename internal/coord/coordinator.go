// Package coord provides background refresh coordination for moodlog.
package coord

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/moodlog/internal/guard"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/refresh/pipeline"
	"github.com/abelbrown/moodlog/internal/sched"
	"github.com/abelbrown/moodlog/internal/tiles"
	"github.com/abelbrown/moodlog/internal/ui"
)

// DefaultPoll is the time between unforced tile refreshes.
const DefaultPoll = 5 * time.Minute

// DefaultMidnightOffset is how long after local midnight the day rolls over.
const DefaultMidnightOffset = 5 * time.Second

// Sender delivers messages to the UI. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Analytics runs one analytics refresh cycle.
type Analytics interface {
	RefreshAll(ctx context.Context) (*pipeline.Result, error)
}

// Tiles refreshes the recent analysis tiles.
type Tiles interface {
	Refresh(ctx context.Context, force bool) (tiles.Outcome, error)
}

// Push runs the server-push subscription until ctx is done.
type Push interface {
	Run(ctx context.Context) error
}

// Coordinator drives every background refresh: the initial load, the tile
// poll, the midnight rollover, the panel guard and server push.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	analytics Analytics
	tiles     Tiles
	push      Push         // optional
	guard     *guard.Guard // optional
	sched     *sched.Scheduler

	Poll           time.Duration
	MidnightOffset time.Duration
	Events         *otel.Logger

	mu      sync.Mutex
	sender  Sender
	stopped bool

	wg sync.WaitGroup
}

// New creates a Coordinator. push and g may be nil.
func New(a Analytics, t Tiles, push Push, g *guard.Guard, s *sched.Scheduler) *Coordinator {
	if s == nil {
		s = sched.New(nil)
	}
	return &Coordinator{
		analytics:      a,
		tiles:          t,
		push:           push,
		guard:          g,
		sched:          s,
		Poll:           DefaultPoll,
		MidnightOffset: DefaultMidnightOffset,
	}
}

// Start performs the initial refresh and schedules the recurring work.
// Call with a cancellable context; the sender may be nil.
func (c *Coordinator) Start(ctx context.Context, sender Sender) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()

	c.sched.OnFire(func(name string) {
		c.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindSchedFire, Comp: "sched", Msg: name})
	})

	// Scheduler callbacks must not block, so every job hands off to a
	// tracked goroutine.
	c.sched.Every("tiles", c.Poll, func() {
		c.spawn(func() { c.refreshTiles(ctx, false) })
	})
	c.sched.Daily("midnight", c.MidnightOffset, func() {
		logging.Info("Coord: day rolled over")
		c.spawn(func() { c.refreshBoth(ctx) })
	})
	if c.guard != nil {
		c.guard.Start(c.sched, func() { c.send(ui.GuardTick{}) })
	}

	c.spawn(func() {
		c.refreshBoth(ctx)
	})

	if c.push != nil {
		c.spawn(func() {
			if err := c.push.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn("Coord: push stopped", "error", err)
			}
		})
	}

	c.spawn(func() {
		<-ctx.Done()
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		c.sched.Stop()
	})
}

// Wait blocks until every background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Scheduler returns the scheduler the jobs run on.
func (c *Coordinator) Scheduler() *sched.Scheduler { return c.sched }

// OnJournalCreated is the push handler. It refreshes analytics and forces
// the tiles, and returns once both are done so pushes are handled one at a
// time.
func (c *Coordinator) OnJournalCreated(ctx context.Context, ev journal.PushEvent) error {
	if ev.Event != journal.EventJournalCreated {
		return nil
	}
	c.send(ui.PushReceived{})
	c.refreshBoth(ctx)
	return ctx.Err()
}

// RefreshAnalytics runs one analytics cycle and reports it, busy or not,
// so the UI can clear its refresh indicator.
func (c *Coordinator) RefreshAnalytics(ctx context.Context) {
	res, err := c.analytics.RefreshAll(ctx)
	if err != nil && !errors.Is(err, pipeline.ErrBusy) {
		logging.Warn("Coord: analytics refresh failed", "error", err)
	}
	c.send(ui.AnalyticsRefreshed{Result: res, Err: err})
}

func (c *Coordinator) refreshTiles(ctx context.Context, force bool) {
	out, err := c.tiles.Refresh(ctx, force)
	if out == tiles.SkippedBusy || out == tiles.SkippedCooldown {
		return
	}
	c.send(ui.TilesRefreshed{Outcome: out, Err: err})
}

// refreshBoth runs a forced tile refresh and an analytics cycle
// concurrently. Neither can fail the other.
func (c *Coordinator) refreshBoth(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.refreshTiles(ctx, true)
	}()
	go func() {
		defer wg.Done()
		c.RefreshAnalytics(ctx)
	}()
	wg.Wait()
}

// spawn runs fn on a tracked goroutine unless the coordinator has stopped.
func (c *Coordinator) spawn(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// send forwards msg to the UI (handles a nil sender gracefully for testing).
func (c *Coordinator) send(msg tea.Msg) {
	c.mu.Lock()
	s := c.sender
	c.mu.Unlock()
	if s != nil {
		s.Send(msg)
	}
}
