package tiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/metrics"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/refresh"
	"github.com/abelbrown/moodlog/internal/sched"
)

// Outcome is the result of one Refresh call.
type Outcome int

const (
	Rendered Outcome = iota
	SkippedBusy
	SkippedCooldown
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case SkippedBusy:
		return "busy"
	case SkippedCooldown:
		return "cooldown"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EntrySource fetches the full entry list.
type EntrySource interface {
	FetchEntries(ctx context.Context) ([]journal.Entry, error)
}

// Sink displays tiles.
type Sink interface {
	RenderTiles(tiles [3]Tile)
}

// DefaultCooldown is the minimum gap between unforced renders.
const DefaultCooldown = 8 * time.Second

// Refresher re-renders the tiles from a fresh entry fetch.
type Refresher struct {
	Source     EntrySource
	Sink       Sink
	State      *refresh.State
	Clock      sched.Clock
	Thresholds analytics.Thresholds

	// Retries after the first failed fetch, waiting Backoff, then
	// Backoff*Factor, and so on.
	Retries int
	Backoff time.Duration
	Factor  float64

	Events  *otel.Logger
	Metrics *metrics.Metrics
}

// NewRefresher returns a Refresher with the default cooldown and retry
// policy (8s; 2 retries at 400ms then 600ms).
func NewRefresher(src EntrySource, sink Sink, clock sched.Clock) *Refresher {
	if clock == nil {
		clock = sched.Real()
	}
	return &Refresher{
		Source:     src,
		Sink:       sink,
		State:      refresh.NewState(clock, DefaultCooldown),
		Clock:      clock,
		Thresholds: analytics.DefaultThresholds(),
		Retries:    2,
		Backoff:    400 * time.Millisecond,
		Factor:     1.5,
	}
}

// Refresh fetches entries and renders the tiles.
//
// Calls while a refresh is in flight are dropped. Unforced calls within the
// cooldown of the last successful render are skipped. On fetch failure the
// previously rendered tiles stay as they are and the error is returned.
func (r *Refresher) Refresh(ctx context.Context, force bool) (Outcome, error) {
	switch r.State.TryBegin(force) {
	case refresh.Busy:
		r.skip(SkippedBusy)
		return SkippedBusy, nil
	case refresh.Cooldown:
		r.skip(SkippedCooldown)
		return SkippedCooldown, nil
	}

	rendered := false
	defer func() { r.State.End(rendered) }()

	start := r.Clock.Now()
	entries, err := r.fetchWithRetry(ctx)
	if err != nil {
		logging.Info("Tiles: transient error, leaving current tiles", "error", err)
		r.Events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindTilesError, Comp: "tiles", Err: err.Error()})
		r.Metrics.RecordTiles(Failed.String())
		return Failed, err
	}

	built := Build(entries, r.Clock.Now(), r.Thresholds)
	r.Sink.RenderTiles(built)
	rendered = true

	r.Events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindTilesRender,
		Comp:  "tiles",
		Count: len(entries),
		Dur:   r.Clock.Now().Sub(start),
		Extra: map[string]any{"forced": force},
	})
	r.Metrics.RecordTiles(Rendered.String())
	return Rendered, nil
}

func (r *Refresher) skip(o Outcome) {
	r.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindTilesSkip, Comp: "tiles", Msg: o.String()})
	r.Metrics.RecordTiles(o.String())
}

func (r *Refresher) fetchWithRetry(ctx context.Context) ([]journal.Entry, error) {
	delay := r.Backoff
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			r.Events.Emit(otel.Event{
				Level:   otel.LevelDebug,
				Kind:    otel.KindTilesRetry,
				Comp:    "tiles",
				Attempt: attempt,
				Dur:     delay,
				Err:     lastErr.Error(),
			})
			if !sched.Sleep(r.Clock, delay, ctx.Done()) {
				return nil, errors.Join(lastErr, ctx.Err())
			}
			delay = time.Duration(float64(delay) * r.Factor)
		}

		entries, err := r.Source.FetchEntries(ctx)
		if err == nil {
			return entries, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("fetch entries after %d attempts: %w", r.Retries+1, lastErr)
}
