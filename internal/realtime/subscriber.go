// Package realtime listens on the backend's server-sent event stream and
// hands every "journal created" push to a handler.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	sse "github.com/tmaxmax/go-sse"

	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/metrics"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/sched"
)

// ReconnectDelay is the fixed wait before reopening a dropped stream. It
// never grows and there is no attempt cap.
const ReconnectDelay = 3 * time.Second

// maxEvent bounds one SSE event; entries carry their full text.
const maxEvent = 1 << 20

// errStreamClosed is returned when the server ends the stream cleanly.
var errStreamClosed = errors.New("stream closed by server")

// Handler is called once per journal_created event. The next event is not
// read until it returns.
type Handler func(ctx context.Context, ev journal.PushEvent) error

// Subscriber keeps one push stream open for the life of Run.
type Subscriber struct {
	// URL is resolved on every connect so a fresh token is picked up.
	URL     func() string
	Client  *http.Client
	Handler Handler
	Clock   sched.Clock
	Delay   time.Duration

	Events  *otel.Logger
	Metrics *metrics.Metrics

	attempts  atomic.Int64
	delivered atomic.Int64
	connected atomic.Bool
}

// New creates a Subscriber with the default reconnect delay. The HTTP
// client has no timeout: the stream is meant to stay open.
func New(url func() string, h Handler, clock sched.Clock) *Subscriber {
	if clock == nil {
		clock = sched.Real()
	}
	return &Subscriber{
		URL:     url,
		Client:  &http.Client{},
		Handler: h,
		Clock:   clock,
		Delay:   ReconnectDelay,
	}
}

// Attempts returns how many times Run has tried to connect.
func (s *Subscriber) Attempts() int64 { return s.attempts.Load() }

// Delivered returns how many journal_created events reached the handler.
func (s *Subscriber) Delivered() int64 { return s.delivered.Load() }

// Connected reports whether a stream is currently open.
func (s *Subscriber) Connected() bool { return s.connected.Load() }

// Run connects and reconnects until ctx is cancelled. It always returns
// ctx.Err().
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.stream(ctx)
		s.connected.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logging.Warn("Push: stream dropped, reconnecting", "error", err, "delay", s.Delay)
		s.Events.Emit(otel.Event{
			Level:   otel.LevelWarn,
			Kind:    otel.KindPushError,
			Comp:    "push",
			Attempt: int(s.attempts.Load()),
			Err:     err.Error(),
		})

		if !sched.Sleep(s.Clock, s.Delay, ctx.Done()) {
			return ctx.Err()
		}
		s.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindPushReconnect, Comp: "push", Attempt: int(s.attempts.Load()) + 1, Dur: s.Delay})
		s.Metrics.RecordReconnect()
	}
}

func (s *Subscriber) stream(ctx context.Context) error {
	s.attempts.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.Client.Do(req)
	if err != nil {
		return &gateway.TransportError{Endpoint: "/events/stream", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &gateway.TransportError{Endpoint: "/events/stream", Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	s.connected.Store(true)
	s.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindPushConnect, Comp: "push", Attempt: int(s.attempts.Load())})
	logging.Info("Push: connected")

	return s.read(ctx, resp.Body)
}

// read dispatches each event with data until the stream ends. Comments
// such as ": heartbeat" never reach dispatch.
func (s *Subscriber) read(ctx context.Context, body io.Reader) error {
	for ev, err := range sse.Read(body, &sse.ReadConfig{MaxEventSize: maxEvent}) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if ev.Data != "" {
			s.dispatch(ctx, ev.Type, ev.Data)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errStreamClosed
}

func (s *Subscriber) dispatch(ctx context.Context, name, data string) {
	ev, ok := decodeEvent(name, data)
	if !ok {
		logging.Debug("Push: ignoring malformed event", "data", data)
		return
	}
	s.Metrics.RecordPushEvent(ev.Event)
	if ev.Event != journal.EventJournalCreated {
		return
	}

	s.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindPushEvent, Comp: "push", Msg: ev.Event})
	s.delivered.Add(1)
	if s.Handler == nil {
		return
	}
	if err := s.Handler(ctx, ev); err != nil {
		logging.Warn("Push: handler failed", "event", ev.Event, "error", err)
		s.Events.Error(otel.KindPushError, "push", err)
	}
}

// decodeEvent accepts {"event":"...","data":{...}} payloads. When the JSON
// has no event name the SSE "event:" field is used instead.
func decodeEvent(name, data string) (journal.PushEvent, bool) {
	var ev journal.PushEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return ev, false
	}
	if ev.Event == "" {
		if name == "" {
			return ev, false
		}
		ev.Event = name
		ev.Data = json.RawMessage(data)
	}
	return ev, true
}
