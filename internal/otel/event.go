// Package otel is moodlog's structured event log.
//
// Events are typed structs written as JSONL lines by an async Logger. An
// optional RingBuffer keeps the most recent events in memory for the
// dashboard's debug overlay. `moodlog events` reads the file back.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Analytics refresh cycle
	KindRefreshStart    EventKind = "refresh.start"
	KindRefreshSkip     EventKind = "refresh.skip"
	KindRefreshComplete EventKind = "refresh.complete"
	KindFetchError      EventKind = "fetch.error"
	KindFallbackLocal   EventKind = "fallback.local"
	KindPanelError      EventKind = "panel.error"

	// Recent analysis tiles
	KindTilesRender EventKind = "tiles.render"
	KindTilesSkip   EventKind = "tiles.skip"
	KindTilesRetry  EventKind = "tiles.retry"
	KindTilesError  EventKind = "tiles.error"

	// Push channel
	KindPushConnect   EventKind = "push.connect"
	KindPushEvent     EventKind = "push.event"
	KindPushError     EventKind = "push.error"
	KindPushReconnect EventKind = "push.reconnect"

	// Journal composer
	KindEntryCreate EventKind = "entry.create"
	KindEntryDelete EventKind = "entry.delete"
	KindEntryError  EventKind = "entry.error"

	KindGuardRestore EventKind = "guard.restore"
	KindSchedFire    EventKind = "sched.fire"
	KindStoreError   EventKind = "store.error"
	KindAuth         EventKind = "auth"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Bubble Tea message tracing, only when MOODLOG_TRACE is set
	KindMsgReceived EventKind = "trace.msg_received"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "refresh", "tiles", "push", "guard", "ui", "main"
	SessionID string         `json:"session_id,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Endpoint  string         `json:"endpoint,omitempty"`
	Status    int            `json:"status,omitempty"`
	Panel     string         `json:"panel,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// wireEvent drops Event's methods so encoding doesn't recurse.
type wireEvent Event

// MarshalJSON writes Dur as fractional milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Dur > 0 {
		e.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(wireEvent(e))
}

// UnmarshalJSON restores Dur from dur_ms.
func (e *Event) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*wireEvent)(e)); err != nil {
		return err
	}
	if e.DurMs > 0 {
		e.Dur = time.Duration(e.DurMs * float64(time.Millisecond))
	}
	return nil
}
