// Package ui provides the Bubble Tea dashboard for moodlog.
package ui

import (
	"github.com/abelbrown/moodlog/internal/insight"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/refresh/pipeline"
	"github.com/abelbrown/moodlog/internal/tiles"
)

// EntriesLoaded is sent when the entry list has been fetched.
type EntriesLoaded struct {
	Entries []journal.Entry
	Cached  bool // read from the local cache after a failed fetch
	Err     error
}

// AnalyticsRefreshed is sent after each analytics refresh attempt. Err is
// pipeline.ErrBusy when the attempt was dropped for overlapping another.
type AnalyticsRefreshed struct {
	Result *pipeline.Result
	Err    error
}

// TilesRefreshed is sent after each tile refresh attempt that did work.
type TilesRefreshed struct {
	Outcome tiles.Outcome
	Err     error
}

// EntrySubmitted is sent when a composer submit finishes. On backend
// failure Entry is nil and Analysis is the local estimate.
type EntrySubmitted struct {
	Entry    *journal.Entry
	Analysis insight.Analysis
	Err      error
}

// EntryDeleted is sent when a delete request finishes.
type EntryDeleted struct {
	ID  string
	Err error
}

// PushReceived is sent for every journal_created event, before the
// refresh it triggers.
type PushReceived struct{}

// GuardTick asks the view to pick up restored panel content.
type GuardTick struct{}
