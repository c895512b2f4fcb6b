// Package refresh owns the guard that keeps refresh cycles from
// overlapping. The tiles refresher and the analytics pipeline each hold
// their own State.
package refresh

import (
	"sync"
	"time"

	"github.com/abelbrown/moodlog/internal/sched"
)

// Decision is the outcome of TryBegin.
type Decision int

const (
	// Begin: the caller owns the cycle and must call End.
	Begin Decision = iota
	// Busy: another cycle is running. Dropped, not queued.
	Busy
	// Cooldown: the last successful render is too recent.
	Cooldown
)

func (d Decision) String() string {
	switch d {
	case Begin:
		return "begin"
	case Busy:
		return "busy"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// State is the refreshing flag plus the last successful render time.
// One State per refreshed surface; safe for concurrent use.
type State struct {
	clock    sched.Clock
	cooldown time.Duration

	mu           sync.Mutex
	refreshing   bool
	lastRenderAt time.Time
}

// NewState creates a State. A zero cooldown disables the cooldown check.
func NewState(clock sched.Clock, cooldown time.Duration) *State {
	if clock == nil {
		clock = sched.Real()
	}
	return &State{clock: clock, cooldown: cooldown}
}

// TryBegin claims the cycle. Busy wins over Cooldown, and force only
// bypasses the cooldown.
func (s *State) TryBegin(force bool) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshing {
		return Busy
	}
	if !force && s.cooldown > 0 && !s.lastRenderAt.IsZero() &&
		s.clock.Now().Sub(s.lastRenderAt) < s.cooldown {
		return Cooldown
	}
	s.refreshing = true
	return Begin
}

// End releases the cycle. rendered records a successful render, which
// starts the cooldown; a failed cycle leaves the previous time in place.
func (s *State) End(rendered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if rendered {
		s.lastRenderAt = s.clock.Now()
	}
}

// Refreshing reports whether a cycle is in flight.
func (s *State) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// LastRenderAt returns the last successful render time, or zero.
func (s *State) LastRenderAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRenderAt
}
