// Package sched owns every timer moodlog runs: the tile poll, the midnight
// rollover, the panel-guard tick and the push-channel reconnect delay.
//
// All of them go through a clockwork Clock so tests can drive time with
// clockwork.FakeClock instead of sleeping.
package sched

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source.
type Clock = clockwork.Clock

// Timer is a pending timer or AfterFunc call.
type Timer = clockwork.Timer

// Real returns the wall clock.
func Real() Clock { return clockwork.NewRealClock() }

// Sleep blocks for d on clock, returning early with false if done closes.
func Sleep(clock Clock, d time.Duration, done <-chan struct{}) bool {
	t := clock.NewTimer(d)
	select {
	case <-t.Chan():
		return true
	case <-done:
		t.Stop()
		return false
	}
}
