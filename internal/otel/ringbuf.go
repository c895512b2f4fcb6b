package otel

import (
	"maps"
	"slices"
	"sync"
)

// DefaultRingSize is the capacity of the buffer behind the debug overlay.
const DefaultRingSize = 1024

// RingBuffer keeps the newest events in memory for the debug overlay and
// `moodlog stats`. Safe for concurrent use.
type RingBuffer struct {
	mu    sync.Mutex
	buf   []Event
	next  int // slot the next Push writes
	count int // valid events, at most len(buf)
}

// NewRingBuffer creates a buffer holding size events (DefaultRingSize when
// size <= 0).
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{buf: make([]Event, size)}
}

// Push stores e, evicting the oldest event when full. Extra is cloned so
// the emitter can keep using its map.
func (r *RingBuffer) Push(e Event) {
	e.Extra = maps.Clone(e.Extra)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	r.count = min(r.count+1, len(r.buf))
}

// at returns the i-th oldest buffered event. Caller holds mu.
func (r *RingBuffer) at(i int) Event {
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	return r.buf[(start+i)%len(r.buf)]
}

// Events returns every buffered event, oldest first.
func (r *RingBuffer) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	out := make([]Event, r.count)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

// Last returns the n newest events, oldest first.
func (r *RingBuffer) Last(n int) []Event { return r.Recent(n, nil) }

// Recent returns up to n of the newest events keep accepts, oldest first.
// A nil keep accepts everything.
func (r *RingBuffer) Recent(n int, keep func(Event) bool) []Event {
	if n <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for i := r.count - 1; i >= 0 && len(out) < n; i-- {
		if e := r.at(i); keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out
}

// Len returns the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the capacity.
func (r *RingBuffer) Cap() int { return len(r.buf) }

// Stats counts buffered events by kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[EventKind]int)
	for i := 0; i < r.count; i++ {
		counts[r.at(i).Kind]++
	}
	return counts
}
