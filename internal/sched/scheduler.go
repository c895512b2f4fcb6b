package sched

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs named, cancellable timers on a Clock.
//
// Registering a name that is already scheduled replaces the old timer.
// Callbacks run on their own goroutine, for the real and the fake clock
// alike. Every and Daily re-arm before running fn.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	jobs    map[string]*job
	gen     uint64
	stopped bool
	onFire  func(name string)
}

type job struct {
	timer Timer
	gen   uint64
}

// New creates a Scheduler. A nil clock means the wall clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = Real()
	}
	return &Scheduler{clock: clock, jobs: make(map[string]*job)}
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock { return s.clock }

// OnFire registers a hook called with the job name before every run.
func (s *Scheduler) OnFire(fn func(name string)) {
	s.mu.Lock()
	s.onFire = fn
	s.mu.Unlock()
}

// At runs fn once after d.
func (s *Scheduler) At(name string, d time.Duration, fn func()) {
	s.arm(name, d, func(gen uint64) {
		if s.finish(name, gen) {
			s.fire(name, fn)
		}
	})
}

// Every runs fn every interval, first after one interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	var tick func(gen uint64)
	tick = func(gen uint64) {
		if !s.current(name, gen) {
			return
		}
		s.arm(name, interval, tick)
		s.fire(name, fn)
	}
	s.arm(name, interval, tick)
}

// Daily runs fn at offset past every local midnight. The next run is
// recomputed from the calendar each time so DST shifts do not drift it.
func (s *Scheduler) Daily(name string, offset time.Duration, fn func()) {
	var tick func(gen uint64)
	tick = func(gen uint64) {
		if !s.current(name, gen) {
			return
		}
		s.arm(name, untilDaily(s.clock.Now(), offset), tick)
		s.fire(name, fn)
	}
	s.arm(name, untilDaily(s.clock.Now(), offset), tick)
}

// untilDaily returns the delay to the next local midnight plus offset.
// Never less than a second, so a run right at the boundary cannot loop.
func untilDaily(now time.Time, offset time.Duration) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(offset)
	if !next.After(now) {
		next = time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(offset)
	}
	if delay := next.Sub(now); delay > time.Second {
		return delay
	}
	return time.Second
}

// Cancel stops the named timer. Returns false if nothing was scheduled.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(s.jobs, name)
	return true
}

// Stop cancels everything. Later registrations are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for name, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, name)
	}
}

// Pending returns the names of scheduled timers, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) arm(name string, d time.Duration, run func(gen uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.jobs[name]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	j := &job{gen: gen}
	s.jobs[name] = j
	j.timer = s.clock.AfterFunc(d, func() { run(gen) })
}

// current reports whether gen is still the live registration for name.
func (s *Scheduler) current(name string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	return ok && j.gen == gen && !s.stopped
}

// finish removes a one-shot job if gen is still live.
func (s *Scheduler) finish(name string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok || j.gen != gen || s.stopped {
		return false
	}
	delete(s.jobs, name)
	return true
}

func (s *Scheduler) fire(name string, fn func()) {
	s.mu.Lock()
	hook := s.onFire
	s.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	fn()
}
