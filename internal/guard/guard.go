// Package guard keeps the analysis and insights panels from going blank.
//
// Once a result has been shown, any later change that leaves a panel empty
// or back on its placeholder is undone. Checks run on every change and on a
// periodic tick.
package guard

import (
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/metrics"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/sched"
)

// Panel names one guarded panel.
type Panel string

const (
	Analysis Panel = "analysis"
	Insights Panel = "insights"
)

// All lists the guarded panels in display order.
var All = []Panel{Analysis, Insights}

// Placeholder text each panel starts with.
var Placeholder = map[Panel]string{
	Analysis: "Ready to Analyze\nWrite an entry and press ctrl+s to see its sentiment.",
	Insights: "AI insights will appear here",
}

var placeholderRe = regexp.MustCompile(`Ready to Analyze|AI insights will appear here`)

// Interval is the reconciliation tick.
const Interval = 150 * time.Millisecond

// IsBlank reports whether content is empty or a placeholder.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == "" || placeholderRe.MatchString(content)
}

// Panels is the shared content of the guarded panels. Set notifies every
// observer after the content is stored.
type Panels struct {
	mu        sync.Mutex
	content   map[Panel]string
	observers []func(Panel)
}

// NewPanels returns panels showing their placeholders.
func NewPanels() *Panels {
	p := &Panels{content: make(map[Panel]string, len(All))}
	for _, name := range All {
		p.content[name] = Placeholder[name]
	}
	return p
}

// Get returns a panel's content.
func (p *Panels) Get(name Panel) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content[name]
}

// Set replaces a panel's content.
func (p *Panels) Set(name Panel, content string) {
	p.mu.Lock()
	p.content[name] = content
	obs := slices.Clone(p.observers)
	p.mu.Unlock()

	for _, fn := range obs {
		fn(name)
	}
}

// Reset puts a panel back on its placeholder.
func (p *Panels) Reset(name Panel) { p.Set(name, Placeholder[name]) }

// Observe registers fn to run after every Set.
func (p *Panels) Observe(fn func(Panel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Guard restores the last shown content.
type Guard struct {
	panels *Panels

	mu   sync.Mutex
	last map[Panel]string

	restores atomic.Int64

	Events  *otel.Logger
	Metrics *metrics.Metrics
}

// New creates a Guard watching panels.
func New(panels *Panels) *Guard {
	g := &Guard{panels: panels, last: make(map[Panel]string)}
	panels.Observe(g.check)
	return g
}

// Show displays content on a panel and remembers it as the last good
// content. Blank content is displayed but not remembered.
func (g *Guard) Show(name Panel, content string) {
	if !IsBlank(content) {
		g.mu.Lock()
		g.last[name] = content
		g.mu.Unlock()
	}
	g.panels.Set(name, content)
}

// Check reconciles every panel and returns how many were restored.
func (g *Guard) Check() int {
	n := 0
	for _, name := range All {
		if g.restore(name) {
			n++
		}
	}
	return n
}

// Restores returns the total number of restores.
func (g *Guard) Restores() int64 { return g.restores.Load() }

// Start runs Check every Interval on s until the job is cancelled.
// restored, if set, is called from the timer goroutine after a tick that
// restored anything.
func (g *Guard) Start(s *sched.Scheduler, restored func()) {
	s.Every("guard", Interval, func() {
		if g.Check() > 0 && restored != nil {
			restored()
		}
	})
}

func (g *Guard) check(name Panel) { g.restore(name) }

func (g *Guard) restore(name Panel) bool {
	g.mu.Lock()
	last, ok := g.last[name]
	g.mu.Unlock()
	if !ok || !IsBlank(g.panels.Get(name)) {
		return false
	}

	// Set re-enters check, which finds the panel filled and stops.
	g.panels.Set(name, last)
	g.restores.Add(1)
	logging.Debug("Guard: restored panel", "panel", name)
	g.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindGuardRestore, Comp: "guard", Panel: string(name)})
	g.Metrics.RecordRestore(string(name))
	return true
}
