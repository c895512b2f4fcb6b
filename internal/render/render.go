// Package render draws moodlog's charts and tiles as terminal strings.
//
// A Board owns one chart per registered mount point. Rendering to a mount
// disposes whatever chart was bound to it first; rendering to a mount the
// board does not know is a silent no-op.
package render

import (
	"math"
	"sync"

	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/tiles"
)

// Mount names a place on the dashboard a chart can be drawn into.
type Mount string

const (
	MountMood      Mount = "mood-chart"
	MountSentiment Mount = "sentiment-chart"
	MountStress    Mount = "stress-chart"
	MountActivity  Mount = "activity-chart"
	MountSleep     Mount = "sleep-chart"
)

// DashboardMounts are the mounts the dashboard lays out.
var DashboardMounts = []Mount{MountMood, MountSentiment, MountStress, MountActivity, MountSleep}

// LineSeries is a single line chart, e.g. mood over 30 days.
type LineSeries struct {
	Title  string
	Labels []string
	Values []float64
	Min    float64
	Max    float64
}

// BarSeries is a labelled bar chart.
type BarSeries struct {
	Title  string
	Labels []string
	Values []float64
	Max    float64
	Note   string // shown under the bars, e.g. "heuristic"
}

// Renderer is what the refresh pipeline draws through.
type Renderer interface {
	RenderLine(m Mount, s LineSeries)
	RenderDoughnut(m Mount, counts journal.OverviewCounts)
	RenderBar(m Mount, s BarSeries)
}

// Chart is one drawn chart instance.
type Chart interface {
	View(width int) string
	Dispose()
}

// Board is the terminal Renderer. Safe for concurrent use: the pipeline
// renders from its own goroutines while the UI reads views. A chart
// fetched by View may be disposed while it draws; it then draws "".
type Board struct {
	mu       sync.Mutex
	mounts   map[Mount]bool
	charts   map[Mount]Chart
	renders  map[Mount]int
	disposed map[Mount]int

	tiles    [3]tiles.Tile
	hasTiles bool
	tileRuns int
}

// NewBoard creates a board with the given mounts registered.
func NewBoard(mounts ...Mount) *Board {
	b := &Board{
		mounts:   make(map[Mount]bool, len(mounts)),
		charts:   make(map[Mount]Chart),
		renders:  make(map[Mount]int),
		disposed: make(map[Mount]int),
	}
	for _, m := range mounts {
		b.mounts[m] = true
	}
	return b
}

// RenderLine implements Renderer.
func (b *Board) RenderLine(m Mount, s LineSeries) {
	b.bind(m, func() Chart { return newLineChart(s) })
}

// RenderDoughnut implements Renderer.
func (b *Board) RenderDoughnut(m Mount, counts journal.OverviewCounts) {
	b.bind(m, func() Chart { return newDoughnutChart(counts) })
}

// RenderBar implements Renderer.
func (b *Board) RenderBar(m Mount, s BarSeries) {
	b.bind(m, func() Chart { return newBarChart(s) })
}

func (b *Board) bind(m Mount, build func() Chart) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.mounts[m] {
		return
	}
	if old := b.charts[m]; old != nil {
		old.Dispose()
		b.disposed[m]++
	}
	b.charts[m] = build()
	b.renders[m]++
}

// RenderTiles implements tiles.Sink.
func (b *Board) RenderTiles(t [3]tiles.Tile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tiles = t
	b.hasTiles = true
	b.tileRuns++
}

// Tiles returns the last rendered tiles. ok is false before the first render.
func (b *Board) Tiles() (t [3]tiles.Tile, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tiles, b.hasTiles
}

// TileRenders returns how many times the tiles were rendered.
func (b *Board) TileRenders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tileRuns
}

// View draws the chart bound to m, or "" when there is none.
func (b *Board) View(m Mount, width int) string {
	b.mu.Lock()
	c := b.charts[m]
	b.mu.Unlock()
	if c == nil {
		return ""
	}
	return c.View(width)
}

// Renders returns how many charts have been bound to m.
func (b *Board) Renders(m Mount) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders[m]
}

// Disposed returns how many charts bound to m were disposed.
func (b *Board) Disposed(m Mount) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed[m]
}

// ClampPct clamps v to [0,100].
func ClampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Pct returns round(part/total*100), clamped. Zero total is 0%.
func Pct(part, total int) int {
	if total <= 0 {
		return 0
	}
	return ClampPct(int(math.Round(float64(part) / float64(total) * 100)))
}
