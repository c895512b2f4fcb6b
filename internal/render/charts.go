package render

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/moodlog/internal/journal"
)

// Sentiment palette, shared by every chart and tile.
var (
	ColorPositive = lipgloss.Color("#10b981")
	ColorNeutral  = lipgloss.Color("#f59e0b")
	ColorNegative = lipgloss.Color("#ef4444")
	colorMuted    = lipgloss.Color("240")
	colorAxis     = lipgloss.Color("241")
)

// ColorFor returns the palette colour for s.
func ColorFor(s journal.Sentiment) lipgloss.Color {
	switch s {
	case journal.Positive:
		return ColorPositive
	case journal.Negative:
		return ColorNegative
	default:
		return ColorNeutral
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	axisStyle  = lipgloss.NewStyle().Foreground(colorAxis)
)

const minChartWidth = 12

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

type lineChart struct {
	s        LineSeries
	disposed atomic.Bool
}

func newLineChart(s LineSeries) *lineChart {
	if s.Max <= s.Min {
		s.Min, s.Max = 0, 10
	}
	return &lineChart{s: s}
}

func (c *lineChart) Dispose() { c.disposed.Store(true) }

func (c *lineChart) View(width int) string {
	if c.disposed.Load() {
		return ""
	}
	width = max(width, minChartWidth)

	vals := c.s.Values
	labels := c.s.Labels
	if len(vals) > width {
		vals = vals[len(vals)-width:]
		if len(labels) > width {
			labels = labels[len(labels)-width:]
		}
	}

	var b strings.Builder
	if c.s.Title != "" {
		b.WriteString(titleStyle.Render(c.s.Title))
		b.WriteByte('\n')
	}
	if len(vals) == 0 {
		b.WriteString(mutedStyle.Render("No data"))
		return b.String()
	}

	spark := make([]rune, len(vals))
	for i, v := range vals {
		spark[i] = sparkLevels[c.level(v)]
	}
	last := vals[len(vals)-1]
	b.WriteString(lipgloss.NewStyle().Foreground(moodColor(last, c.s.Min, c.s.Max)).Render(string(spark)))
	b.WriteString(axisStyle.Render(fmt.Sprintf(" %g", last)))

	if len(labels) > 0 {
		first, end := labels[0], labels[len(labels)-1]
		gap := len(vals) - lipgloss.Width(first) - lipgloss.Width(end)
		b.WriteByte('\n')
		if gap > 0 {
			b.WriteString(axisStyle.Render(first + strings.Repeat(" ", gap) + end))
		} else {
			b.WriteString(axisStyle.Render(first + " " + end))
		}
	}
	return b.String()
}

func (c *lineChart) level(v float64) int {
	frac := (v - c.s.Min) / (c.s.Max - c.s.Min)
	n := int(math.Round(frac * float64(len(sparkLevels)-1)))
	return min(max(n, 0), len(sparkLevels)-1)
}

// moodColor maps a value on [lo,hi] to the palette using the 0.6/0.4
// display bands.
func moodColor(v, lo, hi float64) lipgloss.Color {
	frac := (v - lo) / (hi - lo)
	switch {
	case frac >= 0.6:
		return ColorPositive
	case frac <= 0.4:
		return ColorNegative
	default:
		return ColorNeutral
	}
}

// doughnutChart is the sentiment distribution, drawn as one stacked bar
// with a legend.
type doughnutChart struct {
	counts   journal.OverviewCounts
	disposed atomic.Bool
}

func newDoughnutChart(counts journal.OverviewCounts) *doughnutChart {
	return &doughnutChart{counts: counts}
}

func (c *doughnutChart) Dispose() { c.disposed.Store(true) }

func (c *doughnutChart) View(width int) string {
	if c.disposed.Load() {
		return ""
	}
	width = max(width, minChartWidth)
	total := c.counts.Total()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Sentiment"))
	b.WriteByte('\n')
	if total == 0 {
		b.WriteString(mutedStyle.Render("No entries yet"))
		return b.String()
	}

	for i, w := range segmentWidths(c.counts, width) {
		s := journal.Order[i]
		b.WriteString(lipgloss.NewStyle().Foreground(ColorFor(s)).Render(strings.Repeat("█", w)))
	}
	for _, s := range journal.Order {
		n := c.counts.Get(s)
		b.WriteByte('\n')
		dot := lipgloss.NewStyle().Foreground(ColorFor(s)).Render("●")
		fmt.Fprintf(&b, "%s %-8s %3d %3d%%", dot, s.Title(), n, Pct(n, total))
	}
	return b.String()
}

// segmentWidths splits width across the three labels by largest remainder,
// so the segments always fill the bar exactly.
func segmentWidths(counts journal.OverviewCounts, width int) [3]int {
	var out [3]int
	total := counts.Total()
	if total == 0 {
		return out
	}
	rem := [3]float64{}
	used := 0
	for i, s := range journal.Order {
		exact := float64(counts.Get(s)) / float64(total) * float64(width)
		out[i] = int(exact)
		rem[i] = exact - float64(out[i])
		used += out[i]
	}
	for used < width {
		best := -1
		for i := range rem {
			if counts.Get(journal.Order[i]) == 0 {
				continue
			}
			if best < 0 || rem[i] > rem[best] {
				best = i
			}
		}
		out[best]++
		rem[best] = -1
		used++
	}
	return out
}

type barChart struct {
	s        BarSeries
	bar      progress.Model
	disposed atomic.Bool
}

func newBarChart(s BarSeries) *barChart {
	if s.Max <= 0 {
		s.Max = 10
	}
	return &barChart{
		s: s,
		bar: progress.New(
			progress.WithSolidFill(string(ColorNeutral)),
			progress.WithoutPercentage(),
		),
	}
}

func (c *barChart) Dispose() { c.disposed.Store(true) }

func (c *barChart) View(width int) string {
	if c.disposed.Load() {
		return ""
	}
	width = max(width, minChartWidth)

	labelW := 0
	for _, l := range c.s.Labels {
		labelW = max(labelW, lipgloss.Width(l))
	}
	// label, space, bar, space, "10.0"
	c.bar.Width = max(width-labelW-6, 4)

	var b strings.Builder
	if c.s.Title != "" {
		b.WriteString(titleStyle.Render(c.s.Title))
	}
	for i, l := range c.s.Labels {
		v := 0.0
		if i < len(c.s.Values) {
			v = c.s.Values[i]
		}
		frac := math.Min(math.Max(v/c.s.Max, 0), 1)
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-*s %s %4.1f", labelW, l, c.bar.ViewAs(frac), v)
	}
	if c.s.Note != "" {
		b.WriteByte('\n')
		b.WriteString(mutedStyle.Render("(" + c.s.Note + ")"))
	}
	return b.String()
}
