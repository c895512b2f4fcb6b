package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/moodlog/internal/otel"
)

// debugPanelChrome is the border plus vertical padding of DebugPanel.
const debugPanelChrome = 4

const debugRecent = 20

// debugRow is one counter line of the overlay: each kind fills the
// matching verb in format.
type debugRow struct {
	label  string
	format string
	kinds  []otel.EventKind
}

var debugRows = []debugRow{
	{"Analytics", "%d started, %d complete, %d skipped",
		[]otel.EventKind{otel.KindRefreshStart, otel.KindRefreshComplete, otel.KindRefreshSkip}},
	{"Fallbacks", "%d local, %d fetch errors, %d panel errors",
		[]otel.EventKind{otel.KindFallbackLocal, otel.KindFetchError, otel.KindPanelError}},
	{"Tiles", "%d rendered, %d skipped, %d retries, %d errors",
		[]otel.EventKind{otel.KindTilesRender, otel.KindTilesSkip, otel.KindTilesRetry, otel.KindTilesError}},
	{"Push", "%d connects, %d events, %d errors, %d reconnects",
		[]otel.EventKind{otel.KindPushConnect, otel.KindPushEvent, otel.KindPushError, otel.KindPushReconnect}},
	{"Entries", "%d created, %d deleted, %d errors",
		[]otel.EventKind{otel.KindEntryCreate, otel.KindEntryDelete, otel.KindEntryError}},
	{"Guard", "%d restores", []otel.EventKind{otel.KindGuardRestore}},
}

func notTrace(e otel.Event) bool { return e.Kind != otel.KindMsgReceived }

// debugOverlay renders event counters and the newest events from ring.
// It returns "" without a ring.
func debugOverlay(ring *otel.RingBuffer, width, height int, now time.Time) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	lines := []string{DebugHeaderStyle.Render("Refresh Stats")}
	for _, row := range debugRows {
		args := make([]any, len(row.kinds))
		for i, k := range row.kinds {
			args[i] = stats[k]
		}
		lines = append(lines, fmt.Sprintf("  %-11s %s", row.label+":", fmt.Sprintf(row.format, args...)))
	}
	lines = append(lines,
		fmt.Sprintf("  %-11s %d / %d events", "Buffer:", ring.Len(), ring.Cap()),
		"",
		DebugHeaderStyle.Render("Recent Events"),
	)
	for _, e := range ring.Recent(debugRecent, notTrace) {
		lines = append(lines, debugEventLine(e, now))
	}

	if limit := max(height-debugPanelChrome, 1); len(lines) > limit {
		lines = lines[:limit]
	}
	return DebugPanel.Width(max(min(76, width-4), 20)).Render(strings.Join(lines, "\n"))
}

func debugEventLine(e otel.Event, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %6s  %-16s", formatAge(now.Sub(e.Time)), e.Kind)
	if e.Msg != "" {
		b.WriteString("  " + truncateRunes(e.Msg, 40))
	}
	if e.Panel != "" {
		b.WriteString("  panel:" + e.Panel)
	}
	if e.Err != "" {
		b.WriteString("  ERR:" + truncateRunes(e.Err, 30))
	}
	return b.String()
}

// formatAge renders an event age compactly. Clock skew can make d
// negative; that reads as "0ms".
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
