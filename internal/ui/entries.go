package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/render"
)

// DayBand returns the day label an entry is grouped under.
func DayBand(ts, now time.Time) string {
	if ts.IsZero() {
		return "Undated"
	}
	switch analytics.DaysBetween(ts, now) {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return ts.Format("Mon Jan 2")
	}
}

// RenderEntries renders the entry list grouped by day, keeping the cursor
// visible within height lines.
func RenderEntries(entries []journal.Entry, cursor, width, height int, now time.Time) string {
	if len(entries) == 0 {
		return HelpStyle.Render("No entries yet. Press 'i' to write one.")
	}
	if height < 1 {
		height = 1
	}

	var b strings.Builder
	currentBand := ""
	rendered := 0
	offset := calcScrollOffset(entries, cursor, height, now)

	for i, e := range entries {
		if rendered >= height {
			break
		}

		// Track bands for skipped entries too so the first visible header
		// is right.
		band := DayBand(e.Timestamp, now)
		if band != currentBand {
			currentBand = band
			if i >= offset {
				b.WriteString(DayHeader.Render(band))
				b.WriteString("\n")
				rendered++
			}
		}
		if i < offset || rendered >= height {
			continue
		}

		b.WriteString(renderEntryLine(e, i == cursor, width, now))
		b.WriteString("\n")
		rendered++
	}
	return strings.TrimRight(b.String(), "\n")
}

// calcScrollOffset finds the smallest entry index such that every line from
// it through the cursor, day headers included, fits in height.
func calcScrollOffset(entries []journal.Entry, cursor, height int, now time.Time) int {
	if len(entries) == 0 || cursor < 0 {
		return 0
	}
	if cursor >= len(entries) {
		cursor = len(entries) - 1
	}

	offset := 0
	if cursor >= height {
		offset = cursor - height + 1
	}
	for offset <= cursor {
		if visibleLineCount(entries, offset, cursor, now) <= height {
			return offset
		}
		offset++
	}
	return cursor
}

func visibleLineCount(entries []journal.Entry, from, to int, now time.Time) int {
	lines := 0
	currentBand := ""
	if from > 0 {
		currentBand = DayBand(entries[from-1].Timestamp, now)
	}
	for i := from; i <= to && i < len(entries); i++ {
		if band := DayBand(entries[i].Timestamp, now); band != currentBand {
			currentBand = band
			lines++
		}
		lines++
	}
	return lines
}

func renderEntryLine(e journal.Entry, selected bool, width int, now time.Time) string {
	badge := lipgloss.NewStyle().
		Foreground(render.ColorFor(e.Sentiment)).
		Render(render.Emoji(e.Sentiment))

	age := formatAgeShort(e.Timestamp, now)
	text := strings.Join(strings.Fields(e.Text), " ")

	// badge + spaces + age + item padding
	avail := width - lipgloss.Width(badge) - len(age) - 6
	if avail < 10 {
		avail = 10
	}
	text = truncateRunes(text, avail)
	gap := avail - lipgloss.Width(text)
	if gap < 0 {
		gap = 0
	}
	line := badge + " " + text + strings.Repeat(" ", gap) + "  " + age

	if selected {
		return SelectedItem.Render(line)
	}
	return NormalItem.Render(line)
}

func formatAgeShort(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	age := now.Sub(ts)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// truncateRunes shortens s to at most max runes, ending in "…" when cut.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// RenderStatusBar renders the bottom status bar: position or activity on
// the left, last refresh and key hints on the right.
func RenderStatusBar(cursor, total, width int, activity string, lastRefresh, now time.Time) string {
	var left string
	switch {
	case activity != "":
		left = " " + activity + " "
	case total == 0:
		left = " 0 entries "
	default:
		left = fmt.Sprintf(" %d/%d ", cursor+1, total)
	}
	if !lastRefresh.IsZero() {
		left += SubtleText.Render("updated " + humanize.RelTime(lastRefresh, now, "ago", "from now"))
	}

	keys := []string{
		StatusBarKey.Render("i") + StatusBarText.Render(":write"),
		StatusBarKey.Render("ctrl+s") + StatusBarText.Render(":save"),
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("d") + StatusBarText.Render(":delete"),
		StatusBarKey.Render("r") + StatusBarText.Render(":refresh"),
		StatusBarKey.Render("D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	hints := strings.Join(keys, " ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(hints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}
