package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/tiles"
)

// TileStyle is the badge look for one sentiment.
type TileStyle struct {
	Emoji string
	Bg    lipgloss.Color
	Fg    lipgloss.Color
}

var (
	tileStyles = map[journal.Sentiment]TileStyle{
		journal.Positive: {Emoji: "😊", Bg: "#d1fae5", Fg: "#065f46"},
		journal.Negative: {Emoji: "😔", Bg: "#fee2e2", Fg: "#991b1b"},
		journal.Neutral:  {Emoji: "😐", Bg: "#fef3c7", Fg: "#92400e"},
	}
	placeholderStyle = TileStyle{Emoji: "😐", Bg: "#e5e7eb", Fg: "#374151"}

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

// StyleFor returns the tile style for s.
func StyleFor(s journal.Sentiment) TileStyle {
	if st, ok := tileStyles[s]; ok {
		return st
	}
	return tileStyles[journal.Neutral]
}

// Emoji returns the face shown next to a sentiment.
func Emoji(s journal.Sentiment) string { return StyleFor(s).Emoji }

// TileCard draws one tile. An empty tile is the explicit placeholder,
// never a zero-value bar.
func TileCard(t tiles.Tile, width int) string {
	st := placeholderStyle
	subtitle := tiles.Placeholder
	badge := "—"
	if !t.Empty() {
		st = StyleFor(t.Summary.Dominant)
		subtitle = t.Summary.Dominant.Title() + " Sentiment"
		badge = fmt.Sprintf("%d%% %s", ClampPct(t.Summary.SelectedPct), t.Summary.Dominant.Title())
	}

	badgeStyle := lipgloss.NewStyle().Background(st.Bg).Foreground(st.Fg).Padding(0, 1)
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(t.Label),
		st.Emoji+" "+subtitle,
		badgeStyle.Render(badge),
	)
	style := cardStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(body)
}

// TileRow draws the three tiles side by side, splitting width evenly.
func TileRow(t [3]tiles.Tile, width int) string {
	// Border plus padding on each card.
	cardW := 0
	if width > 0 {
		cardW = max(width/3-4, 14)
	}
	cards := make([]string, len(t))
	for i, tile := range t {
		cards[i] = TileCard(tile, cardW)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}
