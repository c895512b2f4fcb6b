package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/moodlog/internal/guard"
	"github.com/abelbrown/moodlog/internal/render"
)

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	now := a.cfg.Now()

	if a.debugMode {
		overlay := debugOverlay(a.cfg.Ring, a.width, a.height-1, now)
		return overlay + "\n" + debugStatusBar(a.width)
	}

	top := []string{a.header()}
	if t, ok := a.cfg.Board.Tiles(); ok {
		top = append(top, render.TileRow(t, a.width))
	} else {
		top = append(top, HelpStyle.Render(a.spinner.View()+" Loading recent analysis…"))
	}
	top = append(top, a.charts(), a.panels(), a.composerView())
	upper := lipgloss.JoinVertical(lipgloss.Left, top...)

	errorBar := ""
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)") + "\n"
	}

	activity := ""
	switch {
	case a.submitting:
		activity = a.spinner.View() + " saving"
	case a.loading:
		activity = a.spinner.View() + " loading"
	case a.refreshing:
		activity = a.spinner.View() + " refreshing"
	}
	statusBar := RenderStatusBar(a.cursor, len(a.entries), a.width, activity, a.lastRefresh, now)

	// Whatever height is left goes to the entry list.
	listHeight := a.height - lipgloss.Height(upper) - lipgloss.Height(statusBar) - strings.Count(errorBar, "\n")
	list := ""
	if listHeight > 0 {
		list = RenderEntries(a.entries, a.cursor, a.width, listHeight, now)
	}

	return upper + "\n" + list + "\n" + errorBar + statusBar
}

func (a App) header() string {
	title := TitleStyle.Render("moodlog")
	if a.cfg.User != "" {
		title += SubtleText.Render(a.cfg.User)
	}
	if a.cached {
		title += " " + SubtleText.Render("(offline, showing cached entries)")
	}
	return title
}

// charts lays out the mood trend and sentiment doughnut side by side, then
// the three derived panels.
func (a App) charts() string {
	half := max(a.width/2-2, 12)
	b := a.cfg.Board

	left := chartBlock("Mood trend", b.View(render.MountMood, half))
	right := chartBlock("Sentiment", b.View(render.MountSentiment, half))
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(half+2).Render(left),
		right,
	)

	third := max(a.width/3-2, 12)
	bars := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(third+2).Render(b.View(render.MountStress, third)),
		lipgloss.NewStyle().Width(third+2).Render(b.View(render.MountActivity, third)),
		b.View(render.MountSleep, third),
	)
	return lipgloss.JoinVertical(lipgloss.Left, row, bars)
}

func chartBlock(title, body string) string {
	if body == "" {
		body = SubtleText.Render("…")
	}
	return PanelTitle.Render(title) + "\n" + body
}

// panels draws the analysis and insights panels from their shared content.
func (a App) panels() string {
	w := max(a.width/2-4, 20)
	analysis := PanelStyle.Width(w).Render(
		PanelTitle.Render("AI Analysis") + "\n" + a.cfg.Panels.Get(guard.Analysis))
	insights := PanelStyle.Width(w).Render(
		PanelTitle.Render("AI Insights") + "\n" + a.cfg.Panels.Get(guard.Insights))
	return lipgloss.JoinHorizontal(lipgloss.Top, analysis, insights)
}

func (a App) composerView() string {
	style := ComposerStyle
	if a.composer.Focused() {
		style = ComposerFocused
	}
	box := style.Render(a.composer.View())
	if a.status == "" {
		return box
	}
	st := StatusOK
	if a.statusErr {
		st = StatusErr
	}
	return box + "\n" + st.Render(a.status)
}
