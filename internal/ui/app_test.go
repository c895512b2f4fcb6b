package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/guard"
	"github.com/abelbrown/moodlog/internal/insight"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/refresh/pipeline"
	"github.com/abelbrown/moodlog/internal/render"
	"github.com/abelbrown/moodlog/internal/tiles"
)

var appNow = time.Date(2024, 3, 10, 14, 0, 0, 0, time.Local)

// mockCmd tracks which command functions were called.
type mockCmd struct {
	loads     int
	submits   []string
	deletes   []string
	refreshes int
}

func (m *mockCmd) loadEntries() tea.Cmd {
	m.loads++
	return func() tea.Msg {
		return EntriesLoaded{Entries: testEntries()}
	}
}

func (m *mockCmd) submit(text string) tea.Cmd {
	m.submits = append(m.submits, text)
	return func() tea.Msg { return nil }
}

func (m *mockCmd) delete(id string) tea.Cmd {
	m.deletes = append(m.deletes, id)
	return func() tea.Msg { return EntryDeleted{ID: id} }
}

func (m *mockCmd) refresh() tea.Cmd {
	m.refreshes++
	return func() tea.Msg { return nil }
}

func testEntries() []journal.Entry {
	return []journal.Entry{
		{ID: "3", Text: "Great run this morning", Sentiment: journal.Positive, Timestamp: appNow.Add(-time.Hour)},
		{ID: "2", Text: "Tired and stressed", Sentiment: journal.Negative, Timestamp: appNow.Add(-26 * time.Hour)},
		{ID: "1", Text: "Ordinary day", Sentiment: journal.Neutral, Timestamp: appNow.Add(-50 * time.Hour)},
	}
}

func newTestApp(m *mockCmd, g bool) App {
	panels := guard.NewPanels()
	cfg := AppConfig{
		LoadEntries: m.loadEntries,
		Submit:      m.submit,
		Delete:      m.delete,
		Refresh:     m.refresh,
		Panels:      panels,
		Now:         func() time.Time { return appNow },
	}
	if g {
		cfg.Guard = guard.New(panels)
	}
	app := NewApp(cfg)
	app.composer.Blur()
	app.ready = true
	app.width = 100
	app.height = 60
	return app
}

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := a.Update(msg)
	return model.(App), cmd
}

func TestAppInit(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)

	cmd := app.Init()
	if cmd == nil {
		t.Fatal("Init should return a command")
	}
	if mock.loads != 1 {
		t.Errorf("Init should call LoadEntries once, got %d", mock.loads)
	}

	app, _ = update(t, app, cmd())
	if got := len(app.Entries()); got != 3 {
		t.Errorf("entries = %d, want 3", got)
	}
}

func TestAppInitNilLoadEntries(t *testing.T) {
	app := NewApp(AppConfig{})
	if cmd := app.Init(); cmd != nil {
		t.Error("Init should return nil when LoadEntries is nil")
	}
}

func TestSubmitEmptyText(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)
	app.composer.SetValue("   \n ")

	app, cmd := update(t, app, key("ctrl+s"))
	if cmd != nil {
		t.Error("empty submit should not return a command")
	}
	if len(mock.submits) != 0 {
		t.Errorf("Submit called %d times, want 0", len(mock.submits))
	}
	if app.Status() != StatusEmpty {
		t.Errorf("status = %q, want %q", app.Status(), StatusEmpty)
	}
}

func TestSubmitIgnoredWhileInFlight(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)
	app.composer.SetValue("  Feeling calm after yoga  ")

	app, cmd := update(t, app, key("ctrl+s"))
	if cmd == nil {
		t.Fatal("submit should return a command")
	}
	if len(mock.submits) != 1 || mock.submits[0] != "Feeling calm after yoga" {
		t.Fatalf("submits = %q, want the trimmed text once", mock.submits)
	}
	if app.Status() != StatusSubmitting {
		t.Errorf("status = %q, want %q", app.Status(), StatusSubmitting)
	}
	if got := app.cfg.Panels.Get(guard.Analysis); got != analyzingText {
		t.Errorf("analysis panel = %q, want %q", got, analyzingText)
	}
	if got := app.cfg.Panels.Get(guard.Insights); got != generatingText {
		t.Errorf("insights panel = %q, want %q", got, generatingText)
	}

	app, _ = update(t, app, key("ctrl+s"))
	if len(mock.submits) != 1 {
		t.Errorf("second submit while in flight should be ignored, got %d calls", len(mock.submits))
	}
}

func TestEntrySubmittedSuccess(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})
	app.composer.SetValue("Proud of today")
	app, _ = update(t, app, key("ctrl+s"))

	score := 0.91
	created := &journal.Entry{ID: "4", Text: "Proud of today", Sentiment: journal.Positive, Score: &score, Timestamp: appNow}
	app, cmd := update(t, app, EntrySubmitted{Entry: created, Analysis: insight.FromEntry(*created)})

	if app.Status() != StatusAnalyzed {
		t.Errorf("status = %q, want %q", app.Status(), StatusAnalyzed)
	}
	entries := app.Entries()
	if len(entries) != 4 || entries[0].ID != "4" {
		t.Fatalf("created entry should be prepended, got %d entries, first %q", len(entries), entries[0].ID)
	}

	analysis := app.cfg.Panels.Get(guard.Analysis)
	for _, want := range []string{"😊", "POSITIVE Sentiment", "Confidence: 91%", "Real-time BERT Analysis"} {
		if !strings.Contains(analysis, want) {
			t.Errorf("analysis panel missing %q:\n%s", want, analysis)
		}
	}
	if insights := app.cfg.Panels.Get(guard.Insights); !strings.Contains(insights, "• Great job!") {
		t.Errorf("insights panel = %q, want the positive suggestions", insights)
	}

	if cmd == nil || mock.refreshes != 1 {
		t.Errorf("success should force a refresh, refreshes = %d", mock.refreshes)
	}
	if app.composer.Value() != "Proud of today" {
		t.Errorf("composer should keep the text, got %q", app.composer.Value())
	}
}

func TestEntrySubmittedNeutralShowsFifty(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)
	score := 0.03
	created := &journal.Entry{ID: "5", Sentiment: journal.Neutral, Score: &score}

	app, _ = update(t, app, EntrySubmitted{Entry: created, Analysis: insight.FromEntry(*created)})

	if analysis := app.cfg.Panels.Get(guard.Analysis); !strings.Contains(analysis, "Confidence: 50%") {
		t.Errorf("neutral result should show 50%%:\n%s", analysis)
	}
}

func TestEntrySubmittedFailureShowsLocalEstimate(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})

	app, cmd := update(t, app, EntrySubmitted{
		Err:      errors.New("connection refused"),
		Analysis: insight.LocalAnalyze("sad and anxious"),
	})

	want := "Saved offline: connection refused. Showing local AI estimate."
	if app.Status() != want {
		t.Errorf("status = %q, want %q", app.Status(), want)
	}
	analysis := app.cfg.Panels.Get(guard.Analysis)
	for _, s := range []string{"NEGATIVE Sentiment (Local)", "Confidence: 25%", "Offline Heuristic Analysis"} {
		if !strings.Contains(analysis, s) {
			t.Errorf("analysis panel missing %q:\n%s", s, analysis)
		}
	}
	if len(app.Entries()) != 3 {
		t.Errorf("failed submit should not add an entry, got %d", len(app.Entries()))
	}
	if cmd != nil || mock.refreshes != 0 {
		t.Error("failed submit should not refresh")
	}
}

func TestAnalyticsRefreshReplacesOptimisticEntries(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)
	app, _ = update(t, app, EntrySubmitted{Entry: &journal.Entry{ID: "tmp"}, Analysis: insight.Analysis{Sentiment: journal.Neutral}})
	if len(app.Entries()) != 1 {
		t.Fatalf("entries = %d, want 1", len(app.Entries()))
	}

	app, _ = update(t, app, AnalyticsRefreshed{Result: &pipeline.Result{
		Entries:       testEntries(),
		EntriesSource: pipeline.SourceBackend,
	}})

	entries := app.Entries()
	if len(entries) != 3 || entries[0].ID != "3" {
		t.Errorf("refetch should replace the list, got %d entries", len(entries))
	}
	if app.lastRefresh != appNow {
		t.Errorf("lastRefresh = %v, want %v", app.lastRefresh, appNow)
	}
}

func TestBusyRefreshClearsIndicatorOnly(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})
	app, _ = update(t, app, PushReceived{})
	if !app.refreshing {
		t.Fatal("push should mark a refresh in progress")
	}

	app, _ = update(t, app, AnalyticsRefreshed{Err: pipeline.ErrBusy})
	if app.refreshing {
		t.Error("busy result should clear the indicator")
	}
	if app.err != nil || !app.lastRefresh.IsZero() {
		t.Errorf("busy result should change nothing else: err=%v lastRefresh=%v", app.err, app.lastRefresh)
	}
}

func TestErrorShownOnlyBeforeFirstLoad(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)

	app, _ = update(t, app, EntriesLoaded{Err: errors.New("backend down")})
	if app.err == nil {
		t.Fatal("error before any data should be shown")
	}
	if !strings.Contains(app.View(), "Error: backend down") {
		t.Error("view should contain the error bar")
	}

	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})
	if app.err != nil {
		t.Errorf("successful load should clear the error, got %v", app.err)
	}

	app, _ = update(t, app, AnalyticsRefreshed{Err: errors.New("refresh: context canceled")})
	if app.err != nil {
		t.Error("later failures should keep the previous data without an error bar")
	}
	if len(app.Entries()) != 3 {
		t.Errorf("entries = %d, want 3", len(app.Entries()))
	}
}

func TestNavigationAndDelete(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})

	app, _ = update(t, app, key("k"))
	if app.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0 at the top", app.Cursor())
	}
	app, _ = update(t, app, key("j"))
	app, _ = update(t, app, key("j"))
	app, _ = update(t, app, key("j"))
	if app.Cursor() != 2 {
		t.Errorf("cursor = %d, want 2 at the bottom", app.Cursor())
	}
	app, _ = update(t, app, key("g"))
	app, _ = update(t, app, key("j"))

	app, cmd := update(t, app, key("d"))
	if len(mock.deletes) != 1 || mock.deletes[0] != "2" {
		t.Fatalf("deletes = %q, want [2]", mock.deletes)
	}

	app, _ = update(t, app, cmd())
	if app.Status() != StatusDeleted {
		t.Errorf("status = %q, want %q", app.Status(), StatusDeleted)
	}
	for _, e := range app.Entries() {
		if e.ID == "2" {
			t.Error("deleted entry still listed")
		}
	}
	if mock.refreshes != 1 {
		t.Errorf("delete should refetch, refreshes = %d", mock.refreshes)
	}
}

func TestDeleteFailureKeepsEntry(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})

	app, _ = update(t, app, EntryDeleted{ID: "3", Err: errors.New("404 Not Found")})
	if len(app.Entries()) != 3 {
		t.Errorf("entries = %d, want 3", len(app.Entries()))
	}
	if !strings.HasPrefix(app.Status(), "Delete failed") {
		t.Errorf("status = %q", app.Status())
	}
}

func TestComposerCapturesKeysWhileFocused(t *testing.T) {
	mock := &mockCmd{}
	app := newTestApp(mock, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})

	app, _ = update(t, app, key("i"))
	if !app.composer.Focused() {
		t.Fatal("i should focus the composer")
	}
	app, _ = update(t, app, key("d"))
	if len(mock.deletes) != 0 {
		t.Error("d while typing should not delete")
	}
	if app.composer.Value() != "d" {
		t.Errorf("composer = %q, want %q", app.composer.Value(), "d")
	}

	app, _ = update(t, app, key("esc"))
	if app.composer.Focused() {
		t.Error("esc should blur the composer")
	}
}

func TestNewEntryKeepsGuardedPanels(t *testing.T) {
	app := newTestApp(&mockCmd{}, true)
	app.composer.SetValue("anxious")
	app, _ = update(t, app, EntrySubmitted{Err: errors.New("offline"), Analysis: insight.LocalAnalyze("anxious")})
	shown := app.cfg.Panels.Get(guard.Analysis)

	app, _ = update(t, app, key("ctrl+n"))

	if app.composer.Value() != "" {
		t.Errorf("composer = %q, want empty", app.composer.Value())
	}
	if got := app.cfg.Panels.Get(guard.Analysis); got != shown {
		t.Errorf("analysis panel = %q, want the last result restored", got)
	}
	if app.cfg.Guard.Restores() != 2 {
		t.Errorf("restores = %d, want 2", app.cfg.Guard.Restores())
	}
}

func TestNewEntryWithoutGuardShowsPlaceholders(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)
	app, _ = update(t, app, EntrySubmitted{Err: errors.New("offline"), Analysis: insight.LocalAnalyze("calm")})

	app, _ = update(t, app, key("ctrl+n"))

	if got := app.cfg.Panels.Get(guard.Insights); got != guard.Placeholder[guard.Insights] {
		t.Errorf("insights panel = %q, want the placeholder", got)
	}
}

func TestViewShowsDashboard(t *testing.T) {
	app := newTestApp(&mockCmd{}, false)
	app, _ = update(t, app, EntriesLoaded{Entries: testEntries()})

	if !strings.Contains(app.View(), "Loading recent analysis") {
		t.Error("view should show a loading line before the first tile render")
	}

	score := 0.9
	app.cfg.Board.RenderTiles(tiles.Build([]journal.Entry{
		{Sentiment: journal.Positive, Score: &score, Timestamp: appNow.Add(-time.Hour)},
	}, appNow, analytics.DefaultThresholds()))
	app.cfg.Board.RenderLine(render.MountMood, render.LineSeries{Title: "Mood trend", Labels: []string{"Mar 9", "Mar 10"}, Values: []float64{4, 8}, Min: 0, Max: 10})

	view := app.View()
	for _, want := range []string{"Today", "Yesterday", "2 days ago", "No entries yet", "AI Analysis", "AI Insights", "Great run this morning"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewNotReady(t *testing.T) {
	app := NewApp(AppConfig{})
	if app.View() != "Loading..." {
		t.Errorf("View() = %q, want Loading...", app.View())
	}
}

func TestDayBand(t *testing.T) {
	tests := []struct {
		ts   time.Time
		want string
	}{
		{appNow.Add(-time.Hour), "Today"},
		{appNow.Add(-24 * time.Hour), "Yesterday"},
		{time.Date(2024, 3, 7, 23, 0, 0, 0, time.Local), "Thu Mar 7"},
		{time.Time{}, "Undated"},
	}
	for _, tt := range tests {
		if got := DayBand(tt.ts, appNow); got != tt.want {
			t.Errorf("DayBand(%v) = %q, want %q", tt.ts, got, tt.want)
		}
	}
}

func TestRenderEntriesKeepsCursorVisible(t *testing.T) {
	var entries []journal.Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, journal.Entry{ID: string(rune('a' + i)), Text: "entry " + string(rune('a'+i)), Timestamp: appNow})
	}

	out := RenderEntries(entries, 15, 80, 5, appNow)
	if !strings.Contains(out, "entry p") {
		t.Errorf("cursor entry should be visible:\n%s", out)
	}
	if n := strings.Count(out, "\n") + 1; n > 5 {
		t.Errorf("rendered %d lines, want at most 5", n)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo wörld", 6); got != "héllo…" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes = %q", got)
	}
}
