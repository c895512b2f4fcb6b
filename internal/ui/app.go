package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/moodlog/internal/guard"
	"github.com/abelbrown/moodlog/internal/insight"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/refresh/pipeline"
	"github.com/abelbrown/moodlog/internal/render"
)

// Composer status lines.
const (
	StatusEmpty      = "Please write something before adding."
	StatusSubmitting = "Saving entry and analyzing..."
	StatusAnalyzed   = "Entry analyzed by AI!"
	StatusDeleted    = "Entry deleted"

	analyzingText  = "⏳ Analyzing…"
	generatingText = "Generating AI insights…"
)

// AppConfig holds the dependencies the App needs.
// The App never talks to the backend itself; every closure returns a Cmd
// whose result comes back as a message.
type AppConfig struct {
	LoadEntries func() tea.Cmd
	Submit      func(text string) tea.Cmd
	Delete      func(id string) tea.Cmd
	Refresh     func() tea.Cmd // forced tiles + analytics

	Board  *render.Board
	Panels *guard.Panels
	Guard  *guard.Guard // optional; panels are written directly without it
	Ring   *otel.RingBuffer
	Events *otel.Logger // message tracing under MOODLOG_TRACE

	User      string
	Now       func() time.Time
	ShowDebug bool
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the gateway or the store. It receives data
// via messages and reads charts from the shared Board.
type App struct {
	cfg AppConfig

	composer textarea.Model
	spinner  spinner.Model

	entries []journal.Entry
	cached  bool
	cursor  int

	status      string
	statusErr   bool
	err         error
	loaded      bool
	loading     bool
	submitting  bool
	refreshing  bool
	lastRefresh time.Time

	width     int
	height    int
	ready     bool
	debugMode bool
}

// NewApp creates an App.
func NewApp(cfg AppConfig) App {
	if cfg.Board == nil {
		cfg.Board = render.NewBoard(render.DashboardMounts...)
	}
	if cfg.Panels == nil {
		cfg.Panels = guard.NewPanels()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ta := textarea.New()
	ta.Placeholder = "How are you feeling today?"
	ta.ShowLineNumbers = false
	ta.CharLimit = 5000
	ta.SetHeight(3)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return App{
		cfg:       cfg,
		composer:  ta,
		spinner:   sp,
		loading:   cfg.LoadEntries != nil,
		debugMode: cfg.ShowDebug,
	}
}

// Init loads the entry list.
func (a App) Init() tea.Cmd {
	if a.cfg.LoadEntries == nil {
		return nil
	}
	return a.cfg.LoadEntries()
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, tick := msg.(spinner.TickMsg); !tick {
		a.cfg.Events.TraceMsg(msg)
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.composer.SetWidth(max(msg.Width-4, 10))
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EntriesLoaded:
		a.loading = false
		if msg.Err != nil {
			a.noteError("load entries", msg.Err)
			return a, nil
		}
		a.setEntries(msg.Entries, msg.Cached)
		return a, nil

	case AnalyticsRefreshed:
		a.refreshing = false
		if errors.Is(msg.Err, pipeline.ErrBusy) {
			return a, nil
		}
		if msg.Err != nil {
			a.noteError("refresh", msg.Err)
			return a, nil
		}
		a.lastRefresh = a.cfg.Now()
		if r := msg.Result; r != nil && r.EntriesSource != pipeline.SourceNone {
			// A full refetch replaces any optimistic inserts.
			a.setEntries(r.Entries, r.EntriesSource == pipeline.SourceCache)
		}
		return a, nil

	case TilesRefreshed:
		if msg.Err != nil {
			logging.Debug("UI: tiles refresh failed", "error", msg.Err)
		}
		return a, nil

	case EntrySubmitted:
		return a.handleSubmitted(msg)

	case EntryDeleted:
		if msg.Err != nil {
			a.setStatus("Delete failed: "+msg.Err.Error(), true)
			return a, nil
		}
		a.removeEntry(msg.ID)
		a.setStatus(StatusDeleted, false)
		return a, a.refreshCmd()

	case PushReceived:
		a.refreshing = true
		return a, a.spinner.Tick

	case GuardTick:
		// Panels are read on every View; nothing to do but redraw.
		return a, nil
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.err != nil {
		a.err = nil
	}
	key := msg.String()

	if a.debugMode {
		switch key {
		case "D", "esc":
			a.debugMode = false
		case "q", "ctrl+c":
			return a, tea.Quit
		}
		return a, nil
	}

	switch key {
	case "ctrl+c":
		return a, tea.Quit
	case "ctrl+s":
		return a.submit()
	case "ctrl+n":
		return a.newEntry(), nil
	}

	if a.composer.Focused() {
		if key == "esc" {
			a.composer.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		a.composer, cmd = a.composer.Update(msg)
		return a, cmd
	}

	switch key {
	case "q":
		return a, tea.Quit

	case "i", "tab", "enter":
		cmd := a.composer.Focus()
		return a, cmd

	case "j", "down":
		if a.cursor < len(a.entries)-1 {
			a.cursor++
		}
		return a, nil

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case "g", "home":
		a.cursor = 0
		return a, nil

	case "G", "end":
		if len(a.entries) > 0 {
			a.cursor = len(a.entries) - 1
		}
		return a, nil

	case "d":
		if a.cfg.Delete != nil && a.cursor < len(a.entries) {
			return a, a.cfg.Delete(a.entries[a.cursor].ID)
		}
		return a, nil

	case "r":
		a.refreshing = a.cfg.Refresh != nil
		return a, tea.Batch(a.refreshCmd(), a.spinner.Tick)

	case "D":
		a.debugMode = true
		return a, nil
	}

	return a, nil
}

// submit sends the composer text. Empty text and a second submit while one
// is in flight are ignored.
func (a App) submit() (tea.Model, tea.Cmd) {
	if a.submitting {
		return a, nil
	}
	text := strings.TrimSpace(a.composer.Value())
	if text == "" {
		a.setStatus(StatusEmpty, true)
		return a, nil
	}
	if a.cfg.Submit == nil {
		return a, nil
	}

	a.submitting = true
	a.setStatus(StatusSubmitting, false)
	a.cfg.Panels.Set(guard.Analysis, analyzingText)
	a.cfg.Panels.Set(guard.Insights, generatingText)
	return a, tea.Batch(a.cfg.Submit(text), a.spinner.Tick)
}

func (a App) handleSubmitted(msg EntrySubmitted) (tea.Model, tea.Cmd) {
	a.submitting = false
	if msg.Err != nil {
		a.setStatus(fmt.Sprintf("Saved offline: %v. Showing local AI estimate.", msg.Err), true)
		a.showAnalysis(msg.Analysis)
		return a, nil
	}

	if msg.Entry != nil {
		a.entries = append([]journal.Entry{*msg.Entry}, a.entries...)
		a.loaded = true
		a.cursor = 0
	}
	// The text stays in the composer until the next entry is started.
	a.setStatus(StatusAnalyzed, false)
	a.showAnalysis(msg.Analysis)
	return a, a.refreshCmd()
}

// newEntry clears the composer and resets the panels. Guarded panels come
// straight back.
func (a App) newEntry() App {
	a.composer.Reset()
	a.status = ""
	for _, p := range guard.All {
		a.cfg.Panels.Reset(p)
	}
	return a
}

func (a *App) showAnalysis(an insight.Analysis) {
	analysis := AnalysisContent(an)
	insights := insight.Bullets(insight.Suggestions(an))
	if a.cfg.Guard != nil {
		a.cfg.Guard.Show(guard.Analysis, analysis)
		a.cfg.Guard.Show(guard.Insights, insights)
		return
	}
	a.cfg.Panels.Set(guard.Analysis, analysis)
	a.cfg.Panels.Set(guard.Insights, insights)
}

// AnalysisContent renders the analysis panel body for a result.
func AnalysisContent(an insight.Analysis) string {
	st := render.StyleFor(an.Sentiment)
	badge := lipgloss.NewStyle().Background(st.Bg).Foreground(st.Fg).Padding(0, 1)
	return strings.Join([]string{
		st.Emoji + " " + an.Headline(),
		fmt.Sprintf("Confidence: %d%%", an.ConfidencePct()),
		badge.Render(an.Source()),
	}, "\n")
}

func (a *App) setEntries(entries []journal.Entry, cached bool) {
	a.entries = entries
	a.cached = cached
	a.loaded = true
	a.err = nil
	if a.cursor >= len(a.entries) {
		a.cursor = max(len(a.entries)-1, 0)
	}
}

func (a *App) removeEntry(id string) {
	for i, e := range a.entries {
		if e.ID == id {
			a.entries = append(a.entries[:i:i], a.entries[i+1:]...)
			break
		}
	}
	if a.cursor >= len(a.entries) {
		a.cursor = max(len(a.entries)-1, 0)
	}
}

// noteError shows err only when nothing was ever loaded. Later failures
// keep the previous data on screen.
func (a *App) noteError(what string, err error) {
	logging.Warn("UI: "+what+" failed", "error", err)
	if !a.loaded {
		a.err = err
	}
}

func (a *App) setStatus(s string, isErr bool) {
	a.status = s
	a.statusErr = isErr
}

func (a App) refreshCmd() tea.Cmd {
	if a.cfg.Refresh == nil {
		return nil
	}
	return a.cfg.Refresh()
}

func (a App) busy() bool {
	return a.loading || a.submitting || a.refreshing
}

// Entries returns the current entries (for testing).
func (a App) Entries() []journal.Entry {
	return a.entries
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Status returns the composer status line (for testing).
func (a App) Status() string {
	return a.status
}
