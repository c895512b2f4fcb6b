package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Sentiment colors live in render.
var (
	accent = lipgloss.Color("105") // lavender
	calm   = lipgloss.Color("73")  // teal
	dim    = lipgloss.Color("244")
	faint  = lipgloss.Color("238")
	ink    = lipgloss.Color("253")
	good   = lipgloss.Color("114")
	bad    = lipgloss.Color("203")
)

// Header and entry list.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	SubtleText   = lipgloss.NewStyle().Foreground(dim)
	DayHeader    = lipgloss.NewStyle().Bold(true).Foreground(calm).Padding(0, 1)
	NormalItem   = lipgloss.NewStyle().Foreground(ink).Padding(0, 1)
	SelectedItem = NormalItem.Bold(true).Background(lipgloss.Color("60"))
)

// Analysis and insights panels, and the composer under them.
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faint).
			Padding(0, 1)
	PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(calm)

	ComposerStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(faint)
	ComposerFocused = ComposerStyle.BorderForeground(accent)

	StatusOK  = lipgloss.NewStyle().Foreground(good).Padding(0, 1)
	StatusErr = lipgloss.NewStyle().Foreground(bad).Padding(0, 1)
)

// Bottom bar and error line.
var (
	StatusBar     = lipgloss.NewStyle().Foreground(ink).Background(lipgloss.Color("235")).Padding(0, 1)
	StatusBarKey  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	StatusBarText = lipgloss.NewStyle().Foreground(dim)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(bad).Padding(0, 1)
	HelpStyle     = lipgloss.NewStyle().Foreground(faint).Padding(0, 2)
)

// Debug overlay.
var (
	DebugPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(calm).
			Padding(1, 2)
	DebugHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
)
