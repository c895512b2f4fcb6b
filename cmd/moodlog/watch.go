package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/refresh/pipeline"
	"github.com/abelbrown/moodlog/internal/ui"
)

func addWatch(topLevel *cobra.Command, opts *options) {
	var cmd = &cobra.Command{
		Use:   "watch",
		Short: "Run the refresh loop headless, logging every outcome.",
		Long: `Subscribe to the backend push channel and keep the analytics and
tiles fresh without a terminal UI: on every new journal entry, every tile
poll and at local midnight. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts)
		},
	}
	topLevel.AddCommand(cmd)
}

func runWatch(parent context.Context, opts *options) error {
	e, err := setup(opts, false)
	if err != nil {
		return err
	}
	defer e.Close()
	// Outcomes are the whole point of watch, so log at info even without -v.
	if !opts.verbose {
		logging.InitWriter(os.Stderr, log.InfoLevel)
	}
	if err := e.requireLogin(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := e.openCache()
	if err != nil {
		logging.Warn("Entry cache unavailable", "error", err)
		cache = nil
	}
	e.serveMetrics(ctx)

	b := newBackend(e, cache)
	coordinator := b.coordinator(e, nil)

	e.events.Info(otel.KindStartup, "main", "watch")
	logging.Info("Watching", "server", e.client.BaseURL(), "push", b.push != nil)
	coordinator.Start(ctx, outcomeLogger{})

	<-ctx.Done()
	coordinator.Wait()
	e.events.Info(otel.KindShutdown, "main", "watch")
	logging.Info("Stopped")
	return nil
}

// outcomeLogger stands in for the TUI program and logs what it would have
// been sent.
type outcomeLogger struct{}

func (outcomeLogger) Send(msg tea.Msg) {
	switch m := msg.(type) {
	case ui.AnalyticsRefreshed:
		switch {
		case errors.Is(m.Err, pipeline.ErrBusy):
			logging.Debug("Analytics refresh skipped, already running")
		case m.Err != nil:
			logging.Error("Analytics refresh failed", "error", m.Err)
		default:
			r := m.Result
			logging.Info("Analytics refreshed",
				"overview", r.OverviewSource,
				"trends", r.TrendsSource,
				"panels", len(r.Panels),
				"panel_errors", len(r.PanelErrors),
				"took", r.Duration)
		}
	case ui.TilesRefreshed:
		if m.Err != nil {
			logging.Warn("Tiles refresh failed", "error", m.Err)
			return
		}
		logging.Info("Tiles refreshed", "outcome", m.Outcome)
	case ui.PushReceived:
		logging.Info("New journal entry pushed")
	}
}
