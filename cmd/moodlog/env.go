package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/moodlog/internal/config"
	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/metrics"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/session"
	"github.com/abelbrown/moodlog/internal/store"
)

// env is everything a command needs, opened once from the global flags.
type env struct {
	cfg     *config.Config
	sess    *session.Store
	client  *gateway.Client
	events  *otel.Logger
	metrics *metrics.Metrics

	eventsFile *os.File
	cache      *store.Store
}

// setup loads config and opens the session and event log. fileLog sends
// charmbracelet/log output to the daily log file; the TUI owns the
// terminal, so it cannot log to stderr.
func setup(opts *options, fileLog bool) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.server != "" {
		cfg.Server.URL = opts.server
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if err := os.MkdirAll(cfg.Dir(), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	switch {
	case opts.verbose && !fileLog:
		logging.InitWriter(os.Stderr, log.DebugLevel)
	case fileLog:
		if err := logging.Init(cfg.LogDir()); err != nil {
			return nil, err
		}
	}

	e := &env{cfg: cfg, metrics: metrics.New()}

	e.sess, err = session.Open(cfg.SessionDir())
	if err != nil {
		e.Close()
		return nil, err
	}

	e.client, err = gateway.New(gateway.Options{
		BaseURL:    cfg.Server.URL,
		Timeout:    cfg.Timeout(),
		Tokens:     e.sess,
		RatePerSec: cfg.Server.RatePerSec,
		StreamPath: cfg.Server.StreamPath,
		TokenParam: cfg.Server.TokenParam,
	})
	if err != nil {
		e.Close()
		return nil, err
	}

	// A missing event log is not fatal; events still reach the ring buffer.
	f, err := otel.OpenFile(cfg.EventsPath())
	if err != nil {
		logging.Warn("Event log unavailable", "error", err)
		e.events = otel.NewNullLogger()
	} else {
		e.eventsFile = f
		e.events = otel.NewLogger(f)
	}
	return e, nil
}

// openCache opens the local entry cache on first use.
func (e *env) openCache() (*store.Store, error) {
	if e.cache != nil {
		return e.cache, nil
	}
	st, err := store.Open(e.cfg.DBPath())
	if err != nil {
		return nil, err
	}
	e.cache = st
	return st, nil
}

// serveMetrics starts the metrics endpoint when an address is configured.
func (e *env) serveMetrics(ctx context.Context) {
	addr := e.cfg.MetricsAddr
	if addr == "" {
		return
	}
	go func() {
		if err := e.metrics.Serve(ctx, addr); err != nil {
			logging.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	logging.Info("Serving metrics", "addr", addr)
}

// Close flushes the event log and closes everything setup opened.
func (e *env) Close() {
	e.events.Close()
	if e.eventsFile != nil {
		e.eventsFile.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
	logging.Close()
}

// requireLogin fails fast when there is no stored token.
func (e *env) requireLogin() error {
	if !e.sess.LoggedIn() {
		return fmt.Errorf("not logged in; run 'moodlog login' first")
	}
	return nil
}
