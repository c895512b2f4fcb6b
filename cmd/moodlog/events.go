package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodlog/internal/config"
	"github.com/abelbrown/moodlog/internal/otel"
)

// eventFilter selects events for display. Empty fields match everything.
type eventFilter struct {
	kind  string // prefix, e.g. "push" or "tiles.render"
	level string // minimum level
	comp  string
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level otel.Level) int {
	switch level {
	case otel.LevelInfo:
		return 1
	case otel.LevelWarn:
		return 2
	case otel.LevelError:
		return 3
	default:
		return 0
	}
}

func (f eventFilter) match(ev otel.Event) bool {
	if f.kind != "" && !strings.HasPrefix(string(ev.Kind), f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(otel.Level(f.level)) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	return true
}

func addEvents(topLevel *cobra.Command, opts *options) {
	var (
		tail    int
		follow  bool
		rawJSON bool
		filter  eventFilter
	)

	var cmd = &cobra.Command{
		Use:   "events",
		Short: "Show the structured event log.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			path := cfg.EventsPath()
			f, err := os.Open(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no event log at %s; run the dashboard first", path)
				}
				return err
			}
			defer f.Close()

			show := func(ev otel.Event, raw []byte) {
				if rawJSON {
					fmt.Fprintln(color.Output, string(raw))
					return
				}
				fmt.Fprintln(color.Output, formatEvent(ev))
			}

			for _, l := range readTailLines(f, tail, filter.match) {
				show(l.ev, l.raw)
			}
			if !follow {
				return nil
			}
			return followEvents(cmd.Context(), f, filter.match, show)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&tail, "tail", "n", 50, "number of recent events to show")
	fl.BoolVarP(&follow, "follow", "f", false, "keep printing new events (like tail -f)")
	fl.BoolVar(&rawJSON, "json", false, "print raw JSON lines")
	fl.StringVar(&filter.kind, "kind", "", "filter by event kind prefix (e.g. 'push')")
	fl.StringVar(&filter.level, "level", "", "minimum level: debug, info, warn, error")
	fl.StringVar(&filter.comp, "comp", "", "filter by component (refresh, tiles, push, guard, ui, main)")
	topLevel.AddCommand(cmd)
}

// formatEvent renders one event as a single line.
func formatEvent(ev otel.Event) string {
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}
	head := fmt.Sprintf("%s %-5s [%-7s] %-16s", ev.Time.Local().Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)
	parts := []string{levelColor(ev.Level).Sprint(head)}

	if ev.Msg != "" {
		parts = append(parts, ev.Msg)
	}
	if ev.Endpoint != "" {
		parts = append(parts, ev.Endpoint)
	}
	if ev.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", ev.Status))
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", ev.Attempt))
	}
	if ev.Panel != "" {
		parts = append(parts, "panel="+ev.Panel)
	}
	if ev.Err != "" {
		parts = append(parts, color.RedString("err=%s", ev.Err))
	}
	return strings.Join(parts, " ")
}

func levelColor(l otel.Level) *color.Color {
	switch l {
	case otel.LevelError:
		return color.New(color.FgRed, color.Bold)
	case otel.LevelWarn:
		return color.New(color.FgYellow)
	case otel.LevelDebug:
		return color.New(color.Faint)
	default:
		return color.New(color.Reset)
	}
}

type parsedLine struct {
	ev  otel.Event
	raw []byte
}

// readTailLines reads r to the end and returns the last n lines matching
// the filter. Lines that are not events are skipped. r is always consumed
// so a follow starts at the end.
func readTailLines(r io.Reader, n int, match func(otel.Event) bool) []parsedLine {
	scanner := bufio.NewScanner(r)
	// Events with large Extra maps can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ring []parsedLine
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 || n <= 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		// The scanner reuses its buffer.
		line := parsedLine{ev: ev, raw: append([]byte(nil), raw...)}
		if len(ring) < n {
			ring = append(ring, line)
		} else {
			copy(ring, ring[1:])
			ring[n-1] = line
		}
	}
	return ring
}

// followEvents polls r for appended lines until ctx is done.
func followEvents(ctx context.Context, r io.Reader, match func(otel.Event) bool, emit func(otel.Event, []byte)) error {
	reader := bufio.NewReader(r)
	var pending []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		line := trimLine(pending)
		pending = nil
		if len(line) == 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		if match(ev) {
			emit(ev, line)
		}
	}
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
