package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/logging"
	"github.com/abelbrown/moodlog/internal/render"
	"github.com/abelbrown/moodlog/internal/tiles"
)

func addTiles(topLevel *cobra.Command, opts *options) {
	var offline bool

	var cmd = &cobra.Command{
		Use:   "tiles",
		Short: "Print the recent analysis for today, yesterday and the day before.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			entries, note, err := reportEntries(cmd.Context(), e, offline)
			if err != nil {
				return err
			}
			t := tiles.Build(entries, time.Now(), e.cfg.Thresholds())
			printTiles(color.Output, t)
			if note != "" {
				fmt.Fprintln(color.Output, note)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read entries from the local cache only")
	topLevel.AddCommand(cmd)
}

func addTrends(topLevel *cobra.Command, opts *options) {
	var offline bool
	var days int

	var cmd = &cobra.Command{
		Use:   "trends",
		Short: "Print the daily mood trend (0..1 score and 0..10 mood).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer e.Close()
			if days <= 0 {
				days = e.cfg.Analytics.WindowDays
			}

			points, source, err := reportTrends(cmd.Context(), e, days, offline)
			if err != nil {
				return err
			}
			printTrends(color.Output, points, e.cfg.Thresholds())
			fmt.Fprintf(color.Output, "%d days, %s\n", len(points), source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "derive the trend from the local cache only")
	cmd.Flags().IntVar(&days, "days", 0, "window size in days (default from config)")
	topLevel.AddCommand(cmd)
}

// reportEntries fetches entries online, refreshing the cache, or reads the
// cache when offline or the fetch fails. note describes a cache read.
func reportEntries(ctx context.Context, e *env, offline bool) (entries []journal.Entry, note string, err error) {
	if !offline {
		if err := e.requireLogin(); err != nil {
			return nil, "", err
		}
		entries, err = e.client.FetchEntries(ctx)
		if err == nil {
			if cache, cerr := e.openCache(); cerr == nil {
				if cerr := cache.ReplaceEntries(ctx, entries, time.Now()); cerr != nil {
					logging.Warn("Cache update failed", "error", cerr)
				}
			}
			return entries, "", nil
		}
		logging.Warn("Entries fetch failed, using cache", "error", err)
	}

	cache, cerr := e.openCache()
	if cerr != nil {
		if err != nil {
			return nil, "", err
		}
		return nil, "", cerr
	}
	entries, cerr = cache.Entries(ctx, 0)
	if cerr != nil {
		return nil, "", cerr
	}
	note = "from local cache"
	if synced, _ := cache.LastSync(ctx); !synced.IsZero() {
		note += ", synced " + humanize.Time(synced)
	}
	if err != nil {
		note += " (backend: " + err.Error() + ")"
	}
	return entries, note, nil
}

// reportTrends prefers the backend series and falls back to deriving it
// from entries, as the dashboard does.
func reportTrends(ctx context.Context, e *env, days int, offline bool) ([]journal.TrendPoint, string, error) {
	if !offline {
		if err := e.requireLogin(); err != nil {
			return nil, "", err
		}
		points, err := e.client.FetchTrends(ctx, days)
		if err == nil && len(points) > 0 {
			return points, "from backend", nil
		}
		if err != nil {
			logging.Warn("Trends fetch failed, deriving locally", "error", err)
		}
	}
	entries, note, err := reportEntries(ctx, e, offline)
	if err != nil {
		return nil, "", err
	}
	src := "derived locally"
	if note != "" {
		src += " " + note
	}
	return analytics.TrendsFromEntries(entries, time.Now(), days), src, nil
}

func printTiles(out io.Writer, t [3]tiles.Tile) {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("DAY"), bold.Sprint("MOOD"), bold.Sprint("SHARE"), bold.Sprint("ENTRIES"), bold.Sprint("MEAN"))
	for _, tile := range t {
		if tile.Empty() {
			tbl.AddRow(tile.Label, color.New(color.Faint).Sprint(tiles.Placeholder), "", "", "")
			continue
		}
		s := tile.Summary
		mood := render.Emoji(s.Dominant) + " " + sentimentColor(s.Dominant).Sprint(s.Dominant.Title())
		if s.Tied {
			mood += " (tie)"
		}
		tbl.AddRow(tile.Label, mood, fmt.Sprintf("%d%%", s.SelectedPct), s.N, fmt.Sprintf("%.2f", s.Mean))
	}
	tbl.RightAlign(2)
	tbl.RightAlign(3)
	fmt.Fprintln(out, tbl)
}

func printTrends(out io.Writer, points []journal.TrendPoint, th analytics.Thresholds) {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("DATE"), bold.Sprint("SCORE"), bold.Sprint("MOOD"), "")
	for _, p := range points {
		label := th.Label(p.AvgScore)
		tbl.AddRow(
			p.Date.Format(journal.DateLayout),
			fmt.Sprintf("%.2f", p.AvgScore),
			analytics.MoodScale(p.AvgScore),
			sentimentColor(label).Sprint(bar(p.AvgScore, 20)),
		)
	}
	tbl.RightAlign(1)
	tbl.RightAlign(2)
	fmt.Fprintln(out, tbl)
}

func sentimentColor(s journal.Sentiment) *color.Color {
	switch s {
	case journal.Positive:
		return color.New(color.FgGreen)
	case journal.Negative:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

// bar draws v (0..1) as a run of block characters width cells wide.
func bar(v float64, width int) string {
	n := int(math.Round(v * float64(width)))
	return strings.Repeat("█", max(0, min(n, width)))
}
