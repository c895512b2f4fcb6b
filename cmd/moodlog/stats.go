package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/render"
)

func addStats(topLevel *cobra.Command, opts *options) {
	var withEvents bool

	var cmd = &cobra.Command{
		Use:   "stats",
		Short: "Summarize the local entry cache and recent events.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			cache, err := e.openCache()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			entries, err := cache.Entries(ctx, 0)
			if err != nil {
				return err
			}
			synced, err := cache.LastSync(ctx)
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			fmt.Fprintln(color.Output, bold.Sprint("=== Entry cache ==="))
			fmt.Fprintf(color.Output, "Cached entries:  %d\n", len(entries))
			if synced.IsZero() {
				fmt.Fprintln(color.Output, "Last sync:       never")
			} else {
				fmt.Fprintf(color.Output, "Last sync:       %s\n", humanize.Time(synced))
			}
			fmt.Fprintln(color.Output)
			printOverview(color.Output, analytics.OverviewFromEntries(entries))

			if !withEvents {
				return nil
			}
			ring, err := loadRing(e.cfg.EventsPath())
			if err != nil {
				return err
			}
			fmt.Fprintln(color.Output)
			fmt.Fprintln(color.Output, bold.Sprint("=== Events ==="))
			printEventStats(color.Output, ring)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withEvents, "events", false, "include event counts from the event log")
	topLevel.AddCommand(cmd)
}

func printOverview(out io.Writer, c journal.OverviewCounts) {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("SENTIMENT"), bold.Sprint("ENTRIES"), bold.Sprint("SHARE"))
	for _, s := range journal.Order {
		tbl.AddRow(
			render.Emoji(s)+" "+sentimentColor(s).Sprint(s.Title()),
			c.Get(s),
			fmt.Sprintf("%d%%", render.Pct(c.Get(s), c.Total())),
		)
	}
	tbl.RightAlign(1)
	tbl.RightAlign(2)
	fmt.Fprintln(out, tbl)
}

// loadRing replays the newest events of the log into a ring buffer.
func loadRing(path string) (*otel.RingBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	for _, l := range readTailLines(f, otel.DefaultRingSize, func(otel.Event) bool { return true }) {
		ring.Push(l.ev)
	}
	return ring, nil
}

func printEventStats(out io.Writer, ring *otel.RingBuffer) {
	stats := ring.Stats()
	kinds := make([]string, 0, len(stats))
	for k := range stats {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	tbl := uitable.New()
	tbl.Separator = "  "
	for _, k := range kinds {
		tbl.AddRow(k, stats[otel.EventKind(k)])
	}
	tbl.RightAlign(1)
	fmt.Fprintln(out, tbl)
	fmt.Fprintf(out, "(last %d of at most %d events)\n", ring.Len(), ring.Cap())
}
