// Package tiles computes the three "recent analysis" tiles: the dominant
// sentiment of today, yesterday and the day before.
package tiles

import (
	"math"
	"time"

	"github.com/abelbrown/moodlog/internal/analytics"
	"github.com/abelbrown/moodlog/internal/journal"
)

// Labels are the tile titles, indexed by day offset.
var Labels = [3]string{"Today", "Yesterday", "2 days ago"}

// Placeholder is shown on a tile with no entries.
const Placeholder = "No entries yet"

// Summary is one non-empty day.
type Summary struct {
	Dominant    journal.Sentiment
	Counts      journal.OverviewCounts
	N           int
	Mean        float64
	SelectedPct int  // share of the day's entries labelled Dominant, 0..100
	Tied        bool // Dominant came from the mean-score tie-break
}

// Tile is one rendered day. A nil Summary is the placeholder.
type Tile struct {
	Label   string
	Summary *Summary
}

// Empty reports whether the tile shows the placeholder.
func (t Tile) Empty() bool { return t.Summary == nil }

// Bucketize groups entries by local calendar day offset from now: 0 is
// today, 1 yesterday, 2 the day before. Everything else, including entries
// without a timestamp, is dropped.
func Bucketize(entries []journal.Entry, now time.Time) [3][]journal.Entry {
	var out [3][]journal.Entry
	today := analytics.StartOfDay(now)
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		day := analytics.StartOfDay(e.Timestamp.In(now.Location()))
		diff := analytics.DaysBetween(day, today)
		if diff >= 0 && diff < len(out) {
			out[diff] = append(out[diff], e)
		}
	}
	return out
}

// Summarize picks the dominant sentiment of a bucket, or nil when empty.
//
// The dominant label is the first maximum count in the order POSITIVE,
// NEUTRAL, NEGATIVE. When more than one label shares the maximum, the
// winner is re-derived from the mean score via th instead; that winner may
// itself have a lower count, in which case SelectedPct reflects it.
func Summarize(bucket []journal.Entry, th analytics.Thresholds) *Summary {
	if len(bucket) == 0 {
		return nil
	}

	s := &Summary{N: len(bucket)}
	var sum float64
	for _, e := range bucket {
		sum += e.ScoreOr()
		s.Counts.Add(e.Sentiment)
	}
	s.Mean = sum / float64(s.N)

	maxCount := -1
	for _, label := range journal.Order {
		if c := s.Counts.Get(label); c > maxCount {
			maxCount = c
			s.Dominant = label
		}
	}

	sharing := 0
	for _, label := range journal.Order {
		if s.Counts.Get(label) == maxCount {
			sharing++
		}
	}
	if sharing > 1 {
		s.Dominant = th.Label(s.Mean)
		s.Tied = true
	}

	pct := math.Round(float64(s.Counts.Get(s.Dominant)) / float64(s.N) * 100)
	s.SelectedPct = int(math.Max(0, math.Min(100, pct)))
	return s
}

// Build computes all three tiles.
func Build(entries []journal.Entry, now time.Time, th analytics.Thresholds) [3]Tile {
	buckets := Bucketize(entries, now)
	var out [3]Tile
	for i := range out {
		out[i] = Tile{Label: Labels[i], Summary: Summarize(buckets[i], th)}
	}
	return out
}
