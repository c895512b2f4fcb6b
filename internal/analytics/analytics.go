// Package analytics derives dashboard series from raw journal entries.
//
// Everything here is pure. The refresh pipeline calls these when the
// backend's own analytics are empty or unavailable, and for the derived
// stress/activity/sleep panels, which the backend never computes.
package analytics

import (
	"math"
	"time"

	"github.com/abelbrown/moodlog/internal/journal"
)

// DefaultWindowDays is the trend window used when none is given.
const DefaultWindowDays = 30

// Thresholds split a mean score into a sentiment.
type Thresholds struct {
	Positive float64 `json:"positive"` // mean >= Positive is POSITIVE
	Negative float64 `json:"negative"` // mean <= Negative is NEGATIVE
}

// DefaultThresholds returns 0.6 / 0.4.
func DefaultThresholds() Thresholds {
	return Thresholds{Positive: 0.6, Negative: 0.4}
}

// Label maps a mean score to a sentiment. Both bounds are inclusive.
func (t Thresholds) Label(mean float64) journal.Sentiment {
	switch {
	case mean >= t.Positive:
		return journal.Positive
	case mean <= t.Negative:
		return journal.Negative
	default:
		return journal.Neutral
	}
}

// OverviewFromEntries counts entries per sentiment. The counts always sum
// to len(entries).
func OverviewFromEntries(entries []journal.Entry) journal.OverviewCounts {
	var c journal.OverviewCounts
	for _, e := range entries {
		c.Add(e.Sentiment)
	}
	return c
}

// TrendsFromEntries returns exactly windowDays points, oldest first, ending
// on now's local calendar day. Each point is the mean effective score of
// that day's entries; days without entries are exactly DefaultScore.
// Entries outside the window or without a timestamp are ignored.
func TrendsFromEntries(entries []journal.Entry, now time.Time, windowDays int) []journal.TrendPoint {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	today := StartOfDay(now)
	first := today.AddDate(0, 0, -(windowDays - 1))

	sums := make([]float64, windowDays)
	counts := make([]int, windowDays)
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		idx := DaysBetween(first, StartOfDay(e.Timestamp.In(now.Location())))
		if idx < 0 || idx >= windowDays {
			continue
		}
		sums[idx] += e.ScoreOr()
		counts[idx]++
	}

	points := make([]journal.TrendPoint, windowDays)
	for i := range points {
		avg := journal.DefaultScore
		if counts[i] > 0 {
			avg = sums[i] / float64(counts[i])
		}
		points[i] = journal.TrendPoint{Date: first.AddDate(0, 0, i), AvgScore: avg}
	}
	return points
}

// MoodScale converts a 0..1 score to the 0..10 mood scale.
func MoodScale(avg float64) int {
	v := int(math.Round(avg * 10))
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from a to b. Both must be midnights in
// the same location. DST days are 23 or 25 hours long, so this goes through
// the calendar rather than dividing durations.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
