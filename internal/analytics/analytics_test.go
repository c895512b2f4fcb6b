package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/moodlog/internal/journal"
)

func score(v float64) *float64 { return &v }

func at(day int, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.Local)
}

func TestOverviewFromEntriesSumsToCount(t *testing.T) {
	entries := []journal.Entry{
		{Sentiment: journal.Positive},
		{Sentiment: journal.Positive},
		{Sentiment: journal.Negative},
		{Sentiment: journal.Neutral},
		{}, // unknown counts as neutral
	}
	c := OverviewFromEntries(entries)
	assert.Equal(t, len(entries), c.Total())
	assert.Equal(t, journal.OverviewCounts{Positive: 2, Neutral: 2, Negative: 1}, c)

	assert.Equal(t, 0, OverviewFromEntries(nil).Total())
}

func TestTrendsFromEntriesWindow(t *testing.T) {
	now := at(10, 15)
	entries := []journal.Entry{
		{Timestamp: at(10, 9), Score: score(0.9)},
		{Timestamp: at(10, 20), Score: score(0.5)},
		{Timestamp: at(8, 1), Score: score(0.2)},
		{Timestamp: at(1, 12), Score: score(1)}, // outside a 7-day window
		{Score: score(0)},                       // no timestamp
	}

	points := TrendsFromEntries(entries, now, 7)
	require.Len(t, points, 7)

	for i, p := range points {
		assert.GreaterOrEqual(t, p.AvgScore, 0.0)
		assert.LessOrEqual(t, p.AvgScore, 1.0)
		if i > 0 {
			assert.True(t, p.Date.After(points[i-1].Date), "points must be chronological")
		}
	}

	assert.Equal(t, "2024-03-04", points[0].Date.Format(journal.DateLayout))
	assert.Equal(t, "2024-03-10", points[6].Date.Format(journal.DateLayout))
	assert.InDelta(t, 0.7, points[6].AvgScore, 1e-9)
	assert.InDelta(t, 0.2, points[4].AvgScore, 1e-9)
	assert.Equal(t, journal.DefaultScore, points[5].AvgScore)
}

func TestTrendsFromEntriesEmptyIsFlat(t *testing.T) {
	points := TrendsFromEntries(nil, at(10, 12), 0)
	require.Len(t, points, DefaultWindowDays)
	for _, p := range points {
		assert.Equal(t, 0.5, p.AvgScore)
	}
}

func TestTrendsFromEntriesUsesConfidenceFallback(t *testing.T) {
	conf := 0.8
	points := TrendsFromEntries([]journal.Entry{{Timestamp: at(10, 9), Confidence: &conf}}, at(10, 12), 1)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.8, points[0].AvgScore, 1e-9)
}

func TestMoodScale(t *testing.T) {
	assert.Equal(t, 5, MoodScale(0.5))
	assert.Equal(t, 7, MoodScale(0.66))
	assert.Equal(t, 0, MoodScale(-1))
	assert.Equal(t, 10, MoodScale(1.4))
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	a := time.Date(2024, 3, 9, 0, 0, 0, 0, loc)
	b := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestThresholdsLabel(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, journal.Positive, th.Label(0.6))
	assert.Equal(t, journal.Negative, th.Label(0.4))
	assert.Equal(t, journal.Neutral, th.Label(0.5))

	strict := Thresholds{Positive: 0.9, Negative: 0.1}
	assert.Equal(t, journal.Neutral, strict.Label(0.6))
}
