package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abelbrown/moodlog/internal/journal"
)

func TestStressClassifier(t *testing.T) {
	c := StressClassifier{Mapping: DefaultStressMapping()}

	tests := []struct {
		name       string
		entries    []journal.Entry
		want       float64
		confidence string
	}{
		{
			name:       "empty",
			want:       0,
			confidence: ConfidenceHeuristic,
		},
		{
			name: "sentiment heuristic only",
			entries: []journal.Entry{
				{Sentiment: journal.Negative},
				{Sentiment: journal.Positive},
			},
			want:       5.5,
			confidence: ConfidenceHeuristic,
		},
		{
			name: "tagged percent in text",
			entries: []journal.Entry{
				{Text: "Stress assessment result: 72% (High)", Tags: []string{"stress"}},
			},
			want:       7.2,
			confidence: ConfidenceTagged,
		},
		{
			name: "tagged uses explicit score then 50",
			entries: []journal.Entry{
				{Tags: []string{"Stress"}, Score: score(0.9)},
				{Tags: []string{"stress"}},
			},
			want:       7,
			confidence: ConfidenceTagged,
		},
		{
			name: "mixed is heuristic",
			entries: []journal.Entry{
				{Text: "40%", Tags: []string{"stress"}},
				{Sentiment: journal.Neutral},
				{Sentiment: journal.Negative},
			},
			want:       5.7,
			confidence: ConfidenceHeuristic,
		},
		{
			name: "percent clamped",
			entries: []journal.Entry{
				{Text: "150% done", Tags: []string{"stress"}},
			},
			want:       10,
			confidence: ConfidenceTagged,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Classify(tt.entries)
			assert.Equal(t, []string{"Stress"}, p.Labels)
			assert.InDelta(t, tt.want, p.Values[0], 1e-9)
			assert.Equal(t, tt.confidence, p.Confidence)
		})
	}
}

func TestStressMappingIsConfigurable(t *testing.T) {
	c := StressClassifier{Mapping: StressMapping{Negative: 10, Neutral: 0, Positive: 0}}
	p := c.Classify([]journal.Entry{{Sentiment: journal.Negative}})
	assert.Equal(t, 10.0, p.Values[0])
}

func TestActivityClassifier(t *testing.T) {
	entries := []journal.Entry{
		{Text: "Went for a RUN before work", Score: score(0.9)},
		{Text: "yoga class", Score: score(0.7)},
		{Text: "stayed in", Tags: []string{"Activity"}, Score: score(0.8)},
		{Text: "running late again", Score: score(0.2)}, // "running" is not a whole word
		{Text: "desk all day", Score: score(0.4)},
	}
	p := ActivityClassifier{}.Classify(entries)

	assert.Equal(t, []string{"Active", "Inactive"}, p.Labels)
	assert.Equal(t, 8.0, p.Values[0]) // (9+7+8)/3
	assert.Equal(t, 3.0, p.Values[1]) // (2+4)/2
	assert.Equal(t, 1, p.Matched)
	assert.Equal(t, 4, p.Heuristic)
	assert.Equal(t, ConfidenceHeuristic, p.Confidence)
}

func TestActivityClassifierEmpty(t *testing.T) {
	p := ActivityClassifier{}.Classify(nil)
	assert.Equal(t, []float64{0, 0}, p.Values)
}

func TestSleepClassifier(t *testing.T) {
	entries := []journal.Entry{
		{Text: "could not sleep", Score: score(0.2)},
		{Text: "good night", Tags: []string{"sleep"}, Score: score(0.8)},
		{Text: "sleepy afternoon", Score: score(1)}, // not a whole word
	}
	p := SleepClassifier{}.Classify(entries)

	assert.Equal(t, 5.0, p.Values[0])
	assert.Equal(t, 1, p.Matched)
	assert.Equal(t, 1, p.Heuristic)
	assert.Equal(t, ConfidenceHeuristic, p.Confidence)

	tagged := SleepClassifier{}.Classify(entries[1:2])
	assert.Equal(t, ConfidenceTagged, tagged.Confidence)
}

func TestDefaultClassifiersOrder(t *testing.T) {
	var names []string
	for _, c := range DefaultClassifiers(DefaultStressMapping()) {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"stress", "activity", "sleep"}, names)
}
