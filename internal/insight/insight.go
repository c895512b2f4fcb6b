// Package insight produces the analysis and insights panel content for a
// newly written entry, either from the backend's classification or from a
// local word-count estimate when the backend could not be reached.
package insight

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/abelbrown/moodlog/internal/journal"
)

var (
	positiveWords = []string{"great", "good", "happy", "relaxed", "calm", "better", "proud", "grateful", "excited", "peaceful", "energized"}
	negativeWords = []string{"sad", "anxious", "anxiety", "stress", "stressed", "angry", "upset", "tired", "worried", "fear", "panic", "overwhelmed", "depressed"}

	positiveRe = wordsRe(positiveWords)
	negativeRe = wordsRe(negativeWords)
)

func wordsRe(words []string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\b`)
}

// Analysis is what the analysis panel shows.
type Analysis struct {
	Sentiment journal.Sentiment
	Score     float64 // 0..1
	Local     bool    // estimated offline
}

// ConfidencePct is the percentage shown next to the label. Backend
// NEUTRAL results always read 50%, as does a zero backend score.
func (a Analysis) ConfidencePct() int {
	if !a.Local && (a.Sentiment == journal.Neutral || a.Score == 0) {
		return 50
	}
	return int(math.Round(a.Score * 100))
}

// FromEntry reads the backend's analysis off a created entry.
func FromEntry(e journal.Entry) Analysis {
	return Analysis{Sentiment: e.Sentiment, Score: e.ScoreOr()}
}

// LocalAnalyze estimates sentiment by counting mood words, with add-one
// smoothing: (pos+1)/(pos+neg+2). Above 0.6 is POSITIVE, below 0.4
// NEGATIVE.
func LocalAnalyze(text string) Analysis {
	t := strings.ToLower(text)
	pos := len(positiveRe.FindAllStringIndex(t, -1))
	neg := len(negativeRe.FindAllStringIndex(t, -1))

	score := float64(pos+1) / float64(pos+neg+2)
	s := journal.Neutral
	switch {
	case score > 0.6:
		s = journal.Positive
	case score < 0.4:
		s = journal.Negative
	}
	return Analysis{Sentiment: s, Score: score, Local: true}
}

var suggestions = map[bool]map[journal.Sentiment][]string{
	false: {
		journal.Negative: {
			"Try a 5-minute breathing exercise to reduce stress.",
			"Consider writing about one positive moment today.",
		},
		journal.Neutral: {
			"Expand on your feelings to help AI provide deeper insights.",
			"Add a mood rating (1-10) next time for better tracking.",
		},
		journal.Positive: {
			"Great job! Consider setting a small goal to keep momentum.",
			"Save this entry as a “gratitude” tag for future reflection.",
		},
	},
	true: {
		journal.Negative: {
			"Try a 5-minute breathing exercise to reduce stress.",
			"Write down one positive moment from today.",
		},
		journal.Neutral: {
			"Add a bit more detail about how you felt to improve insights.",
			"Consider a short walk or hydration break.",
		},
		journal.Positive: {
			"Great job! Keep the momentum with a small goal.",
			"Note what contributed to your positive mood.",
		},
	},
}

// Suggestions returns the two insights for a result.
func Suggestions(a Analysis) []string {
	return suggestions[a.Local][a.Sentiment]
}

// Headline is the analysis panel title, e.g. "POSITIVE Sentiment (Local)".
func (a Analysis) Headline() string {
	h := string(a.Sentiment) + " Sentiment"
	if a.Local {
		h += " (Local)"
	}
	return h
}

// Source is the badge under the headline.
func (a Analysis) Source() string {
	if a.Local {
		return "Offline Heuristic Analysis"
	}
	return "Real-time BERT Analysis"
}

// Bullets formats suggestions as a bullet list.
func Bullets(items []string) string {
	var b strings.Builder
	for i, s := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s", s)
	}
	return b.String()
}
