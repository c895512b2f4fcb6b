package analytics

import (
	"math"
	"regexp"
	"strconv"

	"github.com/abelbrown/moodlog/internal/journal"
)

// Confidence tags how a panel's values were obtained.
const (
	// ConfidenceHeuristic: at least one value came from a keyword or
	// sentiment guess. Not validated analysis.
	ConfidenceHeuristic = "heuristic"
	// ConfidenceTagged: every value came from entries explicitly tagged
	// by the user.
	ConfidenceTagged = "tagged"
)

// Panel is one derived bar chart.
type Panel struct {
	Name       string
	Labels     []string
	Values     []float64
	Max        float64
	Confidence string
	Heuristic  int // entries classified by keyword or sentiment guess
	Matched    int // entries classified by explicit tag
}

func (p *Panel) settle() {
	if p.Matched > 0 && p.Heuristic == 0 {
		p.Confidence = ConfidenceTagged
	} else {
		p.Confidence = ConfidenceHeuristic
	}
}

// Classifier derives one panel from entries. Implementations must be pure.
type Classifier interface {
	Name() string
	Classify(entries []journal.Entry) Panel
}

// StressMapping is the 0..10 stress guess for an untagged entry.
type StressMapping struct {
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Positive float64 `json:"positive"`
}

// DefaultStressMapping returns NEGATIVE 8, NEUTRAL 5, POSITIVE 3.
func DefaultStressMapping() StressMapping {
	return StressMapping{Negative: 8, Neutral: 5, Positive: 3}
}

func (m StressMapping) value(s journal.Sentiment) float64 {
	switch s {
	case journal.Negative:
		return m.Negative
	case journal.Positive:
		return m.Positive
	default:
		return m.Neutral
	}
}

var percentRE = regexp.MustCompile(`(\d+)%`)

// StressClassifier averages a 0..10 stress level across all entries.
//
// Entries tagged "stress" contribute a percentage found in their text (as
// written by assessment results, "72% (High)"), else their explicit score,
// else 50%. Everything else contributes Mapping[sentiment].
type StressClassifier struct {
	Mapping StressMapping
}

// Name implements Classifier.
func (StressClassifier) Name() string { return "stress" }

// Classify implements Classifier.
func (c StressClassifier) Classify(entries []journal.Entry) Panel {
	p := Panel{Name: "Stress", Labels: []string{"Stress"}, Max: 10}

	var sum float64
	for _, e := range entries {
		if e.HasTag("stress") {
			sum += taggedStress(e)
			p.Matched++
			continue
		}
		sum += c.Mapping.value(e.Sentiment)
		p.Heuristic++
	}

	avg := 0.0
	if n := len(entries); n > 0 {
		avg = round1(sum / float64(n))
	}
	p.Values = []float64{avg}
	p.settle()
	return p
}

func taggedStress(e journal.Entry) float64 {
	pct := 50.0
	if m := percentRE.FindStringSubmatch(e.Text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			pct = float64(v)
		}
	} else if e.Score != nil {
		pct = math.Round(*e.Score * 100)
	}
	pct = math.Max(0, math.Min(100, math.Round(pct)))
	return pct / 10
}

var activityRE = regexp.MustCompile(`(?i)\b(run|walk|gym|exercise|workout|yoga|cycle|swim)\b`)

// ActivityClassifier compares mood on active versus inactive days.
// An entry is active when its text mentions exercise or it carries an
// activity tag.
type ActivityClassifier struct{}

// Name implements Classifier.
func (ActivityClassifier) Name() string { return "activity" }

// Classify implements Classifier.
func (ActivityClassifier) Classify(entries []journal.Entry) Panel {
	p := Panel{Name: "Activity", Labels: []string{"Active", "Inactive"}, Max: 10}

	var active, inactive []int
	for _, e := range entries {
		mood := MoodScale(e.ScoreOr())
		switch {
		case e.HasTag("activity"):
			active = append(active, mood)
			p.Matched++
		case activityRE.MatchString(e.Text):
			active = append(active, mood)
			p.Heuristic++
		default:
			inactive = append(inactive, mood)
			p.Heuristic++
		}
	}

	p.Values = []float64{roundedMean(active), roundedMean(inactive)}
	p.settle()
	return p
}

var sleepRE = regexp.MustCompile(`(?i)\bsleep\b`)

// SleepClassifier averages mood over entries that mention sleep.
type SleepClassifier struct{}

// Name implements Classifier.
func (SleepClassifier) Name() string { return "sleep" }

// Classify implements Classifier.
func (SleepClassifier) Classify(entries []journal.Entry) Panel {
	p := Panel{Name: "Sleep", Labels: []string{"Sleep Mood"}, Max: 10}

	var moods []int
	for _, e := range entries {
		switch {
		case e.HasTag("sleep"):
			p.Matched++
		case sleepRE.MatchString(e.Text):
			p.Heuristic++
		default:
			continue
		}
		moods = append(moods, MoodScale(e.ScoreOr()))
	}

	p.Values = []float64{roundedMean(moods)}
	p.settle()
	return p
}

// DefaultClassifiers returns the three derived panels in display order.
func DefaultClassifiers(m StressMapping) []Classifier {
	return []Classifier{StressClassifier{Mapping: m}, ActivityClassifier{}, SleepClassifier{}}
}

func roundedMean(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return math.Round(float64(sum) / float64(len(vals)))
}
