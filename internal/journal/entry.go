// Package journal defines the journal entry model shared by every moodlog
// component.
//
// Entries are created and analyzed by the backend; the client only decodes
// them. Decoding is deliberately lenient: the backend has shipped several
// response shapes over time, so missing or mistyped fields fall back to
// defaults instead of failing the whole response.
package journal

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Sentiment is the backend's classification of an entry.
type Sentiment string

const (
	Positive Sentiment = "POSITIVE"
	Neutral  Sentiment = "NEUTRAL"
	Negative Sentiment = "NEGATIVE"
)

// Order is the fixed preference order used when scanning for a maximum.
var Order = [3]Sentiment{Positive, Neutral, Negative}

// ParseSentiment normalizes a label case-insensitively.
// Anything unrecognized is NEUTRAL.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case Positive:
		return Positive
	case Negative:
		return Negative
	default:
		return Neutral
	}
}

// Title returns "Positive", "Neutral" or "Negative".
func (s Sentiment) Title() string {
	switch s {
	case Positive:
		return "Positive"
	case Negative:
		return "Negative"
	default:
		return "Neutral"
	}
}

// DefaultScore is used when an entry carries no usable score.
const DefaultScore = 0.5

// Entry is one journal submission.
type Entry struct {
	ID         string
	Text       string
	Timestamp  time.Time // zero when the backend sent nothing parsable
	Sentiment  Sentiment
	Score      *float64 // explicit score field
	Confidence *float64 // nested sentiment_analysis confidence
	MoodRating *int
	Tags       []string
}

// ScoreOr resolves the effective score: explicit score, else a non-zero
// nested confidence, else DefaultScore. Always within [0,1].
func (e Entry) ScoreOr() float64 {
	v := DefaultScore
	switch {
	case e.Score != nil:
		v = *e.Score
	case e.Confidence != nil && *e.Confidence != 0:
		v = *e.Confidence
	}
	return clamp01(v)
}

// HasTag reports whether any tag contains sub (case-insensitive).
func (e Entry) HasTag(sub string) bool {
	sub = strings.ToLower(sub)
	for _, t := range e.Tags {
		if strings.Contains(strings.ToLower(t), sub) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// wireEntry mirrors the loosest backend shape we have seen.
type wireEntry struct {
	ID                json.RawMessage `json:"id"`
	Text              string          `json:"text"`
	Timestamp         string          `json:"timestamp"`
	CreatedAt         string          `json:"created_at"`
	CreatedAtCamel    string          `json:"createdAt"`
	Sentiment         json.RawMessage `json:"sentiment"`
	Score             json.RawMessage `json:"score"`
	MoodRating        json.RawMessage `json:"mood_rating"`
	Tags              json.RawMessage `json:"tags"`
	SentimentAnalysis *wireAnalysis   `json:"sentiment_analysis"`
}

type wireAnalysis struct {
	Sentiment       string          `json:"sentiment"`
	Label           string          `json:"label"`
	ConfidenceScore json.RawMessage `json:"confidence_score"`
	Score           json.RawMessage `json:"score"`
}

// UnmarshalJSON decodes an entry, defaulting anything malformed.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Entry{
		ID:         rawID(w.ID),
		Text:       w.Text,
		MoodRating: rawInt(w.MoodRating),
		Tags:       rawTags(w.Tags),
	}

	ts := w.Timestamp
	if ts == "" {
		ts = w.CreatedAt
	}
	if ts == "" {
		ts = w.CreatedAtCamel
	}
	e.Timestamp = ParseTime(ts)

	label := rawString(w.Sentiment)
	if w.SentimentAnalysis != nil {
		if label == "" {
			label = w.SentimentAnalysis.Sentiment
		}
		if label == "" {
			label = w.SentimentAnalysis.Label
		}
		e.Confidence = rawFloat(w.SentimentAnalysis.ConfidenceScore)
		if e.Confidence == nil {
			e.Confidence = rawFloat(w.SentimentAnalysis.Score)
		}
	}
	e.Sentiment = ParseSentiment(label)
	e.Score = rawFloat(w.Score)
	return nil
}

// MarshalJSON writes the backend's canonical shape.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := struct {
		ID         string    `json:"id"`
		Text       string    `json:"text"`
		Timestamp  string    `json:"timestamp,omitempty"`
		Sentiment  Sentiment `json:"sentiment"`
		Score      *float64  `json:"score,omitempty"`
		MoodRating *int      `json:"mood_rating,omitempty"`
		Tags       []string  `json:"tags"`
	}{
		ID:         e.ID,
		Text:       e.Text,
		Sentiment:  e.Sentiment,
		Score:      e.Score,
		MoodRating: e.MoodRating,
		Tags:       e.Tags,
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.Format(time.RFC3339Nano)
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return json.Marshal(out)
}

// timeLayouts are tried in order. Layouts without an offset are read in
// the local zone, the way the backend's naive isoformat() output is meant.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses a backend timestamp. Returns the zero time on failure.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func rawFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	// Numbers occasionally arrive quoted.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	return nil
}

func rawInt(raw json.RawMessage) *int {
	f := rawFloat(raw)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func rawTags(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanTags(list)
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return cleanTags(strings.Split(joined, ","))
	}
	return nil
}

func cleanTags(in []string) []string {
	var out []string
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
