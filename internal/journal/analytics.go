package journal

import (
	"encoding/json"
	"time"
)

// OverviewCounts is the per-sentiment entry count.
type OverviewCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Total returns the sum of all counts.
func (c OverviewCounts) Total() int {
	return c.Positive + c.Neutral + c.Negative
}

// Get returns the count for one sentiment.
func (c OverviewCounts) Get(s Sentiment) int {
	switch s {
	case Positive:
		return c.Positive
	case Negative:
		return c.Negative
	default:
		return c.Neutral
	}
}

// Add increments the counter for s.
func (c *OverviewCounts) Add(s Sentiment) {
	switch s {
	case Positive:
		c.Positive++
	case Negative:
		c.Negative++
	default:
		c.Neutral++
	}
}

// Overview is the backend's precomputed summary. Counts is nil when the
// backend had nothing usable, which callers treat as "not available".
type Overview struct {
	Counts        *OverviewCounts
	AverageMood   *float64
	CurrentStreak int
	TotalEntries  int
}

type wireOverview struct {
	Counts   *OverviewCounts `json:"counts"`
	Overview *struct {
		SentimentSummary *OverviewCounts `json:"sentiment_summary"`
		AverageMood      json.RawMessage `json:"average_mood"`
		CurrentStreak    json.RawMessage `json:"current_streak"`
		TotalEntries     json.RawMessage `json:"total_entries"`
	} `json:"overview"`
}

// UnmarshalJSON accepts both {counts:{...}} and the nested
// {overview:{sentiment_summary:{...}}} shapes.
func (o *Overview) UnmarshalJSON(data []byte) error {
	var w wireOverview
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Overview{Counts: w.Counts}
	if w.Overview != nil {
		if o.Counts == nil {
			o.Counts = w.Overview.SentimentSummary
		}
		// average_mood is the string "No data" when there is nothing to average.
		o.AverageMood = rawFloat(w.Overview.AverageMood)
		if n := rawInt(w.Overview.CurrentStreak); n != nil {
			o.CurrentStreak = *n
		}
		if n := rawInt(w.Overview.TotalEntries); n != nil {
			o.TotalEntries = *n
		}
	}
	if o.Counts != nil && o.Counts.Total() == 0 {
		o.Counts = nil
	}
	return nil
}

// DateLayout is the wire format of TrendPoint.Date.
const DateLayout = "2006-01-02"

// TrendPoint is one day's mean sentiment score.
type TrendPoint struct {
	Date     time.Time
	AvgScore float64
}

type wireTrendPoint struct {
	Date     string   `json:"date"`
	AvgScore *float64 `json:"avg_score"`
}

// UnmarshalJSON decodes {"date":"2006-01-02","avg_score":0.7}. A missing
// average is DefaultScore.
func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	var w wireTrendPoint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Date = ParseTime(w.Date)
	p.AvgScore = DefaultScore
	if w.AvgScore != nil {
		p.AvgScore = clamp01(*w.AvgScore)
	}
	return nil
}

// MarshalJSON writes the wire shape.
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date     string  `json:"date"`
		AvgScore float64 `json:"avg_score"`
	}{Date: p.Date.Format(DateLayout), AvgScore: p.AvgScore})
}

// User is the authenticated account.
type User struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email,omitempty"`
}

// AuthResult is returned by login and signup.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// EventJournalCreated is pushed by the backend after every new entry.
const EventJournalCreated = "journal_created"

// PushEvent is one server-push payload.
type PushEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
