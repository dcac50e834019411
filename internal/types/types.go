package types

import (
	"time"
)

// Action is the directional prediction derived for an event.
type Action string

const (
	ActionCall Action = "Call"
	ActionPut  Action = "Put"
	ActionHold Action = "Hold"
	ActionNone Action = ""
)

// Trend describes how sentiment is moving relative to the event's running score.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
	TrendNA        Trend = "n/a"
)

// Insight is one sentiment judgment about one news item relative to one event.
// Insights are owned by the event they are appended to and never mutated.
type Insight struct {
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Trend     Trend     `json:"trend"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is a tracked financial occurrence with a resolution time and
// accumulated sentiment insights. EventTime is always UTC.
type Event struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	EventTime             time.Time  `json:"event_time"`
	Keywords              []string   `json:"keywords"`
	CurrentSentimentScore float64    `json:"current_sentiment_score"`
	PredictedAction       Action     `json:"predicted_action,omitempty"`
	ThinkingText          string     `json:"thinking_text,omitempty"`
	IsLocked              bool       `json:"is_locked"`
	LockTime              *time.Time `json:"lock_time,omitempty"`
	Insights              []Insight  `json:"insights"`
}

// Expired reports whether the event's resolution time has passed.
func (e *Event) Expired(now time.Time) bool {
	return e.EventTime.Before(now)
}

// Clone returns a deep copy so callers can derive a new event value without
// aliasing the repository's keyword or insight slices.
func (e *Event) Clone() *Event {
	c := *e
	c.Keywords = append([]string(nil), e.Keywords...)
	c.Insights = append([]Insight(nil), e.Insights...)
	if e.LockTime != nil {
		t := *e.LockTime
		c.LockTime = &t
	}
	return &c
}

// NewsItem is one ingested social post. Immutable after creation.
// Timestamp is the content creation time (retention ordering); AddedAt is
// the ingestion time (display ordering).
type NewsItem struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
	AddedAt   time.Time `json:"added_at"`
}

// Portfolio is the virtual portfolio snapshot.
type Portfolio struct {
	CurrentValue float64 `json:"current_value"`
}

// AnalysisResult is one judgment produced by the sentiment analyzer for one
// news item. An empty EventID means the judgment is not tied to any tracked
// event and is recorded in the audit log only.
type AnalysisResult struct {
	EventID string
	Insight Insight
}

// Attributed reports whether the result targets a specific tracked event.
func (r AnalysisResult) Attributed() bool { return r.EventID != "" }

// LLMLogEntry is one audit-log record of an analyzer judgment, kept for
// display and debugging.
type LLMLogEntry struct {
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Trend     Trend     `json:"trend"`
	Timestamp time.Time `json:"timestamp"`
	NewsID    string    `json:"news_id"`
	NewsTitle string    `json:"news_title"`
	EventID   string    `json:"event_id,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}
