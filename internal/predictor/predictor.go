package predictor

import (
	"strings"

	"llm-event-tracker/internal/types"
)

// RecentWindow is how many of the latest insights feed the aggregation.
const RecentWindow = 5

// Decision thresholds on the average score of the recent window.
const (
	callThreshold = 0.3
	putThreshold  = -0.3
)

// Predict aggregates the event's most recent insights into a predicted
// action and an explanation, returning a new event value. An event with no
// insights is returned unchanged. Predict does not check the lock; the
// caller discards its result for locked events.
func Predict(event *types.Event) *types.Event {
	if len(event.Insights) == 0 {
		return event
	}

	recent := event.Insights
	if len(recent) > RecentWindow {
		recent = recent[len(recent)-RecentWindow:]
	}

	var sum float64
	texts := make([]string, 0, len(recent))
	for _, in := range recent {
		sum += in.Score
		texts = append(texts, in.Text)
	}
	avg := sum / float64(len(recent))

	action := types.ActionHold
	switch {
	case avg > callThreshold:
		action = types.ActionCall
	case avg < putThreshold:
		action = types.ActionPut
	}

	updated := event.Clone()
	updated.PredictedAction = action
	updated.ThinkingText = strings.Join(texts, "\n")
	return updated
}

// AverageScore returns the mean score of the recent window, or 0 for an
// event with no insights.
func AverageScore(event *types.Event) float64 {
	if len(event.Insights) == 0 {
		return 0
	}
	recent := event.Insights
	if len(recent) > RecentWindow {
		recent = recent[len(recent)-RecentWindow:]
	}
	var sum float64
	for _, in := range recent {
		sum += in.Score
	}
	return sum / float64(len(recent))
}
