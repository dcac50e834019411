package interfaces

import (
	"context"

	"llm-event-tracker/internal/types"
)

// FeedClient fetches recent posts from one social feed. Implementations own
// their rate limiting; callers treat every call as slow and fallible.
type FeedClient interface {
	Fetch(ctx context.Context, feedID string, limit int) ([]types.NewsItem, error)
}

// Analyzer judges one news item's relevance and sentiment against the
// tracked events. Results with an empty EventID are audit-log-only.
type Analyzer interface {
	Analyze(ctx context.Context, news types.NewsItem, events []*types.Event) ([]types.AnalysisResult, error)
}

// Discoverer proposes up to n upcoming financial events with unique IDs and
// future UTC event times. Callers filter ID collisions and tolerate fewer.
type Discoverer interface {
	Discover(ctx context.Context, n int) ([]*types.Event, error)
}
