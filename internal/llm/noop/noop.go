package noop

import (
	"context"

	"llm-event-tracker/internal/types"
)

// Analyzer is the no-provider analyzer: every news item yields a single
// unattributed neutral judgment.
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

func (a *Analyzer) Analyze(ctx context.Context, news types.NewsItem, events []*types.Event) ([]types.AnalysisResult, error) {
	return []types.AnalysisResult{{
		Insight: types.Insight{
			Text:      "No LLM provider configured",
			Score:     0,
			Trend:     types.TrendNA,
			Timestamp: news.AddedAt,
		},
	}}, nil
}

// Discoverer is the no-provider discoverer: it never proposes events.
type Discoverer struct{}

func NewDiscoverer() *Discoverer { return &Discoverer{} }

func (d *Discoverer) Discover(ctx context.Context, n int) ([]*types.Event, error) {
	return nil, nil
}
