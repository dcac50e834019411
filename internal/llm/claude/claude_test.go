package claude

import (
	"strings"
	"testing"
	"time"

	"llm-event-tracker/internal/store"
	"llm-event-tracker/internal/types"
)

func TestParseReplyMultipleBlocks(t *testing.T) {
	reply := `EVENT_ID: fed-rate-decision
RELEVANCE: Strong rate-cut signal in the post
RELEVANCE_SCORE: 0.9
SCORE: 0.7
TREND: improving

EVENT_ID: nvda-earnings
RELEVANCE: Chip demand mentioned in passing
RELEVANCE_SCORE: 0.6
SCORE: -0.2
TREND: worsening`

	results := parseReply(reply, 0.5, time.Now().UTC())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].EventID != "fed-rate-decision" {
		t.Errorf("expected first event 'fed-rate-decision', got %q", results[0].EventID)
	}
	if results[0].Insight.Score != 0.7 {
		t.Errorf("expected score 0.7, got %v", results[0].Insight.Score)
	}
	if results[0].Insight.Trend != types.TrendImproving {
		t.Errorf("expected trend improving, got %q", results[0].Insight.Trend)
	}
	if results[1].EventID != "nvda-earnings" {
		t.Errorf("expected second event 'nvda-earnings', got %q", results[1].EventID)
	}
	if results[1].Insight.Score != -0.2 {
		t.Errorf("expected score -0.2, got %v", results[1].Insight.Score)
	}
}

func TestParseReplyRelevanceThreshold(t *testing.T) {
	reply := `EVENT_ID: fed-rate-decision
RELEVANCE: Tangential mention only
RELEVANCE_SCORE: 0.3
SCORE: 0.5
TREND: stable

EVENT_ID: nvda-earnings
RELEVANCE: Directly about the earnings call
RELEVANCE_SCORE: 0.8
SCORE: 0.6
TREND: improving`

	results := parseReply(reply, 0.5, time.Now().UTC())
	if len(results) != 1 {
		t.Fatalf("expected 1 result after threshold filter, got %d", len(results))
	}
	if results[0].EventID != "nvda-earnings" {
		t.Errorf("expected surviving event 'nvda-earnings', got %q", results[0].EventID)
	}
}

func TestParseReplyNotRelevantFallback(t *testing.T) {
	reply := "NOT RELEVANT: post is about gardening, no tracked event applies"

	results := parseReply(reply, 0.5, time.Now().UTC())
	if len(results) != 1 {
		t.Fatalf("expected 1 fallback result, got %d", len(results))
	}
	r := results[0]
	if r.Attributed() {
		t.Errorf("fallback result must be unattributed, got event %q", r.EventID)
	}
	if !strings.HasPrefix(r.Insight.Text, "LLM: ") {
		t.Errorf("fallback text must carry the LLM prefix, got %q", r.Insight.Text)
	}
	if !strings.Contains(r.Insight.Text, "gardening") {
		t.Errorf("fallback text must carry the model's reasoning, got %q", r.Insight.Text)
	}
	if r.Insight.Score != 0 {
		t.Errorf("fallback score must be neutral, got %v", r.Insight.Score)
	}
	if r.Insight.Trend != types.TrendNA {
		t.Errorf("fallback trend must be n/a, got %q", r.Insight.Trend)
	}
}

func TestParseReplyAllFilteredFallback(t *testing.T) {
	reply := `EVENT_ID: fed-rate-decision
RELEVANCE: Barely related
RELEVANCE_SCORE: 0.1
SCORE: 0.5
TREND: stable`

	results := parseReply(reply, 0.5, time.Now().UTC())
	if len(results) != 1 {
		t.Fatalf("expected 1 fallback result, got %d", len(results))
	}
	if results[0].Attributed() {
		t.Errorf("all-filtered reply must fall back to an unattributed result")
	}
}

func TestParseReplyIncompleteBlockDropped(t *testing.T) {
	reply := `EVENT_ID: fed-rate-decision
RELEVANCE: Missing the scores

EVENT_ID: nvda-earnings
RELEVANCE: Complete block
RELEVANCE_SCORE: 0.9
SCORE: 0.4
TREND: improving`

	results := parseReply(reply, 0.5, time.Now().UTC())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].EventID != "nvda-earnings" {
		t.Errorf("incomplete block must be dropped, got %q", results[0].EventID)
	}
}

func TestParseReplyMalformedScoreSkipped(t *testing.T) {
	reply := `EVENT_ID: fed-rate-decision
RELEVANCE: Has an unparseable score
RELEVANCE_SCORE: high
SCORE: 0.5
TREND: stable`

	results := parseReply(reply, 0.5, time.Now().UTC())
	if len(results) != 1 || results[0].Attributed() {
		t.Fatalf("block with malformed relevance score must not survive, got %+v", results)
	}
}

func TestNewAnalyzerCarriesConfiguredTemperature(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	var cfg store.Config
	cfg.LLM.AnalysisModel = "claude-3-7-sonnet-20250219"
	cfg.LLM.MaxTokens = 500
	cfg.LLM.Temperature = 0.2
	cfg.LLM.CallsPerMinute = 15
	cfg.Sentiment.RelevanceThreshold = 0.5

	a, err := NewAnalyzer(&cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.temperature != 0.2 {
		t.Errorf("expected configured temperature 0.2, got %v", a.temperature)
	}
	if a.relevanceThreshold != 0.5 {
		t.Errorf("expected relevance threshold 0.5, got %v", a.relevanceThreshold)
	}
}

func TestBuildPromptContainsEventIDs(t *testing.T) {
	news := types.NewsItem{
		ID:        "n1",
		Title:     "Fed minutes hint at cuts",
		Snippet:   "The committee discussed easing.",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	events := []*types.Event{
		{ID: "fed-rate-decision", Name: "Fed Rate Decision", Keywords: []string{"fed", "rates"}},
	}

	prompt := buildPrompt(news, events)
	for _, want := range []string{"fed-rate-decision", "Fed minutes hint at cuts", "EVENT_ID:", "NOT RELEVANT:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
