package claude

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"llm-event-tracker/internal/api"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/store"
	"llm-event-tracker/internal/trace"
	"llm-event-tracker/internal/types"
)

const anthropicVersion = "2023-06-01"

// Analyzer judges news relevance and sentiment against tracked events using
// the Anthropic messages API.
type Analyzer struct {
	client             *api.Client
	limiter            *rate.Limiter
	model              string
	maxTokens          int
	temperature        float32
	relevanceThreshold float64
}

// NewAnalyzer creates a Claude-backed analyzer. ANTHROPIC_API_KEY must be
// set in the environment.
func NewAnalyzer(cfg *store.Config) (*Analyzer, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY missing")
	}

	return &Analyzer{
		client: api.NewClient(
			api.WithBaseURL("https://api.anthropic.com"),
			api.WithTimeout(60*time.Second),
			api.WithHeader("x-api-key", apiKey),
			api.WithHeader("anthropic-version", anthropicVersion),
		),
		limiter:            rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.LLM.CallsPerMinute)), 1),
		model:              cfg.LLM.AnalysisModel,
		maxTokens:          cfg.LLM.MaxTokens,
		temperature:        cfg.LLM.Temperature,
		relevanceThreshold: cfg.Sentiment.RelevanceThreshold,
	}, nil
}

// Analyze asks the model to judge one news item against every tracked event
// and returns the parsed insights. A reply relevant to no event yields a
// single unattributed result carrying the model's reasoning.
func (a *Analyzer) Analyze(ctx context.Context, news types.NewsItem, events []*types.Event) ([]types.AnalysisResult, error) {
	ctx, span := trace.StartSpan(ctx, "analyze-news-sentiment")
	defer span.End()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Analyzing news item", "news_id", news.ID, "title", news.Title, "events", len(events))

	body := map[string]any{
		"model":       a.model,
		"max_tokens":  a.maxTokens,
		"temperature": a.temperature,
		"system":      "Financial analyst providing event-relevant news.",
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(news, events)},
		},
	}

	resp, err := a.client.POST(ctx, "/v1/messages", body)
	if err != nil {
		return nil, fmt.Errorf("claude call failed: %w", err)
	}

	var r struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := resp.ParseJSON(&r); err != nil {
		return nil, err
	}
	if len(r.Content) == 0 {
		return nil, errors.New("no content in claude reply")
	}

	results := parseReply(r.Content[0].Text, a.relevanceThreshold, time.Now().UTC())
	logger.Info(ctx, "Analysis finished", "news_id", news.ID, "insights", len(results))
	return results, nil
}

// buildPrompt renders the analysis request in the line-oriented reply format
// the parser expects.
func buildPrompt(news types.NewsItem, events []*types.Event) string {
	eventsInfo := make([]string, 0, len(events))
	for _, e := range events {
		eventsInfo = append(eventsInfo, fmt.Sprintf(
			"Event: %s (ID: %s)\nKeywords: %s\nCurrent sentiment: %.2f",
			e.Name, e.ID, strings.Join(e.Keywords, ", "), e.CurrentSentimentScore))
	}

	parts := []string{
		"Given the following news item, analyze its relevance and sentiment for each of the upcoming events.",
		fmt.Sprintf("\nNews:\nTitle: %s\nSnippet: %s\nTimestamp: %s",
			news.Title, news.Snippet, news.Timestamp.Format("2006-01-02 15:04:05 UTC")),
		fmt.Sprintf("\nUpcoming Events:\n%s", strings.Join(eventsInfo, "\n\n")),
		"\nFor each event that is truly relevant to this news, provide:",
		"1. A brief explanation of the relevance",
		"2. A relevance score from 0 (not relevant) to 1 (highly relevant)",
		"3. A sentiment score from -1 (very negative) to 1 (very positive)",
		"4. The trend (improving/worsening/stable) compared to current sentiment",
		"\nIf the news is not relevant to an event, do not include that event in your response at all.",
		"If the news is not relevant to any event, reply with a single short sentence explaining why, prefixed with 'NOT RELEVANT:'.",
		"\nIMPORTANT: For each relevant event, always use the event's ID (not name) in your output.",
		"\nFormat:\nEVENT_ID: <event_id>\nRELEVANCE: <explanation>\nRELEVANCE_SCORE: <number between 0 and 1>\nSCORE: <number between -1 and 1>\nTREND: <improving/worsening/stable>\n",
	}
	return strings.Join(parts, "\n")
}

// parsedBlock is one EVENT_ID block accumulated while scanning the reply.
type parsedBlock struct {
	eventID        string
	relevance      string
	relevanceScore *float64
	score          *float64
	trend          *string
}

func (b parsedBlock) complete() bool {
	return b.eventID != "" && b.relevance != "" && b.relevanceScore != nil && b.score != nil && b.trend != nil
}

// parseReply scans the model's line-oriented reply into analysis results,
// dropping blocks under the relevance threshold. When nothing survives, the
// whole reply becomes one unattributed result so the reasoning still shows
// up in the audit log.
func parseReply(text string, relevanceThreshold float64, now time.Time) []types.AnalysisResult {
	var blocks []parsedBlock
	var cur parsedBlock

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "EVENT_ID:"):
			if cur.complete() {
				blocks = append(blocks, cur)
			}
			cur = parsedBlock{eventID: strings.TrimSpace(strings.TrimPrefix(line, "EVENT_ID:"))}
		case strings.HasPrefix(line, "RELEVANCE:"):
			cur.relevance = strings.TrimSpace(strings.TrimPrefix(line, "RELEVANCE:"))
		case strings.HasPrefix(line, "RELEVANCE_SCORE:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "RELEVANCE_SCORE:")), 64); err == nil {
				cur.relevanceScore = &v
			}
		case strings.HasPrefix(line, "SCORE:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "SCORE:")), 64); err == nil {
				cur.score = &v
			}
		case strings.HasPrefix(line, "TREND:"):
			t := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "TREND:")))
			cur.trend = &t
		}
	}
	if cur.complete() {
		blocks = append(blocks, cur)
	}

	results := make([]types.AnalysisResult, 0, len(blocks))
	for _, b := range blocks {
		if *b.relevanceScore < relevanceThreshold {
			continue
		}
		results = append(results, types.AnalysisResult{
			EventID: b.eventID,
			Insight: types.Insight{
				Text:      b.relevance,
				Score:     *b.score,
				Trend:     types.Trend(*b.trend),
				Timestamp: now,
			},
		})
	}

	if len(results) == 0 {
		results = append(results, types.AnalysisResult{
			Insight: types.Insight{
				Text:      "LLM: " + strings.TrimSpace(text),
				Score:     0,
				Trend:     types.TrendNA,
				Timestamp: now,
			},
		})
	}
	return results
}
