package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"llm-event-tracker/internal/api"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/store"
	"llm-event-tracker/internal/trace"
	"llm-event-tracker/internal/types"
)

// Discoverer proposes upcoming financial events using the OpenAI chat API.
type Discoverer struct {
	client  *api.Client
	limiter *rate.Limiter
	model   string
}

// NewDiscoverer creates an OpenAI-backed event discoverer. OPENAI_API_KEY
// must be set in the environment.
func NewDiscoverer(cfg *store.Config) (*Discoverer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY missing")
	}

	return &Discoverer{
		client: api.NewClient(
			api.WithBaseURL("https://api.openai.com"),
			api.WithTimeout(60*time.Second),
			api.WithHeader("Authorization", "Bearer "+apiKey),
		),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.LLM.CallsPerMinute)), 1),
		model:   cfg.LLM.DiscoveryModel,
	}, nil
}

// eventItem mirrors one event in the model's JSON reply. IDs arrive as
// strings or numbers depending on the model's mood.
type eventItem struct {
	ID        eventID  `json:"id"`
	Name      string   `json:"name"`
	EventTime string   `json:"event_time"`
	Keywords  []string `json:"keywords"`
}

// eventID accepts either a JSON string or a JSON number, rendering
// numbers via json.Number.String().
type eventID string

func (id *eventID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = eventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = eventID(n.String())
	return nil
}

func (id eventID) String() string { return string(id) }

type eventList struct {
	Events []eventItem `json:"events"`
}

// Discover asks the model for the next n upcoming financial events and
// returns those that parse cleanly. Fewer than n is not an error.
func (d *Discoverer) Discover(ctx context.Context, n int) ([]*types.Event, error) {
	ctx, span := trace.StartSpan(ctx, "discover-events")
	defer span.End()

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"What are the next top %d upcoming financial events? Focus on events within the next week or two. "+
			"Respond ONLY with valid JSON: {\"events\": [{\"id\": \"<slug>\", \"name\": \"<name>\", "+
			"\"event_time\": \"<ISO-8601 UTC>\", \"keywords\": [\"<keyword>\", ...]}]}", n)

	body := map[string]any{
		"model": d.model,
		"messages": []map[string]string{
			{"role": "system", "content": "Extract the event information. Respond ONLY with valid JSON."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
	}

	resp, err := d.client.POST(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("openai call failed: %w", err)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := resp.ParseJSON(&r); err != nil {
		return nil, err
	}
	if len(r.Choices) == 0 {
		return nil, errors.New("no choices in openai reply")
	}

	events := parseEvents(ctx, r.Choices[0].Message.Content)
	logger.Info(ctx, "Discovered events", "requested", n, "parsed", len(events))
	if len(events) > n {
		events = events[:n]
	}
	return events, nil
}

// parseEvents decodes the reply JSON, skipping entries whose event time does
// not parse. Entries without keywords get the event name as a fallback hint.
func parseEvents(ctx context.Context, content string) []*types.Event {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var list eventList
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &list); err != nil {
		logger.ErrorWithErr(ctx, "Failed to parse discovery reply", err)
		return nil
	}

	events := make([]*types.Event, 0, len(list.Events))
	for _, item := range list.Events {
		eventTime, err := time.Parse(time.RFC3339, item.EventTime)
		if err != nil {
			// some models drop the zone designator; treat that as UTC
			eventTime, err = time.ParseInLocation("2006-01-02T15:04:05", item.EventTime, time.UTC)
		}
		if err != nil {
			logger.Warn(ctx, "Skipping event with unparseable time", "id", item.ID.String(), "event_time", item.EventTime)
			continue
		}
		keywords := item.Keywords
		if len(keywords) == 0 {
			keywords = []string{item.Name}
		}
		events = append(events, &types.Event{
			ID:        item.ID.String(),
			Name:      item.Name,
			EventTime: eventTime.UTC(),
			Keywords:  keywords,
		})
	}
	return events
}
