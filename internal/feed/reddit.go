package feed

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"llm-event-tracker/internal/api"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/types"
)

// maxPostAge filters out posts older than a day; the retention window only
// cares about recent chatter.
const maxPostAge = 24 * time.Hour

// snippetMaxLen bounds how much post body is carried into a NewsItem.
const snippetMaxLen = 500

// RedditClient fetches recent posts from subreddit listing endpoints. It
// owns its rate limiting; one instance is shared across all feeds.
type RedditClient struct {
	client    *api.Client
	limiter   *rate.Limiter
	userAgent string
}

// RedditParams configures the Reddit client.
type RedditParams struct {
	UserAgent       string
	RateLimitCalls  int
	RateLimitPeriod time.Duration
	Timeout         time.Duration
}

// NewRedditClient creates a client against the public listing API.
func NewRedditClient(p RedditParams) *RedditClient {
	if p.RateLimitCalls == 0 {
		p.RateLimitCalls = 30
	}
	if p.RateLimitPeriod == 0 {
		p.RateLimitPeriod = time.Minute
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.UserAgent == "" {
		p.UserAgent = "llm-event-tracker/1.0"
	}

	interval := p.RateLimitPeriod / time.Duration(p.RateLimitCalls)
	return &RedditClient{
		client: api.NewClient(
			api.WithBaseURL("https://www.reddit.com"),
			api.WithTimeout(p.Timeout),
			api.WithHeader("User-Agent", p.UserAgent),
			api.WithLogging(true),
		),
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		userAgent: p.UserAgent,
	}
}

// redditListing mirrors the subset of the listing payload we consume.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID           string  `json:"id"`
	Subreddit    string  `json:"subreddit"`
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML string  `json:"selftext_html"`
	CreatedUTC   float64 `json:"created_utc"`
}

// Fetch returns up to limit recent posts from the given subreddit, skipping
// anything older than 24 hours. Blocks on the rate limiter first.
func (c *RedditClient) Fetch(ctx context.Context, feedID string, limit int) ([]types.NewsItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("/r/%s/new.json?limit=%d", feedID, limit)
	req := api.NewRequest("GET", url).WithContext(ctx)
	resp, err := c.client.DoWithRetry(req, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching r/%s: %w", feedID, err)
	}

	var listing redditListing
	if err := resp.ParseJSON(&listing); err != nil {
		return nil, fmt.Errorf("parsing r/%s listing: %w", feedID, err)
	}

	items := parseListing(listing, time.Now().UTC())
	logger.Info(ctx, "Fetched posts", "feed", feedID, "count", len(items))
	return items, nil
}

// parseListing converts a listing payload into news items, dropping posts
// older than the post-age cutoff relative to now.
func parseListing(listing redditListing, now time.Time) []types.NewsItem {
	items := make([]types.NewsItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.ID == "" || p.Title == "" {
			continue
		}
		created := time.Unix(int64(p.CreatedUTC), 0).UTC()
		if now.Sub(created) > maxPostAge {
			continue
		}
		items = append(items, types.NewsItem{
			ID:        p.ID,
			Source:    p.Subreddit,
			Title:     p.Title,
			Snippet:   buildSnippet(p),
			Timestamp: created,
			AddedAt:   now,
		})
	}
	return items
}

// buildSnippet prefers the plain selftext; when only the HTML body is
// present it strips markup with goquery.
func buildSnippet(p redditPost) string {
	text := strings.TrimSpace(p.Selftext)
	if text == "" && p.SelftextHTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.SelftextHTML)); err == nil {
			text = strings.TrimSpace(doc.Text())
		}
	}
	if len(text) > snippetMaxLen {
		// back up to a rune boundary so the cut never splits a multi-byte
		// sequence
		cut := snippetMaxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
