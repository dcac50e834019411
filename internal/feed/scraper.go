package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"llm-event-tracker/internal/interfaces"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/types"
)

// Scraper is the HTML fallback for when the JSON listing endpoint fails.
// It walks the old-reddit listing markup with CSS selectors.
type Scraper struct {
	source  scrapeSource
	timeout time.Duration
}

// scrapeSource defines one HTML source and its selectors.
type scrapeSource struct {
	Name      string
	URL       string // with {feed} placeholder
	Selectors listingSelectors
	RateLimit time.Duration
}

// listingSelectors are the CSS selectors for extracting post data.
type listingSelectors struct {
	PostContainer string
	Title         string
	Timestamp     string // element carrying a datetime attribute
}

// NewScraper creates a scraper against the old-reddit listing pages.
func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		source: scrapeSource{
			Name: "old-reddit",
			URL:  "https://old.reddit.com/r/{feed}/new/",
			Selectors: listingSelectors{
				PostContainer: "div.thing",
				Title:         "a.title",
				Timestamp:     "time.live-timestamp",
			},
			RateLimit: 2 * time.Second,
		},
		timeout: timeout,
	}
}

// Fetch scrapes up to limit recent posts from the feed's listing page.
func (s *Scraper) Fetch(ctx context.Context, feedID string, limit int) ([]types.NewsItem, error) {
	url := strings.ReplaceAll(s.source.URL, "{feed}", feedID)
	logger.Info(ctx, "Scraping listing page", "source", s.source.Name, "feed", feedID)

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
	)
	c.SetRequestTimeout(s.timeout)
	c.Limit(&colly.LimitRule{
		DomainGlob: "*reddit.com*",
		Delay:      s.source.RateLimit,
	})

	now := time.Now().UTC()
	items := []types.NewsItem{}

	c.OnHTML(s.source.Selectors.PostContainer, func(e *colly.HTMLElement) {
		if len(items) >= limit {
			return
		}
		id := strings.TrimPrefix(e.Attr("data-fullname"), "t3_")
		title := strings.TrimSpace(e.ChildText(s.source.Selectors.Title))
		if id == "" || title == "" {
			return
		}

		created := now
		if dt := e.ChildAttr(s.source.Selectors.Timestamp, "datetime"); dt != "" {
			if t, err := time.Parse(time.RFC3339, dt); err == nil {
				created = t.UTC()
			}
		}
		if now.Sub(created) > maxPostAge {
			return
		}

		items = append(items, types.NewsItem{
			ID:        id,
			Source:    feedID,
			Title:     title,
			Timestamp: created,
			AddedAt:   now,
		})
	})

	var scrapeErr error
	c.OnError(func(_ *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("scraping %s: %w", url, err)
	}
	c.Wait()
	if scrapeErr != nil && len(items) == 0 {
		return nil, fmt.Errorf("scraping %s: %w", url, scrapeErr)
	}

	logger.Info(ctx, "Scraped posts", "feed", feedID, "count", len(items))
	return items, nil
}

// FallbackClient tries a primary feed client and falls back to a secondary
// on error or empty result.
type FallbackClient struct {
	Primary  interfaces.FeedClient
	Fallback interfaces.FeedClient
}

// Fetch delegates to the primary client, switching to the fallback when the
// primary fails or returns nothing.
func (f *FallbackClient) Fetch(ctx context.Context, feedID string, limit int) ([]types.NewsItem, error) {
	items, err := f.Primary.Fetch(ctx, feedID, limit)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil {
		logger.Warn(ctx, "Primary feed fetch failed, using fallback", "feed", feedID, "error", err)
	}
	if f.Fallback == nil {
		return items, err
	}
	return f.Fallback.Fetch(ctx, feedID, limit)
}
