package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-event-tracker/internal/portfolio"
	"llm-event-tracker/internal/repo"
	"llm-event-tracker/internal/store"
	"llm-event-tracker/internal/types"
)

type fakeFeed struct {
	items []types.NewsItem
	calls int
}

func (f *fakeFeed) Fetch(ctx context.Context, feedID string, limit int) ([]types.NewsItem, error) {
	f.calls++
	return f.items, nil
}

type fakeAnalyzer struct {
	results map[string][]types.AnalysisResult
	calls   int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, news types.NewsItem, events []*types.Event) ([]types.AnalysisResult, error) {
	f.calls++
	return f.results[news.ID], nil
}

type fakeDiscoverer struct {
	events []*types.Event
	calls  int
}

func (f *fakeDiscoverer) Discover(ctx context.Context, n int) ([]*types.Event, error) {
	f.calls++
	return f.events, nil
}

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg := &store.Config{
		StateFile:     filepath.Join(t.TempDir(), "state.json"),
		MaxEvents:     10,
		MaxNews:       50,
		MinLiveEvents: 3,
	}
	cfg.Reddit.Subreddits = []string{"stocks"}
	cfg.Reddit.MaxPostsPerFetch = 4
	cfg.Portfolio.InitialValue = 1000
	cfg.Portfolio.PointsPerCorrect = 100
	cfg.Portfolio.PointsPerIncorrect = -50
	return cfg
}

func testEngine(t *testing.T, cfg *store.Config, feed *fakeFeed, analyzer *fakeAnalyzer, disc *fakeDiscoverer) (*Engine, *repo.AppRepository) {
	t.Helper()
	t.Setenv("TRACKER_LOG_DIR", t.TempDir())

	app := repo.NewAppRepository(cfg.MaxEvents, cfg.MaxNews, cfg.Portfolio.InitialValue)
	pm := portfolio.NewManager(cfg.Portfolio.InitialValue, cfg.Portfolio.PointsPerCorrect, cfg.Portfolio.PointsPerIncorrect)
	eng := New(cfg, app, pm, feed, analyzer, disc)
	return eng, app
}

func liveEvent(id string, eventTime time.Time) *types.Event {
	return &types.Event{
		ID:        id,
		Name:      "Event " + id,
		EventTime: eventTime,
		Keywords:  []string{"kw"},
	}
}

func newsItem(id string, ts time.Time) types.NewsItem {
	return types.NewsItem{
		ID:        id,
		Source:    "stocks",
		Title:     "Title " + id,
		Snippet:   "snippet",
		Timestamp: ts,
		AddedAt:   ts,
	}
}

func insightResult(eventID string, score float64) types.AnalysisResult {
	return types.AnalysisResult{
		EventID: eventID,
		Insight: types.Insight{
			Text:      "insight",
			Score:     score,
			Trend:     types.TrendImproving,
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestCycleAttributesInsightAndPredicts(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", now)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{
		"n1": {insightResult("e1", 0.8)},
	}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", now.Add(2*time.Hour))))
	eng.cycle(ctx)

	e1, ok := app.Events.Get("e1")
	require.True(t, ok)
	require.Len(t, e1.Insights, 1)
	assert.Equal(t, types.ActionCall, e1.PredictedAction)
	assert.InDelta(t, 0.8, e1.CurrentSentimentScore, 1e-9)
	assert.True(t, app.IsProcessed("n1"))

	log := app.LogEntries()
	require.Len(t, log, 1)
	assert.Equal(t, "e1", log[0].EventID)
	assert.Equal(t, "n1", log[0].NewsID)
}

func TestLockedEventPredictionFrozen(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", base)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{
		"n1": {insightResult("e1", 0.9)},
	}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", base.Add(time.Minute))))
	eng.now = func() time.Time { return base }
	eng.cycle(ctx)

	// event expires; next cycle locks and settles it
	eng.now = func() time.Time { return base.Add(2 * time.Minute) }
	feed.items = nil
	eng.cycle(ctx)

	locked, ok := app.Events.Get("e1")
	require.True(t, ok)
	require.True(t, locked.IsLocked)
	require.NotNil(t, locked.LockTime)
	assert.Equal(t, types.ActionCall, locked.PredictedAction)

	// strongly bearish insights after the lock must not move the prediction
	feed.items = []types.NewsItem{newsItem("n2", base.Add(3*time.Minute))}
	analyzer.results["n2"] = []types.AnalysisResult{insightResult("e1", -0.95)}
	eng.cycle(ctx)

	after, ok := app.Events.Get("e1")
	require.True(t, ok)
	assert.Equal(t, types.ActionCall, after.PredictedAction)
	assert.True(t, after.LockTime.Equal(*locked.LockTime))
}

func TestSettlementUpdatesPortfolio(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", base)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{
		"n1": {insightResult("e1", 0.8)},
	}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", base.Add(time.Minute))))
	eng.now = func() time.Time { return base }
	eng.cycle(ctx)

	// outcome matches the Call prediction: +100
	eng.now = func() time.Time { return base.Add(2 * time.Minute) }
	feed.items = nil
	eng.cycle(ctx)
	assert.InDelta(t, 1100, app.Portfolio.Get().CurrentValue, 1e-9)

	// a second cycle must not settle the same event again
	eng.cycle(ctx)
	assert.InDelta(t, 1100, app.Portfolio.Get().CurrentValue, 1e-9)
}

func TestIncorrectPredictionPenalized(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", base)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{
		"n1": {insightResult("e1", -0.8)},
	}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})
	eng.SetOutcome(func(ctx context.Context, event *types.Event) types.Action {
		return types.ActionCall
	})

	require.NoError(t, app.Events.Add(liveEvent("e1", base.Add(time.Minute))))
	eng.now = func() time.Time { return base }
	eng.cycle(ctx)

	e1, _ := app.Events.Get("e1")
	require.Equal(t, types.ActionPut, e1.PredictedAction)

	eng.now = func() time.Time { return base.Add(2 * time.Minute) }
	feed.items = nil
	eng.cycle(ctx)
	assert.InDelta(t, 950, app.Portfolio.Get().CurrentValue, 1e-9)
}

func TestUnknownEventInsightDiscarded(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", now)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{
		"n1": {insightResult("ghost", 0.8)},
	}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", now.Add(2*time.Hour))))
	eng.cycle(ctx)

	e1, _ := app.Events.Get("e1")
	assert.Empty(t, e1.Insights)
	_, exists := app.Events.Get("ghost")
	assert.False(t, exists, "no event may be created for an unknown insight")
	assert.True(t, app.IsProcessed("n1"), "the item still counts as analyzed")
}

func TestUnattributedResultAuditOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", now)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{
		"n1": {insightResult("", 0)},
	}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", now.Add(2*time.Hour))))
	eng.cycle(ctx)

	e1, _ := app.Events.Get("e1")
	assert.Empty(t, e1.Insights)

	log := app.LogEntries()
	require.Len(t, log, 1)
	assert.Empty(t, log[0].EventID)
}

func TestProcessedItemsNotReanalyzed(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	feed := &fakeFeed{items: []types.NewsItem{newsItem("n1", now)}}
	analyzer := &fakeAnalyzer{results: map[string][]types.AnalysisResult{}}
	eng, app := testEngine(t, testConfig(t), feed, analyzer, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", now.Add(2*time.Hour))))
	eng.cycle(ctx)
	eng.cycle(ctx)

	assert.Equal(t, 1, analyzer.calls, "a processed item must not be analyzed twice")
}

func TestRefillMaintainsFloor(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	disc := &fakeDiscoverer{events: []*types.Event{
		liveEvent("e1", now.Add(3*time.Hour)), // collides with the live event
		liveEvent("d1", now.Add(4*time.Hour)),
		liveEvent("d2", now.Add(5*time.Hour)),
	}}
	eng, app := testEngine(t, testConfig(t), &fakeFeed{}, &fakeAnalyzer{}, disc)

	require.NoError(t, app.Events.Add(liveEvent("e1", now.Add(2*time.Hour))))
	eng.refillEvents(ctx)

	assert.Equal(t, 3, app.Events.Len())
	orig, _ := app.Events.Get("e1")
	assert.True(t, orig.EventTime.Equal(now.Add(2*time.Hour).UTC()), "a colliding discovery must not replace the live event")
	_, ok := app.Events.Get("d1")
	assert.True(t, ok)
	_, ok = app.Events.Get("d2")
	assert.True(t, ok)
}

func TestRefillRemovesSettledEvents(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC()

	eng, app := testEngine(t, testConfig(t), &fakeFeed{}, &fakeAnalyzer{}, &fakeDiscoverer{})

	require.NoError(t, app.Events.Add(liveEvent("e1", base.Add(time.Minute))))
	eng.now = func() time.Time { return base.Add(2 * time.Minute) }
	eng.cycle(ctx) // settles and locks e1

	settled, _ := app.Events.Get("e1")
	require.True(t, settled.IsLocked)

	eng.refillEvents(ctx)
	_, ok := app.Events.Get("e1")
	assert.False(t, ok, "settled expired events are removed at the next refill")
}

func TestRefillSkipsWhenAtFloor(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	disc := &fakeDiscoverer{}
	eng, app := testEngine(t, testConfig(t), &fakeFeed{}, &fakeAnalyzer{}, disc)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, app.Events.Add(liveEvent(id, now.Add(2*time.Hour))))
	}
	eng.refillEvents(ctx)
	assert.Equal(t, 0, disc.calls, "discovery must not run while at the live-event floor")
}

func TestSeedFromConfigSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	cfg := testConfig(t)
	cfg.Events = []store.EventSeed{
		{ID: "s1", Name: "Seed 1", EventTime: now.Add(2 * time.Hour), Keywords: []string{"a"}},
		{ID: "s1", Name: "Seed 1 again", EventTime: now.Add(3 * time.Hour)},
		{ID: "s2", Name: "Seed 2", EventTime: now.Add(4 * time.Hour)},
	}
	eng, app := testEngine(t, cfg, &fakeFeed{}, &fakeAnalyzer{}, &fakeDiscoverer{})

	eng.SeedFromConfig(ctx)
	assert.Equal(t, 2, app.Events.Len())
	s1, _ := app.Events.Get("s1")
	assert.Equal(t, "Seed 1", s1.Name)
}
