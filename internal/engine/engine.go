package engine

import (
	"context"
	"time"

	"llm-event-tracker/internal/interfaces"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/portfolio"
	"llm-event-tracker/internal/predictor"
	"llm-event-tracker/internal/repo"
	"llm-event-tracker/internal/settlelog"
	"llm-event-tracker/internal/store"
	"llm-event-tracker/internal/trace"
	"llm-event-tracker/internal/types"
)

// OutcomeFunc resolves the actual outcome of an expired event. Sourcing a
// real resolution is a collaborator concern; the default is a fixed
// placeholder.
type OutcomeFunc func(ctx context.Context, event *types.Event) types.Action

// DefaultOutcome always resolves to Call.
func DefaultOutcome(ctx context.Context, event *types.Event) types.Action {
	return types.ActionCall
}

// Engine drives the event lifecycle: ingest news, analyze, aggregate
// predictions, lock and settle expired events, maintain the live-event
// floor, and persist. One engine owns all repository mutation.
type Engine struct {
	cfg        *store.Config
	repo       *repo.AppRepository
	pm         *portfolio.Manager
	feed       interfaces.FeedClient
	analyzer   interfaces.Analyzer
	discoverer interfaces.Discoverer
	outcome    OutcomeFunc

	now func() time.Time
}

func New(cfg *store.Config, app *repo.AppRepository, pm *portfolio.Manager,
	feed interfaces.FeedClient, analyzer interfaces.Analyzer, discoverer interfaces.Discoverer) *Engine {
	return &Engine{
		cfg:        cfg,
		repo:       app,
		pm:         pm,
		feed:       feed,
		analyzer:   analyzer,
		discoverer: discoverer,
		outcome:    DefaultOutcome,
		now:        time.Now,
	}
}

// SetOutcome replaces the settlement outcome source.
func (e *Engine) SetOutcome(fn OutcomeFunc) {
	e.outcome = fn
}

// SeedFromConfig adds the configured seed events. Called only when no
// snapshot existed at startup; the snapshot otherwise wins.
func (e *Engine) SeedFromConfig(ctx context.Context) {
	for _, seed := range e.cfg.Events {
		event := &types.Event{
			ID:        seed.ID,
			Name:      seed.Name,
			EventTime: seed.EventTime.UTC(),
			Keywords:  seed.Keywords,
		}
		if err := e.repo.Events.Add(event); err != nil {
			logger.Warn(ctx, "Skipping seed event", "id", seed.ID, "error", err)
			continue
		}
		logger.Info(ctx, "Added event from config", "id", seed.ID, "name", seed.Name)
	}
	e.save(ctx)
}

// Run executes the lifecycle loop until the context is cancelled. Each
// iteration is failure-isolated: any error is logged and the loop continues
// at the next tick. Persistence flushes are time-driven on their own ticker
// so a slow external call cannot starve them, and a final save always runs
// before return.
func (e *Engine) Run(ctx context.Context) {
	e.refillEvents(ctx)
	e.cycle(ctx)

	fetchTick := time.NewTicker(e.cfg.FetchInterval())
	defer fetchTick.Stop()
	saveTick := time.NewTicker(e.cfg.SaveInterval())
	defer saveTick.Stop()

	for {
		select {
		case <-fetchTick.C:
			e.refillEvents(ctx)
			e.cycle(ctx)
		case <-saveTick.C:
			e.save(ctx)
		case <-ctx.Done():
			logger.Info(context.Background(), "Shutting down, saving state")
			if err := e.repo.Save(context.Background(), e.cfg.StateFile); err != nil {
				logger.ErrorWithErr(context.Background(), "Final save failed", err)
			}
			return
		}
	}
}

// cycle runs one full ingest/analyze/predict/settle pass.
func (e *Engine) cycle(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "lifecycle-cycle")
	defer span.End()

	fresh := e.ingest(ctx)
	e.analyze(ctx, fresh)
	e.aggregate(ctx)
	e.settleExpired(ctx)

	e.repo.Portfolio.Set(types.Portfolio{CurrentValue: e.pm.GetValue()})
}

// ingest fetches all configured feeds and returns the items not yet
// analyzed. Per-feed failures are logged and skipped.
func (e *Engine) ingest(ctx context.Context) []types.NewsItem {
	var fresh []types.NewsItem
	for _, feedID := range e.cfg.Reddit.Subreddits {
		items, err := e.feed.Fetch(ctx, feedID, e.cfg.Reddit.MaxPostsPerFetch)
		if err != nil {
			logger.ErrorWithErr(ctx, "Feed fetch failed", err, "feed", feedID)
			continue
		}
		for _, item := range items {
			if e.repo.IsProcessed(item.ID) {
				continue
			}
			fresh = append(fresh, item)
			if e.repo.News.Add(item) {
				e.save(ctx)
			}
		}
	}
	return fresh
}

// analyze runs the sentiment collaborator over each new item sequentially,
// so insight ordering stays deterministic relative to each event's recent
// window. The snapshot is saved after every analyzed item.
func (e *Engine) analyze(ctx context.Context, fresh []types.NewsItem) {
	for _, news := range fresh {
		results, err := e.analyzer.Analyze(ctx, news, e.repo.Events.GetAll())
		if err != nil {
			logger.ErrorWithErr(ctx, "Analysis failed, skipping item this cycle", err, "news_id", news.ID)
			continue
		}

		for _, result := range results {
			e.recordResult(ctx, news, result)
		}

		e.repo.MarkProcessed(news.ID)
		e.save(ctx)
	}
}

// recordResult attaches an attributed insight to its event and writes the
// audit-log entry. Insights for unknown event IDs are discarded; the audit
// entry is written either way.
func (e *Engine) recordResult(ctx context.Context, news types.NewsItem, result types.AnalysisResult) {
	entry := types.LLMLogEntry{
		Text:      result.Insight.Text,
		Score:     result.Insight.Score,
		Trend:     result.Insight.Trend,
		Timestamp: result.Insight.Timestamp,
		NewsID:    news.ID,
		NewsTitle: news.Title,
		AddedAt:   e.now().UTC(),
	}

	if result.Attributed() {
		event, ok := e.repo.Events.Get(result.EventID)
		if !ok {
			logger.Warn(ctx, "Discarding insight for unknown event", "event_id", result.EventID, "news_id", news.ID)
			return
		}
		event.Insights = append(event.Insights, result.Insight)
		event.CurrentSentimentScore = predictor.AverageScore(event)
		e.repo.Events.Update(event.ID, event)
		entry.EventID = result.EventID
	}

	e.repo.AppendLog(entry)
	if err := settlelog.AppendInsight(settlelog.InsightEntry{
		NewsID:  news.ID,
		EventID: entry.EventID,
		Score:   result.Insight.Score,
		Trend:   string(result.Insight.Trend),
		Text:    result.Insight.Text,
	}); err != nil {
		logger.Warn(ctx, "Failed to append insight audit record", "error", err)
	}
}

// aggregate recomputes each unlocked event's prediction. Locked events are
// skipped entirely so their frozen prediction can never change.
func (e *Engine) aggregate(ctx context.Context) {
	for _, event := range e.repo.Events.GetAll() {
		if event.IsLocked {
			continue
		}
		updated := predictor.Predict(event)
		if updated.PredictedAction != event.PredictedAction {
			logger.Prediction(ctx, event.ID, string(updated.PredictedAction), predictor.AverageScore(updated))
		}
		e.repo.Events.Update(event.ID, updated)
	}
}

// settleExpired locks every expired unlocked event and settles it against
// the outcome collaborator, updating the portfolio.
func (e *Engine) settleExpired(ctx context.Context) {
	now := e.now().UTC()
	for _, event := range e.repo.Events.GetAll() {
		if event.IsLocked || !event.Expired(now) {
			continue
		}

		actual := e.outcome(ctx, event)
		newValue := e.pm.UpdateOnEvent(event, actual)
		e.repo.Portfolio.Set(types.Portfolio{CurrentValue: newValue})

		lockTime := now
		event.IsLocked = true
		event.LockTime = &lockTime
		e.repo.Events.Update(event.ID, event)

		logger.Settlement(ctx, event.ID, string(event.PredictedAction), string(actual), newValue)
		if err := settlelog.Append(settlelog.SettlementEntry{
			EventID:        event.ID,
			EventName:      event.Name,
			Predicted:      string(event.PredictedAction),
			Actual:         string(actual),
			PortfolioValue: newValue,
		}); err != nil {
			logger.Warn(ctx, "Failed to append settlement record", "error", err)
		}
	}
}

// refillEvents removes settled expired events and tops the live set back up
// to the configured floor via the discovery collaborator, skipping any ID
// already present.
func (e *Engine) refillEvents(ctx context.Context) {
	now := e.now().UTC()
	changed := false

	live := 0
	for _, event := range e.repo.Events.GetAll() {
		if event.Expired(now) {
			if event.IsLocked {
				e.repo.Events.Remove(event.ID)
				logger.Info(ctx, "Removed settled event", "id", event.ID)
				changed = true
			}
			continue
		}
		live++
	}

	needed := e.cfg.MinLiveEvents - live
	if needed > 0 {
		logger.Info(ctx, "Below live-event floor, requesting replacements", "live", live, "needed", needed)
		candidates, err := e.discoverer.Discover(ctx, needed)
		if err != nil {
			logger.ErrorWithErr(ctx, "Event discovery failed", err)
		}
		for _, candidate := range candidates {
			if _, exists := e.repo.Events.Get(candidate.ID); exists {
				continue
			}
			if err := e.repo.Events.Add(candidate); err != nil {
				logger.Warn(ctx, "Could not add discovered event", "id", candidate.ID, "error", err)
				continue
			}
			logger.Info(ctx, "Added discovered event", "id", candidate.ID, "name", candidate.Name)
			changed = true
		}
	}

	if changed {
		e.save(ctx)
	}
}

// save persists the snapshot. I/O failures are non-fatal; the process keeps
// running in memory until a later save succeeds.
func (e *Engine) save(ctx context.Context) {
	if err := e.repo.Save(ctx, e.cfg.StateFile); err != nil {
		logger.ErrorWithErr(ctx, "Snapshot save failed, continuing in-memory", err)
	}
}
