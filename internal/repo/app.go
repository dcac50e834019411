package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/types"
)

// llmLogDisplayCap bounds how many audit-log entries are kept in the
// serialized snapshot and served to the dashboard.
const llmLogDisplayCap = 10

// AppRepository aggregates all repository state for one process: events,
// news, portfolio, the analyzer audit log, and the set of news IDs that have
// already been analyzed.
type AppRepository struct {
	Events    *EventRepository
	News      *NewsRepository
	Portfolio *PortfolioRepository

	mu           sync.RWMutex
	llmLog       []types.LLMLogEntry
	processedIDs map[string]struct{}
}

func NewAppRepository(maxEvents, maxNews int, initialValue float64) *AppRepository {
	return &AppRepository{
		Events:       NewEventRepository(maxEvents),
		News:         NewNewsRepository(maxNews),
		Portfolio:    NewPortfolioRepository(initialValue),
		processedIDs: make(map[string]struct{}),
	}
}

// AppendLog prepends an audit-log entry. The full log is kept in memory;
// serialization caps it at the most recent entries.
func (a *AppRepository) AppendLog(entry types.LLMLogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.llmLog = append([]types.LLMLogEntry{entry}, a.llmLog...)
}

// LogEntries returns the most recent audit-log entries, newest first.
func (a *AppRepository) LogEntries() []types.LLMLogEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sortedLogLocked()
}

func (a *AppRepository) sortedLogLocked() []types.LLMLogEntry {
	out := append([]types.LLMLogEntry(nil), a.llmLog...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	if len(out) > llmLogDisplayCap {
		out = out[:llmLogDisplayCap]
	}
	return out
}

// MarkProcessed records that a news item has been analyzed and must not be
// analyzed again.
func (a *AppRepository) MarkProcessed(newsID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processedIDs[newsID] = struct{}{}
}

func (a *AppRepository) IsProcessed(newsID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.processedIDs[newsID]
	return ok
}

// Snapshot is the persisted JSON representation of all repository state.
// Portfolio is a pointer so a saved zero value is distinguishable from an
// absent field.
type Snapshot struct {
	Events           []json.RawMessage   `json:"events"`
	Portfolio        *types.Portfolio    `json:"portfolio"`
	NewsItems        []json.RawMessage   `json:"news_items"`
	LLMLog           []types.LLMLogEntry `json:"llm_log"`
	ProcessedNewsIDs []string            `json:"processed_news_ids"`
}

// appState is the typed view used when building a snapshot for serving or
// saving. News is ordered by ingestion time for display.
type appState struct {
	Events           []*types.Event      `json:"events"`
	Portfolio        types.Portfolio     `json:"portfolio"`
	NewsItems        []types.NewsItem    `json:"news_items"`
	LLMLog           []types.LLMLogEntry `json:"llm_log"`
	ProcessedNewsIDs []string            `json:"processed_news_ids"`
}

// State returns a consistent point-in-time copy of the aggregate for the
// read API and for persistence. Mutators never hold any lock across this.
func (a *AppRepository) State() ([]*types.Event, types.Portfolio, []types.NewsItem, []types.LLMLogEntry, []string) {
	events := a.Events.GetAll()
	portfolio := a.Portfolio.Get()

	news := a.News.GetAll()
	sort.SliceStable(news, func(i, j int) bool {
		return news[i].AddedAt.After(news[j].AddedAt)
	})

	a.mu.RLock()
	log := a.sortedLogLocked()
	ids := make([]string, 0, len(a.processedIDs))
	for id := range a.processedIDs {
		ids = append(ids, id)
	}
	a.mu.RUnlock()
	sort.Strings(ids)

	return events, portfolio, news, log, ids
}

// Save atomically writes the aggregate snapshot: marshal, write to a temp
// file, rename over the canonical path. A crash mid-save never leaves a
// truncated snapshot behind.
func (a *AppRepository) Save(ctx context.Context, filename string) error {
	events, portfolio, news, log, ids := a.State()
	state := appState{
		Events:           events,
		Portfolio:        portfolio,
		NewsItems:        news,
		LLMLog:           log,
		ProcessedNewsIDs: ids,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	logger.Debug(ctx, "Snapshot saved", "file", filename, "events", len(events), "news", len(news), "llm_log", len(log))
	return nil
}

// Load restores the aggregate from a snapshot file. A missing file means a
// fresh start, not an error. A malformed file, or malformed entries within
// it, are logged and skipped rather than aborting startup.
func (a *AppRepository) Load(ctx context.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn(ctx, "Snapshot file not found, starting fresh", "file", filename)
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.ErrorWithErr(ctx, "Snapshot is malformed, starting fresh", err, "file", filename)
		return nil
	}

	loaded := 0
	for _, raw := range snap.Events {
		var e types.Event
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" {
			logger.Warn(ctx, "Skipping malformed event in snapshot", "error", err)
			continue
		}
		e.EventTime = e.EventTime.UTC()
		if err := a.Events.Add(&e); err != nil {
			logger.Warn(ctx, "Skipping event from snapshot", "id", e.ID, "error", err)
			continue
		}
		loaded++
	}

	for _, raw := range snap.NewsItems {
		var n types.NewsItem
		if err := json.Unmarshal(raw, &n); err != nil || n.ID == "" {
			logger.Warn(ctx, "Skipping malformed news item in snapshot", "error", err)
			continue
		}
		if n.AddedAt.IsZero() {
			n.AddedAt = n.Timestamp
		}
		a.News.Add(n)
	}

	if snap.Portfolio != nil {
		a.Portfolio.Set(*snap.Portfolio)
	}

	a.mu.Lock()
	a.llmLog = append([]types.LLMLogEntry(nil), snap.LLMLog...)
	for _, id := range snap.ProcessedNewsIDs {
		a.processedIDs[id] = struct{}{}
	}
	a.mu.Unlock()

	logger.Info(ctx, "Snapshot loaded", "file", filename,
		"events", loaded, "news", a.News.Len(), "llm_log", len(snap.LLMLog), "processed_ids", len(snap.ProcessedNewsIDs))
	return nil
}
