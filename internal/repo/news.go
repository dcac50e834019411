package repo

import (
	"sort"
	"sync"

	"llm-event-tracker/internal/types"
)

// NewsRepository holds the bounded set of recent news items, deduplicated by
// ID across all feeds and retained most-recent-first by content timestamp.
type NewsRepository struct {
	mu      sync.RWMutex
	items   []types.NewsItem
	ids     map[string]struct{}
	maxNews int
}

func NewNewsRepository(maxNews int) *NewsRepository {
	return &NewsRepository{
		ids:     make(map[string]struct{}),
		maxNews: maxNews,
	}
}

// Add inserts the item unless its ID is already present, then re-sorts by
// content timestamp descending and truncates to the retention window.
// The return value reports insertion, not survival: an item older than the
// whole retained window is "added" and immediately evicted, and its ID may
// be re-added later.
func (r *NewsRepository) Add(news types.NewsItem) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.ids[news.ID]; seen {
		return false
	}
	r.items = append(r.items, news)
	sort.SliceStable(r.items, func(i, j int) bool {
		return r.items[i].Timestamp.After(r.items[j].Timestamp)
	})
	if len(r.items) > r.maxNews {
		r.items = r.items[:r.maxNews]
	}
	r.ids = make(map[string]struct{}, len(r.items))
	for _, n := range r.items {
		r.ids[n.ID] = struct{}{}
	}
	return true
}

// GetAll returns a copy of the retained items. Display ordering is the
// caller's responsibility.
func (r *NewsRepository) GetAll() []types.NewsItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.NewsItem(nil), r.items...)
}

func (r *NewsRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
