package repo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-event-tracker/internal/types"
)

func testNews(id string, ts time.Time) types.NewsItem {
	return types.NewsItem{
		ID:        id,
		Source:    "stocks",
		Title:     "Title " + id,
		Timestamp: ts,
		AddedAt:   time.Now().UTC(),
	}
}

func TestNewsDeduplication(t *testing.T) {
	r := NewNewsRepository(10)
	now := time.Now().UTC()

	assert.True(t, r.Add(testNews("n1", now)))
	assert.False(t, r.Add(testNews("n1", now)), "re-adding a present id is rejected")
	assert.Equal(t, 1, r.Len())
}

func TestNewsRetention(t *testing.T) {
	r := NewNewsRepository(3)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		r.Add(testNews(fmt.Sprintf("n%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	items := r.GetAll()
	require.Len(t, items, 3)
	// most recent by content timestamp survive
	ids := map[string]bool{}
	for _, n := range items {
		ids[n.ID] = true
	}
	assert.True(t, ids["n2"] && ids["n3"] && ids["n4"], "expected the newest three, got %v", ids)
}

func TestNewsAddReportsInsertionNotSurvival(t *testing.T) {
	r := NewNewsRepository(2)
	base := time.Now().UTC()

	r.Add(testNews("new1", base))
	r.Add(testNews("new2", base.Add(time.Minute)))

	// older than the whole retained window: inserted, then evicted
	old := testNews("old", base.Add(-time.Hour))
	assert.True(t, r.Add(old), "Add reports insertion even when retention evicts the item")
	assert.Equal(t, 2, r.Len())
	for _, n := range r.GetAll() {
		assert.NotEqual(t, "old", n.ID)
	}

	// the evicted id is gone from the id set, so it can be re-added
	assert.True(t, r.Add(old))
}
