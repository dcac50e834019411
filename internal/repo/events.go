package repo

import (
	"errors"
	"fmt"
	"sync"

	"llm-event-tracker/internal/types"
)

var (
	// ErrDuplicateID is returned by Add when the event ID is already present.
	ErrDuplicateID = errors.New("event id already exists")
	// ErrCapacity is returned by Add when the repository is full. Non-fatal;
	// callers log and move on.
	ErrCapacity = errors.New("event capacity reached")
)

// EventRepository is the single source of truth for event identity. No two
// entries share an ID, and entities enter only through Add/Update, so a
// malformed value can never end up in the container.
type EventRepository struct {
	mu        sync.RWMutex
	events    map[string]*types.Event
	maxEvents int
}

func NewEventRepository(maxEvents int) *EventRepository {
	return &EventRepository{
		events:    make(map[string]*types.Event),
		maxEvents: maxEvents,
	}
}

// Add inserts a new event. Fails with ErrDuplicateID if the ID is taken and
// ErrCapacity if the repository is at its configured maximum.
func (r *EventRepository) Add(event *types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, event.ID)
	}
	if len(r.events) >= r.maxEvents {
		return fmt.Errorf("%w (max %d): not adding %s", ErrCapacity, r.maxEvents, event.ID)
	}
	r.events[event.ID] = event.Clone()
	return nil
}

// Update replaces the event stored under id, inserting if absent. Callers
// that need the duplicate check use Add.
func (r *EventRepository) Update(id string, event *types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id] = event.Clone()
}

// Get returns a copy of the event, or false if absent.
func (r *EventRepository) Get(id string) (*types.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// GetAll returns copies of all events. Order is not meaningful; callers sort
// when it matters.
func (r *EventRepository) GetAll() []*types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Clone())
	}
	return out
}

// Remove deletes the event if present. Idempotent.
func (r *EventRepository) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.events[id]
	delete(r.events, id)
	return ok
}

func (r *EventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
