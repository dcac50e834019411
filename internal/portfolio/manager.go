package portfolio

import (
	"sync"
	"time"

	"llm-event-tracker/internal/types"
)

// HistoryPoint is one append-only portfolio value record.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Manager is the settlement state machine over a single scalar plus an
// append-only value history. Every settlement is permanent; there is no
// rollback.
type Manager struct {
	mu              sync.Mutex
	currentValue    float64
	history         []HistoryPoint
	pointsCorrect   float64
	pointsIncorrect float64
}

// NewManager creates a manager seeded with the initial value. The first
// history entry is the initial value at construction time.
func NewManager(initialValue, pointsCorrect, pointsIncorrect float64) *Manager {
	return &Manager{
		currentValue:    initialValue,
		history:         []HistoryPoint{{Timestamp: time.Now().UTC(), Value: initialValue}},
		pointsCorrect:   pointsCorrect,
		pointsIncorrect: pointsIncorrect,
	}
}

// UpdateOnEvent applies one settlement: no delta for an unset or Hold
// prediction, a reward when the prediction matches the outcome, a penalty
// otherwise. Returns the new portfolio value.
func (m *Manager) UpdateOnEvent(event *types.Event, actualOutcome types.Action) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var delta float64
	switch {
	case event.PredictedAction == types.ActionNone || event.PredictedAction == types.ActionHold:
		delta = 0
	case event.PredictedAction == actualOutcome:
		delta = m.pointsCorrect
	default:
		delta = m.pointsIncorrect
	}

	m.currentValue += delta
	m.history = append(m.history, HistoryPoint{Timestamp: time.Now().UTC(), Value: m.currentValue})
	return m.currentValue
}

// GetValue returns the current portfolio value.
func (m *Manager) GetValue() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentValue
}

// GetHistory returns a copy of the value history, oldest first.
func (m *Manager) GetHistory() []HistoryPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryPoint(nil), m.history...)
}
