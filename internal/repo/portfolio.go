package repo

import (
	"sync"

	"llm-event-tracker/internal/types"
)

// PortfolioRepository holds the current portfolio snapshot. History lives in
// the portfolio manager, not here.
type PortfolioRepository struct {
	mu        sync.RWMutex
	portfolio types.Portfolio
}

func NewPortfolioRepository(initialValue float64) *PortfolioRepository {
	return &PortfolioRepository{portfolio: types.Portfolio{CurrentValue: initialValue}}
}

func (r *PortfolioRepository) Set(p types.Portfolio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portfolio = p
}

func (r *PortfolioRepository) Get() types.Portfolio {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.portfolio
}
