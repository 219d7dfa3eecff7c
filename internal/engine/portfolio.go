package engine

import (
	"context"
	"fmt"
	"sync"

	"voledge/internal/ledger"
	"voledge/internal/types"
)

// PortfolioView derives the account state the gates run against from
// the ledger's approved tickets plus configured equity. It is created
// before the ledger and bound afterwards, since each needs the other.
type PortfolioView struct {
	mu     sync.RWMutex
	book   *ledger.Ledger
	equity float64
}

func NewPortfolioView(equity float64) *PortfolioView {
	return &PortfolioView{equity: equity}
}

// Bind attaches the ledger once it exists.
func (p *PortfolioView) Bind(book *ledger.Ledger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book = book
}

func (p *PortfolioView) CurrentPortfolio(ctx context.Context) (types.PortfolioState, error) {
	p.mu.RLock()
	book := p.book
	p.mu.RUnlock()
	if book == nil {
		return types.PortfolioState{}, fmt.Errorf("portfolio view not bound to a ledger")
	}

	positions := book.OpenPositionsFromApproved()
	state := types.PortfolioState{
		OpenPositions: positions,
		AccountEquity: p.equity,
	}
	for _, pos := range positions {
		state.Exposure.Delta += pos.Greeks.Delta
		state.Exposure.Vega += pos.Greeks.Vega
		state.Exposure.Gamma += pos.Greeks.Gamma
		state.WeeklyMaxLosses += pos.MaxLoss
	}
	return state, nil
}
