// Package ticket assembles proposed trade tickets from ranked
// candidates and computes their canonical dedup hash.
package ticket

import (
	"time"

	"github.com/google/uuid"

	"voledge/internal/strategy"
	"voledge/internal/types"
)

// Factory stamps candidates into Proposed tickets. maxTickets bounds
// the number of tickets minted per generation request.
type Factory struct {
	maxTickets int
	now        func() time.Time
}

func NewFactory(maxTickets int) *Factory {
	if maxTickets <= 0 {
		maxTickets = 3
	}
	return &Factory{maxTickets: maxTickets, now: time.Now}
}

// GateFn evaluates both policy gates for one assembled ticket and
// returns them in regime, risk order.
type GateFn func(t types.TradeTicket) (types.GateResult, types.GateResult)

// Assemble turns ranked candidates plus scorer and sizing outputs into
// Proposed tickets, truncating to the configured maximum. Candidates
// arrive ranked; truncation keeps the best. gates runs per ticket after
// assembly so the risk gate sees the actual legs.
func (f *Factory) Assemble(cands []strategy.Candidate, edge types.EdgeScore, sizing *types.SizingRecommendation, gates GateFn) []types.TradeTicket {
	if len(cands) > f.maxTickets {
		cands = cands[:f.maxTickets]
	}
	tickets := make([]types.TradeTicket, 0, len(cands))
	for _, c := range cands {
		t := types.TradeTicket{
			ID:             uuid.NewString(),
			Hash:           Hash(c.Underlying, c.Strategy, c.Expiry, c.Legs, c.CreditOrDebit),
			Underlying:     c.Underlying,
			Strategy:       c.Strategy,
			Legs:           c.Legs,
			Expiry:         c.Expiry,
			DTE:            c.DTE,
			CreditOrDebit:  c.CreditOrDebit,
			Width:          c.Width,
			MaxLoss:        c.MaxLoss,
			PopEstimate:    c.PopEstimate,
			EdgeScore:      edge.Composite,
			ScoreBreakdown: c.Breakdown,
			Sizing:         sizing,
			State:          types.StateProposed,
			CreatedAt:      f.now().UTC(),
		}
		if gates != nil {
			t.RegimeGate, t.RiskGate = gates(t)
		}
		tickets = append(tickets, t)
	}
	return tickets
}
