// Package gate holds the two policy gates a ticket must clear before
// approval. Both gates are pure over their inputs, so the ledger can
// re-run them at approval time against current portfolio state.
package gate

import (
	"voledge/internal/config"
	"voledge/internal/strategy"
	"voledge/internal/types"
)

// Contracts are quoted per share; one contract covers 100 shares.
const contractMultiplier = 100.0

// ProfileSource supplies per-strategy regime overrides from the
// strategy profile registry. May be nil; built-in family rules still
// apply.
type ProfileSource interface {
	RegimeReasons(family types.StrategyFamily, snap types.RegimeSnapshot) []string
}

// Evaluator bundles both gates with their configured limits.
type Evaluator struct {
	cfg      config.GateConfig
	profiles ProfileSource
}

func NewEvaluator(cfg config.GateConfig, profiles ProfileSource) *Evaluator {
	return &Evaluator{cfg: cfg, profiles: profiles}
}

// Regime checks the ticket's strategy family against the current
// market regime. Every failing predicate contributes its own reason.
func (e *Evaluator) Regime(ticket types.TradeTicket, snap types.RegimeSnapshot) types.GateResult {
	reasons := strategy.RegimeReasons(ticket.Strategy, snap)
	if e.profiles != nil {
		for _, r := range e.profiles.RegimeReasons(ticket.Strategy, snap) {
			if !containsReason(reasons, r) {
				reasons = append(reasons, r)
			}
		}
	}
	return types.GateResult{Passed: len(reasons) == 0, Reasons: reasons}
}

// Risk checks the ticket against portfolio limits and reports the
// greeks exposure before and after a hypothetical fill. All sub-checks
// run; a failing ticket carries one reason per breached limit.
func (e *Evaluator) Risk(ticket types.TradeTicket, portfolio types.PortfolioState) types.GateResult {
	var reasons []string

	before := portfolio.Exposure
	after := before.Add(ticketExposure(ticket))

	maxLossDollars := ticket.MaxLoss * contractMultiplier

	if portfolio.AccountEquity <= 0 {
		reasons = append(reasons, "account_equity_unknown")
	} else {
		if maxLossDollars > portfolio.AccountEquity*e.cfg.MaxTradeRiskPct/100 {
			reasons = append(reasons, "trade_risk_exceeds_limit")
		}
		if portfolio.WeeklyMaxLosses+maxLossDollars > portfolio.AccountEquity*e.cfg.MaxWeeklyLossPct/100 {
			reasons = append(reasons, "weekly_loss_budget_exceeded")
		}
		if -portfolio.WeeklyRealizedPnL >= portfolio.AccountEquity*e.cfg.KillSwitchDrawdownPct/100 {
			reasons = append(reasons, "kill_switch_active")
		}
	}

	if abs(after.Delta) > e.cfg.MaxPortfolioDelta {
		reasons = append(reasons, "portfolio_delta_exceeds_limit")
	}
	if abs(after.Vega) > e.cfg.MaxPortfolioVega {
		reasons = append(reasons, "portfolio_vega_exceeds_limit")
	}
	if abs(after.Gamma) > e.cfg.MaxPortfolioGamma {
		reasons = append(reasons, "portfolio_gamma_exceeds_limit")
	}
	if portfolio.OpenForUnderlying(ticket.Underlying) >= e.cfg.MaxOpenPerUnderlying {
		reasons = append(reasons, "max_open_per_underlying_exceeded")
	}

	return types.GateResult{
		Passed:  len(reasons) == 0,
		Reasons: reasons,
		Before:  &before,
		After:   &after,
	}
}

// Evaluate runs both gates and returns them in regime, risk order.
func (e *Evaluator) Evaluate(ticket types.TradeTicket, snap types.RegimeSnapshot, portfolio types.PortfolioState) (types.GateResult, types.GateResult) {
	return e.Regime(ticket, snap), e.Risk(ticket, portfolio)
}

// ticketExposure sums the signed, contract-scaled greeks of all legs.
func ticketExposure(ticket types.TradeTicket) types.GreeksExposure {
	var exp types.GreeksExposure
	for _, l := range ticket.Legs {
		scale := l.Signed() * float64(l.Quantity) * contractMultiplier
		exp.Delta += l.Delta * scale
		exp.Vega += l.Vega * scale
		exp.Gamma += l.Gamma * scale
	}
	return exp
}

func containsReason(reasons []string, r string) bool {
	for _, existing := range reasons {
		if existing == r {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
