// Package engine runs the ticket pipeline: market snapshot, edge
// score, candidate construction, gate evaluation, and proposal into
// the ledger.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"voledge/internal/config"
	"voledge/internal/edge"
	"voledge/internal/gate"
	"voledge/internal/ledger"
	"voledge/internal/logger"
	"voledge/internal/market"
	"voledge/internal/profile"
	"voledge/internal/sizer"
	"voledge/internal/store/journal"
	"voledge/internal/strategy"
	"voledge/internal/ticket"
	"voledge/internal/types"

	"golang.org/x/sync/errgroup"
)

const (
	defaultDTETarget     = 45
	maxConcurrentSymbols = 4

	// One contract covers 100 shares; premium budgets are per-share
	// points while the risk limits are whole dollars.
	contractMultiplier = 100.0
)

// GenerateRequest asks the engine to quote structures for a view.
// Empty Underlyings means the source's whole watchlist.
type GenerateRequest struct {
	Underlyings []string   `json:"underlyings"`
	Bias        types.Bias `json:"bias"`
	DTETarget   int        `json:"dte_target"`
	MaxPremium  float64    `json:"max_premium"`
}

// Engine wires the decision stages together.
type Engine struct {
	cfg       *config.Config
	source    market.Source
	scorer    *edge.Scorer
	profiles  *profile.Registry
	sizer     *sizer.Sizer
	gates     *gate.Evaluator
	regime    ledger.RegimeProvider
	portfolio ledger.PortfolioProvider
	book      *ledger.Ledger
	journal   *journal.RunJournal
}

// AttachJournal enables run history recording. A nil engine journal
// means runs are not recorded.
func (e *Engine) AttachJournal(j *journal.RunJournal) {
	e.journal = j
}

func New(cfg *config.Config, source market.Source, scorer *edge.Scorer, profiles *profile.Registry,
	sz *sizer.Sizer, gates *gate.Evaluator, regime ledger.RegimeProvider,
	portfolio ledger.PortfolioProvider, book *ledger.Ledger) *Engine {
	return &Engine{
		cfg:       cfg,
		source:    source,
		scorer:    scorer,
		profiles:  profiles,
		sizer:     sz,
		gates:     gates,
		regime:    regime,
		portfolio: portfolio,
		book:      book,
	}
}

// Generate quotes, gates, and proposes tickets for every requested
// underlying. Underlyings whose signals cannot be scored are skipped;
// an error is returned only when the request itself is unusable.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) ([]types.TradeTicket, error) {
	fams, err := strategy.FamiliesForBias(req.Bias)
	if err != nil {
		return nil, err
	}
	symbols := req.Underlyings
	if len(symbols) == 0 {
		symbols = e.source.Watchlist()
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no underlyings to scan", types.ErrValidation)
	}

	regimeSnap, err := e.regime.CurrentRegime(ctx)
	if err != nil {
		return nil, fmt.Errorf("regime classification failed: %w", err)
	}
	portfolio, err := e.portfolio.CurrentPortfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching portfolio state failed: %w", err)
	}
	cons := e.constraints(req, fams[0])

	var (
		mu      sync.Mutex
		tickets []types.TradeTicket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSymbols)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			proposed, err := e.generateOne(gctx, symbol, cons, fams[0], regimeSnap, portfolio)
			if err != nil {
				if len(symbols) == 1 {
					return err
				}
				logger.Warnf("[engine] skipping %s: %v", symbol, err)
				return nil
			}
			mu.Lock()
			tickets = append(tickets, proposed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].EdgeScore != tickets[j].EdgeScore {
			return tickets[i].EdgeScore > tickets[j].EdgeScore
		}
		return tickets[i].ID < tickets[j].ID
	})
	logger.Infof("[engine] generated %d tickets across %d underlyings (bias=%s)", len(tickets), len(symbols), req.Bias)
	e.recordRun(ctx, req, symbols, regimeSnap, tickets)
	return tickets, nil
}

func (e *Engine) recordRun(ctx context.Context, req GenerateRequest, symbols []string, snap types.RegimeSnapshot, tickets []types.TradeTicket) {
	if e.journal == nil {
		return
	}
	rec := journal.RunRecord{
		Bias:        string(req.Bias),
		Symbols:     symbols,
		Regime:      snap,
		TicketCount: len(tickets),
	}
	for _, tk := range tickets {
		rec.TicketIDs = append(rec.TicketIDs, tk.ID)
	}
	if _, err := e.journal.Append(ctx, rec); err != nil {
		logger.Warnf("[engine] recording run failed: %v", err)
	}
}

func (e *Engine) generateOne(ctx context.Context, symbol string, cons strategy.Constraints,
	family types.StrategyFamily, regimeSnap types.RegimeSnapshot, portfolio types.PortfolioState) ([]types.TradeTicket, error) {

	snap, err := e.source.Snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	score, err := e.scorer.Score(market.BuildEdgeInputs(snap))
	if err != nil {
		return nil, err
	}

	builderCfg := e.cfg.Builder
	if e.profiles != nil {
		builderCfg = e.profiles.ApplyBuilder(family, builderCfg)
	}
	cands, err := strategy.NewBuilder(builderCfg).Build(snap, cons, score)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		logger.Debugf("[engine] %s: no viable candidates", symbol)
		return nil, nil
	}

	sizing := e.sizing(snap, score, portfolio.AccountEquity)
	factory := ticket.NewFactory(builderCfg.MaxTickets)
	assembled := factory.Assemble(cands, score, &sizing, func(t types.TradeTicket) (types.GateResult, types.GateResult) {
		return e.gates.Evaluate(t, regimeSnap, portfolio)
	})

	out := make([]types.TradeTicket, 0, len(assembled))
	for _, t := range assembled {
		proposed, _, err := e.book.Propose(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, proposed)
	}
	return out, nil
}

// constraints resolves the request against profile and default DTE
// targets. An omitted max_premium falls back to the per-trade risk
// budget in per-share points; explicitly negative values pass through
// so Validate rejects them.
func (e *Engine) constraints(req GenerateRequest, family types.StrategyFamily) strategy.Constraints {
	dte := req.DTETarget
	if dte <= 0 && e.profiles != nil {
		if v, ok := e.profiles.DTETarget(family); ok {
			dte = v
		}
	}
	if dte <= 0 {
		dte = defaultDTETarget
	}
	maxPremium := req.MaxPremium
	if maxPremium == 0 {
		maxPremium = e.cfg.Gate.AccountEquity * e.cfg.Gate.MaxTradeRiskPct / 100 / contractMultiplier
	}
	return strategy.Constraints{
		Bias:       req.Bias,
		DTETarget:  dte,
		MaxPremium: maxPremium,
	}
}

func (e *Engine) sizing(snap types.MarketSnapshot, score types.EdgeScore, equity float64) types.SizingRecommendation {
	confidence := sizer.ConfidenceFromEdge(score.Composite)
	liquidity := e.sizer.LiquidityScore(snap)
	var implied *float64
	if v, ok := score.Components[edge.ComponentIVRV]; ok {
		implied = &v
	}
	return e.sizer.Size(equity, confidence, liquidity, score.Composite, implied)
}
