package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"voledge/internal/config"
	"voledge/internal/logger"
	"voledge/internal/pricing"
	"voledge/internal/types"
)

const maxExpirationsTried = 3

// Constraints is the caller's request shape for one generation run.
// Premium figures are per-share points, matching leg prices.
type Constraints struct {
	Bias       types.Bias `json:"bias"`
	DTETarget  int        `json:"dte_target"`
	MaxPremium float64    `json:"max_premium"`
}

func (c Constraints) Validate() error {
	if c.DTETarget <= 0 {
		return fmt.Errorf("%w: dte_target must be positive", types.ErrValidation)
	}
	if c.MaxPremium <= 0 {
		return fmt.Errorf("%w: max_premium must be positive", types.ErrValidation)
	}
	if _, err := FamiliesForBias(c.Bias); err != nil {
		return err
	}
	return nil
}

// Candidate is a ranked, defined-risk structure before ticket assembly.
type Candidate struct {
	Underlying    string
	Strategy      types.StrategyFamily
	Legs          []types.Leg
	Expiry        string
	DTE           int
	CreditOrDebit float64
	Width         float64
	MaxLoss       float64
	PopEstimate   float64
	Breakdown     types.ScoreBreakdown
	Blended       float64
}

// Builder constructs and ranks candidates. Stateless after creation;
// safe for concurrent use across underlyings.
type Builder struct {
	cfg      config.BuilderConfig
	riskFree float64
}

func NewBuilder(cfg config.BuilderConfig) *Builder {
	return &Builder{cfg: cfg, riskFree: pricing.DefaultRiskFreeRate}
}

// Build produces up to max_tickets deduplicated candidates for one
// underlying, ranked by the blended edge/payoff/safety score. Ties
// break on higher edge, then higher safety, then fewer DTE.
func (b *Builder) Build(snap types.MarketSnapshot, cons Constraints, edge types.EdgeScore) ([]Candidate, error) {
	if err := cons.Validate(); err != nil {
		return nil, err
	}
	if snap.Price <= 0 || snap.ImpliedVol <= 0 {
		return nil, fmt.Errorf("%w: snapshot for %s lacks price or implied vol", types.ErrValidation, snap.Symbol)
	}

	fams, err := FamiliesForBias(cons.Bias)
	if err != nil {
		return nil, err
	}
	expiries := b.pickExpirations(snap, cons.DTETarget)
	if len(expiries) == 0 {
		return nil, fmt.Errorf("%w: no usable expirations for %s", types.ErrValidation, snap.Symbol)
	}

	var candidates []Candidate
	for _, exp := range expiries {
		for _, fam := range fams {
			spec := families[fam]
			cand, err := spec.build(b, snap, exp.expiry, exp.dte)
			if err != nil {
				logger.Debugf("[builder] %s %s %s skipped: %v", snap.Symbol, fam, exp.expiry, err)
				continue
			}
			if cand.CreditOrDebit <= 0 {
				logger.Debugf("[builder] %s %s %s discarded: non-positive premium", snap.Symbol, fam, exp.expiry)
				continue
			}
			if cand.CreditOrDebit < b.cfg.MinPremium {
				logger.Debugf("[builder] %s %s %s discarded: premium %.2f under minimum %.2f",
					snap.Symbol, fam, exp.expiry, cand.CreditOrDebit, b.cfg.MinPremium)
				continue
			}
			if cand.MaxLoss > cons.MaxPremium {
				logger.Debugf("[builder] %s %s %s discarded: max loss %.2f over budget %.2f",
					snap.Symbol, fam, exp.expiry, cand.MaxLoss, cons.MaxPremium)
				continue
			}
			b.scoreCandidate(cand, snap, edge)
			candidates = append(candidates, *cand)
		}
	}

	rankCandidates(candidates)
	candidates = dedupCandidates(candidates)
	if len(candidates) > b.cfg.MaxTickets {
		candidates = candidates[:b.cfg.MaxTickets]
	}
	return candidates, nil
}

type expiryChoice struct {
	expiry string
	dte    int
}

// pickExpirations returns up to three listed expirations nearest the
// DTE target, closest first.
func (b *Builder) pickExpirations(snap types.MarketSnapshot, dteTarget int) []expiryChoice {
	asOf := snap.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	var choices []expiryChoice
	for _, raw := range snap.Expirations {
		exp, err := time.Parse("2006-01-02", raw)
		if err != nil {
			logger.Warnf("[builder] %s has unparseable expiration %q", snap.Symbol, raw)
			continue
		}
		dte := int(math.Round(exp.Sub(asOf).Hours() / 24))
		if dte <= 0 {
			continue
		}
		choices = append(choices, expiryChoice{expiry: raw, dte: dte})
	}
	sort.SliceStable(choices, func(i, j int) bool {
		di := abs(choices[i].dte - dteTarget)
		dj := abs(choices[j].dte - dteTarget)
		if di != dj {
			return di < dj
		}
		return choices[i].dte < choices[j].dte
	})
	if len(choices) > maxExpirationsTried {
		choices = choices[:maxExpirationsTried]
	}
	return choices
}

// buildIronCondor sells a put and a call near the configured short
// delta and buys protective wings one width further out on each side.
func (b *Builder) buildIronCondor(snap types.MarketSnapshot, expiry string, dte int) (*Candidate, error) {
	t := yearsToExpiry(dte)
	inc := strikeIncrement(snap.Price)
	width := b.cfg.CondorWingWidth

	shortPut, err := b.strikeAtDelta(snap, t, types.OptionPut, b.cfg.ShortDelta, inc)
	if err != nil {
		return nil, err
	}
	shortCall, err := b.strikeAtDelta(snap, t, types.OptionCall, b.cfg.ShortDelta, inc)
	if err != nil {
		return nil, err
	}
	if shortPut >= shortCall {
		return nil, fmt.Errorf("%w: condor short strikes crossed (%.2f >= %.2f)", types.ErrComputation, shortPut, shortCall)
	}
	longPut := shortPut - width
	longCall := shortCall + width
	if longPut <= 0 {
		return nil, fmt.Errorf("%w: condor long put strike non-positive", types.ErrComputation)
	}

	legs := []types.Leg{
		b.leg(snap, t, types.SideBuy, types.OptionPut, longPut),
		b.leg(snap, t, types.SideSell, types.OptionPut, shortPut),
		b.leg(snap, t, types.SideSell, types.OptionCall, shortCall),
		b.leg(snap, t, types.SideBuy, types.OptionCall, longCall),
	}
	credit := 0.0
	for _, l := range legs {
		credit -= l.Signed() * l.Price
	}
	maxLoss := width - credit

	probPut, err := pricing.ProbITM(snap.Price, shortPut, t, b.riskFree, snap.ImpliedVol, types.OptionPut, 0)
	if err != nil {
		return nil, err
	}
	probCall, err := pricing.ProbITM(snap.Price, shortCall, t, b.riskFree, snap.ImpliedVol, types.OptionCall, 0)
	if err != nil {
		return nil, err
	}
	pop := clamp01(1 - probPut - probCall)

	return &Candidate{
		Underlying:    snap.Symbol,
		Strategy:      types.StrategyIronCondor,
		Legs:          legs,
		Expiry:        expiry,
		DTE:           dte,
		CreditOrDebit: round2(credit),
		Width:         width,
		MaxLoss:       round2(maxLoss),
		PopEstimate:   pop,
	}, nil
}

// buildBullCallSpread buys the at-the-money call and sells a call one
// spread width higher.
func (b *Builder) buildBullCallSpread(snap types.MarketSnapshot, expiry string, dte int) (*Candidate, error) {
	t := yearsToExpiry(dte)
	inc := strikeIncrement(snap.Price)
	longStrike := math.Floor(snap.Price/inc) * inc
	shortStrike := longStrike + b.cfg.SpreadWidth

	legs := []types.Leg{
		b.leg(snap, t, types.SideBuy, types.OptionCall, longStrike),
		b.leg(snap, t, types.SideSell, types.OptionCall, shortStrike),
	}
	debit := legs[0].Price - legs[1].Price
	breakeven := longStrike + debit

	pop, err := pricing.ProbITM(snap.Price, breakeven, t, b.riskFree, snap.ImpliedVol, types.OptionCall, 0)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		Underlying:    snap.Symbol,
		Strategy:      types.StrategyBullCallSpread,
		Legs:          legs,
		Expiry:        expiry,
		DTE:           dte,
		CreditOrDebit: round2(debit),
		Width:         b.cfg.SpreadWidth,
		MaxLoss:       round2(debit),
		PopEstimate:   pop,
	}, nil
}

// buildBearPutSpread buys the at-the-money put and sells a put one
// spread width lower.
func (b *Builder) buildBearPutSpread(snap types.MarketSnapshot, expiry string, dte int) (*Candidate, error) {
	t := yearsToExpiry(dte)
	inc := strikeIncrement(snap.Price)
	longStrike := math.Ceil(snap.Price/inc) * inc
	shortStrike := longStrike - b.cfg.SpreadWidth
	if shortStrike <= 0 {
		return nil, fmt.Errorf("%w: put spread short strike non-positive", types.ErrComputation)
	}

	legs := []types.Leg{
		b.leg(snap, t, types.SideBuy, types.OptionPut, longStrike),
		b.leg(snap, t, types.SideSell, types.OptionPut, shortStrike),
	}
	debit := legs[0].Price - legs[1].Price
	breakeven := longStrike - debit

	pop, err := pricing.ProbITM(snap.Price, breakeven, t, b.riskFree, snap.ImpliedVol, types.OptionPut, 0)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		Underlying:    snap.Symbol,
		Strategy:      types.StrategyBearPutSpread,
		Legs:          legs,
		Expiry:        expiry,
		DTE:           dte,
		CreditOrDebit: round2(debit),
		Width:         b.cfg.SpreadWidth,
		MaxLoss:       round2(debit),
		PopEstimate:   pop,
	}, nil
}

// leg prices one contract and attaches its greeks.
func (b *Builder) leg(snap types.MarketSnapshot, t float64, side types.Side, optType types.OptionType, strike float64) types.Leg {
	g, err := pricing.Compute(snap.Price, strike, t, b.riskFree, snap.ImpliedVol, optType, 0)
	if err != nil {
		logger.Warnf("[builder] pricing %s %s %.2f failed: %v", snap.Symbol, optType, strike, err)
	}
	return types.Leg{
		Side:     side,
		Type:     optType,
		Strike:   strike,
		Quantity: 1,
		Delta:    g.Delta,
		Gamma:    g.Gamma,
		Vega:     g.Vega,
		Price:    g.Price,
	}
}

// strikeAtDelta walks the strike grid away from spot and returns the
// strike whose absolute delta is closest to the target.
func (b *Builder) strikeAtDelta(snap types.MarketSnapshot, t float64, optType types.OptionType, target, inc float64) (float64, error) {
	const maxSteps = 60
	start := math.Floor(snap.Price/inc) * inc
	dir := -1.0
	if optType == types.OptionCall {
		start = math.Ceil(snap.Price/inc) * inc
		dir = 1.0
	}
	best := 0.0
	bestDiff := math.Inf(1)
	for i := 1; i <= maxSteps; i++ {
		strike := start + dir*inc*float64(i)
		if strike <= 0 {
			break
		}
		g, err := pricing.Compute(snap.Price, strike, t, b.riskFree, snap.ImpliedVol, optType, 0)
		if err != nil {
			return 0, err
		}
		diff := math.Abs(math.Abs(g.Delta) - target)
		if diff < bestDiff {
			bestDiff = diff
			best = strike
		}
		// Deltas shrink monotonically away from spot; once past the
		// target the best strike cannot improve.
		if math.Abs(g.Delta) < target && i > 1 {
			break
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("%w: no strike near %.2f delta for %s", types.ErrComputation, target, snap.Symbol)
	}
	return best, nil
}

// scoreCandidate fills the blended ranking score in place.
func (b *Builder) scoreCandidate(c *Candidate, snap types.MarketSnapshot, edge types.EdgeScore) {
	c.Breakdown = types.ScoreBreakdown{
		Edge:   edge.Composite,
		Payoff: payoffScore(c),
		Safety: safetyScore(c, snap),
	}
	c.Blended = c.Breakdown.Edge*b.cfg.RankEdgeWeight +
		c.Breakdown.Payoff*b.cfg.RankPayoffWt +
		c.Breakdown.Safety*b.cfg.RankSafetyWt
}

// payoffScore normalizes reward against total at-risk width to [0,1].
// For credit structures this is credit/width; for debit verticals the
// capped profit share of the width.
func payoffScore(c *Candidate) float64 {
	if c.Width <= 0 {
		return 0
	}
	switch c.Strategy {
	case types.StrategyIronCondor:
		return clamp01(c.CreditOrDebit / c.Width)
	default:
		return clamp01((c.Width - c.CreditOrDebit) / c.Width)
	}
}

// safetyScore scales the distance from spot to the nearest short
// strike by the one-sigma move to expiry.
func safetyScore(c *Candidate, snap types.MarketSnapshot) float64 {
	nearest := math.Inf(1)
	for _, l := range c.Legs {
		if l.Side != types.SideSell {
			continue
		}
		if d := math.Abs(snap.Price - l.Strike); d < nearest {
			nearest = d
		}
	}
	if math.IsInf(nearest, 1) {
		return 0
	}
	sigmaMove := snap.Price * snap.ImpliedVol * math.Sqrt(yearsToExpiry(c.DTE))
	if sigmaMove <= 0 {
		return 0
	}
	return clamp01(nearest / (2 * sigmaMove))
}

func rankCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Blended != b.Blended {
			return a.Blended > b.Blended
		}
		if a.Breakdown.Edge != b.Breakdown.Edge {
			return a.Breakdown.Edge > b.Breakdown.Edge
		}
		if a.Breakdown.Safety != b.Breakdown.Safety {
			return a.Breakdown.Safety > b.Breakdown.Safety
		}
		return a.DTE < b.DTE
	})
}

// dedupCandidates drops later duplicates keyed by underlying, expiry
// and the strike footprint.
func dedupCandidates(cands []Candidate) []Candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		key := dedupKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func dedupKey(c Candidate) string {
	strikes := make([]string, 0, len(c.Legs))
	for _, l := range c.Legs {
		strikes = append(strikes, fmt.Sprintf("%.2f", l.Strike))
	}
	sort.Strings(strikes)
	return c.Underlying + "|" + c.Expiry + "|" + strings.Join(strikes, ",")
}

func yearsToExpiry(dte int) float64 {
	return float64(dte) / 365.0
}

func strikeIncrement(price float64) float64 {
	if price >= 100 {
		return 5
	}
	return 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
