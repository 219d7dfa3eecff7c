package types

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

type StrategyFamily string

const (
	StrategyBullCallSpread StrategyFamily = "bull_call_spread"
	StrategyBearPutSpread  StrategyFamily = "bear_put_spread"
	StrategyIronCondor     StrategyFamily = "iron_condor"
)

type TicketState string

const (
	StateProposed TicketState = "proposed"
	StateApproved TicketState = "approved"
	StateRejected TicketState = "rejected"
)

// Terminal reports whether the state admits no further transitions.
func (s TicketState) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// Leg is a single option leg. Greeks and price are filled in by the
// pricing layer when a market snapshot is available; zero otherwise.
type Leg struct {
	Side     Side       `json:"side"`
	Type     OptionType `json:"type"`
	Strike   float64    `json:"strike"`
	Quantity int        `json:"quantity"`
	Delta    float64    `json:"delta,omitempty"`
	Gamma    float64    `json:"gamma,omitempty"`
	Vega     float64    `json:"vega,omitempty"`
	Price    float64    `json:"price,omitempty"`
}

// Signed returns the leg's directional sign: +1 for buys, -1 for sells.
func (l Leg) Signed() float64 {
	if l.Side == SideSell {
		return -1
	}
	return 1
}

// ScoreBreakdown is the blended ranking score of a candidate.
type ScoreBreakdown struct {
	Edge   float64 `json:"edge"`
	Payoff float64 `json:"payoff"`
	Safety float64 `json:"safety"`
}

// GreeksExposure aggregates portfolio-level delta/vega/gamma.
type GreeksExposure struct {
	Delta float64 `json:"delta"`
	Vega  float64 `json:"vega"`
	Gamma float64 `json:"gamma"`
}

func (g GreeksExposure) Add(o GreeksExposure) GreeksExposure {
	return GreeksExposure{
		Delta: g.Delta + o.Delta,
		Vega:  g.Vega + o.Vega,
		Gamma: g.Gamma + o.Gamma,
	}
}

// GateResult is the outcome of a single policy gate. Every failing
// predicate contributes its own reason code; Reasons is empty when the
// gate passes. Before/After carry projected greeks for the risk gate
// and are nil for the regime gate.
type GateResult struct {
	Passed  bool            `json:"passed"`
	Reasons []string        `json:"reasons"`
	Before  *GreeksExposure `json:"portfolio_before,omitempty"`
	After   *GreeksExposure `json:"portfolio_after,omitempty"`
}

// SizingRecommendation is the position-sizer output attached to a ticket.
type SizingRecommendation struct {
	RecommendedSize  float64 `json:"recommended_size"`
	BaseRisk         float64 `json:"base_risk"`
	ConfidenceFactor float64 `json:"confidence_factor"`
	EdgeFactor       float64 `json:"edge_factor"`
	LiquidityScore   float64 `json:"liquidity_score"`
	EdgeAdjustment   float64 `json:"edge_adjustment"`
}

// TradeTicket is the unit of work of the desk: a fully-scored,
// structurally-safe candidate waiting for a human approve/reject.
// Tickets are created once by the factory, mutated only by the ledger,
// and retained indefinitely for audit.
type TradeTicket struct {
	ID             string         `json:"ticket_id"`
	Hash           string         `json:"ticket_hash"`
	Underlying     string         `json:"underlying"`
	Strategy       StrategyFamily `json:"strategy"`
	Legs           []Leg          `json:"legs"`
	Expiry         string         `json:"expiry"`
	DTE            int            `json:"dte"`
	// CreditOrDebit is the net premium magnitude: a credit received for
	// condors, a debit paid for verticals. Always positive on a valid ticket.
	CreditOrDebit  float64        `json:"credit_or_debit"`
	Width          float64        `json:"width"`
	MaxLoss        float64        `json:"max_loss"`
	PopEstimate    float64        `json:"pop_estimate"`
	EdgeScore      float64        `json:"edge_score"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	RegimeGate     GateResult     `json:"regime_gate"`
	RiskGate       GateResult     `json:"risk_gate"`
	Sizing         *SizingRecommendation `json:"sizing,omitempty"`
	State          TicketState    `json:"state"`
	CreatedAt      time.Time      `json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	RejectReason   string         `json:"reject_reason,omitempty"`
}

type AuditAction string

const (
	AuditApproved AuditAction = "approved"
	AuditRejected AuditAction = "rejected"
)

// AuditEntry records one committed state transition. The audit log is
// append-only and ordered by timestamp.
type AuditEntry struct {
	TicketID   string      `json:"ticket_id"`
	TicketHash string      `json:"ticket_hash"`
	Action     AuditAction `json:"action"`
	Reason     string      `json:"reason,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Actor      string      `json:"actor"`
}
