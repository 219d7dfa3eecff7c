package types

import "time"

type VolRegime string

const (
	VolCompressed  VolRegime = "compressed"
	VolExpanding   VolRegime = "expanding"
	VolStressed    VolRegime = "stressed"
	VolExtremeHigh VolRegime = "extreme_high"
)

type CorrelationRegime string

const (
	CorrLow    CorrelationRegime = "low"
	CorrMedium CorrelationRegime = "medium"
	CorrHigh   CorrelationRegime = "high"
	CorrCrisis CorrelationRegime = "crisis"
)

type RiskAppetite string

const (
	RiskOn      RiskAppetite = "risk_on"
	RiskNeutral RiskAppetite = "neutral"
	RiskOff     RiskAppetite = "risk_off"
)

type GammaDirection string

const (
	GammaPositive GammaDirection = "positive"
	GammaNegative GammaDirection = "negative"
	GammaFlat     GammaDirection = "neutral"
)

// RegimeSnapshot is the classifier's view of the current market regime.
type RegimeSnapshot struct {
	VolRegime         VolRegime         `json:"vol_regime"`
	CorrelationRegime CorrelationRegime `json:"correlation_regime"`
	RiskAppetite      RiskAppetite      `json:"risk_appetite"`
	VIXPercentile     float64           `json:"vix_percentile"`
	AvgCorrelation    float64           `json:"avg_correlation"`
	DealerGamma       GammaDirection    `json:"dealer_gamma"`
	MacroElevated     bool              `json:"macro_elevated"`
	Timestamp         time.Time         `json:"timestamp"`
}

// EdgeInputs is the per-underlying signal bundle consumed by the edge
// scorer. A nil field means the signal could not be observed; the scorer
// renormalizes weights over the remaining components.
//
// Conventions:
//   - IVRVRatio: implied/realized vol ratio, ~1.0 neutral, >1 rich.
//   - TermSlope: (back IV - front IV) / front IV; positive = contango.
//   - SkewSpread: 25-delta put IV minus call IV; positive = put skew.
//   - DealerGammaScore: [-1,1], positive = dealers long gamma.
//   - DaysToEvent: calendar days to the next known macro/earnings event.
type EdgeInputs struct {
	Underlying       string   `json:"underlying"`
	IVRVRatio        *float64 `json:"iv_rv_ratio,omitempty"`
	TermSlope        *float64 `json:"term_slope,omitempty"`
	SkewSpread       *float64 `json:"skew_spread,omitempty"`
	DealerGammaScore *float64 `json:"dealer_gamma,omitempty"`
	DaysToEvent      *int     `json:"days_to_event,omitempty"`
}

// EdgeScore is the normalized output of the edge scorer.
type EdgeScore struct {
	Components map[string]float64 `json:"components"`
	Composite  float64            `json:"composite"`
}

// CalendarEvent is a known macro or earnings event.
type CalendarEvent struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// MarketSnapshot is what the desk knows about one underlying at one
// instant. Supplied by a MarketDataProvider; the core never fetches.
type MarketSnapshot struct {
	Symbol        string          `json:"symbol"`
	Price         float64         `json:"price"`
	ImpliedVol    float64         `json:"implied_vol"`
	FrontIV       float64         `json:"front_iv"`
	BackIV        float64         `json:"back_iv"`
	SkewSpread    float64         `json:"skew_spread"`
	PutCallOI     float64         `json:"put_call_oi_ratio"`
	OpenInterest  int64           `json:"open_interest"`
	AvgVolume     float64         `json:"avg_volume"`
	HistCloses    []float64       `json:"hist_closes,omitempty"`
	Expirations   []string        `json:"expirations,omitempty"`
	EventCalendar []CalendarEvent `json:"event_calendar,omitempty"`
	AsOf          time.Time       `json:"as_of"`
}

// OpenPosition is one live ticket's contribution to portfolio exposure.
type OpenPosition struct {
	TicketID   string         `json:"ticket_id"`
	Underlying string         `json:"underlying"`
	MaxLoss    float64        `json:"max_loss"`
	Greeks     GreeksExposure `json:"greeks"`
}

// PortfolioState is the risk gate's view of the account. WeeklyRealizedPnL
// is negative for a loss; WeeklyMaxLosses is the sum of worst-case losses
// of tickets already opened this week.
type PortfolioState struct {
	OpenPositions     []OpenPosition `json:"open_positions"`
	Exposure          GreeksExposure `json:"current_greeks_exposure"`
	AccountEquity     float64        `json:"account_equity"`
	WeeklyRealizedPnL float64        `json:"weekly_realized_pnl"`
	WeeklyMaxLosses   float64        `json:"weekly_max_losses"`
}

// OpenForUnderlying counts live positions on one underlying.
func (p PortfolioState) OpenForUnderlying(symbol string) int {
	n := 0
	for _, pos := range p.OpenPositions {
		if pos.Underlying == symbol {
			n++
		}
	}
	return n
}
