package config

import "strings"

// Config is the top level configuration for the decision engine.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Store    StoreConfig    `yaml:"store"`
	Market   MarketConfig   `yaml:"market"`
	Edge     EdgeConfig     `yaml:"edge"`
	Builder  BuilderConfig  `yaml:"builder"`
	Gate     GateConfig     `yaml:"gate"`
	Sizer    SizerConfig    `yaml:"sizer"`
	Regime   RegimeConfig   `yaml:"regime"`
	Profiles ProfilesConfig `yaml:"profiles"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	LogPath  string `yaml:"log_path"`
}

type StoreConfig struct {
	DBPath      string `yaml:"db_path"`
	JournalPath string `yaml:"journal_path"`
}

type MarketConfig struct {
	FixturePath     string   `yaml:"fixture_path"`
	Watchlist       []string `yaml:"watchlist"`
	RequestsPerSec  float64  `yaml:"requests_per_sec"`
	RequestBurst    int      `yaml:"request_burst"`
	BreakerFailures int      `yaml:"breaker_failures"`
	BreakerCooldown int      `yaml:"breaker_cooldown_seconds"`
}

// EdgeConfig carries the composite score weights keyed by component name.
// Weights must sum to 1.0; missing market inputs renormalize over the
// components that are present.
type EdgeConfig struct {
	Weights map[string]float64 `yaml:"weights"`
}

type BuilderConfig struct {
	MaxTickets      int     `yaml:"max_tickets"`
	CondorWingWidth float64 `yaml:"condor_wing_width"`
	SpreadWidth     float64 `yaml:"spread_width"`
	ShortDelta      float64 `yaml:"short_delta"`
	MinPremium      float64 `yaml:"min_premium"`
	RankEdgeWeight  float64 `yaml:"rank_edge_weight"`
	RankPayoffWt    float64 `yaml:"rank_payoff_weight"`
	RankSafetyWt    float64 `yaml:"rank_safety_weight"`
}

type GateConfig struct {
	AccountEquity         float64 `yaml:"account_equity"`
	MaxTradeRiskPct       float64 `yaml:"max_trade_risk_pct"`
	MaxWeeklyLossPct      float64 `yaml:"max_weekly_loss_pct"`
	KillSwitchDrawdownPct float64 `yaml:"kill_switch_drawdown_pct"`
	MaxPortfolioDelta     float64 `yaml:"max_portfolio_delta"`
	MaxPortfolioVega      float64 `yaml:"max_portfolio_vega"`
	MaxPortfolioGamma     float64 `yaml:"max_portfolio_gamma"`
	MaxOpenPerUnderlying  int     `yaml:"max_open_per_underlying"`
}

type SizerConfig struct {
	BaseRiskPct       float64 `yaml:"base_risk_pct"`
	MinLiquidityScore float64 `yaml:"min_liquidity_score"`
}

type RegimeConfig struct {
	VIXLowPercentile     float64 `yaml:"vix_low_percentile"`
	VIXHighPercentile    float64 `yaml:"vix_high_percentile"`
	VIXExtremePercentile float64 `yaml:"vix_extreme_percentile"`
	CorrLowThreshold     float64 `yaml:"corr_low_threshold"`
	CorrHighThreshold    float64 `yaml:"corr_high_threshold"`
	CorrCrisisThreshold  float64 `yaml:"corr_crisis_threshold"`
	PutCallHighRatio     float64 `yaml:"put_call_high_ratio"`
	PutCallLowRatio      float64 `yaml:"put_call_low_ratio"`
	MacroWindowDays      int     `yaml:"macro_window_days"`
}

type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// keySet tracks field paths explicitly present in the config file so
// defaults do not clobber intentional zero values.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
