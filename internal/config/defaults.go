package config

import "strings"

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9982"
	defaultAppLogPath        = ""
	defaultStoreDBPath       = "data/voledge.db"
	defaultStoreJournal      = "data/journal.db"
	defaultMarketFixture     = "configs/market_fixture.json"
	defaultMarketRPS         = 4.0
	defaultMarketBurst       = 8
	defaultBreakerFailures   = 5
	defaultBreakerCooldown   = 30
	defaultBuilderMaxTickets = 3
	defaultCondorWingWidth   = 5.0
	defaultSpreadWidth       = 5.0
	defaultShortDelta        = 0.16
	defaultMinPremium        = 0.05
	defaultRankEdgeWeight    = 0.5
	defaultRankPayoffWeight  = 0.3
	defaultRankSafetyWeight  = 0.2
	defaultAccountEquity     = 100000.0
	defaultMaxTradeRiskPct   = 1.5
	defaultMaxWeeklyLossPct  = 5.0
	defaultKillSwitchPct     = 3.0
	defaultMaxDelta          = 50.0
	defaultMaxVega           = 500.0
	defaultMaxGamma          = 10.0
	defaultMaxOpenPerUnd     = 2
	defaultBaseRiskPct       = 1.0
	defaultMinLiquidity      = 0.1
	defaultVIXLowPct         = 25.0
	defaultVIXHighPct        = 75.0
	defaultVIXExtremePct     = 95.0
	defaultCorrLow           = 0.3
	defaultCorrHigh          = 0.6
	defaultCorrCrisis        = 0.8
	defaultPutCallHigh       = 1.2
	defaultPutCallLow        = 0.8
	defaultMacroWindowDays   = 2
	defaultProfilesPath      = "configs/strategies.yaml"
)

// defaultEdgeWeights mirrors the composite scorer's component weights.
func defaultEdgeWeights() map[string]float64 {
	return map[string]float64{
		"iv_rv_ratio":     0.30,
		"term_structure":  0.20,
		"skew":            0.20,
		"dealer_gamma":    0.15,
		"event_proximity": 0.15,
	}
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Edge.applyDefaults(keys)
	c.Builder.applyDefaults(keys)
	c.Gate.applyDefaults(keys)
	c.Sizer.applyDefaults(keys)
	c.Regime.applyDefaults(keys)
	c.Profiles.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.db_path", &s.DBPath, defaultStoreDBPath),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultStoreJournal),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.fixture_path", &m.FixturePath, defaultMarketFixture),
		floatFieldDefault("market.requests_per_sec", &m.RequestsPerSec, defaultMarketRPS),
		intFieldDefault("market.request_burst", &m.RequestBurst, defaultMarketBurst),
		intFieldDefault("market.breaker_failures", &m.BreakerFailures, defaultBreakerFailures),
		intFieldDefault("market.breaker_cooldown_seconds", &m.BreakerCooldown, defaultBreakerCooldown),
	)
}

func (e *EdgeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	if len(e.Weights) == 0 {
		e.Weights = defaultEdgeWeights()
	}
}

func (b *BuilderConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("builder.max_tickets", &b.MaxTickets, defaultBuilderMaxTickets),
		floatFieldDefault("builder.condor_wing_width", &b.CondorWingWidth, defaultCondorWingWidth),
		floatFieldDefault("builder.spread_width", &b.SpreadWidth, defaultSpreadWidth),
		floatFieldDefault("builder.short_delta", &b.ShortDelta, defaultShortDelta),
		floatFieldDefault("builder.min_premium", &b.MinPremium, defaultMinPremium),
		floatFieldDefault("builder.rank_edge_weight", &b.RankEdgeWeight, defaultRankEdgeWeight),
		floatFieldDefault("builder.rank_payoff_weight", &b.RankPayoffWt, defaultRankPayoffWeight),
		floatFieldDefault("builder.rank_safety_weight", &b.RankSafetyWt, defaultRankSafetyWeight),
	)
}

func (g *GateConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("gate.account_equity", &g.AccountEquity, defaultAccountEquity),
		floatFieldDefault("gate.max_trade_risk_pct", &g.MaxTradeRiskPct, defaultMaxTradeRiskPct),
		floatFieldDefault("gate.max_weekly_loss_pct", &g.MaxWeeklyLossPct, defaultMaxWeeklyLossPct),
		floatFieldDefault("gate.kill_switch_drawdown_pct", &g.KillSwitchDrawdownPct, defaultKillSwitchPct),
		floatFieldDefault("gate.max_portfolio_delta", &g.MaxPortfolioDelta, defaultMaxDelta),
		floatFieldDefault("gate.max_portfolio_vega", &g.MaxPortfolioVega, defaultMaxVega),
		floatFieldDefault("gate.max_portfolio_gamma", &g.MaxPortfolioGamma, defaultMaxGamma),
		intFieldDefault("gate.max_open_per_underlying", &g.MaxOpenPerUnderlying, defaultMaxOpenPerUnd),
	)
}

func (s *SizerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("sizer.base_risk_pct", &s.BaseRiskPct, defaultBaseRiskPct),
		floatFieldDefault("sizer.min_liquidity_score", &s.MinLiquidityScore, defaultMinLiquidity),
	)
}

func (r *RegimeConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("regime.vix_low_percentile", &r.VIXLowPercentile, defaultVIXLowPct),
		floatFieldDefault("regime.vix_high_percentile", &r.VIXHighPercentile, defaultVIXHighPct),
		floatFieldDefault("regime.vix_extreme_percentile", &r.VIXExtremePercentile, defaultVIXExtremePct),
		floatFieldDefault("regime.corr_low_threshold", &r.CorrLowThreshold, defaultCorrLow),
		floatFieldDefault("regime.corr_high_threshold", &r.CorrHighThreshold, defaultCorrHigh),
		floatFieldDefault("regime.corr_crisis_threshold", &r.CorrCrisisThreshold, defaultCorrCrisis),
		floatFieldDefault("regime.put_call_high_ratio", &r.PutCallHighRatio, defaultPutCallHigh),
		floatFieldDefault("regime.put_call_low_ratio", &r.PutCallLowRatio, defaultPutCallLow),
		intFieldDefault("regime.macro_window_days", &r.MacroWindowDays, defaultMacroWindowDays),
	)
}

func (p *ProfilesConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("profiles.path", &p.Path, defaultProfilesPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
