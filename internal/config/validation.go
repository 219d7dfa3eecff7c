package config

import (
	"fmt"
	"math"
	"strings"
)

// validate performs basic sanity checks on the loaded config.
func validate(c *Config) error {
	if err := c.Edge.validate(); err != nil {
		return err
	}
	if err := c.Builder.validate(); err != nil {
		return err
	}
	if err := c.Gate.validate(); err != nil {
		return err
	}
	if err := c.Sizer.validate(); err != nil {
		return err
	}
	if err := c.Regime.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	return nil
}

func (e *EdgeConfig) validate() error {
	if len(e.Weights) == 0 {
		return fmt.Errorf("edge.weights requires at least one component")
	}
	sum := 0.0
	for name, w := range e.Weights {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("edge.weights contains an empty component name")
		}
		if w <= 0 {
			return fmt.Errorf("edge.weights.%s must be > 0", name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("edge.weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

func (b *BuilderConfig) validate() error {
	if b.MaxTickets <= 0 {
		return fmt.Errorf("builder.max_tickets must be > 0")
	}
	if b.CondorWingWidth <= 0 {
		return fmt.Errorf("builder.condor_wing_width must be > 0")
	}
	if b.SpreadWidth <= 0 {
		return fmt.Errorf("builder.spread_width must be > 0")
	}
	if b.ShortDelta <= 0 || b.ShortDelta >= 0.5 {
		return fmt.Errorf("builder.short_delta must be in (0, 0.5)")
	}
	if b.MinPremium < 0 {
		return fmt.Errorf("builder.min_premium must be >= 0")
	}
	rankSum := b.RankEdgeWeight + b.RankPayoffWt + b.RankSafetyWt
	if math.Abs(rankSum-1.0) > 1e-9 {
		return fmt.Errorf("builder rank weights must sum to 1.0, got %.6f", rankSum)
	}
	return nil
}

func (g *GateConfig) validate() error {
	if g.AccountEquity <= 0 {
		return fmt.Errorf("gate.account_equity must be > 0")
	}
	if g.MaxTradeRiskPct <= 0 || g.MaxTradeRiskPct > 100 {
		return fmt.Errorf("gate.max_trade_risk_pct must be in (0, 100]")
	}
	if g.MaxWeeklyLossPct <= 0 || g.MaxWeeklyLossPct > 100 {
		return fmt.Errorf("gate.max_weekly_loss_pct must be in (0, 100]")
	}
	if g.KillSwitchDrawdownPct <= 0 || g.KillSwitchDrawdownPct > 100 {
		return fmt.Errorf("gate.kill_switch_drawdown_pct must be in (0, 100]")
	}
	if g.MaxPortfolioDelta <= 0 || g.MaxPortfolioVega <= 0 || g.MaxPortfolioGamma <= 0 {
		return fmt.Errorf("gate greek limits must be > 0")
	}
	if g.MaxOpenPerUnderlying <= 0 {
		return fmt.Errorf("gate.max_open_per_underlying must be > 0")
	}
	return nil
}

func (s *SizerConfig) validate() error {
	if s.BaseRiskPct <= 0 || s.BaseRiskPct > 100 {
		return fmt.Errorf("sizer.base_risk_pct must be in (0, 100]")
	}
	if s.MinLiquidityScore < 0 || s.MinLiquidityScore > 1 {
		return fmt.Errorf("sizer.min_liquidity_score must be in [0, 1]")
	}
	return nil
}

func (r *RegimeConfig) validate() error {
	if r.VIXLowPercentile >= r.VIXHighPercentile {
		return fmt.Errorf("regime.vix_low_percentile must be < vix_high_percentile")
	}
	if r.VIXHighPercentile >= r.VIXExtremePercentile {
		return fmt.Errorf("regime.vix_high_percentile must be < vix_extreme_percentile")
	}
	if r.CorrLowThreshold >= r.CorrHighThreshold {
		return fmt.Errorf("regime.corr_low_threshold must be < corr_high_threshold")
	}
	if r.CorrHighThreshold >= r.CorrCrisisThreshold {
		return fmt.Errorf("regime.corr_high_threshold must be < corr_crisis_threshold")
	}
	if r.PutCallLowRatio >= r.PutCallHighRatio {
		return fmt.Errorf("regime.put_call_low_ratio must be < put_call_high_ratio")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.FixturePath) == "" {
		return fmt.Errorf("market.fixture_path cannot be empty")
	}
	if m.RequestsPerSec <= 0 {
		return fmt.Errorf("market.requests_per_sec must be > 0")
	}
	if m.RequestBurst <= 0 {
		return fmt.Errorf("market.request_burst must be > 0")
	}
	return nil
}
