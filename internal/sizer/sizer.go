// Package sizer produces risk-adjusted dollar sizing recommendations
// for tickets that clear the gates.
package sizer

import (
	"math"

	"voledge/internal/config"
	"voledge/internal/logger"
	"voledge/internal/types"
)

const (
	maxConfidence = 5.0
	maxEdge       = 1.0

	// Overlay bounds on the implied-vs-historical edge ratio.
	edgeAdjustMin = 0.7
	edgeAdjustMax = 1.3

	// Liquidity benchmarks: 1M shares/day and 100K total OI each
	// saturate their component.
	volumeBenchmark = 1_000_000.0
	oiBenchmark     = 100_000.0
)

// Sizer converts confidence, liquidity, and edge into a dollar size.
type Sizer struct {
	cfg config.SizerConfig
}

func NewSizer(cfg config.SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes base_risk x confidence x edge, scaled by liquidity,
// with an optional implied-edge overlay. Base risk is a percentage of
// account equity. impliedEdge may be nil when no current-IV edge
// estimate exists.
func (s *Sizer) Size(equity, confidence, liquidity, historicalEdge float64, impliedEdge *float64) types.SizingRecommendation {
	base := equity * s.cfg.BaseRiskPct / 100

	confidence = clamp(confidence, 1, maxConfidence)
	floor := s.cfg.MinLiquidityScore
	if floor <= 0 {
		floor = 0.1
	}
	liquidity = clamp(liquidity, floor, 1)
	histEdge := clamp(historicalEdge, 0, maxEdge)

	confidenceFactor := confidence / maxConfidence
	edgeFactor := histEdge / maxEdge

	raw := base * confidenceFactor * edgeFactor
	adjusted := raw * liquidity

	edgeAdjustment := 1.0
	if impliedEdge != nil && histEdge > 0 {
		ratio := math.Max(0, *impliedEdge) / histEdge
		edgeAdjustment = clamp(ratio, edgeAdjustMin, edgeAdjustMax)
	}

	rec := types.SizingRecommendation{
		RecommendedSize:  round2(adjusted * edgeAdjustment),
		BaseRisk:         base,
		ConfidenceFactor: confidenceFactor,
		EdgeFactor:       edgeFactor,
		LiquidityScore:   liquidity,
		EdgeAdjustment:   edgeAdjustment,
	}
	logger.Debugf("[sizer] size=%.2f base=%.2f conf=%.2f edge=%.2f liq=%.2f adj=%.2f",
		rec.RecommendedSize, base, confidenceFactor, edgeFactor, liquidity, edgeAdjustment)
	return rec
}

// LiquidityScore blends average daily volume and total option open
// interest into a [0,1] score.
func (s *Sizer) LiquidityScore(snap types.MarketSnapshot) float64 {
	volScore := math.Min(snap.AvgVolume/volumeBenchmark, 1)
	oiScore := math.Min(float64(snap.OpenInterest)/oiBenchmark, 1)
	return (volScore + oiScore) / 2
}

// ConfidenceFromEdge maps a composite edge score in [0,1] onto the
// 1-5 confidence scale.
func ConfidenceFromEdge(composite float64) float64 {
	return 1 + clamp(composite, 0, 1)*4
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
