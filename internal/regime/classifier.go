// Package regime classifies the current market regime across
// volatility, cross-asset correlation, dealer gamma, and macro event
// proximity. The gates consume the resulting snapshot.
package regime

import (
	"fmt"
	"time"

	"voledge/internal/config"
	"voledge/internal/logger"
	"voledge/internal/types"

	talib "github.com/markcheno/go-talib"
)

const (
	corrWindow     = 20
	minVIXHistory  = 20
	minMacroPoints = 10

	// Recent-vs-trailing volatility ratio above which a macro asset is
	// considered to be signalling an imminent event.
	macroSpikeRatio = 1.5
)

// Inputs holds the observations one classification runs on. Return
// series are daily simple returns, oldest first.
type Inputs struct {
	VIXCloses     []float64
	SectorReturns map[string][]float64
	MacroReturns  map[string][]float64
	PutCallOI     float64
	Events        []types.CalendarEvent
	AsOf          time.Time
}

// Classifier derives a RegimeSnapshot from raw market observations.
type Classifier struct {
	cfg config.RegimeConfig
}

func NewClassifier(cfg config.RegimeConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify runs every sub-signal and combines them into a snapshot.
func (c *Classifier) Classify(in Inputs) (types.RegimeSnapshot, error) {
	if len(in.VIXCloses) < minVIXHistory {
		return types.RegimeSnapshot{}, fmt.Errorf("%w: need at least %d vix closes, have %d",
			types.ErrComputation, minVIXHistory, len(in.VIXCloses))
	}

	vol, pctl := c.classifyVol(in.VIXCloses)
	corr, avgCorr := c.classifyCorrelation(in.SectorReturns)
	gamma := c.gammaDirection(in.PutCallOI)
	macro := c.macroElevated(in)

	snap := types.RegimeSnapshot{
		VolRegime:         vol,
		CorrelationRegime: corr,
		RiskAppetite:      riskAppetite(vol, corr, gamma, macro),
		VIXPercentile:     pctl,
		AvgCorrelation:    avgCorr,
		DealerGamma:       gamma,
		MacroElevated:     macro,
		Timestamp:         in.AsOf,
	}
	logger.Infof("[regime] vol=%s (pctl %.1f) corr=%s (%.3f) gamma=%s macro_elevated=%v appetite=%s",
		snap.VolRegime, snap.VIXPercentile, snap.CorrelationRegime, snap.AvgCorrelation,
		snap.DealerGamma, snap.MacroElevated, snap.RiskAppetite)
	return snap, nil
}

// classifyVol ranks the latest VIX close against its own trailing
// history.
func (c *Classifier) classifyVol(closes []float64) (types.VolRegime, float64) {
	current := closes[len(closes)-1]
	below := 0
	for _, v := range closes {
		if v < current {
			below++
		}
	}
	pctl := float64(below) / float64(len(closes)) * 100

	sma := talib.Sma(closes, minVIXHistory)
	logger.Debugf("[regime] vix current=%.2f sma20=%.2f percentile=%.1f", current, sma[len(sma)-1], pctl)

	switch {
	case pctl >= c.cfg.VIXExtremePercentile:
		return types.VolExtremeHigh, pctl
	case pctl >= c.cfg.VIXHighPercentile:
		return types.VolStressed, pctl
	case pctl <= c.cfg.VIXLowPercentile:
		return types.VolCompressed, pctl
	default:
		return types.VolExpanding, pctl
	}
}

// classifyCorrelation averages pairwise 20-day correlations across the
// sector return series. Too little data reads as medium.
func (c *Classifier) classifyCorrelation(sectors map[string][]float64) (types.CorrelationRegime, float64) {
	series := make([][]float64, 0, len(sectors))
	for _, returns := range sectors {
		if len(returns) >= corrWindow {
			series = append(series, returns)
		}
	}
	if len(series) < 2 {
		return types.CorrMedium, 0
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			a, b := alignTails(series[i], series[j])
			corr := talib.Correl(a, b, corrWindow)
			sum += corr[len(corr)-1]
			pairs++
		}
	}
	avg := sum / float64(pairs)

	switch {
	case avg > c.cfg.CorrCrisisThreshold:
		return types.CorrCrisis, avg
	case avg > c.cfg.CorrHighThreshold:
		return types.CorrHigh, avg
	case avg < c.cfg.CorrLowThreshold:
		return types.CorrLow, avg
	default:
		return types.CorrMedium, avg
	}
}

// gammaDirection reads dealer positioning off the put/call open
// interest ratio. Heavy put hedging leaves dealers short gamma.
func (c *Classifier) gammaDirection(putCallOI float64) types.GammaDirection {
	switch {
	case putCallOI <= 0:
		return types.GammaFlat
	case putCallOI > c.cfg.PutCallHighRatio:
		return types.GammaNegative
	case putCallOI < c.cfg.PutCallLowRatio:
		return types.GammaPositive
	default:
		return types.GammaFlat
	}
}

// macroElevated flags an imminent macro window: either a known event
// inside the configured horizon, or a volatility spike in any of the
// macro-sensitive return series.
func (c *Classifier) macroElevated(in Inputs) bool {
	window := time.Duration(c.cfg.MacroWindowDays) * 24 * time.Hour
	for _, ev := range in.Events {
		if ev.Date.Before(in.AsOf) {
			continue
		}
		if ev.Date.Sub(in.AsOf) <= window {
			logger.Debugf("[regime] macro event %s within %d days", ev.Name, c.cfg.MacroWindowDays)
			return true
		}
	}
	for sym, returns := range in.MacroReturns {
		if len(returns) < minMacroPoints {
			continue
		}
		full := talib.StdDev(returns, len(returns), 1.0)
		recent := talib.StdDev(returns, 5, 1.0)
		fullVol := full[len(full)-1]
		recentVol := recent[len(recent)-1]
		if fullVol > 0 && recentVol/fullVol > macroSpikeRatio {
			logger.Debugf("[regime] %s volatility spike (%.4f vs %.4f)", sym, recentVol, fullVol)
			return true
		}
	}
	return false
}

// riskAppetite tallies risk-on and risk-off votes from the sub-signals.
func riskAppetite(vol types.VolRegime, corr types.CorrelationRegime, gamma types.GammaDirection, macroElevated bool) types.RiskAppetite {
	riskOff, riskOn := 0, 0

	switch vol {
	case types.VolStressed, types.VolExtremeHigh:
		riskOff += 2
	case types.VolCompressed:
		riskOn += 2
	}

	switch corr {
	case types.CorrHigh, types.CorrCrisis:
		riskOff++
	case types.CorrLow:
		riskOn++
	}

	switch gamma {
	case types.GammaNegative:
		riskOff++
	case types.GammaPositive:
		riskOn++
	}

	if macroElevated {
		riskOff++
	}

	switch {
	case riskOff >= 3:
		return types.RiskOff
	case riskOn >= 3:
		return types.RiskOn
	default:
		return types.RiskNeutral
	}
}

// alignTails trims two series to a common length from the end.
func alignTails(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}
