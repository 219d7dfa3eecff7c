// Package strategy builds candidate option structures for a directional
// or neutral view. Every family is defined-risk by construction: a short
// leg is only ever emitted alongside a long leg of equal quantity on the
// same underlying and expiry.
package strategy

import (
	"fmt"

	"voledge/internal/types"
)

// familySpec ties a strategy family to its leg-construction rule and
// its regime-applicability predicate.
type familySpec struct {
	build    buildFunc
	regimeNo regimeFunc
}

type buildFunc func(b *Builder, snap types.MarketSnapshot, expiry string, dte int) (*Candidate, error)

// regimeFunc returns one reason code per regime predicate the family
// fails under the snapshot; empty means compatible.
type regimeFunc func(snap types.RegimeSnapshot) []string

var families = map[types.StrategyFamily]familySpec{
	types.StrategyBullCallSpread: {
		build:    (*Builder).buildBullCallSpread,
		regimeNo: directionalRegimeReasons,
	},
	types.StrategyBearPutSpread: {
		build:    (*Builder).buildBearPutSpread,
		regimeNo: directionalRegimeReasons,
	},
	types.StrategyIronCondor: {
		build:    (*Builder).buildIronCondor,
		regimeNo: condorRegimeReasons,
	},
}

// FamiliesForBias maps a directional view to the families worth quoting.
func FamiliesForBias(bias types.Bias) ([]types.StrategyFamily, error) {
	switch bias {
	case types.BiasBullish:
		return []types.StrategyFamily{types.StrategyBullCallSpread}, nil
	case types.BiasBearish:
		return []types.StrategyFamily{types.StrategyBearPutSpread}, nil
	case types.BiasNeutral:
		return []types.StrategyFamily{types.StrategyIronCondor}, nil
	default:
		return nil, fmt.Errorf("%w: unknown bias %q", types.ErrValidation, bias)
	}
}

// RegimeReasons returns the reason codes for every regime predicate
// the family fails under the snapshot. Used by the regime gate.
func RegimeReasons(family types.StrategyFamily, snap types.RegimeSnapshot) []string {
	spec, ok := families[family]
	if !ok {
		return []string{"unknown_strategy_family"}
	}
	return spec.regimeNo(snap)
}

// Short-premium structures are not quoted into a vol spike or a
// correlation crisis.
func condorRegimeReasons(snap types.RegimeSnapshot) []string {
	var reasons []string
	if snap.VolRegime == types.VolExtremeHigh {
		reasons = append(reasons, "vol_regime_extreme_high")
	}
	if snap.CorrelationRegime == types.CorrCrisis {
		reasons = append(reasons, "correlation_regime_crisis")
	}
	if snap.RiskAppetite == types.RiskOff && snap.VolRegime == types.VolStressed {
		reasons = append(reasons, "risk_off_in_stressed_vol")
	}
	return reasons
}

// Debit verticals carry bounded loss; only a crisis blocks them.
func directionalRegimeReasons(snap types.RegimeSnapshot) []string {
	var reasons []string
	if snap.CorrelationRegime == types.CorrCrisis {
		reasons = append(reasons, "correlation_regime_crisis")
	}
	return reasons
}
