package edge

import (
	"fmt"
	"math"

	"voledge/internal/types"
)

// Component names used in the score breakdown and the weight config.
const (
	ComponentIVRV  = "iv_rv_ratio"
	ComponentTerm  = "term_structure"
	ComponentSkew  = "skew"
	ComponentGamma = "dealer_gamma"
	ComponentEvent = "event_proximity"
)

const (
	ivRichThreshold  = 1.15
	ivCheapThreshold = 0.90
	skewElevated     = 0.08
	skewInverted     = -0.03
	termFlatBand     = 0.01
	eventWindowDays  = 2
	gammaNeutralBand = 0.10
)

// Scorer converts raw per-underlying signals into a composite edge
// score in [0,1]. Pure; a Scorer can be shared across goroutines.
type Scorer struct {
	weights map[string]float64
}

func NewScorer(weights map[string]float64) (*Scorer, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: edge weights cannot be empty", types.ErrValidation)
	}
	sum := 0.0
	for name, w := range weights {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight for %s must be a positive number", types.ErrValidation, name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("%w: edge weights must sum to 1.0, got %.6f", types.ErrValidation, sum)
	}
	cp := make(map[string]float64, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	return &Scorer{weights: cp}, nil
}

// Score maps each present input to a [0,1] component score and blends
// them with the configured weights. Missing inputs drop out and the
// remaining weights renormalize; they never contribute a silent zero.
// A non-finite input is a hard computation failure.
func (s *Scorer) Score(in types.EdgeInputs) (types.EdgeScore, error) {
	components := make(map[string]float64, len(s.weights))

	if in.IVRVRatio != nil {
		v, err := scoreIVRV(*in.IVRVRatio)
		if err != nil {
			return types.EdgeScore{}, err
		}
		components[ComponentIVRV] = v
	}
	if in.TermSlope != nil {
		v, err := scoreTermStructure(*in.TermSlope)
		if err != nil {
			return types.EdgeScore{}, err
		}
		components[ComponentTerm] = v
	}
	if in.SkewSpread != nil {
		v, err := scoreSkew(*in.SkewSpread)
		if err != nil {
			return types.EdgeScore{}, err
		}
		components[ComponentSkew] = v
	}
	if in.DealerGammaScore != nil {
		v, err := scoreDealerGamma(*in.DealerGammaScore)
		if err != nil {
			return types.EdgeScore{}, err
		}
		components[ComponentGamma] = v
	}
	if in.DaysToEvent != nil {
		components[ComponentEvent] = scoreEventProximity(*in.DaysToEvent)
	}

	if len(components) == 0 {
		return types.EdgeScore{}, fmt.Errorf("%w: no edge components present for %s", types.ErrComputation, in.Underlying)
	}

	weightSum := 0.0
	for name := range components {
		w, ok := s.weights[name]
		if !ok {
			return types.EdgeScore{}, fmt.Errorf("%w: no weight configured for component %s", types.ErrComputation, name)
		}
		weightSum += w
	}

	composite := 0.0
	for name, score := range components {
		composite += score * (s.weights[name] / weightSum)
	}
	composite = clamp01(composite)
	if math.IsNaN(composite) || math.IsInf(composite, 0) {
		return types.EdgeScore{}, fmt.Errorf("%w: composite edge for %s is not finite", types.ErrComputation, in.Underlying)
	}

	return types.EdgeScore{Components: components, Composite: composite}, nil
}

// scoreIVRV rewards implied vol trading rich to realized. Above the
// rich threshold the score climbs toward 1; below the cheap threshold
// it decays toward 0.
func scoreIVRV(ratio float64) (float64, error) {
	if !isFinite(ratio) {
		return 0, fmt.Errorf("%w: iv/rv ratio is not finite", types.ErrComputation)
	}
	score := 0.5
	if ratio > ivRichThreshold {
		score = math.Min(1.0, 0.5+(ratio-1.0)*1.5)
	} else if ratio < ivCheapThreshold {
		score = math.Max(0.0, 0.5-(1.0-ratio)*1.5)
	}
	return score, nil
}

// scoreTermStructure favors contango. Backwardation means the front
// is bid, which is hostile to premium selling.
func scoreTermStructure(slope float64) (float64, error) {
	if !isFinite(slope) {
		return 0, fmt.Errorf("%w: term slope is not finite", types.ErrComputation)
	}
	switch {
	case slope > termFlatBand:
		return 0.75, nil
	case slope < -termFlatBand:
		return 0.25, nil
	default:
		return 0.50, nil
	}
}

// scoreSkew rewards heavy put skew (puts overbid relative to calls)
// and penalizes inverted skew.
func scoreSkew(spread float64) (float64, error) {
	if !isFinite(spread) {
		return 0, fmt.Errorf("%w: skew spread is not finite", types.ErrComputation)
	}
	score := 0.5
	if spread > skewElevated {
		score = math.Min(1.0, 0.5+spread*3.0)
	} else if spread < skewInverted {
		score = math.Max(0.0, 0.5+spread*3.0)
	}
	return score, nil
}

// scoreDealerGamma maps the dealer gamma proxy in [-1,1]. Positive
// dealer gamma dampens realized moves; negative amplifies them.
func scoreDealerGamma(g float64) (float64, error) {
	if !isFinite(g) {
		return 0, fmt.Errorf("%w: dealer gamma score is not finite", types.ErrComputation)
	}
	switch {
	case g > gammaNeutralBand:
		return 0.80, nil
	case g < -gammaNeutralBand:
		return 0.20, nil
	default:
		return 0.50, nil
	}
}

// scoreEventProximity penalizes selling into a near macro event.
func scoreEventProximity(days int) float64 {
	if days >= 0 && days <= eventWindowDays {
		return 0.15
	}
	return 0.75
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

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
