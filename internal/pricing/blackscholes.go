// Package pricing implements Black-Scholes pricing and greeks for
// European options with a continuous dividend yield. Vega and rho are
// quoted per one percentage point; theta per calendar day.
package pricing

import (
	"fmt"
	"math"

	"voledge/internal/types"
)

const DefaultRiskFreeRate = 0.05

// Greeks bundles price and first-order sensitivities for one contract.
type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega_per_1pct"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho_per_1pct"`
}

// Price returns the Black-Scholes value of a European option.
// s: spot, k: strike, t: years to expiry, r: risk-free rate,
// sigma: annual vol, q: continuous dividend yield.
func Price(s, k, t, r, sigma float64, optType types.OptionType, q float64) (float64, error) {
	if err := checkInputs(s, k, sigma); err != nil {
		return 0, err
	}
	if t <= 0 {
		return intrinsic(s, k, optType), nil
	}
	d1, d2 := dTerms(s, k, t, r, sigma, q)
	if optType == types.OptionCall {
		return s*math.Exp(-q*t)*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2), nil
	}
	return k*math.Exp(-r*t)*normCDF(-d2) - s*math.Exp(-q*t)*normCDF(-d1), nil
}

// Compute returns price plus greeks for a European option.
func Compute(s, k, t, r, sigma float64, optType types.OptionType, q float64) (Greeks, error) {
	if err := checkInputs(s, k, sigma); err != nil {
		return Greeks{}, err
	}
	if t <= 0 {
		g := Greeks{Price: intrinsic(s, k, optType)}
		switch {
		case optType == types.OptionCall && s > k:
			g.Delta = 1.0
		case optType == types.OptionPut && s < k:
			g.Delta = -1.0
		}
		return g, nil
	}

	d1, d2 := dTerms(s, k, t, r, sigma, q)
	sqrtT := math.Sqrt(t)
	discQ := math.Exp(-q * t)
	discR := math.Exp(-r * t)

	price, err := Price(s, k, t, r, sigma, optType, q)
	if err != nil {
		return Greeks{}, err
	}

	var delta float64
	if optType == types.OptionCall {
		delta = discQ * normCDF(d1)
	} else {
		delta = -discQ * normCDF(-d1)
	}

	gamma := discQ * normPDF(d1) / (s * sigma * sqrtT)
	rawVega := s * discQ * normPDF(d1) * sqrtT

	commonTerm := -(s * discQ * normPDF(d1) * sigma) / (2 * sqrtT)
	var theta, rawRho float64
	if optType == types.OptionCall {
		theta = (commonTerm + q*s*discQ*normCDF(d1) - r*k*discR*normCDF(d2)) / 365
		rawRho = k * t * discR * normCDF(d2)
	} else {
		theta = (commonTerm - q*s*discQ*normCDF(-d1) + r*k*discR*normCDF(-d2)) / 365
		rawRho = -k * t * discR * normCDF(-d2)
	}

	return Greeks{
		Price: price,
		Delta: delta,
		Gamma: gamma,
		Vega:  rawVega / 100.0,
		Theta: theta,
		Rho:   rawRho / 100.0,
	}, nil
}

// ProbITM is the risk-neutral probability the option expires in the
// money, N(d2) for calls and N(-d2) for puts.
func ProbITM(s, k, t, r, sigma float64, optType types.OptionType, q float64) (float64, error) {
	if err := checkInputs(s, k, sigma); err != nil {
		return 0, err
	}
	if t <= 0 {
		if intrinsic(s, k, optType) > 0 {
			return 1, nil
		}
		return 0, nil
	}
	_, d2 := dTerms(s, k, t, r, sigma, q)
	if optType == types.OptionCall {
		return normCDF(d2), nil
	}
	return normCDF(-d2), nil
}

// ImpliedVol solves for sigma with Newton-Raphson on raw vega.
func ImpliedVol(marketPrice, s, k, t, r float64, optType types.OptionType, q float64) (float64, error) {
	const (
		initialGuess  = 0.3
		tolerance     = 1e-4
		maxIterations = 100
	)
	sigma := initialGuess
	for i := 0; i < maxIterations; i++ {
		price, err := Price(s, k, t, r, sigma, optType, q)
		if err != nil {
			return 0, err
		}
		d1, _ := dTerms(s, k, t, r, sigma, q)
		rawVega := s * math.Exp(-q*t) * normPDF(d1) * math.Sqrt(t)

		diff := marketPrice - price
		if math.Abs(diff) < tolerance {
			return sigma, nil
		}
		if rawVega == 0 {
			return sigma, nil
		}
		sigma += diff / rawVega
		if sigma <= 0 {
			sigma = 0.01
		}
	}
	return sigma, nil
}

func dTerms(s, k, t, r, sigma, q float64) (float64, float64) {
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	return d1, d1 - sigma*math.Sqrt(t)
}

func intrinsic(s, k float64, optType types.OptionType) float64 {
	if optType == types.OptionCall {
		return math.Max(s-k, 0)
	}
	return math.Max(k-s, 0)
}

func checkInputs(s, k, sigma float64) error {
	if s <= 0 || k <= 0 {
		return fmt.Errorf("%w: spot and strike must be positive", types.ErrValidation)
	}
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return fmt.Errorf("%w: volatility must be a positive number", types.ErrValidation)
	}
	return nil
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
