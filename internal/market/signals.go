package market

import (
	"math"
	"time"

	"voledge/internal/types"

	talib "github.com/markcheno/go-talib"
)

const (
	tradingDaysPerYear = 252
	minClosesForRV     = 21
)

// BuildEdgeInputs derives the per-underlying signal bundle from a
// snapshot. Signals that cannot be observed are left nil; the scorer
// renormalizes over what remains.
func BuildEdgeInputs(snap types.MarketSnapshot) types.EdgeInputs {
	in := types.EdgeInputs{Underlying: snap.Symbol}

	if rv := RealizedVol(snap.HistCloses); rv > 0 && snap.ImpliedVol > 0 {
		ratio := snap.ImpliedVol / rv
		in.IVRVRatio = &ratio
	}
	if snap.FrontIV > 0 && snap.BackIV > 0 {
		slope := (snap.BackIV - snap.FrontIV) / snap.FrontIV
		in.TermSlope = &slope
	}
	if snap.SkewSpread != 0 {
		skew := snap.SkewSpread
		in.SkewSpread = &skew
	}
	if snap.PutCallOI > 0 {
		// Put-heavy open interest leaves dealers short gamma.
		score := clamp(1-snap.PutCallOI, -1, 1)
		in.DealerGammaScore = &score
	}
	if days, ok := daysToNextEvent(snap.EventCalendar, snap.AsOf); ok {
		in.DaysToEvent = &days
	}
	return in
}

// RealizedVol annualizes the standard deviation of daily log returns.
// Returns 0 when the close history is too short.
func RealizedVol(closes []float64) float64 {
	if len(closes) < minClosesForRV {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	std := talib.StdDev(returns, len(returns), 1.0)
	return std[len(std)-1] * math.Sqrt(tradingDaysPerYear)
}

// daysToNextEvent returns whole calendar days to the nearest upcoming
// event, counting on date boundaries.
func daysToNextEvent(events []types.CalendarEvent, asOf time.Time) (int, bool) {
	today := dateOnly(asOf)
	best := -1
	for _, ev := range events {
		d := int(dateOnly(ev.Date).Sub(today).Hours() / 24)
		if d < 0 {
			continue
		}
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
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
