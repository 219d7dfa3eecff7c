package regime

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"voledge/internal/config"
	"voledge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegimeConfig() config.RegimeConfig {
	return config.RegimeConfig{
		VIXLowPercentile:     25,
		VIXHighPercentile:    75,
		VIXExtremePercentile: 95,
		CorrLowThreshold:     0.3,
		CorrHighThreshold:    0.6,
		CorrCrisisThreshold:  0.8,
		PutCallHighRatio:     1.2,
		PutCallLowRatio:      0.8,
		MacroWindowDays:      2,
	}
}

// vixSeries builds n closes ending at last, with the rest spread
// evenly between lo and hi.
func vixSeries(n int, lo, hi, last float64) []float64 {
	out := make([]float64, n)
	for i := 0; i < n-1; i++ {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-2)
	}
	out[n-1] = last
	return out
}

// correlatedSectors returns return series that move in near lockstep.
func correlatedSectors(n int) map[string][]float64 {
	base := make([]float64, n)
	for i := range base {
		base[i] = 0.01 * math.Sin(float64(i)/3)
	}
	out := make(map[string][]float64, 3)
	for i, name := range []string{"XLK", "XLF", "XLE"} {
		series := make([]float64, n)
		for j := range base {
			series[j] = base[j] + 0.0001*float64(i)
		}
		out[name] = series
	}
	return out
}

// independentSectors returns periodic series whose pairwise sample
// correlation over any 20-day window is exactly zero.
func independentSectors(n int) map[string][]float64 {
	patterns := map[string][]float64{
		"XLK": {0.01, -0.01},
		"XLF": {0.01, 0.01, -0.01, -0.01},
		"XLE": {0.01, -0.01, -0.01, 0.01},
	}
	out := make(map[string][]float64, len(patterns))
	for name, pat := range patterns {
		series := make([]float64, n)
		for i := range series {
			series[i] = pat[i%len(pat)]
		}
		out[name] = series
	}
	return out
}

func TestClassify_CalmMarket(t *testing.T) {
	c := NewClassifier(testRegimeConfig())

	snap, err := c.Classify(Inputs{
		VIXCloses:     vixSeries(252, 14, 30, 13.5),
		SectorReturns: independentSectors(60),
		PutCallOI:     0.7,
		AsOf:          time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, types.VolCompressed, snap.VolRegime)
	assert.Equal(t, types.CorrLow, snap.CorrelationRegime)
	assert.Equal(t, types.GammaPositive, snap.DealerGamma)
	assert.False(t, snap.MacroElevated)
	assert.Equal(t, types.RiskOn, snap.RiskAppetite)
	assert.Less(t, snap.VIXPercentile, 25.0)
}

func TestClassify_StressedMarket(t *testing.T) {
	c := NewClassifier(testRegimeConfig())

	snap, err := c.Classify(Inputs{
		VIXCloses:     vixSeries(252, 14, 30, 45),
		SectorReturns: correlatedSectors(60),
		PutCallOI:     1.5,
		AsOf:          time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, types.VolExtremeHigh, snap.VolRegime)
	assert.Equal(t, types.CorrCrisis, snap.CorrelationRegime)
	assert.Equal(t, types.GammaNegative, snap.DealerGamma)
	assert.Equal(t, types.RiskOff, snap.RiskAppetite)
	assert.GreaterOrEqual(t, snap.VIXPercentile, 95.0)
}

func TestClassify_VolBands(t *testing.T) {
	c := NewClassifier(testRegimeConfig())

	cases := []struct {
		name string
		last float64
		want types.VolRegime
	}{
		{"compressed", 13.5, types.VolCompressed},
		{"expanding", 22, types.VolExpanding},
		{"stressed", 28.5, types.VolStressed},
		{"extreme", 45, types.VolExtremeHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := c.Classify(Inputs{
				VIXCloses:     vixSeries(252, 14, 30, tc.last),
				SectorReturns: independentSectors(60),
				PutCallOI:     1.0,
				AsOf:          time.Now(),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, snap.VolRegime)
		})
	}
}

func TestClassify_MacroEventWindow(t *testing.T) {
	c := NewClassifier(testRegimeConfig())
	asOf := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	base := Inputs{
		VIXCloses:     vixSeries(252, 14, 30, 22),
		SectorReturns: independentSectors(60),
		PutCallOI:     1.0,
		AsOf:          asOf,
	}

	t.Run("event inside window", func(t *testing.T) {
		in := base
		in.Events = []types.CalendarEvent{{Name: "FOMC", Date: asOf.Add(36 * time.Hour)}}
		snap, err := c.Classify(in)
		require.NoError(t, err)
		assert.True(t, snap.MacroElevated)
	})
	t.Run("event outside window", func(t *testing.T) {
		in := base
		in.Events = []types.CalendarEvent{{Name: "FOMC", Date: asOf.AddDate(0, 0, 10)}}
		snap, err := c.Classify(in)
		require.NoError(t, err)
		assert.False(t, snap.MacroElevated)
	})
	t.Run("past event ignored", func(t *testing.T) {
		in := base
		in.Events = []types.CalendarEvent{{Name: "CPI", Date: asOf.AddDate(0, 0, -1)}}
		snap, err := c.Classify(in)
		require.NoError(t, err)
		assert.False(t, snap.MacroElevated)
	})
	t.Run("macro vol spike", func(t *testing.T) {
		in := base
		quiet := make([]float64, 30)
		for i := range quiet {
			quiet[i] = 0.001
		}
		// Last five observations swing an order of magnitude harder.
		for i := 25; i < 30; i++ {
			quiet[i] = 0.02 * math.Pow(-1, float64(i))
		}
		in.MacroReturns = map[string][]float64{"TLT": quiet}
		snap, err := c.Classify(in)
		require.NoError(t, err)
		assert.True(t, snap.MacroElevated)
	})
}

func TestClassify_ShortHistory(t *testing.T) {
	c := NewClassifier(testRegimeConfig())
	_, err := c.Classify(Inputs{VIXCloses: []float64{15, 16}})
	assert.ErrorIs(t, err, types.ErrComputation)
}

func TestClassify_SparseSectorsReadMedium(t *testing.T) {
	c := NewClassifier(testRegimeConfig())
	snap, err := c.Classify(Inputs{
		VIXCloses:     vixSeries(252, 14, 30, 22),
		SectorReturns: map[string][]float64{"XLK": {0.01, 0.02}},
		PutCallOI:     1.0,
		AsOf:          time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.CorrMedium, snap.CorrelationRegime)
}

type stubSource struct {
	in    Inputs
	err   error
	calls int
}

func (s *stubSource) RegimeInputs(context.Context) (Inputs, error) {
	s.calls++
	return s.in, s.err
}

func TestProvider_CachesWithinTTL(t *testing.T) {
	src := &stubSource{in: Inputs{
		VIXCloses:     vixSeries(252, 14, 30, 22),
		SectorReturns: independentSectors(60),
		PutCallOI:     1.0,
		AsOf:          time.Now(),
	}}
	p := NewProvider(NewClassifier(testRegimeConfig()), src)

	clock := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	_, err := p.CurrentRegime(context.Background())
	require.NoError(t, err)
	_, err = p.CurrentRegime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	clock = clock.Add(time.Minute)
	_, err = p.CurrentRegime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestProvider_PropagatesSourceError(t *testing.T) {
	src := &stubSource{err: errors.New("feed down")}
	p := NewProvider(NewClassifier(testRegimeConfig()), src)
	_, err := p.CurrentRegime(context.Background())
	assert.Error(t, err)
}
