package strategy

import (
	"testing"
	"time"

	"voledge/internal/config"
	"voledge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilderConfig() config.BuilderConfig {
	return config.BuilderConfig{
		MaxTickets:      3,
		CondorWingWidth: 5,
		SpreadWidth:     5,
		ShortDelta:      0.16,
		MinPremium:      0.05,
		RankEdgeWeight:  0.5,
		RankPayoffWt:    0.3,
		RankSafetyWt:    0.2,
	}
}

func testSnapshot() types.MarketSnapshot {
	asOf := time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC)
	return types.MarketSnapshot{
		Symbol:     "SPY",
		Price:      502.3,
		ImpliedVol: 0.18,
		Expirations: []string{
			"2026-08-21",
			"2026-09-04",
			"2026-09-18",
			"2026-10-16",
		},
		AsOf: asOf,
	}
}

func testEdge() types.EdgeScore {
	return types.EdgeScore{
		Components: map[string]float64{"iv_rv_ratio": 0.8},
		Composite:  0.62,
	}
}

func TestBuild_NeutralProducesIronCondors(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	cons := Constraints{Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: 10}

	cands, err := b.Build(testSnapshot(), cons, testEdge())
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.LessOrEqual(t, len(cands), 3)

	for _, c := range cands {
		assert.Equal(t, types.StrategyIronCondor, c.Strategy)
		assert.Len(t, c.Legs, 4)
		assert.Positive(t, c.CreditOrDebit)
		assert.Equal(t, 5.0, c.Width)
		assert.InDelta(t, c.Width-c.CreditOrDebit, c.MaxLoss, 0.01)
		assert.GreaterOrEqual(t, c.PopEstimate, 0.0)
		assert.LessOrEqual(t, c.PopEstimate, 1.0)
		assert.Positive(t, c.Breakdown.Edge)
	}
}

func TestBuild_NoNakedShortLegs(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	snap := testSnapshot()
	edge := testEdge()

	for _, bias := range []types.Bias{types.BiasBullish, types.BiasBearish, types.BiasNeutral} {
		cands, err := b.Build(snap, Constraints{Bias: bias, DTETarget: 30, MaxPremium: 10}, edge)
		require.NoError(t, err)
		require.NotEmpty(t, cands)
		for _, c := range cands {
			// Every short leg must be matched by a long leg of the
			// same type and quantity on the same expiry.
			shorts := map[types.OptionType]int{}
			longs := map[types.OptionType]int{}
			for _, l := range c.Legs {
				if l.Side == types.SideSell {
					shorts[l.Type] += l.Quantity
				} else {
					longs[l.Type] += l.Quantity
				}
			}
			for optType, qty := range shorts {
				assert.Equalf(t, qty, longs[optType], "%s %s shorts unhedged", c.Strategy, optType)
			}
		}
	}
}

func TestBuild_DirectionalFamilies(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	snap := testSnapshot()

	t.Run("bullish", func(t *testing.T) {
		cands, err := b.Build(snap, Constraints{Bias: types.BiasBullish, DTETarget: 30, MaxPremium: 10}, testEdge())
		require.NoError(t, err)
		require.NotEmpty(t, cands)
		for _, c := range cands {
			assert.Equal(t, types.StrategyBullCallSpread, c.Strategy)
			assert.Len(t, c.Legs, 2)
			assert.Equal(t, types.SideBuy, c.Legs[0].Side)
			assert.Equal(t, types.SideSell, c.Legs[1].Side)
			assert.Less(t, c.Legs[0].Strike, c.Legs[1].Strike)
			assert.Equal(t, c.MaxLoss, c.CreditOrDebit)
		}
	})
	t.Run("bearish", func(t *testing.T) {
		cands, err := b.Build(snap, Constraints{Bias: types.BiasBearish, DTETarget: 30, MaxPremium: 10}, testEdge())
		require.NoError(t, err)
		require.NotEmpty(t, cands)
		for _, c := range cands {
			assert.Equal(t, types.StrategyBearPutSpread, c.Strategy)
			assert.Len(t, c.Legs, 2)
			assert.Greater(t, c.Legs[0].Strike, c.Legs[1].Strike)
		}
	})
}

func TestBuild_RankingOrder(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	cands, err := b.Build(testSnapshot(), Constraints{Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: 10}, testEdge())
	require.NoError(t, err)
	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Blended, cands[i].Blended)
	}
}

func TestBuild_MaxPremiumFiltersAll(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	cands, err := b.Build(testSnapshot(), Constraints{Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: 0.01}, testEdge())
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestBuild_MinPremiumFiltersThinCredits(t *testing.T) {
	cons := Constraints{Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: 10}

	cfg := testBuilderConfig()
	cfg.MinPremium = 50
	cands, err := NewBuilder(cfg).Build(testSnapshot(), cons, testEdge())
	require.NoError(t, err)
	assert.Empty(t, cands)

	cfg.MinPremium = 0.05
	cands, err = NewBuilder(cfg).Build(testSnapshot(), cons, testEdge())
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		assert.GreaterOrEqual(t, c.CreditOrDebit, cfg.MinPremium)
	}
}

func TestBuild_ValidationErrors(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	snap := testSnapshot()
	edge := testEdge()

	cases := map[string]Constraints{
		"unknown bias":  {Bias: "sideways", DTETarget: 30, MaxPremium: 10},
		"zero dte":      {Bias: types.BiasNeutral, DTETarget: 0, MaxPremium: 10},
		"negative prem": {Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: -5},
	}
	for name, cons := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(snap, cons, edge)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}

	t.Run("bad snapshot", func(t *testing.T) {
		bad := snap
		bad.Price = 0
		_, err := b.Build(bad, Constraints{Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: 10}, edge)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("no future expirations", func(t *testing.T) {
		bad := snap
		bad.Expirations = []string{"2026-07-01"}
		_, err := b.Build(bad, Constraints{Bias: types.BiasNeutral, DTETarget: 30, MaxPremium: 10}, edge)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestRegimeReasons(t *testing.T) {
	calm := types.RegimeSnapshot{
		VolRegime:         types.VolCompressed,
		CorrelationRegime: types.CorrLow,
		RiskAppetite:      types.RiskOn,
	}
	assert.Empty(t, RegimeReasons(types.StrategyIronCondor, calm))
	assert.Empty(t, RegimeReasons(types.StrategyBullCallSpread, calm))

	spike := calm
	spike.VolRegime = types.VolExtremeHigh
	assert.Contains(t, RegimeReasons(types.StrategyIronCondor, spike), "vol_regime_extreme_high")
	assert.Empty(t, RegimeReasons(types.StrategyBullCallSpread, spike))

	crisis := calm
	crisis.CorrelationRegime = types.CorrCrisis
	assert.Contains(t, RegimeReasons(types.StrategyIronCondor, crisis), "correlation_regime_crisis")
	assert.Contains(t, RegimeReasons(types.StrategyBearPutSpread, crisis), "correlation_regime_crisis")

	both := spike
	both.CorrelationRegime = types.CorrCrisis
	assert.Len(t, RegimeReasons(types.StrategyIronCondor, both), 2)
}
