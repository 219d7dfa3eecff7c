package profile

import (
	"os"
	"path/filepath"
	"testing"

	"voledge/internal/config"
	"voledge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfiles = `
profiles:
  neutral_income:
    families: ["iron_condor"]
    params:
      wing_width: 10
      short_delta: 0.12
      min_premium: 0.4
      dte_target: 45
    blocked_vol_regimes: ["extreme_high", "stressed"]
    blocked_correlation_regimes: ["crisis"]
  directional:
    families: ["bull_call_spread", "bear_put_spread"]
    params:
      spread_width: 10
    require_risk_on: true
  fallback:
    default: true
    params:
      min_premium: 0.1
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	ld, err := NewLoader(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)
	return NewRegistry(ld)
}

func TestLoader_ParsesProfiles(t *testing.T) {
	ld, err := NewLoader(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	snap := ld.Snapshot()
	require.Len(t, snap.Profiles, 3)
	def := snap.Profiles["neutral_income"]
	assert.Equal(t, "neutral_income", def.Name)
	assert.Equal(t, []string{"iron_condor"}, def.Families)
	assert.Equal(t, []string{"extreme_high", "stressed"}, def.BlockedVolRegimes)
}

func TestLoader_RejectsUnknownKeys(t *testing.T) {
	_, err := NewLoader(writeProfiles(t, `
profiles:
  broken:
    families: ["iron_condor"]
    wing_widht: 5
`))
	require.Error(t, err)
}

func TestLoader_RejectsBadParams(t *testing.T) {
	t.Run("unknown param", func(t *testing.T) {
		_, err := NewLoader(writeProfiles(t, `
profiles:
  broken:
    families: ["iron_condor"]
    params:
      wing: 5
`))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
	t.Run("out of range delta", func(t *testing.T) {
		_, err := NewLoader(writeProfiles(t, `
profiles:
  broken:
    families: ["iron_condor"]
    params:
      short_delta: 0.9
`))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
	t.Run("vertical param on condor", func(t *testing.T) {
		_, err := NewLoader(writeProfiles(t, `
profiles:
  broken:
    families: ["iron_condor"]
    params:
      spread_width: 10
`))
		require.Error(t, err)
	})
}

func TestLoader_RejectsUnboundProfile(t *testing.T) {
	_, err := NewLoader(writeProfiles(t, `
profiles:
  orphan:
    params:
      min_premium: 0.2
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestRegistry_ResolveAndFallback(t *testing.T) {
	r := newTestRegistry(t)

	rt, ok := r.Resolve(types.StrategyIronCondor)
	require.True(t, ok)
	assert.Equal(t, "neutral_income", rt.Definition.Name)

	rt, ok = r.Resolve(types.StrategyBullCallSpread)
	require.True(t, ok)
	assert.Equal(t, "directional", rt.Definition.Name)

	// Unknown family falls through to the default profile.
	rt, ok = r.Resolve("calendar_spread")
	require.True(t, ok)
	assert.Equal(t, "fallback", rt.Definition.Name)
}

func TestRegistry_RegimeReasons(t *testing.T) {
	r := newTestRegistry(t)

	calm := types.RegimeSnapshot{
		VolRegime:         types.VolCompressed,
		CorrelationRegime: types.CorrLow,
		RiskAppetite:      types.RiskOn,
	}
	assert.Empty(t, r.RegimeReasons(types.StrategyIronCondor, calm))

	stressed := types.RegimeSnapshot{
		VolRegime:         types.VolStressed,
		CorrelationRegime: types.CorrCrisis,
		RiskAppetite:      types.RiskOff,
	}
	reasons := r.RegimeReasons(types.StrategyIronCondor, stressed)
	assert.Contains(t, reasons, "profile_blocks_vol_regime_stressed")
	assert.Contains(t, reasons, "profile_blocks_correlation_regime_crisis")

	// The directional profile only cares about risk appetite.
	reasons = r.RegimeReasons(types.StrategyBullCallSpread, stressed)
	assert.Equal(t, []string{"profile_requires_risk_on"}, reasons)
}

func TestRegistry_ApplyBuilder(t *testing.T) {
	r := newTestRegistry(t)
	base := config.BuilderConfig{
		CondorWingWidth: 5,
		SpreadWidth:     5,
		ShortDelta:      0.16,
		MinPremium:      0.2,
	}

	tuned := r.ApplyBuilder(types.StrategyIronCondor, base)
	assert.Equal(t, 10.0, tuned.CondorWingWidth)
	assert.Equal(t, 0.12, tuned.ShortDelta)
	assert.Equal(t, 0.4, tuned.MinPremium)
	assert.Equal(t, 5.0, tuned.SpreadWidth)

	dte, ok := r.DTETarget(types.StrategyIronCondor)
	require.True(t, ok)
	assert.Equal(t, 45, dte)

	_, ok = r.DTETarget(types.StrategyBullCallSpread)
	assert.False(t, ok)
}

func TestRegistry_NilLoader(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Resolve(types.StrategyIronCondor)
	assert.False(t, ok)
	assert.Empty(t, r.RegimeReasons(types.StrategyIronCondor, types.RegimeSnapshot{}))
}
