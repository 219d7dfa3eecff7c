package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voledge/internal/config"
	"voledge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFixture = `{
  "as_of": "2026-08-03T15:00:00Z",
  "vix_closes": [14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 14, 15, 16, 17, 18, 19, 20, 21, 22, 16.5],
  "put_call_oi_ratio": 0.92,
  "sector_returns": {"XLK": [0.01, -0.01], "XLF": [0.005, 0.002]},
  "macro_returns": {"TLT": [0.001, 0.002]},
  "events": [{"name": "FOMC", "date": "2026-09-16"}],
  "symbols": {
    "SPY": {
      "price": 502.3,
      "implied_vol": 0.18,
      "front_iv": 0.19,
      "back_iv": 0.205,
      "skew_spread": 0.045,
      "put_call_oi_ratio": 0.92,
      "open_interest": 385000,
      "avg_volume": 72000000,
      "hist_closes": [480, 481, 483, 482, 484, 486, 485, 487, 489, 488,
                      490, 492, 491, 493, 495, 494, 496, 498, 497, 499, 501, 502.3],
      "expirations": ["2026-08-21", "2026-09-18"],
      "events": [{"name": "FOMC", "date": "2026-09-16"}, {"name": "CPI", "date": "2026-08-05"}]
    }
  }
}`

func newTestSource(t *testing.T) *FixtureSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(testFixture), 0o644))
	src, err := NewFixtureSource(config.MarketConfig{
		FixturePath:     path,
		RequestsPerSec:  1000,
		RequestBurst:    100,
		BreakerFailures: 3,
		BreakerCooldown: 30,
	})
	require.NoError(t, err)
	return src
}

func TestFixtureSource_Snapshot(t *testing.T) {
	src := newTestSource(t)

	snap, err := src.Snapshot(context.Background(), "SPY")
	require.NoError(t, err)

	assert.Equal(t, "SPY", snap.Symbol)
	assert.Equal(t, 502.3, snap.Price)
	assert.Equal(t, 0.18, snap.ImpliedVol)
	assert.Equal(t, int64(385000), snap.OpenInterest)
	assert.Len(t, snap.HistCloses, 22)
	assert.Equal(t, []string{"2026-08-21", "2026-09-18"}, snap.Expirations)
	require.Len(t, snap.EventCalendar, 2)
	assert.Equal(t, "FOMC", snap.EventCalendar[0].Name)
	assert.Equal(t, time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC), snap.AsOf)
}

func TestFixtureSource_UnknownSymbol(t *testing.T) {
	src := newTestSource(t)
	_, err := src.Snapshot(context.Background(), "TSLA")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestFixtureSource_BreakerOpensOnRepeatedMisses(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := src.Snapshot(ctx, "TSLA")
		assert.ErrorIs(t, err, ErrUnknownSymbol)
	}
	_, err := src.Snapshot(ctx, "SPY")
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestFixtureSource_RegimeInputs(t *testing.T) {
	src := newTestSource(t)

	in, err := src.RegimeInputs(context.Background())
	require.NoError(t, err)

	assert.Len(t, in.VIXCloses, 20)
	assert.Equal(t, 0.92, in.PutCallOI)
	assert.Len(t, in.SectorReturns, 2)
	assert.Len(t, in.MacroReturns, 1)
	require.Len(t, in.Events, 1)
	assert.Equal(t, "FOMC", in.Events[0].Name)
}

func TestFixtureSource_Watchlist(t *testing.T) {
	src := newTestSource(t)
	assert.Equal(t, []string{"SPY"}, src.Watchlist())
}

func TestNewFixtureSource_BadInputs(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewFixtureSource(config.MarketConfig{FixturePath: "does/not/exist.json"})
		assert.Error(t, err)
	})
	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
		_, err := NewFixtureSource(config.MarketConfig{FixturePath: path})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
	t.Run("missing symbols", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"as_of": "2026-08-03T15:00:00Z"}`), 0o644))
		_, err := NewFixtureSource(config.MarketConfig{FixturePath: path})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}
