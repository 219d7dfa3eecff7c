package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voledge/internal/types"
)

// Reference values computed against standard Black-Scholes tables
// (s=100, k=100, t=1y, r=5%, sigma=20%, q=0).
func TestPrice_AtTheMoneyYear(t *testing.T) {
	call, err := Price(100, 100, 1, 0.05, 0.20, types.OptionCall, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.4506, call, 1e-3)

	put, err := Price(100, 100, 1, 0.05, 0.20, types.OptionPut, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.5735, put, 1e-3)
}

func TestPrice_PutCallParity(t *testing.T) {
	s, k, tt, r, sigma := 502.30, 500.0, 45.0/365.0, 0.05, 0.18

	call, err := Price(s, k, tt, r, sigma, types.OptionCall, 0)
	require.NoError(t, err)
	put, err := Price(s, k, tt, r, sigma, types.OptionPut, 0)
	require.NoError(t, err)

	parity := s - k*math.Exp(-r*tt)
	assert.InDelta(t, parity, call-put, 1e-9)
}

func TestPrice_ExpiredIsIntrinsic(t *testing.T) {
	call, err := Price(105, 100, 0, 0.05, 0.20, types.OptionCall, 0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, call)

	put, err := Price(105, 100, 0, 0.05, 0.20, types.OptionPut, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, put)
}

func TestCompute_Greeks(t *testing.T) {
	g, err := Compute(100, 100, 1, 0.05, 0.20, types.OptionCall, 0)
	require.NoError(t, err)

	assert.InDelta(t, 0.6368, g.Delta, 1e-3)
	assert.InDelta(t, 0.01876, g.Gamma, 1e-4)
	assert.InDelta(t, 0.3752, g.Vega, 1e-3)
	assert.Less(t, g.Theta, 0.0)

	p, err := Compute(100, 100, 1, 0.05, 0.20, types.OptionPut, 0)
	require.NoError(t, err)
	assert.InDelta(t, g.Delta-1, p.Delta, 1e-9)
	assert.InDelta(t, g.Gamma, p.Gamma, 1e-9)
	assert.InDelta(t, g.Vega, p.Vega, 1e-9)
}

func TestCompute_ExpiredDelta(t *testing.T) {
	call, err := Compute(105, 100, 0, 0.05, 0.20, types.OptionCall, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, call.Delta)

	put, err := Compute(95, 100, 0, 0.05, 0.20, types.OptionPut, 0)
	require.NoError(t, err)
	assert.Equal(t, -1.0, put.Delta)
}

func TestProbITM(t *testing.T) {
	deepCall, err := ProbITM(150, 100, 0.25, 0.05, 0.20, types.OptionCall, 0)
	require.NoError(t, err)
	assert.Greater(t, deepCall, 0.99)

	farPut, err := ProbITM(150, 100, 0.25, 0.05, 0.20, types.OptionPut, 0)
	require.NoError(t, err)
	assert.Less(t, farPut, 0.01)

	expired, err := ProbITM(105, 100, 0, 0.05, 0.20, types.OptionCall, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, expired)
}

func TestImpliedVol_RoundTrip(t *testing.T) {
	const trueSigma = 0.24
	price, err := Price(502.30, 505, 45.0/365.0, 0.05, trueSigma, types.OptionPut, 0)
	require.NoError(t, err)

	iv, err := ImpliedVol(price, 502.30, 505, 45.0/365.0, 0.05, types.OptionPut, 0)
	require.NoError(t, err)
	assert.InDelta(t, trueSigma, iv, 1e-3)
}

func TestBadInputs(t *testing.T) {
	_, err := Price(-1, 100, 1, 0.05, 0.20, types.OptionCall, 0)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = Price(100, 100, 1, 0.05, 0, types.OptionCall, 0)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = Compute(100, 0, 1, 0.05, 0.20, types.OptionPut, 0)
	assert.ErrorIs(t, err, types.ErrValidation)
}
