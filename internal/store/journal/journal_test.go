package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voledge/internal/types"
)

func openTestJournal(t *testing.T) *RunJournal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	first, err := j.Append(ctx, RunRecord{
		Timestamp: 1000,
		Bias:      string(types.BiasNeutral),
		Symbols:   []string{"SPY", "QQQ"},
		Regime: types.RegimeSnapshot{
			VolRegime:         types.VolCompressed,
			CorrelationRegime: types.CorrLow,
			RiskAppetite:      types.RiskOn,
		},
		TicketIDs:   []string{"tkt-1"},
		TicketCount: 1,
	})
	require.NoError(t, err)
	require.NotZero(t, first)

	_, err = j.Append(ctx, RunRecord{Timestamp: 2000, Bias: string(types.BiasBullish)})
	require.NoError(t, err)

	runs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, string(types.BiasBullish), runs[0].Bias)
	assert.Equal(t, string(types.BiasNeutral), runs[1].Bias)
	assert.Equal(t, []string{"SPY", "QQQ"}, runs[1].Symbols)
	assert.Equal(t, []string{"tkt-1"}, runs[1].TicketIDs)
	assert.Equal(t, 1, runs[1].TicketCount)
	assert.Equal(t, types.VolCompressed, runs[1].Regime.VolRegime)
}

func TestRecent_LimitAndDefault(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := j.Append(ctx, RunRecord{Timestamp: int64(1000 + i)})
		require.NoError(t, err)
	}

	runs, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	assert.Equal(t, int64(1004), runs[0].Timestamp)

	runs, err = j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestOpen_RejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestClosedJournalErrors(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Close())

	_, err := j.Append(context.Background(), RunRecord{})
	assert.Error(t, err)
	_, err = j.Recent(context.Background(), 1)
	assert.Error(t, err)
}
