package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"voledge/internal/config"
	"voledge/internal/edge"
	"voledge/internal/engine"
	"voledge/internal/gate"
	"voledge/internal/ledger"
	"voledge/internal/market"
	"voledge/internal/sizer"
	"voledge/internal/store/journal"
	"voledge/internal/store/sqlite"
	"voledge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiFixture = `{
  "as_of": "2026-08-03T15:00:00Z",
  "put_call_oi_ratio": 0.92,
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
      "expirations": ["2026-08-21", "2026-09-04", "2026-09-18", "2026-10-16"],
      "events": [{"name": "FOMC", "date": "2026-09-16"}]
    }
  }
}`

type stubRegime struct {
	snap types.RegimeSnapshot
}

func (s *stubRegime) CurrentRegime(context.Context) (types.RegimeSnapshot, error) {
	return s.snap, nil
}

type testAPI struct {
	handler http.Handler
	book    *ledger.Ledger
	regime  *stubRegime
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	fixturePath := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(fixturePath, []byte(apiFixture), 0o644))
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("app:\n  env: test\n"), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Market.FixturePath = fixturePath
	cfg.Market.RequestsPerSec = 1000
	cfg.Market.RequestBurst = 100

	source, err := market.NewFixtureSource(cfg.Market)
	require.NoError(t, err)
	scorer, err := edge.NewScorer(cfg.Edge.Weights)
	require.NoError(t, err)

	reg := &stubRegime{snap: types.RegimeSnapshot{
		VolRegime:         types.VolCompressed,
		CorrelationRegime: types.CorrLow,
		RiskAppetite:      types.RiskOn,
	}}
	gates := gate.NewEvaluator(cfg.Gate, nil)
	portfolio := engine.NewPortfolioView(cfg.Gate.AccountEquity)

	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	book, err := ledger.New(context.Background(), st, gates, reg, portfolio)
	require.NoError(t, err)
	portfolio.Bind(book)

	eng := engine.New(cfg, source, scorer, nil, sizer.NewSizer(cfg.Sizer), gates, reg, portfolio, book)

	runs, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })
	eng.AttachJournal(runs)

	srv, err := NewServer(":0", NewRouter(eng, book, reg).WithJournal(runs))
	require.NoError(t, err)
	return &testAPI{handler: srv.Handler(), book: book, regime: reg}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	fields := map[string]json.RawMessage{}
	_ = json.Unmarshal(w.Body.Bytes(), &fields)
	return w, fields
}

func (a *testAPI) generate(t *testing.T) []types.TradeTicket {
	t.Helper()
	w, fields := a.do(t, http.MethodPost, "/api/tickets/generate", apiBody{
		"underlyings": []string{"SPY"},
		"bias":        "neutral",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var tickets []types.TradeTicket
	require.NoError(t, json.Unmarshal(fields["tickets"], &tickets))
	require.NotEmpty(t, tickets)
	return tickets
}

type apiBody = map[string]interface{}

func TestAPI_Healthz(t *testing.T) {
	api := newTestAPI(t)
	w, _ := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_GenerateAndApprove(t *testing.T) {
	api := newTestAPI(t)
	tickets := api.generate(t)

	w, fields := api.do(t, http.MethodPost, "/api/tickets/"+tickets[0].ID+"/approve", apiBody{"actor": "desk"})
	require.Equal(t, http.StatusOK, w.Code)

	var ticket types.TradeTicket
	require.NoError(t, json.Unmarshal(fields["ticket"], &ticket))
	assert.Equal(t, types.StateApproved, ticket.State)

	w, fields = api.do(t, http.MethodGet, "/api/audit-log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []types.AuditEntry
	require.NoError(t, json.Unmarshal(fields["entries"], &entries))
	assert.Len(t, entries, 1)
}

func TestAPI_ApproveGateBlocked(t *testing.T) {
	api := newTestAPI(t)
	tickets := api.generate(t)

	// Regime shifts after proposal; approval re-checks against it.
	api.regime.snap.VolRegime = types.VolExtremeHigh

	w, fields := api.do(t, http.MethodPost, "/api/tickets/"+tickets[0].ID+"/approve", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var reasons []string
	require.NoError(t, json.Unmarshal(fields["reasons"], &reasons))
	assert.Contains(t, reasons, "vol_regime_extreme_high")

	// Blocked ticket is still pending and can be rejected manually.
	w, _ = api.do(t, http.MethodPost, "/api/tickets/"+tickets[0].ID+"/reject",
		apiBody{"reason": "manual override"})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := api.book.Get(tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateRejected, got.State)
	assert.Equal(t, "manual override", got.RejectReason)
}

func TestAPI_RejectRequiresReason(t *testing.T) {
	api := newTestAPI(t)
	tickets := api.generate(t)

	w, _ := api.do(t, http.MethodPost, "/api/tickets/"+tickets[0].ID+"/reject", apiBody{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_PendingAndStateFilter(t *testing.T) {
	api := newTestAPI(t)
	tickets := api.generate(t)

	w, fields := api.do(t, http.MethodGet, "/api/tickets/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []types.TradeTicket
	require.NoError(t, json.Unmarshal(fields["tickets"], &pending))
	assert.Len(t, pending, len(tickets))

	w, fields = api.do(t, http.MethodGet, "/api/tickets?state=approved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var approved []types.TradeTicket
	require.NoError(t, json.Unmarshal(fields["tickets"], &approved))
	assert.Empty(t, approved)
}

func TestAPI_NotFoundAndBadRequest(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodGet, "/api/tickets/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/tickets/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/tickets/generate", apiBody{"bias": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Regime(t *testing.T) {
	api := newTestAPI(t)
	w, _ := api.do(t, http.MethodGet, "/api/regime", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap types.RegimeSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, types.VolCompressed, snap.VolRegime)
}

func TestAPI_RunHistory(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w, _ = api.do(t, http.MethodPost, "/api/tickets/generate", apiBody{"bias": "neutral", "underlyings": []string{"SPY"}})
	require.Equal(t, http.StatusOK, w.Code)

	w, fields := api.do(t, http.MethodGet, "/api/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var runs []journal.RunRecord
	require.NoError(t, json.Unmarshal(fields["runs"], &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "neutral", runs[0].Bias)
	assert.Equal(t, []string{"SPY"}, runs[0].Symbols)
	assert.Equal(t, types.VolCompressed, runs[0].Regime.VolRegime)
	assert.NotEmpty(t, runs[0].TicketIDs)
}
