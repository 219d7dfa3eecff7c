package market

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"voledge/internal/config"
	"voledge/internal/logger"
	"voledge/internal/pkg/circuit"
	"voledge/internal/regime"
	"voledge/internal/types"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// FixtureSource serves snapshots from a JSON fixture file. It runs
// requests through the same rate limiter and circuit breaker a live
// feed adapter would, so the call discipline is exercised end to end.
type FixtureSource struct {
	doc     gjson.Result
	limiter *rate.Limiter
	breaker *circuit.Breaker
}

// NewFixtureSource loads and validates the fixture once at startup.
func NewFixtureSource(cfg config.MarketConfig) (*FixtureSource, error) {
	raw, err := os.ReadFile(cfg.FixturePath)
	if err != nil {
		return nil, fmt.Errorf("read market fixture failed: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: market fixture is not valid json", types.ErrValidation)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.Get("symbols").Exists() {
		return nil, fmt.Errorf("%w: market fixture missing symbols", types.ErrValidation)
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RequestBurst
	if burst <= 0 {
		burst = 5
	}
	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	cooldown := time.Duration(cfg.BreakerCooldown) * time.Second
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	s := &FixtureSource{
		doc:     doc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: circuit.NewBreaker("market-feed", failures, cooldown),
	}
	logger.Infof("[market] fixture loaded: %d symbols from %s", len(doc.Get("symbols").Map()), cfg.FixturePath)
	return s, nil
}

func (s *FixtureSource) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	var snap types.MarketSnapshot
	err := s.guarded(ctx, func() error {
		node := s.doc.Get("symbols").Get(symbol)
		if !node.Exists() {
			return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		snap = parseSnapshot(symbol, node, s.asOf())
		return nil
	})
	return snap, err
}

func (s *FixtureSource) RegimeInputs(ctx context.Context) (regime.Inputs, error) {
	var in regime.Inputs
	err := s.guarded(ctx, func() error {
		in = regime.Inputs{
			VIXCloses:     floatSlice(s.doc.Get("vix_closes")),
			SectorReturns: floatSliceMap(s.doc.Get("sector_returns")),
			MacroReturns:  floatSliceMap(s.doc.Get("macro_returns")),
			PutCallOI:     s.doc.Get("put_call_oi_ratio").Float(),
			Events:        parseEvents(s.doc.Get("events")),
			AsOf:          s.asOf(),
		}
		return nil
	})
	return in, err
}

func (s *FixtureSource) Watchlist() []string {
	symbols := s.doc.Get("symbols").Map()
	out := make([]string, 0, len(symbols))
	for sym := range symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// guarded applies the rate limit and circuit breaker around one feed
// call. Symbol misses count as failures so a broken fixture opens the
// breaker the same way a dead feed would.
func (s *FixtureSource) guarded(ctx context.Context, fn func() error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}
	if err := s.breaker.Execute(fn); err != nil {
		if errors.Is(err, circuit.ErrOpen) {
			return fmt.Errorf("%w: breaker open", ErrFeedUnavailable)
		}
		return err
	}
	return nil
}

func (s *FixtureSource) asOf() time.Time {
	if raw := s.doc.Get("as_of").String(); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func parseSnapshot(symbol string, node gjson.Result, asOf time.Time) types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol:        symbol,
		Price:         node.Get("price").Float(),
		ImpliedVol:    node.Get("implied_vol").Float(),
		FrontIV:       node.Get("front_iv").Float(),
		BackIV:        node.Get("back_iv").Float(),
		SkewSpread:    node.Get("skew_spread").Float(),
		PutCallOI:     node.Get("put_call_oi_ratio").Float(),
		OpenInterest:  node.Get("open_interest").Int(),
		AvgVolume:     node.Get("avg_volume").Float(),
		HistCloses:    floatSlice(node.Get("hist_closes")),
		Expirations:   stringSlice(node.Get("expirations")),
		EventCalendar: parseEvents(node.Get("events")),
		AsOf:          asOf,
	}
}

func parseEvents(node gjson.Result) []types.CalendarEvent {
	var out []types.CalendarEvent
	node.ForEach(func(_, ev gjson.Result) bool {
		date, err := time.Parse("2006-01-02", ev.Get("date").String())
		if err != nil {
			logger.Warnf("[market] skipping event with bad date %q", ev.Get("date").String())
			return true
		}
		out = append(out, types.CalendarEvent{
			Name: ev.Get("name").String(),
			Date: date,
		})
		return true
	})
	return out
}

func floatSlice(node gjson.Result) []float64 {
	var out []float64
	node.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.Float())
		return true
	})
	return out
}

func stringSlice(node gjson.Result) []string {
	var out []string
	node.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

func floatSliceMap(node gjson.Result) map[string][]float64 {
	out := make(map[string][]float64)
	node.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = floatSlice(v)
		return true
	})
	return out
}
