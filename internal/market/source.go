// Package market supplies market observations to the rest of the
// engine. The decision core never fetches data itself; it consumes
// snapshots handed to it by a Source.
package market

import (
	"context"
	"errors"

	"voledge/internal/regime"
	"voledge/internal/types"
)

// ErrUnknownSymbol is returned when the source has no data for a
// requested underlying.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ErrFeedUnavailable wraps upstream outages, including an open
// circuit breaker.
var ErrFeedUnavailable = errors.New("market feed unavailable")

// Source is the market-data access surface. Implementations wrap a
// broker feed, a vendor API, or a fixture file for offline runs.
type Source interface {
	// Snapshot returns everything the desk knows about one underlying.
	Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error)
	// RegimeInputs returns the market-wide observations the regime
	// classifier runs on.
	RegimeInputs(ctx context.Context) (regime.Inputs, error)
	// Watchlist lists the symbols the source covers.
	Watchlist() []string
}
