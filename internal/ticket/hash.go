package ticket

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"voledge/internal/types"
)

// Monetary fields round to cents before hashing so float jitter in
// pricing never splits economically identical tickets.
const hashPrecision = 2

// Hash returns the canonical content fingerprint of a ticket: a
// SHA-256 over underlying, strategy, expiry, the sorted legs and the
// rounded net premium. Legs sort by strike, then side (buy before
// sell), then type, so leg ordering at build time cannot change the
// hash.
func Hash(underlying string, family types.StrategyFamily, expiry string, legs []types.Leg, creditOrDebit float64) string {
	sorted := make([]types.Leg, len(legs))
	copy(sorted, legs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		if a.Side != b.Side {
			return a.Side == types.SideBuy
		}
		return a.Type < b.Type
	})

	var sb strings.Builder
	sb.WriteString(strings.ToUpper(strings.TrimSpace(underlying)))
	sb.WriteByte('|')
	sb.WriteString(string(family))
	sb.WriteByte('|')
	sb.WriteString(expiry)
	for _, l := range sorted {
		fmt.Fprintf(&sb, "|%s:%s:%s:%d",
			l.Side, l.Type, canonAmount(l.Strike), l.Quantity)
	}
	sb.WriteByte('|')
	sb.WriteString(canonAmount(creditOrDebit))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func canonAmount(v float64) string {
	return decimal.NewFromFloat(v).Round(hashPrecision).StringFixed(hashPrecision)
}
