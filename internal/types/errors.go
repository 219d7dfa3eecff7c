package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound: unknown ticket id.
	ErrNotFound = errors.New("ticket not found")

	// ErrValidation: malformed request constraints. Nothing is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrComputation: a scoring component produced a non-numeric result.
	// Fails the whole generation request; no partial ticket is persisted.
	ErrComputation = errors.New("computation failed")
)

// GateBlockedError is returned by approve when either gate fails at
// approval time. Non-fatal: the ticket stays Proposed and may still be
// rejected explicitly.
type GateBlockedError struct {
	Reasons []string
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("gate blocked: %s", strings.Join(e.Reasons, "; "))
}

// IsGateBlocked reports whether err is a GateBlockedError and returns it.
func IsGateBlocked(err error) (*GateBlockedError, bool) {
	var gb *GateBlockedError
	if errors.As(err, &gb) {
		return gb, true
	}
	return nil, false
}
