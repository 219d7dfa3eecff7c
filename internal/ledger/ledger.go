// Package ledger is the single authority over ticket state. All
// transitions run under one mutex; market-data refresh for gate
// re-evaluation happens before the critical section is entered.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voledge/internal/gate"
	"voledge/internal/logger"
	"voledge/internal/store"
	"voledge/internal/store/model"
	"voledge/internal/types"
)

// RegimeProvider supplies the regime snapshot used when gates are
// re-run at approval time.
type RegimeProvider interface {
	CurrentRegime(ctx context.Context) (types.RegimeSnapshot, error)
}

// PortfolioProvider supplies current portfolio state, not the state as
// of proposal time. Stale approvals are re-gated against reality.
type PortfolioProvider interface {
	CurrentPortfolio(ctx context.Context) (types.PortfolioState, error)
}

// Resolution is the outcome of an approve or reject call.
// AlreadyResolved marks a retried call that found the ticket terminal;
// the prior outcome is returned unchanged and no audit entry is added.
type Resolution struct {
	Ticket          types.TradeTicket
	AlreadyResolved bool
}

// Ledger owns ticket lifecycle and the append-only audit log. Tickets
// and audit entries are held in memory and written through to the
// store in one transaction per transition.
type Ledger struct {
	mu        sync.Mutex
	store     store.Store
	gates     *gate.Evaluator
	regime    RegimeProvider
	portfolio PortfolioProvider
	now       func() time.Time

	byID   map[string]types.TradeTicket
	byHash map[string]string // proposed tickets only
	audit  []types.AuditEntry
}

// New builds a ledger and hydrates it from the store, so a restart
// resumes with all prior tickets and the full audit history.
func New(ctx context.Context, st store.Store, gates *gate.Evaluator, regime RegimeProvider, portfolio PortfolioProvider) (*Ledger, error) {
	l := &Ledger{
		store:     st,
		gates:     gates,
		regime:    regime,
		portfolio: portfolio,
		now:       time.Now,
		byID:      make(map[string]types.TradeTicket),
		byHash:    make(map[string]string),
	}
	if err := l.hydrate(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) hydrate(ctx context.Context) error {
	uow, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger hydration transaction failed: %w", err)
	}
	defer func() { _ = uow.Rollback() }()

	rows, err := uow.Tickets().ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading tickets failed: %w", err)
	}
	for i := range rows {
		ticket, err := rows[i].ToTicket()
		if err != nil {
			return fmt.Errorf("restoring ticket %s failed: %w", rows[i].ID, err)
		}
		l.byID[ticket.ID] = ticket
		if ticket.State == types.StateProposed {
			l.byHash[ticket.Hash] = ticket.ID
		}
	}

	entries, err := uow.Audit().List(ctx)
	if err != nil {
		return fmt.Errorf("loading audit log failed: %w", err)
	}
	for i := range entries {
		l.audit = append(l.audit, entries[i].ToAuditEntry())
	}

	if len(rows) > 0 || len(entries) > 0 {
		logger.Infof("[ledger] hydrated %d tickets, %d audit entries", len(rows), len(entries))
	}
	return nil
}

// Propose inserts a Proposed ticket, or returns the existing live
// ticket when one with the same hash is already pending. The second
// return reports whether a new ticket was inserted.
func (l *Ledger) Propose(ctx context.Context, ticket types.TradeTicket) (types.TradeTicket, bool, error) {
	if ticket.ID == "" || ticket.Hash == "" {
		return types.TradeTicket{}, false, fmt.Errorf("%w: ticket requires id and hash", types.ErrValidation)
	}
	if ticket.State != types.StateProposed {
		return types.TradeTicket{}, false, fmt.Errorf("%w: only proposed tickets can enter the ledger", types.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existingID, ok := l.byHash[ticket.Hash]; ok {
		existing := l.byID[existingID]
		logger.Debugf("[ledger] propose deduplicated to %s (hash %.12s)", existingID, ticket.Hash)
		return existing, false, nil
	}

	if err := l.persistTicket(ctx, ticket, nil); err != nil {
		return types.TradeTicket{}, false, err
	}
	l.byID[ticket.ID] = ticket
	l.byHash[ticket.Hash] = ticket.ID
	logger.Infof("[ledger] proposed %s %s %s (hash %.12s)", ticket.Underlying, ticket.Strategy, ticket.ID, ticket.Hash)
	return ticket, true, nil
}

// Approve re-runs both gates against current market and portfolio
// state, then commits Proposed -> Approved with exactly one audit
// entry. A retry on a terminal ticket returns the prior outcome.
func (l *Ledger) Approve(ctx context.Context, ticketID, actor string) (Resolution, error) {
	ticket, err := l.peek(ticketID)
	if err != nil {
		return Resolution{}, err
	}
	if ticket.State.Terminal() {
		return Resolution{Ticket: ticket, AlreadyResolved: true}, nil
	}

	// Gate inputs are fetched outside the critical section.
	snap, err := l.regime.CurrentRegime(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("fetching regime snapshot failed: %w", err)
	}
	portfolio, err := l.portfolio.CurrentPortfolio(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("fetching portfolio state failed: %w", err)
	}
	regimeGate, riskGate := l.gates.Evaluate(ticket, snap, portfolio)

	l.mu.Lock()
	defer l.mu.Unlock()

	ticket, ok := l.byID[ticketID]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s", types.ErrNotFound, ticketID)
	}
	if ticket.State.Terminal() {
		// Lost the race to a concurrent approve/reject; the first
		// committed transition wins.
		return Resolution{Ticket: ticket, AlreadyResolved: true}, nil
	}

	ticket.RegimeGate = regimeGate
	ticket.RiskGate = riskGate

	if !regimeGate.Passed || !riskGate.Passed {
		reasons := append(append([]string{}, regimeGate.Reasons...), riskGate.Reasons...)
		if err := l.persistTicket(ctx, ticket, nil); err != nil {
			return Resolution{}, err
		}
		l.byID[ticketID] = ticket
		logger.Warnf("[ledger] approve %s blocked: %v", ticketID, reasons)
		return Resolution{}, &types.GateBlockedError{Reasons: reasons}
	}

	now := l.now().UTC()
	ticket.State = types.StateApproved
	ticket.ResolvedAt = &now
	ticket.ResolvedBy = actor
	entry := types.AuditEntry{
		TicketID:   ticket.ID,
		TicketHash: ticket.Hash,
		Action:     types.AuditApproved,
		Timestamp:  now,
		Actor:      actor,
	}

	if err := l.persistTicket(ctx, ticket, &entry); err != nil {
		return Resolution{}, err
	}
	l.commitResolution(ticket, entry)
	logger.Infof("[ledger] approved %s by %s", ticketID, actor)
	return Resolution{Ticket: ticket}, nil
}

// Reject is always permitted regardless of gate outcome. Same retry
// semantics as Approve.
func (l *Ledger) Reject(ctx context.Context, ticketID, reason, actor string) (Resolution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ticket, ok := l.byID[ticketID]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s", types.ErrNotFound, ticketID)
	}
	if ticket.State.Terminal() {
		return Resolution{Ticket: ticket, AlreadyResolved: true}, nil
	}

	now := l.now().UTC()
	ticket.State = types.StateRejected
	ticket.ResolvedAt = &now
	ticket.ResolvedBy = actor
	ticket.RejectReason = reason
	entry := types.AuditEntry{
		TicketID:   ticket.ID,
		TicketHash: ticket.Hash,
		Action:     types.AuditRejected,
		Reason:     reason,
		Timestamp:  now,
		Actor:      actor,
	}

	if err := l.persistTicket(ctx, ticket, &entry); err != nil {
		return Resolution{}, err
	}
	l.commitResolution(ticket, entry)
	logger.Infof("[ledger] rejected %s by %s: %s", ticketID, actor, reason)
	return Resolution{Ticket: ticket}, nil
}

// Get returns a ticket by id.
func (l *Ledger) Get(ticketID string) (types.TradeTicket, error) {
	return l.peek(ticketID)
}

// Pending lists Proposed tickets ordered by creation time.
func (l *Ledger) Pending() []types.TradeTicket {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.TradeTicket
	for _, t := range l.byID {
		if t.State == types.StateProposed {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out
}

// All lists every ticket the ledger has ever held.
func (l *Ledger) All() []types.TradeTicket {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.TradeTicket, 0, len(l.byID))
	for _, t := range l.byID {
		out = append(out, t)
	}
	sortTickets(out)
	return out
}

// AuditLog returns the audit history in chronological order.
func (l *Ledger) AuditLog() []types.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.AuditEntry, len(l.audit))
	copy(out, l.audit)
	return out
}

// OpenPositionsFromApproved derives portfolio contributions from
// approved tickets, for portfolio providers backed by the ledger.
func (l *Ledger) OpenPositionsFromApproved() []types.OpenPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.OpenPosition
	for _, t := range l.byID {
		if t.State != types.StateApproved {
			continue
		}
		var exp types.GreeksExposure
		for _, leg := range t.Legs {
			scale := leg.Signed() * float64(leg.Quantity) * 100
			exp.Delta += leg.Delta * scale
			exp.Vega += leg.Vega * scale
			exp.Gamma += leg.Gamma * scale
		}
		out = append(out, types.OpenPosition{
			TicketID:   t.ID,
			Underlying: t.Underlying,
			MaxLoss:    t.MaxLoss * 100,
			Greeks:     exp,
		})
	}
	return out
}

func (l *Ledger) peek(ticketID string) (types.TradeTicket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ticket, ok := l.byID[ticketID]
	if !ok {
		return types.TradeTicket{}, fmt.Errorf("%w: %s", types.ErrNotFound, ticketID)
	}
	return ticket, nil
}

// persistTicket writes the ticket, and optionally one audit entry, in
// a single transaction. The caller holds the ledger lock.
func (l *Ledger) persistTicket(ctx context.Context, ticket types.TradeTicket, entry *types.AuditEntry) error {
	m, err := model.FromTicket(ticket)
	if err != nil {
		return err
	}
	uow, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger transaction failed: %w", err)
	}
	if err := uow.Tickets().Save(ctx, m); err != nil {
		_ = uow.Rollback()
		return fmt.Errorf("saving ticket %s failed: %w", ticket.ID, err)
	}
	if entry != nil {
		if err := uow.Audit().Append(ctx, model.FromAuditEntry(*entry)); err != nil {
			_ = uow.Rollback()
			return fmt.Errorf("appending audit entry for %s failed: %w", ticket.ID, err)
		}
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("committing ledger transaction failed: %w", err)
	}
	return nil
}

// commitResolution applies an already-persisted terminal transition to
// the in-memory indexes. The caller holds the ledger lock.
func (l *Ledger) commitResolution(ticket types.TradeTicket, entry types.AuditEntry) {
	l.byID[ticket.ID] = ticket
	delete(l.byHash, ticket.Hash)
	l.audit = append(l.audit, entry)
}

func sortTickets(tickets []types.TradeTicket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
