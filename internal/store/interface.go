package store

import (
	"context"

	"voledge/internal/store/model"
)

// UnitOfWork defines a transaction scope. A ledger state transition
// and its audit entry commit in the same unit or not at all.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	// Tickets returns the ticket repository within this transaction.
	Tickets() TicketRepository
	// Audit returns the audit repository within this transaction.
	Audit() AuditRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// TicketRepository handles trade ticket persistence.
type TicketRepository interface {
	Save(ctx context.Context, ticket *model.TicketModel) error
	FindByID(ctx context.Context, id string) (*model.TicketModel, error)
	FindProposedByHash(ctx context.Context, hash string) (*model.TicketModel, error)
	ListByState(ctx context.Context, state string) ([]model.TicketModel, error)
	ListAll(ctx context.Context) ([]model.TicketModel, error)
}

// AuditRepository handles the append-only audit log. There is no
// update or delete on purpose.
type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditEntryModel) error
	List(ctx context.Context) ([]model.AuditEntryModel, error)
}
