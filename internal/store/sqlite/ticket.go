package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voledge/internal/store/model"
	"voledge/internal/types"
)

// ticketRepository implements the TicketRepository interface.
type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepo(db *gorm.DB) *ticketRepository {
	return &ticketRepository{db: db}
}

// Save inserts or updates a ticket by id.
func (r *ticketRepository) Save(ctx context.Context, ticket *model.TicketModel) error {
	if ticket == nil {
		return errors.New("ticket cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Save(ticket).Error
}

func (r *ticketRepository) FindByID(ctx context.Context, id string) (*model.TicketModel, error) {
	var ticket model.TicketModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindProposedByHash returns the live non-terminal ticket carrying the
// hash, if any. At most one such row exists at a time.
func (r *ticketRepository) FindProposedByHash(ctx context.Context, hash string) (*model.TicketModel, error) {
	var ticket model.TicketModel
	err := r.db.WithContext(ctx).
		Where("hash = ? AND state = ?", hash, string(types.StateProposed)).
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByState(ctx context.Context, state string) ([]model.TicketModel, error) {
	var tickets []model.TicketModel
	if err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at ASC, id ASC").
		Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]model.TicketModel, error) {
	var tickets []model.TicketModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}
