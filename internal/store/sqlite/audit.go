package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"voledge/internal/store/model"
)

// auditRepository implements the AuditRepository interface. Insert
// only; the log is never rewritten.
type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditEntryModel) error {
	if entry == nil {
		return errors.New("audit entry cannot be nil")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context) ([]model.AuditEntryModel, error) {
	var entries []model.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Order("timestamp ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
