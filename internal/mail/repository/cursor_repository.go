package repository

import (
	"context"
	"errors"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CursorRepository persists one SyncCursor per owner.
type CursorRepository interface {
	Get(ctx context.Context, owner string) (*maildomain.SyncCursor, error)
	Put(ctx context.Context, owner string, lastInternalDateMs int64) error
}

type cursorRepository struct {
	db *gorm.DB
}

func NewCursorRepository(db *gorm.DB) CursorRepository {
	return &cursorRepository{db: db}
}

// Get returns maildomain.ErrNotFound when the owner has never completed a run.
func (r *cursorRepository) Get(ctx context.Context, owner string) (*maildomain.SyncCursor, error) {
	var cursor maildomain.SyncCursor
	err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, maildomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (r *cursorRepository) Put(ctx context.Context, owner string, lastInternalDateMs int64) error {
	cursor := &maildomain.SyncCursor{
		Owner:              owner,
		LastInternalDateMs: lastInternalDateMs,
		UpdatedAt:          time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_internal_date_ms", "updated_at"}),
	}).Create(cursor).Error
}
