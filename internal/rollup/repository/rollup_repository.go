package repository

import (
	"context"
	"errors"
	"fmt"

	rollupdomain "jobtracker-backend/internal/rollup/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SortByCompany = "company"
	SortByUpdated = "updated"
)

var ErrInvalidSort = errors.New("invalid sort key")

// RollupRepository stores per-company JobRollup documents.
type RollupRepository interface {
	Get(ctx context.Context, id string) (*rollupdomain.JobRollup, error)
	Upsert(ctx context.Context, rollup *rollupdomain.JobRollup) error
	ListByOwner(ctx context.Context, owner, sortKey string) ([]*rollupdomain.JobRollup, error)
}

type rollupRepository struct {
	db *gorm.DB
}

func NewRollupRepository(db *gorm.DB) RollupRepository {
	return &rollupRepository{db: db}
}

func (r *rollupRepository) Get(ctx context.Context, id string) (*rollupdomain.JobRollup, error) {
	var rollup rollupdomain.JobRollup
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rollup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, rollupdomain.ErrRollupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rollup, nil
}

func (r *rollupRepository) Upsert(ctx context.Context, rollup *rollupdomain.JobRollup) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rollup).Error
}

func (r *rollupRepository) ListByOwner(ctx context.Context, owner, sortKey string) ([]*rollupdomain.JobRollup, error) {
	q := r.db.WithContext(ctx).Where("owner = ?", owner)
	switch sortKey {
	case SortByCompany, "":
		q = q.Order("LOWER(company_name) ASC").Order("id ASC")
	case SortByUpdated:
		q = q.Order("last_updated DESC").Order("LOWER(company_name) ASC")
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, sortKey)
	}

	var rollups []*rollupdomain.JobRollup
	if err := q.Find(&rollups).Error; err != nil {
		return nil, err
	}
	return rollups, nil
}
