package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"
	rollupdomain "jobtracker-backend/internal/rollup/domain"
	"jobtracker-backend/internal/rollup/repository"

	"go.uber.org/zap"
)

const civilDateLayout = "2006-01-02"

// RollupNotifier is told about rollup changes worth a push to the owner's devices.
type RollupNotifier interface {
	NotifyRollup(ctx context.Context, rollup *rollupdomain.JobRollup, status maildomain.Status)
}

// RollupUsecase folds classifications into per-company rollups.
type RollupUsecase interface {
	ApplyClassification(ctx context.Context, owner string, c maildomain.ClassificationResult) (*rollupdomain.JobRollup, error)
	ListRollups(ctx context.Context, owner, sortKey string) ([]*rollupdomain.JobRollup, error)
}

type rollupUsecase struct {
	repo     repository.RollupRepository
	notifier RollupNotifier
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewRollupUsecase builds the aggregator. "Today" is the civil date in loc;
// notifier may be nil.
func NewRollupUsecase(repo repository.RollupRepository, notifier RollupNotifier, loc *time.Location, logger *zap.Logger) RollupUsecase {
	if loc == nil {
		loc = time.UTC
	}
	return &rollupUsecase{
		repo:     repo,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		logger:   logger.Named("rollup"),
	}
}

func (u *rollupUsecase) today() string {
	return u.now().In(u.loc).Format(civilDateLayout)
}

// ApplyClassification returns (nil, nil) when the classification does not
// qualify. Each call with a qualifying classification changes the rollup once;
// callers must not replay a classification.
func (u *rollupUsecase) ApplyClassification(ctx context.Context, owner string, c maildomain.ClassificationResult) (*rollupdomain.JobRollup, error) {
	owner = maildomain.NormalizeOwner(owner)
	company := strings.TrimSpace(c.CompanyName)
	if owner == "" || !c.IsJobRelated || !c.Status.Actionable() || rollupdomain.Slugify(company) == "" {
		return nil, nil
	}

	id := rollupdomain.RollupID(owner, company)
	today := u.today()

	rollup, err := u.repo.Get(ctx, id)
	switch {
	case errors.Is(err, rollupdomain.ErrRollupNotFound):
		rollup = &rollupdomain.JobRollup{ID: id, Owner: owner, CompanyName: company}
	case err != nil:
		return nil, fmt.Errorf("%w: load rollup %s: %v", maildomain.ErrPersistence, id, err)
	}

	legacyDate := rollup.LastUpdated
	if legacyDate == "" {
		legacyDate = today
	}
	comments, err := rollup.DecodeComments(legacyDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", maildomain.ErrPersistence, err)
	}

	switch c.Status {
	case maildomain.StatusApplied:
		rollup.Applied++
	case maildomain.StatusRejected:
		rollup.Rejected++
	case maildomain.StatusNextSteps:
		rollup.NextSteps++
	case maildomain.StatusCommentOnly:
		comments = append(comments, rollupdomain.Comment{Date: today, Note: rollupdomain.TruncateNote(c.Summary)})
	}
	if err := rollup.SetComments(comments); err != nil {
		return nil, fmt.Errorf("encode comments of %s: %w", id, err)
	}
	rollup.LastUpdated = today

	if err := u.repo.Upsert(ctx, rollup); err != nil {
		return nil, fmt.Errorf("%w: write rollup %s: %v", maildomain.ErrPersistence, id, err)
	}

	u.logger.Debug("rollup updated",
		zap.String("rollup_id", id),
		zap.String("status", string(c.Status)),
		zap.Int("applied", rollup.Applied),
		zap.Int("rejected", rollup.Rejected),
		zap.Int("next_steps", rollup.NextSteps),
	)

	if u.notifier != nil && (c.Status == maildomain.StatusNextSteps || c.Status == maildomain.StatusRejected) {
		u.notifier.NotifyRollup(ctx, rollup, c.Status)
	}
	return rollup, nil
}

func (u *rollupUsecase) ListRollups(ctx context.Context, owner, sortKey string) ([]*rollupdomain.JobRollup, error) {
	owner = maildomain.NormalizeOwner(owner)
	if owner == "" {
		return nil, maildomain.ErrInvalidOwner
	}
	return u.repo.ListByOwner(ctx, owner, sortKey)
}
