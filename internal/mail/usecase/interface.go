package usecase

import (
	"context"

	maildomain "jobtracker-backend/internal/mail/domain"
	rollupdomain "jobtracker-backend/internal/rollup/domain"
	"jobtracker-backend/pkg/ai"
)

// SyncOptions adjusts one sync run.
type SyncOptions struct {
	// QueryOverride replaces the cursor-derived query when non-empty.
	QueryOverride string
	// SkipCursorAdvance leaves the stored cursor untouched.
	SkipCursorAdvance bool
}

// SyncResult reports what one run did.
type SyncResult struct {
	Owner           string `json:"owner"`
	Query           string `json:"query"`
	FetchedCount    int    `json:"fetched_count"`
	ClassifiedCount int    `json:"classified_count"`
	Cursor          int64  `json:"cursor"`
	CursorAdvanced  bool   `json:"cursor_advanced"`
}

// SyncUsecase pulls an owner's new mail, stores it, and classifies what is new.
type SyncUsecase interface {
	SyncOwner(ctx context.Context, owner string, opts SyncOptions) (*SyncResult, error)
}

// QueryUsecase answers read-side questions about stored mail.
type QueryUsecase interface {
	MessagesByCompany(ctx context.Context, owner, company string) ([]*maildomain.MailMessage, error)
}

// Classifier labels one message; nil means it could not.
type Classifier interface {
	Classify(ctx context.Context, in ai.MailInput) *maildomain.ClassificationResult
}

// RollupApplier folds a fresh classification into the company rollup.
type RollupApplier interface {
	ApplyClassification(ctx context.Context, owner string, c maildomain.ClassificationResult) (*rollupdomain.JobRollup, error)
}
