package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/internal/mail/repository"
	"jobtracker-backend/pkg/ai"

	"go.uber.org/zap"
)

const (
	DefaultPageSize     int64 = 100
	DefaultLookbackDays       = 7
)

// SyncConfig holds the paging knobs of a sync run.
type SyncConfig struct {
	PageSize     int64
	LookbackDays int
}

type syncUsecase struct {
	messages   repository.MessageRepository
	cursors    repository.CursorRepository
	mailboxes  maildomain.MailboxResolver
	classifier Classifier
	rollups    RollupApplier
	locks      *OwnerLocks
	cfg        SyncConfig
	now        func() time.Time
	logger     *zap.Logger
}

func NewSyncUsecase(
	messages repository.MessageRepository,
	cursors repository.CursorRepository,
	mailboxes maildomain.MailboxResolver,
	classifier Classifier,
	rollups RollupApplier,
	locks *OwnerLocks,
	cfg SyncConfig,
	logger *zap.Logger,
) SyncUsecase {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if locks == nil {
		locks = NewOwnerLocks()
	}
	return &syncUsecase{
		messages:   messages,
		cursors:    cursors,
		mailboxes:  mailboxes,
		classifier: classifier,
		rollups:    rollups,
		locks:      locks,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.Named("sync"),
	}
}

// BuildQuery picks the remote search for a run: an explicit override, then
// the cursor, then a fixed lookback window.
func BuildQuery(opts SyncOptions, cursorMs int64, hasCursor bool, lookbackDays int) string {
	switch {
	case opts.QueryOverride != "":
		return opts.QueryOverride
	case hasCursor:
		return fmt.Sprintf("after:%d", cursorMs/1000)
	default:
		return fmt.Sprintf("newer_than:%dd", lookbackDays)
	}
}

func (u *syncUsecase) SyncOwner(ctx context.Context, owner string, opts SyncOptions) (*SyncResult, error) {
	owner = maildomain.NormalizeOwner(owner)
	if owner == "" {
		return nil, maildomain.ErrInvalidOwner
	}
	if !u.locks.TryLock(owner) {
		return nil, maildomain.ErrSyncInProgress
	}
	defer u.locks.Unlock(owner)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := u.logger.With(zap.String("owner", owner))

	mailbox, err := u.mailboxes.MailboxFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c, ok := mailbox.(io.Closer); ok {
		defer c.Close()
	}

	var priorMs int64
	hasCursor := false
	cursor, err := u.cursors.Get(ctx, owner)
	switch {
	case err == nil:
		priorMs, hasCursor = cursor.LastInternalDateMs, true
	case !errors.Is(err, maildomain.ErrNotFound):
		return nil, fmt.Errorf("%w: read cursor: %v", maildomain.ErrPersistence, err)
	}

	result := &SyncResult{
		Owner:  owner,
		Query:  BuildQuery(opts, priorMs, hasCursor, u.cfg.LookbackDays),
		Cursor: priorMs,
	}
	log.Info("sync started", zap.String("query", result.Query), zap.Bool("skip_cursor_advance", opts.SkipCursorAdvance))

	var maxSeen int64
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ids, next, err := mailbox.ListIDs(ctx, result.Query, pageToken, u.cfg.PageSize)
		if err != nil {
			return result, fmt.Errorf("list messages: %w", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			doc, err := u.ingest(ctx, mailbox, owner, id)
			if errors.Is(err, maildomain.ErrNotFound) {
				log.Warn("message vanished before fetch", zap.String("message_id", id))
				continue
			}
			if err != nil {
				return result, err
			}
			result.FetchedCount++
			if doc.InternalDateMs > maxSeen {
				maxSeen = doc.InternalDateMs
			}

			classified, err := u.classify(ctx, owner, doc)
			if err != nil {
				return result, err
			}
			if classified {
				result.ClassifiedCount++
			}
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	if !opts.SkipCursorAdvance && maxSeen > priorMs {
		if err := u.cursors.Put(ctx, owner, maxSeen); err != nil {
			return result, fmt.Errorf("%w: write cursor: %v", maildomain.ErrPersistence, err)
		}
		result.Cursor = maxSeen
		result.CursorAdvanced = true
	}

	log.Info("sync finished",
		zap.Int("fetched", result.FetchedCount),
		zap.Int("classified", result.ClassifiedCount),
		zap.Int64("cursor", result.Cursor),
	)
	return result, nil
}

// ingest fetches one message, merges it with the stored copy, and writes it.
func (u *syncUsecase) ingest(ctx context.Context, mailbox maildomain.MailboxClient, owner, id string) (*maildomain.MailMessage, error) {
	remote, err := mailbox.Get(ctx, id)
	if err != nil {
		if errors.Is(err, maildomain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch message %s: %w", id, err)
	}

	doc := &maildomain.MailMessage{
		Owner:          owner,
		ID:             remote.ID,
		ThreadID:       remote.ThreadID,
		From:           remote.Header("From"),
		To:             remote.Header("To"),
		Subject:        remote.Header("Subject"),
		Date:           remote.Header("Date"),
		Snippet:        remote.Snippet,
		Body:           ExtractBody(remote.Payload),
		LabelIDs:       remote.LabelIDs,
		FetchedAt:      u.now().UTC(),
		InternalDateMs: remote.InternalDateMs,
	}
	if doc.ID == "" {
		doc.ID = id
	}

	existing, err := u.messages.Get(ctx, owner, doc.ID)
	switch {
	case err == nil:
		doc.Classification = existing.Classification
		doc.ClassifiedAt = existing.ClassifiedAt
		doc.CreatedAt = existing.CreatedAt
	case !errors.Is(err, maildomain.ErrNotFound):
		u.logger.Warn("stored message lookup failed, treating as new",
			zap.String("owner", owner), zap.String("message_id", doc.ID), zap.Error(err))
	}
	if doc.CreatedAt == nil {
		created := doc.FetchedAt
		doc.CreatedAt = &created
	}

	if err := u.messages.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: write message %s: %v", maildomain.ErrPersistence, doc.ID, err)
	}
	return doc, nil
}

// classify runs the gate for one stored message. It reports whether a new
// classification was recorded; the error is non-nil only for store failures.
func (u *syncUsecase) classify(ctx context.Context, owner string, doc *maildomain.MailMessage) (bool, error) {
	if doc.IsClassified() {
		return false, nil
	}

	result := u.classifier.Classify(ctx, ai.MailInput{
		From:    doc.From,
		To:      doc.To,
		Subject: doc.Subject,
		Date:    doc.Date,
		Snippet: doc.Snippet,
		Body:    doc.Body,
	})
	if result == nil {
		return false, nil
	}

	classifiedAt := u.now().UTC()
	doc.Classification = result
	doc.ClassifiedAt = &classifiedAt
	// Message first, rollup second: a failure between the two under-counts.
	if err := u.messages.Upsert(ctx, doc); err != nil {
		return false, fmt.Errorf("%w: write classification of %s: %v", maildomain.ErrPersistence, doc.ID, err)
	}

	if _, err := u.rollups.ApplyClassification(ctx, owner, *result); err != nil {
		if errors.Is(err, maildomain.ErrPersistence) {
			return true, err
		}
		return true, fmt.Errorf("%w: apply rollup for %s: %v", maildomain.ErrPersistence, doc.ID, err)
	}
	return true, nil
}
