package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/internal/mail/repository"
	rollupdomain "jobtracker-backend/internal/rollup/domain"
	rolluprepo "jobtracker-backend/internal/rollup/repository"
	rollupusecase "jobtracker-backend/internal/rollup/usecase"
	"jobtracker-backend/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const owner = "alice@x.com"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&maildomain.MailMessage{}, &maildomain.SyncCursor{}, &rollupdomain.JobRollup{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// fakeMailbox serves messages newest first and honours a bare "after:<sec>" query.
type fakeMailbox struct {
	messages map[string]*maildomain.RemoteMessage
	order    []string
	queries  []string
	closed   bool
}

func newFakeMailbox(msgs ...*maildomain.RemoteMessage) *fakeMailbox {
	f := &fakeMailbox{messages: map[string]*maildomain.RemoteMessage{}}
	for _, m := range msgs {
		f.messages[m.ID] = m
		f.order = append(f.order, m.ID)
	}
	return f
}

func (f *fakeMailbox) ListIDs(_ context.Context, query, pageToken string, pageSize int64) ([]string, string, error) {
	f.queries = append(f.queries, query)

	afterSec := int64(-1)
	if rest, ok := strings.CutPrefix(query, "after:"); ok {
		if v, err := strconv.ParseInt(rest, 10, 64); err == nil {
			afterSec = v
		}
	}
	var matched []string
	for _, id := range f.order {
		if afterSec >= 0 && f.messages[id].InternalDateMs/1000 <= afterSec {
			continue
		}
		matched = append(matched, id)
	}

	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := start + int(pageSize)
	if end >= len(matched) {
		return matched[start:], "", nil
	}
	return matched[start:end], strconv.Itoa(end), nil
}

func (f *fakeMailbox) Get(_ context.Context, id string) (*maildomain.RemoteMessage, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, maildomain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

type fakeResolver struct {
	mailbox maildomain.MailboxClient
	err     error
}

func (r fakeResolver) MailboxFor(context.Context, string) (maildomain.MailboxClient, error) {
	return r.mailbox, r.err
}

type fakeClassifier struct {
	calls int
	fn    func(in ai.MailInput) *maildomain.ClassificationResult
}

func (c *fakeClassifier) Classify(_ context.Context, in ai.MailInput) *maildomain.ClassificationResult {
	c.calls++
	return c.fn(in)
}

func appliedAt(company string) func(ai.MailInput) *maildomain.ClassificationResult {
	return func(ai.MailInput) *maildomain.ClassificationResult {
		return &maildomain.ClassificationResult{IsJobRelated: true, Status: maildomain.StatusApplied, Summary: "Application received", CompanyName: company}
	}
}

func remote(id string, internalDateMs int64) *maildomain.RemoteMessage {
	return &maildomain.RemoteMessage{
		ID:             id,
		ThreadID:       "thread-" + id,
		Snippet:        "snippet " + id,
		LabelIDs:       []string{"INBOX"},
		InternalDateMs: internalDateMs,
		Payload: &maildomain.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []maildomain.Header{
				{Name: "from", Value: "Acme Recruiting <jobs@acme.com>"},
				{Name: "TO", Value: owner},
				{Name: "Subject", Value: "Your application " + id},
				{Name: "Date", Value: "Mon, 1 Jan 2024 10:00:00 +0000"},
			},
			Parts: []*maildomain.MessagePart{
				{MimeType: "text/plain", Data: []byte("Thanks for applying to Acme.")},
				{MimeType: "text/html", Data: []byte("<p>Thanks</p>")},
			},
		},
	}
}

type harness struct {
	db         *gorm.DB
	messages   repository.MessageRepository
	cursors    repository.CursorRepository
	rollups    rolluprepo.RollupRepository
	classifier *fakeClassifier
	locks      *OwnerLocks
}

func newHarness(t *testing.T, classify func(ai.MailInput) *maildomain.ClassificationResult) *harness {
	t.Helper()
	db := setupTestDB(t)
	return &harness{
		db:         db,
		messages:   repository.NewMessageRepository(db),
		cursors:    repository.NewCursorRepository(db),
		rollups:    rolluprepo.NewRollupRepository(db),
		classifier: &fakeClassifier{fn: classify},
		locks:      NewOwnerLocks(),
	}
}

func (h *harness) usecase(resolver maildomain.MailboxResolver, pageSize int64) SyncUsecase {
	agg := rollupusecase.NewRollupUsecase(h.rollups, nil, time.UTC, zap.NewNop())
	return NewSyncUsecase(h.messages, h.cursors, resolver, h.classifier, agg, h.locks, SyncConfig{PageSize: pageSize}, zap.NewNop())
}

func TestSyncOwnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	mailbox := newFakeMailbox(remote("m2", 200000), remote("m1", 100000))
	uc := h.usecase(fakeResolver{mailbox: mailbox}, 0)

	res, err := uc.SyncOwner(ctx, " Alice@X.com ", SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FetchedCount)
	assert.Equal(t, 2, res.ClassifiedCount)
	assert.Equal(t, int64(200000), res.Cursor)
	assert.True(t, res.CursorAdvanced)
	assert.Equal(t, "newer_than:7d", res.Query)
	assert.True(t, mailbox.closed)

	cursor, err := h.cursors.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), cursor.LastInternalDateMs)

	n, err := h.messages.CountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	doc, err := h.messages.Get(ctx, owner, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Recruiting <jobs@acme.com>", doc.From)
	assert.Equal(t, owner, doc.To)
	assert.Equal(t, "Thanks for applying to Acme.", doc.Body)
	assert.Equal(t, "thread-m1", doc.ThreadID)
	require.NotNil(t, doc.Classification)
	assert.Equal(t, maildomain.StatusApplied, doc.Classification.Status)
	assert.NotNil(t, doc.ClassifiedAt)

	rollup, err := h.rollups.Get(ctx, "alice@x.com::acme")
	require.NoError(t, err)
	assert.Equal(t, 2, rollup.Applied)
}

func TestResyncWithoutNewMailKeepsCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	mailbox := newFakeMailbox(remote("m2", 200000), remote("m1", 100000))
	uc := h.usecase(fakeResolver{mailbox: mailbox}, 0)

	_, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)

	res, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, "after:200", res.Query)
	assert.Equal(t, 0, res.FetchedCount)
	assert.Equal(t, int64(200000), res.Cursor)
	assert.False(t, res.CursorAdvanced)
	assert.Equal(t, 2, h.classifier.calls)
}

func TestPreClassifiedMessageIsNotReclassified(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Other"))

	classifiedAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, h.messages.Upsert(ctx, &maildomain.MailMessage{
		Owner:          owner,
		ID:             "m1",
		Subject:        "stale subject",
		InternalDateMs: 100000,
		Classification: &maildomain.ClassificationResult{IsJobRelated: true, Status: maildomain.StatusRejected, CompanyName: "Acme", Summary: "no"},
		ClassifiedAt:   &classifiedAt,
		CreatedAt:      &created,
	}))

	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox(remote("m1", 100000))}, 0)
	res, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FetchedCount)
	assert.Equal(t, 0, res.ClassifiedCount)
	assert.Equal(t, 0, h.classifier.calls)

	doc, err := h.messages.Get(ctx, owner, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Your application m1", doc.Subject, "remote fields are refreshed")
	assert.Equal(t, maildomain.StatusRejected, doc.Classification.Status)
	assert.True(t, classifiedAt.Equal(*doc.ClassifiedAt))
	assert.True(t, created.Equal(*doc.CreatedAt))

	_, err = h.rollups.Get(ctx, "alice@x.com::other")
	assert.ErrorIs(t, err, rollupdomain.ErrRollupNotFound)
}

func TestFailedClassificationIsRetriedNextRun(t *testing.T) {
	ctx := context.Background()
	fail := true
	h := newHarness(t, func(in ai.MailInput) *maildomain.ClassificationResult {
		if fail {
			return nil
		}
		return appliedAt("Acme")(in)
	})
	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox(remote("m1", 100000))}, 0)

	res, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ClassifiedCount)
	assert.Equal(t, int64(100000), res.Cursor)

	doc, err := h.messages.Get(ctx, owner, "m1")
	require.NoError(t, err)
	assert.Nil(t, doc.Classification)

	fail = false
	res, err = uc.SyncOwner(ctx, owner, SyncOptions{QueryOverride: "newer_than:30d", SkipCursorAdvance: true})
	require.NoError(t, err)
	assert.Equal(t, "newer_than:30d", res.Query)
	assert.Equal(t, 1, res.ClassifiedCount)
}

func TestPagingFollowsContinuationTokens(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	mailbox := newFakeMailbox(remote("m3", 300000), remote("m2", 200000), remote("m1", 100000))
	uc := h.usecase(fakeResolver{mailbox: mailbox}, 2)

	res, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.FetchedCount)
	assert.Len(t, mailbox.queries, 2)
	assert.Equal(t, int64(300000), res.Cursor)
}

func TestSkipCursorAdvance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox(remote("m1", 100000))}, 0)

	res, err := uc.SyncOwner(ctx, owner, SyncOptions{QueryOverride: "after:1 before:2", SkipCursorAdvance: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FetchedCount)
	assert.False(t, res.CursorAdvanced)

	_, err = h.cursors.Get(ctx, owner)
	assert.ErrorIs(t, err, maildomain.ErrNotFound)
}

func TestCredentialMissing(t *testing.T) {
	h := newHarness(t, appliedAt("Acme"))
	uc := h.usecase(fakeResolver{err: fmt.Errorf("owner %s: %w", owner, maildomain.ErrCredentialMissing)}, 0)

	_, err := uc.SyncOwner(context.Background(), owner, SyncOptions{})
	assert.ErrorIs(t, err, maildomain.ErrCredentialMissing)
	assert.False(t, h.locks.Held(owner))
}

func TestSyncInProgress(t *testing.T) {
	h := newHarness(t, appliedAt("Acme"))
	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox()}, 0)

	require.True(t, h.locks.TryLock(owner))
	_, err := uc.SyncOwner(context.Background(), owner, SyncOptions{})
	assert.ErrorIs(t, err, maildomain.ErrSyncInProgress)

	h.locks.Unlock(owner)
	_, err = uc.SyncOwner(context.Background(), owner, SyncOptions{})
	assert.NoError(t, err)
}

func TestInvalidOwner(t *testing.T) {
	h := newHarness(t, appliedAt("Acme"))
	_, err := h.usecase(fakeResolver{mailbox: newFakeMailbox()}, 0).SyncOwner(context.Background(), "  ", SyncOptions{})
	assert.ErrorIs(t, err, maildomain.ErrInvalidOwner)
}

type flakyMessages struct {
	repository.MessageRepository
	getErr    error
	upsertErr error
}

func (f flakyMessages) Get(ctx context.Context, owner, id string) (*maildomain.MailMessage, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MessageRepository.Get(ctx, owner, id)
}

func (f flakyMessages) Upsert(ctx context.Context, m *maildomain.MailMessage) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.MessageRepository.Upsert(ctx, m)
}

func TestLookupErrorIsTreatedAsNewDocument(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	h.messages = flakyMessages{MessageRepository: h.messages, getErr: errors.New("read timeout")}
	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox(remote("m1", 100000))}, 0)

	res, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FetchedCount)
	assert.Equal(t, 1, res.ClassifiedCount)
}

func TestPersistenceFailureAbortsWithoutCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	h.messages = flakyMessages{MessageRepository: h.messages, upsertErr: errors.New("disk full")}
	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox(remote("m1", 100000))}, 0)

	_, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	assert.ErrorIs(t, err, maildomain.ErrPersistence)

	_, err = h.cursors.Get(ctx, owner)
	assert.ErrorIs(t, err, maildomain.ErrNotFound)
	assert.Equal(t, 0, h.classifier.calls)
}

func TestCancelledContextStopsBeforeCursor(t *testing.T) {
	h := newHarness(t, appliedAt("Acme"))
	uc := h.usecase(fakeResolver{mailbox: newFakeMailbox(remote("m1", 100000))}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := uc.SyncOwner(ctx, owner, SyncOptions{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = h.cursors.Get(context.Background(), owner)
	assert.ErrorIs(t, err, maildomain.ErrNotFound)
}

func TestVanishedMessageIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, appliedAt("Acme"))
	mailbox := &listOnlyExtra{fakeMailbox: newFakeMailbox(remote("m1", 100000)), extra: "gone"}

	res, err := h.usecase(fakeResolver{mailbox: mailbox}, 0).SyncOwner(ctx, owner, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FetchedCount)
	assert.Equal(t, int64(100000), res.Cursor)
}

// listOnlyExtra lists one id that Get cannot find.
type listOnlyExtra struct {
	*fakeMailbox
	extra string
}

func (l *listOnlyExtra) ListIDs(ctx context.Context, query, pageToken string, pageSize int64) ([]string, string, error) {
	ids, next, err := l.fakeMailbox.ListIDs(ctx, query, pageToken, pageSize)
	if pageToken == "" {
		ids = append([]string{l.extra}, ids...)
	}
	return ids, next, err
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "label:jobs", BuildQuery(SyncOptions{QueryOverride: "label:jobs"}, 5000, true, 7))
	assert.Equal(t, "after:1700000000", BuildQuery(SyncOptions{}, 1700000000999, true, 7))
	assert.Equal(t, "after:0", BuildQuery(SyncOptions{}, 0, true, 7))
	assert.Equal(t, "newer_than:7d", BuildQuery(SyncOptions{}, 0, false, 7))
}
