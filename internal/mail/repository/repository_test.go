package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&maildomain.MailMessage{}, &maildomain.SyncCursor{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMessageUpsertTwiceKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(setupTestDB(t))

	msg := &maildomain.MailMessage{
		Owner:          "alice@x.com",
		ID:             "m1",
		Subject:        "first",
		LabelIDs:       []string{"INBOX"},
		FetchedAt:      time.Now().UTC(),
		InternalDateMs: 100000,
	}
	require.NoError(t, repo.Upsert(ctx, msg))

	again := *msg
	again.Subject = "second"
	require.NoError(t, repo.Upsert(ctx, &again))

	n, err := repo.CountByOwner(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, "alice@x.com", "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Subject)
	assert.Equal(t, []string{"INBOX"}, got.LabelIDs)
	assert.Nil(t, got.Classification)
}

func TestMessageGetMissing(t *testing.T) {
	repo := NewMessageRepository(setupTestDB(t))
	_, err := repo.Get(context.Background(), "alice@x.com", "nope")
	assert.ErrorIs(t, err, maildomain.ErrNotFound)
}

func TestMessagesArePartitionedByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(setupTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &maildomain.MailMessage{Owner: "a@x.com", ID: "same"}))
	require.NoError(t, repo.Upsert(ctx, &maildomain.MailMessage{Owner: "b@x.com", ID: "same"}))

	for _, owner := range []string{"a@x.com", "b@x.com"} {
		n, err := repo.CountByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, owner)
	}
}

func TestListClassified(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(setupTestDB(t))

	classified := &maildomain.ClassificationResult{IsJobRelated: true, Status: maildomain.StatusApplied, CompanyName: "Acme", Summary: "applied"}
	require.NoError(t, repo.Upsert(ctx, &maildomain.MailMessage{Owner: "a@x.com", ID: "1", InternalDateMs: 10, Classification: classified}))
	require.NoError(t, repo.Upsert(ctx, &maildomain.MailMessage{Owner: "a@x.com", ID: "2", InternalDateMs: 20, Classification: classified}))
	require.NoError(t, repo.Upsert(ctx, &maildomain.MailMessage{Owner: "a@x.com", ID: "3", InternalDateMs: 30}))
	require.NoError(t, repo.Upsert(ctx, &maildomain.MailMessage{Owner: "b@x.com", ID: "4", Classification: classified}))

	msgs, err := repo.ListClassified(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].ID)
	assert.Equal(t, "1", msgs[1].ID)
	assert.Equal(t, "Acme", msgs[0].Classification.CompanyName)
}

func TestCursorPutAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewCursorRepository(setupTestDB(t))

	_, err := repo.Get(ctx, "a@x.com")
	assert.ErrorIs(t, err, maildomain.ErrNotFound)

	require.NoError(t, repo.Put(ctx, "a@x.com", 100000))
	require.NoError(t, repo.Put(ctx, "a@x.com", 200000))

	cursor, err := repo.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), cursor.LastInternalDateMs)
}
