package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	authdomain "jobtracker-backend/internal/auth/domain"
	"jobtracker-backend/pkg/utils/crypto"

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
	require.NoError(t, db.AutoMigrate(&authdomain.Credential{}, &authdomain.FCMToken{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestCredentialGetMissingReturnsNil(t *testing.T) {
	repo := NewCredentialRepository(setupTestDB(t), nil)
	cred, err := repo.Get(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCredentialPutMergesFields(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(setupTestDB(t), nil)

	expiry := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Put(ctx, &authdomain.Credential{
		Owner:        "a@x.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       &expiry,
	}))

	// A refresh that returns no refresh token must keep the stored one.
	require.NoError(t, repo.Put(ctx, &authdomain.Credential{Owner: "a@x.com", AccessToken: "access-2"}))

	cred, err := repo.Get(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, authdomain.ProviderGoogle, cred.Provider)
	assert.Equal(t, "access-2", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	require.NotNil(t, cred.Expiry)
	assert.True(t, expiry.Equal(*cred.Expiry))
}

func TestCredentialSecretsAreSealedAtRest(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	cipher, err := crypto.NewCipher("test-key")
	require.NoError(t, err)
	repo := NewCredentialRepository(db, cipher)

	require.NoError(t, repo.Put(ctx, &authdomain.Credential{
		Owner:        "b@x.com",
		Provider:     authdomain.ProviderIMAP,
		IMAPHost:     "imap.x.com:993",
		IMAPUsername: "b",
		IMAPPassword: "hunter2",
	}))

	var raw authdomain.Credential
	require.NoError(t, db.Where("owner = ?", "b@x.com").First(&raw).Error)
	assert.True(t, strings.HasPrefix(raw.IMAPPassword, "enc:v1:"))
	assert.Equal(t, "", raw.AccessToken)

	cred, err := repo.Get(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cred.IMAPPassword)
	assert.True(t, cred.Usable())
}

func TestListOwners(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(setupTestDB(t), nil)
	for _, o := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		require.NoError(t, repo.Put(ctx, &authdomain.Credential{Owner: o, AccessToken: "t"}))
	}
	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, owners)
}

func TestFCMTokens(t *testing.T) {
	ctx := context.Background()
	repo := NewFCMTokenRepository(setupTestDB(t))

	require.NoError(t, repo.SaveToken(ctx, "a@x.com", "tok-1", "chrome"))
	require.NoError(t, repo.SaveToken(ctx, "a@x.com", "tok-2", "firefox"))
	// Re-registering a token under another owner moves it.
	require.NoError(t, repo.SaveToken(ctx, "b@x.com", "tok-2", "firefox"))

	tokens, err := repo.GetTokensByOwner(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tok-1", tokens[0].Token)

	require.NoError(t, repo.DeleteOwnerToken(ctx, "b@x.com", "tok-1"))
	tokens, _ = repo.GetTokensByOwner(ctx, "a@x.com")
	assert.Len(t, tokens, 1, "other owners cannot delete the token")

	require.NoError(t, repo.DeleteToken(ctx, "tok-1"))
	tokens, _ = repo.GetTokensByOwner(ctx, "a@x.com")
	assert.Empty(t, tokens)
}
