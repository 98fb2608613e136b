package di

import (
	"context"
	"path/filepath"
	"testing"

	api "jobtracker-backend/cmd/api"
	authUsecase "jobtracker-backend/internal/auth/usecase"
	"jobtracker-backend/internal/mail/scheduler"
	mailUsecase "jobtracker-backend/internal/mail/usecase"
	rollupUsecase "jobtracker-backend/internal/rollup/usecase"
	"jobtracker-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set("database.driver", "sqlite")
	v.Set("database.dsn", filepath.Join(t.TempDir(), "di.db"))
	v.Set("classifier.api_key", "sk-test")
	v.Set("auth.jwt_secret", "secret")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestContainerResolvesServeGraph(t *testing.T) {
	c, err := BuildContainer(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, Migrate(c))

	err = c.Invoke(func(h *api.Handler, s *scheduler.DailySweepScheduler, sync mailUsecase.SyncUsecase, auth authUsecase.AuthUsecase) {
		assert.NotNil(t, h)
		assert.NotNil(t, s)
		assert.NotNil(t, sync)
		assert.NotNil(t, auth)
	})
	require.NoError(t, err)
}

func TestContainerWithoutOptionalProviders(t *testing.T) {
	c, err := BuildContainer(testConfig(t))
	require.NoError(t, err)

	err = c.Invoke(func(g authUsecase.GmailConnector, n rollupUsecase.RollupNotifier) {
		assert.Nil(t, g)
		assert.Nil(t, n)
	})
	require.NoError(t, err)
}

func TestMigrateCreatesTables(t *testing.T) {
	c, err := BuildContainer(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, Migrate(c))

	require.NoError(t, c.Invoke(func(db *gorm.DB) {
		assert.True(t, db.Migrator().HasTable("job_rollups"))
	}))
}

func TestNotificationServiceDisabledWithoutProject(t *testing.T) {
	svc, err := NewNotificationService(context.Background(), testConfig(t), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestMissingClassifierKeyFailsLazily(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.APIKey = ""
	c, err := BuildContainer(cfg)
	require.NoError(t, err)

	require.NoError(t, Migrate(c))
	err = c.Invoke(func(mailUsecase.SyncUsecase) {})
	assert.Error(t, err)
}
