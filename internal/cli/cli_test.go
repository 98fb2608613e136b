package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jobtracker-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("database:\n  driver: sqlite\n  dsn: %s\nclassifier:\n  api_key: sk-test\nscheduler:\n  timezone: UTC\n", dbPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configFile, syncOwner, syncQuery, sweepDate = "", "", "", ""
		syncSkipCursor = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := run(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "migration complete")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("job_rollups"))
}

func TestSweepCommandWithNoOwners(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)

	out, err := run(t, "sweep", "--config", cfgPath, "--date", "2024-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, `"day": "2024-06-01"`)
	assert.Contains(t, out, `"owners": 0`)
}

func TestSyncCommandWithoutCredential(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)

	_, err = run(t, "sync", "--config", cfgPath, "--owner", "nobody@x.com")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "migrate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSweepTime(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{Timezone: "UTC"}}
	now := time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC)

	at, err := sweepTime("", cfg, now)
	require.NoError(t, err)
	assert.Equal(t, now, at)

	at, err = sweepTime("2024-06-01", cfg, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC), at)

	_, err = sweepTime("06/01/2024", cfg, now)
	assert.Error(t, err)
}
