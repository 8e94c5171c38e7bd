package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_PORT", "DB_PATH", "LOG_LEVEL", "CORS_ORIGINS", "BATCH_PUBLISH_KEY",
		"BATCH_CRON_SCHEDULE", "BATCH_TIMEZONE", "BATCH_TARGET_OFFSET_DAYS",
		"BATCH_CONCURRENCY", "BATCH_SCHEDULER_ENABLED", "BATCH_RUN_TIMEOUT", "REDIS_ADDRESS", "LOCK_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BATCH_PUBLISH_KEY", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "barsheet.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "10 18 * * *", cfg.Batch.CronSchedule)
	assert.Equal(t, "UTC", cfg.Batch.Timezone)
	assert.Equal(t, 0, cfg.Batch.TargetOffsetDays)
	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.True(t, cfg.Batch.SchedulerEnabled)
	assert.Equal(t, 10*time.Minute, cfg.Batch.RunTimeout)
	assert.Empty(t, cfg.Lock.RedisAddress)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, time.UTC, cfg.Batch.Location())
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables already present, so unset them.
	for _, key := range []string{"BATCH_PUBLISH_KEY", "BATCH_CONCURRENCY", "CORS_ORIGINS", "BATCH_TARGET_OFFSET_DAYS"} {
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "BATCH_PUBLISH_KEY=from-file\nBATCH_CONCURRENCY=4\nCORS_ORIGINS=http://a.test, http://b.test\nBATCH_TARGET_OFFSET_DAYS=-1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"BATCH_PUBLISH_KEY", "BATCH_CONCURRENCY", "CORS_ORIGINS", "BATCH_TARGET_OFFSET_DAYS"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Batch.Key)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, -1, cfg.Batch.TargetOffsetDays)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing batch key", map[string]string{}},
		{"bad concurrency", map[string]string{"BATCH_PUBLISH_KEY": "k", "BATCH_CONCURRENCY": "0"}},
		{"non-numeric offset", map[string]string{"BATCH_PUBLISH_KEY": "k", "BATCH_TARGET_OFFSET_DAYS": "soon"}},
		{"bad timezone", map[string]string{"BATCH_PUBLISH_KEY": "k", "BATCH_TIMEZONE": "Mars/Olympus"}},
		{"bad ttl", map[string]string{"BATCH_PUBLISH_KEY": "k", "LOCK_TTL": "forever"}},
		{"bad bool", map[string]string{"BATCH_PUBLISH_KEY": "k", "BATCH_SCHEDULER_ENABLED": "maybe"}},
		{"bad run timeout", map[string]string{"BATCH_PUBLISH_KEY": "k", "BATCH_RUN_TIMEOUT": "all night"}},
		{"zero run timeout", map[string]string{"BATCH_PUBLISH_KEY": "k", "BATCH_RUN_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestLoad_RunTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("BATCH_PUBLISH_KEY", "secret")
	t.Setenv("BATCH_RUN_TIMEOUT", "90s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Batch.RunTimeout)
}

func TestValidate_Nil(t *testing.T) {
	var cfg *Config
	assert.Error(t, cfg.Validate())
}
