package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "chama.db", cfg.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 7, cfg.BackupRetentionDays)
	assert.True(t, cfg.SchedulerEnabled)
	assert.False(t, cfg.Twilio.Enabled())
	assert.Empty(t, cfg.CronSpecs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/chama")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("CRON_BILLING", "0 7 1 * *")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_PHONE_NUMBER", "whatsapp:+14155238886")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
	assert.Equal(t, map[string]string{"billing_sweep": "0 7 1 * *"}, cfg.CronSpecs)
	assert.False(t, cfg.SchedulerEnabled)
	assert.True(t, cfg.Twilio.Enabled())
	assert.Equal(t, "http://localhost:8080", cfg.Twilio.PublicBaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":   {"JWT_SECRET": ""},
		"postgres no url":  {"DATABASE_DRIVER": "postgres"},
		"unknown driver":   {"DATABASE_DRIVER": "mongo"},
		"short backup key": {"BACKUP_ENCRYPTION_KEY": "short"},
		"bad timeout":      {"STORE_TIMEOUT": "soon"},
		"bad timezone":     {"SCHEDULER_TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHAMA_TEST_DOTENV=from-file\nCHAMA_TEST_KEEP=from-file\n"), 0o600))
	t.Setenv("CHAMA_TEST_KEEP", "from-env")
	t.Setenv("CHAMA_TEST_DOTENV", "")
	os.Unsetenv("CHAMA_TEST_DOTENV")

	LoadDotEnv(path)
	assert.Equal(t, "from-file", os.Getenv("CHAMA_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("CHAMA_TEST_KEEP"))
	os.Unsetenv("CHAMA_TEST_DOTENV")
}
