package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSQLiteDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "facility.db", cfg.SQLitePath)
	assert.Equal(t, 10*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 2, cfg.QuotaLimit)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoadMySQLRequiresConnectionSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "abc")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "invalid int for DB_PORT", "DB_NAME"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "facility")
	t.Setenv("HOLD_TTL", "0")
	t.Setenv("QUOTA_LIMIT", "3")
	t.Setenv("FACILITY_TIMEZONE", "Asia/Tehran")
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, time.Duration(0), cfg.HoldTTL)
	assert.Equal(t, 3, cfg.QuotaLimit)
	assert.Equal(t, "Asia/Tehran", cfg.Location.String())
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("HOLD_TTL", "ten minutes")
	t.Setenv("QUOTA_LIMIT", "0")
	t.Setenv("FACILITY_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"DB_DRIVER", "HOLD_TTL", "QUOTA_LIMIT", "FACILITY_TIMEZONE"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9090\nAPP_ENV=prod\n"), 0o600))
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "")
	require.NoError(t, os.Unsetenv("APP_PORT"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "9090", os.Getenv("APP_PORT"))
	assert.Equal(t, "test", os.Getenv("APP_ENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, "ip_user_route", c.KeyStrategy)
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 30*time.Second, c.TTL)
}
