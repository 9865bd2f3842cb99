// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env           string         // APP_ENV: dev, test or prod
	Port          string         // APP_PORT: HTTP port to listen on
	DBDriver      string         // DB_DRIVER: mysql or sqlite
	DBUser        string         // DB_USER
	DBPass        string         // DB_PASS (optional)
	DBHost        string         // DB_HOST
	DBPort        string         // DB_PORT
	DBName        string         // DB_NAME
	SQLitePath    string         // SQLITE_PATH: database file in sqlite mode
	JWTSecret     string         // JWT_SECRET: HS256 key shared with the identity provider
	AccessTTLMin  int            // ACCESS_TOKEN_TTL_MIN: lifetime of tokens issued by the token command
	RabbitMQURL   string         // RABBITMQ_URL: notification broker; empty disables publishing
	HoldTTL       time.Duration  // HOLD_TTL: how long a promoted waitlist user holds the freed slot; 0 disables
	QuotaLimit    int            // QUOTA_LIMIT: active reservations allowed per user
	Location      *time.Location // FACILITY_TIMEZONE: zone of opening hours and session windows
	SweepInterval time.Duration  // SWEEP_INTERVAL: period of the background sweeper; 0 disables
}

// LoadDotEnv seeds the environment from the given .env files (".env" when
// none are given).  Variables already set win and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and every missing or malformed value is
// reported in the returned error.
func Load() (Config, error) {
	l := &loader{}
	cfg := Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          envStr("APP_PORT", "8080"),
		DBDriver:      strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBPass:        os.Getenv("DB_PASS"),
		SQLitePath:    envStr("SQLITE_PATH", "facility.db"),
		JWTSecret:     l.must("JWT_SECRET"),
		AccessTTLMin:  envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		HoldTTL:       l.duration("HOLD_TTL", 10*time.Minute),
		QuotaLimit:    envInt("QUOTA_LIMIT", 2),
		SweepInterval: l.duration("SWEEP_INTERVAL", time.Minute),
	}
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = l.must("DB_USER")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.mustInt("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case "sqlite":
	default:
		l.fail("DB_DRIVER must be mysql or sqlite, got %q", cfg.DBDriver)
	}
	loc, err := time.LoadLocation(envStr("FACILITY_TIMEZONE", "UTC"))
	if err != nil {
		l.fail("invalid FACILITY_TIMEZONE: %v", err)
		loc = time.UTC
	}
	cfg.Location = loc
	if cfg.QuotaLimit < 1 {
		l.fail("QUOTA_LIMIT must be at least 1")
	}
	if cfg.HoldTTL < 0 {
		l.fail("HOLD_TTL must not be negative")
	}
	return cfg, l.err()
}

// loader collects configuration errors so that all of them are reported at
// once.
type loader struct {
	errs []error
}

func (l *loader) fail(format string, args ...any) {
	l.errs = append(l.errs, fmt.Errorf(format, args...))
}

func (l *loader) err() error { return errors.Join(l.errs...) }

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.fail("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but also requires the value to be an integer.  The
// value is returned as given.
func (l *loader) mustInt(key string) string {
	s := l.must(key)
	if s == "" {
		return s
	}
	if _, err := strconv.Atoi(s); err != nil {
		l.fail("invalid int for %s: %q", key, s)
	}
	return s
}

func (l *loader) duration(key string, d time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		l.fail("invalid duration for %s: %q", key, v)
		return d
	}
	return dur
}
