package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("SESSION_IDLE_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
}

func TestLoad_TrimsBaseURLAndParsesDurations(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("API_TIMEOUT", "not-a-duration")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.True(t, cfg.CookieSecure)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			StoreDriver:   StoreDriverMemory,
			SessionSecret: "secret",
			APIBaseURL:    "http://localhost:8000",
			PollInterval:  time.Second,
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.StoreDriver = StoreDriverPostgres
	assert.ErrorContains(t, cfg.Validate(), "DB_PASSWORD")

	cfg = base()
	cfg.StoreDriver = "redis"
	assert.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")

	cfg = base()
	cfg.SessionSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "SESSION_SECRET")
}
