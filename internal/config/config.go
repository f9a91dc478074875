package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Restaurant backend
	APIBaseURL string
	APITimeout time.Duration

	// Session store
	StoreDriver        string
	SessionCookieName  string
	SessionIdleTimeout time.Duration
	SessionSecret      string
	CookieSecure       bool

	// Subscription plan
	PlanAmount                 string
	PlanCurrency               string
	PollInterval               time.Duration
	AlreadyActiveRedirectDelay time.Duration

	// Scheduled jobs
	SessionPurgeSchedule string
	LogCleanupSchedule   string

	// Server
	Port        string
	CORSOrigins string
	StaticDir   string
	AppEnv      string
	SentryDSN   string
}

// Load reads an optional .env file and builds the config from the environment.
// Values already present in the environment win over the file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "restaurant_portal"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		APIBaseURL: strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout: parseDuration(getEnv("API_TIMEOUT", "15s"), 15*time.Second),

		StoreDriver:        getEnv("STORE_DRIVER", StoreDriverPostgres),
		SessionCookieName:  getEnv("SESSION_COOKIE_NAME", "portal_session"),
		SessionIdleTimeout: parseDuration(getEnv("SESSION_IDLE_TIMEOUT", "30m"), 30*time.Minute),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		CookieSecure:       parseBool(getEnv("COOKIE_SECURE", "false")),

		PlanAmount:                 getEnv("PLAN_AMOUNT", "1000"),
		PlanCurrency:               getEnv("PLAN_CURRENCY", "NPR"),
		PollInterval:               parseDuration(getEnv("POLL_INTERVAL", "5s"), 5*time.Second),
		AlreadyActiveRedirectDelay: parseDuration(getEnv("ALREADY_ACTIVE_REDIRECT_DELAY", "2s"), 2*time.Second),

		SessionPurgeSchedule: getEnv("SESSION_PURGE_SCHEDULE", "@every 10m"),
		LogCleanupSchedule:   getEnv("LOG_CLEANUP_SCHEDULE", "@daily"),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		StaticDir:   getEnv("STATIC_DIR", "./web/dist"),
		AppEnv:      getEnv("APP_ENV", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
	}
}

// Validate reports the first required value that is missing or malformed.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBPassword == "" {
			return errors.New("DB_PASSWORD environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return errors.New("STORE_DRIVER must be one of postgres, memory")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable is required")
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL environment variable is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
