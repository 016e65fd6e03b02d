package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Mini app client
	APIBaseURL     string
	APITimeout     time.Duration
	ViewerPage     string
	UserID         int64
	Username       string
	NotifyDuration time.Duration
	ServiceName    string
	LogLevel       string
	MetricsAddr    string
	// Stub backend
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	RedisAddr        string
	DailyBonusAmount int
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load reads an optional .env file and parses environment variables,
// returning a Config populated with defaults when variables are absent.
// Variables already present in the environment win over the .env file.
func Load() Config {
	// a missing .env is the normal case outside development
	_ = godotenv.Load()

	cfg := Config{}

	cfg.APIBaseURL = getenv("API_BASE_URL", "http://localhost:8787")
	// zero means no client-side timeout; a hung request keeps the spinner up
	cfg.APITimeout = envDuration("API_TIMEOUT", 0)
	cfg.ViewerPage = getenv("VIEWER_PAGE", "ad_viewer.html")
	cfg.UserID = envInt64("TG_USER_ID", 0)
	cfg.Username = getenv("TG_USERNAME", "")
	cfg.NotifyDuration = envDuration("NOTIFY_DURATION", 3*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "adreward")
	cfg.LogLevel = getenv("LOG_LEVEL", "")
	// empty keeps client metrics off; the CLI is short-lived and nobody scrapes it by default
	cfg.MetricsAddr = getenv("METRICS_ADDR", "")

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.DailyBonusAmount = envInt("DAILY_BONUS_AMOUNT", 10)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
