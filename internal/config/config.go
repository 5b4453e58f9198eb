// Package config loads sqlgate configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSocketPath      = "/tmp/sqlchecker.sock"
	defaultRequestTimeout  = 30 * time.Second
	defaultFetchTimeout    = 10 * time.Second
	defaultFetchAttempts   = 3
	defaultFetchRetryDelay = 100 * time.Millisecond
)

// Config holds service configuration values.
type Config struct {
	SocketPath string
	LogLevel   string
	DevMode    bool

	RequestTimeout  time.Duration
	FetchTimeout    time.Duration
	FetchAttempts   int
	FetchRetryDelay time.Duration

	PolicyFile string
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		SocketPath:      envOrDefault("CHAMICORE_SQLGATE_SOCKET_PATH", defaultSocketPath),
		LogLevel:        strings.ToLower(envOrDefault("CHAMICORE_SQLGATE_LOG_LEVEL", "info")),
		DevMode:         envBool("CHAMICORE_SQLGATE_DEV_MODE", false),
		RequestTimeout:  envPositiveDuration("CHAMICORE_SQLGATE_REQUEST_TIMEOUT", defaultRequestTimeout),
		FetchTimeout:    envPositiveDuration("CHAMICORE_SQLGATE_FETCH_TIMEOUT", defaultFetchTimeout),
		FetchAttempts:   envPositiveInt("CHAMICORE_SQLGATE_FETCH_RETRIES", defaultFetchAttempts),
		FetchRetryDelay: envPositiveDuration("CHAMICORE_SQLGATE_FETCH_RETRY_DELAY", defaultFetchRetryDelay),
		PolicyFile:      envOrDefault("CHAMICORE_SQLGATE_POLICY_FILE", ""),
	}

	if strings.TrimSpace(cfg.SocketPath) == "" {
		return Config{}, fmt.Errorf("CHAMICORE_SQLGATE_SOCKET_PATH is required")
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return b
}

func envPositiveInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}

func envPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
