// Package config reads process configuration from the environment once at
// startup. A missing API key is not fatal: the server starts and /chat
// reports the mis-configuration instead.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process configuration.
type Config struct {
	ListenAddr string

	AnthropicAPIKey string
	Model           string
	MaxTokens       int64

	TranslateTimeout time.Duration
	MaxAttempts      int
	RetryDelay       time.Duration

	HistoryWindow int
	SessionTTL    time.Duration
}

// Load reads the environment with defaults.
func Load() Config {
	return Config{
		ListenAddr:       envStr("TABLECHAT_ADDR", ":8080"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		Model:            envStr("TABLECHAT_MODEL", ""),
		MaxTokens:        int64(envInt("TABLECHAT_MAX_TOKENS", 1024)),
		TranslateTimeout: envDuration("TABLECHAT_TRANSLATE_TIMEOUT", 30*time.Second),
		MaxAttempts:      envInt("TABLECHAT_MAX_ATTEMPTS", 2),
		RetryDelay:       envDuration("TABLECHAT_RETRY_DELAY", 250*time.Millisecond),
		HistoryWindow:    envInt("TABLECHAT_HISTORY_WINDOW", 4),
		SessionTTL:       envDuration("TABLECHAT_SESSION_TTL", 30*time.Minute),
	}
}

// Configured reports whether the translator credential is present.
func (c Config) Configured() bool { return c.AnthropicAPIKey != "" }

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
