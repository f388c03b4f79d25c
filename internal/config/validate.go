package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Quota sanity
	if c.Quota.DefaultMinutesLimit < 0 {
		errs = append(errs, "QUOTA_DEFAULT_MINUTES_LIMIT must not be negative")
	}
	if c.Quota.DefaultTTSDailyLimit < 0 {
		errs = append(errs, "QUOTA_DEFAULT_TTS_DAILY_LIMIT must not be negative")
	}
	if c.Quota.TTSMaxInputChars < 1 {
		errs = append(errs, "QUOTA_TTS_MAX_INPUT_CHARS must be positive")
	}

	// Provider keys: warn only — local development runs against stubs
	if c.LLM.APIKey == "" {
		slog.Warn("LLM_API_KEY is empty — chat completions will be rejected upstream")
	}
	if c.TTS.APIKey == "" {
		slog.Warn("TTS_API_KEY is empty — premium synthesis will be rejected upstream")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
