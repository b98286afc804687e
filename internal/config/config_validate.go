// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateReplay(); err != nil {
		return err
	}
	if err := c.validateSyncStatus(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required when STORAGE_ENABLED=true")
	}
	if c.Storage.BlobTTL < 0 {
		return fmt.Errorf("BLOB_TTL must not be negative, got %s", c.Storage.BlobTTL)
	}
	if c.Storage.BlobMaxBytes < 0 {
		return fmt.Errorf("BLOB_MAX_BYTES must not be negative, got %d", c.Storage.BlobMaxBytes)
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Kind {
	case BackendREST:
		if err := c.validateBackendURL(); err != nil {
			return err
		}
		if c.Backend.APIKey == "" {
			return fmt.Errorf("BACKEND_API_KEY is required when BACKEND_KIND=rest")
		}
		if containsPlaceholder(c.Backend.APIKey) {
			return fmt.Errorf("BACKEND_API_KEY appears to be a placeholder value")
		}
	case BackendSQLite:
		if c.Backend.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when BACKEND_KIND=sqlite")
		}
	default:
		return fmt.Errorf("BACKEND_KIND must be %q or %q, got %q", BackendREST, BackendSQLite, c.Backend.Kind)
	}

	if c.Backend.Bucket == "" {
		return fmt.Errorf("PHOTO_BUCKET is required")
	}
	if strings.ContainsAny(c.Backend.Bucket, "/\\") {
		return fmt.Errorf("PHOTO_BUCKET must not contain path separators, got %q", c.Backend.Bucket)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("BACKEND_RATE_LIMIT must not be negative, got %g", c.Backend.RateLimit)
	}
	return c.validateBreaker()
}

func (c *Config) validateBackendURL() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("BACKEND_URL is required when BACKEND_KIND=rest")
	}
	if err := validateHTTPURL(c.Backend.URL); err != nil {
		return fmt.Errorf("BACKEND_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateBreaker() error {
	b := c.Backend.Breaker
	if !b.Enabled {
		return nil
	}
	if b.FailureRate <= 0 || b.FailureRate > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATE must be in (0, 1], got %g", b.FailureRate)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be positive, got %s", b.Timeout)
	}
	return nil
}

func (c *Config) validateReplay() error {
	if c.Replay.CallTimeout < 0 {
		return fmt.Errorf("REPLAY_CALL_TIMEOUT must not be negative, got %s", c.Replay.CallTimeout)
	}
	if ext := c.Replay.DefaultPhotoExt; ext != "" && !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("REPLAY_DEFAULT_PHOTO_EXT must start with '.', got %q", ext)
	}
	if c.Replay.ResolvedIDs < 0 {
		return fmt.Errorf("REPLAY_RESOLVED_IDS must not be negative, got %d", c.Replay.ResolvedIDs)
	}
	return nil
}

func (c *Config) validateSyncStatus() error {
	if c.SyncStatus.PollInterval <= 0 {
		return fmt.Errorf("SYNC_POLL_INTERVAL must be positive, got %s", c.SyncStatus.PollInterval)
	}
	if c.SyncStatus.ProbeTimeout <= 0 {
		return fmt.Errorf("SYNC_PROBE_TIMEOUT must be positive, got %s", c.SyncStatus.ProbeTimeout)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.Server.RateLimitWindow)
		}
	}
	return nil
}

// ShouldWarnAboutCORS reports a wildcard origin combined with auth, which
// lets any page on the device drive the API with a stolen token.
func (c *Config) ShouldWarnAboutCORS() bool {
	if !c.Auth.Enabled {
		return false
	}
	for _, o := range c.Server.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (c *Config) validateAuth() error {
	if !c.Auth.Enabled {
		return nil
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_ENABLED=true")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.Auth.JWTSecret))
	}
	if containsPlaceholder(c.Auth.JWTSecret) {
		return fmt.Errorf("JWT_SECRET appears to be a placeholder value")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

var placeholderPatterns = []string{
	"changeme", "change_me", "replace_me", "your-", "your_", "<", "xxx",
}

func containsPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, p := range placeholderPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
