// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Backend.URL = "https://field.example.org"
	cfg.Backend.APIKey = "anon-key-0123456789"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"rest without url", func(c *Config) { c.Backend.URL = "" }, "BACKEND_URL is required"},
		{"rest bad scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "BACKEND_URL is invalid"},
		{"rest without key", func(c *Config) { c.Backend.APIKey = "" }, "BACKEND_API_KEY is required"},
		{"placeholder key", func(c *Config) { c.Backend.APIKey = "your-api-key" }, "placeholder"},
		{"sqlite without path", func(c *Config) {
			c.Backend.Kind = BackendSQLite
			c.Backend.SQLitePath = ""
		}, "SQLITE_PATH"},
		{"sqlite ignores url", func(c *Config) {
			c.Backend.Kind = BackendSQLite
			c.Backend.URL = ""
			c.Backend.APIKey = ""
		}, ""},
		{"bucket with slash", func(c *Config) { c.Backend.Bucket = "a/b" }, "PHOTO_BUCKET"},
		{"breaker rate", func(c *Config) { c.Backend.Breaker.FailureRate = 1.5 }, "BREAKER_FAILURE_RATE"},
		{"breaker disabled skips checks", func(c *Config) {
			c.Backend.Breaker.Enabled = false
			c.Backend.Breaker.FailureRate = 0
		}, ""},
		{"storage without dir", func(c *Config) { c.Storage.DataDir = "" }, "DATA_DIR"},
		{"storage disabled without dir", func(c *Config) {
			c.Storage.Enabled = false
			c.Storage.DataDir = ""
		}, ""},
		{"negative ttl", func(c *Config) { c.Storage.BlobTTL = -time.Second }, "BLOB_TTL"},
		{"photo ext", func(c *Config) { c.Replay.DefaultPhotoExt = "jpg" }, "REPLAY_DEFAULT_PHOTO_EXT"},
		{"poll interval", func(c *Config) { c.SyncStatus.PollInterval = 0 }, "SYNC_POLL_INTERVAL"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"rate limit", func(c *Config) { c.Server.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled", func(c *Config) {
			c.Server.RateLimitDisabled = true
			c.Server.RateLimitReqs = 0
		}, ""},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, "JWT_SECRET is required"},
		{"auth short secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = "short"
		}, "at least 32"},
		{"auth placeholder", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = "changeme-changeme-changeme-changeme"
		}, "placeholder"},
		{"auth ok", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = strings.Repeat("k", 32)
		}, ""},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	cfg := validConfig()
	cfg.Server.CORSOrigins = []string{"*"}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard without auth should not warn")
	}
	cfg.Auth.Enabled = true
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard with auth should warn")
	}
}
