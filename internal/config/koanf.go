// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fieldsync/config.yaml",
	"/etc/fieldsync/config.yml",
}

// ConfigPathEnvVar names the environment variable holding an explicit
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Enabled:      true,
			DataDir:      "./data",
			SyncWrites:   true,
			BlobTTL:      0,
			BlobMaxBytes: 25 << 20,
			GCInterval:   30 * time.Minute,
		},
		Backend: BackendConfig{
			Kind:      BackendREST,
			Bucket:    "chamber-photos",
			Timeout:   30 * time.Second,
			RateLimit: 10,
			RateBurst: 20,
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxRequests: 3,
				Interval:    time.Minute,
				Timeout:     2 * time.Minute,
				MinRequests: 10,
				FailureRate: 0.6,
			},
			SQLitePath:    "./data/dev-backend.db",
			SQLiteBlobDir: "./data/dev-blobs",
		},
		Replay: ReplayConfig{
			CallTimeout:     30 * time.Second,
			DefaultPhotoExt: ".jpg",
			ResolvedIDs:     1024,
			ResolvedIDTTL:   24 * time.Hour,
		},
		SyncStatus: SyncStatusConfig{
			PollInterval: 30 * time.Second,
			AutoSync:     true,
			ProbeTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			MaxUploadBytes:  25 << 20,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// BACKEND_URL -> backend.url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated strings for known slice fields.
// YAML lists pass through unchanged.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		trimmed := []string{}
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Storage
	"storage_enabled":     "storage.enabled",
	"data_dir":            "storage.data_dir",
	"storage_sync_writes": "storage.sync_writes",
	"blob_ttl":            "storage.blob_ttl",
	"blob_max_bytes":      "storage.blob_max_bytes",
	"storage_gc_interval": "storage.gc_interval",

	// Backend
	"backend_kind":       "backend.kind",
	"backend_url":        "backend.url",
	"backend_api_key":    "backend.api_key",
	"backend_token":      "backend.token",
	"photo_bucket":       "backend.bucket",
	"backend_timeout":    "backend.timeout",
	"backend_rate_limit": "backend.rate_limit",
	"backend_rate_burst": "backend.rate_burst",
	"sqlite_path":        "backend.sqlite_path",
	"sqlite_blob_dir":    "backend.sqlite_blob_dir",

	// Circuit breaker
	"breaker_enabled":      "backend.breaker.enabled",
	"breaker_max_requests": "backend.breaker.max_requests",
	"breaker_interval":     "backend.breaker.interval",
	"breaker_timeout":      "backend.breaker.timeout",
	"breaker_min_requests": "backend.breaker.min_requests",
	"breaker_failure_rate": "backend.breaker.failure_rate",

	// Replay
	"replay_call_timeout":      "replay.call_timeout",
	"replay_default_photo_ext": "replay.default_photo_ext",
	"replay_resolved_ids":      "replay.resolved_ids",
	"replay_resolved_id_ttl":   "replay.resolved_id_ttl",

	// Sync status
	"sync_poll_interval": "syncstatus.poll_interval",
	"auto_sync":          "syncstatus.auto_sync",
	"sync_probe_timeout": "syncstatus.probe_timeout",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"http_max_upload_bytes": "server.max_upload_bytes",

	// Auth
	"auth_enabled":      "auth.enabled",
	"jwt_secret":        "auth.jwt_secret",
	"jwt_issuer":        "auth.jwt_issuer",
	"authz_policy_path": "auth.policy_path",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
