// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tomtom215/fieldsync/internal/backend"
	"github.com/tomtom215/fieldsync/internal/blobstage"
	"github.com/tomtom215/fieldsync/internal/localstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/replay"
	"github.com/tomtom215/fieldsync/internal/syncstatus"
)

// Backend kinds.
const (
	BackendREST   = "rest"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: defaultConfig()
//  2. Config file: optional YAML (CONFIG_PATH, ./config.yaml, /etc/fieldsync/config.yaml)
//  3. Environment variables: see envMappings
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Storage    StorageConfig    `koanf:"storage"`
	Backend    BackendConfig    `koanf:"backend"`
	Replay     ReplayConfig     `koanf:"replay"`
	SyncStatus SyncStatusConfig `koanf:"syncstatus"`
	Server     ServerConfig     `koanf:"server"`
	Auth       AuthConfig       `koanf:"auth"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// StorageConfig controls the device-local store that backs the mutation log
// and blob staging.
//
// Environment Variables:
//   - STORAGE_ENABLED: persist locally (default: true)
//   - DATA_DIR: directory for the local store (default: ./data)
//   - STORAGE_SYNC_WRITES: fsync every commit (default: true)
//   - BLOB_TTL: expire unpromoted photos, 0 keeps them (default: 0)
//   - BLOB_MAX_BYTES: reject larger photos, 0 is unlimited (default: 25MB)
//   - STORAGE_GC_INTERVAL: value log GC cadence (default: 30m)
type StorageConfig struct {
	Enabled      bool          `koanf:"enabled"`
	DataDir      string        `koanf:"data_dir"`
	SyncWrites   bool          `koanf:"sync_writes"`
	BlobTTL      time.Duration `koanf:"blob_ttl"`
	BlobMaxBytes int64         `koanf:"blob_max_bytes"`
	GCInterval   time.Duration `koanf:"gc_interval"`
}

// LocalStore converts to the localstore settings.
func (s StorageConfig) LocalStore() localstore.Config {
	cfg := localstore.DefaultConfig()
	cfg.Enabled = s.Enabled
	cfg.Path = filepath.Join(s.DataDir, "local")
	cfg.SyncWrites = s.SyncWrites
	cfg.GCInterval = s.GCInterval
	return cfg
}

// Blobs converts to blob staging options.
func (s StorageConfig) Blobs() blobstage.Options {
	return blobstage.Options{TTL: s.BlobTTL, MaxBytes: s.BlobMaxBytes}
}

// BackendConfig selects and tunes the remote backend.
//
// Kind "rest" talks to the hosted PostgREST-style service; "sqlite" runs a
// local stand-in with the same foreign key behavior for development.
//
// Environment Variables:
//   - BACKEND_KIND: rest or sqlite (default: rest)
//   - BACKEND_URL: hosted service base URL (required for rest)
//   - BACKEND_API_KEY: project API key (required for rest)
//   - BACKEND_TOKEN: user access token; overrides the API key as bearer
//   - PHOTO_BUCKET: storage bucket for chamber photos (default: chamber-photos)
//   - BACKEND_TIMEOUT: HTTP round trip timeout (default: 30s)
//   - BACKEND_RATE_LIMIT / BACKEND_RATE_BURST: outbound requests per second
//   - BREAKER_* : circuit breaker tuning
//   - SQLITE_PATH / SQLITE_BLOB_DIR: sqlite backend files
type BackendConfig struct {
	Kind      string        `koanf:"kind"`
	URL       string        `koanf:"url"`
	APIKey    string        `koanf:"api_key"`
	Token     string        `koanf:"token"`
	Bucket    string        `koanf:"bucket"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	RateBurst int           `koanf:"rate_burst"`

	Breaker BreakerConfig `koanf:"breaker"`

	SQLitePath    string `koanf:"sqlite_path"`
	SQLiteBlobDir string `koanf:"sqlite_blob_dir"`
}

// BreakerConfig mirrors backend.BreakerSettings.
type BreakerConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxRequests uint32        `koanf:"max_requests"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
	MinRequests uint32        `koanf:"min_requests"`
	FailureRate float64       `koanf:"failure_rate"`
}

// REST converts to client options.
func (b BackendConfig) REST() backend.RESTOptions {
	return backend.RESTOptions{
		BaseURL:   b.URL,
		APIKey:    b.APIKey,
		Timeout:   b.Timeout,
		RateLimit: b.RateLimit,
		RateBurst: b.RateBurst,
	}
}

// SQLite converts to sqlite backend options.
func (b BackendConfig) SQLite() backend.SQLiteOptions {
	return backend.SQLiteOptions{Path: b.SQLitePath, BlobDir: b.SQLiteBlobDir}
}

// BreakerSettings converts to circuit breaker settings.
func (b BackendConfig) BreakerSettings() backend.BreakerSettings {
	return backend.BreakerSettings{
		Name:        "backend-" + b.Kind,
		MaxRequests: b.Breaker.MaxRequests,
		Interval:    b.Breaker.Interval,
		Timeout:     b.Breaker.Timeout,
		MinRequests: b.Breaker.MinRequests,
		FailureRate: b.Breaker.FailureRate,
	}
}

// ReplayConfig tunes drain passes.
//
// Environment Variables:
//   - REPLAY_CALL_TIMEOUT: per backend call bound (default: 30s)
//   - REPLAY_DEFAULT_PHOTO_EXT: extension for photos without one (default: .jpg)
//   - REPLAY_RESOLVED_IDS: temp id mappings kept between passes (default: 1024)
//   - REPLAY_RESOLVED_ID_TTL: lifetime of a kept mapping (default: 24h)
type ReplayConfig struct {
	CallTimeout     time.Duration `koanf:"call_timeout"`
	DefaultPhotoExt string        `koanf:"default_photo_ext"`
	ResolvedIDs     int           `koanf:"resolved_ids"`
	ResolvedIDTTL   time.Duration `koanf:"resolved_id_ttl"`
}

// Reconciler converts to reconciler settings. The photo bucket comes from
// the backend section.
func (c *Config) Reconciler() replay.Config {
	return replay.Config{
		CallTimeout:     c.Replay.CallTimeout,
		Bucket:          c.Backend.Bucket,
		DefaultPhotoExt: c.Replay.DefaultPhotoExt,
		ResolvedIDs:     c.Replay.ResolvedIDs,
		ResolvedIDTTL:   c.Replay.ResolvedIDTTL,
	}
}

// SyncStatusConfig tunes the status reporter.
//
// Environment Variables:
//   - SYNC_POLL_INTERVAL: depth and reachability poll cadence (default: 30s)
//   - AUTO_SYNC: drain automatically when online (default: true)
//   - SYNC_PROBE_TIMEOUT: reachability probe bound (default: 5s)
type SyncStatusConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	AutoSync     bool          `koanf:"auto_sync"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// Reporter converts to reporter settings.
func (s SyncStatusConfig) Reporter() syncstatus.Config {
	return syncstatus.Config{
		PollInterval: s.PollInterval,
		ProbeTimeout: s.ProbeTimeout,
		AutoSync:     s.AutoSync,
	}
}

// ServerConfig holds the local HTTP API settings. The API is meant for the
// field UI shell on the same device, hence the loopback default.
//
// Environment Variables:
//   - HTTP_HOST (default: 127.0.0.1), HTTP_PORT (default: 8787)
//   - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT
//   - CORS_ORIGINS: comma-separated allowed origins
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW / DISABLE_RATE_LIMIT
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// MaxUploadBytes bounds multipart photo uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig controls bearer token checks on the local API.
//
// Environment Variables:
//   - AUTH_ENABLED: require a bearer JWT (default: false)
//   - JWT_SECRET: HMAC secret shared with the auth service (min 32 chars)
//   - JWT_ISSUER: expected iss claim, empty skips the check
//   - AUTHZ_POLICY_PATH: Casbin policy CSV replacing the built-in role table
type AuthConfig struct {
	Enabled    bool   `koanf:"enabled"`
	JWTSecret  string `koanf:"jwt_secret"`
	JWTIssuer  string `koanf:"jwt_issuer"`
	PolicyPath string `koanf:"policy_path"`
}

// LoggingConfig mirrors logging.Config.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Logger converts to logging settings.
func (l LoggingConfig) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
