// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// restEnv sets the minimum environment for the default rest backend.
func restEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", "https://field.example.org")
	t.Setenv("BACKEND_API_KEY", "anon-key-0123456789")
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if !cfg.Storage.Enabled || cfg.Storage.DataDir != "./data" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Backend.Kind != BackendREST {
		t.Errorf("Backend.Kind = %q, want rest", cfg.Backend.Kind)
	}
	if cfg.Backend.Bucket != "chamber-photos" {
		t.Errorf("Backend.Bucket = %q", cfg.Backend.Bucket)
	}
	if cfg.Replay.CallTimeout != 30*time.Second || cfg.Replay.DefaultPhotoExt != ".jpg" {
		t.Errorf("Replay = %+v", cfg.Replay)
	}
	if !cfg.SyncStatus.AutoSync || cfg.SyncStatus.PollInterval != 30*time.Second {
		t.Errorf("SyncStatus = %+v", cfg.SyncStatus)
	}
	if cfg.Server.Addr() != "127.0.0.1:8787" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Auth.Enabled {
		t.Error("Auth.Enabled should be false by default")
	}
}

func TestLoadDefaultsWithEnv(t *testing.T) {
	restEnv(t)

	cfg, err := loadFrom("")
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Backend.URL != "https://field.example.org" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	restEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("AUTO_SYNC", "false")
	t.Setenv("SYNC_POLL_INTERVAL", "45s")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local ,")
	t.Setenv("BREAKER_FAILURE_RATE", "0.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := loadFrom("")
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.SyncStatus.AutoSync {
		t.Error("AutoSync = true, want false")
	}
	if cfg.SyncStatus.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %s", cfg.SyncStatus.PollInterval)
	}
	want := []string{"http://a.local", "http://b.local"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	if cfg.Backend.Breaker.FailureRate != 0.5 {
		t.Errorf("FailureRate = %g", cfg.Backend.Breaker.FailureRate)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
backend:
  kind: sqlite
  sqlite_path: /tmp/fieldsync-dev.db
replay:
  call_timeout: 10s
server:
  cors_origins:
    - http://ui.local
`)
	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Backend.Kind != BackendSQLite || cfg.Backend.SQLitePath != "/tmp/fieldsync-dev.db" {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Replay.CallTimeout != 10*time.Second {
		t.Errorf("CallTimeout = %s", cfg.Replay.CallTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://ui.local" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	// Untouched sections keep their defaults.
	if cfg.SyncStatus.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %s", cfg.SyncStatus.ProbeTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
backend:
  kind: sqlite
  sqlite_path: /tmp/a.db
`)
	t.Setenv("SQLITE_PATH", "/tmp/b.db")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Backend.SQLitePath != "/tmp/b.db" {
		t.Errorf("SQLitePath = %q, want env value", cfg.Backend.SQLitePath)
	}
}

func TestFindConfigFileFromEnv(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: warn\n")
	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"BACKEND_URL", "backend.url"},
		{"HTTP_PORT", "server.port"},
		{"BREAKER_TIMEOUT", "backend.breaker.timeout"},
		{"auto_sync", "syncstatus.auto_sync"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("BACKEND_KIND", "ftp")
	_, err := loadFrom("")
	if err == nil || !strings.Contains(err.Error(), "BACKEND_KIND") {
		t.Errorf("loadFrom error = %v, want BACKEND_KIND failure", err)
	}
}

func TestConversions(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.DataDir = "/var/lib/fieldsync"
	cfg.Storage.BlobTTL = 72 * time.Hour

	ls := cfg.Storage.LocalStore()
	if ls.Path != filepath.Join("/var/lib/fieldsync", "local") || !ls.Enabled {
		t.Errorf("LocalStore() = %+v", ls)
	}
	if b := cfg.Storage.Blobs(); b.TTL != 72*time.Hour || b.MaxBytes != 25<<20 {
		t.Errorf("Blobs() = %+v", b)
	}

	rc := cfg.Reconciler()
	if rc.Bucket != "chamber-photos" || rc.CallTimeout != 30*time.Second {
		t.Errorf("Reconciler() = %+v", rc)
	}

	bs := cfg.Backend.BreakerSettings()
	if bs.Name != "backend-rest" || bs.FailureRate != 0.6 || bs.MinRequests != 10 {
		t.Errorf("BreakerSettings() = %+v", bs)
	}

	if lc := cfg.Logging.Logger(); lc.Level != "info" || lc.Format != "json" || !lc.Timestamp {
		t.Errorf("Logger() = %+v", lc)
	}
}
