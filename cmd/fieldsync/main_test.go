// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// setupEnv points configuration at a fresh data dir and a SQLite backend.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("STORAGE_SYNC_WRITES", "false")
	t.Setenv("BACKEND_KIND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "backend", "fieldsync.db"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, stdin, args...)
	if err != nil {
		t.Fatalf("fieldsync %s: %v", strings.Join(args, " "), err)
	}
	return out
}

const projectJSON = `{"temp_id":"tmp-A","project_number":"P-100","name":"Harbour Road"}`

func TestEnqueueDepthAndSync(t *testing.T) {
	setupEnv(t)

	id := strings.TrimSpace(mustRun(t, projectJSON, "enqueue", "create-project", "-"))
	if id == "" {
		t.Fatal("enqueue printed no id")
	}

	if got := strings.TrimSpace(mustRun(t, "", "queue", "depth")); got != "1" {
		t.Fatalf("depth = %q, want 1", got)
	}

	listed := mustRun(t, "", "--format", "json", "queue", "list")
	var entries []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(listed), &entries); err != nil {
		t.Fatalf("decode list %q: %v", listed, err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].Type != "create-project" {
		t.Fatalf("list = %+v", entries)
	}

	var res struct {
		Success int `json:"success"`
		Failed  int `json:"failed"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, "", "--format", "json", "sync")), &res); err != nil {
		t.Fatalf("decode sync result: %v", err)
	}
	if res.Success != 1 || res.Failed != 0 {
		t.Errorf("sync = %+v, want success 1", res)
	}

	if got := strings.TrimSpace(mustRun(t, "", "queue", "depth")); got != "0" {
		t.Errorf("depth after sync = %q, want 0", got)
	}
}

func TestSyncLeavesUnresolvableChamberQueued(t *testing.T) {
	setupEnv(t)

	chamber := `{"project_id":"tmp-X","identifier":"MH-1"}`
	mustRun(t, chamber, "enqueue", "create-chamber", "-")

	out := mustRun(t, "", "sync")
	if !strings.Contains(out, "success: 0 failed: 1") {
		t.Errorf("sync output = %q", out)
	}
	if got := strings.TrimSpace(mustRun(t, "", "queue", "depth")); got != "1" {
		t.Errorf("depth = %q, failed entry should stay queued", got)
	}
}

func TestEnqueueRejects(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{"unknown type", []string{"enqueue", "drop-table", "-"}, `{}`},
		{"bad json", []string{"enqueue", "create-project", "-"}, `{`},
		{"missing name", []string{"enqueue", "create-project", "-"}, `{"project_number":"P-1"}`},
		{"missing file", []string{"enqueue", "create-project", "/does/not/exist.json"}, ""},
		{"bad format", []string{"--format", "yaml", "queue", "depth"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.stdin, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if got := strings.TrimSpace(mustRun(t, "", "queue", "depth")); got != "0" {
		t.Errorf("depth = %q after rejected enqueues", got)
	}
}

func TestRemoveAndClear(t *testing.T) {
	setupEnv(t)

	first := strings.TrimSpace(mustRun(t, projectJSON, "enqueue", "create-project", "-"))
	mustRun(t, `{"id":"p-1","patch":{"name":"Renamed"}}`, "enqueue", "update-project", "-")

	mustRun(t, "", "queue", "remove", first)
	mustRun(t, "", "queue", "remove", first)
	if got := strings.TrimSpace(mustRun(t, "", "queue", "depth")); got != "1" {
		t.Fatalf("depth after remove = %q", got)
	}

	if _, err := run(t, "", "queue", "clear"); err == nil {
		t.Error("clear without --yes should fail")
	}
	mustRun(t, "", "queue", "clear", "--yes")
	if got := strings.TrimSpace(mustRun(t, "", "queue", "depth")); got != "0" {
		t.Errorf("depth after clear = %q", got)
	}
}

func TestStage(t *testing.T) {
	dir := setupEnv(t)
	photo := filepath.Join(dir, "internal.jpg")
	if err := os.WriteFile(photo, []byte("\xff\xd8\xff\xe0 fake jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}

	var staged struct {
		Key      string `json:"key"`
		MimeType string `json:"mime_type"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, "", "--format", "json", "stage", photo)), &staged); err != nil {
		t.Fatalf("decode stage output: %v", err)
	}
	if staged.Key == "" || staged.MimeType != "image/jpeg" || staged.Filename != "internal.jpg" {
		t.Errorf("staged = %+v", staged)
	}
}

func TestStorageDisabled(t *testing.T) {
	setupEnv(t)
	t.Setenv("STORAGE_ENABLED", "false")

	out := mustRun(t, projectJSON, "enqueue", "create-project", "-")
	if !strings.Contains(out, "not queued") {
		t.Errorf("enqueue output = %q", out)
	}
	if _, err := run(t, "", "stage", "main.go"); err == nil {
		t.Error("stage should fail without local storage")
	}
	if _, err := run(t, "", "sync"); err == nil || !strings.Contains(err.Error(), "local storage unavailable") {
		t.Errorf("sync without local storage = %v, want an error", err)
	}
}
