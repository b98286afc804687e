// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	project_number TEXT NOT NULL,
	name TEXT NOT NULL,
	client TEXT,
	site_address TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chambers (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	identifier TEXT NOT NULL,
	chamber_type TEXT,
	depth_m REAL,
	cover_condition TEXT,
	notes TEXT,
	latitude REAL,
	longitude REAL,
	internal_photo_url TEXT,
	external_photo_url TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_number ON projects(project_number);
CREATE INDEX IF NOT EXISTS idx_chambers_project ON chambers(project_id);
`

// sqliteColumns whitelists writable and filterable columns per table. Column
// names are interpolated into SQL, values never are.
var sqliteColumns = map[string]map[string]bool{
	models.TableProjects: {
		"id": true, "project_number": true, "name": true, "client": true,
		"site_address": true, "status": true,
	},
	models.TableChambers: {
		"id": true, "project_id": true, "identifier": true, "chamber_type": true,
		"depth_m": true, "cover_condition": true, "notes": true, "latitude": true,
		"longitude": true, "internal_photo_url": true, "external_photo_url": true,
	},
}

// SQLiteOptions configures the development backend.
type SQLiteOptions struct {
	// Path is the database file.
	Path string

	// BlobDir receives uploaded blobs as <BlobDir>/<bucket>/<path>.
	BlobDir string

	// PublicURL prefixes returned blob URLs. Empty yields file:// URLs.
	PublicURL string
}

// SQLite is a local stand-in for the hosted service with the same foreign
// key behavior.
type SQLite struct {
	conn      *sql.DB
	blobDir   string
	publicURL string
	now       func() time.Time
}

// OpenSQLite opens (creating if needed) the database and applies the schema.
func OpenSQLite(opts SQLiteOptions) (*SQLite, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite backend: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	blobDir := opts.BlobDir
	if blobDir == "" {
		blobDir = filepath.Join(filepath.Dir(opts.Path), "blobs")
	}

	connStr := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", opts.Path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// foreign_keys is per connection; one connection keeps it in force.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{
		conn:      conn,
		blobDir:   blobDir,
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
		now:       time.Now,
	}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint WAL")
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *SQLite) observe(op string, start time.Time, err error) {
	metrics.RecordBackendCall("sqlite", op, time.Since(start), Classify(err))
}

func checkColumns(op, table string, cols []string) error {
	allowed, ok := sqliteColumns[table]
	if !ok {
		return &Error{Op: op, Table: table, Message: "unknown table", Err: ErrInvalidRequest}
	}
	for _, c := range cols {
		if !allowed[c] {
			return &Error{Op: op, Table: table, Message: "unknown column " + c, Err: ErrInvalidRequest}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sqliteError(op, table string, err error) error {
	if errors.Is(err, sqlite3.CONSTRAINT) || strings.Contains(err.Error(), "constraint failed") {
		return &Error{Op: op, Table: table, Message: err.Error(), Err: ErrConstraint}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}
	return &Error{Op: op, Table: table, Message: err.Error(), Err: ErrUnavailable}
}

func (s *SQLite) Insert(ctx context.Context, table string, row map[string]interface{}) (id string, err error) {
	defer func(start time.Time) { s.observe("insert", start, err) }(time.Now())

	if len(row) == 0 {
		return "", &Error{Op: "insert", Table: table, Message: "row is empty", Err: ErrInvalidRequest}
	}
	cols := sortedKeys(row)
	if err := checkColumns("insert", table, cols); err != nil {
		return "", err
	}

	id, _ = row["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	names := []string{"id", "created_at", "updated_at"}
	args := []interface{}{id, now, now}
	for _, c := range cols {
		if c == "id" {
			continue
		}
		names = append(names, c)
		args = append(args, row[c])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ","), placeholders)

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return "", sqliteError("insert", table, err)
	}
	return id, nil
}

func (s *SQLite) Update(ctx context.Context, table, id string, patch map[string]interface{}) (err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())

	if id == "" {
		return &Error{Op: "update", Table: table, Message: "id is required", Err: ErrInvalidRequest}
	}
	cols := sortedKeys(patch)
	if err := checkColumns("update", table, cols); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{s.now().UTC().Format(time.RFC3339Nano)}
	for _, c := range cols {
		if c == "id" {
			continue
		}
		sets = append(sets, c+" = ?")
		args = append(args, patch[c])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))

	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return sqliteError("update", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqliteError("update", table, err)
	}
	if n == 0 {
		return &Error{Op: "update", Table: table, Message: "no row with id " + id, Err: ErrNotFound}
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, table string, filters map[string]string) (row map[string]interface{}, found bool, err error) {
	defer func(start time.Time) { s.observe("query", start, err) }(time.Now())

	if len(filters) == 0 {
		return nil, false, &Error{Op: "query", Table: table, Message: "filters are required", Err: ErrInvalidRequest}
	}
	cols := sortedKeys(filters)
	if err := checkColumns("query", table, cols); err != nil {
		return nil, false, err
	}

	where := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		where[i] = c + " = ?"
		args[i] = filters[c]
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY created_at LIMIT 1", table, strings.Join(where, " AND "))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, sqliteError("query", table, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, sqliteError("query", table, err)
		}
		return nil, false, nil
	}

	names, err := rows.Columns()
	if err != nil {
		return nil, false, sqliteError("query", table, err)
	}
	values := make([]interface{}, len(names))
	ptrs := make([]interface{}, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, false, sqliteError("query", table, err)
	}

	row = make(map[string]interface{}, len(names))
	for i, name := range names {
		if b, ok := values[i].([]byte); ok {
			row[name] = string(b)
			continue
		}
		row[name] = values[i]
	}
	return row, true, nil
}

func (s *SQLite) UploadBlob(ctx context.Context, bucket, path string, data []byte, contentType string) (publicURL string, err error) {
	defer func(start time.Time) { s.observe("upload", start, err) }(time.Now())

	rel := filepath.Join(bucket, filepath.FromSlash(path))
	if bucket == "" || path == "" || !filepath.IsLocal(rel) {
		return "", &Error{Op: "upload", Table: bucket, Message: "invalid object path " + path, Err: ErrInvalidRequest}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.blobDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &Error{Op: "upload", Table: bucket, Message: err.Error(), Err: ErrUnavailable}
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", &Error{Op: "upload", Table: bucket, Message: err.Error(), Err: ErrUnavailable}
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + bucket + "/" + strings.TrimPrefix(path, "/"), nil
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if s.conn == nil {
		return &Error{Op: "ping", Message: "database closed", Err: ErrUnavailable}
	}
	if err := s.conn.PingContext(ctx); err != nil {
		return sqliteError("ping", "", err)
	}
	return nil
}

var _ Backend = (*SQLite)(nil)
