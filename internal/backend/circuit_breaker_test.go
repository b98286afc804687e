// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package backend

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubBackend returns err from every call and counts invocations.
type stubBackend struct {
	err   error
	calls int
}

func (s *stubBackend) Insert(context.Context, string, map[string]interface{}) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "id-1", nil
}

func (s *stubBackend) Update(context.Context, string, string, map[string]interface{}) error {
	s.calls++
	return s.err
}

func (s *stubBackend) Query(context.Context, string, map[string]string) (map[string]interface{}, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	return map[string]interface{}{"id": "id-1"}, true, nil
}

func (s *stubBackend) UploadBlob(context.Context, string, string, []byte, string) (string, error) {
	s.calls++
	return "https://example.test/blob", s.err
}

func (s *stubBackend) Ping(context.Context) error {
	s.calls++
	return s.err
}

func testBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:        name,
		MinRequests: 3,
		FailureRate: 0.5,
		Timeout:     time.Hour,
	}
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	stub := &stubBackend{}
	cb := NewCircuitBreaker(stub, testBreakerSettings("test-pass"))
	ctx := context.Background()

	id, err := cb.Insert(ctx, "projects", map[string]interface{}{"name": "x"})
	if err != nil || id != "id-1" {
		t.Fatalf("Insert = %q, %v", id, err)
	}
	row, found, err := cb.Query(ctx, "projects", map[string]string{"name": "x"})
	if err != nil || !found || row["id"] != "id-1" {
		t.Fatalf("Query = %v, %v, %v", row, found, err)
	}
	if u, err := cb.UploadBlob(ctx, "b", "p", []byte("x"), "image/jpeg"); err != nil || u == "" {
		t.Fatalf("UploadBlob = %q, %v", u, err)
	}
	if cb.State() != "closed" {
		t.Errorf("State = %s", cb.State())
	}
}

func TestCircuitBreakerOpensOnTransientFailures(t *testing.T) {
	stub := &stubBackend{err: &Error{Op: "insert", Err: ErrUnavailable}}
	cb := NewCircuitBreaker(stub, testBreakerSettings("test-open"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = cb.Insert(ctx, "projects", map[string]interface{}{"name": "x"})
	}
	if cb.State() != "open" {
		t.Fatalf("State = %s after 3 failures, want open", cb.State())
	}

	calls := stub.calls
	_, err := cb.Insert(ctx, "projects", map[string]interface{}{"name": "x"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("rejected call err = %v, want ErrUnavailable", err)
	}
	if stub.calls != calls {
		t.Error("open circuit should not reach the backend")
	}

	// Ping is never gated.
	_ = cb.Ping(ctx)
	if stub.calls != calls+1 {
		t.Error("Ping should bypass the breaker")
	}
}

func TestCircuitBreakerIgnoresConstraintErrors(t *testing.T) {
	stub := &stubBackend{err: &Error{Op: "insert", Code: "23503", Err: ErrConstraint}}
	cb := NewCircuitBreaker(stub, testBreakerSettings("test-constraint"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cb.Insert(ctx, "chambers", map[string]interface{}{"project_id": "tmp-X"})
		if !errors.Is(err, ErrConstraint) {
			t.Fatalf("Insert err = %v, want ErrConstraint", err)
		}
	}
	if cb.State() != "closed" {
		t.Errorf("State = %s, constraint errors must not trip the breaker", cb.State())
	}
	if stub.calls != 5 {
		t.Errorf("calls = %d, want 5", stub.calls)
	}
}
