// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestREST(t *testing.T, handler http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewREST(RESTOptions{BaseURL: srv.URL + "/", APIKey: "anon-key", Timeout: 5 * time.Second})
}

func TestRESTInsert(t *testing.T) {
	var gotBody map[string]interface{}
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/projects" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"9b2f","name":"Depot"}]`)
	})
	c.SetToken("user-token")

	id, err := c.Insert(context.Background(), "projects", map[string]interface{}{"name": "Depot"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != "9b2f" {
		t.Errorf("id = %q, want 9b2f", id)
	}
	if gotBody["name"] != "Depot" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestRESTInsertNumericID(t *testing.T) {
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":42}]`)
	})
	id, err := c.Insert(context.Background(), "projects", map[string]interface{}{"name": "x"})
	if err != nil || id != "42" {
		t.Errorf("Insert = %q, %v", id, err)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		wantMsg string
	}{
		{"foreign key", 409, `{"code":"23503","message":"insert or update on table \"chambers\" violates foreign key constraint"}`, ErrConstraint, "foreign key"},
		{"bad uuid", 400, `{"code":"22P02","message":"invalid input syntax for type uuid: \"tmp-X\""}`, ErrConstraint, "tmp-X"},
		{"unauthorized", 401, `{"message":"JWT expired"}`, ErrUnauthorized, "JWT expired"},
		{"server error", 503, `upstream down`, ErrUnavailable, "upstream down"},
		{"rate limited", 429, ``, ErrUnavailable, "Too Many Requests"},
		{"bad request", 400, `{"code":"PGRST204","message":"column missing"}`, ErrInvalidRequest, "column missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Insert(context.Background(), "chambers", map[string]interface{}{"project_id": "tmp-X"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var be *Error
			if !errors.As(err, &be) {
				t.Fatalf("err is %T, want *Error", err)
			}
			if be.Status != tt.status {
				t.Errorf("Status = %d, want %d", be.Status, tt.status)
			}
			if !strings.Contains(be.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to mention %q", be.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRESTUpdate(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		wantErr error
	}{
		{"row updated", `[{"id":"p1"}]`, nil},
		{"no such row", `[]`, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPatch {
					t.Errorf("method = %s", r.Method)
				}
				if got := r.URL.Query().Get("id"); got != "eq.p1" {
					t.Errorf("id filter = %q", got)
				}
				_, _ = io.WriteString(w, tt.resp)
			})
			err := c.Update(context.Background(), "projects", "p1", map[string]interface{}{"status": "complete"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Update = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRESTQuery(t *testing.T) {
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("project_number") != "eq.P-100" || q.Get("name") != "eq.Depot" || q.Get("limit") != "1" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Get("project_number") == "eq.P-100" {
			_, _ = io.WriteString(w, `[{"id":"real-1","project_number":"P-100"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	row, found, err := c.Query(context.Background(), "projects", map[string]string{"project_number": "P-100", "name": "Depot"})
	if err != nil || !found {
		t.Fatalf("Query = %v, %v", found, err)
	}
	if row["id"] != "real-1" {
		t.Errorf("row = %v", row)
	}
}

func TestRESTQueryNoMatch(t *testing.T) {
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	_, found, err := c.Query(context.Background(), "projects", map[string]string{"name": "none"})
	if err != nil || found {
		t.Errorf("Query = %v, %v; want not found", found, err)
	}
}

func TestRESTUploadBlob(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"Key":"chamber-photos/c1/internal.jpg"}`)
	})

	u, err := c.UploadBlob(context.Background(), "chamber-photos", "c1/internal.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("UploadBlob: %v", err)
	}
	if gotPath != "/storage/v1/object/chamber-photos/c1/internal.jpg" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "image/jpeg" || string(gotBody) != "jpeg" {
		t.Errorf("upload = %q %q", gotType, gotBody)
	}
	if !strings.HasSuffix(u, "/storage/v1/object/public/chamber-photos/c1/internal.jpg") {
		t.Errorf("public URL = %q", u)
	}
}

func TestRESTPing(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusUnauthorized, false},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := c.Ping(context.Background())
		if (err != nil) != tt.wantErr {
			t.Errorf("Ping with status %d = %v", tt.status, err)
		}
	}
}

func TestRESTUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewREST(RESTOptions{BaseURL: url, APIKey: "k", Timeout: time.Second})
	err := c.Ping(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Ping on closed server = %v, want ErrUnavailable", err)
	}
	if !IsTransient(err) {
		t.Error("connection refused should be transient")
	}
}

func TestRESTCanceledContext(t *testing.T) {
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Insert(ctx, "projects", map[string]interface{}{"name": "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Insert with canceled ctx = %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&Error{Err: ErrConstraint}, "constraint"},
		{&Error{Err: ErrUnavailable}, "unavailable"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"proj-1", "proj-1"},
		{float64(42), "42"},
		{float64(1234567), "1234567"},
		{float64(9007199254740991), "9007199254740991"},
		{json.Number("88000001"), "88000001"},
		{int64(1234567), "1234567"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := IDString(tt.in); got != tt.want {
			t.Errorf("IDString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
