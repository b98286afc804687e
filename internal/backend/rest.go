// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
rest.go - PostgREST-style records and storage client

Records:

	POST  /rest/v1/<table>                 insert, Prefer: return=representation
	PATCH /rest/v1/<table>?id=eq.<id>      update
	GET   /rest/v1/<table>?<col>=eq.<v>&limit=1

Storage:

	POST /storage/v1/object/<bucket>/<path>
	public URL: /storage/v1/object/public/<bucket>/<path>

Every request carries the project API key in the apikey header and a bearer
token (the signed-in user's session token when one is set, otherwise the API
key).
*/

package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
)

// RESTOptions configures a REST client.
type RESTOptions struct {
	BaseURL string
	APIKey  string

	// Timeout bounds every HTTP round trip.
	Timeout time.Duration

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// REST is the hosted backend client.
type REST struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	token string
}

// NewREST creates a client. The base URL's trailing slash is trimmed.
func NewREST(opts RESTOptions) *REST {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &REST{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: client,
		limiter:    limiter,
	}
}

// SetToken sets the bearer token used for subsequent calls. An empty token
// falls back to the API key.
func (c *REST) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *REST) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token
	}
	return c.apiKey
}

// PublicURL returns the public download URL for an uploaded object.
func (c *REST) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (c *REST) doRequest(ctx context.Context, method, endpoint string, body io.Reader, header http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.httpClient.Do(req)
}

// errorBody covers both the records API ({code, message, details, hint}) and
// the storage API ({statusCode, error, message}).
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Error   string `json:"error"`
}

// constraintCodes are Postgres SQLSTATEs that reject the row itself.
var constraintCodes = map[string]bool{
	"23502": true, // not_null_violation
	"23503": true, // foreign_key_violation
	"23505": true, // unique_violation
	"23514": true, // check_violation
	"22P02": true, // invalid_text_representation, e.g. a temp id in a uuid column
}

func responseError(op, table string, resp *http.Response) *Error {
	e := &Error{Op: op, Table: table, Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			e.Code = eb.Code
			e.Message = eb.Message
			if e.Message == "" {
				e.Message = eb.Error
			}
			if eb.Details != "" {
				e.Message += ": " + eb.Details
			}
		}
		if e.Message == "" {
			e.Message = strings.TrimSpace(string(raw))
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}

	switch {
	case constraintCodes[e.Code]:
		e.Err = ErrConstraint
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		e.Err = ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		e.Err = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		e.Err = ErrConstraint
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		e.Err = ErrUnavailable
	default:
		e.Err = ErrInvalidRequest
	}
	return e
}

// transportError reports a failed round trip. Cancellation and deadlines
// surface as context errors so callers can tell them apart from an outage.
func transportError(ctx context.Context, op, table string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", op, table, ctxErr)
	}
	return &Error{Op: op, Table: table, Message: err.Error(), Err: ErrUnavailable}
}

func (c *REST) observe(op string, start time.Time, err error) {
	metrics.RecordBackendCall("rest", op, time.Since(start), Classify(err))
}

// Insert posts row to /rest/v1/<table> and returns the id of the row the
// server echoes back.
func (c *REST) Insert(ctx context.Context, table string, row map[string]interface{}) (id string, err error) {
	defer func(start time.Time) { c.observe("insert", start, err) }(time.Now())

	if table == "" || len(row) == 0 {
		return "", &Error{Op: "insert", Table: table, Message: "table and row are required", Err: ErrInvalidRequest}
	}
	body, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("marshal %s row: %w", table, err)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Prefer", "return=representation")
	resp, err := c.doRequest(ctx, http.MethodPost, "/rest/v1/"+url.PathEscape(table), bytes.NewReader(body), h)
	if err != nil {
		return "", transportError(ctx, "insert", table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", responseError("insert", table, resp)
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return "", fmt.Errorf("decode %s insert response: %w", table, err)
	}
	if len(rows) == 0 {
		return "", &Error{Op: "insert", Table: table, Status: resp.StatusCode, Message: "no row returned"}
	}
	id = IDString(rows[0]["id"])
	if id == "" {
		return "", &Error{Op: "insert", Table: table, Status: resp.StatusCode, Message: "returned row has no id"}
	}
	return id, nil
}

// Update patches the row matching id=eq.<id>. An empty representation means
// no row matched and is reported as ErrNotFound.
func (c *REST) Update(ctx context.Context, table, id string, patch map[string]interface{}) (err error) {
	defer func(start time.Time) { c.observe("update", start, err) }(time.Now())

	if table == "" || id == "" {
		return &Error{Op: "update", Table: table, Message: "table and id are required", Err: ErrInvalidRequest}
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal %s patch: %w", table, err)
	}

	q := url.Values{}
	q.Set("id", "eq."+id)
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Prefer", "return=representation")
	resp, err := c.doRequest(ctx, http.MethodPatch, "/rest/v1/"+url.PathEscape(table)+"?"+q.Encode(), bytes.NewReader(body), h)
	if err != nil {
		return transportError(ctx, "update", table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError("update", table, resp)
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("decode %s update response: %w", table, err)
	}
	if len(rows) == 0 {
		return &Error{Op: "update", Table: table, Status: resp.StatusCode, Message: "no row with id " + id, Err: ErrNotFound}
	}
	return nil
}

// Query returns the first row whose columns equal filters.
func (c *REST) Query(ctx context.Context, table string, filters map[string]string) (row map[string]interface{}, found bool, err error) {
	defer func(start time.Time) { c.observe("query", start, err) }(time.Now())

	if table == "" || len(filters) == 0 {
		return nil, false, &Error{Op: "query", Table: table, Message: "table and filters are required", Err: ErrInvalidRequest}
	}

	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	q := url.Values{}
	q.Set("select", "*")
	for _, col := range cols {
		q.Set(col, "eq."+filters[col])
	}
	q.Set("limit", "1")

	resp, err := c.doRequest(ctx, http.MethodGet, "/rest/v1/"+url.PathEscape(table)+"?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, false, transportError(ctx, "query", table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, false, responseError("query", table, resp)
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, false, fmt.Errorf("decode %s query response: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// UploadBlob upserts data at bucket/path in object storage and returns its
// public URL.
func (c *REST) UploadBlob(ctx context.Context, bucket, path string, data []byte, contentType string) (publicURL string, err error) {
	defer func(start time.Time) { c.observe("upload", start, err) }(time.Now())

	if bucket == "" || path == "" {
		return "", &Error{Op: "upload", Message: "bucket and path are required", Err: ErrInvalidRequest}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("x-upsert", "true")
	endpoint := "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
	resp, err := c.doRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(data), h)
	if err != nil {
		return "", transportError(ctx, "upload", bucket, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", responseError("upload", bucket, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	publicURL = c.PublicURL(bucket, path)
	logging.Ctx(ctx).Debug().Str("bucket", bucket).Str("path", path).Int("bytes", len(data)).Msg("blob uploaded")
	return publicURL, nil
}

// Ping succeeds when the records endpoint answers with anything below 500.
func (c *REST) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { c.observe("ping", start, err) }(time.Now())

	resp, err := c.doRequest(ctx, http.MethodGet, "/rest/v1/", nil, nil)
	if err != nil {
		return transportError(ctx, "ping", "", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &Error{Op: "ping", Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Err: ErrUnavailable}
	}
	return nil
}

var _ Backend = (*REST)(nil)
