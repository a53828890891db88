// Package supabase is a small client for the Supabase PostgREST and GoTrue APIs.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jon4hz/wayfare/internal/config"
)

// ErrNoRows is returned by First when the query matched nothing.
var ErrNoRows = errors.New("no rows in result")

// Error is a non-2xx response from PostgREST or GoTrue.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("supabase request failed with status %d", e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsStatus reports whether err is a supabase error with one of the given status codes.
func IsStatus(err error, codes ...int) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, code := range codes {
		if e.StatusCode == code {
			return true
		}
	}
	return false
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose REST requests are made on behalf of the user owning token.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the user access token stored by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// Client talks to a single Supabase project.
type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	httpClient     *http.Client
}

// New creates a new Supabase client.
func New(cfg *config.SupabaseConfig) *Client {
	return &Client{
		baseURL:        cfg.URL,
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// restAuth returns the apikey and bearer token for a PostgREST request.
// The service role key wins, then the user token from ctx, then the anon key.
func (c *Client) restAuth(ctx context.Context) (string, string) {
	if c.serviceRoleKey != "" {
		return c.serviceRoleKey, c.serviceRoleKey
	}
	if token := AccessTokenFromContext(ctx); token != "" {
		return c.anonKey, token
	}
	return c.anonKey, c.anonKey
}

// doRequest performs an HTTP request and returns the response for 2xx statuses.
func (c *Client) doRequest(ctx context.Context, method, reqURL string, body any, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, bodyBytes)
	}

	return resp, nil
}

func parseError(status int, body []byte) error {
	var payload struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          string `json:"details"`
		Hint             string `json:"hint"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	e := &Error{StatusCode: status}
	if err := json.Unmarshal(body, &payload); err != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}

	switch code := payload.Code.(type) {
	case string:
		e.Code = code
	}
	if payload.ErrorCode != "" {
		e.Code = payload.ErrorCode
	}
	if e.Code == "" {
		e.Code = payload.Error
	}
	for _, msg := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
		if msg != "" {
			e.Message = msg
			break
		}
	}
	e.Details = strings.TrimSpace(payload.Details + " " + payload.Hint)
	return e
}

func decode(resp *http.Response, dst any) error {
	defer resp.Body.Close() //nolint:errcheck
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// Query builds a PostgREST request against one table.
type Query struct {
	client *Client
	table  string
	params url.Values
	order  []string
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{
		client: c,
		table:  table,
		params: url.Values{},
	}
}

// Select sets the returned columns, including embedded resources.
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

// Eq filters on column = value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	return q
}

// ILike filters on a case insensitive pattern match.
func (q *Query) ILike(column, pattern string) *Query {
	q.params.Add(column, "ilike."+pattern)
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes the LIKE wildcards % and _ in s. PostgREST still reads * as a wildcard,
// so callers needing an exact match have to compare the returned rows themselves.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// In filters on column being one of values.
func (q *Query) In(column string, values []string) *Query {
	q.params.Add(column, "in."+quoteList(values))
	return q
}

// NotIn filters on column being none of values.
func (q *Query) NotIn(column string, values []string) *Query {
	q.params.Add(column, "not.in."+quoteList(values))
	return q
}

// Order appends an ordering term.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return "(" + strings.Join(quoted, ",") + ")"
}

func (q *Query) url() string {
	params := url.Values{}
	for k, v := range q.params {
		params[k] = v
	}
	if len(q.order) > 0 {
		params.Set("order", strings.Join(q.order, ","))
	}
	u := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (q *Query) header(ctx context.Context, prefer ...string) http.Header {
	apiKey, bearer := q.client.restAuth(ctx)
	h := http.Header{}
	h.Set("apikey", apiKey)
	h.Set("Authorization", "Bearer "+bearer)
	if len(prefer) > 0 {
		h.Set("Prefer", strings.Join(prefer, ","))
	}
	return h
}

// Find decodes all matching rows into dst, which must point to a slice.
func (q *Query) Find(ctx context.Context, dst any) error {
	resp, err := q.client.doRequest(ctx, http.MethodGet, q.url(), nil, q.header(ctx))
	if err != nil {
		return err
	}
	return decode(resp, dst)
}

// First decodes the first matching row into dst. It returns ErrNoRows when nothing matched.
func (q *Query) First(ctx context.Context, dst any) error {
	q.Limit(1)
	var rows []json.RawMessage
	if err := q.Find(ctx, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNoRows
	}
	if err := json.Unmarshal(rows[0], dst); err != nil {
		return fmt.Errorf("error decoding row: %w", err)
	}
	return nil
}

// Insert inserts body, a row or a slice of rows. The inserted rows are decoded into dst when it is not nil.
func (q *Query) Insert(ctx context.Context, body, dst any) error {
	resp, err := q.client.doRequest(ctx, http.MethodPost, q.url(), body, q.header(ctx, returnPref(dst)))
	if err != nil {
		return err
	}
	return decode(resp, dst)
}

// Upsert inserts body, ignoring or merging rows that conflict on onConflict.
func (q *Query) Upsert(ctx context.Context, body any, onConflict string, ignoreDuplicates bool) error {
	resolution := "resolution=merge-duplicates"
	if ignoreDuplicates {
		resolution = "resolution=ignore-duplicates"
	}
	if onConflict != "" {
		q.params.Set("on_conflict", onConflict)
	}
	resp, err := q.client.doRequest(ctx, http.MethodPost, q.url(), body, q.header(ctx, resolution, "return=minimal"))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Update patches the matching rows. The updated rows are decoded into dst when it is not nil.
func (q *Query) Update(ctx context.Context, body, dst any) error {
	resp, err := q.client.doRequest(ctx, http.MethodPatch, q.url(), body, q.header(ctx, returnPref(dst)))
	if err != nil {
		return err
	}
	return decode(resp, dst)
}

// Delete removes the matching rows. The deleted rows are decoded into dst when it is not nil.
func (q *Query) Delete(ctx context.Context, dst any) error {
	resp, err := q.client.doRequest(ctx, http.MethodDelete, q.url(), nil, q.header(ctx, returnPref(dst)))
	if err != nil {
		return err
	}
	return decode(resp, dst)
}

// Count returns the exact number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	resp, err := q.client.doRequest(ctx, http.MethodHead, q.url(), nil, q.header(ctx, "count=exact"))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return 0, fmt.Errorf("missing count in content range %q", contentRange)
	}
	n, err := strconv.ParseInt(contentRange[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count in content range %q: %w", contentRange, err)
	}
	return n, nil
}

func returnPref(dst any) string {
	if dst == nil {
		return "return=minimal"
	}
	return "return=representation"
}

// RPC calls the stored procedure fn with params and decodes the result into dst.
func (c *Client) RPC(ctx context.Context, fn string, params, dst any) error {
	apiKey, bearer := c.restAuth(ctx)
	h := http.Header{}
	h.Set("apikey", apiKey)
	h.Set("Authorization", "Bearer "+bearer)

	if params == nil {
		params = map[string]any{}
	}
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, fn), params, h)
	if err != nil {
		return err
	}
	return decode(resp, dst)
}
