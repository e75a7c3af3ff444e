// Package supabase implements the platform Adapter for Supabase's PostgREST
// data API.
//
// Operations address tables under <project-url>/rest/v1/<table> and use
// PostgREST filter syntax ("column=op.value") verbatim, so callers can
// express any condition the API supports without this package modelling the
// grammar.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/platform"
)

var operations = []string{
	"run_query",
	"insert_row",
	"update_rows",
	"count_rows",
}

// Adapter implements platform.Adapter for Supabase.
type Adapter struct {
	key     string
	baseURL string
	hc      *http.Client
}

// Opts holds parameters for creating a Supabase Adapter.
type Opts struct {
	// URL is the project URL, e.g. https://abcdef.supabase.co.
	URL string
	// Key is the service role or anon API key.
	Key     string
	Timeout time.Duration
}

// New creates a Supabase Adapter with a bounded HTTP timeout.
func New(opts Opts) (*Adapter, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("supabase: url is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("supabase: key is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Adapter{
		key:     opts.Key,
		baseURL: strings.TrimRight(opts.URL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

func (a *Adapter) Name() string {
	return "supabase"
}

func (a *Adapter) Operations() []string {
	return operations
}

func (a *Adapter) Invoke(ctx context.Context, operation string, params map[string]any) platform.Result {
	switch operation {
	case "run_query":
		return a.runQuery(ctx, params)
	case "insert_row":
		return a.insertRow(ctx, params)
	case "update_rows":
		return a.updateRows(ctx, params)
	case "count_rows":
		return a.countRows(ctx, params)
	default:
		return platform.Fail(platform.KindValidation, "supabase: unknown operation %q", operation)
	}
}

// HealthCheck hits the PostgREST root, which answers with the schema
// description when the key is accepted.
func (a *Adapter) HealthCheck(ctx context.Context) platform.Health {
	resp, fail := a.do(ctx, http.MethodGet, "/rest/v1/", nil, "", nil)
	if fail != nil {
		return platform.Health{Service: a.Name(), Healthy: false, Detail: fail.Error}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return platform.Health{Service: a.Name(), Healthy: true, Detail: "postgrest reachable"}
}

func (a *Adapter) runQuery(ctx context.Context, params map[string]any) platform.Result {
	table, ok := platform.StringParam(params, "table")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: run_query: table is required")
	}

	q := url.Values{}
	q.Set("select", platform.OptString(params, "select", "*"))
	if filter, ok := platform.StringParam(params, "filter"); ok {
		if fail := applyFilter(q, filter); fail != nil {
			return *fail
		}
	}
	if order, ok := platform.StringParam(params, "order"); ok {
		q.Set("order", order)
	}
	if limit := platform.OptInt(params, "limit", 0); limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var rows []map[string]any
	if fail := a.doJSON(ctx, http.MethodGet, "/rest/v1/"+url.PathEscape(table), q, "", nil, &rows); fail != nil {
		return *fail
	}
	return platform.OK(map[string]any{"rows": rows, "count": len(rows)})
}

func (a *Adapter) insertRow(ctx context.Context, params map[string]any) platform.Result {
	table, ok := platform.StringParam(params, "table")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: insert_row: table is required")
	}
	values, ok := platform.MapParam(params, "values")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: insert_row: values is required")
	}

	var rows []map[string]any
	if fail := a.doJSON(ctx, http.MethodPost, "/rest/v1/"+url.PathEscape(table), nil, "return=representation", values, &rows); fail != nil {
		return *fail
	}
	if len(rows) == 0 {
		return platform.Fail(platform.KindUnavailable, "supabase: insert_row: no row returned")
	}
	return platform.OK(map[string]any{"row": rows[0]})
}

func (a *Adapter) updateRows(ctx context.Context, params map[string]any) platform.Result {
	table, ok := platform.StringParam(params, "table")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: update_rows: table is required")
	}
	// Refuse unfiltered updates rather than rewrite a whole table.
	filter, ok := platform.StringParam(params, "filter")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: update_rows: filter is required")
	}
	values, ok := platform.MapParam(params, "values")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: update_rows: values is required")
	}

	q := url.Values{}
	if fail := applyFilter(q, filter); fail != nil {
		return *fail
	}

	var rows []map[string]any
	if fail := a.doJSON(ctx, http.MethodPatch, "/rest/v1/"+url.PathEscape(table), q, "return=representation", values, &rows); fail != nil {
		return *fail
	}
	return platform.OK(map[string]any{"rows": rows, "count": len(rows)})
}

func (a *Adapter) countRows(ctx context.Context, params map[string]any) platform.Result {
	table, ok := platform.StringParam(params, "table")
	if !ok {
		return platform.Fail(platform.KindValidation, "supabase: count_rows: table is required")
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", "1")
	if filter, ok := platform.StringParam(params, "filter"); ok {
		if fail := applyFilter(q, filter); fail != nil {
			return *fail
		}
	}

	resp, fail := a.do(ctx, http.MethodGet, "/rest/v1/"+url.PathEscape(table), q, "count=exact", nil)
	if fail != nil {
		return *fail
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	// Content-Range looks like "0-0/42", or "*/0" for an empty table.
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return platform.Fail(platform.KindUnavailable, "supabase: count_rows: missing Content-Range header")
	}
	count, err := strconv.Atoi(contentRange[idx+1:])
	if err != nil {
		return platform.Fail(platform.KindUnavailable, "supabase: count_rows: bad Content-Range %q", contentRange)
	}
	return platform.OK(map[string]any{"count": count})
}

// applyFilter splits a PostgREST condition like "status=eq.active" into a
// query parameter.
func applyFilter(q url.Values, filter string) *platform.Result {
	column, cond, found := strings.Cut(filter, "=")
	if !found || column == "" || cond == "" {
		res := platform.Fail(platform.KindValidation, "supabase: filter must look like column=op.value, got %q", filter)
		return &res
	}
	q.Set(column, cond)
	return nil
}

// do performs one PostgREST call, mapping transport and status failures. On
// success the caller owns the response body.
func (a *Adapter) do(ctx context.Context, method, path string, q url.Values, prefer string, body any) (*http.Response, *platform.Result) {
	endpoint := a.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			res := platform.Fail(platform.KindValidation, "supabase: encode request: %v", err)
			return nil, &res
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		res := platform.Fail(platform.KindValidation, "supabase: build request: %v", err)
		return nil, &res
	}
	req.Header.Set("apikey", a.key)
	req.Header.Set("Authorization", "Bearer "+a.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := a.hc.Do(req)
	if err != nil {
		res := platform.Fail(platform.KindNetwork, "supabase: %s %s: %v", method, path, err)
		return nil, &res
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		res := failFromStatus(path, resp)
		return nil, &res
	}
	return resp, nil
}

// doJSON wraps do and decodes the response body into out.
func (a *Adapter) doJSON(ctx context.Context, method, path string, q url.Values, prefer string, body, out any) *platform.Result {
	resp, fail := a.do(ctx, method, path, q, prefer, body)
	if fail != nil {
		return fail
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		res := platform.Fail(platform.KindNetwork, "supabase: decode %s response: %v", path, err)
		return &res
	}
	return nil
}

// failFromStatus maps an error response onto a Result kind, using the
// PostgREST error body when present.
func failFromStatus(path string, resp *http.Response) platform.Result {
	msg := fmt.Sprintf("supabase returned %d", resp.StatusCode)
	var envelope struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if json.Unmarshal(data, &envelope) == nil && envelope.Message != "" {
		msg = envelope.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platform.Fail(platform.KindAuth, "supabase: %s: %s", path, msg)
	case resp.StatusCode == http.StatusNotFound:
		return platform.Fail(platform.KindNotFound, "supabase: %s: %s", path, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.Fail(platform.KindRateLimited, "supabase: %s: %s", path, msg)
	case resp.StatusCode >= 500:
		return platform.Fail(platform.KindUnavailable, "supabase: %s: %s", path, msg)
	default:
		return platform.Fail(platform.KindValidation, "supabase: %s: %s", path, msg)
	}
}
