// Package vercel implements the platform Adapter for the Vercel REST API.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/platform"
)

const defaultBaseURL = "https://api.vercel.com"

var operations = []string{
	"list_projects",
	"get_project",
	"list_deployments",
	"create_deployment",
	"get_deployment",
}

// Adapter implements platform.Adapter for Vercel.
type Adapter struct {
	token   string
	teamID  string
	baseURL string
	hc      *http.Client
}

// Opts holds parameters for creating a Vercel Adapter.
type Opts struct {
	Token   string
	TeamID  string
	Timeout time.Duration
	// For testing: point the client at a mock API server.
	BaseURL string
}

// New creates a Vercel Adapter with a bounded HTTP timeout.
func New(opts Opts) (*Adapter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("vercel: token is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Adapter{
		token:   opts.Token,
		teamID:  opts.TeamID,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

func (a *Adapter) Name() string {
	return "vercel"
}

func (a *Adapter) Operations() []string {
	return operations
}

func (a *Adapter) Invoke(ctx context.Context, operation string, params map[string]any) platform.Result {
	switch operation {
	case "list_projects":
		return a.listProjects(ctx, params)
	case "get_project":
		return a.getProject(ctx, params)
	case "list_deployments":
		return a.listDeployments(ctx, params)
	case "create_deployment":
		return a.createDeployment(ctx, params)
	case "get_deployment":
		return a.getDeployment(ctx, params)
	default:
		return platform.Fail(platform.KindValidation, "vercel: unknown operation %q", operation)
	}
}

// HealthCheck fetches the authenticated user.
func (a *Adapter) HealthCheck(ctx context.Context) platform.Health {
	var out struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	if res := a.doJSON(ctx, http.MethodGet, "/v2/user", nil, nil, &out); res != nil {
		return platform.Health{Service: a.Name(), Healthy: false, Detail: res.Error}
	}
	return platform.Health{
		Service: a.Name(),
		Healthy: true,
		Detail:  fmt.Sprintf("authenticated as %s", out.User.Username),
	}
}

func (a *Adapter) listProjects(ctx context.Context, params map[string]any) platform.Result {
	q := url.Values{}
	if limit := platform.OptInt(params, "limit", 0); limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}

	var out struct {
		Projects []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Framework string `json:"framework"`
		} `json:"projects"`
	}
	if res := a.doJSON(ctx, http.MethodGet, "/v9/projects", q, nil, &out); res != nil {
		return *res
	}

	list := make([]map[string]any, 0, len(out.Projects))
	for _, p := range out.Projects {
		list = append(list, map[string]any{
			"id":        p.ID,
			"name":      p.Name,
			"framework": p.Framework,
		})
	}
	return platform.OK(map[string]any{"projects": list, "count": len(list)})
}

func (a *Adapter) getProject(ctx context.Context, params map[string]any) platform.Result {
	project, ok := platform.StringParam(params, "project")
	if !ok {
		return platform.Fail(platform.KindValidation, "vercel: get_project: project is required")
	}

	var out struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Framework string `json:"framework"`
		Link      struct {
			Repo string `json:"repo"`
		} `json:"link"`
	}
	if res := a.doJSON(ctx, http.MethodGet, "/v9/projects/"+url.PathEscape(project), nil, nil, &out); res != nil {
		return *res
	}
	return platform.OK(map[string]any{
		"id":        out.ID,
		"name":      out.Name,
		"framework": out.Framework,
		"repo":      out.Link.Repo,
	})
}

func (a *Adapter) listDeployments(ctx context.Context, params map[string]any) platform.Result {
	q := url.Values{}
	if app, ok := platform.StringParam(params, "project"); ok {
		q.Set("app", app)
	}
	q.Set("limit", fmt.Sprintf("%d", platform.OptInt(params, "limit", 20)))

	var out struct {
		Deployments []struct {
			UID     string `json:"uid"`
			Name    string `json:"name"`
			State   string `json:"state"`
			URL     string `json:"url"`
			Created int64  `json:"created"`
		} `json:"deployments"`
	}
	if res := a.doJSON(ctx, http.MethodGet, "/v6/deployments", q, nil, &out); res != nil {
		return *res
	}

	list := make([]map[string]any, 0, len(out.Deployments))
	for _, d := range out.Deployments {
		list = append(list, map[string]any{
			"id":      d.UID,
			"name":    d.Name,
			"state":   d.State,
			"url":     d.URL,
			"created": time.UnixMilli(d.Created).UTC().Format(time.RFC3339),
		})
	}
	return platform.OK(map[string]any{"deployments": list, "count": len(list)})
}

func (a *Adapter) createDeployment(ctx context.Context, params map[string]any) platform.Result {
	name, ok := platform.StringParam(params, "name")
	if !ok {
		return platform.Fail(platform.KindValidation, "vercel: create_deployment: name is required")
	}

	body := map[string]any{"name": name}
	if target, ok := platform.StringParam(params, "target"); ok {
		body["target"] = target
	}
	if gitSource, ok := platform.MapParam(params, "git_source"); ok {
		body["gitSource"] = gitSource
	}

	var out struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		ReadyState string `json:"readyState"`
	}
	if res := a.doJSON(ctx, http.MethodPost, "/v13/deployments", nil, body, &out); res != nil {
		return *res
	}
	return platform.OK(map[string]any{
		"id":    out.ID,
		"url":   out.URL,
		"state": out.ReadyState,
	})
}

func (a *Adapter) getDeployment(ctx context.Context, params map[string]any) platform.Result {
	id, ok := platform.StringParam(params, "deployment")
	if !ok {
		return platform.Fail(platform.KindValidation, "vercel: get_deployment: deployment is required")
	}

	var out struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		URL        string `json:"url"`
		ReadyState string `json:"readyState"`
		Target     string `json:"target"`
	}
	if res := a.doJSON(ctx, http.MethodGet, "/v13/deployments/"+url.PathEscape(id), nil, nil, &out); res != nil {
		return *res
	}
	return platform.OK(map[string]any{
		"id":     out.ID,
		"name":   out.Name,
		"url":    out.URL,
		"state":  out.ReadyState,
		"target": out.Target,
	})
}

// doJSON performs one API call and decodes the response into out. A nil
// return means success; otherwise the Result carries the classified failure.
func (a *Adapter) doJSON(ctx context.Context, method, path string, q url.Values, body any, out any) *platform.Result {
	if q == nil {
		q = url.Values{}
	}
	if a.teamID != "" {
		q.Set("teamId", a.teamID)
	}
	endpoint := a.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			res := platform.Fail(platform.KindValidation, "vercel: encode request: %v", err)
			return &res
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		res := platform.Fail(platform.KindValidation, "vercel: build request: %v", err)
		return &res
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.hc.Do(req)
	if err != nil {
		res := platform.Fail(platform.KindNetwork, "vercel: %s %s: %v", method, path, err)
		return &res
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		res := failFromStatus(path, resp)
		return &res
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		res := platform.Fail(platform.KindNetwork, "vercel: decode %s response: %v", path, err)
		return &res
	}
	return nil
}

// failFromStatus maps an error response onto a Result kind, using Vercel's
// error envelope when present.
func failFromStatus(path string, resp *http.Response) platform.Result {
	msg := fmt.Sprintf("vercel returned %d", resp.StatusCode)
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platform.Fail(platform.KindAuth, "vercel: %s: %s", path, msg)
	case resp.StatusCode == http.StatusNotFound:
		return platform.Fail(platform.KindNotFound, "vercel: %s: %s", path, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.Fail(platform.KindRateLimited, "vercel: %s: %s", path, msg)
	case resp.StatusCode >= 500:
		return platform.Fail(platform.KindUnavailable, "vercel: %s: %s", path, msg)
	default:
		return platform.Fail(platform.KindValidation, "vercel: %s: %s", path, msg)
	}
}
