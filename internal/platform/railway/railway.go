// Package railway implements the platform Adapter for the Railway GraphQL API.
//
// Railway exposes a single GraphQL endpoint; every operation here is one
// query or mutation against it. Failures surface two ways: HTTP status
// codes on the transport, and an errors array inside an otherwise 200
// response. Both are mapped onto Result kinds.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/platform"
)

const defaultEndpoint = "https://backboard.railway.app/graphql/v2"

var operations = []string{
	"list_projects",
	"get_service",
	"list_deployments",
	"restart_deployment",
}

// Adapter implements platform.Adapter for Railway.
type Adapter struct {
	token    string
	endpoint string
	hc       *http.Client
}

// Opts holds parameters for creating a Railway Adapter.
type Opts struct {
	Token   string
	Timeout time.Duration
	// For testing: point the client at a mock API server.
	Endpoint string
}

// New creates a Railway Adapter with a bounded HTTP timeout.
func New(opts Opts) (*Adapter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("railway: token is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Adapter{
		token:    opts.Token,
		endpoint: endpoint,
		hc:       &http.Client{Timeout: timeout},
	}, nil
}

func (a *Adapter) Name() string {
	return "railway"
}

func (a *Adapter) Operations() []string {
	return operations
}

func (a *Adapter) Invoke(ctx context.Context, operation string, params map[string]any) platform.Result {
	switch operation {
	case "list_projects":
		return a.listProjects(ctx)
	case "get_service":
		return a.getService(ctx, params)
	case "list_deployments":
		return a.listDeployments(ctx, params)
	case "restart_deployment":
		return a.restartDeployment(ctx, params)
	default:
		return platform.Fail(platform.KindValidation, "railway: unknown operation %q", operation)
	}
}

// HealthCheck queries the authenticated account.
func (a *Adapter) HealthCheck(ctx context.Context) platform.Health {
	var out struct {
		Me struct {
			Email string `json:"email"`
		} `json:"me"`
	}
	if res := a.doQuery(ctx, "query { me { email } }", nil, &out); res != nil {
		return platform.Health{Service: a.Name(), Healthy: false, Detail: res.Error}
	}
	return platform.Health{
		Service: a.Name(),
		Healthy: true,
		Detail:  fmt.Sprintf("authenticated as %s", out.Me.Email),
	}
}

func (a *Adapter) listProjects(ctx context.Context) platform.Result {
	const query = `query { projects { edges { node { id name description } } } }`

	var out struct {
		Projects struct {
			Edges []struct {
				Node struct {
					ID          string `json:"id"`
					Name        string `json:"name"`
					Description string `json:"description"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"projects"`
	}
	if res := a.doQuery(ctx, query, nil, &out); res != nil {
		return *res
	}

	list := make([]map[string]any, 0, len(out.Projects.Edges))
	for _, e := range out.Projects.Edges {
		list = append(list, map[string]any{
			"id":          e.Node.ID,
			"name":        e.Node.Name,
			"description": e.Node.Description,
		})
	}
	return platform.OK(map[string]any{"projects": list, "count": len(list)})
}

func (a *Adapter) getService(ctx context.Context, params map[string]any) platform.Result {
	id, ok := platform.StringParam(params, "service")
	if !ok {
		return platform.Fail(platform.KindValidation, "railway: get_service: service is required")
	}

	const query = `query ($id: String!) { service(id: $id) { id name projectId } }`

	var out struct {
		Service struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			ProjectID string `json:"projectId"`
		} `json:"service"`
	}
	if res := a.doQuery(ctx, query, map[string]any{"id": id}, &out); res != nil {
		return *res
	}
	return platform.OK(map[string]any{
		"id":         out.Service.ID,
		"name":       out.Service.Name,
		"project_id": out.Service.ProjectID,
	})
}

func (a *Adapter) listDeployments(ctx context.Context, params map[string]any) platform.Result {
	projectID, ok := platform.StringParam(params, "project")
	if !ok {
		return platform.Fail(platform.KindValidation, "railway: list_deployments: project is required")
	}

	input := map[string]any{"projectId": projectID}
	if serviceID, ok := platform.StringParam(params, "service"); ok {
		input["serviceId"] = serviceID
	}
	vars := map[string]any{
		"input": input,
		"first": platform.OptInt(params, "limit", 20),
	}

	const query = `query ($input: DeploymentListInput!, $first: Int!) {
		deployments(input: $input, first: $first) {
			edges { node { id status createdAt url } }
		}
	}`

	var out struct {
		Deployments struct {
			Edges []struct {
				Node struct {
					ID        string `json:"id"`
					Status    string `json:"status"`
					CreatedAt string `json:"createdAt"`
					URL       string `json:"url"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"deployments"`
	}
	if res := a.doQuery(ctx, query, vars, &out); res != nil {
		return *res
	}

	list := make([]map[string]any, 0, len(out.Deployments.Edges))
	for _, e := range out.Deployments.Edges {
		list = append(list, map[string]any{
			"id":         e.Node.ID,
			"status":     e.Node.Status,
			"created_at": e.Node.CreatedAt,
			"url":        e.Node.URL,
		})
	}
	return platform.OK(map[string]any{"deployments": list, "count": len(list)})
}

func (a *Adapter) restartDeployment(ctx context.Context, params map[string]any) platform.Result {
	id, ok := platform.StringParam(params, "deployment")
	if !ok {
		return platform.Fail(platform.KindValidation, "railway: restart_deployment: deployment is required")
	}

	const query = `mutation ($id: String!) { deploymentRestart(id: $id) }`

	var out struct {
		DeploymentRestart bool `json:"deploymentRestart"`
	}
	if res := a.doQuery(ctx, query, map[string]any{"id": id}, &out); res != nil {
		return *res
	}
	return platform.OK(map[string]any{
		"deployment": id,
		"restarted":  out.DeploymentRestart,
	})
}

type gqlError struct {
	Message string `json:"message"`
}

// doQuery posts one GraphQL request and decodes the data field into out. A
// nil return means success; otherwise the Result carries the classified
// failure.
func (a *Adapter) doQuery(ctx context.Context, query string, vars map[string]any, out any) *platform.Result {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		res := platform.Fail(platform.KindValidation, "railway: encode request: %v", err)
		return &res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		res := platform.Fail(platform.KindValidation, "railway: build request: %v", err)
		return &res
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.hc.Do(req)
	if err != nil {
		res := platform.Fail(platform.KindNetwork, "railway: query: %v", err)
		return &res
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		res := failFromStatus(resp)
		return &res
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		res := platform.Fail(platform.KindNetwork, "railway: decode response: %v", err)
		return &res
	}
	if len(envelope.Errors) > 0 {
		res := failFromErrors(envelope.Errors)
		return &res
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		res := platform.Fail(platform.KindNetwork, "railway: decode data: %v", err)
		return &res
	}
	return nil
}

func failFromStatus(resp *http.Response) platform.Result {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("railway returned %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platform.Fail(platform.KindAuth, "railway: %s", msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.Fail(platform.KindRateLimited, "railway: %s", msg)
	case resp.StatusCode >= 500:
		return platform.Fail(platform.KindUnavailable, "railway: %s", msg)
	default:
		return platform.Fail(platform.KindValidation, "railway: %s", msg)
	}
}

// failFromErrors classifies a GraphQL errors array by message. Railway
// reports authorization and missing-resource problems inside a 200
// response, so the status code alone says nothing.
func failFromErrors(errs []gqlError) platform.Result {
	msg := errs[0].Message
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "not authorized") || strings.Contains(lower, "unauthorized"):
		return platform.Fail(platform.KindAuth, "railway: %s", msg)
	case strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return platform.Fail(platform.KindNotFound, "railway: %s", msg)
	case strings.Contains(lower, "rate limit"):
		return platform.Fail(platform.KindRateLimited, "railway: %s", msg)
	default:
		return platform.Fail(platform.KindValidation, "railway: %s", msg)
	}
}
