// Package github implements the platform Adapter for GitHub using the
// official REST client.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"github.com/zulandar/switchboard/internal/platform"
	"golang.org/x/oauth2"
)

// lowRateThreshold is the remaining-request count below which the health
// detail warns about rate limit headroom.
const lowRateThreshold = 50

var operations = []string{
	"get_repo",
	"list_issues",
	"create_issue",
	"get_file",
	"create_file",
	"list_pulls",
}

// Adapter implements platform.Adapter for GitHub.
type Adapter struct {
	client *gh.Client
}

// Opts holds parameters for creating a GitHub Adapter.
type Opts struct {
	Token   string
	Timeout time.Duration
	// For testing: point the client at a mock API server.
	BaseURL string
}

// New creates a GitHub Adapter with an OAuth2 token source and a bounded
// HTTP timeout.
func New(opts Opts) (*Adapter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = timeout

	client := gh.NewClient(hc)
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: base url: %w", err)
		}
		client.BaseURL = u
		client.UploadURL = u
	}

	return &Adapter{client: client}, nil
}

func (a *Adapter) Name() string {
	return "github"
}

func (a *Adapter) Operations() []string {
	return operations
}

func (a *Adapter) Invoke(ctx context.Context, operation string, params map[string]any) platform.Result {
	switch operation {
	case "get_repo":
		return a.getRepo(ctx, params)
	case "list_issues":
		return a.listIssues(ctx, params)
	case "create_issue":
		return a.createIssue(ctx, params)
	case "get_file":
		return a.getFile(ctx, params)
	case "create_file":
		return a.createFile(ctx, params)
	case "list_pulls":
		return a.listPulls(ctx, params)
	default:
		return platform.Fail(platform.KindValidation, "github: unknown operation %q", operation)
	}
}

// HealthCheck fetches the authenticated user, the cheapest call that proves
// the token works, and reports rate limit headroom.
func (a *Adapter) HealthCheck(ctx context.Context) platform.Health {
	user, resp, err := a.client.Users.Get(ctx, "")
	if err != nil {
		return platform.Health{Service: a.Name(), Healthy: false, Detail: err.Error()}
	}

	detail := fmt.Sprintf("authenticated as %s", user.GetLogin())
	if resp != nil {
		detail = fmt.Sprintf("%s, %d requests remaining", detail, resp.Rate.Remaining)
		if resp.Rate.Remaining < lowRateThreshold {
			detail += " (rate limit headroom low)"
		}
	}
	return platform.Health{Service: a.Name(), Healthy: true, Detail: detail}
}

func (a *Adapter) getRepo(ctx context.Context, params map[string]any) platform.Result {
	owner, repo, res := repoParams("get_repo", params)
	if res != nil {
		return *res
	}

	r, _, err := a.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return failFrom("github: get_repo", err)
	}
	return platform.OK(map[string]any{
		"full_name":      r.GetFullName(),
		"description":    r.GetDescription(),
		"default_branch": r.GetDefaultBranch(),
		"private":        r.GetPrivate(),
		"open_issues":    r.GetOpenIssuesCount(),
		"stars":          r.GetStargazersCount(),
		"url":            r.GetHTMLURL(),
	})
}

func (a *Adapter) listIssues(ctx context.Context, params map[string]any) platform.Result {
	owner, repo, res := repoParams("list_issues", params)
	if res != nil {
		return *res
	}

	opts := &gh.IssueListByRepoOptions{
		State:       platform.OptString(params, "state", "open"),
		ListOptions: gh.ListOptions{PerPage: platform.OptInt(params, "limit", 30)},
	}
	issues, _, err := a.client.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return failFrom("github: list_issues", err)
	}

	list := make([]map[string]any, 0, len(issues))
	for _, is := range issues {
		// The issues endpoint also returns pull requests.
		if is.IsPullRequest() {
			continue
		}
		list = append(list, map[string]any{
			"number": is.GetNumber(),
			"title":  is.GetTitle(),
			"state":  is.GetState(),
			"author": is.GetUser().GetLogin(),
			"url":    is.GetHTMLURL(),
		})
	}
	return platform.OK(map[string]any{"issues": list, "count": len(list)})
}

func (a *Adapter) createIssue(ctx context.Context, params map[string]any) platform.Result {
	owner, repo, res := repoParams("create_issue", params)
	if res != nil {
		return *res
	}
	title, ok := platform.StringParam(params, "title")
	if !ok {
		return platform.Fail(platform.KindValidation, "github: create_issue: title is required")
	}

	req := &gh.IssueRequest{Title: gh.String(title)}
	if body, ok := platform.StringParam(params, "body"); ok {
		req.Body = gh.String(body)
	}
	if raw, ok := params["labels"].([]any); ok {
		labels := make([]string, 0, len(raw))
		for _, l := range raw {
			if s, ok := l.(string); ok && s != "" {
				labels = append(labels, s)
			}
		}
		if len(labels) > 0 {
			req.Labels = &labels
		}
	}

	issue, _, err := a.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return failFrom("github: create_issue", err)
	}
	return platform.OK(map[string]any{
		"number": issue.GetNumber(),
		"title":  issue.GetTitle(),
		"state":  issue.GetState(),
		"url":    issue.GetHTMLURL(),
	})
}

func (a *Adapter) getFile(ctx context.Context, params map[string]any) platform.Result {
	owner, repo, res := repoParams("get_file", params)
	if res != nil {
		return *res
	}
	path, ok := platform.StringParam(params, "path")
	if !ok {
		return platform.Fail(platform.KindValidation, "github: get_file: path is required")
	}

	opts := &gh.RepositoryContentGetOptions{Ref: platform.OptString(params, "ref", "")}
	fc, _, _, err := a.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return failFrom("github: get_file", err)
	}
	if fc == nil {
		return platform.Fail(platform.KindValidation, "github: get_file: %s is a directory", path)
	}

	content, err := fc.GetContent()
	if err != nil {
		return platform.Fail(platform.KindValidation, "github: get_file: decode %s: %v", path, err)
	}
	return platform.OK(map[string]any{
		"path":    fc.GetPath(),
		"sha":     fc.GetSHA(),
		"size":    fc.GetSize(),
		"content": content,
	})
}

func (a *Adapter) createFile(ctx context.Context, params map[string]any) platform.Result {
	owner, repo, res := repoParams("create_file", params)
	if res != nil {
		return *res
	}
	path, ok := platform.StringParam(params, "path")
	if !ok {
		return platform.Fail(platform.KindValidation, "github: create_file: path is required")
	}
	message, ok := platform.StringParam(params, "message")
	if !ok {
		return platform.Fail(platform.KindValidation, "github: create_file: message is required")
	}
	content, ok := params["content"].(string)
	if !ok {
		return platform.Fail(platform.KindValidation, "github: create_file: content is required")
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: []byte(content),
	}
	if branch, ok := platform.StringParam(params, "branch"); ok {
		opts.Branch = gh.String(branch)
	}

	resp, _, err := a.client.Repositories.CreateFile(ctx, owner, repo, path, opts)
	if err != nil {
		return failFrom("github: create_file", err)
	}
	return platform.OK(map[string]any{
		"path":   path,
		"sha":    resp.Content.GetSHA(),
		"commit": resp.Commit.GetSHA(),
	})
}

func (a *Adapter) listPulls(ctx context.Context, params map[string]any) platform.Result {
	owner, repo, res := repoParams("list_pulls", params)
	if res != nil {
		return *res
	}

	opts := &gh.PullRequestListOptions{
		State:       platform.OptString(params, "state", "open"),
		ListOptions: gh.ListOptions{PerPage: platform.OptInt(params, "limit", 30)},
	}
	pulls, _, err := a.client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return failFrom("github: list_pulls", err)
	}

	list := make([]map[string]any, 0, len(pulls))
	for _, pr := range pulls {
		list = append(list, map[string]any{
			"number": pr.GetNumber(),
			"title":  pr.GetTitle(),
			"state":  pr.GetState(),
			"author": pr.GetUser().GetLogin(),
			"head":   pr.GetHead().GetRef(),
			"base":   pr.GetBase().GetRef(),
			"draft":  pr.GetDraft(),
			"url":    pr.GetHTMLURL(),
		})
	}
	return platform.OK(map[string]any{"pulls": list, "count": len(list)})
}

// repoParams extracts the owner/repo pair every repository operation needs.
func repoParams(op string, params map[string]any) (owner, repo string, fail *platform.Result) {
	owner, ok := platform.StringParam(params, "owner")
	if !ok {
		res := platform.Fail(platform.KindValidation, "github: %s: owner is required", op)
		return "", "", &res
	}
	repo, ok = platform.StringParam(params, "repo")
	if !ok {
		res := platform.Fail(platform.KindValidation, "github: %s: repo is required", op)
		return "", "", &res
	}
	return owner, repo, nil
}

// failFrom maps go-github errors onto Result kinds: rate limits, HTTP
// status classes, then transport failures.
func failFrom(op string, err error) platform.Result {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return platform.Fail(platform.KindRateLimited, "%s: rate limited until %s",
			op, rle.Rate.Reset.Time.UTC().Format(time.RFC3339))
	}
	var arle *gh.AbuseRateLimitError
	if errors.As(err, &arle) {
		return platform.Fail(platform.KindRateLimited, "%s: secondary rate limit", op)
	}
	var ger *gh.ErrorResponse
	if errors.As(err, &ger) && ger.Response != nil {
		switch ger.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return platform.Fail(platform.KindAuth, "%s: %s", op, ger.Message)
		case http.StatusNotFound:
			return platform.Fail(platform.KindNotFound, "%s: %s", op, ger.Message)
		case http.StatusUnprocessableEntity:
			return platform.Fail(platform.KindValidation, "%s: %s", op, ger.Message)
		}
		if ger.Response.StatusCode >= 500 {
			return platform.Fail(platform.KindUnavailable, "%s: github returned %d", op, ger.Response.StatusCode)
		}
	}
	return platform.Fail(platform.KindNetwork, "%s: %v", op, err)
}
