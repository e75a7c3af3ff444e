// Package platform defines the adapter contract that normalizes
// heterogeneous remote APIs (source control, deployment, database services)
// into one invocation surface: named operations over parameter maps,
// returning a uniform Result.
package platform

import (
	"context"
	"fmt"
)

// ErrorKind classifies a failed Result so callers can branch on the failure
// class without parsing message text.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindUnavailable ErrorKind = "unavailable"
	KindNetwork     ErrorKind = "network"
)

// Result is the uniform outcome of one adapter operation. Remote failures
// travel inside the Result, never as Go errors, so a chain can treat a
// failed step as data.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Kind    ErrorKind      `json:"kind,omitempty"`
}

// OK builds a successful Result.
func OK(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result with a classified error message.
func Fail(kind ErrorKind, format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...), Kind: kind}
}

// Health is a point-in-time availability report for one platform, produced
// fresh per probe and never cached.
type Health struct {
	Service string `json:"service"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Adapter normalizes one remote platform. Implementations carry their own
// authenticated clients with bounded timeouts; a slow remote must not stall
// the caller indefinitely.
type Adapter interface {
	// Name returns the service name used in chain steps and tool dispatch.
	Name() string

	// Operations lists the operation names this adapter accepts.
	Operations() []string

	// Invoke runs one named operation. An unknown operation is a
	// validation-kind failure, not an error.
	Invoke(ctx context.Context, operation string, params map[string]any) Result

	// HealthCheck probes the platform with one cheap authenticated call.
	HealthCheck(ctx context.Context) Health
}
