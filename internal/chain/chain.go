// Package chain executes ordered tool invocations against registered
// platform adapters.
//
// Steps run strictly sequentially and share a context map. A step can
// publish its result data under a declared name (SaveAs), and later steps
// reference earlier output with {{ctx.KEY}} placeholders in their string
// params. Dotted keys traverse nested maps, so {{ctx.repo.full_name}} reads
// the full_name field of the data saved as "repo".
//
// A param that is exactly one placeholder substitutes the raw typed value; a
// placeholder embedded in a longer string is stringified. An unresolvable
// reference fails the step with a validation-kind Result instead of invoking
// the adapter.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zulandar/switchboard/internal/platform"
)

// Step is one tool invocation in a chain.
type Step struct {
	Service   string         `json:"service"`
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params,omitempty"`
	// Critical halts the chain when this step fails.
	Critical bool `json:"critical,omitempty"`
	// SaveAs publishes a successful step's Result.Data into the shared
	// context under this name.
	SaveAs string `json:"save_as,omitempty"`
}

// StepResult pairs an attempted step with the Result it produced.
type StepResult struct {
	Step   Step            `json:"step"`
	Result platform.Result `json:"result"`
}

// Outcome reports a finished chain run. Steps holds every attempted step,
// which is shorter than the input when a critical step halted the chain.
type Outcome struct {
	Steps   []StepResult   `json:"steps"`
	Context map[string]any `json:"context"`
	Halted  bool           `json:"halted"`
	// HaltedStep is the index of the critical step that failed, or -1.
	HaltedStep int `json:"halted_step"`
}

// Executor runs chains against a fixed adapter registry.
type Executor struct {
	registry *platform.Registry
}

func NewExecutor(registry *platform.Registry) *Executor {
	return &Executor{registry: registry}
}

// Run executes steps in order. The caller's initial map is copied, never
// mutated. Non-critical failures are recorded and the chain continues; the
// first critical failure stops it. There is no overall deadline here, each
// adapter bounds its own calls.
func (e *Executor) Run(ctx context.Context, steps []Step, initial map[string]any) Outcome {
	execCtx := make(map[string]any, len(initial))
	for k, v := range initial {
		execCtx[k] = v
	}

	out := Outcome{
		Steps:      make([]StepResult, 0, len(steps)),
		HaltedStep: -1,
	}
	for i, step := range steps {
		res := e.runStep(ctx, step, execCtx)
		out.Steps = append(out.Steps, StepResult{Step: step, Result: res})

		if res.Success && step.SaveAs != "" {
			execCtx[step.SaveAs] = res.Data
		}
		if !res.Success && step.Critical {
			out.Halted = true
			out.HaltedStep = i
			break
		}
	}
	out.Context = execCtx
	return out
}

func (e *Executor) runStep(ctx context.Context, step Step, execCtx map[string]any) platform.Result {
	params, err := resolveParams(step.Params, execCtx)
	if err != nil {
		return platform.Fail(platform.KindValidation, "chain: %v", err)
	}
	adapter, ok := e.registry.Lookup(step.Service)
	if !ok {
		return platform.Fail(platform.KindUnavailable, "unknown service: %s", step.Service)
	}
	return adapter.Invoke(ctx, step.Operation, params)
}

var placeholderRe = regexp.MustCompile(`\{\{\s*ctx\.([A-Za-z0-9_.-]+)\s*\}\}`)

func resolveParams(params, execCtx map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return params, nil
	}
	resolved := make(map[string]any, len(params))
	for k, v := range params {
		rv, err := resolveValue(v, execCtx)
		if err != nil {
			return nil, err
		}
		resolved[k] = rv
	}
	return resolved, nil
}

// resolveValue recurses into nested maps and slices so templated values are
// honored wherever they sit in the params tree.
func resolveValue(v any, execCtx map[string]any) (any, error) {
	switch tv := v.(type) {
	case string:
		return resolveString(tv, execCtx)
	case map[string]any:
		return resolveParams(tv, execCtx)
	case []any:
		resolved := make([]any, len(tv))
		for i, item := range tv {
			ri, err := resolveValue(item, execCtx)
			if err != nil {
				return nil, err
			}
			resolved[i] = ri
		}
		return resolved, nil
	default:
		return v, nil
	}
}

func resolveString(s string, execCtx map[string]any) (any, error) {
	// A param that is exactly one placeholder carries the raw typed value
	// through, so saved numbers and maps survive untouched.
	if m := placeholderRe.FindStringSubmatch(s); m != nil && m[0] == s {
		val, ok := lookupPath(execCtx, m[1])
		if !ok {
			return nil, fmt.Errorf("unresolved reference %q", s)
		}
		return val, nil
	}

	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		val, ok := lookupPath(execCtx, key)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("unresolved reference %q", match)
			}
			return match
		}
		return stringify(val)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func lookupPath(execCtx map[string]any, path string) (any, bool) {
	var cur any = execCtx
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
