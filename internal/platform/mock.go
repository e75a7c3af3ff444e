package platform

import (
	"context"
	"sort"
	"sync"
)

// MockAdapter implements Adapter for testing. Operations are scripted with
// fixed Results and every invocation is recorded.
type MockAdapter struct {
	mu      sync.Mutex
	name    string
	results map[string]Result
	calls   []MockCall
	health  Health
}

// MockCall records one Invoke.
type MockCall struct {
	Operation string
	Params    map[string]any
}

// NewMockAdapter creates a healthy mock with no scripted operations.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:    name,
		results: make(map[string]Result),
		health:  Health{Service: name, Healthy: true, Detail: "mock"},
	}
}

// Script sets the Result returned for an operation.
func (m *MockAdapter) Script(operation string, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[operation] = res
}

// SetHealth sets the HealthCheck response.
func (m *MockAdapter) SetHealth(h Health) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.Service = m.name
	m.health = h
}

func (m *MockAdapter) Name() string {
	return m.name
}

func (m *MockAdapter) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, 0, len(m.results))
	for op := range m.results {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (m *MockAdapter) Invoke(ctx context.Context, operation string, params map[string]any) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Operation: operation, Params: params})
	res, ok := m.results[operation]
	if !ok {
		return Fail(KindValidation, "%s: unknown operation %q", m.name, operation)
	}
	return res
}

func (m *MockAdapter) HealthCheck(ctx context.Context) Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// Calls returns a copy of the recorded invocations.
func (m *MockAdapter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
