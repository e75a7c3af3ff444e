package relay

import (
	"context"
	"sync"
)

// MockSender is an in-memory Sender for tests and dry runs. It records every
// posted notification and can be scripted to fail.
type MockSender struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	posts      []Notification
	connectErr error
	postErr    error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

// SetConnectErr scripts Connect to fail with err.
func (m *MockSender) SetConnectErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetPostErr scripts Post to fail with err until cleared.
func (m *MockSender) SetPostErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postErr = err
}

func (m *MockSender) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *MockSender) Post(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return m.postErr
	}
	m.posts = append(m.posts, n)
	return nil
}

func (m *MockSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.closed = true
	return nil
}

// Posts returns a copy of the notifications posted so far.
func (m *MockSender) Posts() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.posts))
	copy(out, m.posts)
	return out
}

// Connected reports whether Connect succeeded and Close has not run.
func (m *MockSender) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Closed reports whether Close has run.
func (m *MockSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
