// Package hubtest provides an in-memory types.Conn for tests.
package hubtest

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by reads on a closed MockConn.
var ErrClosed = errors.New("connection closed")

// MockConn implements types.Conn without a network.
type MockConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool

	inbound  chan []byte
	outbound chan []byte
	closedCh chan struct{}
}

// NewMockConn creates an open mock connection.
func NewMockConn() *MockConn {
	return &MockConn{
		inbound:  make(chan []byte, 64),
		outbound: make(chan []byte, 256),
		closedCh: make(chan struct{}),
	}
}

// ReadMessage returns the next frame queued with SendRaw or SendJSON.
func (m *MockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-m.inbound:
		return data, nil
	case <-m.closedCh:
		return nil, ErrClosed
	}
}

// WriteJSON records v as JSON.
func (m *MockConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.written = append(m.written, data)
	select {
	case m.outbound <- data:
	default:
	}
	return nil
}

// Ping always succeeds on an open connection.
func (m *MockConn) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the connection closed and unblocks readers.
func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *MockConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SendRaw queues a raw inbound frame.
func (m *MockConn) SendRaw(data string) {
	m.inbound <- []byte(data)
}

// SendJSON queues v as an inbound frame.
func (m *MockConn) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.inbound <- data
}

// Written returns a copy of every frame written so far.
func (m *MockConn) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]byte, len(m.written))
	copy(cp, m.written)
	return cp
}

// Next waits up to timeout for the next written frame and decodes it into
// a generic map. It returns nil on timeout.
func (m *MockConn) Next(timeout time.Duration) map[string]any {
	select {
	case data := <-m.outbound:
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil
		}
		return out
	case <-time.After(timeout):
		return nil
	}
}
