package ubus

import (
	"sync"
	"time"

	"github.com/mdlayher/ubus/internal/iface"
	"github.com/mdlayher/ubus/internal/wire"
)

// MockTransport is an in-memory iface.Transport for unit tests. Queued
// frames returned from Poll are scripted in advance with Enqueue; Send
// calls are recorded for assertion. Grounded on the teacher's
// MockBackend call-tracking style.
type MockTransport struct {
	mu sync.Mutex

	queue     []wire.Frame
	sent      []SentFrame
	reg       bool
	pollCalls int
}

// SentFrame records one Send call for test assertions.
type SentFrame struct {
	Header  wire.Header
	Payload *wire.Node
	FD      int
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Enqueue arranges for the next Poll call to return frames.
func (m *MockTransport) Enqueue(frames ...wire.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frames...)
}

// Send implements iface.Transport.
func (m *MockTransport) Send(hdr wire.Header, payload *wire.Node, fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentFrame{Header: hdr, Payload: payload, FD: fd})
	return nil
}

// Poll implements iface.Transport, draining whatever has been queued.
func (m *MockTransport) Poll(timeout time.Duration) ([]wire.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollCalls++
	out := m.queue
	m.queue = nil
	return out, nil
}

// Registered implements iface.Transport.
func (m *MockTransport) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg
}

// Register implements iface.Transport.
func (m *MockTransport) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg = true
	return nil
}

// Unregister implements iface.Transport.
func (m *MockTransport) Unregister() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg = false
	return nil
}

// SentFrames returns a copy of every frame passed to Send so far.
func (m *MockTransport) SentFrames() []SentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentFrame, len(m.sent))
	copy(out, m.sent)
	return out
}

// PollCalls reports how many times Poll has been invoked.
func (m *MockTransport) PollCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollCalls
}

// MockRegistry is an in-memory iface.Registry for unit tests, recording
// every object-directed message routed to it.
type MockRegistry struct {
	mu       sync.Mutex
	messages []wire.Header
	onMsg    func(wire.Header, *wire.Node, [wire.AttrMax]wire.Attr) error
}

// NewMockRegistry creates an empty mock object registry.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{}
}

// OnMessage installs a callback invoked for every HandleObjectMessage
// call, in addition to the built-in recording.
func (m *MockRegistry) OnMessage(fn func(wire.Header, *wire.Node, [wire.AttrMax]wire.Attr) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMsg = fn
}

// HandleObjectMessage implements iface.Registry.
func (m *MockRegistry) HandleObjectMessage(hdr wire.Header, payload *wire.Node, attrs [wire.AttrMax]wire.Attr) error {
	m.mu.Lock()
	fn := m.onMsg
	m.messages = append(m.messages, hdr)
	m.mu.Unlock()

	if fn != nil {
		return fn(hdr, payload, attrs)
	}
	return nil
}

// Messages returns the headers of every message routed so far.
func (m *MockRegistry) Messages() []wire.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Header, len(m.messages))
	copy(out, m.messages)
	return out
}

var (
	_ iface.Transport = (*MockTransport)(nil)
	_ iface.Registry  = (*MockRegistry)(nil)
)
