package dialogue

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Agent for testing.
type Mock struct {
	mu sync.Mutex

	connected bool
	replies   []string
	messages  []string
	calls     []string

	// Configurable behavior
	StartConversationFunc func(ctx context.Context) error
	SendMessageFunc       func(ctx context.Context, text string) (string, error)

	// DefaultReply is returned when no scripted replies remain.
	DefaultReply string
}

var _ Agent = (*Mock)(nil)

// NewMock creates a new Mock agent that replies with the given texts in order.
func NewMock(replies ...string) *Mock {
	return &Mock{replies: replies}
}

// StartConversation implements Agent.
func (m *Mock) StartConversation(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, "StartConversation")
	fn := m.StartConversationFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

// SendMessage implements Agent.
func (m *Mock) SendMessage(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "SendMessage")
	m.messages = append(m.messages, text)
	fn := m.SendMessageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	if len(m.replies) == 0 {
		return m.DefaultReply, nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

// EndConversation implements Agent.
func (m *Mock) EndConversation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "EndConversation")
	m.connected = false
}

// IsConnected implements Agent.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Messages returns every text passed to SendMessage.
func (m *Mock) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and messages.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.messages = nil
}
