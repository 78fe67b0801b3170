package speech

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-interpreter/pkg/lang"
)

// Mock stands in for a Transcriber in tests.
// All methods can be customized via function fields.
type Mock struct {
	// RecognizeOnceFunc is called when RecognizeOnce is invoked.
	// If nil, returns NoMatch.
	RecognizeOnceFunc func(ctx context.Context, language string) Result

	// SpeakFunc is called when Speak is invoked.
	// If nil, returns nil.
	SpeakFunc func(ctx context.Context, text, language string) error

	// RequestPermissionFunc is called when RequestPermission is invoked.
	// If nil, grants access.
	RequestPermissionFunc func(ctx context.Context) (bool, error)

	// StartContinuousFunc is called when StartContinuous is invoked.
	// If nil, returns a fresh MockSession.
	StartContinuousFunc func(ctx context.Context, locale string) (Session, error)

	// Tracking
	mu       sync.Mutex
	calls    []MockCall
	granted  bool
	gender   lang.Gender
	sessions []*MockSession
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method   string
	Text     string
	Language string
	Time     time.Time
}

// NewMock creates a mock with microphone permission already granted.
func NewMock() *Mock {
	return &Mock{granted: true, gender: lang.Female}
}

// Grant sets what HasPermission reports.
func (m *Mock) Grant(granted bool) {
	m.mu.Lock()
	m.granted = granted
	m.mu.Unlock()
}

// RecognizeOnce calls RecognizeOnceFunc and records the call.
func (m *Mock) RecognizeOnce(ctx context.Context, language string) Result {
	m.recordCall("RecognizeOnce", "", language)
	if m.RecognizeOnceFunc != nil {
		return m.RecognizeOnceFunc(ctx, language)
	}
	return NoMatch()
}

// Speak calls SpeakFunc and records the call.
func (m *Mock) Speak(ctx context.Context, text, language string) error {
	m.recordCall("Speak", text, language)
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text, language)
	}
	return nil
}

// HasPermission reports the granted flag.
func (m *Mock) HasPermission() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted
}

// RequestPermission calls RequestPermissionFunc and records the call.
func (m *Mock) RequestPermission(ctx context.Context) (bool, error) {
	m.recordCall("RequestPermission", "", "")
	granted, err := true, error(nil)
	if m.RequestPermissionFunc != nil {
		granted, err = m.RequestPermissionFunc(ctx)
	}
	if err == nil {
		m.Grant(granted)
	}
	return granted, err
}

// SetVoiceGender records the preference.
func (m *Mock) SetVoiceGender(g lang.Gender) {
	m.recordCall("SetVoiceGender", string(g), "")
	m.mu.Lock()
	m.gender = g
	m.mu.Unlock()
}

// VoiceGender returns the last preference set.
func (m *Mock) VoiceGender() lang.Gender {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gender
}

// StopCapture records the call.
func (m *Mock) StopCapture() bool {
	m.recordCall("StopCapture", "", "")
	return true
}

// StartContinuous calls StartContinuousFunc and records the call.
func (m *Mock) StartContinuous(ctx context.Context, locale string) (Session, error) {
	m.recordCall("StartContinuous", "", locale)
	if m.StartContinuousFunc != nil {
		return m.StartContinuousFunc(ctx, locale)
	}
	s := NewMockSession()
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	return s, nil
}

// Sessions returns the sessions opened by the default StartContinuous.
func (m *Mock) Sessions() []*MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockSession(nil), m.sessions...)
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method, text, language string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:   method,
		Text:     text,
		Language: language,
		Time:     time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockSession is a continuous session driven by the test.
type MockSession struct {
	events chan Event
	once   sync.Once

	mu      sync.Mutex
	stopped bool
}

// NewMockSession creates a session with a small event buffer.
func NewMockSession() *MockSession {
	return &MockSession{events: make(chan Event, 16)}
}

// Emit delivers an event unless the session is stopped or its buffer is full.
func (s *MockSession) Emit(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Events implements Session.
func (s *MockSession) Events() <-chan Event {
	return s.events
}

// Stop implements Session.
func (s *MockSession) Stop() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.events)
		s.mu.Unlock()
	})
	return nil
}

// Stopped reports whether Stop was called.
func (s *MockSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

var _ Session = (*MockSession)(nil)
