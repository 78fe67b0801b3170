package translate

import (
	"context"
	"sync"
)

// Call records one Translate or Detect invocation.
type Call struct {
	Method string
	Text   string
	From   string
	To     string
}

// Mock is a dictionary-backed Translator for tests.
//
// Unknown phrases translate to themselves, so a round trip through the
// pivot language returns the original text.
type Mock struct {
	mu    sync.Mutex
	dict  map[string]string
	calls []Call

	// TranslateFunc overrides the dictionary when set.
	TranslateFunc func(ctx context.Context, text, from, to string) (string, error)

	// DetectFunc is called by Detect. Defaults to returning "en".
	DetectFunc func(ctx context.Context, text string) (string, error)
}

var _ Translator = (*Mock)(nil)

// NewMock creates an empty mock translator.
func NewMock() *Mock {
	return &Mock{dict: make(map[string]string)}
}

// Add registers text in from as translating to out in to, and the reverse.
func (m *Mock) Add(from, to, text, out string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dict[key(from, to, text)] = out
	m.dict[key(to, from, out)] = text
	return m
}

func key(from, to, text string) string {
	return from + "|" + to + "|" + text
}

// Translate implements Translator.
func (m *Mock) Translate(ctx context.Context, text, from, to string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: "Translate", Text: text, From: from, To: to})
	fn := m.TranslateFunc
	out, ok := m.dict[key(from, to, text)]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, from, to)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if IsIdentity(text, from, to) || !ok {
		return text, nil
	}
	return out, nil
}

// Detect implements Translator.
func (m *Mock) Detect(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: "Detect", Text: text})
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return "en", nil
}

// Calls returns a copy of recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
