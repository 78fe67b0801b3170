package audioio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoPrompter is returned when no browser is connected to answer a prompt.
var ErrNoPrompter = errors.New("audioio: no client to ask for microphone permission")

// PermissionState is the last answer the browser gave.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

type pendingPrompt struct {
	done    chan struct{}
	granted bool
	waiters int
}

// Permissions tracks microphone permission for the connected browser.
// Concurrent Request calls share one outstanding prompt.
type Permissions struct {
	mu      sync.Mutex
	state   PermissionState
	pending *pendingPrompt
	prompt  func() error
	timeout time.Duration
}

// NewPermissions creates a gate that treats an unanswered prompt as a denial
// after timeout.
func NewPermissions(timeout time.Duration) *Permissions {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Permissions{timeout: timeout}
}

// OnPrompt sets the function used to ask the browser for access.
func (p *Permissions) OnPrompt(fn func() error) {
	p.mu.Lock()
	p.prompt = fn
	p.mu.Unlock()
}

// State returns the last known answer.
func (p *Permissions) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Granted reports whether access is currently granted. It never prompts.
func (p *Permissions) Granted() bool {
	return p.State() == PermissionGranted
}

// Request returns immediately when access is already granted; otherwise it
// prompts the browser and waits for Resolve, the timeout, or ctx.
func (p *Permissions) Request(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.state == PermissionGranted {
		p.mu.Unlock()
		return true, nil
	}

	wait := p.pending
	var prompt func() error
	if wait == nil {
		if p.prompt == nil {
			p.mu.Unlock()
			return false, ErrNoPrompter
		}
		wait = &pendingPrompt{done: make(chan struct{})}
		p.pending = wait
		prompt = p.prompt
	}
	wait.waiters++
	p.mu.Unlock()

	if prompt != nil {
		if err := prompt(); err != nil {
			p.settle(wait, false, PermissionUnknown)
			return false, err
		}
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-wait.done:
		return wait.granted, nil
	case <-timer.C:
		p.settle(wait, false, PermissionDenied)
		<-wait.done
		return wait.granted, nil
	case <-ctx.Done():
		p.abandon(wait)
		return false, ctx.Err()
	}
}

// abandon drops one waiter. When the last one leaves before an answer the
// prompt is cleared so the next Request asks again; a late Resolve still
// records the answer.
func (p *Permissions) abandon(wait *pendingPrompt) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wait.waiters--
	if wait.waiters > 0 || p.pending != wait {
		return
	}
	p.pending = nil
	close(wait.done)
}

// Resolve records the browser's answer and wakes any waiting Request.
func (p *Permissions) Resolve(granted bool) {
	state := PermissionDenied
	if granted {
		state = PermissionGranted
	}

	p.mu.Lock()
	wait := p.pending
	p.mu.Unlock()

	if wait != nil {
		p.settle(wait, granted, state)
		return
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Reset forgets the answer, e.g. when the browser disconnects.
func (p *Permissions) Reset() {
	p.mu.Lock()
	wait := p.pending
	p.mu.Unlock()

	if wait != nil {
		p.settle(wait, false, PermissionUnknown)
	}

	p.mu.Lock()
	p.state = PermissionUnknown
	p.mu.Unlock()
}

// settle closes wait once and records state. Later calls for the same
// prompt are ignored.
func (p *Permissions) settle(wait *pendingPrompt, granted bool, state PermissionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending != wait {
		return
	}
	p.pending = nil
	p.state = state
	wait.granted = granted
	close(wait.done)
}
