package assistant

import (
	"sync"
	"time"
)

// EntryKind tags a transcript entry.
type EntryKind string

const (
	EntryUser  EntryKind = "user"
	EntryBot   EntryKind = "bot"
	EntryError EntryKind = "error"
)

// Entry is one line of the visible transcript.
type Entry struct {
	ID   string    `json:"id"`
	Kind EntryKind `json:"kind"`
	Text string    `json:"text"`

	// English is the pivot-language rendering, set when Language is not English.
	English  string    `json:"english,omitempty"`
	Language string    `json:"language,omitempty"`
	TurnID   string    `json:"turn_id,omitempty"`
	At       time.Time `json:"at"`
}

// Status is the status line and state indicator.
type Status struct {
	State State  `json:"state"`
	Text  string `json:"text"`
}

// Presenter renders orchestrator output. Implementations must not block.
type Presenter interface {
	AddEntry(e Entry)
	SetStatus(s Status)
	SetConnection(connected bool, detail string)
}

type nopPresenter struct{}

func (nopPresenter) AddEntry(Entry)             {}
func (nopPresenter) SetStatus(Status)           {}
func (nopPresenter) SetConnection(bool, string) {}

// Recorder is a Presenter that keeps everything it is given.
type Recorder struct {
	mu        sync.Mutex
	entries   []Entry
	statuses  []Status
	connected bool
	detail    string
}

var _ Presenter = (*Recorder)(nil)

// AddEntry implements Presenter.
func (r *Recorder) AddEntry(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// SetStatus implements Presenter.
func (r *Recorder) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

// SetConnection implements Presenter.
func (r *Recorder) SetConnection(connected bool, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = connected
	r.detail = detail
}

// Entries returns the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// EntriesOf returns the recorded entries of kind k.
func (r *Recorder) EntriesOf(k EntryKind) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Statuses returns the recorded status updates.
func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

// Connection returns the last connectivity update.
func (r *Recorder) Connection() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, r.detail
}
