package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/protocol"
)

// transcript is the bounded list of entries shown in the UI. The welcome
// entry is dropped once the first real entry arrives.
type transcript struct {
	mu      sync.RWMutex
	entries []assistant.Entry
	limit   int
	welcome string
	fresh   bool
}

func newTranscript(limit int, welcome string) *transcript {
	t := &transcript{limit: limit, welcome: welcome}
	t.reset()
	return t
}

func (t *transcript) welcomeEntry() assistant.Entry {
	return assistant.Entry{
		ID:   uuid.NewString(),
		Kind: assistant.EntryBot,
		Text: t.welcome,
		At:   time.Now(),
	}
}

// reset replaces the transcript with a new welcome entry and returns it.
func (t *transcript) reset() assistant.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.welcomeEntry()
	t.entries = []assistant.Entry{w}
	t.fresh = true
	return w
}

func (t *transcript) add(e assistant.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fresh {
		t.entries = t.entries[:0]
		t.fresh = false
	}
	t.entries = append(t.entries, e)
	if len(t.entries) > t.limit {
		t.entries = t.entries[len(t.entries)-t.limit:]
	}
}

func (t *transcript) list() []assistant.Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]assistant.Entry(nil), t.entries...)
}

func entryData(e assistant.Entry) protocol.EntryData {
	return protocol.EntryData{
		ID:       e.ID,
		Kind:     string(e.Kind),
		Text:     e.Text,
		English:  e.English,
		Language: e.Language,
		TurnID:   e.TurnID,
		At:       e.At.UnixMilli(),
	}
}

// AddEntry implements assistant.Presenter.
func (s *Server) AddEntry(e assistant.Entry) {
	s.transcript.add(e)
	s.publish(protocol.NewEntryMessage(entryData(e)))
}

// SetStatus implements assistant.Presenter.
func (s *Server) SetStatus(st assistant.Status) {
	s.stateMu.Lock()
	s.status = st
	s.stateMu.Unlock()
	s.publish(protocol.NewStatusMessage(st.State.String(), st.Text))
}

// SetConnection implements assistant.Presenter.
func (s *Server) SetConnection(connected bool, detail string) {
	s.stateMu.Lock()
	changed := s.connected != connected || s.connDetail != detail
	s.connected = connected
	s.connDetail = detail
	s.stateMu.Unlock()
	if changed {
		s.publish(protocol.NewConnectionMessage(connected, detail))
	}
}

// ClearTranscript empties the transcript, leaving only a welcome entry.
func (s *Server) ClearTranscript() {
	w := s.transcript.reset()
	if c := s.controller(); c != nil {
		c.ForgetReplays()
	}
	s.publish(protocol.NewTranscriptClearedMessage(entryData(w)))
}

// Transcript returns the stored entries, oldest first.
func (s *Server) Transcript() []assistant.Entry {
	return s.transcript.list()
}

func (s *Server) publish(msg *protocol.Message, err error) {
	if err != nil {
		s.logger.Warn("encode event", "error", err)
		return
	}
	if err := s.events.BroadcastProtocol(msg); err != nil {
		s.logger.Warn("broadcast event", "type", msg.Type, "error", err)
	}
}

func (s *Server) snapshot() (assistant.Status, bool, string) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.status, s.connected, s.connDetail
}
