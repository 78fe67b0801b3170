package assistant

import "github.com/teslashibe/go-interpreter/pkg/lang"

// Session is a snapshot of the orchestrator's observable state.
type Session struct {
	State           State         `json:"state"`
	StatusText      string        `json:"status_text"`
	Language        string        `json:"language"`
	VoiceGender     lang.Gender   `json:"voice_gender"`
	AutoPlay        bool          `json:"auto_play"`
	WakeWordEnabled bool          `json:"wake_word_enabled"`
	WakeWordActive  bool          `json:"wake_word_active"`
	Visible         bool          `json:"visible"`
	TurnInProgress  bool          `json:"turn_in_progress"`
	CaptureLocked   bool          `json:"capture_locked"`
	TurnID          string        `json:"turn_id,omitempty"`
	TurnSource      TriggerSource `json:"turn_source,omitempty"`
	Connected       bool          `json:"connected"`
}
