package assistant

import "fmt"

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateAwaitingPermission
	StateCapturing
	StateTranslating
	StateDialoguing
	StateSpeaking
	StateError
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StateAwaitingPermission: "awaiting_permission",
	StateCapturing:          "capturing",
	StateTranslating:        "translating",
	StateDialoguing:         "dialoguing",
	StateSpeaking:           "speaking",
	StateError:              "error",
}

// String returns the state name.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st, n := range stateNames {
		if n == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("assistant: unknown state %q", b)
}

// Status line texts shown to the patient.
const (
	TextIdle       = `Tap to speak or say "Hey Doctor"`
	TextCapturing  = "Listening..."
	TextProcessing = "Processing..."
	TextThinking   = "Thinking..."
	TextSpeaking   = "Speaking..."
	TextPermission = "Waiting for microphone permission..."
)

// StatusText returns the status line for s.
func StatusText(s State) string {
	switch s {
	case StateAwaitingPermission:
		return TextPermission
	case StateCapturing:
		return TextCapturing
	case StateTranslating:
		return TextProcessing
	case StateDialoguing:
		return TextThinking
	case StateSpeaking:
		return TextSpeaking
	default:
		return TextIdle
	}
}

// TriggerSource identifies what started a turn.
type TriggerSource string

const (
	SourceManual   TriggerSource = "manual"
	SourceWakeWord TriggerSource = "wakeword"
)

// Stage names one step of a turn.
type Stage string

const (
	StageCapture      Stage = "capture"
	StageTranslateIn  Stage = "translate_in"
	StageDialogue     Stage = "dialogue"
	StageTranslateOut Stage = "translate_out"
	StageSpeak        Stage = "speak"
)
