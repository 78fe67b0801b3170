package assistant

import (
	"errors"
	"fmt"
)

// Sentinel errors for the assistant package.
var (
	// ErrBusy is returned when a turn is already in progress.
	ErrBusy = errors.New("assistant: turn in progress")

	// ErrPermissionDenied means microphone access was refused.
	ErrPermissionDenied = errors.New("assistant: microphone permission denied")

	// ErrEmptyInput means capture produced no usable transcript.
	ErrEmptyInput = errors.New("assistant: empty input")

	// ErrDeviceBusy means the microphone lock could not be taken.
	ErrDeviceBusy = errors.New("assistant: microphone busy")

	// ErrUnsupportedLanguage is returned for a code outside the language table.
	ErrUnsupportedLanguage = errors.New("assistant: unsupported language")

	// ErrUnknownGender is returned for a voice gender other than female or male.
	ErrUnknownGender = errors.New("assistant: unknown voice gender")

	// ErrEntryNotFound is returned by Replay for an unknown or non-bot entry.
	ErrEntryNotFound = errors.New("assistant: entry not found")

	// ErrNoWakeWord is returned when no wake-word listener is configured.
	ErrNoWakeWord = errors.New("assistant: wake word unavailable")

	// ErrMissingDependency is returned by New when a collaborator is nil.
	ErrMissingDependency = errors.New("assistant: missing dependency")
)

// StageError reports which step of a turn failed.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("assistant: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of err, or "".
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// User-visible error texts.
const (
	MsgPermissionDenied   = "Microphone permission denied. Please allow microphone access in browser settings."
	MsgWakeWordPermission = "Microphone permission required for wake word."
	MsgProcessingFailed   = "Sorry, there was an error processing your request."
	MsgConnected          = "Connected"
	MsgConnectionFailed   = "Connection failed - check Copilot secret"
)

func captureMessage(err error) string {
	return "Error: " + err.Error()
}
