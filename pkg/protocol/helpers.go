package protocol

import (
	"encoding/base64"
	"time"
)

// NewEntryMessage creates a transcript entry message
func NewEntryMessage(e EntryData) (*Message, error) {
	return NewMessage(TypeEntry, e)
}

// NewStatusMessage creates a status message
func NewStatusMessage(state, text string) (*Message, error) {
	return NewMessage(TypeStatus, StatusData{State: state, Text: text})
}

// NewConnectionMessage creates a connectivity message
func NewConnectionMessage(connected bool, detail string) (*Message, error) {
	return NewMessage(TypeConnection, ConnectionData{Connected: connected, Detail: detail})
}

// NewTranscriptClearedMessage announces a transcript reset. welcome is the
// entry the new transcript starts with.
func NewTranscriptClearedMessage(welcome EntryData) (*Message, error) {
	return NewMessage(TypeTranscriptCleared, welcome)
}

// NewPermissionRequestMessage asks the browser for microphone access
func NewPermissionRequestMessage(id string) (*Message, error) {
	return NewMessage(TypePermissionRequest, PermissionRequestData{ID: id})
}

// NewPermissionMessage answers a permission request
func NewPermissionMessage(id string, granted bool) (*Message, error) {
	return NewMessage(TypePermission, PermissionData{ID: id, Granted: granted})
}

// NewMicMessage creates a microphone audio message
func NewMicMessage(pcmData []byte, sampleRate int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Channels:   1,
		Data:       base64.StdEncoding.EncodeToString(pcmData),
	})
}

// NewSpeakMessage creates a speak message with audio data
func NewSpeakMessage(audioData []byte, sampleRate int, final bool) (*Message, error) {
	return NewMessage(TypeSpeak, SpeakData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Channels:   1,
		Data:       base64.StdEncoding.EncodeToString(audioData),
		Final:      final,
	})
}

// NewVisibilityMessage reports page visibility
func NewVisibilityMessage(visible bool) (*Message, error) {
	return NewMessage(TypeVisibility, VisibilityData{Visible: visible})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetEntryData extracts a transcript entry from a message
func (m *Message) GetEntryData() (*EntryData, error) {
	var data EntryData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConnectionData extracts connectivity from a message
func (m *Message) GetConnectionData() (*ConnectionData, error) {
	var data ConnectionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPermissionRequestData extracts a permission request from a message
func (m *Message) GetPermissionRequestData() (*PermissionRequestData, error) {
	var data PermissionRequestData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPermissionData extracts a permission answer from a message
func (m *Message) GetPermissionData() (*PermissionData, error) {
	var data PermissionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMicData extracts mic data from a message
func (m *Message) GetMicData() (*MicData, error) {
	var data MicData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeMicData decodes the base64 audio data
func (mic *MicData) DecodeMicData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(mic.Data)
}

// GetSpeakData extracts speak data from a message
func (m *Message) GetSpeakData() (*SpeakData, error) {
	var data SpeakData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeSpeakData decodes the base64 audio data
func (s *SpeakData) DecodeSpeakData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.Data)
}

// GetVisibilityData extracts visibility from a message
func (m *Message) GetVisibilityData() (*VisibilityData, error) {
	var data VisibilityData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
