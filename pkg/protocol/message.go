// Package protocol defines the WebSocket messages exchanged with the browser.
//
// The event socket carries server → browser UI updates (transcript entries,
// status line, connectivity). The audio socket carries microphone PCM from the
// browser, synthesized speech back to it, and the permission and visibility
// handshakes.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → browser, event socket
	TypeEntry             MessageType = "entry"              // Transcript entry
	TypeStatus            MessageType = "status"             // Status line and state
	TypeConnection        MessageType = "connection"         // Dialogue connectivity
	TypeTranscriptCleared MessageType = "transcript_cleared" // Transcript reset

	// Server → browser, audio socket
	TypePermissionRequest MessageType = "permission_request" // Ask for microphone access
	TypeSpeak             MessageType = "speak"              // Synthesized audio

	// Browser → server, audio socket
	TypePermission MessageType = "permission" // Answer to a permission request
	TypeMic        MessageType = "mic"        // Microphone audio
	TypeVisibility MessageType = "visibility" // Page shown or hidden

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Event socket
// =============================================================================

// EntryData is one transcript line.
type EntryData struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"` // "user", "bot", "error"
	Text     string `json:"text"`
	English  string `json:"english,omitempty"`
	Language string `json:"language,omitempty"`
	TurnID   string `json:"turn_id,omitempty"`
	At       int64  `json:"at"` // Unix milliseconds
}

// StatusData is the status line.
type StatusData struct {
	State string `json:"state"`
	Text  string `json:"text"`
}

// ConnectionData reports dialogue connectivity.
type ConnectionData struct {
	Connected bool   `json:"connected"`
	Detail    string `json:"detail"`
}

// =============================================================================
// Audio socket
// =============================================================================

// PermissionRequestData asks the browser for microphone access.
type PermissionRequestData struct {
	ID string `json:"id"`
}

// PermissionData answers a PermissionRequestData.
type PermissionData struct {
	ID      string `json:"id,omitempty"`
	Granted bool   `json:"granted"`
}

// MicData contains microphone audio
type MicData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g., 16000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
}

// SpeakData contains synthesized audio to play
type SpeakData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g., 16000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
	Final      bool   `json:"final,omitempty"`
}

// VisibilityData reports whether the page is in the foreground.
type VisibilityData struct {
	Visible bool `json:"visible"`
}

// =============================================================================
// Bidirectional
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
