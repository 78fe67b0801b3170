// Package dialogue talks to a remote conversational agent over the Bot
// Framework Direct Line v3 REST API.
//
// An Agent owns one conversation at a time. SendMessage posts the user's
// English text and polls the activity stream until the bot answers:
//
//	agent, err := dialogue.New(dialogue.WithSecret(os.Getenv("DIRECT_LINE_SECRET")))
//	if err != nil {
//	    return err
//	}
//	reply, err := agent.SendMessage(ctx, "I have a fever")
//
// Authentication failures rebuild the conversation and retry once.
package dialogue

import "context"

// Agent is the dialogue contract consumed by the turn orchestrator.
type Agent interface {
	// StartConversation creates a fresh session. Failures leave the agent
	// disconnected; callers decide whether to retry.
	StartConversation(ctx context.Context) error

	// SendMessage sends text and waits for the agent's reply.
	SendMessage(ctx context.Context, text string) (string, error)

	// EndConversation drops the session.
	EndConversation()

	// IsConnected reports whether a session is active.
	IsConnected() bool
}

// State is the session state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Stats tracks session statistics.
type Stats struct {
	// Conversations is the number of sessions started.
	Conversations int64

	// Restarts is the number of auth-triggered rebuilds.
	Restarts int64

	// MessagesSent is the number of activities posted.
	MessagesSent int64

	// RepliesReceived is the number of bot replies delivered.
	RepliesReceived int64

	// PollAttempts is the total number of activity reads.
	PollAttempts int64

	// Timeouts is the number of exhausted poll budgets.
	Timeouts int64

	// Errors counts every failed call returned to a caller.
	Errors int64
}

// Activity is a Direct Line activity.
type Activity struct {
	Type string      `json:"type"`
	ID   string      `json:"id,omitempty"`
	From ChannelUser `json:"from"`
	Text string      `json:"text,omitempty"`
}

// ChannelUser identifies an activity author.
type ChannelUser struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type tokenResponse struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversationId"`
	ExpiresIn      int    `json:"expires_in"`
}

type conversationResponse struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
	StreamURL      string `json:"streamUrl"`
}

type activitySet struct {
	Activities []Activity `json:"activities"`
	Watermark  string     `json:"watermark"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}
