package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-interpreter/internal/httpc"
)

// DirectLine implements Agent over the Direct Line v3 REST API.
type DirectLine struct {
	config   *Config
	client   httpc.Doer
	logger   *slog.Logger
	endpoint string
	userID   string

	// opMu serializes session operations; a message exchange holds it for
	// the whole poll.
	opMu sync.Mutex

	mu             sync.RWMutex
	state          State
	token          string
	conversationID string
	watermark      string
	lastDelivered  string

	conversations atomic.Int64
	restarts      atomic.Int64
	sent          atomic.Int64
	replies       atomic.Int64
	polls         atomic.Int64
	timeouts      atomic.Int64
	failures      atomic.Int64
}

var _ Agent = (*DirectLine)(nil)

// New creates a Direct Line client. No network call is made until
// StartConversation or SendMessage.
func New(opts ...Option) (*DirectLine, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint, _ := NormalizeEndpoint(cfg.Endpoint)

	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		userID = "user-" + uuid.NewString()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpc.Client
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &DirectLine{
		config:   cfg,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger.With("component", "dialogue.directline"),
		endpoint: endpoint,
		userID:   userID,
	}, nil
}

// Endpoint returns the normalized base URL.
func (d *DirectLine) Endpoint() string {
	return d.endpoint
}

// UserID returns the local participant ID.
func (d *DirectLine) UserID() string {
	return d.userID
}

// State returns the session state.
func (d *DirectLine) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// IsConnected implements Agent.
func (d *DirectLine) IsConnected() bool {
	return d.State() == StateConnected
}

// ConversationID returns the active conversation, or "".
func (d *DirectLine) ConversationID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conversationID
}

// Stats returns a snapshot of the session counters.
func (d *DirectLine) Stats() Stats {
	return Stats{
		Conversations:   d.conversations.Load(),
		Restarts:        d.restarts.Load(),
		MessagesSent:    d.sent.Load(),
		RepliesReceived: d.replies.Load(),
		PollAttempts:    d.polls.Load(),
		Timeouts:        d.timeouts.Load(),
		Errors:          d.failures.Load(),
	}
}

// StartConversation implements Agent.
func (d *DirectLine) StartConversation(ctx context.Context) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	return d.count(d.start(ctx))
}

// EndConversation implements Agent.
func (d *DirectLine) EndConversation() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// reset clears every session field. Caller holds mu.
func (d *DirectLine) reset() {
	d.state = StateDisconnected
	d.token = ""
	d.conversationID = ""
	d.watermark = ""
	d.lastDelivered = ""
}

func (d *DirectLine) start(ctx context.Context) error {
	d.mu.Lock()
	d.reset()
	d.mu.Unlock()

	var tok tokenResponse
	if err := d.do(ctx, "generate token", http.MethodPost, "/tokens/generate", d.config.Secret, nil, &tok); err != nil {
		d.logger.Error("token generation failed", "error", err)
		return err
	}
	if tok.Token == "" {
		return ErrNoToken
	}

	var conv conversationResponse
	if err := d.do(ctx, "start conversation", http.MethodPost, "/conversations", tok.Token, nil, &conv); err != nil {
		d.logger.Error("conversation start failed", "error", err)
		return err
	}
	if conv.ConversationID == "" {
		return ErrNoConversation
	}

	token := tok.Token
	if conv.Token != "" {
		token = conv.Token
	}

	d.mu.Lock()
	d.state = StateConnected
	d.token = token
	d.conversationID = conv.ConversationID
	d.mu.Unlock()

	d.conversations.Add(1)
	d.logger.Info("conversation started", "conversation_id", conv.ConversationID)
	return nil
}

func (d *DirectLine) restart(ctx context.Context) error {
	d.restarts.Add(1)
	d.EndConversation()
	return d.start(ctx)
}

// SendMessage implements Agent. Blank text returns "" without any call.
func (d *DirectLine) SendMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	if !d.IsConnected() {
		if err := d.start(ctx); err != nil {
			return "", d.count(err)
		}
	}

	reply, err := d.exchange(ctx, text)
	if !IsAuth(err) {
		return reply, d.count(err)
	}

	d.logger.Warn("auth failure, restarting conversation", "error", err)
	if err := d.restart(ctx); err != nil {
		if IsAuth(err) {
			return "", d.count(fmt.Errorf("%w: %v", ErrAuthExpired, err))
		}
		return "", d.count(err)
	}

	reply, err = d.exchange(ctx, text)
	if IsAuth(err) {
		d.EndConversation()
		return "", d.count(fmt.Errorf("%w: %v", ErrAuthExpired, err))
	}
	return reply, d.count(err)
}

// exchange posts one message and polls for the reply.
func (d *DirectLine) exchange(ctx context.Context, text string) (string, error) {
	d.mu.RLock()
	token, convID := d.token, d.conversationID
	d.mu.RUnlock()

	activity := Activity{Type: "message", From: ChannelUser{ID: d.userID}, Text: text}
	path := "/conversations/" + url.PathEscape(convID) + "/activities"
	if err := d.do(ctx, "send activity", http.MethodPost, path, token, activity, nil); err != nil {
		return "", err
	}
	d.sent.Add(1)
	d.logger.Debug("message sent", "conversation_id", convID, "chars", len(text))

	return d.poll(ctx, token, path)
}

func (d *DirectLine) poll(ctx context.Context, token, path string) (string, error) {
	timer := time.NewTimer(d.config.PollInterval)
	defer timer.Stop()

	for attempt := 0; attempt < d.config.PollAttempts; attempt++ {
		if attempt > 0 {
			timer.Reset(d.config.PollInterval)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}

		d.mu.RLock()
		wm := d.watermark
		d.mu.RUnlock()

		target := path
		if wm != "" {
			target += "?watermark=" + url.QueryEscape(wm)
		}

		d.polls.Add(1)
		var set activitySet
		if err := d.do(ctx, "poll activities", http.MethodGet, target, token, nil, &set); err != nil {
			if IsAuth(err) {
				return "", err
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			d.logger.Debug("poll attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		reply, ok := d.pick(set)
		if ok {
			d.replies.Add(1)
			d.logger.Debug("reply received", "attempt", attempt+1, "chars", len(reply))
			return reply, nil
		}
	}

	d.timeouts.Add(1)
	d.logger.Warn("no reply within poll budget",
		"attempts", d.config.PollAttempts,
		"interval", d.config.PollInterval,
	)
	return "", ErrTimeout
}

// pick advances the watermark and selects the newest undelivered bot message.
func (d *DirectLine) pick(set activitySet) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if set.Watermark != "" {
		d.watermark = set.Watermark
	}

	var latest *Activity
	for i := range set.Activities {
		a := &set.Activities[i]
		if a.Type == "message" && a.From.ID != "" && a.From.ID != d.userID {
			latest = a
		}
	}
	if latest == nil {
		return "", false
	}
	if latest.ID != "" {
		if latest.ID == d.lastDelivered {
			return "", false
		}
		d.lastDelivered = latest.ID
	}
	return latest.Text, true
}

// RefreshToken extends the session token. A failed refresh restarts the
// conversation. It is a no-op while disconnected.
func (d *DirectLine) RefreshToken(ctx context.Context) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.mu.RLock()
	token := d.token
	d.mu.RUnlock()
	if token == "" {
		return nil
	}

	var tok tokenResponse
	err := d.do(ctx, "refresh token", http.MethodPost, "/tokens/refresh", token, nil, &tok)
	if err == nil {
		if tok.Token != "" {
			d.mu.Lock()
			d.token = tok.Token
			d.mu.Unlock()
		}
		d.logger.Debug("token refreshed")
		return nil
	}

	d.logger.Warn("token refresh failed, restarting conversation", "error", err)
	return d.count(d.restart(ctx))
}

// RefreshLoop refreshes the token every interval until ctx is done.
func (d *DirectLine) RefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.RefreshToken(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("scheduled token refresh failed", "error", err)
			}
		}
	}
}

func (d *DirectLine) count(err error) error {
	if err != nil {
		d.failures.Add(1)
	}
	return err
}

// do performs one authorized JSON request. out may be nil.
func (d *DirectLine) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("dialogue: %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("dialogue: %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dialogue: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(op, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dialogue: %s: decode: %w", op, err)
	}
	return nil
}

func parseAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Op: op}
	raw := httpc.ReadError(resp)

	var eb errorBody
	switch {
	case json.Unmarshal([]byte(raw), &eb) != nil:
		apiErr.Message = raw
	case eb.Error.Message != "":
		apiErr.Code = eb.Error.Code
		apiErr.Message = eb.Error.Message
	case eb.Message != "":
		apiErr.Message = eb.Message
	default:
		apiErr.Message = raw
	}
	return apiErr
}
