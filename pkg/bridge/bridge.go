// Package bridge connects the browser's microphone and speaker to the server.
//
// The browser opens /ws/mic and streams PCM16 audio, either as binary frames
// or as base64 "mic" messages. The server sends synthesized speech back as
// "speak" messages and asks for microphone access with "permission_request".
// The browser answers with "permission" and reports page visibility.
package bridge

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-interpreter/pkg/audioio"
	"github.com/teslashibe/go-interpreter/pkg/protocol"
)

// Path is the browser audio endpoint.
const Path = "/ws/mic"

const writeWait = 5 * time.Second

// Connection is one connected browser tab.
type Connection struct {
	ID         string
	Conn       *websocket.Conn
	SampleRate int
	Connected  time.Time

	mu sync.Mutex
}

// Send writes a protocol message to the browser.
func (c *Connection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Stats contains bridge statistics
type Stats struct {
	Connections       int    `json:"connections"`
	FramesReceived    uint64 `json:"frames_received"`
	BytesReceived     uint64 `json:"bytes_received"`
	MessagesSent      uint64 `json:"messages_sent"`
	PermissionPrompts uint64 `json:"permission_prompts"`
	SendErrors        uint64 `json:"send_errors"`
}

// Bridge serves /ws/mic.
type Bridge struct {
	source *audioio.BrowserSource
	sink   *audioio.BrowserSink
	perms  *audioio.Permissions
	logger *slog.Logger

	mu           sync.RWMutex
	conns        map[string]*Connection
	onVisibility func(visible bool)

	framesReceived    atomic.Uint64
	bytesReceived     atomic.Uint64
	messagesSent      atomic.Uint64
	permissionPrompts atomic.Uint64
	sendErrors        atomic.Uint64
}

// New creates a bridge and attaches it to the browser source, sink and
// permission gate.
func New(source *audioio.BrowserSource, sink *audioio.BrowserSink, perms *audioio.Permissions, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		source: source,
		sink:   sink,
		perms:  perms,
		logger: logger.With("component", "bridge"),
		conns:  make(map[string]*Connection),
	}
	perms.OnPrompt(b.promptPermission)
	sink.OnAudio(b.sendSpeak)
	sink.OnEnd(b.sendSpeakEnd)
	return b
}

// OnVisibility sets the callback for page visibility changes.
func (b *Bridge) OnVisibility(fn func(visible bool)) {
	b.mu.Lock()
	b.onVisibility = fn
	b.mu.Unlock()
}

// RegisterRoutes registers the audio websocket on a Fiber router.
func (b *Bridge) RegisterRoutes(r fiber.Router) {
	r.Use(Path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("rate", c.QueryInt("rate", b.source.Config().SampleRate))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get(Path, websocket.New(b.handle))
}

func (b *Bridge) handle(c *websocket.Conn) {
	rate, _ := c.Locals("rate").(int)
	if rate <= 0 {
		rate = b.source.Config().SampleRate
	}
	conn := &Connection{
		ID:         uuid.NewString(),
		Conn:       c,
		SampleRate: rate,
		Connected:  time.Now(),
	}

	b.mu.Lock()
	b.conns[conn.ID] = conn
	count := len(b.conns)
	b.mu.Unlock()
	b.logger.Info("browser connected", "conn_id", conn.ID, "sample_rate", rate, "connections", count)

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn.ID)
		remaining := len(b.conns)
		b.mu.Unlock()
		if remaining == 0 {
			// Permission belongs to the page; a new page must be asked again.
			b.perms.Reset()
		}
		b.logger.Info("browser disconnected", "conn_id", conn.ID, "connections", remaining)
	}()

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			b.logger.Debug("read ended", "conn_id", conn.ID, "error", err)
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			b.pushAudio(data, conn.SampleRate, 1)
		case websocket.TextMessage:
			b.handleMessage(conn, data)
		}
	}
}

func (b *Bridge) handleMessage(conn *Connection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.logger.Debug("parse error", "conn_id", conn.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeMic:
		mic, err := msg.GetMicData()
		if err != nil {
			return
		}
		pcm, err := mic.DecodeMicData()
		if err != nil {
			b.logger.Debug("bad mic payload", "error", err)
			return
		}
		rate, channels := mic.SampleRate, mic.Channels
		if rate <= 0 {
			rate = conn.SampleRate
		}
		if channels <= 0 {
			channels = 1
		}
		b.pushAudio(pcm, rate, channels)

	case protocol.TypePermission:
		p, err := msg.GetPermissionData()
		if err != nil {
			return
		}
		b.logger.Info("microphone permission answered", "granted", p.Granted)
		b.perms.Resolve(p.Granted)

	case protocol.TypeVisibility:
		v, err := msg.GetVisibilityData()
		if err != nil {
			return
		}
		b.mu.RLock()
		fn := b.onVisibility
		b.mu.RUnlock()
		if fn != nil {
			fn(v.Visible)
		}

	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		id := ""
		if ping != nil {
			id = ping.ID
		}
		pong, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			b.send(conn, pong)
		}
	}
}

func (b *Bridge) pushAudio(pcm []byte, rate, channels int) {
	if len(pcm) < 2 {
		return
	}
	b.framesReceived.Add(1)
	b.bytesReceived.Add(uint64(len(pcm)))
	b.source.PushPCM(pcm, rate, channels)
}

// promptPermission asks every connected browser for microphone access.
func (b *Bridge) promptPermission() error {
	msg, err := protocol.NewPermissionRequestMessage(uuid.NewString())
	if err != nil {
		return err
	}
	if b.Broadcast(msg) == 0 {
		return audioio.ErrNoPrompter
	}
	b.permissionPrompts.Add(1)
	return nil
}

func (b *Bridge) sendSpeak(pcm []byte, sampleRate int) error {
	msg, err := protocol.NewSpeakMessage(pcm, sampleRate, false)
	if err != nil {
		return err
	}
	if b.Broadcast(msg) == 0 {
		return audioio.ErrNoListener
	}
	return nil
}

func (b *Bridge) sendSpeakEnd() error {
	msg, err := protocol.NewSpeakMessage(nil, b.sink.Config().SampleRate, true)
	if err != nil {
		return err
	}
	b.Broadcast(msg)
	return nil
}

// Broadcast sends msg to every connected browser and returns how many
// received it.
func (b *Bridge) Broadcast(msg *protocol.Message) int {
	b.mu.RLock()
	conns := make([]*Connection, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if b.send(c, msg) == nil {
			sent++
		}
	}
	return sent
}

func (b *Bridge) send(c *Connection, msg *protocol.Message) error {
	if err := c.Send(msg); err != nil {
		b.sendErrors.Add(1)
		b.logger.Warn("send failed", "conn_id", c.ID, "type", msg.Type, "error", err)
		return err
	}
	b.messagesSent.Add(1)
	return nil
}

// ConnectionCount returns the number of connected browsers.
func (b *Bridge) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Stats returns bridge statistics.
func (b *Bridge) Stats() Stats {
	return Stats{
		Connections:       b.ConnectionCount(),
		FramesReceived:    b.framesReceived.Load(),
		BytesReceived:     b.bytesReceived.Load(),
		MessagesSent:      b.messagesSent.Load(),
		PermissionPrompts: b.permissionPrompts.Load(),
		SendErrors:        b.sendErrors.Load(),
	}
}

// Close detaches the bridge and closes every browser connection.
func (b *Bridge) Close() {
	b.sink.OnAudio(nil)
	b.sink.OnEnd(nil)
	b.perms.OnPrompt(nil)

	b.mu.RLock()
	conns := make([]*Connection, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	for _, c := range conns {
		c.mu.Lock()
		c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.Conn.Close()
	}
}
