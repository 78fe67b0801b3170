package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-interpreter/internal/log"
	"github.com/teslashibe/go-interpreter/pkg/audioio"
	"github.com/teslashibe/go-interpreter/pkg/protocol"
)

type fixture struct {
	bridge *Bridge
	source *audioio.BrowserSource
	sink   *audioio.BrowserSink
	perms  *audioio.Permissions
	addr   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := audioio.DefaultConfig()
	f := &fixture{
		source: audioio.NewBrowserSource(cfg, log.Discard()),
		sink:   audioio.NewBrowserSink(cfg, log.Discard()),
		perms:  audioio.NewPermissions(time.Second),
	}
	f.bridge = New(f.source, f.sink, f.perms, log.Discard())

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	f.bridge.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	f.addr = ln.Addr().String()
	return f
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+f.addr+Path+query, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	waitFor(t, "connection", func() bool { return f.bridge.ConnectionCount() > 0 })
	return ws
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return msg
}

func writeMessage(t *testing.T, ws *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := msg.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write error: %v", err)
	}
}

func pcm(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func readChunk(t *testing.T, src *audioio.BrowserSource) audioio.AudioChunk {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return chunk
}

func TestRegisterRoutes_RejectsPlainHTTP(t *testing.T) {
	cfg := audioio.DefaultConfig()
	b := New(audioio.NewBrowserSource(cfg, nil), audioio.NewBrowserSink(cfg, nil), audioio.NewPermissions(0), log.Discard())
	app := fiber.New()
	b.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", Path, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestBinaryAudio(t *testing.T) {
	f := newFixture(t)
	f.source.Start(context.Background())
	defer f.source.Stop()

	ws := f.dial(t, "")
	frame := pcm(100, -100, 200, -200)
	if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatal(err)
	}

	chunk := readChunk(t, f.source)
	if len(chunk.Samples) != 4 || chunk.Samples[0] != 100 || chunk.Samples[3] != -200 {
		t.Errorf("samples = %v", chunk.Samples)
	}
	waitFor(t, "stats", func() bool { return f.bridge.Stats().FramesReceived == 1 })
	if got := f.bridge.Stats().BytesReceived; got != uint64(len(frame)) {
		t.Errorf("BytesReceived = %d", got)
	}
}

func TestBinaryAudio_Resampled(t *testing.T) {
	f := newFixture(t)
	f.source.Start(context.Background())
	defer f.source.Stop()

	ws := f.dial(t, "?rate=48000")
	if err := ws.WriteMessage(websocket.BinaryMessage, pcm(make([]int16, 960)...)); err != nil {
		t.Fatal(err)
	}

	chunk := readChunk(t, f.source)
	if chunk.SampleRate != 16000 || len(chunk.Samples) != 320 {
		t.Errorf("chunk rate=%d samples=%d, want 16000/320", chunk.SampleRate, len(chunk.Samples))
	}
}

func TestMicMessage(t *testing.T) {
	f := newFixture(t)
	f.source.Start(context.Background())
	defer f.source.Stop()

	ws := f.dial(t, "")
	msg, _ := protocol.NewMicMessage(pcm(7, 8, 9), 16000)
	writeMessage(t, ws, msg)

	chunk := readChunk(t, f.source)
	if len(chunk.Samples) != 3 || chunk.Samples[2] != 9 {
		t.Errorf("samples = %v", chunk.Samples)
	}
}

func TestPermissionHandshake(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "")

	type answer struct {
		granted bool
		err     error
	}
	done := make(chan answer, 1)
	go func() {
		g, err := f.perms.Request(context.Background())
		done <- answer{g, err}
	}()

	req := readMessage(t, ws)
	if req.Type != protocol.TypePermissionRequest {
		t.Fatalf("Type = %v, want permission_request", req.Type)
	}
	r, _ := req.GetPermissionRequestData()

	reply, _ := protocol.NewPermissionMessage(r.ID, true)
	writeMessage(t, ws, reply)

	select {
	case a := <-done:
		if a.err != nil || !a.granted {
			t.Errorf("Request() = %v, %v", a.granted, a.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request() did not return")
	}
	if !f.perms.Granted() {
		t.Error("permission not recorded")
	}
	if f.bridge.Stats().PermissionPrompts != 1 {
		t.Errorf("PermissionPrompts = %d", f.bridge.Stats().PermissionPrompts)
	}
}

func TestPermission_NoBrowser(t *testing.T) {
	f := newFixture(t)

	granted, err := f.perms.Request(context.Background())
	if granted || !errors.Is(err, audioio.ErrNoPrompter) {
		t.Errorf("Request() = %v, %v, want ErrNoPrompter", granted, err)
	}
}

func TestPermission_ResetOnDisconnect(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "")

	reply, _ := protocol.NewPermissionMessage("", true)
	writeMessage(t, ws, reply)
	waitFor(t, "grant", f.perms.Granted)

	ws.Close()
	waitFor(t, "disconnect", func() bool { return f.bridge.ConnectionCount() == 0 })
	if f.perms.Granted() {
		t.Error("permission survived the last browser disconnecting")
	}
}

func TestSpeak(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "")

	chunk := audioio.AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1}
	if err := f.sink.Write(context.Background(), chunk); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := f.sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	msg := readMessage(t, ws)
	data, err := msg.GetSpeakData()
	if err != nil || msg.Type != protocol.TypeSpeak {
		t.Fatalf("first message = %v, %v", msg.Type, err)
	}
	audio, _ := data.DecodeSpeakData()
	if string(audio) != string(pcm(1, 2, 3)) || data.Final {
		t.Errorf("speak data = %+v", data)
	}

	end := readMessage(t, ws)
	endData, _ := end.GetSpeakData()
	if !endData.Final {
		t.Error("utterance end not marked final")
	}
}

func TestSpeak_NoBrowser(t *testing.T) {
	f := newFixture(t)
	chunk := audioio.AudioChunk{Samples: []int16{1}, SampleRate: 16000, Channels: 1}
	if err := f.sink.Write(context.Background(), chunk); !errors.Is(err, audioio.ErrNoListener) {
		t.Errorf("Write() error = %v, want ErrNoListener", err)
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	got := make(chan bool, 2)
	f.bridge.OnVisibility(func(v bool) { got <- v })

	ws := f.dial(t, "")
	for _, v := range []bool{false, true} {
		msg, _ := protocol.NewVisibilityMessage(v)
		writeMessage(t, ws, msg)
		select {
		case seen := <-got:
			if seen != v {
				t.Errorf("visibility = %v, want %v", seen, v)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("visibility callback not called")
		}
	}
}

func TestPingPong(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "")

	ping, _ := protocol.NewPingMessage("p-1")
	writeMessage(t, ws, ping)

	pong := readMessage(t, ws)
	if pong.Type != protocol.TypePong {
		t.Fatalf("Type = %v, want pong", pong.Type)
	}
	data, _ := pong.GetPongData()
	if data.ID != "p-1" || data.PingTS != ping.Timestamp {
		t.Errorf("pong = %+v", data)
	}
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "")

	f.bridge.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("connection still open after Close")
	}
	chunk := audioio.AudioChunk{Samples: []int16{1}, SampleRate: 16000, Channels: 1}
	if err := f.sink.Write(context.Background(), chunk); !errors.Is(err, audioio.ErrNoListener) {
		t.Errorf("sink still attached: %v", err)
	}
}
