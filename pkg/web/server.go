// Package web serves the interpreter's browser UI and REST API.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/hub"
	"github.com/teslashibe/go-interpreter/pkg/lang"
	"github.com/teslashibe/go-interpreter/pkg/translate"
)

// Controller is the turn orchestrator as seen by the HTTP API.
type Controller interface {
	Session() assistant.Session
	ToggleMic(ctx context.Context) error
	SetLanguage(code string) error
	SetVoiceGender(g lang.Gender) error
	SetAutoPlay(on bool)
	SetWakeWordEnabled(ctx context.Context, on bool) error
	Suspend()
	Resume()
	Replay(ctx context.Context, entryID string) error
	Connect(ctx context.Context) error
	ForgetReplays()
	Metrics() *assistant.MetricsCollector
}

var _ Controller = (*assistant.Orchestrator)(nil)

// Routes lets other packages mount handlers on the server's app.
type Routes interface {
	RegisterRoutes(r fiber.Router)
}

// Config holds web server configuration.
type Config struct {
	// StaticDir is served at "/". Empty disables static files.
	StaticDir string

	// Languages is the table reported by /api/languages and used by /api/detect.
	Languages lang.Table

	// Translator backs /api/detect. Optional.
	Translator translate.Translator

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// Routes are extra route sets, such as the audio bridge.
	Routes []Routes

	// TranscriptLimit bounds the stored transcript.
	TranscriptLimit int

	// Welcome is the entry a fresh or cleared transcript starts with.
	Welcome string

	Logger *slog.Logger
}

// DefaultWelcome greets the user before the first turn.
const DefaultWelcome = `Welcome! Choose a language, then tap the microphone or say "Hey Doctor".`

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		StaticDir:       "./web",
		Languages:       lang.Default(),
		TranscriptLimit: 500,
		Welcome:         DefaultWelcome,
		Logger:          slog.Default(),
	}
}

// Option is a functional option for configuring the server.
type Option func(*Config)

// WithStaticDir sets the static file directory.
func WithStaticDir(dir string) Option {
	return func(c *Config) { c.StaticDir = dir }
}

// WithLanguages sets the language table.
func WithLanguages(t lang.Table) Option {
	return func(c *Config) { c.Languages = t }
}

// WithTranslator enables language detection.
func WithTranslator(t translate.Translator) Option {
	return func(c *Config) { c.Translator = t }
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(c *Config) { c.Metrics = h }
}

// WithRoutes mounts extra route sets.
func WithRoutes(r ...Routes) Option {
	return func(c *Config) { c.Routes = append(c.Routes, r...) }
}

// WithTranscriptLimit bounds the stored transcript.
func WithTranscriptLimit(n int) Option {
	return func(c *Config) { c.TranscriptLimit = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Server is the web UI server. It is also the orchestrator's presenter.
type Server struct {
	app    *fiber.App
	cfg    *Config
	logger *slog.Logger
	events *hub.Hub

	ctrlMu sync.RWMutex
	ctrl   Controller
	// ctx outlives requests; turns and replays run on it.
	ctx context.Context

	transcript *transcript

	stateMu    sync.RWMutex
	status     assistant.Status
	connected  bool
	connDetail string
}

var _ assistant.Presenter = (*Server)(nil)

// NewServer creates a server. SetController must be called before the
// control endpoints are used.
func NewServer(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TranscriptLimit <= 0 {
		cfg.TranscriptLimit = 500
	}

	s := &Server{
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "web"),
		events:     hub.New("events", cfg.Logger),
		ctx:        context.Background(),
		transcript: newTranscript(cfg.TranscriptLimit, cfg.Welcome),
		status:     assistant.Status{State: assistant.StateIdle, Text: assistant.TextIdle},
		connDetail: "Connecting...",
	}

	app := fiber.New(fiber.Config{
		AppName:               "Clinic Interpreter",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/languages", s.handleLanguages)
	api.Get("/transcript", s.handleTranscript)
	api.Delete("/transcript", s.handleClearTranscript)
	api.Post("/mic", s.withController(s.handleMic))
	api.Post("/language", s.withController(s.handleLanguage))
	api.Post("/voice", s.withController(s.handleVoice))
	api.Post("/wake-word", s.withController(s.handleWakeWord))
	api.Post("/auto-play", s.withController(s.handleAutoPlay))
	api.Post("/visibility", s.withController(s.handleVisibility))
	api.Post("/replay/:id", s.withController(s.handleReplay))
	api.Post("/detect", s.handleDetect)
	api.Post("/connect", s.withController(s.handleConnect))

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	for _, r := range cfg.Routes {
		r.RegisterRoutes(app)
	}

	app.Use("/ws/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// SetController attaches the orchestrator.
func (s *Server) SetController(c Controller) {
	s.ctrlMu.Lock()
	s.ctrl = c
	s.ctrlMu.Unlock()
}

func (s *Server) controller() Controller {
	s.ctrlMu.RLock()
	defer s.ctrlMu.RUnlock()
	return s.ctrl
}

func (s *Server) baseContext() context.Context {
	s.ctrlMu.RLock()
	defer s.ctrlMu.RUnlock()
	return s.ctx
}

// App returns the Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the event hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Start listens on addr and serves until Shutdown. Work started by requests
// runs on ctx.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("web server listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.ctrlMu.Lock()
	s.ctx = ctx
	s.ctrlMu.Unlock()
	go s.events.Run()
	return s.app.Listener(ln)
}

// Shutdown stops the event hub and the HTTP server.
func (s *Server) Shutdown() error {
	s.events.Stop()
	return s.app.Shutdown()
}
