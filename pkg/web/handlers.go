package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-interpreter/pkg/assistant"
	"github.com/teslashibe/go-interpreter/pkg/hub"
	"github.com/teslashibe/go-interpreter/pkg/lang"
	"github.com/teslashibe/go-interpreter/pkg/protocol"
	"github.com/teslashibe/go-interpreter/pkg/translate"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Session    assistant.Session      `json:"session"`
	Status     assistant.Status       `json:"status"`
	Connected  bool                   `json:"connected"`
	Connection string                 `json:"connection"`
	LastTurn   *assistant.TurnMetrics `json:"last_turn,omitempty"`
	Latency    string                 `json:"latency,omitempty"`
}

// ToggleRequest is the body of the on/off endpoints.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// LanguageRequest is the body of POST /api/language.
type LanguageRequest struct {
	Language string `json:"language"`
}

// VoiceRequest is the body of POST /api/voice.
type VoiceRequest struct {
	Gender string `json:"gender"`
}

// VisibilityRequest is the body of POST /api/visibility.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// DetectRequest is the body of POST /api/detect.
type DetectRequest struct {
	Text string `json:"text"`
	// Apply switches the session to the detected language.
	Apply bool `json:"apply"`
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// fail maps orchestrator errors to HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, assistant.ErrBusy), errors.Is(err, assistant.ErrNoWakeWord):
		return errorJSON(c, fiber.StatusConflict, err)
	case errors.Is(err, assistant.ErrUnsupportedLanguage), errors.Is(err, assistant.ErrUnknownGender):
		return errorJSON(c, fiber.StatusBadRequest, err)
	case errors.Is(err, assistant.ErrEntryNotFound):
		return errorJSON(c, fiber.StatusNotFound, err)
	case errors.Is(err, assistant.ErrPermissionDenied):
		return errorJSON(c, fiber.StatusForbidden, err)
	default:
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
}

var errNoController = errors.New("web: interpreter not ready")

// withController returns 503 until SetController has been called.
func (s *Server) withController(fn func(*fiber.Ctx, Controller) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctrl := s.controller()
		if ctrl == nil {
			return errorJSON(c, fiber.StatusServiceUnavailable, errNoController)
		}
		return fn(c, ctrl)
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	status, connected, detail := s.snapshot()
	resp := StatusResponse{
		Status:     status,
		Connected:  connected,
		Connection: detail,
	}
	if ctrl := s.controller(); ctrl != nil {
		resp.Session = ctrl.Session()
		if h := ctrl.Metrics().History(); len(h) > 0 {
			last := h[len(h)-1]
			resp.LastTurn = &last
			resp.Latency = last.FormatLatency()
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleLanguages(c *fiber.Ctx) error {
	current := lang.Pivot
	if ctrl := s.controller(); ctrl != nil {
		current = ctrl.Session().Language
	}
	return c.JSON(fiber.Map{
		"languages": s.cfg.Languages,
		"pivot":     lang.Pivot,
		"current":   current,
	})
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.Transcript())
}

func (s *Server) handleClearTranscript(c *fiber.Ctx) error {
	s.ClearTranscript()
	return c.JSON(s.Transcript())
}

func (s *Server) handleMic(c *fiber.Ctx, ctrl Controller) error {
	if err := ctrl.ToggleMic(s.baseContext()); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ctrl.Session())
}

func (s *Server) handleLanguage(c *fiber.Ctx, ctrl Controller) error {
	var req LanguageRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := ctrl.SetLanguage(req.Language); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.Session())
}

func (s *Server) handleVoice(c *fiber.Ctx, ctrl Controller) error {
	var req VoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	g, err := lang.ParseGender(req.Gender)
	if err != nil {
		return fail(c, assistant.ErrUnknownGender)
	}
	if err := ctrl.SetVoiceGender(g); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.Session())
}

func (s *Server) handleWakeWord(c *fiber.Ctx, ctrl Controller) error {
	var req ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := ctrl.SetWakeWordEnabled(s.baseContext(), req.Enabled); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.Session())
}

func (s *Server) handleAutoPlay(c *fiber.Ctx, ctrl Controller) error {
	var req ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	ctrl.SetAutoPlay(req.Enabled)
	return c.JSON(ctrl.Session())
}

func (s *Server) handleVisibility(c *fiber.Ctx, ctrl Controller) error {
	var req VisibilityRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if req.Visible {
		ctrl.Resume()
	} else {
		ctrl.Suspend()
	}
	return c.JSON(ctrl.Session())
}

func (s *Server) handleReplay(c *fiber.Ctx, ctrl Controller) error {
	if err := ctrl.Replay(s.baseContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"replayed": c.Params("id")})
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	if s.cfg.Translator == nil {
		return errorJSON(c, fiber.StatusNotImplemented, errors.New("web: language detection not configured"))
	}
	var req DetectRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("web: text is required"))
	}

	fallback := lang.Pivot
	ctrl := s.controller()
	if ctrl != nil {
		fallback = ctrl.Session().Language
	}
	code := translate.DetectSupported(c.UserContext(), s.cfg.Translator, req.Text, s.cfg.Languages, fallback)

	if req.Apply && ctrl != nil {
		if err := ctrl.SetLanguage(code); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(fiber.Map{"language": code})
}

func (s *Server) handleConnect(c *fiber.Ctx, ctrl Controller) error {
	if err := ctrl.Connect(c.UserContext()); err != nil {
		return errorJSON(c, fiber.StatusBadGateway, err)
	}
	_, connected, detail := s.snapshot()
	return c.JSON(fiber.Map{"connected": connected, "detail": detail})
}

// handleEventsWS streams UI events. A new client first receives the current
// status and connectivity.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.events, c)
	if client == nil {
		c.Close()
		return
	}

	status, connected, detail := s.snapshot()
	for _, m := range []func() (*protocol.Message, error){
		func() (*protocol.Message, error) {
			return protocol.NewStatusMessage(status.State.String(), status.Text)
		},
		func() (*protocol.Message, error) { return protocol.NewConnectionMessage(connected, detail) },
	} {
		msg, err := m()
		if err != nil {
			continue
		}
		if hm, err := hub.FromProtocol(msg); err == nil {
			client.Send(hm)
		}
	}

	client.Run()
}
