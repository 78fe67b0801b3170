package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-interpreter/internal/httpc"
)

const (
	providerAzure = "azure"

	sttURLFormat = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
	ttsURLFormat = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"

	userAgent = "go-interpreter"
)

// Recognition statuses returned by the short-audio endpoint.
const (
	statusSuccess        = "Success"
	statusNoMatch        = "NoMatch"
	statusInitialSilence = "InitialSilenceTimeout"
	statusBabbleTimeout  = "BabbleTimeout"
	statusError          = "Error"
)

// Azure implements Recognizer and Synthesizer over the Azure Speech REST API.
type Azure struct {
	config *Config
	client httpc.Doer
	logger *slog.Logger
	sttURL string
	ttsURL string
}

// NewAzure creates a new Azure Speech provider.
func NewAzure(opts ...Option) (*Azure, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sttURL := cfg.STTEndpoint
	if sttURL == "" {
		sttURL = fmt.Sprintf(sttURLFormat, cfg.Region)
	}
	ttsURL := cfg.TTSEndpoint
	if ttsURL == "" {
		ttsURL = fmt.Sprintf(ttsURLFormat, cfg.Region)
	}

	return &Azure{
		config: cfg,
		client: cfg.HTTPClient,
		logger: cfg.Logger.With("component", "speech.azure"),
		sttURL: sttURL,
		ttsURL: ttsURL,
	}, nil
}

type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

// Recognize sends one WAV utterance to the short-audio endpoint.
func (a *Azure) Recognize(ctx context.Context, wav []byte, sampleRate int, locale string) (Result, error) {
	q := url.Values{}
	q.Set("language", locale)
	q.Set("format", "simple")
	endpoint := a.sttURL + "?" + q.Encode()

	headers := http.Header{}
	headers.Set("Ocp-Apim-Subscription-Key", a.config.Key)
	headers.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", sampleRate))
	headers.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.doWithRetry(ctx, "recognize", endpoint, headers, wav)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var rr recognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return Result{}, WrapError(providerAzure, fmt.Errorf("decode recognition: %w", err))
	}

	a.logger.Debug("recognition complete",
		"locale", locale,
		"status", rr.RecognitionStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	switch rr.RecognitionStatus {
	case statusSuccess:
		text := strings.TrimSpace(rr.DisplayText)
		if text == "" {
			return NoMatch(), nil
		}
		res := Recognized(text)
		// Offsets and durations are in 100ns ticks.
		res.Duration = time.Duration(rr.Duration) * 100
		return res, nil
	case statusNoMatch, statusInitialSilence, statusBabbleTimeout:
		return NoMatch(), nil
	default:
		return Result{}, WrapError(providerAzure, fmt.Errorf("%w: status %q", ErrRecognitionFailed, rr.RecognitionStatus))
	}
}

// Synthesize renders text with voice as raw 16kHz PCM16 mono.
func (a *Azure) Synthesize(ctx context.Context, text, voice, locale string) (*AudioResult, error) {
	headers := http.Header{}
	headers.Set("Ocp-Apim-Subscription-Key", a.config.Key)
	headers.Set("Content-Type", "application/ssml+xml")
	headers.Set("X-Microsoft-OutputFormat", a.config.OutputFormat)
	headers.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := a.doWithRetry(ctx, "synthesize", a.ttsURL, headers, BuildSSML(text, voice, locale))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerAzure, fmt.Errorf("read audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerAzure, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	a.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", voice,
	)

	return &AudioResult{
		Audio:      audio,
		SampleRate: sampleRateFromFormat(a.config.OutputFormat),
		LatencyMs:  latency,
	}, nil
}

// BuildSSML wraps text in a single-voice SSML document.
func BuildSSML(text, voice, locale string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>", locale, locale, voice)
	xml.EscapeText(&buf, []byte(text))
	buf.WriteString("</voice></speak>")
	return buf.Bytes()
}

func sampleRateFromFormat(format string) int {
	switch {
	case strings.Contains(format, "8khz"):
		return 8000
	case strings.Contains(format, "24khz"):
		return 24000
	case strings.Contains(format, "48khz"):
		return 48000
	default:
		return 16000
	}
}

// doWithRetry POSTs body and retries 429/5xx responses and transport errors.
// Non-2xx responses come back as *APIError.
func (a *Azure) doWithRetry(ctx context.Context, op, endpoint string, headers http.Header, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerAzure, fmt.Errorf("create request: %w", err))
		}
		req.Header = headers.Clone()

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerAzure, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Message: httpc.ReadError(resp), Op: op}
		resp.Body.Close()
		lastErr = WrapError(providerAzure, apiErr)

		if !apiErr.IsRetryable() {
			return nil, lastErr
		}
		a.logger.Warn("retrying request",
			"op", op,
			"attempt", attempt+1,
			"status", resp.StatusCode,
		)
	}

	return nil, lastErr
}

var (
	_ Recognizer  = (*Azure)(nil)
	_ Synthesizer = (*Azure)(nil)
)
