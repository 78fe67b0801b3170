package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-interpreter/internal/httpc"
)

const (
	providerAzure = "azure"

	azureDefaultEndpoint = "https://api.cognitive.microsofttranslator.com/"
	azureAPIVersion      = "3.0"
)

// Azure implements Translator over the Azure Translator v3 REST API.
type Azure struct {
	config   *Config
	client   httpc.Doer
	logger   *slog.Logger
	endpoint string
}

var _ Translator = (*Azure)(nil)

// NewAzure creates a new Azure Translator client.
func NewAzure(opts ...Option) (*Azure, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.Key == "" {
		return nil, ErrNoKey
	}
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpc.Client
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Azure{
		config:   cfg,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger.With("component", "translate.azure"),
		endpoint: endpoint,
	}, nil
}

func normalizeEndpoint(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrNoEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoEndpoint, raw)
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw, nil
}

type textItem struct {
	Text string `json:"Text"`
}

type translateResponse []struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

type detectResponse []struct {
	Language string  `json:"language"`
	Score    float64 `json:"score"`
}

type azureErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate translates text from -> to.
func (a *Azure) Translate(ctx context.Context, text, from, to string) (string, error) {
	if IsIdentity(text, from, to) {
		return text, nil
	}

	q := url.Values{}
	q.Set("api-version", azureAPIVersion)
	q.Set("from", from)
	q.Set("to", to)

	start := time.Now()
	var out translateResponse
	if err := a.post(ctx, "translate", "translate?"+q.Encode(), text, &out); err != nil {
		return "", err
	}
	if len(out) == 0 || len(out[0].Translations) == 0 {
		a.logger.Warn("no translation in response", "from", from, "to", to)
		return text, nil
	}

	a.logger.Debug("translated",
		"from", from,
		"to", to,
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out[0].Translations[0].Text, nil
}

// Detect returns the Translator language code for text.
func (a *Azure) Detect(ctx context.Context, text string) (string, error) {
	q := url.Values{}
	q.Set("api-version", azureAPIVersion)

	var out detectResponse
	if err := a.post(ctx, "detect", "detect?"+q.Encode(), text, &out); err != nil {
		return "", err
	}
	if len(out) == 0 || out[0].Language == "" {
		return "", wrap(providerAzure, "detect", ErrNoDetection)
	}
	return out[0].Language, nil
}

func (a *Azure) post(ctx context.Context, op, path, text string, out any) error {
	body, err := json.Marshal([]textItem{{Text: text}})
	if err != nil {
		return wrap(providerAzure, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return wrap(providerAzure, op, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.config.Key)
	if region := a.config.Region; region != "" && !strings.EqualFold(region, "global") {
		req.Header.Set("Ocp-Apim-Subscription-Region", region)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ClientTraceId", uuid.NewString())

	resp, err := a.client.Do(req)
	if err != nil {
		return wrap(providerAzure, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Provider: providerAzure}
		raw := httpc.ReadError(resp)
		var eb azureErrorBody
		if json.Unmarshal([]byte(raw), &eb) == nil && eb.Error.Message != "" {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		} else {
			apiErr.Message = raw
		}
		a.logger.Warn("request failed", "op", op, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return wrap(providerAzure, op, fmt.Errorf("decode: %w", err))
	}
	return nil
}
