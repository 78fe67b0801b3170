package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gtranslate "google.golang.org/api/translate/v2"
)

const (
	providerGoogle = "google"

	cloudTranslationScope = "https://www.googleapis.com/auth/cloud-translation"
)

// Google implements Translator over the Cloud Translation v2 API.
//
// With a key it authenticates by API key; without one it falls back to
// application default credentials.
type Google struct {
	svc    *gtranslate.Service
	logger *slog.Logger
}

var _ Translator = (*Google)(nil)

// NewGoogle creates a new Cloud Translation client.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := &Config{Provider: providerGoogle, Logger: slog.Default()}
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var copts []option.ClientOption
	switch {
	case cfg.Key != "":
		copts = append(copts, option.WithAPIKey(cfg.Key))
	case cfg.HTTPClient == nil:
		ts, err := google.DefaultTokenSource(ctx, cloudTranslationScope)
		if err != nil {
			return nil, wrap(providerGoogle, "credentials", err)
		}
		copts = append(copts, option.WithTokenSource(ts))
	}
	if cfg.Endpoint != "" {
		copts = append(copts, option.WithEndpoint(cfg.Endpoint))
	}
	if hc, ok := cfg.HTTPClient.(*http.Client); ok {
		copts = append(copts, option.WithHTTPClient(hc))
	}

	svc, err := gtranslate.NewService(ctx, copts...)
	if err != nil {
		return nil, wrap(providerGoogle, "init", err)
	}

	return &Google{
		svc:    svc,
		logger: cfg.Logger.With("component", "translate.google"),
	}, nil
}

// Translate translates text from -> to.
func (g *Google) Translate(ctx context.Context, text, from, to string) (string, error) {
	if IsIdentity(text, from, to) {
		return text, nil
	}

	resp, err := g.svc.Translations.List([]string{text}, to).
		Source(from).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", googleError("translate", err)
	}
	if len(resp.Translations) == 0 {
		return "", wrap(providerGoogle, "translate", fmt.Errorf("empty response"))
	}

	g.logger.Debug("translated", "from", from, "to", to, "chars", len(text))
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}

// Detect returns the Cloud Translation language code for text.
func (g *Google) Detect(ctx context.Context, text string) (string, error) {
	resp, err := g.svc.Detections.List([]string{text}).Context(ctx).Do()
	if err != nil {
		return "", googleError("detect", err)
	}
	if len(resp.Detections) == 0 || len(resp.Detections[0]) == 0 || resp.Detections[0][0] == nil {
		return "", wrap(providerGoogle, "detect", ErrNoDetection)
	}
	return resp.Detections[0][0].Language, nil
}

func googleError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Provider: providerGoogle}
	}
	return wrap(providerGoogle, op, err)
}
