// Package translate converts patient text to and from the pivot language.
//
// Providers are stateless request/response clients. None of them retry;
// callers decide whether a failed translation is worth another attempt.
package translate

import (
	"context"
	"strings"

	"github.com/teslashibe/go-interpreter/pkg/lang"
)

// Translator translates text between translation service language codes.
type Translator interface {
	// Translate returns text in language to. It makes no network call when
	// from equals to or text is blank.
	Translate(ctx context.Context, text, from, to string) (string, error)

	// Detect returns the service's language code for text.
	Detect(ctx context.Context, text string) (string, error)
}

// IsIdentity reports whether translating text from -> to is a no-op.
func IsIdentity(text, from, to string) bool {
	return from == to || strings.TrimSpace(text) == ""
}

// DetectSupported detects the language of text and maps it onto table.
// Any failure, or a language outside the table, yields fallback.
func DetectSupported(ctx context.Context, t Translator, text string, table lang.Table, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	code, err := t.Detect(ctx, text)
	if err != nil {
		return fallback
	}
	l, ok := table.ByTranslatorCode(code)
	if !ok {
		return fallback
	}
	return l.Code
}
