package translate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newGoogleServer(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGoogle(context.Background(),
		WithEndpoint(srv.URL+"/language/translate/"),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewGoogle() error = %v", err)
	}
	return g
}

func TestGoogle_Translate(t *testing.T) {
	g := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v2") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("target") != "ta" || r.Form.Get("source") != "en" || r.Form.Get("q") == "" {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"translations":[{"translatedText":"ஓய்வு எடுங்கள் &amp; தண்ணீர் குடியுங்கள்"}]}}`))
	})

	got, err := g.Translate(context.Background(), "Rest & drink water", "en", "ta")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "ஓய்வு எடுங்கள் & தண்ணீர் குடியுங்கள்" {
		t.Errorf("Translate() = %q", got)
	}
}

func TestGoogle_Identity(t *testing.T) {
	g := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	got, err := g.Translate(context.Background(), "hello", "en", "en")
	if err != nil || got != "hello" {
		t.Errorf("Translate() = %q, %v", got, err)
	}
}

func TestGoogle_Detect(t *testing.T) {
	g := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/detect") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"detections":[[{"language":"ta","confidence":0.9}]]}}`))
	})

	got, err := g.Detect(context.Background(), "வணக்கம்")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ta" {
		t.Errorf("Detect() = %q", got)
	}
}

func TestGoogle_APIError(t *testing.T) {
	g := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	})

	_, err := g.Translate(context.Background(), "x", "en", "te")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Provider != providerGoogle {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
