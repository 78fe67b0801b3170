package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newAzureServer(t *testing.T, handler http.HandlerFunc) (*Azure, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewAzure(
		WithKey("test-key"),
		WithRegion("centralindia"),
		WithEndpoint(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewAzure() error = %v", err)
	}
	return a, srv
}

func TestNewAzure_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{"no key", nil, ErrNoKey},
		{"bad endpoint", []Option{WithKey("k"), WithEndpoint("not a url")}, ErrNoEndpoint},
		{"empty endpoint", []Option{WithKey("k"), WithEndpoint("")}, ErrNoEndpoint},
		{"ok", []Option{WithKey("k")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAzure(tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewAzure() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAzure_Translate(t *testing.T) {
	a, _ := newAzureServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q, want /translate", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api-version") != "3.0" || q.Get("from") != "ta" || q.Get("to") != "en" {
			t.Errorf("query = %v", q)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
			t.Errorf("key header = %q", got)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Region"); got != "centralindia" {
			t.Errorf("region header = %q", got)
		}
		if r.Header.Get("X-ClientTraceId") == "" {
			t.Error("missing trace id")
		}

		var body []textItem
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body) != 1 || body[0].Text != "எனக்கு தலைவலி" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`[{"translations":[{"text":"I have a headache","to":"en"}]}]`))
	})

	got, err := a.Translate(context.Background(), "எனக்கு தலைவலி", "ta", "en")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "I have a headache" {
		t.Errorf("Translate() = %q", got)
	}
}

func TestAzure_GlobalRegionSendsNoHeader(t *testing.T) {
	for _, region := range []string{"", "global", "Global"} {
		t.Run(region, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, ok := r.Header["Ocp-Apim-Subscription-Region"]; ok {
					t.Errorf("region header sent for %q", region)
				}
				w.Write([]byte(`[{"translations":[{"text":"ok","to":"en"}]}]`))
			}))
			defer srv.Close()

			a, err := NewAzure(WithKey("k"), WithRegion(region), WithEndpoint(srv.URL+"/"), WithHTTPClient(srv.Client()))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := a.Translate(context.Background(), "x", "te", "en"); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestAzure_IdentityMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	a, _ := newAzureServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	tests := []struct {
		text, from, to string
	}{
		{"hello", "en", "en"},
		{"", "ta", "en"},
		{"   ", "te", "en"},
	}
	for _, tt := range tests {
		got, err := a.Translate(context.Background(), tt.text, tt.from, tt.to)
		if err != nil {
			t.Fatalf("Translate(%q) error = %v", tt.text, err)
		}
		if got != tt.text {
			t.Errorf("Translate(%q) = %q", tt.text, got)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestAzure_APIError(t *testing.T) {
	a, _ := newAzureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401000,"message":"invalid subscription key"}}`))
	})

	_, err := a.Translate(context.Background(), "hola", "es", "en")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Code != 401000 {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Message != "invalid subscription key" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.IsRetryable() {
		t.Error("401 should not be retryable")
	}
}

func TestAzure_EmptyResponse(t *testing.T) {
	a, _ := newAzureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	got, err := a.Translate(context.Background(), "x", "ta", "en")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "x" {
		t.Errorf("Translate() = %q, want input text", got)
	}
}

func TestAzure_Detect(t *testing.T) {
	a, _ := newAzureServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"language":"te","score":0.98}]`))
	})

	got, err := a.Detect(context.Background(), "నాకు జ్వరం ఉంది")
	if err != nil {
		t.Fatal(err)
	}
	if got != "te" {
		t.Errorf("Detect() = %q, want te", got)
	}
}
