package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestAzure(t *testing.T, h http.HandlerFunc) *Azure {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	az, err := NewAzure(
		WithKey("test-key"),
		WithEndpoints(srv.URL+"/stt", srv.URL+"/tts"),
		WithRetry(1, time.Millisecond),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewAzure: %v", err)
	}
	return az
}

func TestNewAzureValidation(t *testing.T) {
	if _, err := NewAzure(WithRegion("eastus")); !errors.Is(err, ErrNoKey) {
		t.Errorf("err = %v, want ErrNoKey", err)
	}
	if _, err := NewAzure(WithKey("k")); !errors.Is(err, ErrNoRegion) {
		t.Errorf("err = %v, want ErrNoRegion", err)
	}

	az, err := NewAzure(WithKey("k"), WithRegion("eastus"))
	if err != nil {
		t.Fatalf("NewAzure: %v", err)
	}
	if !strings.HasPrefix(az.sttURL, "https://eastus.stt.speech.microsoft.com/") {
		t.Errorf("sttURL = %q", az.sttURL)
	}
	if !strings.HasPrefix(az.ttsURL, "https://eastus.tts.speech.microsoft.com/") {
		t.Errorf("ttsURL = %q", az.ttsURL)
	}
}

func TestAzureRecognize(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Outcome
		text    string
		wantErr bool
	}{
		{"success", `{"RecognitionStatus":"Success","DisplayText":"Hello doctor."}`, OutcomeRecognized, "Hello doctor.", false},
		{"blank text", `{"RecognitionStatus":"Success","DisplayText":"  "}`, OutcomeNoMatch, "", false},
		{"no match", `{"RecognitionStatus":"NoMatch"}`, OutcomeNoMatch, "", false},
		{"initial silence", `{"RecognitionStatus":"InitialSilenceTimeout"}`, OutcomeNoMatch, "", false},
		{"error status", `{"RecognitionStatus":"Error"}`, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			az := newTestAzure(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/stt" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if got := r.URL.Query().Get("language"); got != "ta-IN" {
					t.Errorf("language = %q", got)
				}
				if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
					t.Errorf("key header = %q", got)
				}
				if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "samplerate=16000") {
					t.Errorf("Content-Type = %q", ct)
				}
				io.WriteString(w, tt.body)
			})

			res, err := az.Recognize(context.Background(), []byte("RIFF"), 16000, "ta-IN")
			if tt.wantErr {
				if !errors.Is(err, ErrRecognitionFailed) {
					t.Errorf("err = %v, want ErrRecognitionFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Recognize: %v", err)
			}
			if res.Outcome != tt.want || res.Text != tt.text {
				t.Errorf("Result = %+v, want %v %q", res, tt.want, tt.text)
			}
		})
	}
}

func TestAzureUnauthorizedNotRetried(t *testing.T) {
	var hits atomic.Int32
	az := newTestAzure(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := az.Recognize(context.Background(), nil, 16000, "en-IN")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() {
		t.Fatalf("err = %v, want unauthorized APIError", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestAzureRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	az := newTestAzure(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte{1, 0, 2, 0})
	})

	audio, err := az.Synthesize(context.Background(), "hi", "en-IN-NeerjaNeural", "en-IN")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(audio.Audio) != 4 || audio.SampleRate != 16000 {
		t.Errorf("audio = %d bytes at %d", len(audio.Audio), audio.SampleRate)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestAzureSynthesizeRequest(t *testing.T) {
	az := newTestAzure(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Microsoft-OutputFormat"); got != "raw-16khz-16bit-mono-pcm" {
			t.Errorf("output format = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "name='ta-IN-PallaviNeural'") {
			t.Errorf("ssml missing voice: %s", body)
		}
		if !strings.Contains(string(body), "fever &amp; cough") {
			t.Errorf("ssml not escaped: %s", body)
		}
		w.Write(make([]byte, 3200))
	})

	audio, err := az.Synthesize(context.Background(), "fever & cough", "ta-IN-PallaviNeural", "ta-IN")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.Duration() != 100*time.Millisecond {
		t.Errorf("Duration = %v", audio.Duration())
	}
}

func TestAzureSynthesizeEmpty(t *testing.T) {
	az := newTestAzure(t, func(w http.ResponseWriter, r *http.Request) {})

	if _, err := az.Synthesize(context.Background(), "hi", "v", "en-IN"); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestBuildSSML(t *testing.T) {
	got := string(BuildSSML("<b>", "te-IN-MohanNeural", "te-IN"))
	want := "<speak version='1.0' xml:lang='te-IN'><voice xml:lang='te-IN' name='te-IN-MohanNeural'>&lt;b&gt;</voice></speak>"
	if got != want {
		t.Errorf("BuildSSML =\n%s\nwant\n%s", got, want)
	}
}
