package emotion

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

	"moodvox/internal/audio"
	"moodvox/internal/fault"
)

func testArtifact(size int) audio.Artifact {
	return audio.NewArtifact([]byte(strings.Repeat("a", size)), audio.FormatWAV)
}

func TestClassifyUploadsAudioField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data;") {
			t.Fatalf("expected multipart content-type, got %q", r.Header.Get("Content-Type"))
		}

		mr, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("multipart reader: %v", err)
		}
		p, err := mr.NextPart()
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		defer p.Close()

		if p.FormName() != "audio" {
			t.Fatalf("expected form name audio, got %q", p.FormName())
		}
		if p.FileName() != "recording.wav" {
			t.Fatalf("expected filename recording.wav, got %q", p.FileName())
		}
		b, _ := io.ReadAll(p)
		if len(b) != 2048 {
			t.Fatalf("unexpected upload size %d", len(b))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"emotion":"Joy","confidence":0.9,"probabilities":{"joy":0.9,"sadness":0.1,"bogus":1}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL}, srv.Client())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	obs, err := c.Classify(context.Background(), testArtifact(2048))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Emotion != Happy || obs.Confidence != 0.9 || !obs.ObservedAt.Equal(fixed) {
		t.Fatalf("obs=%+v", obs)
	}
	if len(obs.Probabilities) != 2 || obs.Probabilities[Sad] != 0.1 {
		t.Fatalf("probabilities=%v", obs.Probabilities)
	}
}

func TestClassifyRejectsShortArtifactBeforeNetwork(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, MinBytes: 512}, srv.Client())
	_, err := c.Classify(context.Background(), testArtifact(100))
	if !errors.Is(err, fault.ErrBadInput) {
		t.Fatalf("expected BadInput, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("server must not be called, got %d hits", hits.Load())
	}
}

func TestClassifyErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   *fault.Error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, fault.ErrServiceUnavailable},
		{"rate limited", http.StatusTooManyRequests, ``, fault.ErrServiceUnavailable},
		{"unprocessable", http.StatusUnprocessableEntity, `{"error":"empty"}`, fault.ErrBadInput},
		{"bad request", http.StatusBadRequest, ``, fault.ErrBadInput},
		{"not json", http.StatusOK, `<html>`, fault.ErrMalformedResponse},
		{"no success flag", http.StatusOK, `{"emotion":"happy","confidence":0.5}`, fault.ErrMalformedResponse},
		{"reported failure", http.StatusOK, `{"success":false,"error":"model down"}`, fault.ErrServiceUnavailable},
		{"unknown label", http.StatusOK, `{"success":true,"emotion":"bored","confidence":0.5}`, fault.ErrMalformedResponse},
		{"confidence string", http.StatusOK, `{"success":true,"emotion":"sad","confidence":"high"}`, fault.ErrMalformedResponse},
		{"confidence range", http.StatusOK, `{"success":true,"emotion":"sad","confidence":1.5}`, fault.ErrMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{URL: srv.URL}, srv.Client())
			_, err := c.Classify(context.Background(), testArtifact(2048))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want.Kind, err)
			}
		})
	}
}

func TestClassifyTimeoutIsServiceUnavailable(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client())
	_, err := c.Classify(context.Background(), testArtifact(2048))
	if !errors.Is(err, fault.ErrServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestClassifyUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{URL: url}, nil)
	_, err := c.Classify(context.Background(), testArtifact(2048))
	if !errors.Is(err, fault.ErrServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]Emotion{
		"Happy":    Happy,
		" fear ":   Fearful,
		"SADNESS":  Sad,
		"surprise": Surprised,
	}
	for in, want := range cases {
		got, ok := Normalize(in)
		if !ok || got != want {
			t.Fatalf("Normalize(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := Normalize("meh"); ok {
		t.Fatalf("unknown labels must not normalize")
	}
}
