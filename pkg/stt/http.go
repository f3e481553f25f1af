package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"moodvox/internal/fault"
	"moodvox/pkg/formdata"
)

const DefaultTimeout = 8 * time.Second

// Remote posts the clip as multipart field "audio" and expects
// {success, text, confidence}.
type Remote struct {
	url      string
	timeout  time.Duration
	minBytes int
	http     *http.Client
}

func NewRemote(url string, timeout time.Duration, httpClient *http.Client) *Remote {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{url: strings.TrimSpace(url), timeout: timeout, http: httpClient}
}

// WithMinBytes rejects clips shorter than n bytes as BadInput before any
// upload. Zero disables the check.
func (r *Remote) WithMinBytes(n int) *Remote {
	r.minBytes = n
	return r
}

func (r *Remote) Transcribe(ctx context.Context, a Audio) (Transcript, error) {
	if n := len(a.Bytes()); n < r.minBytes {
		return Transcript{}, fault.New(fault.BadInput, opTranscribe,
			fmt.Sprintf("recording too short to transcribe: %d bytes (min %d)", n, r.minBytes))
	}
	if r.url == "" {
		return Transcript{}, fault.New(fault.ServiceUnavailable, opTranscribe, "stt url not configured")
	}

	body, contentType, err := formdata.AudioBody("audio", a)
	if err != nil {
		return Transcript{}, fault.From(fault.BadInput, opTranscribe, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return Transcript{}, fault.From(fault.ServiceUnavailable, opTranscribe, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Transcript{}, fault.New(fault.ServiceUnavailable, opTranscribe, "timed out after "+r.timeout.String())
		}
		return Transcript{}, fault.From(fault.ServiceUnavailable, opTranscribe, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Transcript{}, fault.From(fault.ServiceUnavailable, opTranscribe, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnsupportedMediaType:
		return Transcript{}, fault.New(fault.BadInput, opTranscribe, fmt.Sprintf("status %d", resp.StatusCode))
	default:
		log.Warn("STT service returned error status", "status", resp.StatusCode)
		return Transcript{}, fault.New(fault.ServiceUnavailable, opTranscribe, fmt.Sprintf("status %d", resp.StatusCode))
	}

	return parseTranscript(raw)
}

func parseTranscript(raw []byte) (Transcript, error) {
	if !gjson.ValidBytes(raw) {
		return Transcript{}, fault.New(fault.MalformedResponse, opTranscribe, "response is not json")
	}
	res := gjson.ParseBytes(raw)

	if res.Get("success").Type != gjson.True {
		return Transcript{}, fault.New(fault.ServiceUnavailable, opTranscribe, "stt reported failure: "+res.Get("error").String())
	}

	text := res.Get("text")
	if text.Type != gjson.String {
		return Transcript{}, fault.New(fault.MalformedResponse, opTranscribe, "text is not a string")
	}

	t := Transcript{
		Text:     strings.TrimSpace(text.String()),
		Language: res.Get("language").String(),
	}
	if c := res.Get("confidence"); c.Type == gjson.Number {
		t.Confidence = c.Float()
	}
	return t, nil
}
