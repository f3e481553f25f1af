package emotion

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

	"moodvox/internal/audio"
	"moodvox/internal/fault"
	"moodvox/pkg/formdata"
)

const (
	DefaultMinBytes = 1024
	DefaultTimeout  = 8 * time.Second

	opClassify = "classify"
)

type ClientConfig struct {
	URL      string
	MinBytes int
	Timeout  time.Duration
}

// Client talks to the voice-emotion classifier. It keeps no state between
// calls.
type Client struct {
	url      string
	minBytes int
	timeout  time.Duration
	http     *http.Client
	now      func() time.Time
}

func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		url:      strings.TrimSpace(cfg.URL),
		minBytes: cfg.MinBytes,
		timeout:  cfg.Timeout,
		http:     httpClient,
		now:      time.Now,
	}
}

// Classify uploads the artifact and returns the normalized observation.
// Every error is a *fault.Error of kind BadInput, ServiceUnavailable or
// MalformedResponse.
func (c *Client) Classify(ctx context.Context, a audio.Artifact) (Observation, error) {
	if a.Size() < c.minBytes {
		return Observation{}, fault.New(fault.BadInput, opClassify,
			fmt.Sprintf("recording too short to analyze: %d bytes (min %d)", a.Size(), c.minBytes))
	}
	if c.url == "" {
		return Observation{}, fault.New(fault.ServiceUnavailable, opClassify, "classifier url not configured")
	}

	body, contentType, err := formdata.AudioBody("audio", a)
	if err != nil {
		return Observation{}, fault.From(fault.BadInput, opClassify, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Observation{}, fault.From(fault.ServiceUnavailable, opClassify, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Observation{}, fault.New(fault.ServiceUnavailable, opClassify, "timed out after "+c.timeout.String())
		}
		return Observation{}, fault.From(fault.ServiceUnavailable, opClassify, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Observation{}, fault.From(fault.ServiceUnavailable, opClassify, err)
	}

	if kind, bad := statusKind(resp.StatusCode); bad {
		log.Warn("Classifier rejected request", "status", resp.StatusCode, "body", truncate(string(raw), 200))
		return Observation{}, fault.New(kind, opClassify, fmt.Sprintf("status %d", resp.StatusCode))
	}

	return c.parse(raw)
}

func (c *Client) parse(raw []byte) (Observation, error) {
	if !gjson.ValidBytes(raw) {
		return Observation{}, fault.New(fault.MalformedResponse, opClassify, "response is not json")
	}
	res := gjson.ParseBytes(raw)

	success := res.Get("success")
	if success.Type != gjson.True && success.Type != gjson.False {
		return Observation{}, fault.New(fault.MalformedResponse, opClassify, "missing success flag")
	}
	if !success.Bool() {
		return Observation{}, fault.New(fault.ServiceUnavailable, opClassify, "classifier reported failure: "+res.Get("error").String())
	}

	label := res.Get("emotion")
	if label.Type != gjson.String {
		return Observation{}, fault.New(fault.MalformedResponse, opClassify, "emotion is not a string")
	}
	emo, ok := Normalize(label.String())
	if !ok {
		return Observation{}, fault.New(fault.MalformedResponse, opClassify, "unknown emotion "+label.String())
	}

	conf := res.Get("confidence")
	if conf.Type != gjson.Number {
		return Observation{}, fault.New(fault.MalformedResponse, opClassify, "confidence is not a number")
	}
	if conf.Float() < 0 || conf.Float() > 1 {
		return Observation{}, fault.New(fault.MalformedResponse, opClassify, "confidence out of range: "+conf.Raw)
	}

	obs := Observation{
		Emotion:    emo,
		Confidence: conf.Float(),
		ObservedAt: c.now(),
	}

	if probs := res.Get("probabilities"); probs.IsObject() {
		obs.Probabilities = make(map[Emotion]float64)
		probs.ForEach(func(key, value gjson.Result) bool {
			if e, ok := Normalize(key.String()); ok && value.Type == gjson.Number {
				obs.Probabilities[e] = value.Float()
			}
			return true
		})
	}

	return obs, nil
}

func statusKind(code int) (fault.Kind, bool) {
	switch {
	case code >= 200 && code < 300:
		return 0, false
	case code == http.StatusBadRequest,
		code == http.StatusRequestEntityTooLarge,
		code == http.StatusUnsupportedMediaType,
		code == http.StatusUnprocessableEntity:
		return fault.BadInput, true
	default:
		return fault.ServiceUnavailable, true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
