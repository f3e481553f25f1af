package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"moodvox/internal/conversation"
	"moodvox/internal/fault"
)

const (
	DefaultTimeout = 8 * time.Second

	opSend = "chat.send"
)

// HTTPClient posts {message, context} to the wellness backend's chat
// endpoint and expects {success, data:{message, suggestions?, moodInsights?}}.
type HTTPClient struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

func NewHTTPClient(url string, timeout time.Duration, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		http:    httpClient,
	}
}

type wireRequest struct {
	Message string      `json:"message"`
	Context wireContext `json:"context"`
}

type wireContext struct {
	conversation.MoodContext
	ConversationHistory []wireTurn `json:"conversationHistory"`
}

type wireTurn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Mood      string    `json:"mood"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *HTTPClient) Send(ctx context.Context, out conversation.Outbound) (Reply, error) {
	if c.url == "" {
		return Reply{}, fault.New(fault.ServiceUnavailable, opSend, "chat url not configured")
	}

	req := wireRequest{
		Message: out.Message,
		Context: wireContext{MoodContext: out.MoodContext},
	}
	for _, t := range out.RecentTurns {
		req.Context.ConversationHistory = append(req.Context.ConversationHistory, wireTurn{
			User:      t.UserText,
			Assistant: t.AssistantText,
			Mood:      string(t.MoodAtTime),
			Timestamp: t.Timestamp,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fault.From(fault.ServiceUnavailable, opSend, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fault.From(fault.ServiceUnavailable, opSend, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Reply{}, fault.New(fault.ServiceUnavailable, opSend, "timed out after "+c.timeout.String())
		}
		return Reply{}, fault.From(fault.ServiceUnavailable, opSend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reply{}, fault.From(fault.ServiceUnavailable, opSend, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Chat service returned error status", "status", resp.StatusCode)
		return Reply{}, fault.New(fault.ServiceUnavailable, opSend, fmt.Sprintf("status %d", resp.StatusCode))
	}

	return parseReply(raw)
}

func parseReply(raw []byte) (Reply, error) {
	if !gjson.ValidBytes(raw) {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "response is not json")
	}
	res := gjson.ParseBytes(raw)

	if res.Get("success").Type != gjson.True {
		return Reply{}, fault.New(fault.ServiceUnavailable, opSend, "service reported failure: "+res.Get("error").String())
	}

	data := res.Get("data")
	if !data.IsObject() {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "missing data object")
	}

	msg := data.Get("message")
	if msg.Type != gjson.String || strings.TrimSpace(msg.String()) == "" {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "empty message")
	}

	reply := Reply{Message: strings.TrimSpace(msg.String())}

	if s := data.Get("suggestions"); s.IsArray() {
		var items []string
		for _, v := range s.Array() {
			if v.Type == gjson.String {
				items = append(items, v.String())
			}
		}
		reply.Suggestions = cleanSuggestions(items)
	} else {
		reply.Suggestions = []string{}
	}

	if mi := data.Get("moodInsights"); mi.IsObject() {
		var insights MoodInsights
		if err := json.Unmarshal([]byte(mi.Raw), &insights); err == nil {
			reply.MoodInsights = &insights
		} else {
			log.Debug("Ignoring unparseable mood insights", "err", err)
		}
	}

	return reply, nil
}
