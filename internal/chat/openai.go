package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"moodvox/internal/conversation"
	"moodvox/internal/fault"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient asks a chat-completions model for a strict JSON reply.
type OpenAIClient struct {
	api    openai.Client
	model  string
	schema map[string]any
}

type structuredReply struct {
	Message      string             `json:"message" jsonschema:"description=Reply spoken to the user, two to four sentences"`
	Suggestions  []string           `json:"suggestions" jsonschema:"description=Up to three short wellness activities the user could try next"`
	MoodInsights structuredInsights `json:"mood_insights"`
}

type structuredInsights struct {
	Summary string   `json:"summary" jsonschema:"description=One sentence about how the user seems to feel"`
	Trend   string   `json:"trend" jsonschema:"enum=improving,enum=steady,enum=declining,enum=unknown"`
	Tips    []string `json:"tips"`
}

func NewOpenAIClient(cfg OpenAIConfig, httpClient *http.Client) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	schema, err := replySchema()
	if err != nil {
		return nil, fmt.Errorf("reply schema: %w", err)
	}

	return &OpenAIClient{
		api:    openai.NewClient(opts...),
		model:  model,
		schema: schema,
	}, nil
}

func replySchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&structuredReply{})

	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

func (c *OpenAIClient) Send(ctx context.Context, out conversation.Outbound) (Reply, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2+2*len(out.RecentTurns))
	messages = append(messages, openai.SystemMessage(SystemPrompt(out.MoodContext)))
	for _, t := range out.RecentTurns {
		messages = append(messages,
			openai.UserMessage(t.UserText),
			openai.AssistantMessage(t.AssistantText),
		)
	}
	messages = append(messages, openai.UserMessage(out.Message))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "assistant_reply",
					Schema: c.schema,
					Strict: param.NewOpt(true),
				},
			},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Reply{}, fault.New(fault.ServiceUnavailable, opSend, fmt.Sprintf("openai status %d", apiErr.StatusCode))
		}
		return Reply{}, fault.From(fault.ServiceUnavailable, opSend, err)
	}

	if len(resp.Choices) == 0 {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "empty message content")
	}

	log.Debug("Chat completion", "data", content)
	return decodeStructured(content)
}

func decodeStructured(content string) (Reply, error) {
	var sr structuredReply
	if err := json.Unmarshal([]byte(content), &sr); err != nil {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "unmarshal reply: "+err.Error())
	}
	if strings.TrimSpace(sr.Message) == "" {
		return Reply{}, fault.New(fault.MalformedResponse, opSend, "empty message")
	}

	reply := Reply{
		Message:     strings.TrimSpace(sr.Message),
		Suggestions: cleanSuggestions(sr.Suggestions),
	}
	if strings.TrimSpace(sr.MoodInsights.Summary) != "" {
		reply.MoodInsights = &MoodInsights{
			Summary: strings.TrimSpace(sr.MoodInsights.Summary),
			Trend:   sr.MoodInsights.Trend,
			Tips:    cleanSuggestions(sr.MoodInsights.Tips),
		}
	}
	return reply, nil
}
