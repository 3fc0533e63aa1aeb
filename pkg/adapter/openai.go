package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zen-systems/codefactory/pkg/transcript"
)

const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models and for
// OpenAI-compatible endpoints such as Groq and OpenRouter.
type OpenAIAdapter struct {
	name   string
	models []string
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigError{Adapter: "openai", Reason: "API key is required"}
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{
		name:   "openai",
		models: []string{"gpt-4.1", "gpt-4.1-mini", "gpt-4o"},
		client: client,
	}, nil
}

// NewGroqAdapter creates an adapter for Groq's OpenAI-compatible endpoint.
func NewGroqAdapter(apiKey string) (*OpenAIAdapter, error) {
	return NewCompatibleAdapter("groq", groqBaseURL, apiKey, []string{"llama-3.3-70b-versatile"})
}

// NewOpenRouterAdapter creates an adapter for OpenRouter.
func NewOpenRouterAdapter(apiKey string) (*OpenAIAdapter, error) {
	return NewCompatibleAdapter("openrouter", openRouterBaseURL, apiKey, []string{"meta-llama/llama-3.2-3b-instruct"},
		option.WithHeader("HTTP-Referer", "http://localhost"),
		option.WithHeader("X-Title", "codefactory"),
	)
}

// NewCompatibleAdapter creates an adapter for any endpoint speaking the
// OpenAI chat completions protocol.
func NewCompatibleAdapter(name, baseURL, apiKey string, models []string, extra ...option.RequestOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigError{Adapter: name, Reason: "API key is required"}
	}
	if baseURL == "" {
		return nil, &ConfigError{Adapter: name, Reason: "base URL is required"}
	}

	opts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)}, extra...)
	return &OpenAIAdapter{
		name:   name,
		models: models,
		client: openai.NewClient(opts...),
	}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Models returns the list of supported models.
func (a *OpenAIAdapter) Models() []string {
	return append([]string(nil), a.models...)
}

// Generate sends the conversation with its original roles.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	system, turns := SplitSystem(req.System, req.Messages)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range turns {
		switch m.Role {
		case transcript.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		default:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	if len(turns) == 0 {
		messages = append(messages, openai.UserMessage(FlattenConversation(nil)))
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(req.maxTokens())),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, wrapStatus(a.name, apiErr.StatusCode, fmt.Errorf("%s API error: %w", a.name, err))
		}
		return nil, fmt.Errorf("%s API error: %w", a.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", a.name)
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Adapter: a.name,
		Model:   req.Model,
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
