package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// ChatCompletions completes prompts against OpenAI or any endpoint speaking
// its chat completions protocol, OpenRouter included.
type ChatCompletions struct {
	client openai.Client
	name   string
	model  string
}

// NewOpenAI creates a provider for the OpenAI API.
func NewOpenAI(cfg Config) (*ChatCompletions, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingKey)
	}
	return newChatCompletions("openai", cfg), nil
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) (*ChatCompletions, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrMissingKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}
	var extra []option.RequestOption
	if cfg.Attribution != "" {
		extra = append(extra, option.WithHeader("X-Title", cfg.Attribution))
	}
	return newChatCompletions("openrouter", cfg, extra...), nil
}

func newChatCompletions(name string, cfg Config, extra ...option.RequestOption) *ChatCompletions {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.Retries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &ChatCompletions{
		client: openai.NewClient(append(opts, extra...)...),
		name:   name,
		model:  modelOrDefault(name, cfg.Model),
	}
}

// Complete sends p at temperature zero.
func (c *ChatCompletions) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	start := time.Now()

	var messages []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(p.maxTokens()),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices", c.name)
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		Truncated:    choice.FinishReason == "length",
		Elapsed:      time.Since(start),
	}, nil
}

// Name implements Provider.
func (c *ChatCompletions) Name() string { return c.name }

// Model implements Provider.
func (c *ChatCompletions) Model() string { return c.model }

var _ Provider = (*ChatCompletions)(nil)
