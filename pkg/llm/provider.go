// Package llm wraps the hosted model APIs used for selector healing behind a
// single-turn completion interface. Healing asks for one short XPath answer,
// so there is no conversation state, streaming or tool use.
package llm

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxTokens bounds a completion when the prompt sets no limit.
const DefaultMaxTokens = 512

// ErrMissingKey is returned by constructors given no API key.
var ErrMissingKey = errors.New("API key required")

// Prompt is one system instruction plus one user message.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

func (p Prompt) maxTokens() int64 {
	if p.MaxTokens > 0 {
		return int64(p.MaxTokens)
	}
	return DefaultMaxTokens
}

// Completion is a provider's reply.
type Completion struct {
	Text         string
	Model        string // as reported by the API; routers may pick another
	InputTokens  int
	OutputTokens int
	Truncated    bool // the token limit cut the reply short
	Elapsed      time.Duration
}

// Provider completes prompts against one hosted model.
type Provider interface {
	Complete(ctx context.Context, p Prompt) (*Completion, error)

	// Name returns the registry name ("anthropic", "openai", "openrouter").
	Name() string

	// Model returns the configured model.
	Model() string
}

// Config configures a provider.
type Config struct {
	APIKey  string
	BaseURL string // empty means the vendor endpoint
	Model   string // empty means DefaultModels[name]
	Retries int
	Timeout time.Duration

	// Attribution is sent as X-Title on OpenRouter requests.
	Attribution string
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Retries:     2,
		Timeout:     30 * time.Second,
		Attribution: "promoscout",
	}
}

func modelOrDefault(name, model string) string {
	if model != "" {
		return model
	}
	return DefaultModels[name]
}
