package llm

import (
	"fmt"
	"maps"
	"os"
	"slices"
)

// Factory creates a provider from config.
type Factory func(cfg Config) (Provider, error)

// DefaultModels maps provider names to their default models. A healing
// prompt is short and the answer is one line, so small models suffice.
var DefaultModels = map[string]string{
	"anthropic":  "claude-3-5-haiku-20241022",
	"openai":     "gpt-4o-mini",
	"openrouter": "openrouter/auto",
}

var factories = map[string]Factory{
	"anthropic":  func(cfg Config) (Provider, error) { return NewAnthropic(cfg) },
	"openai":     func(cfg Config) (Provider, error) { return NewOpenAI(cfg) },
	"openrouter": func(cfg Config) (Provider, error) { return NewOpenRouter(cfg) },
}

// NewProvider creates the named provider.
func NewProvider(name string, cfg Config) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %v)", name, AvailableProviders())
	}
	return factory(cfg)
}

// RegisterProvider adds or replaces a provider factory.
func RegisterProvider(name string, factory Factory) {
	factories[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	return slices.Sorted(maps.Keys(factories))
}

// keyEnv lists API key variables in detection priority order.
var keyEnv = []struct {
	provider string
	env      string
}{
	{"openrouter", "OPENROUTER_API_KEY"},
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
}

// DetectProvider picks a provider from the API keys present in the
// environment: OPENROUTER_API_KEY, then ANTHROPIC_API_KEY, then
// OPENAI_API_KEY. It returns empty strings when none is set.
func DetectProvider() (provider, apiKey string) {
	for _, k := range keyEnv {
		if key := os.Getenv(k.env); key != "" {
			return k.provider, key
		}
	}
	return "", ""
}

// APIKeyFromEnv returns provider's API key from its environment variable.
func APIKeyFromEnv(provider string) string {
	for _, k := range keyEnv {
		if k.provider == provider {
			return os.Getenv(k.env)
		}
	}
	return ""
}
