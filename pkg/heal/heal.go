// Package heal asks an LLM for a replacement selector when every known
// selector for a page target has failed. Suggestions are validated before
// use and cached per target for the lifetime of the Healer, so one run
// pays for at most one completion per target.
package heal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/antchfx/xpath"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/llm"
	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// DefaultMaxContentSize caps the HTML sent with a request.
const DefaultMaxContentSize = 48 * 1024

var (
	// ErrNoSuggestion indicates the model reply held no usable selector.
	ErrNoSuggestion = errors.New("heal: no usable selector suggested")
)

type entry struct {
	sel page.Selector
	err error
}

// Healer implements locator.Healer with an llm.Provider.
type Healer struct {
	provider       llm.Provider
	maxContentSize int
	log            *slog.Logger

	mu    sync.Mutex
	cache map[string]entry
}

// Option configures a Healer.
type Option func(*Healer)

// WithMaxContentSize limits the HTML sent to the model.
func WithMaxContentSize(n int) Option {
	return func(h *Healer) {
		h.maxContentSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Healer) {
		h.log = l
	}
}

// New creates a Healer backed by provider.
func New(provider llm.Provider, opts ...Option) *Healer {
	h := &Healer{
		provider:       provider,
		maxContentSize: DefaultMaxContentSize,
		cache:          make(map[string]entry),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Component("heal")
	}
	return h
}

// Heal returns a suggested XPath selector for target c on pg. The outcome
// for a target, success or failure, is remembered and returned on later
// calls without contacting the provider again.
func (h *Healer) Heal(ctx context.Context, pg page.Page, c locator.Candidates) (page.Selector, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.cache[c.Name]; ok {
		return e.sel, e.err
	}

	sel, err := h.suggest(ctx, pg, c)
	if ctx.Err() == nil {
		h.cache[c.Name] = entry{sel: sel, err: err}
	}
	return sel, err
}

func (h *Healer) suggest(ctx context.Context, pg page.Page, c locator.Candidates) (page.Selector, error) {
	body, err := pg.HTML(ctx)
	if err != nil {
		return page.Selector{}, fmt.Errorf("read page html: %w", err)
	}

	resp, err := h.provider.Complete(ctx, llm.Prompt{
		System:    systemPrompt,
		User:      BuildPrompt(c, body, h.maxContentSize),
		MaxTokens: 256,
	})
	if err != nil {
		return page.Selector{}, fmt.Errorf("%s completion: %w", h.provider.Name(), err)
	}

	if resp.Truncated {
		h.log.Warn("suggestion cut off by token limit", "target", c.Name, "model", resp.Model)
	}
	expr := ParseSuggestion(resp.Text)
	if expr == "" {
		return page.Selector{}, ErrNoSuggestion
	}
	if _, err := xpath.Compile(expr); err != nil {
		return page.Selector{}, fmt.Errorf("%w: %q: %w", ErrNoSuggestion, expr, err)
	}
	sel := page.XPath(expr)
	if slices.Contains(c.Selectors, sel) {
		return page.Selector{}, fmt.Errorf("%w: %q already failed", ErrNoSuggestion, expr)
	}

	h.log.Info("selector suggested",
		"target", c.Name,
		"selector", sel,
		"provider", h.provider.Name(),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration", resp.Elapsed)
	return sel, nil
}

var _ locator.Healer = (*Healer)(nil)
