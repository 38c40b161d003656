package heal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/promoscout/pkg/llm"
	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/page/htmlpage"
)

const storefront = `<html><head><title>Mağaza</title><script>track()</script>
<style>.x{}</style></head>
<body><header><button data-action="signin" aria-label="Üye girişi">Giriş</button></header>
<main><p>Merhaba</p></main></body></html>`

// scriptedProvider replies with a fixed text and records every request.
type scriptedProvider struct {
	reply    string
	err      error
	prompts  []llm.Prompt
}

func (p *scriptedProvider) Complete(_ context.Context, pr llm.Prompt) (*llm.Completion, error) {
	p.prompts = append(p.prompts, pr)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Completion{Text: p.reply, Model: "scripted"}, nil
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted" }

func loginTarget() locator.Candidates {
	return locator.Candidates{
		Name:         "login trigger",
		Selectors:    []page.Selector{page.XPath("//a[@id='login']")},
		FallbackText: "Hemen giriş yap",
	}
}

func storePage(t *testing.T) *htmlpage.Page {
	t.Helper()
	pg, err := htmlpage.Load("https://shop.test/", storefront)
	require.NoError(t, err)
	return pg
}

func TestHeal_Suggestion(t *testing.T) {
	provider := &scriptedProvider{reply: "```xpath\n//button[@data-action='signin']\n```"}
	h := New(provider)

	sel, err := h.Heal(context.Background(), storePage(t), loginTarget())
	require.NoError(t, err)
	require.Equal(t, page.XPath("//button[@data-action='signin']"), sel)

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	require.Contains(t, prompt.System, "XPath")
	require.Contains(t, prompt.User, `"login trigger"`)
	require.Contains(t, prompt.User, "xpath=//a[@id='login']")
	require.Contains(t, prompt.User, "Hemen giriş yap")
	require.Contains(t, prompt.User, `data-action="signin"`)
	require.NotContains(t, prompt.User, "track()")
}

func TestHeal_CachedPerTarget(t *testing.T) {
	provider := &scriptedProvider{reply: "//button[@data-action='signin']"}
	h := New(provider)
	pg := storePage(t)

	for range 3 {
		_, err := h.Heal(context.Background(), pg, loginTarget())
		require.NoError(t, err)
	}
	require.Len(t, provider.prompts, 1)

	other := loginTarget()
	other.Name = "submit button"
	_, err := h.Heal(context.Background(), pg, other)
	require.NoError(t, err)
	require.Len(t, provider.prompts, 2)
}

func TestHeal_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty", "  \n"},
		{"not xpath", "//button[@data-action="},
		{"already failed", "xpath=//a[@id='login']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{reply: tt.reply}
			h := New(provider)

			_, err := h.Heal(context.Background(), storePage(t), loginTarget())
			require.ErrorIs(t, err, ErrNoSuggestion)

			// failures are cached too
			_, err = h.Heal(context.Background(), storePage(t), loginTarget())
			require.ErrorIs(t, err, ErrNoSuggestion)
			require.Len(t, provider.prompts, 1)
		})
	}
}

func TestHeal_ProviderError(t *testing.T) {
	boom := errors.New("rate limited")
	h := New(&scriptedProvider{err: boom})

	_, err := h.Heal(context.Background(), storePage(t), loginTarget())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "scripted completion")
}

func TestHeal_CanceledNotCached(t *testing.T) {
	provider := &scriptedProvider{reply: "//button"}
	h := New(provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Heal(ctx, storePage(t), loginTarget())
	require.ErrorIs(t, err, context.Canceled)

	sel, err := h.Heal(context.Background(), storePage(t), loginTarget())
	require.NoError(t, err)
	require.Equal(t, page.XPath("//button"), sel)
}

func TestHeal_WithResolver(t *testing.T) {
	h := New(&scriptedProvider{reply: "//button[@aria-label='Üye girişi']"})
	r := locator.New(locator.WithPacer(pacing.New(pacing.WithScale(0))), locator.WithHealer(h))

	res := r.Resolve(context.Background(), storePage(t), loginTarget())
	require.True(t, res.Found())
	require.Equal(t, locator.ViaHealed, res.Via)
	require.Len(t, res.Attempts, 3)
}

func TestTrimHTML(t *testing.T) {
	got := TrimHTML(storefront, 0)
	require.True(t, strings.HasPrefix(got, "<header>"), got)
	require.NotContains(t, got, "<script")
	require.NotContains(t, got, "<style")
	require.NotContains(t, got, "\n")

	short := TrimHTML(storefront, 20)
	require.LessOrEqual(t, len(short), 20)
}

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"//a[@id='x']", "//a[@id='x']"},
		{"  `//a`  ", "//a"},
		{"```\n//a\n```", "//a"},
		{"```xpath\n//a\n```", "//a"},
		{"xpath=//a\nbecause it is stable", "//a"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseSuggestion(tt.reply), "reply %q", tt.reply)
	}
}
