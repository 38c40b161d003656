// Package locator resolves a logical page target (a login button, a price
// field) to a live element by trying an ordered list of selectors, then a
// fuzzy text match, then an optional healing strategy.
package locator

import (
	"context"
	"log/slog"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// Wait budgets for the selector cascade.
const (
	FirstBudget = 3000 * time.Millisecond
	NextBudget  = 1500 * time.Millisecond
)

// Candidates describes one target: the selectors to try in order and the
// visible text to fall back to when none of them match.
type Candidates struct {
	Name         string
	Selectors    []page.Selector
	FallbackText string
}

// Via names the strategy that produced a match.
type Via string

const (
	ViaNone     Via = ""
	ViaCascade  Via = "cascade"
	ViaFallback Via = "fallback"
	ViaHealed   Via = "healed"
)

// Outcome is the result of one attempt.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeNotVisible Outcome = "not_visible"
	OutcomeError      Outcome = "error"
)

// Attempt records a single strategy tried during resolution.
type Attempt struct {
	Selector page.Selector
	Via      Via
	Budget   time.Duration
	Outcome  Outcome
	Err      error
}

// Resolution is the result of Resolve. A target that could not be found is
// a Resolution with a nil Element, never an error.
type Resolution struct {
	Element  page.Element
	Selector page.Selector
	Via      Via
	Attempts []Attempt
}

// Found reports whether an element was resolved.
func (r Resolution) Found() bool {
	return r.Element != nil
}

// Healer proposes a fresh selector for a target whose known selectors all
// failed.
type Healer interface {
	Heal(ctx context.Context, pg page.Page, c Candidates) (page.Selector, error)
}

// Resolver runs the cascade.
type Resolver struct {
	pacer       *pacing.Pacer
	healer      Healer
	log         *slog.Logger
	firstBudget time.Duration
	nextBudget  time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPacer sets the pacer used before the fuzzy fallback.
func WithPacer(p *pacing.Pacer) Option {
	return func(r *Resolver) {
		r.pacer = p
	}
}

// WithHealer enables healing as the last strategy.
func WithHealer(h Healer) Option {
	return func(r *Resolver) {
		r.healer = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// WithBudgets overrides the wait budgets of the first and later selectors.
func WithBudgets(first, next time.Duration) Option {
	return func(r *Resolver) {
		r.firstBudget = first
		r.nextBudget = next
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		firstBudget: FirstBudget,
		nextBudget:  NextBudget,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pacer == nil {
		r.pacer = pacing.New()
	}
	if r.log == nil {
		r.log = logger.Component("locator")
	}
	return r
}

// Resolve finds the first visible element for c within scope.
//
// Selectors are tried in order, the first waited on for the first budget and
// each later one for the next budget; the first visible match wins. When all
// fail, the fallback text and then the healer are tried.
func (r *Resolver) Resolve(ctx context.Context, scope page.Scope, c Candidates) Resolution {
	var res Resolution
	log := r.log.With("target", c.Name)

	for i, sel := range c.Selectors {
		if ctx.Err() != nil {
			return res
		}
		budget := r.nextBudget
		if i == 0 {
			budget = r.firstBudget
		}
		el, att := r.try(ctx, scope, sel, ViaCascade, budget)
		res.Attempts = append(res.Attempts, att)
		if el != nil {
			log.Debug("resolved", "selector", sel, "attempt", i+1)
			res.Element, res.Selector, res.Via = el, sel, ViaCascade
			return res
		}
		r.logMiss(log, att)
	}

	if c.FallbackText != "" && ctx.Err() == nil {
		el, att := r.fallback(ctx, scope, c.FallbackText)
		res.Attempts = append(res.Attempts, att)
		if el != nil {
			log.Warn("resolved by text fallback", "text", c.FallbackText)
			res.Element, res.Selector, res.Via = el, att.Selector, ViaFallback
			return res
		}
		r.logMiss(log, att)
	}

	if pg, ok := scope.(page.Page); ok && r.healer != nil && ctx.Err() == nil {
		sel, err := r.healer.Heal(ctx, pg, c)
		if err != nil {
			log.Warn("healing failed", "error", err)
			res.Attempts = append(res.Attempts, Attempt{Via: ViaHealed, Outcome: OutcomeError, Err: err})
			return res
		}
		el, att := r.try(ctx, scope, sel, ViaHealed, r.nextBudget)
		res.Attempts = append(res.Attempts, att)
		if el != nil {
			log.Warn("resolved by healed selector", "selector", sel)
			res.Element, res.Selector, res.Via = el, sel, ViaHealed
			return res
		}
		r.logMiss(log, att)
	}

	log.Debug("not found", "attempts", len(res.Attempts))
	return res
}

func (r *Resolver) try(ctx context.Context, scope page.Scope, sel page.Selector, via Via, budget time.Duration) (page.Element, Attempt) {
	att := Attempt{Selector: sel, Via: via, Budget: budget}
	el, err := scope.WaitVisible(ctx, sel, budget)
	switch {
	case err == nil && el != nil:
		att.Outcome = OutcomeMatched
		return el, att
	case err == nil, page.IsTimeout(err):
		att.Outcome = OutcomeNotVisible
	default:
		att.Outcome = OutcomeError
	}
	att.Err = err
	return nil, att
}

// fallback picks, among the innermost visible elements containing text, the
// one whose own text is closest to it.
func (r *Resolver) fallback(ctx context.Context, scope page.Scope, text string) (page.Element, Attempt) {
	sel := page.TextSelector(text)
	att := Attempt{Selector: sel, Via: ViaFallback}

	r.pacer.Pause(ctx, pacing.Fallback)

	matches, err := scope.Query(ctx, sel)
	if err != nil {
		att.Outcome, att.Err = OutcomeError, err
		return nil, att
	}

	want := page.FoldCase(text)
	var (
		best      page.Element
		bestScore = -1.0
	)
	for _, m := range matches {
		if ok, err := m.Visible(ctx); err != nil || !ok {
			continue
		}
		got, err := m.Text(ctx)
		if err != nil {
			continue
		}
		score := matchr.JaroWinkler(page.FoldCase(got), want, false)
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	if best == nil {
		att.Outcome = OutcomeNotVisible
		return nil, att
	}
	att.Outcome = OutcomeMatched
	return best, att
}

func (r *Resolver) logMiss(log *slog.Logger, att Attempt) {
	if att.Outcome == OutcomeError {
		log.Warn("strategy failed", "via", att.Via, "selector", att.Selector, "error", att.Err)
		return
	}
	log.Debug("no visible match", "via", att.Via, "selector", att.Selector, "budget", att.Budget)
}
