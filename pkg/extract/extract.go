// Package extract reads promotional entities off the campaign listing.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/campaign"
	"github.com/jmylchreest/promoscout/pkg/flow"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/site"
)

// MaxEntities caps how many grid items are read.
const MaxEntities = 15

// Per-selector wait budgets for item fields.
const (
	TitleBudget = 2000 * time.Millisecond
	PriceBudget = 1500 * time.Millisecond
)

// Pipeline extracts entities from the campaign grid.
type Pipeline struct {
	profile site.Extraction
	pacer   *pacing.Pacer
	log     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPacer sets the pacer used before harvesting.
func WithPacer(p *pacing.Pacer) Option {
	return func(pl *Pipeline) {
		pl.pacer = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		pl.log = l
	}
}

// New creates a Pipeline using the extraction selectors of profile.
func New(profile site.Profile, opts ...Option) *Pipeline {
	p := &Pipeline{profile: profile.Extraction}
	for _, opt := range opts {
		opt(p)
	}
	if p.pacer == nil {
		p.pacer = pacing.New()
	}
	if p.log == nil {
		p.log = logger.Component("extract")
	}
	return p
}

// Harvest reads up to MaxEntities grid items. A failure inside one item is
// recorded on that item's entity and never stops the loop; only an
// unauthenticated session or cancellation returns an error.
func (p *Pipeline) Harvest(ctx context.Context, pg page.Page, s flow.Session) ([]campaign.Entity, error) {
	if !s.Authenticated() {
		return nil, flow.ErrSessionStateInvalid
	}

	p.pacer.Settle(ctx, pg, pacing.BeforeHarvest)

	items := p.grid(ctx, pg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) > MaxEntities {
		p.log.Debug("capping grid", "found", len(items), "cap", MaxEntities)
		items = items[:MaxEntities]
	}

	entities := make([]campaign.Entity, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return entities, err
		}
		e := p.entity(ctx, i, item)
		if e.Failed() {
			p.log.Warn("entity extraction failed", "index", i, "error", e.ExtractionError)
		}
		entities = append(entities, e)
	}

	p.log.Info("grid harvested", "entities", len(entities))
	return entities, nil
}

// grid returns the items of the first structural selector with at least one
// match, or those of the generic class selector.
func (p *Pipeline) grid(ctx context.Context, pg page.Page) []page.Element {
	for _, expr := range p.profile.Grid {
		sel := page.Parse(expr)
		items, err := pg.Query(ctx, sel)
		if err != nil {
			p.log.Warn("grid query failed", "selector", sel, "error", err)
			continue
		}
		if len(items) > 0 {
			p.log.Debug("grid located", "selector", sel, "items", len(items))
			return items
		}
	}

	sel := page.Parse(p.profile.GridFallback)
	items, err := pg.Query(ctx, sel)
	if err != nil {
		p.log.Warn("generic grid query failed", "selector", sel, "error", err)
		return nil
	}
	p.log.Debug("generic grid", "selector", sel, "items", len(items))
	return items
}

func (p *Pipeline) entity(ctx context.Context, index int, item page.Element) (e campaign.Entity) {
	defer func() {
		if r := recover(); r != nil {
			e = campaign.Entity{Index: index, ExtractionError: fmt.Sprintf("panic: %v", r)}
		}
	}()

	e, err := p.extract(ctx, index, item)
	if err != nil {
		return campaign.Entity{Index: index, ExtractionError: err.Error()}
	}
	return e
}

func (p *Pipeline) extract(ctx context.Context, index int, item page.Element) (campaign.Entity, error) {
	e := campaign.Entity{Index: index}

	label, err := firstText(ctx, item, p.profile.Title, TitleBudget, strings.TrimSpace)
	if err != nil {
		return e, fmt.Errorf("title: %w", err)
	}
	e.Label = label

	if e.OriginalValue, err = firstText(ctx, item, p.profile.OriginalPrice, PriceBudget, SanitizePrice); err != nil {
		return e, fmt.Errorf("original price: %w", err)
	}
	if e.ReducedValue, err = firstText(ctx, item, p.profile.ReducedPrice, PriceBudget, SanitizePrice); err != nil {
		return e, fmt.Errorf("reduced price: %w", err)
	}
	if d, ok := Discount(e.OriginalValue, e.ReducedValue); ok {
		e.DiscountDelta = &d
	}

	for _, expr := range p.profile.Availability {
		matches, err := item.Query(ctx, page.Parse(expr))
		if err != nil {
			return e, fmt.Errorf("availability: %w", err)
		}
		if len(matches) > 0 {
			e.Available = true
			break
		}
	}
	return e, nil
}

// firstText returns the first non-empty normalized text among exprs, each
// waited for up to budget. Timeouts move on to the next selector; other
// errors are returned.
func firstText(ctx context.Context, item page.Element, exprs []string, budget time.Duration, normalize func(string) string) (string, error) {
	for _, expr := range exprs {
		el, err := item.WaitAttached(ctx, page.Parse(expr), budget)
		if page.IsTimeout(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		text, err := el.Text(ctx)
		if err != nil {
			return "", err
		}
		if v := normalize(text); v != "" {
			return v, nil
		}
	}
	return "", nil
}
