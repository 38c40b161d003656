// Package pacing inserts randomized think-time between page interactions and
// waits for the page to quiesce after them.
package pacing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// Range is a closed interval a pause duration is drawn from uniformly.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Fixed returns a range that always yields d.
func Fixed(d time.Duration) Range {
	return Range{Min: d, Max: d}
}

// Named pause windows used across the harvesting flow.
var (
	Default        = Range{500 * time.Millisecond, 1200 * time.Millisecond}
	Short          = Range{200 * time.Millisecond, 500 * time.Millisecond}
	Typing         = Range{300 * time.Millisecond, 600 * time.Millisecond}
	Fallback       = Range{300 * time.Millisecond, 700 * time.Millisecond}
	AfterTrigger   = Range{800 * time.Millisecond, 1500 * time.Millisecond}
	AfterSubmit    = Range{1500 * time.Millisecond, 2300 * time.Millisecond}
	BeforeNavigate = Range{500 * time.Millisecond, 1000 * time.Millisecond}
	AfterNavigate  = Range{1200 * time.Millisecond, 2000 * time.Millisecond}
	BeforeHarvest  = Range{700 * time.Millisecond, 1300 * time.Millisecond}
	MenuReveal     = Fixed(800 * time.Millisecond)
)

// Stability budgets for Settle.
const (
	NetworkIdleBudget = 8 * time.Second
	DOMReadyBudget    = 5 * time.Second
)

// Pacer draws pause durations and performs stability waits.
type Pacer struct {
	scale float64
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration)
	log   *slog.Logger
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithScale multiplies every pause. Zero disables pauses entirely; stability
// waits still run.
func WithScale(f float64) Option {
	return func(p *Pacer) {
		if f >= 0 {
			p.scale = f
		}
	}
}

// WithSeed makes the drawn durations reproducible.
func WithSeed(seed uint64) Option {
	return func(p *Pacer) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithSleeper replaces the clock-based sleep, e.g. to record durations.
func WithSleeper(fn func(ctx context.Context, d time.Duration)) Option {
	return func(p *Pacer) {
		p.sleep = fn
	}
}

// WithLogger sets the logger used for absorbed wait failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pacer) {
		p.log = l
	}
}

// New creates a Pacer.
func New(opts ...Option) *Pacer {
	p := &Pacer{
		scale: 1,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Component("pacing")
	}
	return p
}

// Duration draws a pause from r, scaled.
func (p *Pacer) Duration(r Range) time.Duration {
	lo, hi := r.Min, r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	d := lo
	if span := hi - lo; span > 0 {
		if p.rng != nil {
			d += time.Duration(p.rng.Int64N(int64(span) + 1))
		} else {
			d += time.Duration(rand.Int64N(int64(span) + 1))
		}
	}
	return time.Duration(float64(d) * p.scale)
}

// Pause sleeps for a duration drawn from r. It returns early when ctx ends.
func (p *Pacer) Pause(ctx context.Context, r Range) {
	d := p.Duration(r)
	if d <= 0 {
		return
	}
	p.sleep(ctx, d)
}

// Settle pauses for a duration drawn from r, then waits for the network to
// go idle within NetworkIdleBudget, falling back to DOM readiness within
// DOMReadyBudget. Wait failures are logged and absorbed.
func (p *Pacer) Settle(ctx context.Context, pg page.Page, r Range) {
	p.Pause(ctx, r)
	if ctx.Err() != nil {
		return
	}

	err := pg.WaitForLoadState(ctx, page.LoadNetworkIdle, NetworkIdleBudget)
	if err == nil {
		return
	}
	p.log.Debug("network did not go idle", "budget", NetworkIdleBudget, "error", err)

	if err := pg.WaitForLoadState(ctx, page.LoadDOMContentLoaded, DOMReadyBudget); err != nil {
		p.log.Debug("document not ready", "budget", DOMReadyBudget, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
