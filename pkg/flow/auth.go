package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/site"
)

// Option configures an Authenticator or a Navigator.
type Option func(*deps)

type deps struct {
	resolver *locator.Resolver
	pacer    *pacing.Pacer
	log      *slog.Logger
}

// WithResolver sets the locator used for every target.
func WithResolver(r *locator.Resolver) Option {
	return func(d *deps) {
		d.resolver = r
	}
}

// WithPacer sets the pacer used between steps.
func WithPacer(p *pacing.Pacer) Option {
	return func(d *deps) {
		d.pacer = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *deps) {
		d.log = l
	}
}

func newDeps(component string, opts []Option) deps {
	var d deps
	for _, opt := range opts {
		opt(&d)
	}
	if d.pacer == nil {
		d.pacer = pacing.New()
	}
	if d.resolver == nil {
		d.resolver = locator.New(locator.WithPacer(d.pacer))
	}
	if d.log == nil {
		d.log = logger.Component(component)
	}
	return d
}

// Authenticator logs in to the storefront.
type Authenticator struct {
	deps
	profile site.Profile
}

// NewAuthenticator creates an Authenticator for profile.
func NewAuthenticator(profile site.Profile, opts ...Option) *Authenticator {
	return &Authenticator{deps: newDeps("auth", opts), profile: profile}
}

// Authenticate opens the storefront, submits the login form and returns an
// authenticated session. A missing login trigger is reported as
// ErrAuthTriggerNotFound; nothing is retried.
func (a *Authenticator) Authenticate(ctx context.Context, pg page.Page, creds Credentials) (Session, error) {
	a.enter(StateInit)

	if err := pg.Goto(ctx, a.profile.BaseURL, page.LoadDOMContentLoaded); err != nil {
		return Session{}, fmt.Errorf("%w: open %s: %w", ErrNavigationFailed, a.profile.BaseURL, err)
	}
	a.pacer.Settle(ctx, pg, pacing.Default)

	trigger := a.resolver.Resolve(ctx, pg, a.profile.Auth.Trigger.Candidates("login trigger"))
	if !trigger.Found() {
		if err := ctx.Err(); err != nil {
			return Session{}, err
		}
		return Session{}, ErrAuthTriggerNotFound
	}
	a.enter(StateTriggerLocated)

	if err := trigger.Element.Click(ctx); err != nil {
		return Session{}, fmt.Errorf("%w: click login trigger: %w", ErrInteraction, err)
	}
	a.pacer.Settle(ctx, pg, pacing.AfterTrigger)

	identifier, err := a.field(ctx, pg, a.profile.Auth.Identifier, a.profile.Auth.IdentifierGeneric, "identifier field")
	if err != nil {
		return Session{}, err
	}
	if err := identifier.Fill(ctx, creds.Identifier); err != nil {
		return Session{}, fmt.Errorf("%w: fill identifier: %w", ErrInteraction, err)
	}
	a.pacer.Pause(ctx, pacing.Short)

	password, err := a.field(ctx, pg, a.profile.Auth.Password, a.profile.Auth.PasswordGeneric, "password field")
	if err != nil {
		return Session{}, err
	}
	if err := password.Fill(ctx, creds.Secret); err != nil {
		return Session{}, fmt.Errorf("%w: fill password: %w", ErrInteraction, err)
	}
	a.pacer.Pause(ctx, pacing.Typing)
	a.enter(StateFieldsPopulated)

	if submit := a.resolver.Resolve(ctx, pg, a.profile.Auth.Submit.Candidates("submit control")); submit.Found() {
		if err := submit.Element.Click(ctx); err != nil {
			return Session{}, fmt.Errorf("%w: click submit: %w", ErrInteraction, err)
		}
	} else {
		if err := ctx.Err(); err != nil {
			return Session{}, err
		}
		a.log.Warn("submit control not found, pressing Enter in password field")
		if err := password.Press(ctx, "Enter"); err != nil {
			return Session{}, fmt.Errorf("%w: submit with Enter: %w", ErrInteraction, err)
		}
	}
	a.enter(StateSubmitted)

	a.pacer.Settle(ctx, pg, pacing.AfterSubmit)
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	a.enter(StateAuthenticated)
	return Session{authenticated: true, origin: "login"}, nil
}

// field resolves a form field, degrading to the generic structural selector
// when the cascade finds nothing.
func (a *Authenticator) field(ctx context.Context, pg page.Page, c site.Cascade, generic, name string) (page.Element, error) {
	res := a.resolver.Resolve(ctx, pg, c.Candidates(name))
	if res.Found() {
		return res.Element, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.log.Warn("cascade exhausted, using generic selector", "target", name, "selector", generic)
	el, err := pg.WaitVisible(ctx, page.Parse(generic), locator.NextBudget)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %w", ErrInteraction, name, err)
	}
	return el, nil
}

func (a *Authenticator) enter(s AuthState) {
	a.log.Debug("auth state", "state", s)
}
