package flow

import (
	"context"
	"fmt"

	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/site"
)

// Navigator reaches the campaign listing from a logged-in page.
type Navigator struct {
	deps
	profile site.Profile
}

// NewNavigator creates a Navigator for profile.
func NewNavigator(profile site.Profile, opts ...Option) *Navigator {
	return &Navigator{deps: newDeps("navigate", opts), profile: profile}
}

// Navigate tries the campaign link, then the hover menu, then the campaign
// URL, and returns the route that worked. Only a failure of the last route
// is an error.
func (n *Navigator) Navigate(ctx context.Context, pg page.Page, s Session) (Route, error) {
	if !s.Authenticated() {
		return "", ErrSessionStateInvalid
	}

	n.pacer.Pause(ctx, pacing.BeforeNavigate)

	route, err := n.navigate(ctx, pg)
	if err != nil {
		return "", err
	}

	n.pacer.Settle(ctx, pg, pacing.AfterNavigate)
	n.log.Info("campaign listing reached", "route", route, "url", pg.URL())
	return route, nil
}

func (n *Navigator) navigate(ctx context.Context, pg page.Page) (Route, error) {
	err := n.directLink(ctx, pg)
	if err == nil {
		return RouteDirectLink, nil
	}
	n.log.Debug("direct link unavailable", "error", err)

	err = n.hoverMenu(ctx, pg)
	if err == nil {
		return RouteHoverMenu, nil
	}
	n.log.Debug("hover menu unavailable", "error", err)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := n.profile.CampaignURL()
	n.log.Warn("falling back to direct url", "url", target)
	if err := pg.Goto(ctx, target, page.LoadDOMContentLoaded); err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrNavigationFailed, target, err)
	}
	return RouteDirectURL, nil
}

func (n *Navigator) directLink(ctx context.Context, pg page.Page) error {
	res := n.resolver.Resolve(ctx, pg, n.profile.Navigation.CampaignLink.Candidates("campaign link"))
	if !res.Found() {
		return errNotFound("campaign link")
	}
	return res.Element.Click(ctx)
}

func (n *Navigator) hoverMenu(ctx context.Context, pg page.Page) error {
	menu := n.resolver.Resolve(ctx, pg, single("menu trigger", n.profile.Navigation.MenuTrigger))
	if !menu.Found() {
		return errNotFound("menu trigger")
	}
	if err := menu.Element.Hover(ctx); err != nil {
		return err
	}
	n.pacer.Pause(ctx, pacing.MenuReveal)

	item := n.resolver.Resolve(ctx, pg, single("menu item", n.profile.Navigation.MenuItem))
	if !item.Found() {
		return errNotFound("menu item")
	}
	return item.Element.Click(ctx)
}

func single(name, expr string) locator.Candidates {
	return locator.Candidates{Name: name, Selectors: []page.Selector{page.Parse(expr)}}
}

func errNotFound(target string) error {
	return fmt.Errorf("%s not found", target)
}
