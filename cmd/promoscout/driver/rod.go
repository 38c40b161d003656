package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// ignoredResources do not count towards network idle.
var ignoredResources = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeMedia,
	proto.NetworkResourceTypeFont,
}

// RodLauncher launches Chrome through go-rod.
type RodLauncher struct {
	config Config
}

// Launch starts the browser process and connects to it.
func (l *RodLauncher) Launch(ctx context.Context) (page.Browser, error) {
	cfg := l.config
	ln := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(true).
		Leakless(true)
	if cfg.ChromePath != "" {
		ln = ln.Bin(cfg.ChromePath)
	}
	for _, f := range chromeFlags() {
		if f.value == "" {
			ln = ln.Set(flags.Flag(f.name))
			continue
		}
		ln = ln.Set(flags.Flag(f.name), f.value)
	}

	u, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	logger.Component("driver").Debug("browser started", "driver", NameRod, "headless", cfg.Headless)
	return &rodBrowser{config: cfg, browser: browser, launcher: ln}, nil
}

type rodBrowser struct {
	config   Config
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (b *rodBrowser) NewPage(ctx context.Context) (page.Page, error) {
	p, err := stealth.Page(b.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if _, err := p.EvalOnNewDocument(MaskScript); err != nil {
		return nil, fmt.Errorf("failed to install mask script: %w", err)
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.config.UserAgent}); err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	// Detach from the creation context; every call scopes its own.
	return &rodPage{page: p.Context(context.Background()), timeout: b.config.Timeout}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func rodQuery(ctx context.Context, sel page.Selector, css func(string) (rod.Elements, error), xpath func(string) (rod.Elements, error)) ([]page.Element, error) {
	find := css
	if sel.Kind == page.KindXPath {
		find = xpath
	}
	els, err := find(sel.Expr)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sel, normalize(ctx, err))
	}
	out := make([]page.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	pg := p.page.Context(ctx)
	return rodQuery(ctx, sel, pg.Elements, pg.ElementsX)
}

func (p *rodPage) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, true, func(ctx context.Context) ([]page.Element, error) {
		return p.Query(ctx, sel)
	})
}

func (p *rodPage) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, false, func(ctx context.Context) ([]page.Element, error) {
		return p.Query(ctx, sel)
	})
}

func lifecycleEvent(state page.LoadState) proto.PageLifecycleEventName {
	switch state {
	case page.LoadLoad:
		return proto.PageLifecycleEventNameLoad
	case page.LoadNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameDOMContentLoaded
	}
}

func (p *rodPage) Goto(ctx context.Context, url string, until page.LoadState) error {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	pg := p.page.Context(navCtx)

	wait := pg.WaitNavigation(lifecycleEvent(until))
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, normalize(ctx, err))
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("navigate %s: %w", url, normalize(ctx, err))
	}
	return nil
}

func (p *rodPage) WaitForLoadState(ctx context.Context, state page.LoadState, timeout time.Duration) error {
	if state == page.LoadNetworkIdle {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		p.page.Context(waitCtx).WaitRequestIdle(networkQuiet, nil, nil, ignoredResources)()
		if err := waitCtx.Err(); err != nil {
			return normalize(ctx, err)
		}
		return nil
	}
	return page.Poll(ctx, timeout, page.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		res, err := p.page.Context(ctx).Eval(`() => document.readyState`)
		if err != nil {
			return false, err
		}
		ready := res.Value.Str()
		if state == page.LoadLoad {
			return ready == "complete", nil
		}
		return ready != "loading", nil
	})
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	return html, normalize(ctx, err)
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := p.page.Context(ctx).Screenshot(false, nil)
	return buf, normalize(ctx, err)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	el := e.el.Context(ctx)
	return rodQuery(ctx, sel, el.Elements, el.ElementsX)
}

func (e *rodElement) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, true, func(ctx context.Context) ([]page.Element, error) {
		return e.Query(ctx, sel)
	})
}

func (e *rodElement) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, false, func(ctx context.Context) ([]page.Element, error) {
		return e.Query(ctx, sel)
	})
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	return text, normalize(ctx, err)
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	ok, err := e.el.Context(ctx).Visible()
	return ok, normalize(ctx, err)
}

func (e *rodElement) Click(ctx context.Context) error {
	return normalize(ctx, e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return normalize(ctx, err)
	}
	return normalize(ctx, el.Input(value))
}

func (e *rodElement) Press(ctx context.Context, key string) error {
	k := input.Enter
	switch key {
	case "Enter":
	case "Tab":
		k = input.Tab
	case "Escape":
		k = input.Escape
	default:
		return fmt.Errorf("%w: key %q", page.ErrUnsupported, key)
	}
	return normalize(ctx, e.el.Context(ctx).Type(k))
}

func (e *rodElement) Hover(ctx context.Context) error {
	return normalize(ctx, e.el.Context(ctx).Hover())
}

var (
	_ page.Browser = (*rodBrowser)(nil)
	_ page.Page    = (*rodPage)(nil)
	_ page.Element = (*rodElement)(nil)
)
