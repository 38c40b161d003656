package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// PlaywrightLauncher launches Chromium through the Playwright driver. The
// driver and browsers must be installed (`playwright install chromium`).
type PlaywrightLauncher struct {
	config Config
}

// Launch starts Playwright and a Chromium browser context.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (page.Browser, error) {
	cfg := l.config
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     args(chromeFlags()),
	}
	if cfg.ChromePath != "" {
		opts.ExecutablePath = playwright.String(cfg.ChromePath)
	}
	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(cfg.UserAgent),
		Viewport:  &playwright.Size{Width: ViewportWidth, Height: ViewportHeight},
		Locale:    playwright.String("tr-TR"),
	})
	if err == nil {
		err = bctx.AddInitScript(playwright.Script{Content: playwright.String(MaskScript)})
	}
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("browser context: %w", err)
	}

	logger.Component("driver").Debug("browser started", "driver", NamePlaywright, "headless", cfg.Headless)
	return &playwrightBrowser{config: cfg, pw: pw, browser: browser, context: bctx}, nil
}

type playwrightBrowser struct {
	config  Config
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
}

func (b *playwrightBrowser) NewPage(ctx context.Context) (page.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &playwrightPage{page: p, timeout: b.config.Timeout}, nil
}

func (b *playwrightBrowser) Close() error {
	return errors.Join(b.browser.Close(), b.pw.Stop())
}

// millis converts the time left for an operation to Playwright's timeout.
func millis(ctx context.Context, limit time.Duration) *float64 {
	return playwright.Float(float64(budget(ctx, limit).Milliseconds()))
}

// pwErr maps Playwright errors to the page sentinels.
func pwErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return errors.Join(page.ErrTimeout, err)
	}
	return normalize(ctx, err)
}

type playwrightPage struct {
	page    playwright.Page
	timeout time.Duration
}

func pwQuery(ctx context.Context, loc playwright.Locator) ([]page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := loc.All()
	if err != nil {
		return nil, pwErr(ctx, err)
	}
	out := make([]page.Element, 0, len(all))
	for _, l := range all {
		out = append(out, &playwrightElement{loc: l})
	}
	return out, nil
}

func (p *playwrightPage) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	return pwQuery(ctx, p.page.Locator(sel.String()))
}

func (p *playwrightPage) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, true, func(ctx context.Context) ([]page.Element, error) {
		return p.Query(ctx, sel)
	})
}

func (p *playwrightPage) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, false, func(ctx context.Context) ([]page.Element, error) {
		return p.Query(ctx, sel)
	})
}

func loadState(state page.LoadState) *playwright.LoadState {
	switch state {
	case page.LoadLoad:
		return playwright.LoadStateLoad
	case page.LoadNetworkIdle:
		return playwright.LoadStateNetworkidle
	default:
		return playwright.LoadStateDomcontentloaded
	}
}

func waitUntil(state page.LoadState) *playwright.WaitUntilState {
	switch state {
	case page.LoadLoad:
		return playwright.WaitUntilStateLoad
	case page.LoadNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

func (p *playwrightPage) Goto(ctx context.Context, url string, until page.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil(until),
		Timeout:   millis(ctx, p.timeout),
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, pwErr(ctx, err))
	}
	return nil
}

func (p *playwrightPage) WaitForLoadState(ctx context.Context, state page.LoadState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(ctx, p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: millis(ctx, timeout),
	}))
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	return html, pwErr(ctx, err)
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: millis(ctx, p.timeout)})
	return buf, pwErr(ctx, err)
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

// actionTimeout bounds a single element action.
const actionTimeout = 5 * time.Second

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) limit(ctx context.Context) *float64 {
	return millis(ctx, actionTimeout)
}

func (e *playwrightElement) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	return pwQuery(ctx, e.loc.Locator(sel.String()))
}

func (e *playwrightElement) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, true, func(ctx context.Context) ([]page.Element, error) {
		return e.Query(ctx, sel)
	})
}

func (e *playwrightElement) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, false, func(ctx context.Context) ([]page.Element, error) {
		return e.Query(ctx, sel)
	})
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: e.limit(ctx)})
	return text, pwErr(ctx, err)
}

func (e *playwrightElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.loc.IsVisible()
	return ok, pwErr(ctx, err)
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(ctx, e.loc.Click(playwright.LocatorClickOptions{Timeout: e.limit(ctx)}))
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(ctx, e.loc.Fill(value, playwright.LocatorFillOptions{Timeout: e.limit(ctx)}))
}

func (e *playwrightElement) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(ctx, e.loc.Press(key, playwright.LocatorPressOptions{Timeout: e.limit(ctx)}))
}

func (e *playwrightElement) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(ctx, e.loc.Hover(playwright.LocatorHoverOptions{Timeout: e.limit(ctx)}))
}

var (
	_ page.Browser = (*playwrightBrowser)(nil)
	_ page.Page    = (*playwrightPage)(nil)
	_ page.Element = (*playwrightElement)(nil)
)
