package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/jmylchreest/promoscout/internal/logger"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// networkQuiet is how long no request may be in flight for networkidle.
const networkQuiet = 500 * time.Millisecond

// Element handles are data-ps-node attributes stamped on the DOM node. The
// per-document token makes handles from a previous document unresolvable.
const queryJS = `function(scope, kind, expr) {
	const root = scope ? document.querySelector('[data-ps-node="' + scope + '"]') : document;
	if (!root) return {ok: false};
	const nodes = [];
	if (kind === 'xpath') {
		const r = document.evaluate(expr, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (let i = 0; i < r.snapshotLength; i++) {
			const n = r.snapshotItem(i);
			if (n.nodeType === Node.ELEMENT_NODE) nodes.push(n);
		}
	} else {
		nodes.push(...root.querySelectorAll(expr));
	}
	window.__psDoc = window.__psDoc || Math.random().toString(36).slice(2);
	window.__psSeq = window.__psSeq || 0;
	const ids = nodes.map(n => n.dataset.psNode || (n.dataset.psNode = window.__psDoc + '-' + (++window.__psSeq)));
	return {ok: true, ids: ids};
}`

const elementJS = `function(id, op) {
	const n = document.querySelector('[data-ps-node="' + id + '"]');
	if (!n || !n.isConnected) return {ok: false};
	switch (op) {
	case 'text':
		return {ok: true, text: n.innerText || n.textContent || ''};
	case 'visible': {
		const s = getComputedStyle(n);
		const r = n.getBoundingClientRect();
		return {ok: true, visible: s.visibility !== 'hidden' && s.display !== 'none' && (r.width > 0 || r.height > 0)};
	}
	case 'point': {
		n.scrollIntoView({block: 'center', inline: 'center'});
		const r = n.getBoundingClientRect();
		return {ok: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
	}
	case 'clear':
		n.focus();
		if ('value' in n) {
			n.value = '';
			n.dispatchEvent(new Event('input', {bubbles: true}));
		}
		return {ok: true};
	case 'focus':
		n.focus();
		return {ok: true};
	}
	return {ok: false};
}`

type evalResult struct {
	OK      bool     `json:"ok"`
	IDs     []string `json:"ids"`
	Text    string   `json:"text"`
	Visible bool     `json:"visible"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
}

// ChromedpLauncher launches Chrome through chromedp.
type ChromedpLauncher struct {
	config Config
}

// Launch starts the browser process.
func (l *ChromedpLauncher) Launch(ctx context.Context) (page.Browser, error) {
	cfg := l.config
	log := logger.Component("driver").With("driver", NameChromedp)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(ViewportWidth, ViewportHeight),
	)
	for _, f := range chromeFlags() {
		var v any = true
		if f.value != "" {
			v = f.value
		}
		opts = append(opts, chromedp.Flag(f.name, v))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// The first Run allocates the browser; it must not carry a deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	log.Debug("browser started", "headless", cfg.Headless, "chrome", cfg.ChromePath)
	return &chromedpBrowser{
		config:        cfg,
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

type chromedpBrowser struct {
	config        Config
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func (b *chromedpBrowser) NewPage(ctx context.Context) (page.Page, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, page.ErrClosed
	}
	tab, cancel := chromedp.NewContext(b.ctx)
	p := &chromedpPage{
		tab:      tab,
		cancel:   cancel,
		timeout:  b.config.Timeout,
		inflight: make(map[network.RequestID]struct{}),
		activity: time.Now(),
	}
	chromedp.ListenTarget(tab, p.observe)

	// Creates the target; same deadline caveat as the browser's first Run.
	if err := chromedp.Run(tab,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(MaskScript).Do(ctx)
			return err
		}),
		chromedp.EmulateViewport(ViewportWidth, ViewportHeight),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}
	return p, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancelBrowser()
	b.cancelAlloc()
	return err
}

type chromedpPage struct {
	tab     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	activity time.Time
}

func (p *chromedpPage) observe(ev any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(p.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(p.inflight, e.RequestID)
	default:
		return
	}
	p.activity = time.Now()
}

func (p *chromedpPage) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight) == 0 && time.Since(p.activity) >= networkQuiet
}

// run executes actions on the tab, bounded by ctx.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if d, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, d)
		defer cancelDeadline()
	}
	return normalize(ctx, chromedp.Run(runCtx, actions...))
}

func (p *chromedpPage) eval(ctx context.Context, fn string, args ...any) (evalResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return evalResult{}, err
	}
	var res evalResult
	err = p.run(ctx, chromedp.Evaluate(fmt.Sprintf("(%s).apply(null, %s)", fn, raw), &res))
	return res, err
}

func (p *chromedpPage) query(ctx context.Context, scope string, sel page.Selector) ([]page.Element, error) {
	res, err := p.eval(ctx, queryJS, scope, sel.Kind.String(), sel.Expr)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sel, err)
	}
	if !res.OK {
		return nil, page.ErrDetached
	}
	out := make([]page.Element, 0, len(res.IDs))
	for _, id := range res.IDs {
		out = append(out, &chromedpElement{page: p, id: id})
	}
	return out, nil
}

func (p *chromedpPage) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	return p.query(ctx, "", sel)
}

func (p *chromedpPage) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, true, func(ctx context.Context) ([]page.Element, error) {
		return p.query(ctx, "", sel)
	})
}

func (p *chromedpPage) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, false, func(ctx context.Context) ([]page.Element, error) {
		return p.query(ctx, "", sel)
	})
}

// Goto issues Page.navigate directly and then polls for until. The chromedp
// Navigate action always blocks on the load event, which slow third-party
// assets can hold back past the navigation timeout.
func (p *chromedpPage) Goto(ctx context.Context, url string, until page.LoadState) error {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// The marker lives on the old window only, so its absence proves the new
	// document has committed before readyState is trusted.
	_ = p.run(navCtx, chromedp.Evaluate(`window.__psNav = true`, nil))

	var loader string
	err := p.run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, loaderID, errorText, _, err := cdppage.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load failed: %s", errorText)
		}
		loader = string(loaderID)
		return nil
	}))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, normalize(ctx, err))
	}

	// An empty loader means a same-document navigation; the marker survives it.
	committed := loader == ""
	err = page.Poll(navCtx, budget(navCtx, p.timeout), page.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		var st struct {
			Ready  string `json:"ready"`
			Marked bool   `json:"marked"`
		}
		if err := p.run(ctx, chromedp.Evaluate(`({ready: document.readyState, marked: !!window.__psNav})`, &st)); err != nil {
			return false, err
		}
		if !committed && st.Marked {
			return false, nil
		}
		committed = true
		return loadReached(until, st.Ready, p.idle()), nil
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, normalize(ctx, err))
	}
	return nil
}

func (p *chromedpPage) WaitForLoadState(ctx context.Context, state page.LoadState, timeout time.Duration) error {
	return page.Poll(ctx, timeout, page.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		var ready string
		if err := p.run(ctx, chromedp.Evaluate(`document.readyState`, &ready)); err != nil {
			return false, err
		}
		return loadReached(state, ready, p.idle()), nil
	})
}

// loadReached maps a wait policy onto document.readyState and network quiet.
func loadReached(state page.LoadState, ready string, idle bool) bool {
	switch state {
	case page.LoadDOMContentLoaded:
		return ready == "interactive" || ready == "complete"
	case page.LoadLoad:
		return ready == "complete"
	default:
		return ready == "complete" && idle
	}
}

func (p *chromedpPage) URL() string {
	var u string
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.run(ctx, chromedp.Location(&u))
	return u
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (p *chromedpPage) Close() error {
	err := chromedp.Cancel(p.tab)
	p.cancel()
	return err
}

type chromedpElement struct {
	page *chromedpPage
	id   string
}

func (e *chromedpElement) call(ctx context.Context, op string) (evalResult, error) {
	res, err := e.page.eval(ctx, elementJS, e.id, op)
	if err != nil {
		return res, err
	}
	if !res.OK {
		return res, page.ErrDetached
	}
	return res, nil
}

func (e *chromedpElement) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	return e.page.query(ctx, e.id, sel)
}

func (e *chromedpElement) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, true, func(ctx context.Context) ([]page.Element, error) {
		return e.page.query(ctx, e.id, sel)
	})
}

func (e *chromedpElement) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	return waitFor(ctx, timeout, false, func(ctx context.Context) ([]page.Element, error) {
		return e.page.query(ctx, e.id, sel)
	})
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	res, err := e.call(ctx, "text")
	return res.Text, err
}

func (e *chromedpElement) Visible(ctx context.Context) (bool, error) {
	res, err := e.call(ctx, "visible")
	return res.Visible, err
}

func (e *chromedpElement) Click(ctx context.Context) error {
	res, err := e.call(ctx, "point")
	if err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.MouseClickXY(res.X, res.Y))
}

func (e *chromedpElement) Fill(ctx context.Context, value string) error {
	if _, err := e.call(ctx, "clear"); err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.KeyEvent(value))
}

func (e *chromedpElement) Press(ctx context.Context, key string) error {
	if _, err := e.call(ctx, "focus"); err != nil {
		return err
	}
	switch key {
	case "Enter":
		key = kb.Enter
	case "Tab":
		key = kb.Tab
	case "Escape":
		key = kb.Escape
	}
	return e.page.run(ctx, chromedp.KeyEvent(key))
}

func (e *chromedpElement) Hover(ctx context.Context) error {
	res, err := e.call(ctx, "point")
	if err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, res.X, res.Y).Do(ctx)
	}))
}

var (
	_ page.Browser = (*chromedpBrowser)(nil)
	_ page.Page    = (*chromedpPage)(nil)
	_ page.Element = (*chromedpElement)(nil)
)
