// Package htmlpage implements page.Page over static HTML documents.
//
// A Page serves a fixed set of documents keyed by URL. Queries run against
// the parsed DOM (XPath through htmlquery, CSS through goquery); links and
// form submissions navigate between documents of the set. Nothing renders
// asynchronously, so a wait either succeeds at once or reports
// page.ErrTimeout without sleeping. It backs snapshot replay and lets the
// whole harvesting flow run in tests without a browser.
package htmlpage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/promoscout/pkg/page"
)

// ErrNoDocument is returned when navigating to a URL outside the page set.
var ErrNoDocument = errors.New("htmlpage: no document for url")

// Op names a recorded page interaction.
type Op string

const (
	OpGoto         Op = "goto"
	OpQuery        Op = "query"
	OpWaitVisible  Op = "wait_visible"
	OpWaitAttached Op = "wait_attached"
	OpLoadState    Op = "load_state"
	OpText         Op = "text"
	OpVisible      Op = "visible"
	OpClick        Op = "click"
	OpFill         Op = "fill"
	OpPress        Op = "press"
	OpHover        Op = "hover"
)

// Action is one recorded call against the page.
type Action struct {
	Op      Op
	Target  string // selector, URL or element description
	Value   string
	Timeout time.Duration
}

// FaultFunc is consulted before every operation. A non-nil return is
// reported as that operation's error. n is the element the operation acts
// on, or nil for page-level operations.
type FaultFunc func(op Op, n *html.Node) error

// Option configures a Page.
type Option func(*Page)

// WithFault installs a fault injector.
func WithFault(f FaultFunc) Option {
	return func(p *Page) {
		p.fault = f
	}
}

// Page is a page.Page over an in-memory set of documents.
type Page struct {
	docs  map[string]string
	fault FaultFunc

	mu      sync.Mutex
	url     string
	doc     *html.Node
	gen     int
	closed  bool
	actions []Action
}

// New returns a page serving docs (URL → HTML). No document is loaded until
// Goto is called.
func New(docs map[string]string, opts ...Option) *Page {
	p := &Page{docs: make(map[string]string, len(docs))}
	for u, body := range docs {
		p.docs[normalizeURL(u)] = body
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load returns a page with a single document already loaded at rawURL.
func Load(rawURL, body string, opts ...Option) (*Page, error) {
	p := New(map[string]string{rawURL: body}, opts...)
	if err := p.Goto(context.Background(), rawURL, page.LoadDOMContentLoaded); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.actions = nil
	p.mu.Unlock()
	return p, nil
}

// Actions returns a copy of the recorded interactions.
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Action, len(p.actions))
	copy(out, p.actions)
	return out
}

// Goto loads the document registered for rawURL.
func (p *Page) Goto(ctx context.Context, rawURL string, until page.LoadState) error {
	p.record(Action{Op: OpGoto, Target: rawURL, Value: string(until)})
	if err := p.check(ctx, OpGoto, nil); err != nil {
		return err
	}
	return p.load(rawURL)
}

func (p *Page) load(rawURL string) error {
	body, ok := p.docs[normalizeURL(rawURL)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDocument, rawURL)
	}
	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("htmlpage: parse %s: %w", rawURL, err)
	}
	p.mu.Lock()
	p.url = rawURL
	p.doc = doc
	p.gen++
	p.mu.Unlock()
	return nil
}

// WaitForLoadState succeeds immediately once a document is loaded.
func (p *Page) WaitForLoadState(ctx context.Context, state page.LoadState, timeout time.Duration) error {
	p.record(Action{Op: OpLoadState, Target: string(state), Timeout: timeout})
	if err := p.check(ctx, OpLoadState, nil); err != nil {
		return err
	}
	if p.document() == nil {
		return fmt.Errorf("%w: no document loaded", page.ErrTimeout)
	}
	return nil
}

// URL returns the current document address.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// HTML serializes the current document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := p.check(ctx, "", nil); err != nil {
		return "", err
	}
	doc := p.document()
	if doc == nil {
		return "", nil
	}
	return htmlquery.OutputHTML(doc, true), nil
}

// Screenshot is not available for static documents.
func (p *Page) Screenshot(context.Context) ([]byte, error) {
	return nil, page.ErrUnsupported
}

// Close marks the page closed; later calls return page.ErrClosed.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Query returns the current matches of sel.
func (p *Page) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	p.record(Action{Op: OpQuery, Target: sel.String()})
	if err := p.check(ctx, OpQuery, nil); err != nil {
		return nil, err
	}
	doc := p.document()
	if doc == nil {
		return nil, nil
	}
	return p.query(doc, sel)
}

// WaitVisible returns the first visible match of sel or page.ErrTimeout.
func (p *Page) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	p.record(Action{Op: OpWaitVisible, Target: sel.String(), Timeout: timeout})
	if err := p.check(ctx, OpWaitVisible, nil); err != nil {
		return nil, err
	}
	return p.waitVisible(p.document(), sel, timeout)
}

// WaitAttached returns the first match of sel or page.ErrTimeout.
func (p *Page) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	p.record(Action{Op: OpWaitAttached, Target: sel.String(), Timeout: timeout})
	if err := p.check(ctx, OpWaitAttached, nil); err != nil {
		return nil, err
	}
	return p.waitAttached(p.document(), sel, timeout)
}

func (p *Page) waitVisible(root *html.Node, sel page.Selector, timeout time.Duration) (page.Element, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %s within %s", page.ErrTimeout, sel, timeout)
	}
	matches, err := p.query(root, sel)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if isVisible(m.(*element).n) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s within %s", page.ErrTimeout, sel, timeout)
}

func (p *Page) waitAttached(root *html.Node, sel page.Selector, timeout time.Duration) (page.Element, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %s within %s", page.ErrTimeout, sel, timeout)
	}
	matches, err := p.query(root, sel)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s within %s", page.ErrTimeout, sel, timeout)
	}
	return matches[0], nil
}

func (p *Page) query(root *html.Node, sel page.Selector) ([]page.Element, error) {
	var nodes []*html.Node
	switch {
	case sel.Text != "":
		nodes = matchText(root, sel.Text)
	case sel.Kind == page.KindXPath:
		found, err := htmlquery.QueryAll(root, sel.Expr)
		if err != nil {
			return nil, fmt.Errorf("htmlpage: invalid xpath %q: %w", sel.Expr, err)
		}
		for _, n := range found {
			if n.Type == html.ElementNode {
				nodes = append(nodes, n)
			}
		}
	case sel.Kind == page.KindCSS:
		doc := goquery.NewDocumentFromNode(root)
		nodes = doc.Find(sel.Expr).Nodes
	default:
		return nil, fmt.Errorf("htmlpage: unknown selector kind %v", sel.Kind)
	}

	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	out := make([]page.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{p: p, n: n, gen: gen})
	}
	return out, nil
}

// matchText mirrors page.TextSelector in Go. antchfx/xpath translates byte
// by byte, so multibyte capitals such as "Ş" never fold through the XPath.
func matchText(root *html.Node, text string) []*html.Node {
	needle := page.FoldCase(text)
	contains := func(n *html.Node) bool {
		return strings.Contains(page.FoldCase(htmlquery.InnerText(n)), needle)
	}

	top := root
	for top.Parent != nil {
		top = top.Parent
	}
	body := htmlquery.FindOne(top, "//body")
	if body == nil {
		return nil
	}

	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "script", "style", "noscript", "template":
				continue
			}
			if !contains(c) {
				continue
			}
			inner := false
			for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
				if gc.Type == html.ElementNode && contains(gc) {
					inner = true
					break
				}
			}
			if !inner {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(body)
	return out
}

func (p *Page) document() *html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

func (p *Page) record(a Action) {
	p.mu.Lock()
	p.actions = append(p.actions, a)
	p.mu.Unlock()
}

func (p *Page) check(ctx context.Context, op Op, n *html.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return page.ErrClosed
	}
	if p.fault != nil && op != "" {
		return p.fault(op, n)
	}
	return nil
}

// follow navigates to href relative to the current document, if the target
// is part of the page set. Unknown targets leave the page where it is.
func (p *Page) follow(href string) error {
	base, err := url.Parse(p.URL())
	if err != nil {
		return fmt.Errorf("htmlpage: current url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return fmt.Errorf("htmlpage: link %q: %w", href, err)
	}
	target := base.ResolveReference(ref).String()
	if _, ok := p.docs[normalizeURL(target)]; !ok {
		return nil
	}
	return p.load(target)
}

func normalizeURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

var _ page.Page = (*Page)(nil)
