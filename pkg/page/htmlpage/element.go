package htmlpage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/promoscout/pkg/page"
)

type element struct {
	p   *Page
	n   *html.Node
	gen int
}

func (e *element) check(ctx context.Context, op Op) error {
	if err := e.p.check(ctx, op, e.n); err != nil {
		return err
	}
	e.p.mu.Lock()
	stale := e.gen != e.p.gen
	e.p.mu.Unlock()
	if stale {
		return fmt.Errorf("%w: %s", page.ErrDetached, describe(e.n))
	}
	return nil
}

func (e *element) Query(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	e.p.record(Action{Op: OpQuery, Target: sel.String(), Value: describe(e.n)})
	if err := e.check(ctx, OpQuery); err != nil {
		return nil, err
	}
	return e.p.query(e.n, sel)
}

func (e *element) WaitVisible(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	e.p.record(Action{Op: OpWaitVisible, Target: sel.String(), Value: describe(e.n), Timeout: timeout})
	if err := e.check(ctx, OpWaitVisible); err != nil {
		return nil, err
	}
	return e.p.waitVisible(e.n, sel, timeout)
}

func (e *element) WaitAttached(ctx context.Context, sel page.Selector, timeout time.Duration) (page.Element, error) {
	e.p.record(Action{Op: OpWaitAttached, Target: sel.String(), Value: describe(e.n), Timeout: timeout})
	if err := e.check(ctx, OpWaitAttached); err != nil {
		return nil, err
	}
	return e.p.waitAttached(e.n, sel, timeout)
}

func (e *element) Text(ctx context.Context) (string, error) {
	e.p.record(Action{Op: OpText, Target: describe(e.n)})
	if err := e.check(ctx, OpText); err != nil {
		return "", err
	}
	var b strings.Builder
	renderText(&b, e.n)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	e.p.record(Action{Op: OpVisible, Target: describe(e.n)})
	if err := e.check(ctx, OpVisible); err != nil {
		return false, err
	}
	return isVisible(e.n), nil
}

// Click follows links and submits forms whose target is in the page set.
func (e *element) Click(ctx context.Context) error {
	e.p.record(Action{Op: OpClick, Target: describe(e.n)})
	if err := e.check(ctx, OpClick); err != nil {
		return err
	}
	if !isVisible(e.n) {
		return fmt.Errorf("htmlpage: click %s: element not visible", describe(e.n))
	}
	if a := closest(e.n, "a"); a != nil {
		if href := htmlquery.SelectAttr(a, "href"); href != "" {
			return e.p.follow(href)
		}
	}
	if isSubmit(e.n) {
		return e.submit()
	}
	return nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	e.p.record(Action{Op: OpFill, Target: describe(e.n), Value: value})
	if err := e.check(ctx, OpFill); err != nil {
		return err
	}
	switch e.n.Data {
	case "input", "textarea":
	default:
		return fmt.Errorf("htmlpage: fill %s: element is not an input", describe(e.n))
	}
	setAttr(e.n, "value", value)
	return nil
}

// Press submits the enclosing form on Enter; other keys are only recorded.
func (e *element) Press(ctx context.Context, key string) error {
	e.p.record(Action{Op: OpPress, Target: describe(e.n), Value: key})
	if err := e.check(ctx, OpPress); err != nil {
		return err
	}
	if key == "Enter" && closest(e.n, "form") != nil {
		return e.submit()
	}
	return nil
}

func (e *element) Hover(ctx context.Context) error {
	e.p.record(Action{Op: OpHover, Target: describe(e.n)})
	return e.check(ctx, OpHover)
}

func (e *element) submit() error {
	form := closest(e.n, "form")
	if form == nil {
		return nil
	}
	action := htmlquery.SelectAttr(form, "action")
	if action == "" {
		return nil
	}
	return e.p.follow(action)
}

func isSubmit(n *html.Node) bool {
	typ := strings.ToLower(htmlquery.SelectAttr(n, "type"))
	switch n.Data {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit"
	}
	return false
}

// isVisible approximates rendering: hidden attributes, inline display:none
// or visibility:hidden on the node or any ancestor, hidden inputs and
// non-rendered containers all hide an element.
func isVisible(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "input" &&
		strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		switch cur.Data {
		case "head", "script", "style", "template", "noscript":
			return false
		}
		for _, a := range cur.Attr {
			switch a.Key {
			case "hidden":
				return false
			case "style":
				style := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false
				}
			}
		}
	}
	return true
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "template", "noscript":
			return
		case "br":
			b.WriteString("\n")
			return
		}
		if !isVisible(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
		if c.Type == html.ElementNode {
			b.WriteString(" ")
		}
	}
}

func closest(n *html.Node, tag string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// describe renders a node as tag#id.class for action logs.
func describe(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.Data)
	if id := htmlquery.SelectAttr(n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	for _, c := range strings.Fields(htmlquery.SelectAttr(n, "class")) {
		b.WriteString("." + c)
	}
	return b.String()
}

// Value returns the current value attribute of an element returned by this
// package, for assertions on filled inputs.
func Value(el page.Element) (string, bool) {
	e, ok := el.(*element)
	if !ok {
		return "", false
	}
	return htmlquery.SelectAttr(e.n, "value"), true
}

// Node exposes the DOM node behind an element returned by this package.
func Node(el page.Element) (*html.Node, bool) {
	e, ok := el.(*element)
	if !ok {
		return nil, false
	}
	return e.n, true
}
