package page

import (
	"fmt"
	"strings"
)

// Kind is the query language of a selector expression.
type Kind int

const (
	KindXPath Kind = iota
	KindCSS
)

func (k Kind) String() string {
	switch k {
	case KindXPath:
		return "xpath"
	case KindCSS:
		return "css"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Selector is a single element lookup expression.
type Selector struct {
	Kind Kind
	Expr string

	// Text is the needle of a TextSelector. Backends that cannot evaluate
	// translate() per character match it with FoldCase instead of Expr.
	Text string
}

// XPath returns an XPath selector.
func XPath(expr string) Selector {
	return Selector{Kind: KindXPath, Expr: expr}
}

// CSS returns a CSS selector.
func CSS(expr string) Selector {
	return Selector{Kind: KindCSS, Expr: expr}
}

// Parse reads a selector in its textual form. An explicit "xpath=" or "css="
// prefix wins; otherwise expressions starting with "/", "./", ".." or "("
// are XPath and everything else is CSS.
func Parse(s string) Selector {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "xpath="):
		return XPath(strings.TrimPrefix(s, "xpath="))
	case strings.HasPrefix(s, "css="):
		return CSS(strings.TrimPrefix(s, "css="))
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"),
		strings.HasPrefix(s, ".."), strings.HasPrefix(s, "("):
		return XPath(s)
	default:
		return CSS(s)
	}
}

// ParseAll parses each expression in order.
func ParseAll(exprs []string) []Selector {
	out := make([]Selector, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, Parse(e))
	}
	return out
}

// String returns the prefixed textual form, e.g. "xpath=//a".
func (s Selector) String() string {
	return s.Kind.String() + "=" + s.Expr
}

// IsZero reports whether the selector has no expression.
func (s Selector) IsZero() bool {
	return s.Expr == ""
}
