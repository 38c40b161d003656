// Package page defines the browser automation surface the harvester drives.
//
// Drivers (chromedp, rod, playwright) and the static HTML page used for
// replay and tests all implement these interfaces. Every blocking call takes
// a context; waits additionally take an explicit budget, and a budget that
// runs out is reported as ErrTimeout rather than as a context error.
package page

import (
	"context"
	"errors"
	"time"
)

// LoadState is a page lifecycle milestone that can be waited for.
type LoadState string

const (
	// LoadDOMContentLoaded means the initial document has been parsed.
	LoadDOMContentLoaded LoadState = "domcontentloaded"
	// LoadLoad means the load event has fired.
	LoadLoad LoadState = "load"
	// LoadNetworkIdle means no network requests have been in flight for a
	// short quiet period.
	LoadNetworkIdle LoadState = "networkidle"
)

// Scope is anything elements can be looked up in: a whole page or a single
// element (relative XPath such as ".//span" resolves against it).
type Scope interface {
	// Query returns the elements currently matching sel, in document order.
	// It does not wait; no match is an empty slice, not an error.
	Query(ctx context.Context, sel Selector) ([]Element, error)

	// WaitVisible waits up to timeout for the first visible match of sel.
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)

	// WaitAttached waits up to timeout for sel to match any element,
	// visible or not.
	WaitAttached(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
}

// Element is a handle to a single DOM element.
type Element interface {
	Scope

	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)
	// Visible reports whether the element is currently rendered.
	Visible(ctx context.Context) (bool, error)

	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	// Press sends a single named key (e.g. "Enter") to the element.
	Press(ctx context.Context, key string) error
	Hover(ctx context.Context) error
}

// Page is a single browser tab.
type Page interface {
	Scope

	// Goto navigates to url and waits for the given load state.
	Goto(ctx context.Context, url string, until LoadState) error
	// WaitForLoadState waits up to timeout for the page to reach state.
	WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error
	// URL returns the address of the current document.
	URL() string
	// HTML returns the serialized DOM of the current document.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser owns the browser process (or remote session) pages run in.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

var (
	// ErrTimeout indicates a wait budget ran out before the condition held.
	ErrTimeout = errors.New("page: wait timed out")
	// ErrDetached indicates an element handle no longer refers to a node in
	// the current document.
	ErrDetached = errors.New("page: element detached")
	// ErrClosed indicates the page or browser has been closed.
	ErrClosed = errors.New("page: closed")
	// ErrUnsupported indicates the implementation cannot perform the call.
	ErrUnsupported = errors.New("page: operation not supported")
)

// IsTimeout reports whether err means a wait budget ran out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
