package htmlpage

import (
	"context"
	"sync"

	"github.com/jmylchreest/promoscout/pkg/page"
)

// Browser hands out Pages over one shared document set and counts Close
// calls, so callers can check the browser is released exactly once.
type Browser struct {
	docs map[string]string
	opts []Option

	mu     sync.Mutex
	pages  []*Page
	closes int
}

// NewBrowser returns a browser serving docs to every page it opens.
func NewBrowser(docs map[string]string, opts ...Option) *Browser {
	return &Browser{docs: docs, opts: opts}
}

// NewPage opens a blank page.
func (b *Browser) NewPage(ctx context.Context) (page.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closes > 0 {
		return nil, page.ErrClosed
	}
	p := New(b.docs, b.opts...)
	b.pages = append(b.pages, p)
	return p, nil
}

// Close closes every page and records the call.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	for _, p := range b.pages {
		_ = p.Close()
	}
	return nil
}

// Closes returns how many times Close has been called.
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Pages returns the pages opened so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Page, len(b.pages))
	copy(out, b.pages)
	return out
}

var _ page.Browser = (*Browser)(nil)
