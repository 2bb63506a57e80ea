// Package browsertest provides test doubles for the browser package: an
// in-memory Page and a small login-protected website served by httptest.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/designeval/pkg/browser"
)

// FakePage is an in-memory browser.Page. Elements present on every page are
// listed in Elements; elements present only after navigating to a URL are
// listed in PageElements.
type FakePage struct {
	mu sync.Mutex

	// Elements maps selector to text for elements present on every page
	Elements map[string]string

	// PageElements maps URL to selector to text
	PageElements map[string]map[string]string

	// GotoErr, if set, is returned by every navigation
	GotoErr error

	current    string
	filled     map[string]string
	clicked    []string
	visited    []string
	closeCalls int
}

// NewFakePage creates an empty fake page.
func NewFakePage() *FakePage {
	return &FakePage{
		Elements:     make(map[string]string),
		PageElements: make(map[string]map[string]string),
		filled:       make(map[string]string),
	}
}

func (p *FakePage) lookup(selector string) (string, bool) {
	if text, ok := p.PageElements[p.current][selector]; ok {
		return text, true
	}
	text, ok := p.Elements[selector]
	return text, ok
}

func (p *FakePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.current = url
	p.visited = append(p.visited, url)
	return nil
}

func (p *FakePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.lookup(selector); !ok {
		return fmt.Errorf("%w waiting for %s", browser.ErrTimeout, selector)
	}
	return nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.lookup(selector); !ok {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	p.filled[selector] = value
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.lookup(selector); !ok {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *FakePage) TextContent(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text, ok := p.lookup(selector)
	if !ok {
		return "", fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	return text, nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return nil
}

// Filled returns the value filled into selector.
func (p *FakePage) Filled(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled[selector]
}

// Clicked returns the clicked selectors in order.
func (p *FakePage) Clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicked...)
}

// Visited returns the navigated URLs in order.
func (p *FakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// CloseCalls returns how many times Close was called.
func (p *FakePage) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// FakeBackend hands out pages built by NewPageFunc.
type FakeBackend struct {
	mu sync.Mutex

	// NewPageFunc builds the n-th page (0-based); nil builds empty fake pages
	NewPageFunc func(n int) (browser.Page, error)

	// StartErr is returned by Start when set
	StartErr error

	opened  int
	started bool
	stopped bool
}

func (b *FakeBackend) Name() string { return "fake" }

func (b *FakeBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.StartErr != nil {
		return b.StartErr
	}
	b.started = true
	return nil
}

func (b *FakeBackend) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	n := b.opened
	b.opened++
	b.mu.Unlock()

	if b.NewPageFunc == nil {
		return NewFakePage(), nil
	}
	return b.NewPageFunc(n)
}

func (b *FakeBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	return nil
}

// Opened returns how many pages were requested.
func (b *FakeBackend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Stopped reports whether Stop was called.
func (b *FakeBackend) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}
