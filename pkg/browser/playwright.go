package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// playwrightBackend launches one Chromium process per page so that no two
// sessions share a browser profile.
type playwrightBackend struct {
	opts Options
	pw   *playwright.Playwright
}

func newPlaywrightBackend(opts Options) *playwrightBackend {
	return &playwrightBackend{opts: opts}
}

func (b *playwrightBackend) Name() string {
	return BackendPlaywright
}

// Start installs (optionally) and runs the Playwright driver.
func (b *playwrightBackend) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Discard driver output so it does not interleave with the console
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if b.opts.InstallBrowsers {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	b.pw = pw
	return nil
}

// NewPage launches a browser, creates a fresh context and opens a page.
func (b *playwrightBackend) NewPage(ctx context.Context) (Page, error) {
	if b.pw == nil {
		return nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := append(append([]string(nil), DefaultArgs...), b.opts.Args...)
	browser, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.opts.Headless),
		Args:     args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(millis(b.opts.ImplicitWait))

	return &playwrightPage{browser: browser, context: bctx, page: page}, nil
}

// Stop stops the Playwright driver.
func (b *playwrightBackend) Stop() error {
	if b.pw == nil {
		return nil
	}
	err := b.pw.Stop()
	b.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// playwrightPage adapts a Playwright page to Page.
type playwrightPage struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(millis(timeout)),
	})
	return translateError(err)
}

func (p *playwrightPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(millis(timeout)),
	})
	return translateError(err)
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translateError(p.page.Fill(selector, value))
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translateError(p.page.Click(selector))
}

func (p *playwrightPage) TextContent(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.page.TextContent(selector)
	if err != nil {
		return "", translateError(err)
	}
	return text, nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

// Close closes page, context and browser, reporting the first error.
func (p *playwrightPage) Close() error {
	var first error
	for _, closeFn := range []func() error{
		func() error { return p.page.Close() },
		func() error { return p.context.Close() },
		func() error { return p.browser.Close() },
	} {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// translateError maps Playwright timeouts onto ErrTimeout.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
