package browser

import (
	"context"
	"errors"
	"time"
)

// Page is a single browser tab. Implementations are used by one goroutine at
// a time.
type Page interface {
	// Goto navigates to url and waits for the load to finish.
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// WaitForSelector waits until an element matching selector is attached.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// Fill replaces the value of the input matching selector.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the element matching selector.
	Click(ctx context.Context, selector string) error

	// TextContent returns the text of the element matching selector.
	TextContent(ctx context.Context, selector string) (string, error)

	// URL returns the current page URL.
	URL() string

	// Close releases every resource held by the page.
	Close() error
}

// Backend creates pages. Start is called once before the first NewPage and
// Stop once after the last page is closed.
type Backend interface {
	Name() string
	Start(ctx context.Context) error
	NewPage(ctx context.Context) (Page, error)
	Stop() error
}

// State is the lifecycle state of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backend names
const (
	BackendPlaywright = "playwright"
	BackendHTTP       = "http"
)

// Options configures the launcher and every session it opens.
type Options struct {
	// Backend selects the page implementation: "playwright" (default) or "http"
	Backend string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// InstallBrowsers downloads the Playwright driver and Chromium on Start
	InstallBrowsers bool

	// ImplicitWait bounds element resolution for fill and click
	ImplicitWait time.Duration

	// Args are extra Chromium command line arguments
	Args []string
}

// Default values
const (
	DefaultImplicitWait = 5 * time.Second
)

// DefaultArgs are always passed to Chromium. Sandboxing and /dev/shm usage
// are disabled so several browsers can run side by side in containers.
var DefaultArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

var (
	// ErrSessionOpen is returned when a session cannot be created.
	ErrSessionOpen = errors.New("failed to open browser session")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("browser session is closed")

	// ErrTimeout is returned when a navigation or element wait times out.
	ErrTimeout = errors.New("timed out")

	// ErrNotFound is returned when no element matches a selector.
	ErrNotFound = errors.New("no element matches selector")

	// ErrNotStarted is returned when a session is opened before Start.
	ErrNotStarted = errors.New("launcher not started")
)
