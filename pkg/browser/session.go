package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is one browser automation session owned by a single partition
// worker. It is not safe for concurrent use.
type Session struct {
	// ID is the unique identifier for this session
	ID string

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	page      Page
	state     State
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an open page.
func NewSession(id string, page Page) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		page:      page,
		state:     StateUnauthenticated,
	}
}

// State returns the session state.
func (s *Session) State() State {
	return s.state
}

// MarkAuthenticated records a successful login.
func (s *Session) MarkAuthenticated() {
	if s.state != StateClosed {
		s.state = StateAuthenticated
	}
}

// URL returns the current page URL.
func (s *Session) URL() string {
	if s.state == StateClosed {
		return ""
	}
	return s.page.URL()
}

func (s *Session) usable(ctx context.Context) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	return ctx.Err()
}

// Navigate navigates the session's page to url.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if err := s.page.Goto(ctx, url, timeout); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitFor waits up to timeout for an element matching selector.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if err := s.page.WaitForSelector(ctx, selector, timeout); err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

// Fill fills an input element with value.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if err := s.page.Fill(ctx, selector, value); err != nil {
		return fmt.Errorf("fill %s failed: %w", selector, err)
	}
	return nil
}

// Click clicks an element matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if err := s.page.Click(ctx, selector); err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

// Text returns the text content of the element matching selector.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	if err := s.usable(ctx); err != nil {
		return "", err
	}
	text, err := s.page.TextContent(ctx, selector)
	if err != nil {
		return "", fmt.Errorf("text of %s failed: %w", selector, err)
	}
	return text, nil
}

// Close releases the page and its browser. Only the first call does any
// work; later calls return the first call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state = StateClosed
		s.closeErr = s.page.Close()
	})
	return s.closeErr
}
