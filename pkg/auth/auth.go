// Package auth logs a browser session into the target application.
//
// Every session gets its own Authenticator; login state is never shared
// between sessions or workers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/logging"
)

// State is a step of the login state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateLoginPageLoaded
	StateAuthenticated
	StateLoginFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoginPageLoaded:
		return "login-page-loaded"
	case StateAuthenticated:
		return "authenticated"
	case StateLoginFailed:
		return "login-failed"
	default:
		return "unknown"
	}
}

var (
	// ErrNavigationTimeout is returned when the login page never shows the
	// login trigger.
	ErrNavigationTimeout = errors.New("login page did not load")

	// ErrLoginFailed is returned when credentials could not be submitted or
	// the post-login marker never appeared.
	ErrLoginFailed = errors.New("login failed")
)

// Credentials is the login identity and secret.
type Credentials struct {
	User     string
	Password string
}

// Selectors locate the login form and the post-login marker.
type Selectors struct {
	LoginTrigger string
	Username     string
	Password     string
	Submit       string
	PostLogin    string
}

// Config describes how to log in.
type Config struct {
	EntryURL  string
	Selectors Selectors

	// Timeout bounds the entry navigation and each marker wait
	Timeout time.Duration
}

// Authenticator drives the login state machine for one session.
type Authenticator struct {
	cfg    Config
	creds  Credentials
	logger *logging.Logger

	state State
	err   error
}

// New creates an authenticator in the Unauthenticated state.
func New(cfg Config, creds Credentials, logger *logging.Logger) *Authenticator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Authenticator{
		cfg:    cfg,
		creds:  creds,
		logger: logger,
		state:  StateUnauthenticated,
	}
}

// State returns the current state.
func (a *Authenticator) State() State {
	return a.state
}

// Login authenticates the session. A second call after success is a no-op;
// a second call after failure returns the first failure without retrying.
func (a *Authenticator) Login(ctx context.Context, session *browser.Session) error {
	switch a.state {
	case StateAuthenticated:
		return nil
	case StateLoginFailed:
		return a.err
	}

	if err := a.loadLoginPage(ctx, session); err != nil {
		return a.fail(err)
	}
	a.state = StateLoginPageLoaded
	a.logger.Debugf("session %s: login page loaded", session.ID)

	if err := a.submitCredentials(ctx, session); err != nil {
		return a.fail(err)
	}

	a.state = StateAuthenticated
	session.MarkAuthenticated()
	a.logger.Infof("session %s: login successful", session.ID)
	return nil
}

func (a *Authenticator) loadLoginPage(ctx context.Context, session *browser.Session) error {
	if err := session.Navigate(ctx, a.cfg.EntryURL, a.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: %w", ErrNavigationTimeout, err)
	}
	if err := session.WaitFor(ctx, a.cfg.Selectors.LoginTrigger, a.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: %w", ErrNavigationTimeout, err)
	}
	return nil
}

func (a *Authenticator) submitCredentials(ctx context.Context, session *browser.Session) error {
	sel := a.cfg.Selectors

	if err := session.Fill(ctx, sel.Username, a.creds.User); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := session.Fill(ctx, sel.Password, a.creds.Password); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := session.Click(ctx, sel.Submit); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := session.WaitFor(ctx, sel.PostLogin, a.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	return nil
}

func (a *Authenticator) fail(err error) error {
	a.state = StateLoginFailed
	a.err = err
	a.logger.Errorf("error during login: %v", err)
	return err
}
