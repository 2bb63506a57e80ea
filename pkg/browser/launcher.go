package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/entrhq/designeval/pkg/logging"
)

// Launcher starts a backend once per run and opens isolated sessions on it.
// Open may be called from several goroutines.
type Launcher struct {
	mu       sync.Mutex
	backend  Backend
	logger   *logging.Logger
	sessions map[string]*Session
	started  bool
}

// NewLauncher creates a launcher for the backend named in opts.
func NewLauncher(opts Options, logger *logging.Logger) (*Launcher, error) {
	if opts.ImplicitWait <= 0 {
		opts.ImplicitWait = DefaultImplicitWait
	}

	var backend Backend
	switch opts.Backend {
	case "", BackendPlaywright:
		backend = newPlaywrightBackend(opts)
	case BackendHTTP:
		backend = NewHTTPBackend(opts.ImplicitWait, nil)
	default:
		return nil, fmt.Errorf("unknown browser backend: %s", opts.Backend)
	}

	return NewLauncherWithBackend(backend, logger), nil
}

// NewLauncherWithBackend creates a launcher around an existing backend.
func NewLauncherWithBackend(backend Backend, logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Launcher{
		backend:  backend,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Start prepares the backend. It is safe to call more than once.
func (l *Launcher) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}
	if err := l.backend.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s backend: %w", l.backend.Name(), err)
	}
	l.started = true
	l.logger.Infof("%s backend started", l.backend.Name())
	return nil
}

// Open creates a new session with its own browser and context.
// Errors wrap ErrSessionOpen.
func (l *Launcher) Open(ctx context.Context) (*Session, error) {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	if !started {
		return nil, fmt.Errorf("%w: %w", ErrSessionOpen, ErrNotStarted)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionOpen, err)
	}

	// Page creation runs outside the lock so browsers launch in parallel
	page, err := l.backend.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionOpen, err)
	}

	session := NewSession(uuid.New().String(), page)

	l.mu.Lock()
	l.sessions[session.ID] = session
	l.mu.Unlock()

	l.logger.Debugf("session %s opened", session.ID)
	return session, nil
}

// Stop closes any session still open and stops the backend.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for id, session := range l.sessions {
		if session.State() != StateClosed {
			l.logger.Warnf("session %s still open at shutdown", id)
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(l.sessions, id)
	}

	if l.started {
		if err := l.backend.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s backend: %w", l.backend.Name(), err))
		}
		l.started = false
	}

	return errors.Join(errs...)
}
