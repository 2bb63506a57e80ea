package partition

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/logging"
	"github.com/entrhq/designeval/pkg/option"
)

// SessionOpener opens a fresh browser session.
type SessionOpener interface {
	Open(ctx context.Context) (*browser.Session, error)
}

// Authenticator logs a session in.
type Authenticator interface {
	Login(ctx context.Context, session *browser.Session) error
}

// Extractor reads the metric of one option.
type Extractor interface {
	Extract(ctx context.Context, opt option.DesignOption, session *browser.Session) (float64, error)
}

// RetryPolicy bounds per-row attempts. The zero value makes one attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Worker evaluates partitions. A Worker holds no per-partition state, so one
// Worker may run several partitions concurrently.
type Worker struct {
	opener    SessionOpener
	newAuth   func() Authenticator
	extractor Extractor
	retry     RetryPolicy
	logger    *logging.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithRetry sets the per-row retry policy.
func WithRetry(p RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker. newAuth is called once per partition so every
// session gets its own login state.
func NewWorker(opener SessionOpener, newAuth func() Authenticator, extractor Extractor, opts ...WorkerOption) *Worker {
	w := &Worker{
		opener:    opener,
		newAuth:   newAuth,
		extractor: extractor,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.retry.Attempts < 1 {
		w.retry.Attempts = 1
	}
	return w
}

// Run evaluates every row of p in order with one session. It always returns
// a fragment with one result per row.
func (w *Worker) Run(ctx context.Context, p Partition) (frag Fragment) {
	start := time.Now()
	log := w.logger.Named(fmt.Sprintf("partition-%d", p.Index))
	frag = absentFragment(p, nil)

	defer func() {
		if r := recover(); r != nil {
			frag.Err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
			log.Errorf("%v", frag.Err)
			for j := range frag.Results {
				if !frag.Results[j].Metric.Present && frag.Results[j].Err == nil {
					frag.Results[j].Err = frag.Err
				}
			}
		}
		frag.Duration = time.Since(start)
	}()

	session, err := w.opener.Open(ctx)
	if err != nil {
		log.Errorf("failed to open session: %v", err)
		return absentFragment(p, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warnf("failed to close session %s: %v", session.ID, err)
		}
	}()

	if err := w.newAuth().Login(ctx, session); err != nil {
		log.Errorf("skipping %d rows: %v", len(p.Rows), err)
		return absentFragment(p, err)
	}

	for i, opt := range p.Rows {
		if err := ctx.Err(); err != nil {
			log.Warnf("cancelled with %d rows left", len(p.Rows)-i)
			frag.Err = err
			for j := i; j < len(p.Rows); j++ {
				frag.Results[j].Err = err
			}
			break
		}

		value, err := w.extract(ctx, opt, session)
		if err != nil {
			log.Errorf("error processing row %s: %v", opt.ID, err)
			frag.Results[i].Err = err
			continue
		}
		frag.Results[i].Metric = option.Present(value)
		log.Debugf("row %s: metric %v", opt.ID, value)
	}

	return frag
}

// extract applies the retry policy to one row.
func (w *Worker) extract(ctx context.Context, opt option.DesignOption, session *browser.Session) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= w.retry.Attempts; attempt++ {
		value, err := w.extractor.Extract(ctx, opt, session)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == w.retry.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return 0, lastErr
		case <-time.After(w.retry.Backoff):
		}
	}
	return 0, lastErr
}
