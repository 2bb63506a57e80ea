// Package executor runs one complete evaluation: it loads the design options,
// evaluates them in parallel browser sessions, reports the best design and
// persists the results.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/entrhq/designeval/pkg/auth"
	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/config"
	"github.com/entrhq/designeval/pkg/logging"
	"github.com/entrhq/designeval/pkg/metric"
	"github.com/entrhq/designeval/pkg/option"
	"github.com/entrhq/designeval/pkg/partition"
	"github.com/entrhq/designeval/pkg/report"
)

// Executor runs an evaluation described by a validated configuration.
type Executor struct {
	cfg            *config.Config
	console        *logging.Console
	logger         *logging.Logger
	launcher       *browser.Launcher
	reporter       *report.Reporter
	artifactWriter *report.ArtifactWriter

	summary *report.Summary
}

// Option configures an Executor.
type Option func(*Executor)

// WithConsole sets the user-facing console.
func WithConsole(c *logging.Console) Option {
	return func(e *Executor) {
		e.console = c
	}
}

// WithLogger sets the run logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithLauncher replaces the launcher built from the browser configuration.
func WithLauncher(l *browser.Launcher) Option {
	return func(e *Executor) {
		e.launcher = l
	}
}

// New validates cfg and creates an executor.
func New(cfg *config.Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Executor{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.console == nil {
		level, _ := logging.ParseLevel(cfg.Logging.Verbosity)
		e.console = logging.NewConsole(level)
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}

	e.reporter = report.NewReporter(e.console, e.logger)
	if cfg.Artifacts.Enabled {
		e.artifactWriter = report.NewArtifactWriter(cfg.Artifacts.OutputDir)
	}
	e.summary = &report.Summary{
		RunID:  e.logger.RunID(),
		Status: "running",
		Input:  cfg.Input,
		Output: cfg.Output,
	}
	return e, nil
}

// Run executes the evaluation. Failing to load the input aborts the run.
// Browser, session, login and row failures only leave metrics absent, and a
// failure to write the output is reported in the summary without failing the
// run.
func (e *Executor) Run(ctx context.Context) (*report.Summary, error) {
	e.summary.StartTime = time.Now()
	e.logger.Infof("starting run %s: %s -> %s", e.summary.RunID, e.cfg.Input, e.cfg.Output)
	e.console.Header("Design Evaluation")

	if e.cfg.Timeouts.Run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeouts.Run)
		defer cancel()
	}

	e.console.Section("Loading Design Options")
	ds, err := option.LoadCSV(e.cfg.Input)
	if err != nil {
		return e.summary, e.fail(err)
	}
	e.summary.Options = ds.Len()
	e.console.Infof("Loaded %d design options from %s", ds.Len(), e.cfg.Input)

	filter, err := option.NewFilter(e.cfg.Options.Include, e.cfg.Options.Exclude)
	if err != nil {
		return e.summary, e.fail(err)
	}
	selected := filter.Apply(ds)
	e.summary.Filtered = ds.Len() - selected.Len()
	if e.summary.Filtered > 0 {
		e.console.Infof("Filtered out %d design options", e.summary.Filtered)
	}

	e.console.Section("Evaluating")
	eval := &partition.Evaluation{Table: option.NewResultTable(selected)}
	if selected.Len() > 0 {
		eval, err = e.evaluate(ctx, selected)
		if err != nil {
			return e.summary, e.fail(err)
		}
	} else {
		e.console.Warningf("No design options to evaluate")
	}
	e.summary.Partitions = eval.Partitions
	for _, p := range eval.Partitions {
		e.console.Verbosef("Partition %d: %d/%d rows evaluated in %s",
			p.Index, p.Evaluated, p.Rows, p.Duration.Round(time.Millisecond))
		if p.Error != "" {
			e.console.Warningf("Partition %d failed: %s", p.Index, p.Error)
		}
	}

	table := expand(ds, filter, eval.Table)
	e.summary.Evaluated = table.Evaluated()
	e.console.Infof("Evaluated %d of %d design options", table.Evaluated(), table.Len())

	e.console.Section("Result")
	e.summary.Status = report.StatusNoWinner
	if best, ok := e.reporter.Report(table); ok {
		e.summary.Status = report.StatusCompleted
		e.summary.Best = report.NewWinner(best)
	}

	if err := e.reporter.Persist(e.cfg.Output, table); err != nil {
		e.summary.Error = err.Error()
	}

	e.finalize()

	if err := ctx.Err(); err != nil {
		e.logger.Warnf("run interrupted: %v", err)
		return e.summary, fmt.Errorf("run interrupted: %w", err)
	}
	return e.summary, nil
}

// evaluate starts the browser backend and runs the coordinator.
func (e *Executor) evaluate(ctx context.Context, ds *option.Dataset) (*partition.Evaluation, error) {
	launcher := e.launcher
	if launcher == nil {
		var err error
		launcher, err = browser.NewLauncher(browser.Options{
			Backend:         e.cfg.Browser.Backend,
			Headless:        e.cfg.Browser.Headless,
			InstallBrowsers: e.cfg.Browser.InstallBrowsers,
			ImplicitWait:    e.cfg.Browser.ImplicitWait,
			Args:            e.cfg.Browser.Args,
		}, e.logger.Named("browser"))
		if err != nil {
			return nil, err
		}
	}

	// A backend that cannot start fails every partition at session open
	var opener partition.SessionOpener = launcher
	if err := launcher.Start(ctx); err != nil {
		e.logger.Errorf("failed to start browser: %v", err)
		e.console.Errorf("Failed to start browser: %v", err)
		opener = unavailableOpener{err: err}
	} else {
		defer func() {
			if err := launcher.Stop(); err != nil {
				e.logger.Warnf("failed to stop browser: %v", err)
			}
		}()
	}

	extractor, err := metric.NewExtractor(metric.Config{
		URLTemplate: e.cfg.Site.OptionURLTemplate,
		Selector:    e.cfg.Selectors.Metric,
		Timeout:     e.cfg.Timeouts.Element,
	})
	if err != nil {
		return nil, err
	}

	worker := partition.NewWorker(opener, e.newAuthenticator, extractor,
		partition.WithRetry(partition.RetryPolicy{
			Attempts: e.cfg.Retry.RowAttempts,
			Backoff:  e.cfg.Retry.Backoff,
		}),
		partition.WithLogger(e.logger),
	)

	e.console.Infof("Evaluating %d design options with parallelism %d", ds.Len(), e.cfg.Parallelism)
	return partition.NewCoordinator(worker, e.logger).Evaluate(ctx, ds, e.cfg.Parallelism)
}

type unavailableOpener struct {
	err error
}

func (o unavailableOpener) Open(ctx context.Context) (*browser.Session, error) {
	return nil, fmt.Errorf("%w: %w", browser.ErrSessionOpen, o.err)
}

// newAuthenticator creates the login state machine of one session.
func (e *Executor) newAuthenticator() partition.Authenticator {
	return auth.New(auth.Config{
		EntryURL: e.cfg.Site.EntryURL,
		Selectors: auth.Selectors{
			LoginTrigger: e.cfg.Selectors.LoginTrigger,
			Username:     e.cfg.Selectors.Username,
			Password:     e.cfg.Selectors.Password,
			Submit:       e.cfg.Selectors.Submit,
			PostLogin:    e.cfg.Selectors.PostLogin,
		},
		Timeout: e.cfg.Timeouts.Login,
	}, auth.Credentials{
		User:     e.cfg.Credentials.User,
		Password: e.cfg.Credentials.Password,
	}, e.logger.Named("auth"))
}

// expand maps the evaluated rows back onto the full dataset. Options excluded
// by the filter stay in the output with an absent metric.
func expand(ds *option.Dataset, filter *option.Filter, evaluated *option.ResultTable) *option.ResultTable {
	table := option.NewResultTable(ds)
	j := 0
	for i, opt := range ds.Options {
		if !filter.Match(opt.ID) {
			continue
		}
		table.Rows[i].Metric = evaluated.Rows[j].Metric
		table.Rows[i].Err = evaluated.Rows[j].Err
		j++
	}
	return table
}

func (e *Executor) finalize() {
	e.summary.EndTime = time.Now()
	e.summary.Duration = e.summary.EndTime.Sub(e.summary.StartTime)
	e.logger.Infof("run finished with status %s in %s", e.summary.Status, e.summary.Duration)

	e.writeArtifacts()
	e.console.Successf("Run completed in %s", e.summary.Duration.Round(time.Millisecond))
}

func (e *Executor) fail(err error) error {
	e.summary.Status = report.StatusFailed
	e.summary.Error = err.Error()
	e.summary.EndTime = time.Now()
	e.summary.Duration = e.summary.EndTime.Sub(e.summary.StartTime)

	e.logger.Errorf("run failed: %v", err)
	e.console.Errorf("%v", err)
	if errors.Is(err, option.ErrInputLoad) {
		e.console.Infof("Check that %s exists and has a %s column", e.cfg.Input, option.IDColumn)
	}

	// Try to generate artifacts even on failure
	e.writeArtifacts()
	return err
}

func (e *Executor) writeArtifacts() {
	if e.artifactWriter == nil {
		return
	}
	if err := e.artifactWriter.WriteAll(e.summary); err != nil {
		e.logger.Warnf("failed to write artifacts: %v", err)
		e.console.Warningf("Failed to write artifacts: %v", err)
		return
	}
	e.console.Verbosef("Artifacts written to %s", filepath.Clean(e.cfg.Artifacts.OutputDir))
}
