// Package main provides the designeval command: it evaluates a table of
// design options against a web application and reports the best one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/designeval/pkg/config"
	"github.com/entrhq/designeval/pkg/executor"
	"github.com/entrhq/designeval/pkg/logging"
)

const version = "0.1.0"

// runFlags holds the command line overrides of the run command.
type runFlags struct {
	configFile  string
	input       string
	output      string
	parallelism int
	backend     string
	verbosity   string
	timeout     time.Duration
	artifacts   string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "Path to configuration file (YAML)")
	flags.StringVarP(&f.input, "input", "i", "", "Input CSV of design options")
	flags.StringVarP(&f.output, "output", "o", "", "Output CSV of results")
	flags.IntVarP(&f.parallelism, "parallelism", "p", 0, "Number of partitions evaluated concurrently")
	flags.StringVar(&f.backend, "backend", "", "Browser backend: playwright or http")
	flags.StringVarP(&f.verbosity, "verbosity", "v", "", "Console verbosity: quiet, normal, verbose, debug")
	flags.DurationVar(&f.timeout, "timeout", 0, "Overall run timeout (0 for none)")
	flags.StringVar(&f.artifacts, "artifacts", "", "Write run summary artifacts to this directory")
}

// loadConfig builds the run configuration: defaults, then the config file,
// then the environment, then flags that were set explicitly.
func (f *runFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		var err error
		cfg, err = config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input = f.input
	}
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = f.parallelism
	}
	if flags.Changed("backend") {
		cfg.Browser.Backend = f.backend
	}
	if flags.Changed("verbosity") {
		cfg.Logging.Verbosity = f.verbosity
	}
	if flags.Changed("timeout") {
		cfg.Timeouts.Run = f.timeout
	}
	if flags.Changed("artifacts") {
		cfg.Artifacts.Enabled = true
		cfg.Artifacts.OutputDir = f.artifacts
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "designeval",
		Short: "Evaluate design options against a web application",
		Long: `designeval reads a table of design options, logs into the target web
application in several parallel browser sessions, reads each option's metric
and reports the option with the highest metric.

Credentials are read from the configuration file or from the
DESIGNEVAL_USER and DESIGNEVAL_PASSWORD environment variables. There are no
built-in fallback credentials: a run without a user name and password is
rejected before any browser is started.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate all design options and write the result table",
		Example: `  # Run with defaults and credentials from the environment
  designeval run

  # Run with a config file and four partitions
  designeval run --config designeval.yaml --parallelism 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	f.bind(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "designeval v%s\n", version)
		},
	}
}

// run executes one evaluation with signal handling and file logging.
func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.SetLogDirectory(cfg.Logging.Dir)
	logger, err := logging.NewLogger("designeval")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer logger.Close()

	level, _ := logging.ParseLevel(cfg.Logging.Verbosity)
	console := logging.NewConsole(level)
	if path := logger.LogPath(); path != "" {
		console.Verbosef("Logging to %s", path)
	}

	e, err := executor.New(cfg, executor.WithConsole(console), executor.WithLogger(logger))
	if err != nil {
		return err
	}

	_, err = e.Run(ctx)
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
