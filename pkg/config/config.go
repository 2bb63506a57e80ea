// Package config holds the run configuration: where the options come from,
// how the target application is reached, and how the run is parallelized.
//
// A configuration starts from DefaultConfig, is overlaid with an optional YAML
// file, then with credentials from the environment, and finally with command
// line flags. Validate must pass before a run starts.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/logging"
	"github.com/entrhq/designeval/pkg/metric"
)

const (
	// EnvUser overrides credentials.user
	EnvUser = "DESIGNEVAL_USER"
	// EnvPassword overrides credentials.password
	EnvPassword = "DESIGNEVAL_PASSWORD"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete run configuration.
type Config struct {
	// Input is the CSV file of design options
	Input string `yaml:"input" json:"input"`

	// Output is the CSV file the result table is written to
	Output string `yaml:"output" json:"output"`

	// Parallelism is the number of partitions and concurrent sessions
	Parallelism int `yaml:"parallelism" json:"parallelism"`

	Browser     BrowserConfig     `yaml:"browser" json:"browser"`
	Site        SiteConfig        `yaml:"site" json:"site"`
	Selectors   SelectorConfig    `yaml:"selectors" json:"selectors"`
	Timeouts    TimeoutConfig     `yaml:"timeouts" json:"timeouts"`
	Credentials CredentialsConfig `yaml:"credentials" json:"-"`
	Retry       RetryConfig       `yaml:"retry" json:"retry"`
	Options     OptionsConfig     `yaml:"options" json:"options"`
	Artifacts   ArtifactConfig    `yaml:"artifacts" json:"artifacts"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// BrowserConfig selects and tunes the browser backend.
type BrowserConfig struct {
	// Backend is "playwright" or "http"
	Backend         string        `yaml:"backend" json:"backend"`
	Headless        bool          `yaml:"headless" json:"headless"`
	InstallBrowsers bool          `yaml:"install_browsers" json:"install_browsers"`
	ImplicitWait    time.Duration `yaml:"implicit_wait" json:"implicit_wait"`
	Args            []string      `yaml:"args" json:"args"`
}

// SiteConfig locates the target application.
type SiteConfig struct {
	EntryURL string `yaml:"entry_url" json:"entry_url"`

	// OptionURLTemplate contains the {option} placeholder
	OptionURLTemplate string `yaml:"option_url_template" json:"option_url_template"`
}

// SelectorConfig holds the CSS selectors of the login flow and the metric.
type SelectorConfig struct {
	LoginTrigger string `yaml:"login_trigger" json:"login_trigger"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	Submit       string `yaml:"submit" json:"submit"`
	PostLogin    string `yaml:"post_login" json:"post_login"`
	Metric       string `yaml:"metric" json:"metric"`
}

// TimeoutConfig bounds every wait of a run.
type TimeoutConfig struct {
	Login   time.Duration `yaml:"login" json:"login"`
	Element time.Duration `yaml:"element" json:"element"`

	// Run bounds the whole evaluation; zero means no limit
	Run time.Duration `yaml:"run" json:"run"`
}

// CredentialsConfig is the login identity. It is never serialized back out.
type CredentialsConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RetryConfig controls per-row retries.
type RetryConfig struct {
	RowAttempts int           `yaml:"row_attempts" json:"row_attempts"`
	Backoff     time.Duration `yaml:"backoff" json:"backoff"`
}

// OptionsConfig filters design options by identifier glob.
type OptionsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// ArtifactConfig controls the run summary artifacts.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Dir overrides the log file directory
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig returns the configuration used when no file is given.
// Credentials are deliberately empty.
func DefaultConfig() *Config {
	return &Config{
		Input:       "design_options.csv",
		Output:      "design_results.csv",
		Parallelism: 4,
		Browser: BrowserConfig{
			Backend:      browser.BackendPlaywright,
			Headless:     true,
			ImplicitWait: browser.DefaultImplicitWait,
		},
		Site: SiteConfig{
			EntryURL:          "https://www.glo-bus.com/",
			OptionURLTemplate: "https://www.glo-bus.com/design?option=" + metric.Placeholder,
		},
		Selectors: SelectorConfig{
			LoginTrigger: "#loginButton",
			Username:     "#acct_name",
			Password:     "#passwdInput",
			Submit:       "#loginbutton",
			PostLogin:    ".btn-dec-rpt.btn-primary",
			Metric:       "#performanceQualityMetric",
		},
		Timeouts: TimeoutConfig{
			Login:   10 * time.Second,
			Element: 10 * time.Second,
		},
		Retry: RetryConfig{
			RowAttempts: 1,
			Backoff:     time.Second,
		},
		Artifacts: ArtifactConfig{
			Enabled:   false,
			OutputDir: ".designeval/artifacts",
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides credentials with the environment variables that are set.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvUser); ok {
		c.Credentials.User = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Credentials.Password = v
	}
}

// Validate checks the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Input == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output file is required")
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}

	switch c.Browser.Backend {
	case "":
		c.Browser.Backend = browser.BackendPlaywright
	case browser.BackendPlaywright, browser.BackendHTTP:
	default:
		return fmt.Errorf("invalid browser backend: %s (must be '%s' or '%s')",
			c.Browser.Backend, browser.BackendPlaywright, browser.BackendHTTP)
	}
	if c.Browser.ImplicitWait < 0 {
		return fmt.Errorf("implicit_wait cannot be negative")
	}

	if err := validateURL("entry_url", c.Site.EntryURL); err != nil {
		return err
	}
	if !strings.Contains(c.Site.OptionURLTemplate, metric.Placeholder) {
		return fmt.Errorf("option_url_template must contain %s", metric.Placeholder)
	}
	if err := validateURL("option_url_template", strings.ReplaceAll(c.Site.OptionURLTemplate, metric.Placeholder, "x")); err != nil {
		return err
	}

	selectors := []struct{ name, value string }{
		{"login_trigger", c.Selectors.LoginTrigger},
		{"username", c.Selectors.Username},
		{"password", c.Selectors.Password},
		{"submit", c.Selectors.Submit},
		{"post_login", c.Selectors.PostLogin},
		{"metric", c.Selectors.Metric},
	}
	for _, sel := range selectors {
		if strings.TrimSpace(sel.value) == "" {
			return fmt.Errorf("selector %s is required", sel.name)
		}
	}

	if c.Timeouts.Login <= 0 || c.Timeouts.Element <= 0 {
		return fmt.Errorf("login and element timeouts must be positive")
	}
	if c.Timeouts.Run < 0 {
		return fmt.Errorf("run timeout cannot be negative")
	}

	if c.Credentials.User == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials are required (set %s and %s)", EnvUser, EnvPassword)
	}

	if c.Retry.RowAttempts == 0 {
		c.Retry.RowAttempts = 1
	}
	if c.Retry.RowAttempts < 0 {
		return fmt.Errorf("row_attempts cannot be negative")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts output_dir is required when artifacts are enabled")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if _, err := logging.ParseLevel(c.Logging.Verbosity); err != nil {
		return fmt.Errorf("invalid logging verbosity: %w", err)
	}

	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL: %q", name, raw)
	}
	return nil
}
