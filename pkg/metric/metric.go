// Package metric reads the numeric metric of a design option from its page
// in the target application.
package metric

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/option"
)

// Placeholder is replaced by the option identifier in URL templates.
const Placeholder = "{option}"

var (
	// ErrElementTimeout is returned when the option page or its metric
	// element could not be reached in time.
	ErrElementTimeout = errors.New("metric element not found")

	// ErrParse is returned when the metric text is not a number.
	ErrParse = errors.New("metric is not a number")
)

// RowError is a failure confined to one design option.
type RowError struct {
	Option string
	// Kind is ErrElementTimeout or ErrParse
	Kind error
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("option %s: %v: %v", e.Option, e.Kind, e.Err)
}

// Unwrap exposes both the failure kind and the cause to errors.Is.
func (e *RowError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Config describes where the metric lives.
type Config struct {
	// URLTemplate is the option page URL containing Placeholder
	URLTemplate string

	// Selector locates the metric-bearing element
	Selector string

	// Timeout bounds the navigation and the element wait
	Timeout time.Duration
}

// Extractor reads metrics through an authenticated session.
type Extractor struct {
	cfg Config
}

// NewExtractor validates cfg and creates an extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if !strings.Contains(cfg.URLTemplate, Placeholder) {
		return nil, fmt.Errorf("url template %q has no %s placeholder", cfg.URLTemplate, Placeholder)
	}
	if cfg.Selector == "" {
		return nil, fmt.Errorf("metric selector is required")
	}
	return &Extractor{cfg: cfg}, nil
}

// URLFor returns the page URL of an option. Surrounding whitespace of the
// identifier is not part of the URL.
func (e *Extractor) URLFor(id string) string {
	return strings.ReplaceAll(e.cfg.URLTemplate, Placeholder, url.QueryEscape(strings.TrimSpace(id)))
}

// Extract navigates to the option's page and parses its metric. Failures are
// returned as *RowError.
func (e *Extractor) Extract(ctx context.Context, opt option.DesignOption, session *browser.Session) (float64, error) {
	if err := session.Navigate(ctx, e.URLFor(opt.ID), e.cfg.Timeout); err != nil {
		return 0, &RowError{Option: opt.ID, Kind: ErrElementTimeout, Err: err}
	}
	if err := session.WaitFor(ctx, e.cfg.Selector, e.cfg.Timeout); err != nil {
		return 0, &RowError{Option: opt.ID, Kind: ErrElementTimeout, Err: err}
	}

	text, err := session.Text(ctx, e.cfg.Selector)
	if err != nil {
		return 0, &RowError{Option: opt.ID, Kind: ErrElementTimeout, Err: err}
	}

	value, err := ParseMetric(text)
	if err != nil {
		return 0, &RowError{Option: opt.ID, Kind: ErrParse, Err: err}
	}
	return value, nil
}

// ParseMetric parses a metric as displayed: surrounding whitespace, thousands
// separators and a trailing percent sign are ignored. NaN and infinities are
// rejected.
func ParseMetric(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")

	if s == "" {
		return 0, fmt.Errorf("empty metric text")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid metric %q: %w", text, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid metric %q: not finite", text)
	}
	return v, nil
}
