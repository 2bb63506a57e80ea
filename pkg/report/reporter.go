package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/entrhq/designeval/pkg/logging"
	"github.com/entrhq/designeval/pkg/option"
)

// ErrOutputWrite is returned when the result table could not be persisted.
var ErrOutputWrite = errors.New("failed to write results")

// Reporter announces the outcome of a run.
type Reporter struct {
	console *logging.Console
	logger  *logging.Logger
}

// NewReporter creates a reporter. Nil arguments silence the corresponding
// output.
func NewReporter(console *logging.Console, logger *logging.Logger) *Reporter {
	if console == nil {
		console = logging.NewPlainConsole(logging.LevelQuiet, io.Discard)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reporter{console: console, logger: logger.Named("report")}
}

// Report selects the best design and prints it with all of its columns, or
// warns when no option produced a metric.
func (r *Reporter) Report(table *option.ResultTable) (BestDesign, bool) {
	best, ok := Select(table)
	if !ok {
		r.console.Warningf("No valid metric found for any design option (%d rows)", table.Len())
		r.logger.Warnf("no valid metric found among %d rows", table.Len())
		return best, false
	}

	r.console.Resultf("Best design option: %s with metric: %s",
		best.Result.Option.ID, best.Result.Metric)
	r.console.Resultf("%s", FormatRow(table.OutputColumns(), best.Result))
	r.logger.Infof("best design option %s (row %d) with metric %s",
		best.Result.Option.ID, best.Index, best.Result.Metric)
	return best, true
}

// Persist writes the full result table to path regardless of whether a best
// design exists. Failures are logged and wrapped with ErrOutputWrite.
func (r *Reporter) Persist(path string, table *option.ResultTable) error {
	if err := option.WriteCSV(path, table); err != nil {
		r.logger.Errorf("failed to write %s: %v", path, err)
		r.console.Errorf("Failed to write results to %s: %v", path, err)
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	r.logger.Infof("wrote %d rows to %s", table.Len(), path)
	r.console.Successf("Results written to %s", path)
	return nil
}

// FormatRow renders a result as "column=value" pairs in column order.
func FormatRow(columns []string, res option.Result) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		value := res.Option.Field(col)
		if col == option.MetricColumn {
			value = res.Metric.String()
		}
		parts = append(parts, col+"="+value)
	}
	return strings.Join(parts, ", ")
}
