package partition

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/designeval/pkg/logging"
	"github.com/entrhq/designeval/pkg/option"
)

// Runner evaluates one partition. *Worker implements Runner.
type Runner interface {
	Run(ctx context.Context, p Partition) Fragment
}

// Report summarizes how one partition went.
type Report struct {
	Index     int           `json:"index"`
	Start     int           `json:"start"`
	Rows      int           `json:"rows"`
	Evaluated int           `json:"evaluated"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Evaluation is the merged outcome of a run.
type Evaluation struct {
	Table      *option.ResultTable
	Partitions []Report
}

// Coordinator fans partitions out to workers and merges their fragments.
type Coordinator struct {
	runner Runner
	logger *logging.Logger
}

// NewCoordinator creates a coordinator. A nil logger discards output.
func NewCoordinator(runner Runner, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Coordinator{runner: runner, logger: logger.Named("coordinator")}
}

// Evaluate splits ds into parallelism partitions, runs them concurrently and
// returns a table with the same rows in the same order as ds. Partition
// failures only show up as absent metrics.
func (c *Coordinator) Evaluate(ctx context.Context, ds *option.Dataset, parallelism int) (*Evaluation, error) {
	if parallelism < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidParallelism, parallelism)
	}

	table := option.NewResultTable(ds)
	if table.Len() == 0 {
		c.logger.Infof("empty dataset, nothing to evaluate")
		return &Evaluation{Table: table}, nil
	}

	parts := Split(ds.Options, parallelism)
	fragments := make([]Fragment, len(parts))

	c.logger.Infof("evaluating %d options in %d partitions", table.Len(), len(parts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, p := range parts {
		if len(p.Rows) == 0 {
			fragments[i] = Fragment{Index: p.Index}
			continue
		}
		g.Go(func() error {
			fragments[i] = c.run(gCtx, p)
			return nil
		})
	}
	// Workers never return errors; failures travel inside fragments.
	_ = g.Wait()

	reports := make([]Report, len(parts))
	for i, p := range parts {
		frag := fragments[i]
		if len(frag.Results) != len(p.Rows) {
			err := fmt.Errorf("%w: partition %d returned %d results for %d rows",
				ErrFragmentMismatch, p.Index, len(frag.Results), len(p.Rows))
			c.logger.Errorf("%v", err)
			duration := frag.Duration
			frag = absentFragment(p, err)
			frag.Duration = duration
		}
		reports[i] = merge(table, p, frag)
	}

	c.logger.Infof("evaluated %d of %d options", table.Evaluated(), table.Len())
	return &Evaluation{Table: table, Partitions: reports}, nil
}

// run calls the runner and turns a panic into an all-absent fragment.
func (c *Coordinator) run(ctx context.Context, p Partition) (frag Fragment) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrWorkerPanic, r)
			c.logger.Errorf("partition %d: %v", p.Index, err)
			frag = absentFragment(p, err)
		}
	}()
	return c.runner.Run(ctx, p)
}

// merge writes a fragment into its slice of the table. The table keeps its
// own option for each row; only metrics and errors come from the fragment.
func merge(table *option.ResultTable, p Partition, frag Fragment) Report {
	report := Report{
		Index:    p.Index,
		Start:    p.Start,
		Rows:     len(p.Rows),
		Duration: frag.Duration,
	}
	if frag.Err != nil {
		report.Error = frag.Err.Error()
	}

	for i, res := range frag.Results {
		row := &table.Rows[p.Start+i]
		row.Metric = res.Metric
		row.Err = res.Err
		if res.Metric.Present {
			report.Evaluated++
		} else {
			report.Failed++
		}
	}
	return report
}
