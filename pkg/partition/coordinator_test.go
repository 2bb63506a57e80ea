package partition

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/option"
)

type runnerFunc func(ctx context.Context, p Partition) Fragment

func (f runnerFunc) Run(ctx context.Context, p Partition) Fragment { return f(ctx, p) }

func dataset(n int) *option.Dataset {
	return &option.Dataset{Columns: []string{option.IDColumn}, Options: makeOptions(n)}
}

func tableIDs(table *option.ResultTable) []string {
	out := make([]string, table.Len())
	for i, r := range table.Rows {
		out[i] = r.Option.ID
	}
	return out
}

func tableMetrics(table *option.ResultTable) []option.Metric {
	out := make([]option.Metric, table.Len())
	for i, r := range table.Rows {
		out[i] = r.Metric
	}
	return out
}

func TestEvaluate_FourRowsTwoPartitions(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewWorker(&fakeOpener{}, loginOK, metricsFrom(map[string]float64{
		"opt1": 3.1, "opt3": 7.8, "opt4": 7.8,
	}))

	eval, err := NewCoordinator(w, nil).Evaluate(context.Background(), dataset(4), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"opt1", "opt2", "opt3", "opt4"}, tableIDs(eval.Table))
	assert.Equal(t, []option.Metric{
		option.Present(3.1), option.Absent, option.Present(7.8), option.Present(7.8),
	}, tableMetrics(eval.Table))

	require.Len(t, eval.Partitions, 2)
	assert.Equal(t, Report{Index: 0, Start: 0, Rows: 2, Evaluated: 1, Failed: 1}, withoutDuration(eval.Partitions[0]))
	assert.Equal(t, Report{Index: 1, Start: 2, Rows: 2, Evaluated: 2}, withoutDuration(eval.Partitions[1]))
}

func withoutDuration(r Report) Report {
	r.Duration = 0
	return r
}

func TestEvaluate_LoginFailureIsolatedToPartition(t *testing.T) {
	defer goleak.VerifyNone(t)

	values := map[string]float64{}
	for i := 1; i <= 8; i++ {
		values[fmt.Sprintf("opt%d", i)] = float64(i)
	}
	ok := NewWorker(&fakeOpener{}, loginOK, metricsFrom(values))
	noMarker := NewWorker(&fakeOpener{}, func() Authenticator {
		return authFunc(func(ctx context.Context, session *browser.Session) error {
			return errors.New("post-login marker not found")
		})
	}, metricsFrom(values))

	// The second of four partitions cannot log in
	runner := runnerFunc(func(ctx context.Context, p Partition) Fragment {
		if p.Index == 1 {
			return noMarker.Run(ctx, p)
		}
		return ok.Run(ctx, p)
	})

	eval, err := NewCoordinator(runner, nil).Evaluate(context.Background(), dataset(8), 4)
	require.NoError(t, err)

	assert.Equal(t, []option.Metric{
		option.Present(1), option.Present(2),
		option.Absent, option.Absent,
		option.Present(5), option.Present(6),
		option.Present(7), option.Present(8),
	}, tableMetrics(eval.Table))
	assert.Contains(t, eval.Partitions[1].Error, "post-login marker")
	assert.Empty(t, eval.Partitions[0].Error)
}

func TestEvaluate_EmptyDataset(t *testing.T) {
	called := false
	runner := runnerFunc(func(ctx context.Context, p Partition) Fragment {
		called = true
		return Fragment{}
	})

	ds := &option.Dataset{Columns: []string{option.IDColumn, "price"}}
	eval, err := NewCoordinator(runner, nil).Evaluate(context.Background(), ds, 4)
	require.NoError(t, err)

	assert.False(t, called)
	assert.Equal(t, 0, eval.Table.Len())
	assert.Equal(t, []string{option.IDColumn, "price", option.MetricColumn}, eval.Table.OutputColumns())
}

func TestEvaluate_InvalidParallelism(t *testing.T) {
	_, err := NewCoordinator(runnerFunc(nil), nil).Evaluate(context.Background(), dataset(3), 0)
	assert.ErrorIs(t, err, ErrInvalidParallelism)
}

func TestEvaluate_MorePartitionsThanRows(t *testing.T) {
	var runs atomic.Int32
	runner := runnerFunc(func(ctx context.Context, p Partition) Fragment {
		runs.Add(1)
		frag := absentFragment(p, nil)
		for i := range frag.Results {
			frag.Results[i].Metric = option.Present(1)
		}
		return frag
	})

	eval, err := NewCoordinator(runner, nil).Evaluate(context.Background(), dataset(2), 5)
	require.NoError(t, err)

	assert.Equal(t, int32(2), runs.Load(), "empty partitions are not run")
	assert.Equal(t, 2, eval.Table.Evaluated())
	assert.Len(t, eval.Partitions, 5)
}

func TestEvaluate_RunsPartitionsConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)

	var active, peak atomic.Int32
	runner := runnerFunc(func(ctx context.Context, p Partition) Fragment {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return absentFragment(p, nil)
	})

	_, err := NewCoordinator(runner, nil).Evaluate(context.Background(), dataset(6), 3)
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestEvaluate_RunnerPanic(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, p Partition) Fragment {
		if p.Index == 0 {
			panic("boom")
		}
		frag := absentFragment(p, nil)
		frag.Results[0].Metric = option.Present(9)
		return frag
	})

	eval, err := NewCoordinator(runner, nil).Evaluate(context.Background(), dataset(2), 2)
	require.NoError(t, err)

	assert.Equal(t, []option.Metric{option.Absent, option.Present(9)}, tableMetrics(eval.Table))
	assert.Contains(t, eval.Partitions[0].Error, ErrWorkerPanic.Error())
}

func TestEvaluate_MismatchedFragment(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, p Partition) Fragment {
		return Fragment{
			Index:   p.Index,
			Results: []option.Result{{Option: option.DesignOption{ID: "bogus"}, Metric: option.Present(1)}},
		}
	})

	eval, err := NewCoordinator(runner, nil).Evaluate(context.Background(), dataset(4), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"opt1", "opt2", "opt3", "opt4"}, tableIDs(eval.Table))
	assert.Equal(t, 0, eval.Table.Evaluated())
	assert.ErrorIs(t, eval.Table.Rows[0].Err, ErrFragmentMismatch)
}

func TestEvaluate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(0, 40).Draw(t, "rows")
		parallelism := rapid.IntRange(1, 8).Draw(t, "parallelism")
		failing := rapid.SliceOfN(rapid.Bool(), rows, rows).Draw(t, "failing")

		values := map[string]float64{}
		for i, opt := range makeOptions(rows) {
			if !failing[i] {
				values[opt.ID] = float64(i)
			}
		}
		w := NewWorker(&fakeOpener{}, loginOK, metricsFrom(values))

		eval, err := NewCoordinator(w, nil).Evaluate(context.Background(), dataset(rows), parallelism)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}

		if eval.Table.Len() != rows {
			t.Fatalf("got %d rows, want %d", eval.Table.Len(), rows)
		}
		for i, r := range eval.Table.Rows {
			if want := fmt.Sprintf("opt%d", i+1); r.Option.ID != want {
				t.Fatalf("row %d is %s, want %s", i, r.Option.ID, want)
			}
			if r.Metric.Present == failing[i] {
				t.Fatalf("row %d present=%v but failing=%v", i, r.Metric.Present, failing[i])
			}
			if r.Metric.Present && r.Metric.Value != float64(i) {
				t.Fatalf("row %d has metric %v", i, r.Metric.Value)
			}
		}
	})
}
