// Package partition splits a dataset into disjoint partitions, evaluates each
// partition in its own browser session and merges the partial results back
// into a complete result table.
//
// Failures never cross partition boundaries: a row that cannot be evaluated
// gets an absent metric, and a partition whose session cannot be opened or
// logged in gets absent metrics for all of its rows.
package partition

import (
	"errors"
	"time"

	"github.com/entrhq/designeval/pkg/option"
)

var (
	// ErrInvalidParallelism is returned for a parallelism below one.
	ErrInvalidParallelism = errors.New("parallelism must be at least 1")

	// ErrWorkerPanic marks a fragment of a worker that panicked.
	ErrWorkerPanic = errors.New("partition worker panicked")

	// ErrFragmentMismatch marks a fragment that did not match its partition.
	ErrFragmentMismatch = errors.New("fragment does not match partition")
)

// Partition is a contiguous run of dataset rows owned by one worker.
type Partition struct {
	// Index is the partition number, starting at zero
	Index int

	// Start is the dataset index of the first row
	Start int

	Rows []option.DesignOption
}

// Fragment is the result of evaluating one partition. Results has one entry
// per partition row, in partition order.
type Fragment struct {
	Index   int
	Results []option.Result

	// Err is set when the whole partition failed (session or login)
	Err error

	Duration time.Duration
}

// Split divides rows into exactly n contiguous partitions whose sizes differ
// by at most one; the first len(rows)%n partitions get the extra row.
// Partitions may be empty when n exceeds the row count.
func Split(rows []option.DesignOption, n int) []Partition {
	if n < 1 {
		n = 1
	}

	parts := make([]Partition, n)
	base, extra := len(rows)/n, len(rows)%n

	start := 0
	for i := range parts {
		size := base
		if i < extra {
			size++
		}
		parts[i] = Partition{
			Index: i,
			Start: start,
			Rows:  rows[start : start+size : start+size],
		}
		start += size
	}
	return parts
}

// absentFragment returns a fragment with every row absent.
func absentFragment(p Partition, err error) Fragment {
	results := make([]option.Result, len(p.Rows))
	for i, opt := range p.Rows {
		results[i] = option.Result{Option: opt, Err: err}
	}
	return Fragment{Index: p.Index, Results: results, Err: err}
}
