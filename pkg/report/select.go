// Package report selects the best design option of a run, announces it and
// persists the result table together with run summary artifacts.
package report

import (
	"github.com/entrhq/designeval/pkg/option"
)

// BestDesign is the row with the highest present metric.
type BestDesign struct {
	// Index is the row position in the result table
	Index  int
	Result option.Result
}

// Select returns the row with the maximum present metric. Ties go to the
// earliest row. The second return value is false when no row has a metric.
func Select(table *option.ResultTable) (BestDesign, bool) {
	best := BestDesign{Index: -1}
	for i, row := range table.Rows {
		if !row.Metric.Present {
			continue
		}
		if best.Index < 0 || row.Metric.Value > best.Result.Metric.Value {
			best = BestDesign{Index: i, Result: row}
		}
	}
	if best.Index < 0 {
		return BestDesign{}, false
	}
	return best, true
}
