// Package option defines the design option data model shared by every stage of
// an evaluation run: the input dataset, per-row metric results and the merged
// result table.
package option

import (
	"strconv"
)

const (
	// IDColumn is the mandatory input column that identifies a design option.
	IDColumn = "design_option"

	// MetricColumn is the column appended to the result table.
	MetricColumn = "metric"
)

// DesignOption is one candidate configuration read from the input table.
// Fields holds the pass-through columns keyed by header name.
type DesignOption struct {
	ID     string
	Fields map[string]string
}

// Field returns a pass-through column value. The identifier column is
// addressable by name as well.
func (o DesignOption) Field(name string) string {
	if name == IDColumn {
		return o.ID
	}
	return o.Fields[name]
}

// Dataset is the ordered sequence of design options of one run.
type Dataset struct {
	// Columns is the input header in its original order.
	Columns []string
	Options []DesignOption
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Options)
}

// Metric is an optional numeric value. The zero value is absent.
type Metric struct {
	Value   float64
	Present bool
}

// Present returns a metric carrying v.
func Present(v float64) Metric {
	return Metric{Value: v, Present: true}
}

// Absent is the marker for a row without a usable metric.
var Absent = Metric{}

// String formats the metric for tabular output; absent metrics are empty.
func (m Metric) String() string {
	if !m.Present {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// Result is a design option augmented with its metric. Err records why the
// metric is absent, if known.
type Result struct {
	Option DesignOption
	Metric Metric
	Err    error
}

// ResultTable is the merged outcome of a run. It always has exactly one row
// per input option, in input order.
type ResultTable struct {
	Columns []string
	Rows    []Result
}

// NewResultTable returns a table for ds with every metric absent.
func NewResultTable(ds *Dataset) *ResultTable {
	rows := make([]Result, len(ds.Options))
	for i, opt := range ds.Options {
		rows[i] = Result{Option: opt}
	}
	return &ResultTable{
		Columns: append([]string(nil), ds.Columns...),
		Rows:    rows,
	}
}

// Len returns the number of rows.
func (t *ResultTable) Len() int {
	return len(t.Rows)
}

// Evaluated returns the number of rows with a present metric.
func (t *ResultTable) Evaluated() int {
	n := 0
	for _, r := range t.Rows {
		if r.Metric.Present {
			n++
		}
	}
	return n
}

// OutputColumns returns the header of the persisted table: the input columns
// followed by the metric column, unless the input already carried one.
func (t *ResultTable) OutputColumns() []string {
	cols := append([]string(nil), t.Columns...)
	for _, c := range cols {
		if c == MetricColumn {
			return cols
		}
	}
	return append(cols, MetricColumn)
}
