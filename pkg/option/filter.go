package option

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter selects design options by identifier using glob patterns.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles include and exclude patterns. An empty include list
// admits every option not excluded.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}

	for _, pattern := range include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		f.include = append(f.include, g)
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}

	return f, nil
}

// Match reports whether the identifier passes the filter.
func (f *Filter) Match(id string) bool {
	// Exclusions win
	for _, g := range f.exclude {
		if g.Match(id) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}

	for _, g := range f.include {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// Apply returns a new dataset holding the matching options in input order.
func (f *Filter) Apply(ds *Dataset) *Dataset {
	out := &Dataset{Columns: ds.Columns}
	for _, opt := range ds.Options {
		if f.Match(opt.ID) {
			out.Options = append(out.Options, opt)
		}
	}
	return out
}
