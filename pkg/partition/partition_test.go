package partition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/entrhq/designeval/pkg/option"
)

func makeOptions(n int) []option.DesignOption {
	opts := make([]option.DesignOption, n)
	for i := range opts {
		opts[i] = option.DesignOption{ID: fmt.Sprintf("opt%d", i+1)}
	}
	return opts
}

func ids(opts []option.DesignOption) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.ID
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		rows  int
		n     int
		sizes []int
	}{
		{name: "even", rows: 4, n: 2, sizes: []int{2, 2}},
		{name: "uneven", rows: 10, n: 4, sizes: []int{3, 3, 2, 2}},
		{name: "single partition", rows: 5, n: 1, sizes: []int{5}},
		{name: "more partitions than rows", rows: 2, n: 4, sizes: []int{1, 1, 0, 0}},
		{name: "empty", rows: 0, n: 3, sizes: []int{0, 0, 0}},
		{name: "invalid n", rows: 3, n: 0, sizes: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := Split(makeOptions(tt.rows), tt.n)
			require.Len(t, parts, len(tt.sizes))

			start := 0
			for i, p := range parts {
				assert.Equal(t, i, p.Index)
				assert.Equal(t, start, p.Start)
				assert.Len(t, p.Rows, tt.sizes[i])
				start += len(p.Rows)
			}
		})
	}
}

func TestSplit_Contiguous(t *testing.T) {
	parts := Split(makeOptions(5), 2)

	assert.Equal(t, []string{"opt1", "opt2", "opt3"}, ids(parts[0].Rows))
	assert.Equal(t, []string{"opt4", "opt5"}, ids(parts[1].Rows))
}

func TestSplit_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(0, 60).Draw(t, "rows")
		n := rapid.IntRange(1, 12).Draw(t, "n")
		opts := makeOptions(rows)

		parts := Split(opts, n)
		if len(parts) != n {
			t.Fatalf("got %d partitions, want %d", len(parts), n)
		}

		var joined []string
		for i, p := range parts {
			if p.Start != len(joined) {
				t.Fatalf("partition %d starts at %d, want %d", i, p.Start, len(joined))
			}
			if i > 0 {
				prev := len(parts[i-1].Rows)
				if len(p.Rows) > prev || prev-len(p.Rows) > 1 {
					t.Fatalf("partition sizes %d then %d", prev, len(p.Rows))
				}
			}
			joined = append(joined, ids(p.Rows)...)
		}

		if got, want := fmt.Sprint(joined), fmt.Sprint(ids(opts)); got != want {
			t.Fatalf("concatenated partitions %s, want %s", got, want)
		}

		again := Split(opts, n)
		for i := range parts {
			if fmt.Sprint(ids(again[i].Rows)) != fmt.Sprint(ids(parts[i].Rows)) {
				t.Fatalf("split is not deterministic at partition %d", i)
			}
		}
	})
}

func TestSplit_PartitionsDoNotAlias(t *testing.T) {
	opts := makeOptions(4)
	parts := Split(opts, 2)

	parts[0].Rows = append(parts[0].Rows, option.DesignOption{ID: "extra"})
	assert.Equal(t, "opt3", opts[2].ID)
	assert.Equal(t, "opt3", parts[1].Rows[0].ID)
}
