package frame

import "fmt"

// Suffixes applied to non-key columns present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// LeftJoin joins right onto f using equality on the key columns. Every row
// of f appears in the output at least once: once per matching row of right,
// or once with null right-hand columns when nothing matches. Rows whose key
// holds a null never match. Non-key columns present on both sides are
// suffixed with LeftSuffix and RightSuffix.
func (f *Frame) LeftJoin(right *Frame, on ...string) (*Frame, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("left join: no key columns")
	}
	lk, err := f.positions(on)
	if err != nil {
		return nil, fmt.Errorf("left join (left side): %w", err)
	}
	if right == nil {
		right = New(on...)
	}
	rk, err := right.positions(on)
	if err != nil {
		return nil, fmt.Errorf("left join (right side): %w", err)
	}

	keys := make(map[string]struct{}, len(on))
	for _, k := range on {
		keys[k] = struct{}{}
	}

	// Output layout: all left columns, then right non-key columns.
	var cols []string
	for _, c := range f.columns {
		if _, isKey := keys[c]; !isKey && right.Has(c) {
			c += LeftSuffix
		}
		cols = append(cols, c)
	}
	var rightCols []int
	for j, c := range right.columns {
		if _, isKey := keys[c]; isKey {
			continue
		}
		if f.Has(c) {
			c += RightSuffix
		}
		cols = append(cols, c)
		rightCols = append(rightCols, j)
	}
	out := New(cols...)

	lookup := make(map[[2]uint64][]int, len(right.rows))
	for r, row := range right.rows {
		if hasNull(row, rk) {
			continue
		}
		h := fingerprint(row, rk)
		lookup[h] = append(lookup[h], r)
	}

	width := len(f.columns) + len(rightCols)
	for _, lrow := range f.rows {
		matched := false
		if !hasNull(lrow, lk) {
			for _, r := range lookup[fingerprint(lrow, lk)] {
				rrow := right.rows[r]
				if !rowsEqual(lrow, lk, rrow, rk) {
					continue
				}
				matched = true
				nr := make([]any, 0, width)
				nr = append(nr, lrow...)
				for _, j := range rightCols {
					nr = append(nr, rrow[j])
				}
				out.rows = append(out.rows, nr)
			}
		}
		if !matched {
			nr := make([]any, width)
			copy(nr, lrow)
			out.rows = append(out.rows, nr)
		}
	}
	return out, nil
}

func hasNull(row []any, idx []int) bool {
	for _, j := range idx {
		if row[j] == nil {
			return true
		}
	}
	return false
}
