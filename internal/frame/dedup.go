package frame

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

// fingerprint hashes the cells of row at the given positions. Callers must
// confirm matches with rowsEqual since distinct keys may collide.
func fingerprint(row []any, idx []int) [2]uint64 {
	var b strings.Builder
	for _, j := range idx {
		if j < 0 {
			appendKey(&b, nil)
			continue
		}
		appendKey(&b, row[j])
	}
	h1, h2 := murmur3.Sum128([]byte(b.String()))
	return [2]uint64{h1, h2}
}

func rowsEqual(a []any, ai []int, b []any, bi []int) bool {
	for k := range ai {
		var av, bv any
		if ai[k] >= 0 {
			av = a[ai[k]]
		}
		if bi[k] >= 0 {
			bv = b[bi[k]]
		}
		if !equalCell(av, bv) {
			return false
		}
	}
	return true
}

// positions resolves column names to indexes. With no names it returns every
// column.
func (f *Frame) positions(cols []string) ([]int, error) {
	f.ensureIndex()
	if len(cols) == 0 {
		idx := make([]int, len(f.columns))
		for j := range idx {
			idx[j] = j
		}
		return idx, nil
	}
	idx := make([]int, len(cols))
	for k, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
		idx[k] = j
	}
	return idx, nil
}

// DropDuplicates returns a frame without duplicate rows, keeping the first
// occurrence. With a subset only those columns are compared; without one
// whole rows are compared. Nulls compare equal to each other.
func (f *Frame) DropDuplicates(subset ...string) (*Frame, error) {
	idx, err := f.positions(subset)
	if err != nil {
		return nil, err
	}
	out := New(f.columns...)
	seen := make(map[[2]uint64][]int, len(f.rows))
	for r, row := range f.rows {
		h := fingerprint(row, idx)
		dup := false
		for _, prev := range seen[h] {
			if rowsEqual(f.rows[prev], idx, row, idx) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], r)
		out.rows = append(out.rows, row)
	}
	return out, nil
}
