// Package frame implements a small in-memory table with a dynamic set of
// nullable columns. Cell values are normalised to one of nil, string, int64,
// float64 or bool so they can be written to and read from Parquet files with
// an inferred schema.
package frame

import (
	"errors"
	"fmt"
	"slices"
)

// ErrMissingColumn is returned when an operation names a column that the
// frame does not have.
var ErrMissingColumn = errors.New("missing column")

// Frame is an ordered set of named columns and a list of rows. The zero value
// is an empty frame with no columns.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New returns an empty frame with the given columns.
func New(columns ...string) *Frame {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		f.addColumn(c)
	}
	return f
}

// FromRecords builds a frame from a list of records. Columns appear in the
// order they are first seen; absent keys are null.
func FromRecords(records []map[string]any) *Frame {
	f := New()
	for _, r := range records {
		f.Append(r)
	}
	return f
}

func (f *Frame) ensureIndex() {
	if f.index == nil {
		f.index = make(map[string]int, len(f.columns))
		for i, c := range f.columns {
			f.index[c] = i
		}
	}
}

func (f *Frame) addColumn(name string) int {
	f.ensureIndex()
	if i, ok := f.index[name]; ok {
		return i
	}
	f.columns = append(f.columns, name)
	i := len(f.columns) - 1
	f.index[name] = i
	for r := range f.rows {
		f.rows[r] = append(f.rows[r], nil)
	}
	return i
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return f.Len() == 0 }

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.columns)
}

// Has reports whether the frame has a column.
func (f *Frame) Has(col string) bool {
	if f == nil {
		return false
	}
	f.ensureIndex()
	_, ok := f.index[col]
	return ok
}

// Append adds a row from a record, adding any new columns.
func (f *Frame) Append(record map[string]any) {
	row := make([]any, len(f.columns), len(f.columns)+len(record))
	// Deterministic column order for keys not yet known.
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !f.Has(k) {
			f.addColumn(k)
			row = append(row, nil)
		}
		row[f.index[k]] = Normalize(record[k])
	}
	f.rows = append(f.rows, row)
}

// AppendRow adds a row given in column order. Values are normalised.
func (f *Frame) AppendRow(values ...any) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.columns))
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = Normalize(v)
	}
	f.rows = append(f.rows, row)
	return nil
}

// Value returns the cell at row i in column col, or nil if the column does
// not exist.
func (f *Frame) Value(i int, col string) any {
	f.ensureIndex()
	j, ok := f.index[col]
	if !ok {
		return nil
	}
	return f.rows[i][j]
}

// Row returns a copy of row i as a record, omitting nulls.
func (f *Frame) Row(i int) map[string]any {
	out := make(map[string]any, len(f.columns))
	for j, c := range f.columns {
		if v := f.rows[i][j]; v != nil {
			out[c] = v
		}
	}
	return out
}

// Values returns row i in column order. The slice must not be modified.
func (f *Frame) Values(i int) []any { return f.rows[i] }

// Set assigns v to col in every row, adding the column if needed.
func (f *Frame) Set(col string, v any) {
	j := f.addColumn(col)
	v = Normalize(v)
	for _, row := range f.rows {
		row[j] = v
	}
}

// AsString converts every non-null cell of col to its string form. A missing
// column is left alone.
func (f *Frame) AsString(col string) {
	if !f.Has(col) {
		return
	}
	j := f.index[col]
	for _, row := range f.rows {
		if row[j] != nil {
			row[j] = String(row[j])
		}
	}
}

// Rename renames a column. If to already exists, that column is replaced.
// Renaming a missing column is a no-op.
func (f *Frame) Rename(from, to string) {
	if from == to || !f.Has(from) {
		return
	}
	if f.Has(to) {
		f.Drop(to)
	}
	j := f.index[from]
	f.columns[j] = to
	delete(f.index, from)
	f.index[to] = j
}

// Drop removes the named columns; unknown names are ignored.
func (f *Frame) Drop(cols ...string) {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	f.DropSet(set)
}

// DropSet removes every column present in set.
func (f *Frame) DropSet(set map[string]struct{}) {
	if f == nil {
		return
	}
	var keep []int
	for j, c := range f.columns {
		if _, ok := set[c]; !ok {
			keep = append(keep, j)
		}
	}
	if len(keep) == len(f.columns) {
		return
	}
	cols := make([]string, len(keep))
	for k, j := range keep {
		cols[k] = f.columns[j]
	}
	for r, row := range f.rows {
		nr := make([]any, len(keep))
		for k, j := range keep {
			nr[k] = row[j]
		}
		f.rows[r] = nr
	}
	f.columns = cols
	f.index = nil
	f.ensureIndex()
}

// AllNull reports whether every cell is null. An empty frame is all null.
func (f *Frame) AllNull() bool {
	for _, row := range f.rows {
		for _, v := range row {
			if v != nil {
				return false
			}
		}
	}
	return true
}

// Distinct returns the distinct non-null values of col as strings, in order of
// first appearance.
func (f *Frame) Distinct(col string) []string {
	if !f.Has(col) {
		return nil
	}
	j := f.index[col]
	seen := make(map[string]struct{})
	var out []string
	for _, row := range f.rows {
		if row[j] == nil {
			continue
		}
		s := String(row[j])
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Head returns a frame with the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	out := New(f.columns...)
	out.rows = append(out.rows, f.rows[:n]...)
	return out
}

// Concat stacks frames vertically. The result has the union of all columns
// in order of first appearance; cells missing from a frame are null.
func Concat(frames ...*Frame) *Frame {
	out := New()
	total := 0
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.columns {
			out.addColumn(c)
		}
		total += len(f.rows)
	}
	out.rows = make([][]any, 0, total)
	for _, f := range frames {
		if f == nil {
			continue
		}
		mapping := make([]int, len(f.columns))
		for j, c := range f.columns {
			mapping[j] = out.index[c]
		}
		for _, row := range f.rows {
			nr := make([]any, len(out.columns))
			for j, v := range row {
				nr[mapping[j]] = v
			}
			out.rows = append(out.rows, nr)
		}
	}
	return out
}
