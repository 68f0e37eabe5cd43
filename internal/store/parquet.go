package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/parquet-go/parquet-go"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
)

// columnOrderKey stores the frame's column order in the file metadata, since
// Parquet groups sort their fields by name.
const columnOrderKey = "tcgpricing.columns"

const readBatch = 512

// ---------------------------------------------------------------------------
// Schema inference
// ---------------------------------------------------------------------------

type columnKind int

const (
	kindNull columnKind = iota
	kindBool
	kindInt
	kindFloat
	kindString
)

func kindOf(v any) columnKind {
	switch v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case int64:
		return kindInt
	case float64:
		return kindFloat
	default:
		return kindString
	}
}

// widen merges two observed kinds. Ints widen to floats; any other mix falls
// back to strings.
func widen(a, b columnKind) columnKind {
	switch {
	case a == b:
		return a
	case a == kindNull:
		return b
	case b == kindNull:
		return a
	case (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt):
		return kindFloat
	default:
		return kindString
	}
}

func inferKinds(f *frame.Frame) map[string]columnKind {
	cols := f.Columns()
	kinds := make(map[string]columnKind, len(cols))
	for j, c := range cols {
		k := kindNull
		for i := 0; i < f.Len(); i++ {
			k = widen(k, kindOf(f.Values(i)[j]))
			if k == kindString {
				break
			}
		}
		kinds[c] = k
	}
	return kinds
}

func nodeFor(k columnKind) parquet.Node {
	switch k {
	case kindBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	case kindInt:
		return parquet.Optional(parquet.Int(64))
	case kindFloat:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	default:
		return parquet.Optional(parquet.String())
	}
}

func valueFor(k columnKind, v any, col int) parquet.Value {
	if v == nil {
		return parquet.NullValue().Level(0, 0, col)
	}
	var pv parquet.Value
	switch k {
	case kindBool:
		pv = parquet.BooleanValue(v.(bool))
	case kindInt:
		pv = parquet.Int64Value(v.(int64))
	case kindFloat:
		switch x := v.(type) {
		case int64:
			pv = parquet.DoubleValue(float64(x))
		default:
			pv = parquet.DoubleValue(x.(float64))
		}
	default:
		pv = parquet.ByteArrayValue([]byte(frame.String(v)))
	}
	return pv.Level(0, 1, col)
}

func cellOf(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

// WriteTable drops the pruned columns from f and writes it to path.
func WriteTable(path string, f *frame.Frame) error {
	f.DropSet(domain.PruneColumns)
	return WriteFrame(path, f)
}

// WriteFrame writes f to path as a Zstd-compressed Parquet file. The file is
// written next to its destination and renamed into place, so readers never
// observe a partial file.
func WriteFrame(path string, f *frame.Frame) error {
	cols := f.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("writing %s: frame has no columns", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	kinds := inferKinds(f)
	group := make(parquet.Group, len(cols))
	for _, c := range cols {
		group[c] = nodeFor(kinds[c])
	}
	schema := parquet.NewSchema("row", group)

	// Map frame positions to leaf column indexes.
	leafIndex := make(map[string]int, len(cols))
	for i, p := range schema.Columns() {
		leafIndex[p[len(p)-1]] = i
	}
	pos := make([]int, len(cols))
	for j, c := range cols {
		pos[j] = leafIndex[c]
	}

	order, err := json.Marshal(cols)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.parquet")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := parquet.NewWriter(tmp, schema,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(columnOrderKey, string(order)),
	)

	batch := make([]parquet.Row, 0, readBatch)
	for i := 0; i < f.Len(); i++ {
		vals := f.Values(i)
		row := make(parquet.Row, len(cols))
		for j, c := range cols {
			row[pos[j]] = valueFor(kinds[c], vals[j], pos[j])
		}
		batch = append(batch, row)
		if len(batch) == cap(batch) {
			if _, err := w.WriteRows(batch); err != nil {
				tmp.Close()
				return fmt.Errorf("writing rows to %s: %w", path, err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := w.WriteRows(batch); err != nil {
			tmp.Close()
			return fmt.Errorf("writing rows to %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("closing parquet writer for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func openParquet(path string) (*parquet.File, *os.File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, nil, err
	}
	pf, err := parquet.OpenFile(fh, st.Size())
	if err != nil {
		fh.Close()
		return nil, nil, fmt.Errorf("opening parquet file %s: %w", path, err)
	}
	return pf, fh, nil
}

// ReadFrame reads a Parquet file written by WriteFrame (or any flat file with
// primitive columns) into a frame.
func ReadFrame(path string) (*frame.Frame, error) {
	pf, fh, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	leaves := pf.Schema().Columns()
	names := make([]string, len(leaves))
	for i, p := range leaves {
		names[i] = p[len(p)-1]
	}

	order := names
	if meta, ok := pf.Lookup(columnOrderKey); ok {
		var saved []string
		if json.Unmarshal([]byte(meta), &saved) == nil && sameColumns(saved, names) {
			order = saved
		}
	}
	out := frame.New(order...)

	at := make(map[string]int, len(order))
	for j, c := range order {
		at[c] = j
	}
	pos := make([]int, len(names))
	for i, n := range names {
		pos[i] = at[n]
	}

	buf := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				vals := make([]any, len(order))
				for _, v := range row {
					vals[pos[v.Column()]] = cellOf(v)
				}
				if aerr := out.AppendRow(vals...); aerr != nil {
					rows.Close()
					return nil, aerr
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("reading rows from %s: %w", path, err)
			}
			if n == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadDistinct returns the distinct non-null values of one column, reading
// only that column's chunks.
func ReadDistinct(path, col string) ([]string, error) {
	pf, fh, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	leaf, ok := pf.Schema().Lookup(col)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", frame.ErrMissingColumn, col, path)
	}

	seen := make(map[string]struct{})
	var out []string
	buf := make([]parquet.Value, readBatch)
	for _, rg := range pf.RowGroups() {
		pages := rg.ColumnChunks()[leaf.ColumnIndex].Pages()
		for {
			page, err := pages.ReadPage()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				pages.Close()
				return nil, fmt.Errorf("reading %s pages from %s: %w", col, path, err)
			}
			values := page.Values()
			for {
				n, verr := values.ReadValues(buf)
				for _, v := range buf[:n] {
					if v.IsNull() {
						continue
					}
					s := frame.String(cellOf(v))
					if _, dup := seen[s]; !dup {
						seen[s] = struct{}{}
						out = append(out, s)
					}
				}
				if errors.Is(verr, io.EOF) || (verr == nil && n == 0) {
					break
				}
				if verr != nil {
					pages.Close()
					return nil, verr
				}
			}
		}
		pages.Close()
	}
	slices.Sort(out)
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// FileExists reports whether path exists and is a regular, non-empty file.
func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}
