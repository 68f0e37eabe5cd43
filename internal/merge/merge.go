// Package merge enriches raw day partitions with the dimension tables.
package merge

import (
	"context"
	"fmt"
	"log/slog"

	"tcgpricing/internal/dimension"
	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
)

// Result describes one merge pass.
type Result struct {
	Days []string
	Rows int
}

// Engine writes one enriched partition per newly harvested day.
type Engine struct {
	raw      store.Partitions
	enriched store.Partitions
	log      *slog.Logger
}

// NewEngine creates an Engine reading raw partitions and writing enriched
// ones.
func NewEngine(raw, enriched store.Partitions, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{raw: raw, enriched: enriched, log: log.With("component", "merge")}
}

// Run enriches the raw partition of each day in days and overwrites its
// enriched partition. Days are never discovered from disk.
func (e *Engine) Run(ctx context.Context, days []string, dims *dimension.Tables) (*Result, error) {
	res := &Result{}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		facts, err := e.raw.Read(day)
		if err != nil {
			return nil, err
		}
		merged, err := Enrich(facts, dims.Products, dims.Groups)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", day, err)
		}
		if err := e.enriched.Write(day, merged); err != nil {
			return nil, err
		}
		res.Days = append(res.Days, day)
		res.Rows += merged.Len()
		e.log.Info("ok", "day", day, "rows", merged.Len(), "raw_rows", facts.Len())
	}
	return res, nil
}

// Enrich left-joins facts to products on (groupid, product_id) and the
// result to groups on groupid, then keeps the first row per fact key. Facts
// without a matching dimension row survive with null dimension columns.
func Enrich(facts, products, groups *frame.Frame) (*frame.Frame, error) {
	out, err := leftJoin(facts, products, domain.ProductJoinKey)
	if err != nil {
		return nil, err
	}
	out, err = leftJoin(out, groups, domain.GroupJoinKey)
	if err != nil {
		return nil, err
	}
	return out.DropDuplicates(domain.FactKey...)
}

// leftJoin joins right onto left. A right side lacking the key columns
// matches nothing and contributes no columns.
func leftJoin(left, right *frame.Frame, on []string) (*frame.Frame, error) {
	if right == nil {
		return left, nil
	}
	for _, k := range on {
		if !right.Has(k) {
			return left, nil
		}
	}
	return left.LeftJoin(right, on...)
}
