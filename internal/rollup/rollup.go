// Package rollup maintains the single file holding every enriched day.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
)

// Actions reported in a Result.
const (
	ActionUnchanged = "unchanged"
	ActionRebuilt   = "rebuilt"
	ActionAppended  = "appended"
)

// Result describes one rollup update.
type Result struct {
	Action string
	// Rows is the row count of a rewritten rollup file, zero if unchanged.
	Rows int
	// Added is the number of rows added by an append.
	Added int
}

// Maintainer keeps the rollup file at Path consistent with the enriched
// partitions.
type Maintainer struct {
	partitions store.Partitions
	Path       string
	log        *slog.Logger
}

// NewMaintainer creates a Maintainer for the rollup file at path.
func NewMaintainer(enriched store.Partitions, path string, log *slog.Logger) *Maintainer {
	if log == nil {
		log = slog.Default()
	}
	return &Maintainer{partitions: enriched, Path: path, log: log.With("component", "rollup")}
}

// days lists the enriched partitions that have a file.
func (m *Maintainer) days() ([]string, error) {
	all, err := m.partitions.Days()
	if err != nil {
		return nil, fmt.Errorf("listing enriched partitions: %w", err)
	}
	var out []string
	for _, d := range all {
		if m.partitions.Exists(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Rebuild rewrites the rollup from every enriched partition unless the dates
// it already holds are exactly the partition dates on disk.
func (m *Maintainer) Rebuild(ctx context.Context) (*Result, error) {
	days, err := m.days()
	if err != nil {
		return nil, err
	}

	if store.FileExists(m.Path) {
		have, err := store.ReadDistinct(m.Path, domain.ColDate)
		if err != nil {
			m.log.Warn("could not read existing rollup, rebuilding", "path", m.Path, "error", err)
		} else if slices.Equal(have, days) {
			m.log.Info("rollup already up to date", "path", m.Path, "days", len(days))
			return &Result{Action: ActionUnchanged}, nil
		}
	}
	if len(days) == 0 {
		m.log.Info("no enriched partitions to roll up")
		return &Result{Action: ActionUnchanged}, nil
	}

	m.log.Info("building rollup", "partitions", len(days))
	frames := make([]*frame.Frame, 0, len(days))
	total := 0
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := m.partitions.Read(d)
		if err != nil {
			return nil, err
		}
		total += f.Len()
		m.log.Debug("loaded partition", "day", d, "rows", f.Len(), "cumulative", total)
		frames = append(frames, f)
	}
	full := frame.Concat(frames...)
	if err := store.WriteTable(m.Path, full); err != nil {
		return nil, fmt.Errorf("writing rollup: %w", err)
	}
	m.log.Info("ok", "path", m.Path, "rows", full.Len())
	return &Result{Action: ActionRebuilt, Rows: full.Len()}, nil
}

// AppendNew adds the enriched partitions of newDays to the rollup, keeping
// the first row per fact key. Without an existing rollup it rebuilds.
func (m *Maintainer) AppendNew(ctx context.Context, newDays []string) (*Result, error) {
	if !store.FileExists(m.Path) {
		return m.Rebuild(ctx)
	}

	var fresh []*frame.Frame
	for _, d := range newDays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !m.partitions.Exists(d) {
			continue
		}
		f, err := m.partitions.Read(d)
		if err != nil {
			return nil, err
		}
		fresh = append(fresh, f)
	}
	if len(fresh) == 0 {
		return &Result{Action: ActionUnchanged}, nil
	}

	old, err := store.ReadFrame(m.Path)
	if err != nil {
		return nil, fmt.Errorf("reading rollup: %w", err)
	}
	full, err := frame.Concat(append([]*frame.Frame{old}, fresh...)...).DropDuplicates(domain.FactKey...)
	if err != nil {
		return nil, err
	}
	if err := store.WriteTable(m.Path, full); err != nil {
		return nil, fmt.Errorf("writing rollup: %w", err)
	}
	added := full.Len() - old.Len()
	m.log.Info("ok", "path", m.Path, "appended", added, "rows", full.Len())
	return &Result{Action: ActionAppended, Rows: full.Len(), Added: added}, nil
}
