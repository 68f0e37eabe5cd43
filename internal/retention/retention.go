// Package retention bounds the number of raw day partitions kept on disk.
package retention

import (
	"fmt"
	"log/slog"

	"tcgpricing/internal/store"
)

// DefaultKeep is the number of raw partitions kept when none is configured.
const DefaultKeep = 7

// Pruner deletes all but the newest raw partitions.
type Pruner struct {
	raw  store.Partitions
	keep int
	log  *slog.Logger
}

// NewPruner creates a Pruner keeping the keep most recent partitions of raw.
// A non-positive keep means DefaultKeep.
func NewPruner(raw store.Partitions, keep int, log *slog.Logger) *Pruner {
	if keep < 1 {
		keep = DefaultKeep
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{raw: raw, keep: keep, log: log.With("component", "retention")}
}

// Prune removes every raw partition older than the newest keep and returns
// the removed days, newest first.
func (p *Pruner) Prune() ([]string, error) {
	days, err := p.raw.Days()
	if err != nil {
		return nil, fmt.Errorf("listing raw partitions: %w", err)
	}
	if len(days) <= p.keep {
		return nil, nil
	}

	// Days are ascending; everything before the newest keep goes.
	old := days[:len(days)-p.keep]
	removed := make([]string, 0, len(old))
	for i := len(old) - 1; i >= 0; i-- {
		if err := p.raw.Remove(old[i]); err != nil {
			return removed, fmt.Errorf("removing raw partition %s: %w", old[i], err)
		}
		removed = append(removed, old[i])
		p.log.Info("pruned", "day", old[i])
	}
	p.log.Info("retention applied", "kept", p.keep, "removed", len(removed))
	return removed, nil
}
