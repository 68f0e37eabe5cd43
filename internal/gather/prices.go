package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
	"tcgpricing/internal/tcgcsv"
	"tcgpricing/internal/tracking"
)

// pricesFile is the name of the results file inside each group directory.
const pricesFile = "prices"

// Result describes one harvest.
type Result struct {
	// Frame is the concatenation of every newly written day.
	Frame *frame.Frame
	// NewDays lists the days written by this harvest in ascending order.
	NewDays []string
	// Rows is the number of raw rows written.
	Rows int
	// Tracked counts days skipped because they were already processed.
	Tracked int
	// Missing counts days the source had no data for.
	Missing int
	// Failed counts days that could not be fetched.
	Failed int
}

// Harvester writes one raw partition per day with data and marks the day
// processed once its partition is on disk.
type Harvester struct {
	source DaySource
	raw    store.Partitions
	days   tracking.Log
	log    *slog.Logger
}

// NewHarvester creates a Harvester.
func NewHarvester(source DaySource, raw store.Partitions, days tracking.Log, log *slog.Logger) *Harvester {
	if log == nil {
		log = slog.Default()
	}
	return &Harvester{
		source: source,
		raw:    raw,
		days:   days,
		log:    log.With("component", "harvester"),
	}
}

// Run harvests every step-th day of r that has not been processed yet.
// Days without data or with fetch failures are logged and left unmarked.
// Only storage and tracking failures abort the run.
func (h *Harvester) Run(ctx context.Context, r DateRange, step int) (*Result, error) {
	res := &Result{}
	var frames []*frame.Frame

	skipped, lastSkipped := 0, ""
	flushSkipped := func() {
		if skipped > 0 {
			h.log.Info("skip", "reason", "already processed", "days", skipped, "through", lastSkipped)
			skipped = 0
		}
	}

	for _, d := range r.Days(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := domain.FormatDay(d)
		if h.days.IsProcessed(day) {
			res.Tracked++
			skipped++
			lastSkipped = day
			continue
		}
		flushSkipped()

		catDir, err := h.source.Fetch(ctx, d)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case errors.Is(err, domain.ErrNoData):
				res.Missing++
				h.log.Info("skip", "day", day, "reason", skipReason(err))
			default:
				res.Failed++
				h.log.Error("day fetch failed", "day", day, "error", err)
			}
			continue
		}

		f := h.harvestDay(catDir, day)
		if err := h.source.Release(d); err != nil {
			h.log.Warn("releasing extracted files", "day", day, "error", err)
		}
		if f.Empty() {
			res.Missing++
			h.log.Info("skip", "day", day, "reason", "no price data")
			continue
		}

		f.DropSet(domain.PruneColumns)
		if err := h.raw.Write(day, f); err != nil {
			return nil, err
		}
		if err := h.days.MarkProcessed(day); err != nil {
			return nil, fmt.Errorf("marking day %s: %w", day, err)
		}

		frames = append(frames, f)
		res.NewDays = append(res.NewDays, day)
		res.Rows += f.Len()
		h.log.Info("ok", "day", day, "rows", f.Len(), "cols", len(f.Columns()))
	}
	flushSkipped()

	res.Frame = frame.Concat(frames...)
	h.log.Info("harvest finished", "new_days", len(res.NewDays), "rows", res.Rows,
		"tracked", res.Tracked, "missing", res.Missing, "failed", res.Failed)
	return res, nil
}

func skipReason(err error) string {
	if errors.Is(err, tcgcsv.ErrNoCategory) {
		return "no category data in archive"
	}
	if errors.Is(err, tcgcsv.ErrNotFound) {
		return "archive not found"
	}
	return err.Error()
}

// harvestDay reads every group's price file below catDir. Unparseable files
// are logged and dropped; empty and all-null tables are ignored.
func (h *Harvester) harvestDay(catDir, day string) *frame.Frame {
	entries, err := os.ReadDir(catDir)
	if err != nil {
		h.log.Error("reading category directory", "day", day, "path", catDir, "error", err)
		return frame.New()
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var frames []*frame.Frame
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(catDir, e.Name(), pricesFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		f, err := tcgcsv.ParsePrices(path, day, e.Name())
		if err != nil {
			h.log.Error("could not parse prices", "path", path, "error", err)
			continue
		}
		if f.Empty() || f.AllNull() {
			continue
		}
		frames = append(frames, f)
	}
	return frame.Concat(frames...)
}
