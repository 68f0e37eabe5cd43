// Package pipeline runs the price dataset stages in order: harvest facts,
// build dimensions, merge, roll up, publish, clean up and prune.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tcgpricing/internal/config"
	"tcgpricing/internal/dimension"
	"tcgpricing/internal/domain"
	"tcgpricing/internal/gather"
	"tcgpricing/internal/merge"
	"tcgpricing/internal/publish"
	"tcgpricing/internal/retention"
	"tcgpricing/internal/rollup"
	"tcgpricing/internal/store"
	"tcgpricing/internal/tracking"
)

// Cleaner is implemented by day sources that keep temporary files beyond a
// single day.
type Cleaner interface {
	Cleanup() error
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Source  gather.DaySource
	Catalog dimension.Catalog
	Days    tracking.Log
	Groups  tracking.Log
	// Ledger and Publisher are optional.
	Ledger    store.RunLedger
	Publisher publish.Publisher
}

// Summary describes one run.
type Summary struct {
	RunID        string
	Range        gather.DateRange
	NewDays      []string
	RawRows      int
	RowsWritten  int
	TrackedDays  int
	MissingDays  int
	FailedDays   int
	GroupsNew    int
	GroupsFailed int
	Rollup       string
	Published    int
	PublishFail  int
	Pruned       []string
}

// Pipeline runs the stages over one base directory. Runs against the same
// base directory must not overlap.
type Pipeline struct {
	cfg       *config.Config
	deps      Deps
	harvester *gather.Harvester
	builder   *dimension.Builder
	merger    *merge.Engine
	rollup    *rollup.Maintainer
	pruner    *retention.Pruner
	enriched  *store.PartitionStore
	log       *slog.Logger
}

// New creates a Pipeline over cfg.Storage.BaseDir.
func New(cfg *config.Config, deps Deps, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	base := cfg.Storage.BaseDir
	raw := store.NewPartitionStore(filepath.Join(base, domain.RawPartitionDir))
	enriched := store.NewPartitionStore(filepath.Join(base, domain.EnrichedPartitionDir))
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		harvester: gather.NewHarvester(deps.Source, raw, deps.Days, log),
		builder:   dimension.NewBuilder(deps.Catalog, base, deps.Groups, log),
		merger:    merge.NewEngine(raw, enriched, log),
		rollup:    rollup.NewMaintainer(enriched, cfg.RollupPath(), log),
		pruner:    retention.NewPruner(raw, cfg.Pipeline.RetentionDays, log),
		enriched:  enriched,
		log:       log.With("component", "pipeline"),
	}
}

// Run executes one pipeline run over r and records it in the ledger.
func (p *Pipeline) Run(ctx context.Context, r gather.DateRange) (*Summary, error) {
	s := &Summary{RunID: uuid.NewString(), Range: r}
	started := time.Now()
	log := p.log.With("run", s.RunID)
	log.Info("run started",
		"start", domain.FormatDay(r.Start), "end", domain.FormatDay(r.End),
		"interval", p.cfg.Pipeline.IntervalDays, "base_dir", p.cfg.Storage.BaseDir)

	err := p.run(ctx, r, s, log)
	p.record(s, started, err, log)
	return s, err
}

func (p *Pipeline) run(ctx context.Context, r gather.DateRange, s *Summary, log *slog.Logger) error {
	// Stage 1: facts.
	harvest, err := p.harvester.Run(ctx, r, p.cfg.Pipeline.IntervalDays)
	if err != nil {
		return fmt.Errorf("harvesting prices: %w", err)
	}
	s.NewDays = harvest.NewDays
	s.RawRows = harvest.Rows
	s.TrackedDays = harvest.Tracked
	s.MissingDays = harvest.Missing
	s.FailedDays = harvest.Failed

	if len(s.NewDays) == 0 {
		log.Info("no new days to add, dataset already up to date")
		return nil
	}

	// Stage 2: dimensions.
	dims, err := p.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("building dimensions: %w", err)
	}
	s.GroupsNew = dims.Fetched
	s.GroupsFailed = dims.Failed

	// Stage 3: enriched partitions for the new days only.
	merged, err := p.merger.Run(ctx, s.NewDays, dims)
	if err != nil {
		return fmt.Errorf("merging: %w", err)
	}
	s.RowsWritten = merged.Rows

	artifacts := make([]publish.Artifact, 0, len(merged.Days)+1)
	for _, d := range merged.Days {
		artifacts = append(artifacts, publish.Artifact{Path: p.enriched.Path(d), Key: publish.PartitionKey(d)})
	}

	// Stage 4: optional rollup.
	if p.cfg.Pipeline.FullFile {
		var res *rollup.Result
		if p.cfg.Pipeline.RollupMode == config.RollupRebuild {
			res, err = p.rollup.Rebuild(ctx)
		} else {
			res, err = p.rollup.AppendNew(ctx, s.NewDays)
		}
		if err != nil {
			return fmt.Errorf("updating rollup: %w", err)
		}
		s.Rollup = res.Action
		if res.Action != rollup.ActionUnchanged {
			artifacts = append(artifacts, publish.Artifact{Path: p.rollup.Path, Key: filepath.Base(p.rollup.Path)})
		}
	}

	// Stage 5: publish.
	st := publish.Publish(ctx, p.deps.Publisher, artifacts, log)
	s.Published, s.PublishFail = st.Uploaded, st.Failed

	// Stage 6: temporary files and retention.
	if c, ok := p.deps.Source.(Cleaner); ok {
		if err := c.Cleanup(); err != nil {
			log.Warn("removing temporary files", "error", err)
		} else {
			log.Info("removed temporary archives and extracted files")
		}
	}
	s.Pruned, err = p.pruner.Prune()
	if err != nil {
		return fmt.Errorf("pruning raw partitions: %w", err)
	}
	return nil
}

// record logs the run summary and writes it to the ledger.
func (p *Pipeline) record(s *Summary, started time.Time, runErr error, log *slog.Logger) {
	status := store.RunStatusOK
	errText := ""
	if runErr != nil {
		status = store.RunStatusFailed
		errText = runErr.Error()
	}

	log.Info("summary",
		"status", status,
		"new_days", len(s.NewDays),
		"rows_written", s.RowsWritten,
		"raw_rows", s.RawRows,
		"tracked_days", s.TrackedDays,
		"missing_days", s.MissingDays,
		"failed_days", s.FailedDays,
		"groups_fetched", s.GroupsNew,
		"groups_failed", s.GroupsFailed,
		"rollup", s.Rollup,
		"published", s.Published,
		"publish_failed", s.PublishFail,
		"pruned", len(s.Pruned),
		"enriched_dir", p.enriched.Root,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if p.deps.Ledger == nil {
		return
	}
	// Record even when ctx was cancelled so interrupted runs show up.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.deps.Ledger.RecordRun(ctx, store.RunRecord{
		ID:           s.RunID,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		StartDate:    domain.FormatDay(s.Range.Start),
		EndDate:      domain.FormatDay(s.Range.End),
		NewDays:      len(s.NewDays),
		RowsWritten:  int64(s.RowsWritten),
		SkippedDays:  s.TrackedDays + s.MissingDays + s.FailedDays,
		FailedGroups: s.GroupsFailed,
		Status:       status,
		Error:        errText,
	})
	if err != nil {
		log.Error("recording run", "error", err)
	}
}

// Canceled reports whether err stems from an interrupted run.
func Canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
