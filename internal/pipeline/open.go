package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tcgpricing/internal/config"
	"tcgpricing/internal/domain"
	"tcgpricing/internal/publish"
	"tcgpricing/internal/store"
	"tcgpricing/internal/tcgcsv"
	"tcgpricing/internal/tracking"
)

// Resources owns the collaborators opened by Open.
type Resources struct {
	Deps
	db *store.SQLiteStore
}

// Close releases the tracking logs and the ledger database.
func (r *Resources) Close() error {
	var first error
	for _, c := range []interface{ Close() error }{r.Days, r.Groups} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open wires the production collaborators for cfg: the tcgcsv client and
// archive source, the configured tracking backend, the SQLite run ledger and
// the optional publisher.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Resources, error) {
	base := cfg.Storage.BaseDir
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("creating base dir: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	res := &Resources{db: db}
	res.Ledger = db

	switch cfg.Storage.TrackingBackend {
	case config.TrackingSQLite:
		if res.Days, err = tracking.OpenKeyLog(ctx, db, tracking.KindDays); err != nil {
			res.Close()
			return nil, err
		}
		if res.Groups, err = tracking.OpenKeyLog(ctx, db, tracking.KindGroups); err != nil {
			res.Close()
			return nil, err
		}
	default:
		days, err := tracking.OpenFile(filepath.Join(base, domain.ProcessedDaysFile))
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Days = days
		groups, err := tracking.OpenFile(filepath.Join(base, domain.ProcessedGroupsFile))
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Groups = groups
	}

	client := tcgcsv.NewClient(cfg.Source, log)
	res.Source = tcgcsv.NewArchiveSource(client, base, cfg.Source.CategoryID, cfg.Pipeline.KeepExtracted)
	res.Catalog = client

	pub, err := publish.New(ctx, cfg.Publish, cfg.Source.MaxAttempts, log)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("creating publisher: %w", err)
	}
	res.Publisher = pub
	return res, nil
}
