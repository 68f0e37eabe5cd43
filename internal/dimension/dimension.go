// Package dimension maintains the Groups and Products dimension caches that
// daily facts are enriched with.
package dimension

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
	"tcgpricing/internal/tracking"
)

// Catalog supplies the remote dimension data.
type Catalog interface {
	FetchGroups(ctx context.Context) (*frame.Frame, error)
	FetchProducts(ctx context.Context, groupID string) (*frame.Frame, error)
}

// Tables holds the dimension tables keyed by domain.ColGroupID.
type Tables struct {
	Groups   *frame.Frame
	Products *frame.Frame

	// Fetched counts groups whose products were fetched this run.
	Fetched int
	// Tracked counts groups skipped because they were already processed.
	Tracked int
	// Failed counts groups whose product fetch failed.
	Failed int
}

// Builder loads and incrementally extends the dimension caches.
type Builder struct {
	catalog      Catalog
	groupsPath   string
	productsPath string
	groups       tracking.Log
	log          *slog.Logger
}

// NewBuilder creates a Builder keeping its caches in baseDir. processed
// tracks the groups whose products are in the cache.
func NewBuilder(catalog Catalog, baseDir string, processed tracking.Log, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		catalog:      catalog,
		groupsPath:   filepath.Join(baseDir, domain.GroupsFile),
		productsPath: filepath.Join(baseDir, domain.ProductsFile),
		groups:       processed,
		log:          log.With("component", "dimensions"),
	}
}

// Build returns the Groups and Products tables. The groups cache is trusted
// whenever it exists. Products are fetched for every group that is not both
// tracked and present in the products cache; new rows are appended to the
// cache, which is deduplicated and rewritten before the groups are marked.
// Per-group fetch failures are logged and leave the group unmarked.
func (b *Builder) Build(ctx context.Context) (*Tables, error) {
	groups, err := b.loadGroups(ctx)
	if err != nil {
		return nil, err
	}

	var cached *frame.Frame
	cachedGroups := make(map[string]struct{})
	if store.FileExists(b.productsPath) {
		cached, err = store.ReadFrame(b.productsPath)
		if err != nil {
			return nil, fmt.Errorf("reading products cache: %w", err)
		}
		for _, gid := range cached.Distinct(domain.SourceGroupID) {
			cachedGroups[gid] = struct{}{}
		}
	}

	t := &Tables{}
	var (
		fetched []*frame.Frame
		pending []string
	)
	skipped, lastSkipped := 0, ""
	flushSkipped := func() {
		if skipped > 0 {
			b.log.Info("skip", "reason", "already processed", "groups", skipped, "through", lastSkipped)
			skipped = 0
		}
	}

	for _, gid := range groups.Distinct(domain.SourceGroupID) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, inCache := cachedGroups[gid]; inCache && b.groups.IsProcessed(gid) {
			t.Tracked++
			skipped++
			lastSkipped = gid
			continue
		}
		flushSkipped()

		products, err := b.catalog.FetchProducts(ctx, gid)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.Failed++
			b.log.Error("products fetch failed", "group", gid, "error", err)
			continue
		}
		if products.Empty() {
			b.log.Info("skip", "group", gid, "reason", "no products")
			continue
		}
		products.Set(domain.SourceGroupID, gid)
		fetched = append(fetched, products)
		pending = append(pending, gid)
		t.Fetched++
		b.log.Info("ok", "group", gid, "products", products.Len())
	}
	flushSkipped()

	products := cached
	if len(fetched) > 0 {
		products, err = frame.Concat(append([]*frame.Frame{cached}, fetched...)...).DropDuplicates()
		if err != nil {
			return nil, err
		}
		if err := store.WriteTable(b.productsPath, products); err != nil {
			return nil, fmt.Errorf("writing products cache: %w", err)
		}
		for _, gid := range pending {
			if err := b.groups.MarkProcessed(gid); err != nil {
				return nil, fmt.Errorf("marking group %s: %w", gid, err)
			}
		}
	}
	if products == nil {
		products = frame.New()
	}
	products, err = products.DropDuplicates()
	if err != nil {
		return nil, err
	}

	t.Groups = canonical(groups)
	t.Products = canonical(products)
	b.log.Info("dimensions ready", "groups", t.Groups.Len(), "products", t.Products.Len(),
		"fetched", t.Fetched, "tracked", t.Tracked, "failed", t.Failed)
	return t, nil
}

// loadGroups returns the cached groups table, fetching and caching it on
// first use.
func (b *Builder) loadGroups(ctx context.Context) (*frame.Frame, error) {
	if store.FileExists(b.groupsPath) {
		groups, err := store.ReadFrame(b.groupsPath)
		if err != nil {
			return nil, fmt.Errorf("reading groups cache: %w", err)
		}
		return groups, nil
	}

	groups, err := b.catalog.FetchGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching groups: %w", err)
	}
	if groups.Empty() {
		return nil, fmt.Errorf("fetching groups: %w", domain.ErrNoData)
	}
	if err := store.WriteTable(b.groupsPath, groups); err != nil {
		return nil, fmt.Errorf("writing groups cache: %w", err)
	}
	b.log.Info("groups cached", "groups", groups.Len())
	return groups, nil
}

// canonical renames the catalog group key to the fact table's key and
// stores it as text.
func canonical(f *frame.Frame) *frame.Frame {
	f.Rename(domain.SourceGroupID, domain.ColGroupID)
	f.AsString(domain.ColGroupID)
	f.DropSet(domain.PruneColumns)
	return f
}
