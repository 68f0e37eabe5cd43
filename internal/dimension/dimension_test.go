package dimension

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
	"tcgpricing/internal/tcgcsv"
	"tcgpricing/internal/tracking"
	"tcgpricing/internal/util"
)

type fakeCatalog struct {
	groups      *frame.Frame
	products    map[string]*frame.Frame
	fail        map[string]error
	groupCalls  int
	productCall []string
}

func (c *fakeCatalog) FetchGroups(context.Context) (*frame.Frame, error) {
	c.groupCalls++
	return c.groups, nil
}

func (c *fakeCatalog) FetchProducts(_ context.Context, gid string) (*frame.Frame, error) {
	c.productCall = append(c.productCall, gid)
	if err := c.fail[gid]; err != nil {
		return nil, err
	}
	if f, ok := c.products[gid]; ok {
		return frame.Concat(f), nil
	}
	return frame.New(), nil
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		groups: frame.FromRecords([]map[string]any{
			{"group_id": 604, "set_name": "Base Set", "release_date": "1999-01-09"},
			{"group_id": 605, "set_name": "Jungle", "release_date": "1999-06-16"},
		}),
		products: map[string]*frame.Frame{
			"604": frame.FromRecords([]map[string]any{
				{"product_id": 42, "group_id": 604, "name": "Charizard", "attack_1": "Fire Spin", "attack_2": "Flamethrower"},
				{"product_id": 43, "group_id": 604, "name": "Blastoise"},
			}),
			"605": frame.FromRecords([]map[string]any{
				{"product_id": 50, "group_id": 605, "name": "Snorlax"},
			}),
		},
		fail: map[string]error{},
	}
}

func openGroups(t *testing.T, base string) *tracking.FileLog {
	t.Helper()
	l, err := tracking.OpenFile(filepath.Join(base, domain.ProcessedGroupsFile))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestBuildFetchesAndCaches(t *testing.T) {
	base := t.TempDir()
	cat := newCatalog()
	processed := openGroups(t, base)

	tables, err := NewBuilder(cat, base, processed, util.DiscardLogger()).Build(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, tables.Fetched)
	require.Equal(t, []string{"604", "605"}, cat.productCall)
	require.True(t, processed.IsProcessed("604"))
	require.True(t, processed.IsProcessed("605"))
	require.FileExists(t, filepath.Join(base, domain.GroupsFile))
	require.FileExists(t, filepath.Join(base, domain.ProductsFile))

	require.True(t, tables.Groups.Has(domain.ColGroupID))
	require.False(t, tables.Groups.Has(domain.SourceGroupID))
	require.Equal(t, []string{"604", "605"}, tables.Groups.Distinct(domain.ColGroupID))
	require.Equal(t, 3, tables.Products.Len())
	require.Equal(t, []string{"604", "605"}, tables.Products.Distinct(domain.ColGroupID))
	require.Equal(t, "604", tables.Products.Value(0, domain.ColGroupID))
}

func TestBuildIsIdempotent(t *testing.T) {
	base := t.TempDir()
	cat := newCatalog()
	processed := openGroups(t, base)
	b := NewBuilder(cat, base, processed, util.DiscardLogger())

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(base, domain.ProductsFile))
	require.NoError(t, err)

	cat.productCall = nil
	tables, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, cat.productCall)
	require.Equal(t, 1, cat.groupCalls)
	require.Equal(t, 2, tables.Tracked)
	require.Equal(t, 3, tables.Products.Len())

	after, err := os.ReadFile(filepath.Join(base, domain.ProductsFile))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestBuildRefetchesWhenCacheLacksGroup(t *testing.T) {
	base := t.TempDir()
	cat := newCatalog()
	processed := openGroups(t, base)
	require.NoError(t, processed.MarkProcessed("604"))
	require.NoError(t, processed.MarkProcessed("605"))

	// Tracked but no products cache: both groups are fetched again.
	tables, err := NewBuilder(cat, base, processed, util.DiscardLogger()).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"604", "605"}, cat.productCall)
	require.Equal(t, 3, tables.Products.Len())
}

func TestBuildLeavesFailedGroupUnmarked(t *testing.T) {
	base := t.TempDir()
	cat := newCatalog()
	cat.fail["605"] = errors.Join(tcgcsv.ErrNotFound, errors.New("503"))
	processed := openGroups(t, base)
	b := NewBuilder(cat, base, processed, util.DiscardLogger())

	tables, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tables.Failed)
	require.True(t, processed.IsProcessed("604"))
	require.False(t, processed.IsProcessed("605"))

	// The next run retries only the failed group and appends to the cache.
	delete(cat.fail, "605")
	cat.productCall = nil
	tables, err = b.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"605"}, cat.productCall)
	require.Equal(t, 3, tables.Products.Len())
	require.True(t, processed.IsProcessed("605"))
}

func TestBuildTrustsGroupsCache(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, store.WriteFrame(filepath.Join(base, domain.GroupsFile), frame.FromRecords([]map[string]any{
		{"group_id": 604, "set_name": "Base Set"},
	})))
	cat := newCatalog()

	tables, err := NewBuilder(cat, base, openGroups(t, base), util.DiscardLogger()).Build(context.Background())
	require.NoError(t, err)
	require.Zero(t, cat.groupCalls)
	require.Equal(t, []string{"604"}, cat.productCall)
	require.Equal(t, 1, tables.Groups.Len())
}

func TestBuildCapsAttacksForGroup604(t *testing.T) {
	doc := `{"results":[{"productId":42,"groupId":604,"name":"Charizard","extendedData":[
		{"name":"Attack 1","value":"Fire Spin"},
		{"name":"Attack 2","value":"Flamethrower"},
		{"name":"Attack 3","value":"Blast"}]}]}`
	cat := newCatalog()
	cat.products["604"] = productsFromJSON(t, doc)
	base := t.TempDir()

	tables, err := NewBuilder(cat, base, openGroups(t, base), util.DiscardLogger()).Build(context.Background())
	require.NoError(t, err)

	p := tables.Products
	require.Equal(t, "Fire Spin", p.Value(0, "attack_1"))
	require.Equal(t, "Flamethrower", p.Value(0, "attack_2"))
	require.False(t, p.Has("attack_3"))
}
