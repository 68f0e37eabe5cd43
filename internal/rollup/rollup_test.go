package rollup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
	"tcgpricing/internal/util"
)

func dayFrame(day string, products ...int) *frame.Frame {
	f := frame.New("product_id", "sub_type_name", "market_price", "date", "groupid")
	for _, p := range products {
		if err := f.AppendRow(p, "Normal", float64(p)/10, day, "604"); err != nil {
			panic(err)
		}
	}
	return f
}

func setup(t *testing.T) (*store.PartitionStore, *Maintainer) {
	t.Helper()
	base := t.TempDir()
	ps := store.NewPartitionStore(filepath.Join(base, domain.EnrichedPartitionDir))
	return ps, NewMaintainer(ps, filepath.Join(base, domain.DefaultRollupFile), util.DiscardLogger())
}

func TestRebuildMatchesPartitionDates(t *testing.T) {
	ps, m := setup(t)
	require.NoError(t, ps.Write("2025-09-19", dayFrame("2025-09-19", 1, 2)))
	require.NoError(t, ps.Write("2025-09-20", dayFrame("2025-09-20", 1, 2, 3)))

	res, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, ActionRebuilt, res.Action)
	require.Equal(t, 5, res.Rows)

	dates, err := store.ReadDistinct(m.Path, domain.ColDate)
	require.NoError(t, err)
	days, err := ps.Days()
	require.NoError(t, err)
	require.Equal(t, days, dates)
}

func TestRebuildNoopWhenUpToDate(t *testing.T) {
	ps, m := setup(t)
	require.NoError(t, ps.Write("2025-09-19", dayFrame("2025-09-19", 1, 2)))

	_, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(m.Path)
	require.NoError(t, err)

	res, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, ActionUnchanged, res.Action)
	after, err := os.ReadFile(m.Path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRebuildAfterPartitionAdded(t *testing.T) {
	ps, m := setup(t)
	require.NoError(t, ps.Write("2025-09-19", dayFrame("2025-09-19", 1)))
	_, err := m.Rebuild(context.Background())
	require.NoError(t, err)

	require.NoError(t, ps.Write("2025-09-21", dayFrame("2025-09-21", 1)))
	res, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, ActionRebuilt, res.Action)
	require.Equal(t, 2, res.Rows)
}

func TestRebuildWithoutPartitions(t *testing.T) {
	_, m := setup(t)
	res, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, ActionUnchanged, res.Action)
	require.NoFileExists(t, m.Path)
}

func TestAppendNewDay(t *testing.T) {
	ps, m := setup(t)
	require.NoError(t, ps.Write("2025-09-19", dayFrame("2025-09-19", 1, 2)))
	_, err := m.Rebuild(context.Background())
	require.NoError(t, err)

	require.NoError(t, ps.Write("2025-09-20", dayFrame("2025-09-20", 1, 2, 3)))
	res, err := m.AppendNew(context.Background(), []string{"2025-09-20"})
	require.NoError(t, err)
	require.Equal(t, ActionAppended, res.Action)
	require.Equal(t, 3, res.Added)
	require.Equal(t, 5, res.Rows)

	full, err := store.ReadFrame(m.Path)
	require.NoError(t, err)
	require.Equal(t, 5, full.Len())
	require.Equal(t, []string{"2025-09-19", "2025-09-20"}, full.Distinct(domain.ColDate))

	// Appending the same day again adds nothing.
	res, err = m.AppendNew(context.Background(), []string{"2025-09-20"})
	require.NoError(t, err)
	require.Zero(t, res.Added)
	require.Equal(t, 5, res.Rows)
}

func TestAppendWithoutRollupRebuilds(t *testing.T) {
	ps, m := setup(t)
	require.NoError(t, ps.Write("2025-09-19", dayFrame("2025-09-19", 1, 2)))
	require.NoError(t, ps.Write("2025-09-20", dayFrame("2025-09-20", 1)))

	res, err := m.AppendNew(context.Background(), []string{"2025-09-20"})
	require.NoError(t, err)
	require.Equal(t, ActionRebuilt, res.Action)
	require.Equal(t, 3, res.Rows)
}

func TestAppendIgnoresMissingPartitions(t *testing.T) {
	ps, m := setup(t)
	require.NoError(t, ps.Write("2025-09-19", dayFrame("2025-09-19", 1)))
	_, err := m.Rebuild(context.Background())
	require.NoError(t, err)

	res, err := m.AppendNew(context.Background(), []string{"2025-09-22"})
	require.NoError(t, err)
	require.Equal(t, ActionUnchanged, res.Action)
}
