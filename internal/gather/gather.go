// Package gather turns daily price archives into raw fact partitions.
package gather

import (
	"context"
	"time"

	"tcgpricing/internal/util"
)

// DaySource supplies the decompressed raw files of one day.
type DaySource interface {
	// Fetch returns the category directory holding one sub-directory per
	// group for day. Days the source has nothing for yield an error wrapping
	// domain.ErrNoData.
	Fetch(ctx context.Context, day time.Time) (string, error)
	// Release discards any temporary files kept for day.
	Release(day time.Time) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the dates of the range, every step days, in ascending order.
func (r DateRange) Days(step int) []time.Time {
	return util.DateSteps(r.Start, r.End, step)
}
