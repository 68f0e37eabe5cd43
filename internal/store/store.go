// Package store persists frames as Parquet files: date partitions, dimension
// caches and the rollup file. It also holds the SQLite ledger used for run
// history and the SQLite tracking backend.
package store

import (
	"context"

	"tcgpricing/internal/frame"
)

// Partitions reads and writes one table per calendar day.
type Partitions interface {
	// Write replaces the partition for day.
	Write(day string, f *frame.Frame) error

	// Read returns the partition for day.
	Read(day string) (*frame.Frame, error)

	// Exists reports whether the partition file for day is present.
	Exists(day string) bool

	// Days returns every partition day on disk in ascending order.
	Days() ([]string, error)

	// Remove deletes the partition for day.
	Remove(day string) error
}

// KeyLog persists processed keys grouped by kind.
type KeyLog interface {
	// LoadKeys returns every key recorded for kind in insertion order.
	LoadKeys(ctx context.Context, kind string) ([]string, error)

	// AppendKey records key under kind. Recording a key twice is a no-op.
	AppendKey(ctx context.Context, kind, key string) error
}

// RunLedger records the outcome of pipeline runs.
type RunLedger interface {
	// RecordRun inserts or replaces the record with the same ID.
	RecordRun(ctx context.Context, run RunRecord) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
