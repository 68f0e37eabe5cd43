package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
)

// Compile-time interface check.
var _ Partitions = (*PartitionStore)(nil)

const partitionPrefix = "date="

// PartitionStore implements Partitions using one Parquet file per day:
//
//	<Root>/date=YYYY-MM-DD/part.parquet
type PartitionStore struct {
	Root string
}

// NewPartitionStore creates a PartitionStore rooted at dir.
func NewPartitionStore(dir string) *PartitionStore {
	return &PartitionStore{Root: dir}
}

// Dir returns the directory holding the partition for day.
func (s *PartitionStore) Dir(day string) string {
	return filepath.Join(s.Root, partitionPrefix+day)
}

// Path returns the partition file for day.
func (s *PartitionStore) Path(day string) string {
	return filepath.Join(s.Dir(day), domain.PartFile)
}

// Write replaces the partition for day, dropping pruned columns first.
func (s *PartitionStore) Write(day string, f *frame.Frame) error {
	if err := WriteTable(s.Path(day), f); err != nil {
		return fmt.Errorf("writing partition %s: %w", day, err)
	}
	return nil
}

// Read returns the partition for day.
func (s *PartitionStore) Read(day string) (*frame.Frame, error) {
	f, err := ReadFrame(s.Path(day))
	if err != nil {
		return nil, fmt.Errorf("reading partition %s: %w", day, err)
	}
	return f, nil
}

// Exists reports whether the partition file for day is present.
func (s *PartitionStore) Exists(day string) bool {
	return FileExists(s.Path(day))
}

// Days lists the partition directories under Root in ascending date order.
// A missing root yields no days.
func (s *PartitionStore) Days() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var days []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), partitionPrefix) {
			days = append(days, strings.TrimPrefix(e.Name(), partitionPrefix))
		}
	}
	sort.Strings(days)
	return days, nil
}

// Remove deletes the partition directory for day.
func (s *PartitionStore) Remove(day string) error {
	return os.RemoveAll(s.Dir(day))
}
