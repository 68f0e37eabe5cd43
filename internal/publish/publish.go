// Package publish uploads newly written artifacts to object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tcgpricing/internal/config"
	"tcgpricing/internal/domain"
)

// ErrUploadFailed wraps every upload failure.
var ErrUploadFailed = errors.New("upload failed")

// Publisher copies a local file to an object key.
type Publisher interface {
	Upload(ctx context.Context, localPath, key string) error
}

// New returns the Publisher selected by cfg, or nil when publishing is
// disabled.
func New(ctx context.Context, cfg config.Publish, attempts int, log *slog.Logger) (Publisher, error) {
	switch {
	case !cfg.Enabled:
		return nil, nil
	case cfg.Bucket != "":
		return NewS3Publisher(ctx, cfg, attempts, log)
	default:
		return NewLocalPublisher(cfg.Dir)
	}
}

// PartitionKey is the object key of the enriched partition for day.
func PartitionKey(day string) string {
	return path.Join(domain.EnrichedPartitionDir, "date="+day, domain.PartFile)
}

// Artifact is a local file and the key it is published under.
type Artifact struct {
	Path string
	Key  string
}

// Stats counts the outcome of a Publish call.
type Stats struct {
	Uploaded int
	Failed   int
}

// Publish uploads every artifact. Failures are logged and counted; they do
// not stop the remaining uploads.
func Publish(ctx context.Context, p Publisher, artifacts []Artifact, log *slog.Logger) Stats {
	var st Stats
	if p == nil {
		return st
	}
	for _, a := range artifacts {
		if err := p.Upload(ctx, a.Path, a.Key); err != nil {
			st.Failed++
			log.Error("publish failed", "key", a.Key, "error", err)
			continue
		}
		st.Uploaded++
		log.Debug("published", "key", a.Key)
	}
	return st
}

// ---------------------------------------------------------------------------
// LocalPublisher
// ---------------------------------------------------------------------------

// LocalPublisher mirrors artifacts into a directory tree.
type LocalPublisher struct {
	basePath string
}

// NewLocalPublisher creates a LocalPublisher rooted at basePath.
func NewLocalPublisher(basePath string) (*LocalPublisher, error) {
	if basePath == "" {
		return nil, errors.New("local publisher: empty base path")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalPublisher{basePath: basePath}, nil
}

// Upload copies localPath to key below the base path.
func (l *LocalPublisher) Upload(ctx context.Context, localPath, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("%w: invalid key %q", ErrUploadFailed, key)
	}
	dest := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}
