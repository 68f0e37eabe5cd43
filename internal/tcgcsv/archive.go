package tcgcsv

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bodgit/sevenzip"

	"tcgpricing/internal/domain"
)

var archiveNameRE = regexp.MustCompile(`prices-(\d{4}-\d{2}-\d{2})\.ppmd\.7z$`)

// relocate maps an entry name inside the archive to a path below the
// category directory. The first path segment equal to category marks the
// category directory; entries outside it, or escaping it, are rejected.
func relocate(name, category string) (string, bool) {
	parts := strings.Split(strings.ReplaceAll(name, `\`, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] != category {
			continue
		}
		rest := parts[i+1:]
		for _, p := range rest {
			if p == "" || p == "." || p == ".." {
				return "", false
			}
		}
		return filepath.Join(rest...), true
	}
	return "", false
}

func nonEmptyDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// Extract unpacks the category directory of a daily price archive into
// <extractRoot>/<day>/<category> and returns that directory. A previous
// non-empty extraction is reused. Archives without the category yield
// ErrNoCategory.
func Extract(archivePath, extractRoot, category string) (string, error) {
	m := archiveNameRE.FindStringSubmatch(filepath.Base(archivePath))
	if m == nil {
		return "", fmt.Errorf("%w: unrecognised archive name %s", domain.ErrNoData, filepath.Base(archivePath))
	}
	dayRoot := filepath.Join(extractRoot, m[1])
	catDir := filepath.Join(dayRoot, category)
	if nonEmptyDir(catDir) {
		return catDir, nil
	}

	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer r.Close()

	staging := filepath.Join(dayRoot, ".partial-"+category)
	if err := os.RemoveAll(staging); err != nil {
		return "", err
	}

	written := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel, ok := relocate(f.Name, category)
		if !ok {
			continue
		}
		if err := extractFile(f, filepath.Join(staging, rel)); err != nil {
			os.RemoveAll(staging)
			return "", fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		written++
	}

	if written == 0 {
		os.RemoveAll(staging)
		return "", fmt.Errorf("%w: %s has no category %s", ErrNoCategory, filepath.Base(archivePath), category)
	}
	if err := os.RemoveAll(catDir); err != nil {
		return "", err
	}
	if err := os.Rename(staging, catDir); err != nil {
		return "", err
	}
	return catDir, nil
}

func extractFile(f *sevenzip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ArchiveSource downloads and unpacks daily price archives below a base
// directory:
//
//	<base>/archives/prices-YYYY-MM-DD.ppmd.7z
//	<base>/extracted/YYYY-MM-DD/<category>/<group>/prices
type ArchiveSource struct {
	client        *Client
	archivesDir   string
	extractedDir  string
	category      string
	keepExtracted bool
}

// NewArchiveSource creates an ArchiveSource rooted at baseDir.
func NewArchiveSource(c *Client, baseDir, category string, keepExtracted bool) *ArchiveSource {
	return &ArchiveSource{
		client:        c,
		archivesDir:   filepath.Join(baseDir, domain.ArchivesDir),
		extractedDir:  filepath.Join(baseDir, domain.ExtractedDir),
		category:      category,
		keepExtracted: keepExtracted,
	}
}

// Fetch returns the category directory of day's decompressed archive.
func (s *ArchiveSource) Fetch(ctx context.Context, day time.Time) (string, error) {
	path, err := s.client.DownloadArchive(ctx, day, s.archivesDir)
	if err != nil {
		return "", err
	}
	return Extract(path, s.extractedDir, s.category)
}

// Release removes day's extracted files unless they are to be kept.
func (s *ArchiveSource) Release(day time.Time) error {
	if s.keepExtracted {
		return nil
	}
	return os.RemoveAll(filepath.Join(s.extractedDir, domain.FormatDay(day)))
}

// Cleanup removes the archives directory, and the extracted directory unless
// extracted files are kept.
func (s *ArchiveSource) Cleanup() error {
	if err := os.RemoveAll(s.archivesDir); err != nil {
		return err
	}
	if s.keepExtracted {
		return nil
	}
	return os.RemoveAll(s.extractedDir)
}
