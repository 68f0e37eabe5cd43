package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcgpricing/internal/config"
	"tcgpricing/internal/util"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestPartitionKey(t *testing.T) {
	require.Equal(t, "daily/date=2025-09-20/part.parquet", PartitionKey("2025-09-20"))
}

func TestNewDisabled(t *testing.T) {
	p, err := New(context.Background(), config.Publish{}, 1, util.DiscardLogger())
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestLocalPublisher(t *testing.T) {
	src := writeFile(t, t.TempDir(), "part.parquet", "data")
	dest := t.TempDir()

	p, err := New(context.Background(), config.Publish{Enabled: true, Dir: dest}, 1, util.DiscardLogger())
	require.NoError(t, err)

	st := Publish(context.Background(), p, []Artifact{
		{Path: src, Key: PartitionKey("2025-09-20")},
		{Path: filepath.Join(t.TempDir(), "missing"), Key: "missing"},
		{Path: src, Key: "../escape"},
	}, util.DiscardLogger())
	require.Equal(t, Stats{Uploaded: 1, Failed: 2}, st)

	data, err := os.ReadFile(filepath.Join(dest, "daily", "date=2025-09-20", "part.parquet"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestPublishNilPublisher(t *testing.T) {
	st := Publish(context.Background(), nil, []Artifact{{Path: "x", Key: "y"}}, util.DiscardLogger())
	require.Zero(t, st)
}

func TestS3PublisherPutsObject(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	var (
		mu   sync.Mutex
		puts = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		assert.Equal(t, http.MethodPut, r.Method)
		mu.Lock()
		puts[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Publish{
		Enabled:      true,
		Bucket:       "prices",
		Prefix:       "tcg",
		Region:       "us-east-1",
		Endpoint:     srv.URL,
		UsePathStyle: true,
	}
	p, err := NewS3Publisher(context.Background(), cfg, 2, util.DiscardLogger())
	require.NoError(t, err)
	require.Equal(t, "tcg/daily/date=2025-09-20/part.parquet", p.ObjectKey(PartitionKey("2025-09-20")))

	src := writeFile(t, t.TempDir(), "part.parquet", "data")
	require.NoError(t, p.Upload(context.Background(), src, PartitionKey("2025-09-20")))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, puts["/prices/tcg/daily/date=2025-09-20/part.parquet"])
}
