// Package tcgcsv talks to the tcgcsv.com mirror of the TCGplayer catalog:
// daily price archives, the groups list and per-group product lists.
package tcgcsv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcgpricing/internal/config"
	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/util"
)

// Sentinel errors. Both wrap domain.ErrNoData.
var (
	ErrNotFound   = fmt.Errorf("%w: not found", domain.ErrNoData)
	ErrNoCategory = fmt.Errorf("%w: no matching category in archive", domain.ErrNoData)
)

// Client fetches archives and catalog documents, retrying throttled and
// failed requests with exponential backoff.
type Client struct {
	api     *http.Client
	archive *http.Client
	src     config.Source
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewClient creates a Client for the given source settings.
func NewClient(src config.Source, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api:     &http.Client{Timeout: src.Timeout},
		archive: &http.Client{Timeout: src.ArchiveTimeout},
		src:     src,
		limiter: util.NewRateLimiter(src.RateLimitPerMin),
		log:     log.With("component", "tcgcsv"),
	}
}

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// get issues a GET and hands a 200 body to consume. Transport errors and
// retryable statuses are retried; any other status yields ErrNotFound.
// consume may wrap its error with util.Permanent to stop retrying.
func (c *Client) get(ctx context.Context, hc *http.Client, url string, consume func(io.Reader) error) error {
	attempt := 0
	return util.Retry(ctx, c.src.MaxAttempts, c.src.Backoff, func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return util.Permanent(err)
		}
		if c.src.UserAgent != "" {
			req.Header.Set("User-Agent", c.src.UserAgent)
		}

		resp, err := hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return util.Permanent(ctx.Err())
			}
			c.log.Debug("request failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return consume(resp.Body)
		case retryable(resp.StatusCode):
			_, _ = io.Copy(io.Discard, resp.Body)
			c.log.Debug("retryable status", "url", url, "attempt", attempt, "status", resp.StatusCode)
			return fmt.Errorf("GET %s: %s", url, resp.Status)
		default:
			return util.Permanent(fmt.Errorf("%w: GET %s: %s", ErrNotFound, url, resp.Status))
		}
	})
}

func (c *Client) getJSON(ctx context.Context, url string) (any, error) {
	var doc any
	err := c.get(ctx, c.api, url, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		doc, err = decodeJSON(data)
		if err != nil {
			return util.Permanent(fmt.Errorf("decoding %s: %w", url, err))
		}
		return nil
	})
	return doc, err
}

// ArchiveURL returns the price archive URL for day.
func (c *Client) ArchiveURL(day time.Time) string {
	r := strings.NewReplacer(
		"{YYYY}", fmt.Sprintf("%04d", day.Year()),
		"{MM}", fmt.Sprintf("%02d", int(day.Month())),
		"{DD}", fmt.Sprintf("%02d", day.Day()),
	)
	return r.Replace(c.src.ArchiveURLTemplate)
}

// ArchiveName is the local file name of the archive for day.
func ArchiveName(day time.Time) string {
	return "prices-" + domain.FormatDay(day) + ".ppmd.7z"
}

// DownloadArchive fetches the price archive for day into dir and returns its
// path. A non-empty archive already in dir is reused. A missing archive
// yields ErrNotFound.
func (c *Client) DownloadArchive(ctx context.Context, day time.Time, dir string) (string, error) {
	out := filepath.Join(dir, ArchiveName(day))
	if st, err := os.Stat(out); err == nil && st.Size() > 0 {
		return out, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	url := c.ArchiveURL(day)
	err := c.get(ctx, c.archive, url, func(r io.Reader) error {
		tmp, err := os.CreateTemp(dir, ".download-*")
		if err != nil {
			return util.Permanent(err)
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, r); err != nil {
			tmp.Close()
			return fmt.Errorf("downloading %s: %w", url, err)
		}
		if err := tmp.Close(); err != nil {
			return util.Permanent(err)
		}
		return util.Permanent(os.Rename(tmp.Name(), out))
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// FetchGroups returns the catalog groups with snake_case columns.
func (c *Client) FetchGroups(ctx context.Context) (*frame.Frame, error) {
	doc, err := c.getJSON(ctx, c.src.GroupsURL)
	if err != nil {
		return nil, fmt.Errorf("fetching groups: %w", err)
	}
	return GroupsFrame(doc)
}

// FetchProducts returns the flattened products of one group.
func (c *Client) FetchProducts(ctx context.Context, groupID string) (*frame.Frame, error) {
	url := strings.ReplaceAll(c.src.ProductsURLTemplate, "{group_id}", groupID)
	doc, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching products for group %s: %w", groupID, err)
	}
	return ProductsFrame(doc)
}
