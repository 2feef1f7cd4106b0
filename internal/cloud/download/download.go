// Package download fetches drive documents to local files through their
// download links, with bounded concurrency and per-file retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/events"
	"github.com/fedesuarez16/opting-sub000/internal/http"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/metrics"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// ErrNoDownloadURL is returned for files the drive has not published a link for yet.
var ErrNoDownloadURL = errors.New("file has no download link")

// Bar tracks one file's progress.
type Bar interface {
	Add(n int)
	SetRetry(count int)
	Complete(err error)
}

// Progress creates a Bar per file. index is 1-based.
type Progress interface {
	Start(index int, entry models.RemoteFolderEntry, localPath string) Bar
}

// Item is one planned download
type Item struct {
	Entry models.RemoteFolderEntry
	Path  string
}

// Result is the outcome of one Item
type Result struct {
	Item  Item
	Bytes int64
	Err   error
}

// Downloader downloads drive files over HTTP.
type Downloader struct {
	client  *nethttp.Client
	workers int
	retry   http.Config
	logger  *logging.Logger
	bus     *events.EventBus
}

// Option customises a Downloader.
type Option func(*Downloader)

// WithWorkers bounds concurrent downloads.
func WithWorkers(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRetry replaces the per-file retry policy.
func WithRetry(cfg http.Config) Option {
	return func(d *Downloader) {
		d.retry = cfg
	}
}

// WithLogger sets the downloader logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Downloader) {
		d.logger = l
	}
}

// WithEventBus publishes a DownloadEvent per finished file.
func WithEventBus(bus *events.EventBus) Option {
	return func(d *Downloader) {
		d.bus = bus
	}
}

// New creates a downloader using client, typically http.CreateDownloadClient.
func New(client *nethttp.Client, opts ...Option) *Downloader {
	d := &Downloader{
		client:  client,
		workers: constants.DownloadWorkers,
		retry:   http.DefaultConfig(),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// safeName reduces a drive file name to a single local path component
func safeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return ""
	}
	return name
}

// Plan maps the files among entries to paths under dest. Folders are skipped,
// as are files without a download link; those are counted in skipped.
// Clashing names get a numeric suffix.
func Plan(entries []models.RemoteFolderEntry, dest string) (items []Item, skipped int) {
	used := make(map[string]int)
	for _, e := range entries {
		if !e.IsFile() {
			continue
		}
		name := safeName(e.Name)
		if e.DownloadURL == "" || name == "" {
			skipped++
			continue
		}
		key := strings.ToLower(name)
		if n := used[key]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
		}
		used[key]++
		items = append(items, Item{Entry: e, Path: filepath.Join(dest, name)})
	}
	return items, skipped
}

// Run downloads items and returns one Result per item, in input order.
// progress may be nil.
func (d *Downloader) Run(ctx context.Context, items []Item, progress Progress) []Result {
	results := make([]Result, len(items))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Item: item, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			var bar Bar = nopBar{}
			if progress != nil {
				bar = progress.Start(i+1, item.Entry, item.Path)
			}
			n, err := d.File(ctx, item, bar)
			bar.Complete(err)
			results[i] = Result{Item: item, Bytes: n, Err: err}
		}(i, item)
	}
	wg.Wait()
	return results
}

// File downloads one item, retrying transient failures. The file is written
// to a temporary sibling and renamed into place on success.
func (d *Downloader) File(ctx context.Context, item Item, bar Bar) (int64, error) {
	if bar == nil {
		bar = nopBar{}
	}
	if item.Entry.DownloadURL == "" {
		return 0, fmt.Errorf("%s: %w", item.Entry.Name, ErrNoDownloadURL)
	}
	if err := os.MkdirAll(filepath.Dir(item.Path), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}

	start := time.Now()
	var written int64
	cfg := d.retry
	cfg.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		bar.SetRetry(attempt)
		d.logger.Warn().Err(err).
			Str("entry_id", item.Entry.ID).
			Int("attempt", attempt).
			Str("error_type", http.ErrorTypeName(errType)).
			Msg("retrying download")
	}

	err := http.ExecuteWithRetry(ctx, cfg, func() error {
		n, err := d.fetch(ctx, item, bar)
		written = n
		return err
	})

	metrics.RecordDownload(written, err == nil)
	if d.bus != nil {
		d.bus.PublishDownload(item.Entry.ID, item.Entry.Name, item.Path, written, err)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("entry_id", item.Entry.ID).Str("path", item.Path).Msg("download failed")
		return written, fmt.Errorf("download %s: %w", item.Entry.Name, err)
	}
	d.logger.Info().
		Str("entry_id", item.Entry.ID).
		Str("path", item.Path).
		Int64("bytes", written).
		Dur("took", time.Since(start)).
		Msg("document downloaded")
	return written, nil
}

func (d *Downloader) fetch(ctx context.Context, item Item, bar Bar) (int64, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, item.Entry.DownloadURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return 0, &http.StatusError{StatusCode: resp.StatusCode, URL: item.Entry.DownloadURL}
	}

	tmp, err := os.CreateTemp(filepath.Dir(item.Path), "."+filepath.Base(item.Path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, copyErr := io.Copy(tmp, &countingReader{r: resp.Body, bar: bar})
	closeErr := tmp.Close()
	if copyErr != nil {
		return n, copyErr
	}
	if closeErr != nil {
		return n, fmt.Errorf("close temp file: %w", closeErr)
	}
	if size := item.Entry.Size; size != nil && *size > 0 && n != *size {
		return n, fmt.Errorf("size mismatch: got %d bytes, drive reports %d", n, *size)
	}
	if err := os.Rename(tmpName, item.Path); err != nil {
		return n, fmt.Errorf("move into place: %w", err)
	}
	return n, nil
}

type countingReader struct {
	r   io.Reader
	bar Bar
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.bar.Add(n)
	}
	return n, err
}

type nopBar struct{}

func (nopBar) Add(int)        {}
func (nopBar) SetRetry(int)   {}
func (nopBar) Complete(error) {}
