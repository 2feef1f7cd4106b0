// Package progress renders document download progress in the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/fedesuarez16/opting-sub000/internal/cloud/download"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// DownloadUI manages concurrent download progress bars using mpb
type DownloadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	completed  atomic.Int32
	failed     atomic.Int32
}

// DownloadFileBar is the progress bar of one document
type DownloadFileBar struct {
	bar       *mpb.Bar
	ui        *DownloadUI
	index     int
	entryID   string
	name      string
	localPath string
	size      int64
	retries   atomic.Int32
	written   atomic.Int64
	startTime time.Time
}

// NewDownloadUI creates a download UI for totalFiles documents writing to stderr.
// Bars are only drawn when stderr is a terminal.
func NewDownloadUI(totalFiles int) *DownloadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableANSIOnWindows(os.Stderr)
		return newDownloadUI(totalFiles, os.Stderr, true)
	}
	return newDownloadUI(totalFiles, os.Stderr, false)
}

func newDownloadUI(totalFiles int, out io.Writer, isTerminal bool) *DownloadUI {
	u := &DownloadUI{out: out, isTerminal: isTerminal, totalFiles: totalFiles}
	if isTerminal {
		u.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		u.progress = mpb.New(mpb.WithOutput(io.Discard))
	}
	return u
}

// truncatePath keeps the last n components of p
func truncatePath(p string, n int) string {
	parts := strings.Split(filepath.ToSlash(p), "/")
	if len(parts) <= n {
		return p
	}
	return ".../" + strings.Join(parts[len(parts)-n:], "/")
}

// Start implements download.Progress.
func (u *DownloadUI) Start(index int, entry models.RemoteFolderEntry, localPath string) download.Bar {
	fb := &DownloadFileBar{
		ui:        u,
		index:     index,
		entryID:   entry.ID,
		name:      entry.Name,
		localPath: localPath,
		size:      entry.SizeOrZero(),
		startTime: time.Now(),
	}

	if !u.isTerminal {
		fmt.Fprintf(u.out, "Downloading [%d/%d]: %s (%.1f MiB)\n",
			index, u.totalFiles, entry.Name, float64(fb.size)/(1024*1024))
		return fb
	}

	fb.bar = u.progress.New(fb.size,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(s decor.Statistics) string {
				base := fmt.Sprintf("[%d/%d] %s", fb.index, u.totalFiles, fb.name)
				if r := fb.retries.Load(); r > 0 {
					return fmt.Sprintf("%s (retry %d)", base, r)
				}
				return base
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.AverageSpeed(decor.SizeB1024(0), "% .1f", decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return fb
}

// Add records n more bytes written.
func (f *DownloadFileBar) Add(n int) {
	f.written.Add(int64(n))
	if f.bar != nil {
		f.bar.IncrBy(n)
	}
}

// SetRetry marks the bar as retrying; progress restarts from zero.
func (f *DownloadFileBar) SetRetry(count int) {
	f.retries.Store(int32(count))
	f.written.Store(0)
	if f.bar != nil {
		f.bar.SetCurrent(0)
	}
}

// Complete finishes the bar and prints a one-line summary above the bars.
func (f *DownloadFileBar) Complete(err error) {
	elapsed := time.Since(f.startTime)
	written := f.written.Load()

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetTotal(written, true)
		}
		speed := 0.0
		if s := elapsed.Seconds(); s > 0 {
			speed = float64(written) / s / (1024 * 1024)
		}
		msg = fmt.Sprintf("✓ %s ← %s (%.1f MiB, %s, %.1f MiB/s)\n",
			truncatePath(f.localPath, 2), f.name,
			float64(written)/(1024*1024), elapsed.Round(time.Millisecond), speed)
		f.ui.completed.Add(1)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s ← %s: %v (after %d retries)\n",
			truncatePath(f.localPath, 2), f.name, err, f.retries.Load())
		f.ui.failed.Add(1)
	}

	// write through mpb while bars are drawn so the summary lands above them
	fmt.Fprint(f.ui.Writer(), msg)
}

// Wait blocks until all progress bars complete
func (u *DownloadUI) Wait() {
	u.progress.Wait()
}

// Writer returns an io.Writer that prints above the progress bars
func (u *DownloadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// Completed returns the number of successful downloads
func (u *DownloadUI) Completed() int {
	return int(u.completed.Load())
}

// Failed returns the number of failed downloads
func (u *DownloadUI) Failed() int {
	return int(u.failed.Load())
}

// IsTerminal returns whether bars are drawn
func (u *DownloadUI) IsTerminal() bool {
	return u.isTerminal
}

var _ download.Progress = (*DownloadUI)(nil)
