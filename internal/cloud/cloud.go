package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/artifact"
	"github.com/jlmalone/WhatsLiberation/internal/clock"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/rs/zerolog"
)

// Downloader fetches an uploaded export back to the local machine. An
// empty result without error means nothing arrived in time.
type Downloader interface {
	DownloadExport(ctx context.Context, conversationName string, includeMedia bool, runDir, desiredFileName string) ([]string, error)
}

type FolderOptions struct {
	// SyncDir is a local directory kept in sync with the upload folder.
	SyncDir      string
	FilePrefix   string
	PollInterval time.Duration
	Timeout      time.Duration
}

// FolderDownloader waits for the upload to appear in a locally synced
// folder and copies it into the run directory.
type FolderDownloader struct {
	opts   FolderOptions
	clock  clock.Clock
	logger zerolog.Logger
}

var _ Downloader = (*FolderDownloader)(nil)

func NewFolderDownloader(opts FolderOptions, clk clock.Clock, logger zerolog.Logger) *FolderDownloader {
	if clk == nil {
		clk = clock.System
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &FolderDownloader{opts: opts, clock: clk, logger: logger}
}

func (f *FolderDownloader) DownloadExport(ctx context.Context, conversationName string, includeMedia bool, runDir, desiredFileName string) ([]string, error) {
	if f.opts.SyncDir == "" {
		return nil, nil
	}

	start := f.clock.Now()
	// Sync clients keep the upload's original modification time only to
	// the second.
	since := start.Add(-2 * time.Second)
	want := f.opts.FilePrefix + conversationName
	deadline := start.Add(f.opts.Timeout)

	for {
		matches, err := f.find(want, includeMedia, since)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return f.copyAll(matches, runDir)
		}

		if !f.clock.Now().Before(deadline) {
			f.logger.Warn().
				Str("conversation", conversationName).
				Dur("timeout", f.opts.Timeout).
				Err(models.ErrCloudDownloadTimeout).
				Msg("export did not appear in sync folder")
			return nil, nil
		}
		if err := f.clock.Sleep(ctx, f.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (f *FolderDownloader) find(want string, includeMedia bool, since time.Time) ([]string, error) {
	entries, err := os.ReadDir(f.opts.SyncDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sync folder: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !artifact.IsExportFile(e.Name(), want) {
			continue
		}
		if !includeMedia && strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(since) {
			continue
		}
		out = append(out, filepath.Join(f.opts.SyncDir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (f *FolderDownloader) copyAll(paths []string, runDir string) ([]string, error) {
	var out []string
	for _, src := range paths {
		dst := filepath.Join(runDir, "cloud_"+filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return out, fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
		}
		f.logger.Info().Str("file", filepath.Base(src)).Msg("downloaded export from sync folder")
		out = append(out, dst)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
