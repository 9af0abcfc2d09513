package sink

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/reviewcraft/pkg/cascade"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/raster"
)

// DefaultTierTimeout bounds each tier that waits on the browser.
const DefaultTierTimeout = 5 * time.Second

// Tier names of the download cascade.
const (
	TierAnchor = "anchor"
	TierFile   = "file"
)

// Downloader triggers a native browser download of dataURI under name and
// returns where the file ended up.
type Downloader interface {
	Download(ctx context.Context, dataURI, name, dir string) (string, error)
}

// Downloads saves images into a directory.
type Downloads struct {
	dir     string
	browser Downloader
	logger  *log.Logger
	timeout time.Duration
}

// DownloadOption configures Downloads.
type DownloadOption func(*Downloads)

// WithDownloadTimeout bounds the browser download tier. Values <= 0 keep
// [DefaultTierTimeout].
func WithDownloadTimeout(d time.Duration) DownloadOption {
	return func(s *Downloads) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewDownloads creates a download sink writing into dir. browser may be nil.
func NewDownloads(dir string, browser Downloader, logger *log.Logger, opts ...DownloadOption) *Downloads {
	if logger == nil {
		logger = log.Default()
	}
	d := &Downloads{dir: dir, browser: browser, logger: logger, timeout: DefaultTierTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FileName returns "<filename>.<format>".
func FileName(filename string, format raster.Format) string {
	return filename + "." + format.Ext()
}

// Deliver saves res as <dir>/<filename>.<format> and returns the path.
func (d *Downloads) Deliver(ctx context.Context, res raster.Result, filename string) (string, error) {
	if err := errors.ValidateFilename(filename); err != nil {
		return "", err
	}
	name := FileName(filename, res.Format)

	tiers := []cascade.Strategy[string]{
		{Name: TierAnchor, Timeout: d.timeout, Attempt: func(ctx context.Context) (string, error) {
			if d.browser == nil {
				return "", errors.New(errors.ErrCodeUnsupported, "no browser download available")
			}
			return d.browser.Download(ctx, res.DataURI, name, d.dir)
		}},
		{Name: TierFile, Detached: true, Attempt: func(context.Context) (string, error) {
			return writeFile(res, filepath.Join(d.dir, name))
		}},
	}

	path, _, err := cascade.Run(ctx, "download", tiers, func(tier string, err error) {
		d.logger.Warn("download tier failed", "tier", tier, "file", name, "err", err)
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSinkFailed, err, "save %s", name)
	}
	return path, nil
}

// writeFile decodes res and writes it atomically to path.
func writeFile(res raster.Result, path string) (string, error) {
	data, err := res.Bytes()
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New(errors.ErrCodeInternal, "image is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
