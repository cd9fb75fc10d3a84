package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Downloader fetches product photos by article into a local directory.
type Downloader struct {
	baseURL string
	dir     string
	http    *http.Client
	logger  *slog.Logger
}

func NewDownloader(baseURL, dir string, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
		http:    &http.Client{Timeout: time.Minute},
		logger:  logger.With("component", "images"),
	}
}

// Download stores <dir>/<article>.jpg and returns its path. Existing files
// are not fetched again.
func (d *Downloader) Download(ctx context.Context, article string) (string, error) {
	if article == "" || strings.ContainsAny(article, `/\`) || article == "." || article == ".." {
		return "", fmt.Errorf("invalid article %q", article)
	}

	path := filepath.Join(d.dir, article+".jpg")
	if _, err := os.Stat(path); err == nil {
		d.logger.Debug("image already exists", "article", article)
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/"+url.PathEscape(article)+".jpg", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image %s: %w", article, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch image %s: status %d", article, resp.StatusCode)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	if err := writeFile(path, resp.Body); err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", article, err)
	}

	d.logger.Info("image saved", "article", article, "path", path)
	return path, nil
}

// DownloadAll fetches every article, logging failures, and returns the
// number of images now present on disk.
func (d *Downloader) DownloadAll(ctx context.Context, articles []string) int {
	saved := 0
	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.Download(ctx, article); err != nil {
			d.logger.Error("image download failed", "article", article, "error", err)
			continue
		}
		saved++
	}
	return saved
}

func writeFile(path string, r io.Reader) (err error) {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
