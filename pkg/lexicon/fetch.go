package lexicon

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// maxFetchSize bounds a downloaded word list unless Fetcher.MaxSize is set.
const maxFetchSize = 32 << 20

// Fetcher downloads word lists that are missing on disk.
type Fetcher struct {
	// BaseURL is joined with the file's base name to form the download URL.
	BaseURL string
	// Suffix is appended to the URL: "", ".gz" or ".tgz".
	Suffix string
	// MaxSize bounds the unpacked list in bytes; zero means 32 MiB.
	MaxSize int64
	Client  *http.Client
}

// Ensure makes sure path exists. When it does not, the file is downloaded
// from BaseURL/<base name of path><Suffix>. A .gz body is decompressed and
// a .tgz body yields its first .txt member. It reports whether a download happened.
func (f *Fetcher) Ensure(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if f.BaseURL == "" {
		return false, fmt.Errorf("%s is missing and no download URL is configured", path)
	}
	url := strings.TrimRight(f.BaseURL, "/") + "/" + filepath.Base(path) + f.Suffix
	if err := f.download(ctx, url, path); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (f *Fetcher) maxSize() int64 {
	if f.MaxSize > 0 {
		return f.MaxSize
	}
	return maxFetchSize
}

func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "wifireview")
	resp, err := f.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s failed: %s", url, resp.Status)
	}

	limit := f.maxSize()
	body, closeBody, err := unpack(io.LimitReader(resp.Body, limit+1), url, resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	defer closeBody()

	// Write next to the destination and rename so a failed download never
	// leaves a truncated list behind.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	n, err := io.Copy(tmp, io.LimitReader(body, limit+1))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if n > limit {
		tmp.Close()
		return fmt.Errorf("download %s exceeds %d bytes", url, limit)
	}
	if err := closeBody(); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

// unpack picks the decoder from the URL suffix, falling back to the
// content type for gzip. The returned close func is safe to call twice.
func unpack(r io.Reader, url, contentType string) (io.Reader, func() error, error) {
	nop := func() error { return nil }
	switch {
	case strings.HasSuffix(url, ".tgz"), strings.HasSuffix(url, ".tar.gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nop, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		tr := tar.NewReader(gz)
		for {
			header, err := tr.Next()
			if errors.Is(err, io.EOF) {
				gz.Close()
				return nil, nop, fmt.Errorf("no .txt file found in downloaded archive")
			}
			if err != nil {
				gz.Close()
				return nil, nop, fmt.Errorf("error reading tar archive: %w", err)
			}
			if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".txt") {
				return tr, closeOnce(gz), nil
			}
		}
	case strings.HasSuffix(url, ".gz"), contentType == "application/gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nop, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, closeOnce(gz), nil
	default:
		return r, nop, nil
	}
}

func closeOnce(c io.Closer) func() error {
	var once sync.Once
	var err error
	return func() error {
		once.Do(func() { err = c.Close() })
		return err
	}
}
