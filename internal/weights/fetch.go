package weights

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CachePath returns where the checkpoint at rawURL is cached:
// <cacheDir>/<last path element of the URL>.
func CachePath(cacheDir, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid checkpoint URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("invalid checkpoint URL %q: no file name", rawURL)
	}
	return filepath.Join(cacheDir, name), nil
}

// Fetch returns the local path of the checkpoint at rawURL, downloading it
// into the cache directory on first use.
//
// Downloads stream into a temporary file in the cache directory that is
// renamed into place only after the body is complete and, when
// opts.CheckHash is set and the file name carries a hash prefix, the
// SHA-256 digest matches. With opts.CheckHash a cached file is hashed
// again before reuse; one that no longer matches is downloaded afresh.
func Fetch(ctx context.Context, rawURL string, opts Options) (string, error) {
	opts = opts.withDefaults()

	dst, err := CachePath(opts.CacheDir, rawURL)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dst); err == nil {
		switch err := verifyCached(dst, opts); {
		case err == nil:
			opts.Logger.Printf("using cached checkpoint %s", dst)
			return dst, nil
		case errors.Is(err, ErrChecksumMismatch):
			opts.Logger.Printf("cached checkpoint %s is corrupt (%v), downloading again", dst, err)
			if err := os.Remove(dst); err != nil {
				return "", fmt.Errorf("remove corrupt checkpoint: %w", err)
			}
		default:
			return "", err
		}
	}

	if err := os.MkdirAll(opts.CacheDir, 0o750); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	opts.Logger.Printf("downloading %s to %s", rawURL, dst)
	if err := download(ctx, rawURL, dst, opts); err != nil {
		return "", err
	}
	return dst, nil
}

func verifyCached(path string, opts Options) error {
	if !opts.CheckHash {
		return nil
	}
	return VerifyFile(path)
}

func download(ctx context.Context, rawURL, dst string, opts Options) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrBadStatus, rawURL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.partial")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	hasher := sha256.New()
	writers := []io.Writer{tmp, hasher}
	if opts.Progress != nil {
		bar := newProgressBar(opts.Progress, resp.ContentLength, filepath.Base(dst))
		defer func() { _ = bar.Finish() }()
		writers = append(writers, bar)
	}

	if _, err = io.Copy(io.MultiWriter(writers...), resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}

	if prefix := HashPrefix(filepath.Base(dst)); opts.CheckHash && prefix != "" {
		var sum [32]byte
		copy(sum[:], hasher.Sum(nil))
		if err = ValidateHashPrefix(sum, prefix); err != nil {
			return err
		}
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("move checkpoint into cache: %w", err)
	}
	return nil
}

// newProgressBar builds a byte-counting bar. A negative total (unknown
// Content-Length) renders a spinner.
func newProgressBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}
