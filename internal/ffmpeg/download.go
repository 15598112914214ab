package ffmpeg

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// Binaries from github.com/eugeneware/ffmpeg-static release b6.1.1.
const (
	// StaticVersion is the FFmpeg version of the pinned static builds.
	StaticVersion = "6.1.1"

	// StaticBaseURL is the release the pinned builds are fetched from.
	StaticBaseURL = "https://github.com/eugeneware/ffmpeg-static/releases/download/b6.1.1"

	// downloadTimeout bounds one download. Builds are ~20-30MB compressed.
	downloadTimeout = 10 * time.Minute

	// FFmpeg binary is ~80MB uncompressed; 200MB limit guards against gzip bombs.
	maxDecompressedSize = 200 * 1024 * 1024
)

var defaultHTTPClient = &http.Client{
	Timeout: downloadTimeout,
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	},
}

// Asset describes a downloadable engine executable.
type Asset struct {
	URL    string
	SHA256 string // of the bytes as served; empty skips verification
	Gzip   bool
}

// pinned checksums of the gzipped static builds, keyed by Platform name.
var staticChecksums = map[string]string{
	"darwin-arm64": "8923876afa8db5585022d7860ec7e589af192f441c56793971276d450ed3bbfa",
	"darwin-x64":   "5d8fb6f280c428d0e82cd5ee68215f0734d64f88e37dcc9e082f818c9e5025f0",
	"linux-x64":    "bfe8a8fc511530457b528c48d77b5737527b504a3797a9bc4866aeca69c2dffa",
	"win32-x64":    "8883a3dffbd0a16cf4ef95206ea05283f78908dbfb118f73c83f4951dcc06d77",
}

// Platform returns the static-build platform name for a Go os/arch pair,
// e.g. "linux-x64" for linux/amd64.
func Platform(goos, goarch string) string {
	switch goos {
	case "windows":
		goos = "win32"
	}
	switch goarch {
	case "amd64":
		goarch = "x64"
	case "386":
		goarch = "ia32"
	}
	return goos + "-" + goarch
}

// PlatformAsset returns the pinned static build for the given platform.
func PlatformAsset(goos, goarch string) (Asset, bool) {
	return MirrorAsset(StaticBaseURL, goos, goarch)
}

// MirrorAsset returns the static build for the platform as served from base.
// Mirrors are expected to serve byte-identical files, so the pinned checksum applies.
func MirrorAsset(base, goos, goarch string) (Asset, bool) {
	p := Platform(goos, goarch)
	sum, ok := staticChecksums[p]
	if !ok {
		return Asset{}, false
	}
	return Asset{
		URL:    strings.TrimRight(base, "/") + "/ffmpeg-" + p + ".gz",
		SHA256: sum,
		Gzip:   true,
	}, true
}

// Downloader fetches assets, verifies them and exposes the decoded bytes.
type Downloader struct {
	fs    fileSystem
	http  httpDoer
	retry RetryPolicy
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadHTTPClient sets the HTTP client implementation.
func WithDownloadHTTPClient(c httpDoer) DownloaderOption {
	return func(d *Downloader) { d.http = c }
}

// WithRetryPolicy sets how transient download failures are retried.
func WithRetryPolicy(p RetryPolicy) DownloaderOption {
	return func(d *Downloader) { d.retry = p }
}

// NewDownloader creates a Downloader with production defaults.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		fs:    osFileSystem{},
		http:  defaultHTTPClient,
		retry: DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open downloads a to a private temp file, verifies its checksum and returns a reader
// over the decoded content. Closing the reader removes the temp file.
func (d *Downloader) Open(ctx context.Context, a Asset) (io.ReadCloser, error) {
	tmp, err := d.fs.CreateTemp("", "audiosplit-download-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) (io.ReadCloser, error) {
		_ = tmp.Close()
		_ = d.fs.Remove(tmpPath)
		return nil, err
	}

	h := sha256.New()
	err = retry(ctx, d.retry, func() error {
		if err := rewind(tmp); err != nil {
			return err
		}
		h.Reset()
		return d.fetch(ctx, a.URL, io.MultiWriter(tmp, h))
	})
	if err != nil {
		return fail(err)
	}
	if a.SHA256 != "" {
		if actual := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(actual, a.SHA256) {
			return fail(fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, a.SHA256, actual))
		}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind download: %w", err))
	}

	rc := &downloadReader{file: tmp, remove: func() error { return d.fs.Remove(tmpPath) }}
	if !a.Gzip {
		rc.r = tmp
		return rc, nil
	}
	gz, err := gzip.NewReader(tmp)
	if err != nil {
		return fail(fmt.Errorf("invalid gzip file: %w", err))
	}
	rc.gz = gz
	rc.r = &limitedReader{r: gz, n: maxDecompressedSize}
	return rc, nil
}

func (d *Downloader) fetch(ctx context.Context, url string, dest io.Writer) error {
	if path, ok := strings.CutPrefix(url, "file://"); ok {
		f, err := d.fs.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(dest, f); err != nil {
			return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrDownloadFailed, err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrDownloadFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %w: %v", ErrDownloadFailed, errTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w: HTTP %d from %s", ErrDownloadFailed, errTransient, resp.StatusCode, url)
		}
		return fmt.Errorf("%w: HTTP %d from %s", ErrDownloadFailed, resp.StatusCode, url)
	}

	if _, err := io.Copy(dest, resp.Body); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrDownloadFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %w: %v", ErrDownloadFailed, errTransient, err)
	}
	return nil
}

// rewind empties f so a retried fetch starts from scratch.
func rewind(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("reset download: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("reset download: %w", err)
	}
	return nil
}

type downloadReader struct {
	r      io.Reader
	gz     *gzip.Reader
	file   *os.File
	remove func() error
}

func (d *downloadReader) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *downloadReader) Close() error {
	if d.gz != nil {
		_ = d.gz.Close()
	}
	_ = d.file.Close()
	return d.remove()
}

// limitedReader fails instead of truncating once n bytes have been read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		var probe [1]byte
		if n, err := l.r.Read(probe[:]); n == 0 && err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("decompression failed: file exceeds %d bytes limit", maxDecompressedSize)
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}
