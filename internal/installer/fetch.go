// Copyright (c) 2025 loonghao
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
)

// URLResolver is the embedding process's CDN/mirror hook. The core treats
// it as opaque: it receives the chosen URL and returns the one to fetch.
type URLResolver func(url string) string

// Fetcher downloads payloads into the download cache.
type Fetcher struct {
	paths        *platform.Paths
	client       *retryablehttp.Client
	logger       *slog.Logger
	sink         events.Sink
	resolveURL   URLResolver
	stallTimeout time.Duration
}

// NewFetcher builds a fetcher. resolveURL may be nil.
func NewFetcher(paths *platform.Paths, logger *slog.Logger, sink events.Sink, resolveURL URLResolver) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = events.Discard
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{Timeout: 10 * time.Second}).DialContext

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport}
	rc.RetryMax = 3
	rc.Logger = nil

	return &Fetcher{
		paths:        paths,
		client:       rc,
		logger:       logger,
		sink:         sink,
		resolveURL:   resolveURL,
		stallTimeout: 30 * time.Second,
	}
}

// archiveExt extracts the archive extension from a URL path, keeping
// compound extensions (.tar.gz) intact. A bare binary yields "bin".
func archiveExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}
	base := strings.ToLower(filepath.Base(path))

	for _, ext := range []string{
		".tar.gz", ".tar.xz", ".tar.bz2", ".tgz", ".7z.exe", ".zip",
		".msi", ".7z", ".exe", ".appimage", ".gz", ".xz",
	} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimPrefix(ext, ".")
		}
	}
	return "bin"
}

// cachePath returns the final download cache location for a fingerprint.
func (f *Fetcher) cachePath(fp Fingerprint, sourceURL string) string {
	name := fmt.Sprintf("%s.%s", fp.String(), archiveExt(sourceURL))
	return filepath.Join(f.paths.Downloads(), name)
}

// Fetch downloads the payload for a fingerprint, trying the primary URL and
// then each mirror. It returns the cached file path. A valid existing cache
// entry short-circuits the download entirely.
func (f *Fetcher) Fetch(ctx context.Context, fp Fingerprint, primary string, mirrors []string, checksum string) (string, error) {
	dest := f.cachePath(fp, primary)

	if cached, ok := f.cacheValid(dest, checksum); ok {
		f.logger.Debug("download cache hit", "path", cached)
		return cached, nil
	}

	var lastErr error
	for _, candidate := range append([]string{primary}, mirrors...) {
		if candidate == "" {
			continue
		}
		target := candidate
		if f.resolveURL != nil {
			target = f.resolveURL(candidate)
		}
		if err := validateFetchURL(target); err != nil {
			lastErr = err
			continue
		}

		if err := f.download(ctx, target, dest); err != nil {
			lastErr = err
			f.logger.Warn("download failed", "url", target, "error", err)
			continue
		}

		if checksum != "" {
			if err := VerifyChecksum(dest, checksum); err != nil {
				// A corrupt mirror payload is purged so the next candidate
				// starts clean.
				_ = os.Remove(dest)
				lastErr = err
				continue
			}
		}
		return dest, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no download candidates")
	}
	return "", &FetchError{URL: primary, Err: lastErr}
}

// validateFetchURL enforces HTTPS. Plain HTTP is tolerated only for
// loopback hosts, which keeps local mirrors and tests working.
func validateFetchURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid download url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
		return fmt.Errorf("refusing plain http download from %s", host)
	default:
		return fmt.Errorf("unsupported download scheme %q", u.Scheme)
	}
}

// download streams one URL to dest via a .partial sibling.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	total := resp.ContentLength
	f.sink.Emit(events.Event{Type: events.DownloadStarted, URL: rawURL, BytesTotal: total})

	partial := dest + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return err
	}

	body := &stallReader{r: resp.Body, timeout: f.stallTimeout}
	counter := &progressWriter{sink: f.sink, total: total}
	_, copyErr := io.Copy(io.MultiWriter(out, counter), body)
	closeErr := out.Close()

	if copyErr != nil {
		// The .partial stays behind; the next attempt redownloads it.
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}

	if err := os.Rename(partial, dest); err != nil {
		return err
	}
	f.sink.Emit(events.Event{Type: events.DownloadCompleted, URL: rawURL, BytesDone: counter.done, BytesTotal: total})
	return nil
}

// cacheValid reports whether dest exists and, when a checksum is known,
// still matches it.
func (f *Fetcher) cacheValid(dest, checksum string) (string, bool) {
	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	if checksum != "" {
		if err := VerifyChecksum(dest, checksum); err != nil {
			return "", false
		}
	}
	return dest, true
}

// Purge removes the cached download for a fingerprint, including any
// partial file.
func (f *Fetcher) Purge(fp Fingerprint, sourceURL string) {
	dest := f.cachePath(fp, sourceURL)
	_ = os.Remove(dest)
	_ = os.Remove(dest + ".partial")
}

// VerifyChecksum compares a file's digest against "sha256:<hex>" (a bare
// hex string is treated as sha256).
func VerifyChecksum(path, expected string) error {
	algo := "sha256"
	want := expected
	if i := strings.IndexByte(expected, ':'); i >= 0 {
		algo = expected[:i]
		want = expected[i+1:]
	}
	if algo != "sha256" {
		return fmt.Errorf("unsupported checksum algorithm %q", algo)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return err
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, want) {
		return &ChecksumError{URL: path, Expected: want, Actual: actual}
	}
	return nil
}

// stallReader fails a read when no bytes arrive for the stall timeout.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
}

func (s *stallReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := s.r.Read(p)
		ch <- result{n, err}
	}()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(s.timeout):
		return 0, fmt.Errorf("download stalled: no data for %s", s.timeout)
	}
}

// progressWriter counts bytes and emits progress events.
type progressWriter struct {
	sink  events.Sink
	done  int64
	total int64
	last  time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	// Rate-limit progress events; the sink renders, it should not drown.
	if time.Since(p.last) >= 100*time.Millisecond {
		p.last = time.Now()
		p.sink.Emit(events.Event{Type: events.DownloadProgress, BytesDone: p.done, BytesTotal: p.total})
	}
	return len(b), nil
}
