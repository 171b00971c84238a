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
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
)

func sha256hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTestFetcher(t *testing.T) (*Fetcher, *events.Collector) {
	t.Helper()
	sink := &events.Collector{}
	paths := platform.NewPathsAt(t.TempDir())
	return NewFetcher(paths, nil, sink, nil), sink
}

func TestFetchCachesDownload(t *testing.T) {
	payload := []byte("archive-bytes")
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f, sink := newTestFetcher(t)
	fp := Fingerprint{Provider: "widget", Version: "1.0.0", Platform: "linux-x64"}
	url := srv.URL + "/widget-1.0.0.tar.gz"

	path1, err := f.Fetch(context.Background(), fp, url, nil, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(path1)
	if err != nil || string(got) != string(payload) {
		t.Fatalf("cached payload = %q, %v", got, err)
	}
	if !strings.HasSuffix(path1, "widget-1.0.0-linux-x64.tar.gz") {
		t.Errorf("cache name = %s", path1)
	}

	// No .partial left behind.
	if _, err := os.Stat(path1 + ".partial"); !os.IsNotExist(err) {
		t.Errorf("partial file left behind")
	}

	// Second fetch is served from cache.
	path2, err := f.Fetch(context.Background(), fp, url, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if path2 != path1 {
		t.Errorf("paths differ: %s vs %s", path1, path2)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}

	if sink.Count(events.DownloadStarted) != 1 || sink.Count(events.DownloadCompleted) != 1 {
		t.Errorf("events = %v", sink.Types())
	}
}

func TestFetchChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("corrupted"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)
	fp := Fingerprint{Provider: "widget", Version: "1.0.0", Platform: "linux-x64"}

	_, err := f.Fetch(context.Background(), fp, srv.URL+"/w.tar.gz", nil, "sha256:"+sha256hex([]byte("expected")))
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ChecksumError, got %v", err)
	}

	// The corrupt file was purged from the cache.
	entries, _ := os.ReadDir(filepath.Dir(f.cachePath(fp, srv.URL+"/w.tar.gz")))
	if len(entries) != 0 {
		t.Errorf("corrupt download not purged: %v", entries)
	}
}

func TestFetchMirrorFailover(t *testing.T) {
	payload := []byte("good-bytes")
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer good.Close()

	f, _ := newTestFetcher(t)
	fp := Fingerprint{Provider: "widget", Version: "1.0.0", Platform: "linux-x64"}

	path, err := f.Fetch(context.Background(), fp, bad.URL+"/w.tar.gz", []string{good.URL + "/w.tar.gz"}, "sha256:"+sha256hex(payload))
	if err != nil {
		t.Fatalf("mirror failover failed: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(payload) {
		t.Errorf("payload = %q", got)
	}
}

func TestFetchRefusesPlainHTTP(t *testing.T) {
	f, _ := newTestFetcher(t)
	fp := Fingerprint{Provider: "widget", Version: "1.0.0", Platform: "linux-x64"}

	_, err := f.Fetch(context.Background(), fp, "http://example.com/w.tar.gz", nil, "")
	if err == nil || !strings.Contains(err.Error(), "refusing plain http") {
		t.Errorf("expected http refusal, got %v", err)
	}
}

func TestFetchResolveURLHook(t *testing.T) {
	payload := []byte("cdn-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cdn/w.tar.gz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	paths := platform.NewPathsAt(t.TempDir())
	f := NewFetcher(paths, nil, events.Discard, func(url string) string {
		return strings.Replace(url, "/origin/", "/cdn/", 1)
	})

	fp := Fingerprint{Provider: "widget", Version: "1.0.0", Platform: "linux-x64"}
	path, err := f.Fetch(context.Background(), fp, srv.URL+"/origin/w.tar.gz", nil, "")
	if err != nil {
		t.Fatalf("Fetch through resolve hook: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(payload) {
		t.Errorf("payload = %q", got)
	}
}

func TestVerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	good := sha256hex([]byte("content"))
	if err := VerifyChecksum(path, "sha256:"+good); err != nil {
		t.Errorf("matching checksum rejected: %v", err)
	}
	if err := VerifyChecksum(path, good); err != nil {
		t.Errorf("bare hex checksum rejected: %v", err)
	}
	if err := VerifyChecksum(path, "sha256:"+sha256hex([]byte("other"))); err == nil {
		t.Error("mismatch accepted")
	}
	if err := VerifyChecksum(path, "md5:abc"); err == nil {
		t.Error("unknown algorithm accepted")
	}
}
