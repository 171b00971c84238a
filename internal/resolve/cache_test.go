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

package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
)

func TestIndexCacheHit(t *testing.T) {
	paths := platform.NewPathsAt(t.TempDir())
	cache := NewIndexCache(paths, time.Hour, nil, events.Discard)

	calls := 0
	fetch := func(ctx context.Context) ([]provider.VersionInfo, error) {
		calls++
		return []provider.VersionInfo{{Version: "1.0.0"}}, nil
	}

	for i := 0; i < 3; i++ {
		versions, err := cache.Get(context.Background(), "widget", fetch)
		if err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
		if len(versions) != 1 || versions[0].Version != "1.0.0" {
			t.Fatalf("versions = %v", versions)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestIndexCacheExpiry(t *testing.T) {
	paths := platform.NewPathsAt(t.TempDir())
	cache := NewIndexCache(paths, time.Hour, nil, events.Discard)

	if _, err := cache.Get(context.Background(), "widget", func(ctx context.Context) ([]provider.VersionInfo, error) {
		return []provider.VersionInfo{{Version: "1.0.0"}}, nil
	}); err != nil {
		t.Fatal(err)
	}

	// Age the entry past the TTL by rewriting its fetched_at.
	path := paths.VersionIndex("widget")
	idx, err := readIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	idx.FetchedAt = time.Now().Add(-2 * time.Hour)
	data, err := json.Marshal(idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := platform.WriteAtomic(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	versions, err := cache.Get(context.Background(), "widget", func(ctx context.Context) ([]provider.VersionInfo, error) {
		calls++
		return []provider.VersionInfo{{Version: "2.0.0"}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || versions[0].Version != "2.0.0" {
		t.Errorf("expired entry should refetch; calls=%d versions=%v", calls, versions)
	}
}

func TestIndexCacheStaleFallback(t *testing.T) {
	paths := platform.NewPathsAt(t.TempDir())
	sink := &events.Collector{}
	cache := NewIndexCache(paths, time.Nanosecond, nil, sink)

	if _, err := cache.Get(context.Background(), "widget", func(ctx context.Context) ([]provider.VersionInfo, error) {
		return []provider.VersionInfo{{Version: "1.0.0"}}, nil
	}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	// The fetch now fails; the stale entry must be served with a warning.
	versions, err := cache.Get(context.Background(), "widget", func(ctx context.Context) ([]provider.VersionInfo, error) {
		return nil, errors.New("network down")
	})
	if err != nil {
		t.Fatalf("stale fallback should not error: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != "1.0.0" {
		t.Errorf("versions = %v", versions)
	}
	if sink.Count(events.Warning) != 1 {
		t.Errorf("expected one warning event, got %v", sink.Types())
	}
}

func TestIndexCacheMissAndFailure(t *testing.T) {
	paths := platform.NewPathsAt(t.TempDir())
	cache := NewIndexCache(paths, time.Hour, nil, events.Discard)

	_, err := cache.Get(context.Background(), "widget", func(ctx context.Context) ([]provider.VersionInfo, error) {
		return nil, errors.New("network down")
	})
	if err == nil {
		t.Fatal("expected error with no cache present")
	}
}
