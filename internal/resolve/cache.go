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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
)

// DefaultIndexTTL is how long a cached version index stays fresh.
const DefaultIndexTTL = 24 * time.Hour

// indexFile is the on-disk shape of {cache}/versions/{provider}/index.json.
type indexFile struct {
	FetchedAt time.Time              `json:"fetched_at"`
	Versions  []provider.VersionInfo `json:"versions"`
}

// IndexCache caches provider version lists. Readers are lock-free: the
// index is published by atomic rename. Writers serialize per provider via
// an advisory file lock.
type IndexCache struct {
	paths  *platform.Paths
	ttl    time.Duration
	logger *slog.Logger
	sink   events.Sink
}

// NewIndexCache creates a cache with the given TTL; zero means
// DefaultIndexTTL.
func NewIndexCache(paths *platform.Paths, ttl time.Duration, logger *slog.Logger, sink events.Sink) *IndexCache {
	if ttl <= 0 {
		ttl = DefaultIndexTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = events.Discard
	}
	return &IndexCache{paths: paths, ttl: ttl, logger: logger, sink: sink}
}

// FetchFunc performs the remote version fetch on cache miss.
type FetchFunc func(ctx context.Context) ([]provider.VersionInfo, error)

// Get returns the version list for a provider, consulting the cache first.
// On a network failure with a stale entry present, the stale entry is used
// and a warning event is emitted.
func (c *IndexCache) Get(ctx context.Context, providerName string, fetch FetchFunc) ([]provider.VersionInfo, error) {
	path := c.paths.VersionIndex(providerName)

	cached, cachedErr := readIndex(path)
	if cachedErr == nil && time.Since(cached.FetchedAt) < c.ttl {
		c.logger.Debug("version index cache hit", "provider", providerName, "versions", len(cached.Versions))
		return cached.Versions, nil
	}

	versions, err := fetch(ctx)
	if err != nil {
		if cachedErr == nil {
			c.logger.Warn("version fetch failed, using stale index",
				"provider", providerName, "age", time.Since(cached.FetchedAt), "error", err)
			c.sink.Emit(events.Event{
				Type:     events.Warning,
				Provider: providerName,
				Message:  fmt.Sprintf("using stale version index (%s old): %v", time.Since(cached.FetchedAt).Round(time.Minute), err),
			})
			return cached.Versions, nil
		}
		return nil, fmt.Errorf("fetch versions for %s: %w", providerName, err)
	}

	if err := c.write(providerName, path, versions); err != nil {
		// A failed cache write does not fail the resolution.
		c.logger.Warn("write version index failed", "provider", providerName, "error", err)
	}
	return versions, nil
}

// write publishes a fresh index under the provider's writer lock.
func (c *IndexCache) write(providerName, path string, versions []provider.VersionInfo) error {
	if err := os.MkdirAll(c.paths.Locks(), 0o755); err != nil {
		return err
	}
	lock := flock.New(c.paths.IndexLock(providerName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(indexFile{FetchedAt: time.Now().UTC(), Versions: versions}, "", "  ")
	if err != nil {
		return err
	}
	return platform.WriteAtomic(path, data, 0o644)
}

func readIndex(path string) (*indexFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("corrupt version index %s: %w", path, err)
	}
	return &idx, nil
}
