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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
)

// DefaultLockTimeout bounds how long an installer waits on the advisory
// lock before giving up.
const DefaultLockTimeout = 5 * time.Minute

// Request names one install: the owning provider, the installable runtime,
// and the resolved version.
type Request struct {
	Provider *provider.Provider
	Runtime  provider.Runtime
	Version  provider.VersionInfo
}

// Options adjusts one Install call.
type Options struct {
	// Force reinstalls over an existing valid install, atomically.
	Force bool

	// LockTimeout overrides DefaultLockTimeout when positive.
	LockTimeout time.Duration
}

// Installer drives the fetch/verify/extract/publish pipeline.
type Installer struct {
	paths    *platform.Paths
	store    *Store
	fetcher  *Fetcher
	system   SystemAdapter
	platform platform.Platform
	logger   *slog.Logger
	sink     events.Sink

	// group coalesces concurrent in-process installs per fingerprint; sem
	// caps how many pipelines run at once.
	group singleflight.Group
	sem   *semaphore.Weighted
}

// Config assembles an Installer.
type Config struct {
	Paths    *platform.Paths
	Platform platform.Platform
	Logger   *slog.Logger
	Sink     events.Sink

	// System handles system-package-manager delegation; nil disables the
	// fallback.
	System SystemAdapter

	// ResolveURL is the embedder's CDN hook; may be nil.
	ResolveURL URLResolver

	// ParallelInstalls caps concurrent pipelines; zero means GOMAXPROCS.
	ParallelInstalls int
}

// New builds an installer.
func New(cfg Config) *Installer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = events.Discard
	}
	parallel := cfg.ParallelInstalls
	if parallel < 1 {
		parallel = runtime.GOMAXPROCS(0)
		if parallel < 1 {
			parallel = 1
		}
	}

	return &Installer{
		paths:    cfg.Paths,
		store:    NewStore(cfg.Paths),
		fetcher:  NewFetcher(cfg.Paths, logger, sink, cfg.ResolveURL),
		system:   cfg.System,
		platform: cfg.Platform,
		logger:   logger,
		sink:     sink,
		sem:      semaphore.NewWeighted(int64(parallel)),
	}
}

// Store exposes the content-addressed install set.
func (i *Installer) Store() *Store { return i.store }

// Install materializes the request's fingerprint, or returns the existing
// install. Concurrent callers for the same fingerprint share one pipeline
// and one outcome.
func (i *Installer) Install(ctx context.Context, req Request, opts Options) (*Record, error) {
	fp := Fingerprint{
		Provider: req.Provider.Name,
		Version:  req.Version.Version,
		Platform: i.platform.Key(),
	}

	// Fast path before any locking.
	if !opts.Force {
		if rec, ok := i.store.Installed(fp); ok {
			return rec, nil
		}
	}

	v, err, _ := i.group.Do(fp.String(), func() (any, error) {
		return i.install(ctx, fp, req, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

// install runs the full pipeline under the parallel-install cap and the
// cross-process advisory lock.
func (i *Installer) install(ctx context.Context, fp Fingerprint, req Request, opts Options) (rec *Record, err error) {
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			i.sink.Emit(events.Event{Type: events.InstallFailed, Provider: fp.Provider, Version: fp.Version, Err: err})
		}
	}()

	if err := i.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer i.sem.Release(1)

	unlock, err := i.acquireLock(ctx, fp, opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Double-checked: another process may have finished while we waited.
	if !opts.Force {
		if rec, ok := i.store.Installed(fp); ok {
			return rec, nil
		}
	}

	hc := &provider.HookContext{Platform: i.platform}

	url := req.Version.DownloadURL
	if url == "" {
		url, err = req.Provider.Hooks.DownloadURL(hc, fp.Version)
		if err != nil {
			return nil, err
		}
	}
	if url == "" {
		return i.systemInstall(ctx, fp, req, hc)
	}

	archive, err := i.fetchVerified(ctx, fp, req, hc, url)
	if err != nil {
		return nil, err
	}

	layout, err := req.Provider.Hooks.InstallLayout(hc, fp.Version)
	if err != nil {
		return nil, err
	}

	final := i.store.Root(fp)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, err
	}
	staging, err := os.MkdirTemp(filepath.Dir(final), ".staging-"+fp.Version+"-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()

	i.sink.Emit(events.Event{Type: events.ExtractStarted, Provider: fp.Provider, Version: fp.Version})
	if err = Extract(ctx, archive, staging, layout, i.platform); err != nil {
		return nil, err
	}
	i.sink.Emit(events.Event{Type: events.ExtractCompleted, Provider: fp.Provider, Version: fp.Version})

	actions, err := req.Provider.Hooks.PostExtract(hc, fp.Version, staging)
	if err != nil {
		return nil, err
	}
	if err = runPostExtract(ctx, actions, staging, i.platform, i.logger, i.sink); err != nil {
		return nil, err
	}

	executables, err := i.resolveExecutables(staging, layout, req.Runtime)
	if err != nil {
		return nil, err
	}

	manifest := Manifest{
		Provider:    fp.Provider,
		Version:     fp.Version,
		Platform:    fp.Platform,
		SourceURL:   url,
		InstalledAt: time.Now().UTC(),
		LayoutHash:  hashLayout(layout),
		Executables: executables,
	}
	if req.Version.Checksum != "" {
		manifest.Checksum = map[string]string{"sha256": strings.TrimPrefix(req.Version.Checksum, "sha256:")}
	}
	if err = WriteManifest(staging, manifest); err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if err = i.publish(staging, final, opts.Force); err != nil {
		return nil, err
	}

	if req.Provider.GlobalShims {
		if shimErr := i.writeShims(req.Provider); shimErr != nil {
			i.logger.Warn("shim creation failed", "provider", fp.Provider, "error", shimErr)
		}
	}

	i.sink.Emit(events.Event{Type: events.InstallPublished, Provider: fp.Provider, Version: fp.Version, Path: final})
	i.logger.Info("installed", "provider", fp.Provider, "version", fp.Version)

	return &Record{Fingerprint: fp, Root: final, Manifest: manifest}, nil
}

// fetchVerified downloads the payload and verifies its checksum. A corrupt
// cache entry is purged and refetched once before the error surfaces.
func (i *Installer) fetchVerified(ctx context.Context, fp Fingerprint, req Request, hc *provider.HookContext, url string) (string, error) {
	mirrors := req.Provider.Hooks.Mirrors(hc, fp.Version)

	archive, err := i.fetcher.Fetch(ctx, fp, url, mirrors, req.Version.Checksum)
	var checksumErr *ChecksumError
	if errors.As(err, &checksumErr) {
		i.logger.Warn("checksum mismatch, refetching once", "provider", fp.Provider, "version", fp.Version)
		i.fetcher.Purge(fp, url)
		archive, err = i.fetcher.Fetch(ctx, fp, url, mirrors, req.Version.Checksum)
	}
	if err != nil {
		return "", err
	}
	return archive, nil
}

// acquireLock takes the fingerprint's advisory file lock, polling until the
// timeout elapses.
func (i *Installer) acquireLock(ctx context.Context, fp Fingerprint, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if err := os.MkdirAll(i.paths.Locks(), 0o755); err != nil {
		return nil, err
	}

	fl := flock.New(i.paths.InstallLock(fp.Provider, fp.Version, fp.Platform))

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fp)
		}
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fp)
	}
	return func() { _ = fl.Unlock() }, nil
}

// publish moves staging to final. A forced reinstall swaps atomically:
// the old tree moves to a quarantine path first and is removed only after
// the new tree is in place, so a crash mid-swap leaves a complete install.
func (i *Installer) publish(staging, final string, force bool) error {
	if !force {
		return platform.RenameIntoPlace(staging, final)
	}

	quarantine := final + ".quarantine"
	_ = os.RemoveAll(quarantine)

	hadOld := false
	if _, err := os.Stat(final); err == nil {
		hadOld = true
		if err := os.Rename(final, quarantine); err != nil {
			return fmt.Errorf("quarantine old install: %w", err)
		}
	}

	if err := os.Rename(staging, final); err != nil {
		if hadOld {
			_ = os.Rename(quarantine, final)
		}
		return fmt.Errorf("publish %s: %w", final, err)
	}

	if hadOld {
		if err := platform.RemoveAllRetry(quarantine, 5, 100*time.Millisecond); err != nil {
			i.logger.Warn("quarantined install not fully removed", "path", quarantine, "error", err)
		}
	}
	return nil
}

// resolveExecutables normalizes the layout's executable paths to the ones
// that actually exist in the staging tree, as install-root-relative slash
// paths. A layout with no declared executables falls back to
// bin/{executable}.
func (i *Installer) resolveExecutables(staging string, layout provider.Layout, rt provider.Runtime) ([]string, error) {
	declared := layout.ExecutablePaths
	if len(declared) == 0 {
		name := rt.Executable
		if name == "" {
			name = rt.Name
		}
		declared = []string{"bin/" + name}
	}

	out := make([]string, 0, len(declared))
	for _, rel := range declared {
		abs, err := executableIn(staging, rel, i.platform)
		if err != nil {
			return nil, err
		}
		relResolved, err := filepath.Rel(staging, abs)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(relResolved))
	}
	return out, nil
}

// writeShims drops thin re-dispatching shims for the provider's runtimes
// into the PATH-exposed bin directory.
func (i *Installer) writeShims(p *provider.Provider) error {
	if err := os.MkdirAll(i.paths.Bin(), 0o755); err != nil {
		return err
	}

	for _, rt := range p.Runtimes {
		name := rt.Executable
		if name == "" {
			name = rt.Name
		}
		var path string
		var body []byte
		if i.platform.OS == platform.OSWindows {
			path = filepath.Join(i.paths.Bin(), name+".cmd")
			body = []byte("@echo off\r\nvx run " + rt.Name + " %*\r\n")
		} else {
			path = filepath.Join(i.paths.Bin(), name)
			body = []byte("#!/bin/sh\nexec vx run " + rt.Name + " \"$@\"\n")
		}
		if err := platform.WriteAtomic(path, body, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// hashLayout fingerprints the layout declaration that produced an install,
// so a changed provider definition reads as a different layout.
func hashLayout(layout provider.Layout) string {
	data, err := json.Marshal(layout)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
