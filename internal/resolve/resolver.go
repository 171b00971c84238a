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
	"errors"
	"fmt"
	"log/slog"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
)

// ErrNoMatchingVersion is returned when no candidate satisfies the
// effective constraint.
var ErrNoMatchingVersion = errors.New("no matching version")

// ErrUnsupportedPlatform is returned when the provider excludes the current
// platform.
var ErrUnsupportedPlatform = errors.New("provider does not support this platform")

// LockfileConflictError reports a pinned version that violates the project
// manifest.
type LockfileConflictError struct {
	Tool     string
	Pinned   string
	Required string
}

func (e *LockfileConflictError) Error() string {
	return fmt.Sprintf("lockfile pins %s=%s but the manifest requires %s", e.Tool, e.Pinned, e.Required)
}

// LockedTool is one lockfile entry as seen by the resolver.
type LockedTool struct {
	Version   string
	Checksum  string
	SourceURL string
}

// Inputs carries the constraint sources in merge-precedence order: user
// config below project manifest, lockfile pins above the manifest, CLI
// override above everything.
type Inputs struct {
	// UserTools maps tool name to constraint from the user config file
	// ({home}/config/config.toml).
	UserTools map[string]string

	// ManifestTools maps tool name to constraint from vx.toml.
	ManifestTools map[string]string

	// Locked maps tool name to the vx.lock pin.
	Locked map[string]LockedTool

	// CLIVersion is the explicit "tool@version" override, already split.
	CLIVersion string
}

// Resolution is a fully resolved request.
type Resolution struct {
	// Provider owns the install; for bundled runtimes this is the parent.
	Provider *provider.Provider

	// Runtime is the installable (parent) runtime.
	Runtime provider.Runtime

	// Requested is the runtime originally asked for, before bundled
	// redirection.
	Requested provider.Runtime

	// Version is the selected version.
	Version provider.VersionInfo

	// Constraint is the effective constraint that selected Version.
	Constraint Constraint

	// Pinned is true when the version came from the lockfile.
	Pinned bool
}

// Resolver implements version selection over the provider registry.
type Resolver struct {
	registry *provider.Registry
	cache    *IndexCache
	platform platform.Platform
	logger   *slog.Logger
	sink     events.Sink
}

// NewResolver builds a resolver for one platform.
func NewResolver(registry *provider.Registry, cache *IndexCache, p platform.Platform, logger *slog.Logger, sink events.Sink) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Resolver{registry: registry, cache: cache, platform: p, logger: logger, sink: sink}
}

// Resolve selects a concrete version for a tool name. Bundled runtimes
// resolve through their parent, so npm and node always agree.
func (r *Resolver) Resolve(ctx context.Context, tool string, in Inputs) (*Resolution, error) {
	p, rt, err := r.registry.LookupRuntime(tool)
	if err != nil {
		return nil, err
	}
	requested := rt

	p, rt, err = r.registry.ResolveParent(p, rt)
	if err != nil {
		return nil, err
	}

	if !p.Supports(r.platform) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedPlatform, p.Name, r.platform.Key())
	}

	r.sink.Emit(events.Event{Type: events.ResolveStarted, Provider: p.Name})

	constraintStr, fromCLI := r.effectiveConstraint(rt.Name, in)
	constraint, err := ParseConstraint(constraintStr)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Provider:   p,
		Runtime:    rt,
		Requested:  requested,
		Constraint: constraint,
	}

	// Lockfile pins win over everything except an explicit CLI version.
	if locked, ok := in.Locked[rt.Name]; ok && !fromCLI {
		if !constraint.Matches(locked.Version) {
			return nil, &LockfileConflictError{Tool: rt.Name, Pinned: locked.Version, Required: constraint.Raw}
		}
		res.Version = provider.VersionInfo{
			Version:     locked.Version,
			DownloadURL: locked.SourceURL,
			Checksum:    locked.Checksum,
		}
		res.Pinned = true
		r.logger.Debug("resolved from lockfile", "tool", tool, "version", locked.Version)
		r.sink.Emit(events.Event{Type: events.ResolveCompleted, Provider: p.Name, Version: locked.Version})
		return res, nil
	}

	hc := &provider.HookContext{Platform: r.platform}
	versions, err := r.cache.Get(ctx, p.Name, func(ctx context.Context) ([]provider.VersionInfo, error) {
		return p.Hooks.FetchVersions(ctx, hc)
	})
	if err != nil {
		return nil, err
	}

	selected, err := r.selectVersion(p, hc, versions, constraint)
	if err != nil {
		return nil, err
	}

	res.Version = selected
	r.logger.Debug("resolved", "tool", tool, "provider", p.Name, "version", selected.Version)
	r.sink.Emit(events.Event{Type: events.ResolveCompleted, Provider: p.Name, Version: selected.Version})
	return res, nil
}

// Versions returns a provider's installable versions, best-first, through
// the index cache.
func (r *Resolver) Versions(ctx context.Context, p *provider.Provider) ([]provider.VersionInfo, error) {
	hc := &provider.HookContext{Platform: r.platform}
	versions, err := r.cache.Get(ctx, p.Name, func(ctx context.Context) ([]provider.VersionInfo, error) {
		return p.Hooks.FetchVersions(ctx, hc)
	})
	if err != nil {
		return nil, err
	}
	return rankVersions(versions), nil
}

// effectiveConstraint merges the constraint sources for a tool. Later
// sources win: user config < manifest < CLI.
func (r *Resolver) effectiveConstraint(tool string, in Inputs) (constraint string, fromCLI bool) {
	if in.CLIVersion != "" {
		return in.CLIVersion, true
	}
	if c, ok := in.ManifestTools[tool]; ok && c != "" {
		return c, false
	}
	if c, ok := in.UserTools[tool]; ok && c != "" {
		return c, false
	}
	return "latest", false
}

// selectVersion filters and ranks candidates, returning the best match.
func (r *Resolver) selectVersion(p *provider.Provider, hc *provider.HookContext, versions []provider.VersionInfo, c Constraint) (provider.VersionInfo, error) {
	// An entry is installable if it has a download for this platform or a
	// system strategy can stand in.
	strategies, err := p.Hooks.SystemInstall(hc)
	if err != nil {
		return provider.VersionInfo{}, fmt.Errorf("provider %s: system_install: %w", p.Name, err)
	}
	hasSystemFallback := len(strategies) > 0

	var candidates []provider.VersionInfo
	for _, v := range versions {
		if !hasSystemFallback {
			url := v.DownloadURL
			if url == "" {
				url, err = p.Hooks.DownloadURL(hc, v.Version)
				if err != nil {
					return provider.VersionInfo{}, err
				}
			}
			if url == "" {
				continue
			}
		}
		if v.Prerelease && !c.AllowPrerelease {
			continue
		}
		if c.Kind == KindLTS && !v.LTS {
			continue
		}
		candidates = append(candidates, v)
	}

	for _, v := range rankVersions(candidates) {
		if c.Matches(v.Version) {
			return v, nil
		}
	}

	return provider.VersionInfo{}, fmt.Errorf("%w: %s has no version matching %q on %s",
		ErrNoMatchingVersion, p.Name, c.Raw, r.platform.Key())
}
