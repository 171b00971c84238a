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
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/provider"
)

// SystemAdapter delegates one system-install strategy to the OS package
// manager. The adapter lives outside the core; this interface is the seam.
type SystemAdapter interface {
	// Available reports whether the strategy's package manager exists on
	// this machine.
	Available(manager string) bool

	// Run executes the strategy (e.g. "brew install imagemagick").
	Run(ctx context.Context, strategy provider.SystemStrategy) error
}

// ExecAdapter is the default SystemAdapter: it invokes the package manager
// binary directly.
type ExecAdapter struct{}

// Available looks the manager binary up on PATH.
func (ExecAdapter) Available(manager string) bool {
	_, err := exec.LookPath(manager)
	return err == nil
}

// Run invokes the manager with the strategy's arguments.
func (ExecAdapter) Run(ctx context.Context, strategy provider.SystemStrategy) error {
	cmd := exec.CommandContext(ctx, strategy.Manager, strategy.Args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", strategy.Manager, strategy.Args, err, out)
	}
	return nil
}

// systemInstall walks the provider's system strategies in priority order.
// On success it synthesizes an install record pointing at the externally
// managed binary; only the manifest sidecar lands under the store.
func (i *Installer) systemInstall(ctx context.Context, fp Fingerprint, req Request, hc *provider.HookContext) (*Record, error) {
	if i.system == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNoInstallMethod, fp.Provider, fp.Platform)
	}

	strategies, err := req.Provider.Hooks.SystemInstall(hc)
	if err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoInstallMethod, fp.Provider, fp.Platform)
	}
	sort.SliceStable(strategies, func(a, b int) bool {
		return strategies[a].Priority > strategies[b].Priority
	})

	var lastErr error
	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !i.system.Available(strategy.Manager) {
			continue
		}

		i.logger.Info("delegating to system package manager",
			"provider", fp.Provider, "manager", strategy.Manager)
		if err := i.system.Run(ctx, strategy); err != nil {
			lastErr = err
			i.logger.Warn("system install strategy failed", "manager", strategy.Manager, "error", err)
			continue
		}

		executable := strategy.Executable
		if executable == "" {
			executable = req.Runtime.Executable
		}
		located, err := exec.LookPath(executable)
		if err != nil {
			lastErr = fmt.Errorf("%s reported success but %s is not on PATH: %w", strategy.Manager, executable, err)
			continue
		}

		final := i.store.Root(fp)
		manifest := Manifest{
			Provider:    fp.Provider,
			Version:     fp.Version,
			Platform:    fp.Platform,
			InstalledAt: time.Now().UTC(),
			System:      true,
			SystemPath:  located,
		}
		if err := WriteManifest(final, manifest); err != nil {
			return nil, err
		}

		i.sink.Emit(events.Event{Type: events.InstallPublished, Provider: fp.Provider, Version: fp.Version, Path: located})
		return &Record{Fingerprint: fp, Root: final, Manifest: manifest}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all system install strategies failed for %s: %w", fp.Provider, lastErr)
	}
	return nil, fmt.Errorf("%w: %s %s", ErrNoInstallMethod, fp.Provider, fp.Platform)
}
