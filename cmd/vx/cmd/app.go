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

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loonghao/vx/internal/config"
	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/executor"
	"github.com/loonghao/vx/internal/installer"
	"github.com/loonghao/vx/internal/manifest"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
	"github.com/loonghao/vx/internal/provider/builtin"
	"github.com/loonghao/vx/internal/resolve"
)

// app holds the core component handles, constructed once per invocation
// and threaded through; nothing here is a process-wide mutable.
type app struct {
	logger    *slog.Logger
	platform  platform.Platform
	paths     *platform.Paths
	cfg       *config.Config
	registry  *provider.Registry
	resolver  *resolve.Resolver
	installer *installer.Installer
	executor  *executor.Executor
	manifest  *manifest.Manifest
	lock      *manifest.Lockfile
}

// newApp wires the components: paths, user config, the layered registry,
// resolver, installer, and executor. The project manifest is discovered by
// walking upward from the working directory.
func newApp() (*app, error) {
	logger := newLogger()
	current := platform.Current()

	paths, err := platform.NewPaths(current)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureLayout(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(paths.ConfigFile())
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.Find(cwd)
	if err != nil {
		return nil, err
	}

	var lock *manifest.Lockfile
	projectProviders := ""
	if m != nil {
		lock, err = manifest.LoadLock(m.Dir)
		if err != nil {
			return nil, err
		}
		projectProviders = filepath.Join(m.Dir, ".vx", "providers")
	}

	registry := provider.NewRegistry(logger)
	if err := registry.Load(provider.LoadOptions{
		Builtin:    builtin.FS,
		UserDir:    paths.Providers(),
		ProjectDir: projectProviders,
		IndexURLs:  cfg.Registry.IndexURLs,
	}); err != nil {
		return nil, err
	}

	sink := newRenderer(quietFlag)

	ttl := cfg.CacheTTL()
	if m != nil && m.Settings.CacheTTL() > 0 {
		ttl = m.Settings.CacheTTL()
	}
	cache := resolve.NewIndexCache(paths, ttl, logger, sink)
	resolver := resolve.NewResolver(registry, cache, current, logger, sink)

	parallel := cfg.Settings.ParallelInstall
	if m != nil && m.Settings.ParallelInstall > 0 {
		parallel = m.Settings.ParallelInstall
	}
	inst := installer.New(installer.Config{
		Paths:            paths,
		Platform:         current,
		Logger:           logger,
		Sink:             sink,
		System:           installer.ExecAdapter{},
		ParallelInstalls: parallel,
	})

	exe := executor.New(resolver, inst, current, logger, sink)

	return &app{
		logger:    logger,
		platform:  current,
		paths:     paths,
		cfg:       cfg,
		registry:  registry,
		resolver:  resolver,
		installer: inst,
		executor:  exe,
		manifest:  m,
		lock:      lock,
	}, nil
}

// inputs assembles the resolver inputs for one tool request.
func (a *app) inputs(cliVersion string) resolve.Inputs {
	in := resolve.Inputs{
		UserTools:  a.cfg.Tools,
		CLIVersion: cliVersion,
	}
	if a.manifest != nil {
		in.ManifestTools = a.manifest.Tools
	}
	if a.lock != nil {
		in.Locked = make(map[string]resolve.LockedTool, len(a.lock.Tools))
		for name, tool := range a.lock.Tools {
			in.Locked[name] = resolve.LockedTool{
				Version:   tool.Version,
				Checksum:  tool.Checksum,
				SourceURL: tool.SourceURL,
			}
		}
	}
	return in
}

// splitToolVersion splits a "tool@version" argument.
func splitToolVersion(arg string) (tool, version string) {
	if i := strings.LastIndexByte(arg, '@'); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

// autoInstall merges the manifest and user-config auto-install settings;
// the project wins.
func (a *app) autoInstall() bool {
	if a.manifest != nil && a.manifest.Settings.AutoInstall != nil {
		return *a.manifest.Settings.AutoInstall
	}
	return a.cfg.AutoInstallEnabled()
}

// newRenderer builds the CLI's event sink: the core emits, this prints.
func newRenderer(quiet bool) events.Sink {
	if quiet {
		return events.Discard
	}
	return events.Func(func(e events.Event) {
		switch e.Type {
		case events.ResolveCompleted:
			fmt.Fprintf(os.Stderr, "resolved %s %s\n", e.Provider, e.Version)
		case events.DownloadStarted:
			fmt.Fprintf(os.Stderr, "downloading %s\n", e.URL)
		case events.InstallPublished:
			fmt.Fprintf(os.Stderr, "installed %s %s -> %s\n", e.Provider, e.Version, e.Path)
		case events.Warning:
			fmt.Fprintf(os.Stderr, "warning: %s\n", e.Message)
		case events.InstallFailed:
			fmt.Fprintf(os.Stderr, "install failed: %v\n", e.Err)
		}
	})
}
