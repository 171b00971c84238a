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

// Package provider defines the declarative provider model and the layered
// registry that loads it. A provider describes one tool family: which
// executables it ships, where its versions come from, how its archives are
// laid out, and what environment its tools need. Providers are data; the
// behavior behind them is a small fixed hook set.
package provider

import (
	"context"
	"time"

	"github.com/loonghao/vx/internal/platform"
)

// Provider is one loaded tool family.
type Provider struct {
	Name        string
	Ecosystem   string
	License     string
	Description string

	// Runtimes lists the executables this provider manages. At least one
	// entry is required; bundled runtimes point at their parent via
	// BundledWith.
	Runtimes []Runtime

	// GlobalShims requests bin-directory shims for the runtimes on publish.
	GlobalShims bool

	// Source records where the definition was loaded from, for diagnostics.
	Source string

	// Hooks is the behavior behind the declaration. Data-only providers get
	// a declarative implementation; HCL providers get a template-evaluating
	// one.
	Hooks Hooks
}

// Runtime is one named executable within a provider.
type Runtime struct {
	Name            string   `toml:"name" yaml:"name"`
	Executable      string   `toml:"executable" yaml:"executable"`
	Aliases         []string `toml:"aliases" yaml:"aliases"`
	Priority        int      `toml:"priority" yaml:"priority"`
	BundledWith     string   `toml:"bundled_with" yaml:"bundled_with"`
	AutoInstallable bool     `toml:"auto_installable" yaml:"auto_installable"`
	SystemPaths     []string `toml:"system_paths" yaml:"system_paths"`
}

// Bundled reports whether the runtime ships inside another runtime's
// install and therefore has no independent install record.
func (r Runtime) Bundled() bool { return r.BundledWith != "" }

// VersionInfo is one installable version as reported by fetch_versions.
type VersionInfo struct {
	Version     string            `json:"version"`
	Prerelease  bool              `json:"prerelease"`
	LTS         bool              `json:"lts"`
	ReleaseDate time.Time         `json:"release_date,omitzero"`
	DownloadURL string            `json:"download_url,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// LayoutType describes the shape of a downloaded payload.
type LayoutType string

// Layout types.
const (
	LayoutBinary  LayoutType = "binary"
	LayoutArchive LayoutType = "archive"
	LayoutMSI     LayoutType = "msi"
)

// Layout declares how a payload maps onto the install root.
type Layout struct {
	Type LayoutType `toml:"type" yaml:"type"`

	// StripPrefix is either a decimal component count ("1") or a literal
	// leading prefix ("node-v{version}-linux-x64") removed from every
	// archive entry.
	StripPrefix string `toml:"strip_prefix" yaml:"strip_prefix"`

	// ExecutablePaths lists install-root-relative executables that must
	// exist after layout. The first entry is the default launch target.
	ExecutablePaths []string `toml:"executable_paths" yaml:"executable_paths"`

	// TargetName renames a single-file binary payload. Empty keeps the
	// runtime executable name.
	TargetName string `toml:"target_name" yaml:"target_name"`

	// TargetPermissions is the octal mode for binary payloads, default 755.
	TargetPermissions string `toml:"target_permissions" yaml:"target_permissions"`
}

// Dep declares a runtime dependency on another managed runtime.
type Dep struct {
	Runtime    string `toml:"runtime" yaml:"runtime"`
	Constraint string `toml:"constraint" yaml:"constraint"`
	Optional   bool   `toml:"optional" yaml:"optional"`
}

// SystemStrategy is one ordered fallback for platforms without a portable
// download: delegate to an OS package manager.
type SystemStrategy struct {
	Manager    string              `toml:"manager" yaml:"manager"`
	Args       []string            `toml:"args" yaml:"args"`
	Priority   int                 `toml:"priority" yaml:"priority"`
	Platforms  []platform.Platform `toml:"platforms" yaml:"platforms"`
	Executable string              `toml:"executable" yaml:"executable"`
}

// ActionKind enumerates the fixed action vocabulary available to
// post_extract and pre_run hooks.
type ActionKind string

// Action kinds.
const (
	ActionRename             ActionKind = "rename"
	ActionSetPermissions     ActionKind = "set_permissions"
	ActionFlattenDir         ActionKind = "flatten_dir"
	ActionRunCommand         ActionKind = "run_command"
	ActionSymlink            ActionKind = "symlink"
	ActionEnsureDependencies ActionKind = "ensure_dependencies"
)

// Action is one pure-data step executed by the installer or executor. The
// meaning of each field depends on Kind; unused fields stay empty.
type Action struct {
	Kind ActionKind `toml:"action" yaml:"action"`

	// rename, symlink
	From string `toml:"from" yaml:"from"`
	To   string `toml:"to" yaml:"to"`

	// set_permissions
	Path string `toml:"path" yaml:"path"`
	Mode string `toml:"mode" yaml:"mode"`

	// flatten_dir
	Pattern string `toml:"pattern" yaml:"pattern"`

	// run_command, ensure_dependencies
	Command   string   `toml:"command" yaml:"command"`
	Args      []string `toml:"args" yaml:"args"`
	OnFailure string   `toml:"on_failure" yaml:"on_failure"`

	// ensure_dependencies: skip when the sentinel path exists under cwd.
	Sentinel string `toml:"sentinel" yaml:"sentinel"`
}

// HookContext carries the per-request inputs every hook receives.
type HookContext struct {
	Platform platform.Platform
}

// Hooks is the fixed behavior surface of a provider. All implementations
// are pure over their declaration plus the HookContext; only FetchVersions
// performs I/O.
type Hooks interface {
	// FetchVersions enumerates installable versions, newest ordering not
	// guaranteed; the resolver ranks.
	FetchVersions(ctx context.Context, hc *HookContext) ([]VersionInfo, error)

	// DownloadURL builds the download URL for a version, or returns ""
	// when no portable binary exists for the platform.
	DownloadURL(hc *HookContext, version string) (string, error)

	// InstallLayout declares the payload shape for a version.
	InstallLayout(hc *HookContext, version string) (Layout, error)

	// Environment returns env vars to set when executing the tool. Values
	// may reference the install dir.
	Environment(hc *HookContext, version, installDir string) (map[string]string, error)

	// Deps declares required or optional runtime dependencies.
	Deps(hc *HookContext, version string) ([]Dep, error)

	// SystemInstall returns ordered fallback strategies for platforms
	// without a portable download.
	SystemInstall(hc *HookContext) ([]SystemStrategy, error)

	// PostExtract returns layout actions run against the staging tree.
	PostExtract(hc *HookContext, version, installDir string) ([]Action, error)

	// PreRun returns actions dispatched immediately before exec.
	PreRun(hc *HookContext, args []string, executable string) ([]Action, error)

	// SupportedPlatforms constrains where the provider is usable. Empty
	// means everywhere.
	SupportedPlatforms() []platform.Platform

	// Mirrors returns alternate download URLs for a version, tried in
	// order after the primary URL fails. Populated by overlays.
	Mirrors(hc *HookContext, version string) []string
}

// Runtime looks up a runtime entry by name or alias.
func (p *Provider) Runtime(name string) (Runtime, bool) {
	for _, rt := range p.Runtimes {
		if rt.Name == name {
			return rt, true
		}
		for _, alias := range rt.Aliases {
			if alias == name {
				return rt, true
			}
		}
	}
	return Runtime{}, false
}

// DefaultRuntime returns the highest-priority non-bundled runtime.
func (p *Provider) DefaultRuntime() Runtime {
	best := Runtime{}
	found := false
	for _, rt := range p.Runtimes {
		if rt.Bundled() {
			continue
		}
		if !found || rt.Priority > best.Priority {
			best = rt
			found = true
		}
	}
	if !found && len(p.Runtimes) > 0 {
		return p.Runtimes[0]
	}
	return best
}

// Supports reports whether the provider is usable on the platform.
func (p *Provider) Supports(current platform.Platform) bool {
	return platform.MatchesAny(p.Hooks.SupportedPlatforms(), current)
}
