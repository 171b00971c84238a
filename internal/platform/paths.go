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

package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvHome overrides every path root when set.
const EnvHome = "VX_HOME"

// Paths computes the filesystem layout under the vx home directory:
//
//	{home}/store/{provider}/{version}/   installed tools
//	{home}/cache/downloads/              fetched archives
//	{home}/cache/versions/{provider}/    version index cache
//	{home}/bin/                          shims
//	{home}/envs/{name}/                  per-project environments
//	{home}/providers/                    user provider overlay
//	{home}/config/config.toml            user configuration
//	{home}/.locks/                       advisory install locks
type Paths struct {
	home string
}

// NewPaths resolves the vx home directory. VX_HOME wins; otherwise the
// platform convention applies (XDG on linux, %APPDATA% on windows,
// Library/Application Support on macos).
func NewPaths(p Platform) (*Paths, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return &Paths{home: filepath.Clean(home)}, nil
	}

	switch p.OS {
	case OSWindows:
		base := os.Getenv("APPDATA")
		if base == "" {
			userHome, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve home directory: %w", err)
			}
			base = filepath.Join(userHome, "AppData", "Roaming")
		}
		return &Paths{home: filepath.Join(base, "vx")}, nil

	case OSMacOS:
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		return &Paths{home: filepath.Join(userHome, "Library", "Application Support", "vx")}, nil

	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return &Paths{home: filepath.Join(xdg, "vx")}, nil
		}
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		return &Paths{home: filepath.Join(userHome, ".local", "share", "vx")}, nil
	}
}

// NewPathsAt pins the home directory explicitly. Used by tests and by
// embedders that manage their own layout.
func NewPathsAt(home string) *Paths {
	return &Paths{home: filepath.Clean(home)}
}

// Home returns the vx home directory.
func (p *Paths) Home() string { return p.home }

// Store returns the install store root.
func (p *Paths) Store() string { return filepath.Join(p.home, "store") }

// InstallRoot returns the final install directory for one provider version.
func (p *Paths) InstallRoot(provider, version string) string {
	return filepath.Join(p.Store(), provider, version)
}

// Cache returns the cache root.
func (p *Paths) Cache() string { return filepath.Join(p.home, "cache") }

// Downloads returns the download cache directory.
func (p *Paths) Downloads() string { return filepath.Join(p.Cache(), "downloads") }

// VersionIndex returns the cached version index path for a provider.
func (p *Paths) VersionIndex(provider string) string {
	return filepath.Join(p.Cache(), "versions", provider, "index.json")
}

// Bin returns the shim directory exposed on PATH.
func (p *Paths) Bin() string { return filepath.Join(p.home, "bin") }

// Envs returns the per-project environment root.
func (p *Paths) Envs() string { return filepath.Join(p.home, "envs") }

// Providers returns the user provider overlay directory.
func (p *Paths) Providers() string { return filepath.Join(p.home, "providers") }

// Config returns the user configuration directory.
func (p *Paths) Config() string { return filepath.Join(p.home, "config") }

// ConfigFile returns the user configuration file path.
func (p *Paths) ConfigFile() string { return filepath.Join(p.Config(), "config.toml") }

// Locks returns the advisory lock directory.
func (p *Paths) Locks() string { return filepath.Join(p.home, ".locks") }

// InstallLock returns the advisory lock path guarding one fingerprint.
func (p *Paths) InstallLock(provider, version, platformKey string) string {
	return filepath.Join(p.Locks(), fmt.Sprintf("%s-%s-%s.lock", provider, version, platformKey))
}

// IndexLock returns the advisory lock path guarding one provider's version
// index cache.
func (p *Paths) IndexLock(provider string) string {
	return filepath.Join(p.Locks(), fmt.Sprintf("index-%s.lock", provider))
}

// EnsureLayout creates the directories every component assumes exist.
func (p *Paths) EnsureLayout() error {
	for _, dir := range []string{
		p.Store(), p.Downloads(),
		filepath.Join(p.Cache(), "versions"),
		p.Bin(), p.Envs(), p.Providers(), p.Config(), p.Locks(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
