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

// Package config loads the per-user configuration file
// ({config_root}/config.toml). User config sits below the project manifest
// in resolver precedence: it supplies defaults, not project policy.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the parsed user configuration.
type Config struct {
	// Tools maps tool name to a global default version constraint.
	Tools map[string]string `toml:"tools"`

	// Settings tune caching and install behavior.
	Settings Settings `toml:"settings"`

	// Registry points version sources at alternate endpoints.
	Registry Registry `toml:"registry"`
}

// Settings is config.toml's [settings] table.
type Settings struct {
	// CacheDuration is the version index TTL ("24h").
	CacheDuration string `toml:"cache_duration"`

	// ParallelInstall caps concurrent install pipelines.
	ParallelInstall int `toml:"parallel_install"`

	// AutoInstall permits installing missing tools on vx run.
	AutoInstall *bool `toml:"auto_install"`

	// LockTimeout bounds advisory lock waits ("5m").
	LockTimeout string `toml:"lock_timeout"`
}

// Registry is config.toml's [registry] table.
type Registry struct {
	// IndexURLs overrides a provider's version index endpoint by name.
	IndexURLs map[string]string `toml:"index_urls"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tools: map[string]string{},
		Settings: Settings{
			CacheDuration:   "24h",
			ParallelInstall: runtime.GOMAXPROCS(0),
		},
		Registry: Registry{IndexURLs: map[string]string{}},
	}
}

// Load reads the user configuration, applying defaults for anything unset.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var loaded Config
	dec := toml.NewDecoder(bytes.NewReader(src))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&loaded); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if loaded.Tools != nil {
		cfg.Tools = loaded.Tools
	}
	if loaded.Settings.CacheDuration != "" {
		cfg.Settings.CacheDuration = loaded.Settings.CacheDuration
	}
	if loaded.Settings.ParallelInstall > 0 {
		cfg.Settings.ParallelInstall = loaded.Settings.ParallelInstall
	}
	if loaded.Settings.AutoInstall != nil {
		cfg.Settings.AutoInstall = loaded.Settings.AutoInstall
	}
	if loaded.Settings.LockTimeout != "" {
		cfg.Settings.LockTimeout = loaded.Settings.LockTimeout
	}
	if loaded.Registry.IndexURLs != nil {
		cfg.Registry.IndexURLs = loaded.Registry.IndexURLs
	}
	return cfg, nil
}

// CacheTTL parses the cache duration, defaulting to 24h.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Settings.CacheDuration)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// LockTimeout parses the lock timeout; zero means the installer default.
func (c *Config) LockTimeout() time.Duration {
	if c.Settings.LockTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Settings.LockTimeout)
	if err != nil {
		return 0
	}
	return d
}

// AutoInstallEnabled defaults to true when unset.
func (c *Config) AutoInstallEnabled() bool {
	if c.Settings.AutoInstall == nil {
		return true
	}
	return *c.Settings.AutoInstall
}
