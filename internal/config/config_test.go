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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Errorf("default TTL = %v", cfg.CacheTTL())
	}
	if !cfg.AutoInstallEnabled() {
		t.Error("auto install should default on")
	}
	if cfg.Settings.ParallelInstall < 1 {
		t.Errorf("parallel = %d", cfg.Settings.ParallelInstall)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	src := `
[tools]
node = "20"

[settings]
cache_duration = "1h"
parallel_install = 2
auto_install = false
lock_timeout = "30s"

[registry.index_urls]
node = "https://mirror.example/node/index.json"
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tools["node"] != "20" {
		t.Errorf("tools = %v", cfg.Tools)
	}
	if cfg.CacheTTL() != time.Hour {
		t.Errorf("TTL = %v", cfg.CacheTTL())
	}
	if cfg.Settings.ParallelInstall != 2 {
		t.Errorf("parallel = %d", cfg.Settings.ParallelInstall)
	}
	if cfg.AutoInstallEnabled() {
		t.Error("auto install should be off")
	}
	if cfg.LockTimeout() != 30*time.Second {
		t.Errorf("lock timeout = %v", cfg.LockTimeout())
	}
	if cfg.Registry.IndexURLs["node"] == "" {
		t.Errorf("index urls = %v", cfg.Registry.IndexURLs)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[settings\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[settings]\nbogus = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected unknown key error")
	}
}
