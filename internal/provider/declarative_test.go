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

package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/loonghao/vx/internal/platform"
)

func TestNodeDownloadURL(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("node")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		platform platform.Platform
		want     string
	}{
		{
			platform.Platform{OS: platform.OSLinux, Arch: platform.ArchX64},
			"https://nodejs.org/dist/v20.11.0/node-v20.11.0-linux-x64.tar.gz",
		},
		{
			platform.Platform{OS: platform.OSMacOS, Arch: platform.ArchArm64},
			"https://nodejs.org/dist/v20.11.0/node-v20.11.0-darwin-arm64.tar.gz",
		},
		{
			platform.Platform{OS: platform.OSWindows, Arch: platform.ArchX64},
			"https://nodejs.org/dist/v20.11.0/node-v20.11.0-win-x64.zip",
		},
	}

	for _, tt := range tests {
		hc := &HookContext{Platform: tt.platform}
		url, err := p.Hooks.DownloadURL(hc, "20.11.0")
		if err != nil {
			t.Fatal(err)
		}
		if url != tt.want {
			t.Errorf("DownloadURL(%s) = %s, want %s", tt.platform.Key(), url, tt.want)
		}
	}
}

func TestGoLayoutUsesLiteralStripPrefix(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("go")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	layout, err := p.Hooks.InstallLayout(hc, "1.22.0")
	if err != nil {
		t.Fatal(err)
	}
	if layout.Type != LayoutArchive {
		t.Errorf("layout type = %s", layout.Type)
	}
	if layout.StripPrefix != "go" {
		t.Errorf("strip prefix = %q, want literal go", layout.StripPrefix)
	}

	env, err := p.Hooks.Environment(hc, "1.22.0", "/store/go/1.22.0")
	if err != nil {
		t.Fatal(err)
	}
	if env["GOROOT"] != "/store/go/1.22.0" {
		t.Errorf("GOROOT = %q", env["GOROOT"])
	}
}

func TestRustDownloadURLAndLayout(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("rust")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	url, err := p.Hooks.DownloadURL(hc, "1.79.0")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://static.rust-lang.org/dist/rust-1.79.0-x86_64-unknown-linux-gnu.tar.gz" {
		t.Errorf("url = %s", url)
	}

	// The standalone dist nests each component; both toolchain entry
	// points are declared.
	layout, err := p.Hooks.InstallLayout(hc, "1.79.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(layout.ExecutablePaths) != 2 || layout.ExecutablePaths[1] != "cargo/bin/cargo" {
		t.Errorf("executable paths = %v", layout.ExecutablePaths)
	}
}

func TestSystemInstallOnlyProvider(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("imagemagick")
	if err != nil {
		t.Fatal(err)
	}

	macHC := &HookContext{Platform: platform.Platform{OS: platform.OSMacOS, Arch: platform.ArchArm64}}
	url, err := p.Hooks.DownloadURL(macHC, "7.1.1")
	if err != nil {
		t.Fatal(err)
	}
	if url != "" {
		t.Errorf("imagemagick should have no download url, got %s", url)
	}

	strategies, err := p.Hooks.SystemInstall(macHC)
	if err != nil {
		t.Fatal(err)
	}
	if len(strategies) != 1 || strategies[0].Manager != "brew" {
		t.Errorf("macos strategies = %v, want brew only", strategies)
	}

	versions, err := p.Hooks.FetchVersions(context.Background(), macHC)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 || versions[0].Version != "7.1.1" {
		t.Errorf("static versions = %v", versions)
	}
}

func TestSupportedPlatformFiltering(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("deno")
	if err != nil {
		t.Fatal(err)
	}

	if !p.Supports(platform.Platform{OS: platform.OSLinux, Arch: platform.ArchX64}) {
		t.Error("deno should support linux-x64")
	}
	if p.Supports(platform.Platform{OS: platform.OSLinux, Arch: platform.ArchArmv7}) {
		t.Error("deno should not support armv7")
	}
}

func TestPreRunEnsureDependencies(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("pnpm")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	actions, err := p.Hooks.PreRun(hc, []string{"run", "build"}, "pnpm")
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %v", actions)
	}
	a := actions[0]
	if a.Kind != ActionEnsureDependencies || a.Sentinel != "node_modules" {
		t.Errorf("action = %+v", a)
	}
	if a.Command != "pnpm" {
		t.Errorf("default command = %q, want the launched executable", a.Command)
	}
}

func TestBinaryLayoutTemplates(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("pnpm")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	url, err := p.Hooks.DownloadURL(hc, "9.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://github.com/pnpm/pnpm/releases/download/v9.0.0/pnpm-linuxstatic-x64" {
		t.Errorf("url = %s", url)
	}

	winHC := &HookContext{Platform: platform.Platform{OS: platform.OSWindows, Arch: platform.ArchX64}}
	url, err = p.Hooks.DownloadURL(winHC, "9.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(url, "pnpm-win-x64.exe") {
		t.Errorf("windows url = %s", url)
	}
}

func TestUnknownTemplatePlaceholderSurvives(t *testing.T) {
	got := expandTemplate("https://example.com/{version}/{bogus}", map[string]string{"version": "1.0.0"})
	if got != "https://example.com/1.0.0/{bogus}" {
		t.Errorf("expandTemplate = %s", got)
	}
}
