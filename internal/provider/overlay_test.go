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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider/builtin"
)

var linuxX64 = platform.Platform{OS: platform.OSLinux, Arch: platform.ArchX64, Libc: platform.LibcGnu}

func TestOverlayAddsMirrors(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("node")
	if err != nil {
		t.Fatal(err)
	}

	overlay := `
[[rules]]
when = { os = "linux", arch = "*" }
mirrors = ["https://npmmirror.com/mirrors/node/v{version}/node-v{version}-{os}-{arch}.{ext}"]
`
	patched, err := ApplyOverlay(p, []byte(overlay), "test.override.toml")
	if err != nil {
		t.Fatalf("ApplyOverlay: %v", err)
	}

	hc := &HookContext{Platform: linuxX64}
	mirrors := patched.Hooks.Mirrors(hc, "20.11.0")
	if len(mirrors) != 1 {
		t.Fatalf("mirrors = %v, want one entry", mirrors)
	}
	want := "https://npmmirror.com/mirrors/node/v20.11.0/node-v20.11.0-linux-x64.tar.gz"
	if mirrors[0] != want {
		t.Errorf("mirror = %s, want %s", mirrors[0], want)
	}

	// The original provider is untouched.
	if got := p.Hooks.Mirrors(hc, "20.11.0"); len(got) != 0 {
		t.Errorf("original provider gained mirrors: %v", got)
	}

	// The overlay does not apply on other platforms.
	winHC := &HookContext{Platform: platform.Platform{OS: platform.OSWindows, Arch: platform.ArchX64}}
	if got := patched.Hooks.Mirrors(winHC, "20.11.0"); len(got) != 0 {
		t.Errorf("windows should see no linux mirrors, got %v", got)
	}
}

func TestOverlayReplaceOnEqualWhen(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("node")
	if err != nil {
		t.Fatal(err)
	}

	first := `
[[rules]]
when = { os = "linux", arch = "*" }
mirrors = ["https://first.example/{version}"]
`
	second := `
[[rules]]
when = { os = "linux", arch = "*" }
mirrors = ["https://second.example/{version}"]

[[rules]]
when = { os = "windows", arch = "*" }
mirrors = ["https://windows.example/{version}"]
`
	p1, err := ApplyOverlay(p, []byte(first), "user.override.toml")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ApplyOverlay(p1, []byte(second), "project.override.toml")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	mirrors := p2.Hooks.Mirrors(hc, "1.0.0")
	if len(mirrors) != 1 || !strings.HasPrefix(mirrors[0], "https://second.example/") {
		t.Errorf("same-when rule should replace, got %v", mirrors)
	}

	winHC := &HookContext{Platform: platform.Platform{OS: platform.OSWindows, Arch: platform.ArchX64}}
	if got := p2.Hooks.Mirrors(winHC, "1.0.0"); len(got) != 1 {
		t.Errorf("distinct-when rule should append, got %v", got)
	}
}

func TestOverlayEnvAndURL(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("node")
	if err != nil {
		t.Fatal(err)
	}

	overlay := `
[[rules]]
url = "https://internal.example/node/{version}/{os}-{arch}.{ext}"
env = { NODE_OPTIONS = "--max-old-space-size=4096" }
`
	patched, err := ApplyOverlay(p, []byte(overlay), "corp.override.toml")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	url, err := patched.Hooks.DownloadURL(hc, "20.11.0")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://internal.example/node/20.11.0/linux-x64.tar.gz" {
		t.Errorf("url = %s", url)
	}

	env, err := patched.Hooks.Environment(hc, "20.11.0", "/opt/vx/store/node/20.11.0")
	if err != nil {
		t.Fatal(err)
	}
	if env["NODE_OPTIONS"] != "--max-old-space-size=4096" {
		t.Errorf("env = %v", env)
	}
}

func TestMalformedOverlayFailsLoad(t *testing.T) {
	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, "node.override.toml"), []byte("[[rules]]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	err := r.Load(LoadOptions{Builtin: builtin.FS, ProjectDir: projectDir})
	if err == nil {
		t.Fatal("expected load failure for empty overlay rule")
	}
	if !strings.Contains(err.Error(), "node.override.toml") {
		t.Errorf("error should locate the source file, got %v", err)
	}
}

func TestOverlayForUnknownProvider(t *testing.T) {
	projectDir := t.TempDir()
	overlay := `
[[rules]]
mirrors = ["https://example.com/{version}"]
`
	if err := os.WriteFile(filepath.Join(projectDir, "ghost.override.toml"), []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	err := r.Load(LoadOptions{Builtin: builtin.FS, ProjectDir: projectDir})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("expected unknown provider error, got %v", err)
	}
}
