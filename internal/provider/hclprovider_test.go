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
	"strings"
	"testing"

	"github.com/loonghao/vx/internal/platform"
)

func TestZigHCLProvider(t *testing.T) {
	r := loadBuiltins(t)
	p, err := r.Provider("zig")
	if err != nil {
		t.Fatal(err)
	}

	hc := &HookContext{Platform: linuxX64}
	url, err := p.Hooks.DownloadURL(hc, "0.13.0")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://ziglang.org/download/0.13.0/zig-linux-x86_64-0.13.0.tar.xz"
	if url != want {
		t.Errorf("url = %s, want %s", url, want)
	}

	winHC := &HookContext{Platform: platform.Platform{OS: platform.OSWindows, Arch: platform.ArchArm64}}
	url, err = p.Hooks.DownloadURL(winHC, "0.13.0")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(url, "zig-windows-aarch64-0.13.0.zip") {
		t.Errorf("windows url = %s", url)
	}

	env, err := p.Hooks.Environment(hc, "0.13.0", "/store/zig/0.13.0")
	if err != nil {
		t.Fatal(err)
	}
	if env["ZIG_GLOBAL_CACHE_DIR"] != "/store/zig/0.13.0/.cache" {
		t.Errorf("env = %v", env)
	}
}

func TestHCLDuplicateBlockRejected(t *testing.T) {
	src := `
name    = "dup"
license = "MIT"

runtime "dup" {
  executable = "dup"
}

layout {
  type = "archive"
}

layout {
  type = "binary"
}
`
	_, err := ParseHCL([]byte(src), "dup.provider.hcl", NewVersionClient())
	if err == nil || !strings.Contains(err.Error(), "duplicate layout block") {
		t.Errorf("expected duplicate block error, got %v", err)
	}
}

func TestHCLSyntaxErrorLocated(t *testing.T) {
	src := `name = "broken`
	_, err := ParseHCL([]byte(src), "broken.provider.hcl", NewVersionClient())
	if err == nil || !strings.Contains(err.Error(), "broken.provider.hcl") {
		t.Errorf("expected source-located syntax error, got %v", err)
	}
}

func TestHCLMissingMandatoryFields(t *testing.T) {
	src := `
name = "nolicense"

runtime "x" {
  executable = "x"
}
`
	_, err := ParseHCL([]byte(src), "x.provider.hcl", NewVersionClient())
	if err == nil || !strings.Contains(err.Error(), "license") {
		t.Errorf("expected license error, got %v", err)
	}
}
