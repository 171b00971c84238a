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

package manifest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

func TestLockfileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	lock := &Lockfile{
		VxVersion:   "0.2.0",
		GeneratedAt: "2025-01-01T00:00:00Z",
		Tools: map[string]LockedTool{
			"node": {Version: "20.11.0", Checksum: "sha256:abc", SourceURL: "https://nodejs.org/dist/v20.11.0/node-v20.11.0-linux-x64.tar.gz"},
			"go":   {Version: "1.22.0", Checksum: "sha256:def"},
			"uv":   {Version: "0.4.0"},
		},
	}

	if err := lock.WriteLock(dir); err != nil {
		t.Fatalf("WriteLock: %v", err)
	}
	first := lock.Encode()

	read, err := LoadLock(dir)
	if err != nil {
		t.Fatalf("LoadLock: %v", err)
	}
	second := read.Encode()

	if !bytes.Equal(first, second) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(first)),
			B:        difflib.SplitLines(string(second)),
			FromFile: "written",
			ToFile:   "reloaded",
			Context:  2,
		})
		t.Errorf("lockfile round-trip not byte-identical:\n%s", diff)
	}

	if read.Tools["node"].Version != "20.11.0" {
		t.Errorf("tools = %+v", read.Tools)
	}
}

func TestLockfileDeterministicOrdering(t *testing.T) {
	lock := &Lockfile{
		VxVersion:   "0.2.0",
		GeneratedAt: "2025-01-01T00:00:00Z",
		Tools: map[string]LockedTool{
			"zig":  {Version: "0.13.0"},
			"bun":  {Version: "1.1.0"},
			"node": {Version: "20.11.0"},
		},
	}

	out := string(lock.Encode())
	bunAt := strings.Index(out, "[tools.bun]")
	nodeAt := strings.Index(out, "[tools.node]")
	zigAt := strings.Index(out, "[tools.zig]")
	if !(bunAt < nodeAt && nodeAt < zigAt) {
		t.Errorf("tools not sorted:\n%s", out)
	}
}

func TestLoadLockMissing(t *testing.T) {
	lock, err := LoadLock(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if lock != nil {
		t.Errorf("expected nil for missing lockfile, got %+v", lock)
	}
}
