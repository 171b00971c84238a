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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/loonghao/vx/internal/platform"
)

// LockFileName is the machine-generated pin file, committed to VCS.
const LockFileName = "vx.lock"

// Lockfile pins every tool to the exact version an earlier resolution
// chose.
type Lockfile struct {
	VxVersion   string                `toml:"vx_version"`
	GeneratedAt string                `toml:"generated_at"`
	Tools       map[string]LockedTool `toml:"tools"`
}

// LockedTool is one pinned tool.
type LockedTool struct {
	Version   string `toml:"version"`
	Checksum  string `toml:"checksum,omitempty"`
	SourceURL string `toml:"source_url,omitempty"`
}

// LoadLock reads vx.lock from a project directory; a missing file returns
// (nil, nil).
func LoadLock(projectDir string) (*Lockfile, error) {
	path := filepath.Join(projectDir, LockFileName)
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var lock Lockfile
	if err := toml.NewDecoder(bytes.NewReader(src)).Decode(&lock); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &lock, nil
}

// NewLockfile stamps a fresh lockfile.
func NewLockfile(vxVersion string, tools map[string]LockedTool) *Lockfile {
	return &Lockfile{
		VxVersion:   vxVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Tools:       tools,
	}
}

// Encode renders the lockfile deterministically: fixed header order,
// tools sorted by name, one table per tool. Writing, reading, and writing
// again yields byte-identical output.
func (l *Lockfile) Encode() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# This file is generated by vx. Do not edit by hand.\n")
	fmt.Fprintf(&buf, "vx_version = %q\n", l.VxVersion)
	fmt.Fprintf(&buf, "generated_at = %q\n", l.GeneratedAt)

	names := make([]string, 0, len(l.Tools))
	for name := range l.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tool := l.Tools[name]
		fmt.Fprintf(&buf, "\n[tools.%s]\n", name)
		fmt.Fprintf(&buf, "version = %q\n", tool.Version)
		if tool.Checksum != "" {
			fmt.Fprintf(&buf, "checksum = %q\n", tool.Checksum)
		}
		if tool.SourceURL != "" {
			fmt.Fprintf(&buf, "source_url = %q\n", tool.SourceURL)
		}
	}
	return buf.Bytes()
}

// WriteLock publishes the lockfile atomically into the project directory.
func (l *Lockfile) WriteLock(projectDir string) error {
	return platform.WriteAtomic(filepath.Join(projectDir, LockFileName), l.Encode(), 0o644)
}
