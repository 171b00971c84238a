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

// Package platform detects the host platform triple and computes the
// filesystem roots used by the store, cache, and registry. All other packages
// receive a Platform and a Paths handle at construction time; nothing in here
// is mutated after process start.
package platform

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Known operating system identifiers.
const (
	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"
)

// Known architecture identifiers.
const (
	ArchX64   = "x64"
	ArchArm64 = "arm64"
	ArchX86   = "x86"
	ArchArmv7 = "armv7"
)

// Known libc identifiers. LibcNone is used on platforms where the
// distinction does not apply (windows, macos).
const (
	LibcGnu  = "gnu"
	LibcMusl = "musl"
	LibcNone = "none"
)

// Wildcard matches any value in a platform constraint.
const Wildcard = "*"

// Platform is one os/arch/libc triple. The zero value is invalid; use
// Current or New.
type Platform struct {
	OS   string `toml:"os" json:"os"`
	Arch string `toml:"arch" json:"arch"`
	Libc string `toml:"libc,omitempty" json:"libc,omitempty"`
}

// New builds a platform triple, normalizing Go toolchain names
// (darwin→macos, amd64→x64) to the canonical identifiers.
func New(goos, goarch, libc string) Platform {
	return Platform{
		OS:   normalizeOS(goos),
		Arch: normalizeArch(goarch),
		Libc: libc,
	}
}

var (
	currentOnce sync.Once
	current     Platform
)

// Current returns the host platform. Detection runs once per process.
func Current() Platform {
	currentOnce.Do(func() {
		libc := LibcNone
		if runtime.GOOS == "linux" {
			libc = detectLinuxLibc()
		}
		current = New(runtime.GOOS, runtime.GOARCH, libc)
	})
	return current
}

// detectLinuxLibc distinguishes musl from glibc by probing for the musl
// dynamic loader. Defaults to gnu when nothing is found.
func detectLinuxLibc() string {
	matches, err := filepath.Glob("/lib/ld-musl-*.so.1")
	if err == nil && len(matches) > 0 {
		return LibcMusl
	}
	return LibcGnu
}

func normalizeOS(goos string) string {
	switch goos {
	case "darwin":
		return OSMacOS
	case "windows":
		return OSWindows
	default:
		return OSLinux
	}
}

func normalizeArch(goarch string) string {
	switch goarch {
	case "amd64":
		return ArchX64
	case "arm64":
		return ArchArm64
	case "386":
		return ArchX86
	case "arm":
		return ArchArmv7
	default:
		return goarch
	}
}

// Key returns the canonical "{os}-{arch}" platform key used in store and
// cache paths.
func (p Platform) Key() string {
	return p.OS + "-" + p.Arch
}

// String returns the full triple, including libc when it is meaningful.
func (p Platform) String() string {
	if p.Libc == "" || p.Libc == LibcNone {
		return p.Key()
	}
	return fmt.Sprintf("%s-%s-%s", p.OS, p.Arch, p.Libc)
}

// ExecutableExt returns ".exe" on windows and "" elsewhere.
func (p Platform) ExecutableExt() string {
	if p.OS == OSWindows {
		return ".exe"
	}
	return ""
}

// Matches reports whether the required constraint accepts the current
// platform. Either field of required may be the "*" wildcard. A universal
// macOS archive (arch "universal") matches both x64 and arm64.
func Matches(required, current Platform) bool {
	if !fieldMatches(required.OS, current.OS) {
		return false
	}
	if required.OS == OSMacOS || current.OS == OSMacOS {
		if strings.EqualFold(required.Arch, "universal") {
			return current.Arch == ArchX64 || current.Arch == ArchArm64
		}
	}
	if !fieldMatches(required.Arch, current.Arch) {
		return false
	}
	if required.Libc != "" && required.Libc != Wildcard && current.Libc != "" && current.Libc != LibcNone {
		return required.Libc == current.Libc
	}
	return true
}

// MatchesAny reports whether any constraint in the list accepts current.
// An empty list places no restriction.
func MatchesAny(required []Platform, current Platform) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if Matches(r, current) {
			return true
		}
	}
	return false
}

func fieldMatches(required, current string) bool {
	return required == "" || required == Wildcard || strings.EqualFold(required, current)
}

// ParseKey parses a "{os}-{arch}" key back into a Platform. The libc field
// is left as none.
func ParseKey(key string) (Platform, error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Platform{}, fmt.Errorf("invalid platform key %q", key)
	}
	return Platform{OS: parts[0], Arch: parts[1], Libc: LibcNone}, nil
}
