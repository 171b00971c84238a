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

package resolve

import (
	"testing"
	"time"

	"github.com/loonghao/vx/internal/provider"
)

func TestParseConstraintKinds(t *testing.T) {
	tests := []struct {
		raw             string
		wantKind        ConstraintKind
		allowPrerelease bool
	}{
		{"1.2.3", KindExact, false},
		{"1", KindMajor, false},
		{"1.2", KindMinor, false},
		{">=1.0.0 <2.0.0", KindRange, false},
		{"~1.2.3", KindTilde, false},
		{"^1.2.3", KindCaret, false},
		{"1.2.*", KindWildcard, false},
		{"1.2.x", KindWildcard, false},
		{"latest", KindLatest, false},
		{"", KindLatest, false},
		{"lts", KindLTS, false},
		{"stable", KindStable, false},
		{"nightly", KindNightly, true},
		{"*", KindAny, false},
		{"2.0.0-rc.1", KindExact, true},
		{">=2.0.0-rc", KindRange, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := ParseConstraint(tt.raw)
			if err != nil {
				t.Fatalf("ParseConstraint(%q): %v", tt.raw, err)
			}
			if c.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", c.Kind, tt.wantKind)
			}
			if c.AllowPrerelease != tt.allowPrerelease {
				t.Errorf("AllowPrerelease = %v, want %v", c.AllowPrerelease, tt.allowPrerelease)
			}
		})
	}
}

func TestConstraintMatches(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"1", "1.9.0", true},
		{"1", "2.0.0", false},
		{"1.2", "1.2.9", true},
		{"1.2", "1.3.0", false},
		{"^1.2.3", "1.9.0", true},
		{"^1.2.3", "1.2.2", false},
		{"^1.2.3", "2.0.0", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{">=1.0.0 <2.0.0", "1.5.0", true},
		{">=1.0.0 <2.0.0", "2.0.0", false},
		{"1.2.*", "1.2.7", true},
		{"1.2.*", "1.3.0", false},
		{"latest", "99.99.99", true},
		{"*", "0.0.1", true},
		{"2.0.0-rc.1", "2.0.0-rc.1", true},
		{"2.0.0-rc.1", "2.0.0", false},
		// Dev builds with build metadata pin by exact version.
		{"0.14.0-dev.2851+b074fb7dd", "0.14.0-dev.2851+b074fb7dd", true},
	}

	for _, tt := range tests {
		t.Run(tt.constraint+"/"+tt.version, func(t *testing.T) {
			c, err := ParseConstraint(tt.constraint)
			if err != nil {
				t.Fatalf("ParseConstraint: %v", err)
			}
			if got := c.Matches(tt.version); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.constraint, tt.version, got, tt.want)
			}
		})
	}
}

func TestRankVersions(t *testing.T) {
	date := func(day int) time.Time {
		return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
	}
	infos := []provider.VersionInfo{
		{Version: "1.0.0", ReleaseDate: date(1)},
		{Version: "2.0.0-rc.1", Prerelease: true, ReleaseDate: date(10)},
		{Version: "2.0.0", ReleaseDate: date(12)},
		{Version: "1.9.3", ReleaseDate: date(5)},
	}

	ranked := rankVersions(infos)
	want := []string{"2.0.0", "2.0.0-rc.1", "1.9.3", "1.0.0"}
	for i, w := range want {
		if ranked[i].Version != w {
			t.Fatalf("ranked[%d] = %s, want %s (full: %v)", i, ranked[i].Version, w, ranked)
		}
	}
}

func TestRankVersionsNonSemverLexicographic(t *testing.T) {
	infos := []provider.VersionInfo{
		{Version: "r26"},
		{Version: "r27"},
		{Version: "1.0.0"},
	}
	ranked := rankVersions(infos)
	if ranked[0].Version != "1.0.0" {
		t.Errorf("semver should rank above non-semver, got %v", ranked)
	}
	if ranked[1].Version != "r27" || ranked[2].Version != "r26" {
		t.Errorf("non-semver should rank lexicographically descending, got %v", ranked)
	}
}
