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

// Package resolve selects concrete tool versions. It merges version
// requests from user config, the project manifest, the lockfile, and CLI
// overrides, queries the provider's version source through a TTL cache, and
// ranks candidates deterministically.
//
// The constraint grammar covers the ecosystems vx manages:
//   - exact: "1.2.3"
//   - major/minor: "1", "1.2"
//   - wildcard: "1.2.*", "1.2.x", "*"
//   - tilde/caret: "~1.2.3", "^1.2.3"
//   - ranges: ">=1.0.0 <2.0.0"
//   - channels: "latest", "stable", "lts", "nightly"
package resolve

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ConstraintKind classifies a parsed constraint.
type ConstraintKind string

// Constraint kinds.
const (
	KindExact    ConstraintKind = "exact"
	KindMajor    ConstraintKind = "major"
	KindMinor    ConstraintKind = "minor"
	KindRange    ConstraintKind = "range"
	KindTilde    ConstraintKind = "tilde"
	KindCaret    ConstraintKind = "caret"
	KindWildcard ConstraintKind = "wildcard"
	KindLatest   ConstraintKind = "latest"
	KindLTS      ConstraintKind = "lts"
	KindStable   ConstraintKind = "stable"
	KindNightly  ConstraintKind = "nightly"
	KindAny      ConstraintKind = "any"
)

// Constraint is one parsed version constraint.
type Constraint struct {
	// Raw is the constraint as written.
	Raw string

	// Kind classifies the syntax.
	Kind ConstraintKind

	// semverConstraint backs the predicate for non-channel kinds. Nil for
	// channel kinds and for non-semver exact constraints.
	semverConstraint *semver.Constraints

	// AllowPrerelease is true when the constraint explicitly names a
	// prerelease ("2.0.0-rc.1", ">=2.0.0-rc") or is the nightly channel.
	AllowPrerelease bool
}

// ParseConstraint parses one constraint string. An empty string means
// "latest".
func ParseConstraint(raw string) (Constraint, error) {
	s := strings.TrimSpace(raw)

	c := Constraint{Raw: raw}
	switch strings.ToLower(s) {
	case "", "latest":
		c.Kind = KindLatest
		return c, nil
	case "stable":
		c.Kind = KindStable
		return c, nil
	case "lts":
		c.Kind = KindLTS
		return c, nil
	case "nightly":
		c.Kind = KindNightly
		c.AllowPrerelease = true
		return c, nil
	case "*":
		c.Kind = KindAny
		return c, nil
	}

	c.AllowPrerelease = strings.Contains(s, "-")

	expr := s
	switch {
	case strings.HasPrefix(s, "^"):
		c.Kind = KindCaret
	case strings.HasPrefix(s, "~"):
		c.Kind = KindTilde
	case strings.ContainsAny(s, "<>="):
		c.Kind = KindRange
		// The range grammar joins clauses with spaces; Masterminds wants
		// commas between AND-ed clauses.
		if !strings.Contains(expr, ",") {
			expr = strings.Join(strings.Fields(expr), ", ")
		}
	case strings.HasSuffix(s, ".*") || strings.HasSuffix(s, ".x"):
		c.Kind = KindWildcard
	default:
		switch strings.Count(s, ".") {
		case 0:
			c.Kind = KindMajor
			expr = s + ".*"
		case 1:
			c.Kind = KindMinor
			expr = s + ".*"
		default:
			c.Kind = KindExact
		}
	}

	parsed, err := semver.NewConstraint(expr)
	if err != nil {
		switch c.Kind {
		case KindExact, KindMajor, KindMinor:
			// Non-semver versions (vendor schemes like "r27") still
			// support exact pinning via string equality.
			c.Kind = KindExact
			return c, nil
		default:
			return Constraint{}, fmt.Errorf("invalid version constraint %q: %w", raw, err)
		}
	}
	c.semverConstraint = parsed
	return c, nil
}

// Channel reports whether the constraint is a release channel rather than a
// version expression.
func (c Constraint) Channel() bool {
	switch c.Kind {
	case KindLatest, KindStable, KindLTS, KindNightly, KindAny:
		return true
	default:
		return false
	}
}

// Matches reports whether a concrete version satisfies the constraint.
// Channel constraints match everything version-wise; channel filtering
// (prerelease, lts) happens in the resolver's filter pass.
func (c Constraint) Matches(version string) bool {
	if c.Channel() {
		return true
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		// Non-semver versions only match exact string pins.
		return c.Kind == KindExact && strings.TrimSpace(c.Raw) == version
	}

	if c.semverConstraint == nil {
		return strings.TrimSpace(c.Raw) == version
	}
	return c.semverConstraint.Check(v)
}
