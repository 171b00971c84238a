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
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/loonghao/vx/internal/platform"
)

// Overlay is a {name}.override.toml file: a list of rules modifying a
// provider without forking its definition.
type Overlay struct {
	Rules []OverlayRule `toml:"rules"`
}

// OverlayRule adjusts a provider where its `when` clause matches the
// current platform. When stacking overlays across layers, a rule whose
// `when` clause equals an earlier rule's replaces it; otherwise it appends.
type OverlayRule struct {
	// When restricts the rule to matching platforms. The zero value
	// matches everywhere.
	When platform.Platform `toml:"when"`

	// Mirrors are download URL templates tried after the primary URL.
	Mirrors []string `toml:"mirrors"`

	// URL replaces the download URL template.
	URL string `toml:"url"`

	// Env adds or overrides environment entries.
	Env map[string]string `toml:"env"`

	// Platforms replaces the provider's supported-platform constraint.
	Platforms []platform.Platform `toml:"platforms"`
}

// overlayable is implemented by hook backends that accept overlay rules.
type overlayable interface {
	withOverlayRules(rules []OverlayRule) Hooks
	overlayRules() []OverlayRule
}

// ParseOverlay decodes and validates an override file.
func ParseOverlay(src []byte, source string) (*Overlay, error) {
	var o Overlay
	dec := toml.NewDecoder(bytes.NewReader(src))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if len(o.Rules) == 0 {
		return nil, fmt.Errorf("%s: overlay declares no rules", source)
	}
	for i, rule := range o.Rules {
		if rule.URL == "" && len(rule.Mirrors) == 0 && len(rule.Env) == 0 && len(rule.Platforms) == 0 {
			return nil, fmt.Errorf("%s: rule %d changes nothing", source, i+1)
		}
	}
	return &o, nil
}

// ApplyOverlay returns a copy of the provider with the overlay's rules
// merged onto any rules already applied by lower layers.
func ApplyOverlay(p *Provider, src []byte, source string) (*Provider, error) {
	o, err := ParseOverlay(src, source)
	if err != nil {
		return nil, err
	}

	base, ok := p.Hooks.(overlayable)
	if !ok {
		return nil, fmt.Errorf("%s: provider %q does not accept overlays", source, p.Name)
	}

	merged := mergeRules(base.overlayRules(), o.Rules)
	patched := *p
	patched.Hooks = base.withOverlayRules(merged)
	return &patched, nil
}

// mergeRules applies the replace-on-equal-when, otherwise-append rule.
func mergeRules(existing, incoming []OverlayRule) []OverlayRule {
	out := make([]OverlayRule, len(existing))
	copy(out, existing)

	for _, rule := range incoming {
		replaced := false
		for i, prior := range out {
			if prior.When == rule.When {
				out[i] = rule
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, rule)
		}
	}
	return out
}

// matchingRules filters rules whose when clause accepts the platform.
func matchingRules(rules []OverlayRule, p platform.Platform) []OverlayRule {
	var out []OverlayRule
	for _, rule := range rules {
		if (rule.When == platform.Platform{}) || platform.Matches(rule.When, p) {
			out = append(out, rule)
		}
	}
	return out
}
