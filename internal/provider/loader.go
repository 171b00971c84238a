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
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/loonghao/vx/internal/platform"
)

// Spec is the declarative provider file schema, shared by the TOML and YAML
// forms. The HCL form decodes into the same shape plus expression templates.
type Spec struct {
	Name        string `toml:"name" yaml:"name"`
	Ecosystem   string `toml:"ecosystem" yaml:"ecosystem"`
	License     string `toml:"license" yaml:"license"`
	Description string `toml:"description" yaml:"description"`

	Runtimes    []Runtime `toml:"runtimes" yaml:"runtimes"`
	GlobalShims bool      `toml:"global_shims" yaml:"global_shims"`

	Versions VersionSource `toml:"versions" yaml:"versions"`
	Download Download      `toml:"download" yaml:"download"`
	Layout   Layout        `toml:"layout" yaml:"layout"`

	Env map[string]string `toml:"env" yaml:"env"`

	Deps          []Dep               `toml:"deps" yaml:"deps"`
	SystemInstall []SystemStrategy    `toml:"system_install" yaml:"system_install"`
	PostExtract   []Action            `toml:"post_extract" yaml:"post_extract"`
	PreRun        []Action            `toml:"pre_run" yaml:"pre_run"`
	Platforms     []platform.Platform `toml:"platforms" yaml:"platforms"`
}

// VersionSource declares where fetch_versions gets its data.
type VersionSource struct {
	// Source is one of "index-json", "github-releases", "static".
	Source string `toml:"source" yaml:"source"`

	// URL is the index endpoint for index-json sources.
	URL string `toml:"url" yaml:"url"`

	// Repo is the "owner/name" slug for github-releases sources.
	Repo string `toml:"repo" yaml:"repo"`

	// TrimPrefix strips a vendor tag prefix from raw versions ("go" for
	// go1.22.0, "bun-v" for bun-v1.1.0). A plain "v" is always stripped.
	TrimPrefix string `toml:"trim_prefix" yaml:"trim_prefix"`

	// List carries the inline versions of a static source.
	List []VersionInfo `toml:"list" yaml:"list"`
}

// Download declares how download URLs are built from templates. Placeholders
// {version}, {os}, {arch}, and {ext} are substituted per request.
type Download struct {
	URL string `toml:"url" yaml:"url"`

	// Ext maps an OS to the archive extension used in the template; the
	// "default" key covers the rest.
	Ext map[string]string `toml:"ext" yaml:"ext"`

	// OSNames and ArchNames remap canonical platform names to the vendor's
	// spelling (macos→darwin, x64→amd64, …).
	OSNames   map[string]string `toml:"os_names" yaml:"os_names"`
	ArchNames map[string]string `toml:"arch_names" yaml:"arch_names"`

	// Skip lists platforms with no portable binary; download_url returns
	// none for them and system_install takes over.
	Skip []platform.Platform `toml:"skip" yaml:"skip"`
}

// ParseTOML decodes a provider.toml definition. Duplicate keys fail the
// parse; go-toml rejects redefinition natively.
func ParseTOML(src []byte, source string) (*Spec, error) {
	var spec Spec
	dec := toml.NewDecoder(bytes.NewReader(src))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := spec.Validate(source); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ParseYAML decodes a provider.yaml definition.
func ParseYAML(src []byte, source string) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := spec.Validate(source); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate enforces the mandatory fields and internal consistency of a
// definition before it reaches the registry.
func (s *Spec) Validate(source string) error {
	if s.Name == "" {
		return fmt.Errorf("%s: provider name is required", source)
	}
	if s.License == "" {
		return fmt.Errorf("%s: provider %q: license is required", source, s.Name)
	}
	if len(s.Runtimes) == 0 {
		return fmt.Errorf("%s: provider %q: at least one runtime is required", source, s.Name)
	}

	seen := make(map[string]bool, len(s.Runtimes))
	for _, rt := range s.Runtimes {
		if rt.Name == "" {
			return fmt.Errorf("%s: provider %q: runtime name is required", source, s.Name)
		}
		if seen[rt.Name] {
			return fmt.Errorf("%s: provider %q: duplicate runtime %q", source, s.Name, rt.Name)
		}
		seen[rt.Name] = true
	}
	for _, rt := range s.Runtimes {
		if rt.BundledWith != "" && !seen[rt.BundledWith] && !knownExternal(rt.BundledWith) {
			return fmt.Errorf("%s: provider %q: runtime %q bundled with unknown runtime %q",
				source, s.Name, rt.Name, rt.BundledWith)
		}
	}

	switch s.Versions.Source {
	case "", "index-json", "github-releases", "static":
	default:
		return fmt.Errorf("%s: provider %q: unknown version source %q", source, s.Name, s.Versions.Source)
	}

	switch s.Layout.Type {
	case "", LayoutBinary, LayoutArchive, LayoutMSI:
	default:
		return fmt.Errorf("%s: provider %q: unknown layout type %q", source, s.Name, s.Layout.Type)
	}

	for _, a := range append(append([]Action{}, s.PostExtract...), s.PreRun...) {
		switch a.Kind {
		case ActionRename, ActionSetPermissions, ActionFlattenDir,
			ActionRunCommand, ActionSymlink, ActionEnsureDependencies:
		default:
			return fmt.Errorf("%s: provider %q: unknown action %q", source, s.Name, a.Kind)
		}
	}

	return nil
}

// knownExternal allows bundled_with to point at a runtime defined by
// another provider. Cross-provider bundling resolves at lookup time; a
// dangling target surfaces from ResolveParent.
func knownExternal(name string) bool { return name != "" }

// expandTemplate substitutes {key} placeholders. Unknown placeholders are
// left intact so a malformed template surfaces in the resulting URL rather
// than silently vanishing.
func expandTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
