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
	"fmt"

	"github.com/loonghao/vx/internal/platform"
)

// declarativeHooks implements Hooks from a pure-data Spec. It is the common
// case: the whole builtin catalog and most user providers carry no logic
// beyond URL templates.
type declarativeHooks struct {
	spec   *Spec
	client *VersionClient
	rules  []OverlayRule // accumulated overlay rules, lower layers first
}

func (d *declarativeHooks) overlayRules() []OverlayRule { return d.rules }

// indexOverridable lets the user config repoint a provider's version index
// without forking its definition.
type indexOverridable interface {
	setIndexURL(url string)
}

func (d *declarativeHooks) setIndexURL(url string) {
	d.spec.Versions.URL = url
}

func (d *declarativeHooks) withOverlayRules(rules []OverlayRule) Hooks {
	clone := *d
	clone.rules = rules
	return &clone
}

// NewDeclarative builds a Provider from a parsed Spec.
func NewDeclarative(spec *Spec, client *VersionClient, source string) *Provider {
	return &Provider{
		Name:        spec.Name,
		Ecosystem:   spec.Ecosystem,
		License:     spec.License,
		Description: spec.Description,
		Runtimes:    spec.Runtimes,
		GlobalShims: spec.GlobalShims,
		Source:      source,
		Hooks: &declarativeHooks{
			spec:   spec,
			client: client,
		},
	}
}

func (d *declarativeHooks) FetchVersions(ctx context.Context, hc *HookContext) ([]VersionInfo, error) {
	switch d.spec.Versions.Source {
	case "static":
		out := make([]VersionInfo, len(d.spec.Versions.List))
		copy(out, d.spec.Versions.List)
		return out, nil
	case "index-json":
		return d.client.FetchIndexJSON(ctx, d.spec.Versions)
	case "github-releases":
		return d.client.FetchGitHubReleases(ctx, d.spec.Versions)
	case "":
		// System-install-only providers have nothing to enumerate.
		return nil, nil
	default:
		return nil, fmt.Errorf("provider %s: unknown version source %q", d.spec.Name, d.spec.Versions.Source)
	}
}

// templateVars builds the substitution set for a version on a platform,
// applying the provider's vendor name remaps.
func (d *declarativeHooks) templateVars(p platform.Platform, version string) map[string]string {
	osName := p.OS
	if mapped, ok := d.spec.Download.OSNames[p.OS]; ok {
		osName = mapped
	}
	archName := p.Arch
	if mapped, ok := d.spec.Download.ArchNames[p.Arch]; ok {
		archName = mapped
	}
	ext := d.spec.Download.Ext[p.OS]
	if ext == "" {
		ext = d.spec.Download.Ext["default"]
	}
	return map[string]string{
		"version": version,
		"os":      osName,
		"arch":    archName,
		"libc":    p.Libc,
		"ext":     ext,
	}
}

func (d *declarativeHooks) DownloadURL(hc *HookContext, version string) (string, error) {
	tmpl := d.spec.Download.URL
	for _, rule := range matchingRules(d.rules, hc.Platform) {
		if rule.URL != "" {
			tmpl = rule.URL
		}
	}
	if tmpl == "" {
		return "", nil
	}
	for _, skip := range d.spec.Download.Skip {
		if platform.Matches(skip, hc.Platform) {
			return "", nil
		}
	}
	return expandTemplate(tmpl, d.templateVars(hc.Platform, version)), nil
}

func (d *declarativeHooks) InstallLayout(hc *HookContext, version string) (Layout, error) {
	layout := d.spec.Layout
	if layout.Type == "" {
		layout.Type = LayoutArchive
	}
	layout.StripPrefix = expandTemplate(layout.StripPrefix, d.templateVars(hc.Platform, version))
	paths := make([]string, len(layout.ExecutablePaths))
	for i, p := range layout.ExecutablePaths {
		vars := d.templateVars(hc.Platform, version)
		vars["exe"] = hc.Platform.ExecutableExt()
		paths[i] = expandTemplate(p, vars)
	}
	layout.ExecutablePaths = paths
	return layout, nil
}

func (d *declarativeHooks) Environment(hc *HookContext, version, installDir string) (map[string]string, error) {
	vars := d.templateVars(hc.Platform, version)
	vars["install_dir"] = installDir

	env := make(map[string]string, len(d.spec.Env))
	for k, v := range d.spec.Env {
		env[k] = expandTemplate(v, vars)
	}
	for _, rule := range matchingRules(d.rules, hc.Platform) {
		for k, v := range rule.Env {
			env[k] = expandTemplate(v, vars)
		}
	}
	if len(env) == 0 {
		return nil, nil
	}
	return env, nil
}

func (d *declarativeHooks) Deps(hc *HookContext, version string) ([]Dep, error) {
	out := make([]Dep, len(d.spec.Deps))
	copy(out, d.spec.Deps)
	return out, nil
}

func (d *declarativeHooks) SystemInstall(hc *HookContext) ([]SystemStrategy, error) {
	var out []SystemStrategy
	for _, s := range d.spec.SystemInstall {
		if platform.MatchesAny(s.Platforms, hc.Platform) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *declarativeHooks) PostExtract(hc *HookContext, version, installDir string) ([]Action, error) {
	vars := d.templateVars(hc.Platform, version)
	vars["install_dir"] = installDir
	out := make([]Action, len(d.spec.PostExtract))
	for i, a := range d.spec.PostExtract {
		a.From = expandTemplate(a.From, vars)
		a.To = expandTemplate(a.To, vars)
		a.Path = expandTemplate(a.Path, vars)
		a.Pattern = expandTemplate(a.Pattern, vars)
		out[i] = a
	}
	return out, nil
}

func (d *declarativeHooks) PreRun(hc *HookContext, args []string, executable string) ([]Action, error) {
	if len(d.spec.PreRun) == 0 {
		return nil, nil
	}
	out := make([]Action, 0, len(d.spec.PreRun))
	for _, a := range d.spec.PreRun {
		if a.Kind == ActionEnsureDependencies && len(args) > 0 && a.Command == "" {
			// Default the dependency install command to the executable
			// being launched.
			a.Command = executable
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *declarativeHooks) SupportedPlatforms() []platform.Platform {
	supported := d.spec.Platforms
	for _, rule := range d.rules {
		if len(rule.Platforms) > 0 {
			supported = rule.Platforms
		}
	}
	return supported
}

func (d *declarativeHooks) Mirrors(hc *HookContext, version string) []string {
	vars := d.templateVars(hc.Platform, version)
	var out []string
	for _, rule := range matchingRules(d.rules, hc.Platform) {
		for _, tmpl := range rule.Mirrors {
			out = append(out, expandTemplate(tmpl, vars))
		}
	}
	return out
}
