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
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/loonghao/vx/internal/platform"
)

// The HCL provider form carries the same declaration as the TOML form plus
// expression templates: `download.url` and `env` values may reference
// ${version}, ${os}, ${arch}, ${ext}, ${libc}, and ${install_dir}, evaluated
// lazily per hook call. This is the sandboxed rich form; there is no general
// evaluator, only these interpolation points.

var hclFileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name", Required: true},
		{Name: "ecosystem"},
		{Name: "license", Required: true},
		{Name: "description"},
		{Name: "global_shims"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "runtime", LabelNames: []string{"name"}},
		{Type: "versions"},
		{Type: "download"},
		{Type: "layout"},
		{Type: "env"},
	},
}

var hclRuntimeSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "executable"},
		{Name: "aliases"},
		{Name: "priority"},
		{Name: "bundled_with"},
		{Name: "auto_installable"},
		{Name: "system_paths"},
	},
}

var hclVersionsSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "source", Required: true},
		{Name: "url"},
		{Name: "repo"},
	},
}

var hclDownloadSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "url", Required: true},
		{Name: "ext"},
		{Name: "os_names"},
		{Name: "arch_names"},
	},
}

var hclLayoutSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type"},
		{Name: "strip_prefix"},
		{Name: "executable_paths"},
		{Name: "target_name"},
		{Name: "target_permissions"},
	},
}

// hclHooks extends the declarative backend with lazily evaluated
// expressions for the download URL and environment map.
type hclHooks struct {
	declarativeHooks
	urlExpr  hcl.Expression
	envExprs map[string]hcl.Expression
}

func (h *hclHooks) withOverlayRules(rules []OverlayRule) Hooks {
	clone := *h
	clone.rules = rules
	return &clone
}

// evalContext builds the variable scope for one hook call.
func (h *hclHooks) evalContext(p platform.Platform, version, installDir string) *hcl.EvalContext {
	vars := h.templateVars(p, version)
	ctyVars := make(map[string]cty.Value, len(vars)+1)
	for k, v := range vars {
		ctyVars[k] = cty.StringVal(v)
	}
	ctyVars["install_dir"] = cty.StringVal(installDir)
	return &hcl.EvalContext{Variables: ctyVars}
}

func (h *hclHooks) DownloadURL(hc *HookContext, version string) (string, error) {
	// Overlay URL replacement takes precedence over the expression.
	for _, rule := range matchingRules(h.rules, hc.Platform) {
		if rule.URL != "" {
			return expandTemplate(rule.URL, h.templateVars(hc.Platform, version)), nil
		}
	}
	if h.urlExpr == nil {
		return "", nil
	}

	val, diags := h.urlExpr.Value(h.evalContext(hc.Platform, version, ""))
	if diags.HasErrors() {
		return "", fmt.Errorf("provider %s: evaluate download url: %s", h.spec.Name, diags.Error())
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("provider %s: download url must be a string", h.spec.Name)
	}
	return val.AsString(), nil
}

func (h *hclHooks) Environment(hc *HookContext, version, installDir string) (map[string]string, error) {
	env := make(map[string]string, len(h.envExprs))
	ectx := h.evalContext(hc.Platform, version, installDir)
	for k, expr := range h.envExprs {
		val, diags := expr.Value(ectx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("provider %s: evaluate env %s: %s", h.spec.Name, k, diags.Error())
		}
		if val.Type() != cty.String {
			return nil, fmt.Errorf("provider %s: env %s must be a string", h.spec.Name, k)
		}
		env[k] = val.AsString()
	}

	vars := h.templateVars(hc.Platform, version)
	vars["install_dir"] = installDir
	for _, rule := range matchingRules(h.rules, hc.Platform) {
		for k, v := range rule.Env {
			env[k] = expandTemplate(v, vars)
		}
	}
	if len(env) == 0 {
		return nil, nil
	}
	return env, nil
}

// ParseHCL loads a provider.hcl definition.
func ParseHCL(src []byte, source string, client *VersionClient) (*Provider, error) {
	file, diags := hclsyntax.ParseConfig(src, source, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %s", source, diags.Error())
	}

	content, diags := file.Body.Content(hclFileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %s", source, diags.Error())
	}

	spec := &Spec{}
	hooks := &hclHooks{}

	if err := decodeStaticString(content.Attributes, "name", &spec.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := decodeStaticString(content.Attributes, "ecosystem", &spec.Ecosystem); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := decodeStaticString(content.Attributes, "license", &spec.License); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := decodeStaticString(content.Attributes, "description", &spec.Description); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := decodeStaticBool(content.Attributes, "global_shims", &spec.GlobalShims); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	seenBlocks := make(map[string]bool)
	for _, block := range content.Blocks {
		switch block.Type {
		case "runtime":
			rt, err := decodeRuntimeBlock(block)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", source, err)
			}
			spec.Runtimes = append(spec.Runtimes, rt)

		case "versions", "download", "layout", "env":
			// Duplicated singleton blocks are ambiguous; reject rather
			// than silently preferring one.
			if seenBlocks[block.Type] {
				return nil, fmt.Errorf("%s: duplicate %s block", source, block.Type)
			}
			seenBlocks[block.Type] = true

			switch block.Type {
			case "versions":
				if err := decodeVersionsBlock(block, spec); err != nil {
					return nil, fmt.Errorf("%s: %w", source, err)
				}
			case "download":
				if err := decodeDownloadBlock(block, spec, hooks); err != nil {
					return nil, fmt.Errorf("%s: %w", source, err)
				}
			case "layout":
				if err := decodeLayoutBlock(block, spec); err != nil {
					return nil, fmt.Errorf("%s: %w", source, err)
				}
			case "env":
				attrs, diags := block.Body.JustAttributes()
				if diags.HasErrors() {
					return nil, fmt.Errorf("%s: %s", source, diags.Error())
				}
				hooks.envExprs = make(map[string]hcl.Expression, len(attrs))
				for name, attr := range attrs {
					hooks.envExprs[name] = attr.Expr
				}
			}
		}
	}

	if err := spec.Validate(source); err != nil {
		return nil, err
	}

	hooks.spec = spec
	hooks.client = client

	return &Provider{
		Name:        spec.Name,
		Ecosystem:   spec.Ecosystem,
		License:     spec.License,
		Description: spec.Description,
		Runtimes:    spec.Runtimes,
		GlobalShims: spec.GlobalShims,
		Source:      source,
		Hooks:       hooks,
	}, nil
}

func decodeRuntimeBlock(block *hcl.Block) (Runtime, error) {
	rt := Runtime{Name: block.Labels[0]}

	content, diags := block.Body.Content(hclRuntimeSchema)
	if diags.HasErrors() {
		return rt, fmt.Errorf("runtime %q: %s", rt.Name, diags.Error())
	}

	if err := decodeStaticString(content.Attributes, "executable", &rt.Executable); err != nil {
		return rt, err
	}
	if rt.Executable == "" {
		rt.Executable = rt.Name
	}
	if err := decodeStaticStringList(content.Attributes, "aliases", &rt.Aliases); err != nil {
		return rt, err
	}
	if err := decodeStaticInt(content.Attributes, "priority", &rt.Priority); err != nil {
		return rt, err
	}
	if err := decodeStaticString(content.Attributes, "bundled_with", &rt.BundledWith); err != nil {
		return rt, err
	}
	if err := decodeStaticBool(content.Attributes, "auto_installable", &rt.AutoInstallable); err != nil {
		return rt, err
	}
	if err := decodeStaticStringList(content.Attributes, "system_paths", &rt.SystemPaths); err != nil {
		return rt, err
	}
	return rt, nil
}

func decodeVersionsBlock(block *hcl.Block, spec *Spec) error {
	content, diags := block.Body.Content(hclVersionsSchema)
	if diags.HasErrors() {
		return fmt.Errorf("versions: %s", diags.Error())
	}
	if err := decodeStaticString(content.Attributes, "source", &spec.Versions.Source); err != nil {
		return err
	}
	if err := decodeStaticString(content.Attributes, "url", &spec.Versions.URL); err != nil {
		return err
	}
	return decodeStaticString(content.Attributes, "repo", &spec.Versions.Repo)
}

func decodeDownloadBlock(block *hcl.Block, spec *Spec, hooks *hclHooks) error {
	content, diags := block.Body.Content(hclDownloadSchema)
	if diags.HasErrors() {
		return fmt.Errorf("download: %s", diags.Error())
	}
	if attr, ok := content.Attributes["url"]; ok {
		hooks.urlExpr = attr.Expr
		// Marker so spec validation and DownloadURL presence checks see a
		// configured download.
		spec.Download.URL = "hcl"
	}
	if err := decodeStaticStringMap(content.Attributes, "ext", &spec.Download.Ext); err != nil {
		return err
	}
	if err := decodeStaticStringMap(content.Attributes, "os_names", &spec.Download.OSNames); err != nil {
		return err
	}
	return decodeStaticStringMap(content.Attributes, "arch_names", &spec.Download.ArchNames)
}

func decodeLayoutBlock(block *hcl.Block, spec *Spec) error {
	content, diags := block.Body.Content(hclLayoutSchema)
	if diags.HasErrors() {
		return fmt.Errorf("layout: %s", diags.Error())
	}
	var layoutType string
	if err := decodeStaticString(content.Attributes, "type", &layoutType); err != nil {
		return err
	}
	spec.Layout.Type = LayoutType(layoutType)
	if err := decodeStaticString(content.Attributes, "strip_prefix", &spec.Layout.StripPrefix); err != nil {
		return err
	}
	if err := decodeStaticStringList(content.Attributes, "executable_paths", &spec.Layout.ExecutablePaths); err != nil {
		return err
	}
	if err := decodeStaticString(content.Attributes, "target_name", &spec.Layout.TargetName); err != nil {
		return err
	}
	return decodeStaticString(content.Attributes, "target_permissions", &spec.Layout.TargetPermissions)
}

// Static attribute decoding: these attributes must not reference request
// variables; they evaluate in an empty scope.

func decodeStaticString(attrs hcl.Attributes, name string, out *string) error {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("%s: %s", name, diags.Error())
	}
	if val.Type() != cty.String {
		return fmt.Errorf("%s: expected string", name)
	}
	*out = val.AsString()
	return nil
}

func decodeStaticBool(attrs hcl.Attributes, name string, out *bool) error {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("%s: %s", name, diags.Error())
	}
	if val.Type() != cty.Bool {
		return fmt.Errorf("%s: expected bool", name)
	}
	*out = val.True()
	return nil
}

func decodeStaticInt(attrs hcl.Attributes, name string, out *int) error {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("%s: %s", name, diags.Error())
	}
	if val.Type() != cty.Number {
		return fmt.Errorf("%s: expected number", name)
	}
	i, _ := val.AsBigFloat().Int64()
	*out = int(i)
	return nil
}

func decodeStaticStringList(attrs hcl.Attributes, name string, out *[]string) error {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("%s: %s", name, diags.Error())
	}
	var list []string
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.Type() != cty.String {
			return fmt.Errorf("%s: expected list of strings", name)
		}
		list = append(list, v.AsString())
	}
	*out = list
	return nil
}

func decodeStaticStringMap(attrs hcl.Attributes, name string, out *map[string]string) error {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("%s: %s", name, diags.Error())
	}
	m := make(map[string]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if k.Type() != cty.String || v.Type() != cty.String {
			return fmt.Errorf("%s: expected map of strings", name)
		}
		m[k.AsString()] = v.AsString()
	}
	*out = m
	return nil
}
