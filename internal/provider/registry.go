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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned for lookups of names not in the registry.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrUnknownRuntime is returned when no provider declares the runtime.
var ErrUnknownRuntime = errors.New("unknown runtime")

// Layer identifies where a definition was loaded from. Later layers win.
type Layer int

// Precedence order, lowest first.
const (
	LayerBuiltin Layer = iota
	LayerUser
	LayerProject
)

func (l Layer) String() string {
	switch l {
	case LayerBuiltin:
		return "builtin"
	case LayerUser:
		return "user"
	default:
		return "project"
	}
}

// Registry holds the loaded provider map. It is built once at startup and
// read-only afterwards; Load stages a complete replacement and swaps it
// atomically, so readers never observe a partial load.
type Registry struct {
	logger *slog.Logger
	client *VersionClient

	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger,
		client:    NewVersionClient(),
		providers: make(map[string]*Provider),
	}
}

// LoadOptions names the three overlay layers. Empty directories are
// skipped; a missing directory is not an error.
type LoadOptions struct {
	// Builtin is the embedded definition filesystem (builtin.FS).
	Builtin fs.FS

	// UserDir is {providers_root}; each subdirectory or file is one
	// provider definition.
	UserDir string

	// ProjectDir is {project}/.vx/providers.
	ProjectDir string

	// IndexURLs overrides a provider's version index endpoint by name,
	// typically from the user config's [registry] table.
	IndexURLs map[string]string
}

// Load builds the provider map from all three layers. Any error anywhere
// leaves the previously loaded map untouched.
func (r *Registry) Load(opts LoadOptions) error {
	staged := make(map[string]*Provider)

	if opts.Builtin != nil {
		if err := r.loadFS(staged, opts.Builtin, LayerBuiltin, "builtin"); err != nil {
			return err
		}
	}
	for _, layer := range []struct {
		dir   string
		layer Layer
	}{
		{opts.UserDir, LayerUser},
		{opts.ProjectDir, LayerProject},
	} {
		if layer.dir == "" {
			continue
		}
		if _, err := os.Stat(layer.dir); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := r.loadFS(staged, os.DirFS(layer.dir), layer.layer, layer.dir); err != nil {
			return err
		}
	}

	for name, url := range opts.IndexURLs {
		p, ok := staged[name]
		if !ok {
			r.logger.Warn("index url override for unknown provider", "provider", name)
			continue
		}
		if o, ok := p.Hooks.(indexOverridable); ok {
			o.setIndexURL(url)
		}
	}

	if err := checkDepCycles(staged); err != nil {
		return err
	}

	r.mu.Lock()
	r.providers = staged
	r.mu.Unlock()

	r.logger.Debug("registry loaded", "providers", len(staged))
	return nil
}

// loadFS loads every provider definition in one layer. Within a layer a
// duplicate name is an error; across layers the later layer replaces.
// Overlay files (*.override.toml) apply after the layer's definitions.
func (r *Registry) loadFS(staged map[string]*Provider, fsys fs.FS, layer Layer, root string) error {
	var defs []string
	var overlays []string

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".override.toml"):
			overlays = append(overlays, path)
		case name == "provider.toml" || name == "provider.yaml" || name == "provider.hcl",
			strings.HasSuffix(name, ".provider.toml"),
			strings.HasSuffix(name, ".provider.yaml"),
			strings.HasSuffix(name, ".provider.hcl"):
			defs = append(defs, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s providers: %w", layer, err)
	}
	sort.Strings(defs)
	sort.Strings(overlays)

	seenInLayer := make(map[string]string)
	for _, path := range defs {
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		source := filepath.Join(root, filepath.FromSlash(path))
		p, err := r.parseDefinition(src, path, source)
		if err != nil {
			return err
		}

		if prior, dup := seenInLayer[p.Name]; dup {
			return fmt.Errorf("duplicate provider %q in %s layer: %s and %s", p.Name, layer, prior, source)
		}
		seenInLayer[p.Name] = source

		if LicenseBlocked(p.License) {
			r.logger.Warn("provider rejected by license gate",
				"provider", p.Name, "license", p.License, "source", source)
			continue
		}

		staged[p.Name] = p
	}

	for _, path := range overlays {
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		source := filepath.Join(root, filepath.FromSlash(path))
		name := strings.TrimSuffix(filepath.Base(path), ".override.toml")
		target, ok := staged[name]
		if !ok {
			return fmt.Errorf("%s: overlay for unknown provider %q", source, name)
		}
		patched, err := ApplyOverlay(target, src, source)
		if err != nil {
			return err
		}
		staged[name] = patched
	}

	return nil
}

// parseDefinition dispatches on the definition file format.
func (r *Registry) parseDefinition(src []byte, path, source string) (*Provider, error) {
	switch {
	case strings.HasSuffix(path, ".hcl"):
		return ParseHCL(src, source, r.client)
	case strings.HasSuffix(path, ".yaml"):
		spec, err := ParseYAML(src, source)
		if err != nil {
			return nil, err
		}
		return NewDeclarative(spec, r.client, source), nil
	default:
		spec, err := ParseTOML(src, source)
		if err != nil {
			return nil, err
		}
		return NewDeclarative(spec, r.client, source), nil
	}
}

// Provider returns a provider by name.
func (r *Registry) Provider(name string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Providers returns all providers sorted by name.
func (r *Registry) Providers() []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupRuntime finds the provider declaring a runtime name or alias.
// Provider names themselves also resolve, to their default runtime. When
// several providers declare the same name, the highest runtime priority
// wins, then lexicographic provider name for determinism.
func (r *Registry) LookupRuntime(name string) (*Provider, Runtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bestProvider *Provider
	var bestRuntime Runtime
	found := false

	for _, pname := range sortedKeys(r.providers) {
		p := r.providers[pname]
		if rt, ok := p.Runtime(name); ok {
			if !found || rt.Priority > bestRuntime.Priority {
				bestProvider, bestRuntime, found = p, rt, true
			}
		}
	}
	if found {
		return bestProvider, bestRuntime, nil
	}

	if p, ok := r.providers[name]; ok {
		return p, p.DefaultRuntime(), nil
	}

	return nil, Runtime{}, fmt.Errorf("%w: %s", ErrUnknownRuntime, name)
}

// ResolveParent follows bundled_with until it reaches an independently
// installable runtime. Queries for a bundled runtime redirect here: npm's
// install is node's install.
func (r *Registry) ResolveParent(p *Provider, rt Runtime) (*Provider, Runtime, error) {
	seen := map[string]bool{rt.Name: true}
	for rt.Bundled() {
		parentProvider, parentRuntime, err := r.LookupRuntime(rt.BundledWith)
		if err != nil {
			return nil, Runtime{}, fmt.Errorf("runtime %s: bundled with %s: %w", rt.Name, rt.BundledWith, err)
		}
		if seen[parentRuntime.Name] {
			return nil, Runtime{}, fmt.Errorf("runtime %s: bundled_with cycle", rt.Name)
		}
		seen[parentRuntime.Name] = true
		p, rt = parentProvider, parentRuntime
	}
	return p, rt, nil
}

// checkDepCycles rejects a load whose deps() declarations form a cycle
// between providers.
func checkDepCycles(providers map[string]*Provider) error {
	hc := &HookContext{}

	// Edge set: provider -> providers owning its declared dep runtimes.
	adj := make(map[string][]string, len(providers))
	runtimeOwner := make(map[string]string)
	for name, p := range providers {
		for _, rt := range p.Runtimes {
			runtimeOwner[rt.Name] = name
		}
	}
	for name, p := range providers {
		deps, err := p.Hooks.Deps(hc, "")
		if err != nil {
			return fmt.Errorf("provider %s: deps: %w", name, err)
		}
		for _, d := range deps {
			if owner, ok := runtimeOwner[d.Runtime]; ok && owner != name {
				adj[name] = append(adj[name], owner)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(providers))

	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("provider dependency cycle: %s", strings.Join(append(trail, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		for _, next := range adj[name] {
			if err := visit(next, append(trail, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range sortedKeys(providers) {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]*Provider) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
