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

// Package installer materializes provider versions into the local store.
// The pipeline is fetch, verify, extract, lay out, publish; every stage runs
// under a per-fingerprint advisory lock and a finished install only ever
// appears by atomic rename.
package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/secureio"
)

// ManifestName is the sidecar file marking a complete install.
const ManifestName = ".vx-install.json"

// Fingerprint identifies one install: it is both the store key and the
// lock key.
type Fingerprint struct {
	Provider string
	Version  string
	Platform string // platform key, e.g. "linux-x64"
}

// String renders the fingerprint as used in lock file names.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s-%s-%s", f.Provider, f.Version, f.Platform)
}

// Manifest is the .vx-install.json sidecar.
type Manifest struct {
	Provider    string            `json:"provider"`
	Version     string            `json:"version"`
	Platform    string            `json:"platform"`
	SourceURL   string            `json:"source_url,omitempty"`
	Checksum    map[string]string `json:"checksum,omitempty"`
	InstalledAt time.Time         `json:"installed_at"`
	LayoutHash  string            `json:"layout_hash,omitempty"`

	// System marks a synthesized record pointing at a system-managed
	// binary instead of an extracted tree.
	System     bool   `json:"system,omitempty"`
	SystemPath string `json:"system_path,omitempty"`

	// Executables are the install-root-relative launch targets.
	Executables []string `json:"executables,omitempty"`
}

// Record is one materialized install.
type Record struct {
	Fingerprint Fingerprint
	Root        string
	Manifest    Manifest
}

// ExecutablePath returns the absolute path of the record's primary
// executable.
func (r *Record) ExecutablePath() string {
	if r.Manifest.System {
		return r.Manifest.SystemPath
	}
	if len(r.Manifest.Executables) > 0 {
		return filepath.Join(r.Root, filepath.FromSlash(r.Manifest.Executables[0]))
	}
	return ""
}

// Store is the content-addressed install set under {home}/store.
type Store struct {
	paths *platform.Paths
}

// NewStore creates a store over the given path roots.
func NewStore(paths *platform.Paths) *Store {
	return &Store{paths: paths}
}

// Root returns the final install root for a fingerprint.
func (s *Store) Root(fp Fingerprint) string {
	return s.paths.InstallRoot(fp.Provider, fp.Version)
}

// Installed returns the record if the fingerprint is present and valid.
// Presence without validity (missing manifest, missing executables) reads
// as not installed.
func (s *Store) Installed(fp Fingerprint) (*Record, bool) {
	root := s.Root(fp)
	m, err := readManifest(root)
	if err != nil {
		return nil, false
	}
	rec := &Record{Fingerprint: fp, Root: root, Manifest: *m}
	if err := s.Validate(rec); err != nil {
		return nil, false
	}
	return rec, true
}

// Validate checks that a record's expected executables exist and are
// executable. System records validate their system path instead.
func (s *Store) Validate(rec *Record) error {
	if rec.Manifest.System {
		if rec.Manifest.SystemPath == "" {
			return errors.New("system install record has no path")
		}
		if _, err := os.Stat(rec.Manifest.SystemPath); err != nil {
			return fmt.Errorf("system binary missing: %w", err)
		}
		return nil
	}

	if len(rec.Manifest.Executables) == 0 {
		return errors.New("install record declares no executables")
	}
	for _, rel := range rec.Manifest.Executables {
		path, err := secureio.WithinRoot(rec.Root, rel)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("executable missing: %w", err)
		}
		if platform.Current().OS != platform.OSWindows && info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("%s is not executable", path)
		}
	}
	return nil
}

// List enumerates all valid installs for a provider, version-sorted.
// An empty provider lists the whole store.
func (s *Store) List(providerName string) ([]*Record, error) {
	var providers []string
	if providerName != "" {
		providers = []string{providerName}
	} else {
		entries, err := os.ReadDir(s.paths.Store())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("read store: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				providers = append(providers, e.Name())
			}
		}
	}

	var out []*Record
	for _, p := range providers {
		dir := filepath.Join(s.paths.Store(), p)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			fp := Fingerprint{Provider: p, Version: e.Name(), Platform: platform.Current().Key()}
			if rec, ok := s.Installed(fp); ok {
				out = append(out, rec)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Fingerprint.Provider != out[j].Fingerprint.Provider {
			return out[i].Fingerprint.Provider < out[j].Fingerprint.Provider
		}
		vi, errI := semver.NewVersion(out[i].Fingerprint.Version)
		vj, errJ := semver.NewVersion(out[j].Fingerprint.Version)
		if errI == nil && errJ == nil {
			return vi.LessThan(vj)
		}
		return out[i].Fingerprint.Version < out[j].Fingerprint.Version
	})
	return out, nil
}

// WriteManifest writes the sidecar into a staging (or final) root.
func WriteManifest(root string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode install manifest: %w", err)
	}
	return platform.WriteAtomic(filepath.Join(root, ManifestName), data, 0o644)
}

func readManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt install manifest in %s: %w", root, err)
	}
	return &m, nil
}
