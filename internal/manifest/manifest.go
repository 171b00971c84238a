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

// Package manifest parses the project files: vx.toml (human-edited,
// declarative) and vx.lock (machine-generated, committed for
// reproducibility). The manifest never interpolates values at parse time;
// what is written is what components receive.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the project manifest file.
const FileName = "vx.toml"

// Manifest is a parsed vx.toml.
type Manifest struct {
	// Project carries display metadata.
	Project Project `toml:"project"`

	// Tools maps tool name to version constraint.
	Tools map[string]string `toml:"tools"`

	// Python configures the optional project virtualenv.
	Python *Python `toml:"python"`

	// Scripts are the project's named commands; they form a DAG via
	// depends.
	Scripts map[string]Script `toml:"scripts"`

	// RawEnv holds the [env] table before the required split.
	RawEnv map[string]any `toml:"env"`

	// Settings tune install behavior per project.
	Settings Settings `toml:"settings"`

	// Env and RequiredEnv are derived from RawEnv after decoding: plain
	// string entries land in Env, the [env.required] table maps variable
	// names to human descriptions.
	Env         map[string]string `toml:"-"`
	RequiredEnv map[string]string `toml:"-"`

	// Dir is the directory the manifest was loaded from.
	Dir string `toml:"-"`
}

// Project is vx.toml's [project] table.
type Project struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// Python is vx.toml's optional [python] table.
type Python struct {
	Version string `toml:"version"`
	Venv    string `toml:"venv"`
}

// Script is one [scripts.<name>] entry.
type Script struct {
	Command     string            `toml:"command"`
	Description string            `toml:"description"`
	Args        []string          `toml:"args"`
	Cwd         string            `toml:"cwd"`
	Env         map[string]string `toml:"env"`
	Depends     []string          `toml:"depends"`
}

// Settings is vx.toml's [settings] table.
type Settings struct {
	// CacheDuration is the version index TTL ("24h").
	CacheDuration string `toml:"cache_duration"`

	// ParallelInstall caps concurrent install pipelines.
	ParallelInstall int `toml:"parallel_install"`

	// AutoInstall permits installing missing tools on vx run.
	AutoInstall *bool `toml:"auto_install"`
}

// CacheTTL parses CacheDuration; zero when unset or invalid.
func (s Settings) CacheTTL() time.Duration {
	if s.CacheDuration == "" {
		return 0
	}
	d, err := time.ParseDuration(s.CacheDuration)
	if err != nil {
		return 0
	}
	return d
}

// AutoInstallEnabled defaults to true when the setting is absent.
func (s Settings) AutoInstallEnabled() bool {
	if s.AutoInstall == nil {
		return true
	}
	return *s.AutoInstall
}

// Parse decodes a vx.toml document.
func Parse(src []byte, source string) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	m.Env = make(map[string]string)
	m.RequiredEnv = make(map[string]string)
	for k, v := range m.RawEnv {
		switch val := v.(type) {
		case string:
			m.Env[k] = val
		case map[string]any:
			if k != "required" {
				return nil, fmt.Errorf("%s: [env.%s]: only [env.required] may be a table", source, k)
			}
			for name, desc := range val {
				s, ok := desc.(string)
				if !ok {
					return nil, fmt.Errorf("%s: [env.required] %s: description must be a string", source, name)
				}
				m.RequiredEnv[name] = s
			}
		default:
			return nil, fmt.Errorf("%s: [env] %s: values must be strings", source, k)
		}
	}
	m.RawEnv = nil

	if err := m.validate(source); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate(source string) error {
	for name, script := range m.Scripts {
		if script.Command == "" {
			return fmt.Errorf("%s: script %q has no command", source, name)
		}
		for _, dep := range script.Depends {
			if _, ok := m.Scripts[dep]; !ok {
				return fmt.Errorf("%s: script %q depends on unknown script %q", source, name, dep)
			}
		}
	}
	return nil
}

// Load reads vx.toml from a project directory. A missing manifest returns
// (nil, nil): running outside a project is normal.
func Load(projectDir string) (*Manifest, error) {
	path := filepath.Join(projectDir, FileName)
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	m, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	m.Dir = projectDir
	return m, nil
}

// Find walks upward from dir looking for vx.toml, mirroring how git finds
// its repository root.
func Find(dir string) (*Manifest, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		m, err := Load(current)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, nil
		}
		current = parent
	}
}
