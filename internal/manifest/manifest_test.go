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

package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleManifest = `
[project]
name = "demo"
version = "0.1.0"

[tools]
node = "20"
go = "^1.22"
uv = "latest"

[python]
version = "3.12"

[env]
DATABASE_URL = "postgres://localhost/demo"

[env.required]
API_TOKEN = "token for the deployment API"

[scripts.build]
command = "go"
args = ["build", "./..."]

[scripts.generate]
command = "go"
args = ["generate", "./..."]

[scripts.test]
command = "go"
args = ["test", "./..."]
depends = ["build", "generate"]

[settings]
cache_duration = "12h"
parallel_install = 2
`

func TestParseManifest(t *testing.T) {
	m, err := Parse([]byte(sampleManifest), "vx.toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m.Tools["node"] != "20" || m.Tools["go"] != "^1.22" {
		t.Errorf("tools = %v", m.Tools)
	}
	if m.Python == nil || m.Python.Version != "3.12" {
		t.Errorf("python = %+v", m.Python)
	}
	if m.Env["DATABASE_URL"] != "postgres://localhost/demo" {
		t.Errorf("env = %v", m.Env)
	}
	if m.RequiredEnv["API_TOKEN"] != "token for the deployment API" {
		t.Errorf("required env = %v", m.RequiredEnv)
	}
	if m.Settings.CacheTTL().Hours() != 12 {
		t.Errorf("cache ttl = %v", m.Settings.CacheTTL())
	}
	if m.Settings.ParallelInstall != 2 {
		t.Errorf("parallel = %d", m.Settings.ParallelInstall)
	}
	if !m.Settings.AutoInstallEnabled() {
		t.Error("auto install should default on")
	}
}

func TestParseRejectsUnknownScriptDep(t *testing.T) {
	src := `
[scripts.test]
command = "go"
depends = ["missing"]
`
	_, err := Parse([]byte(src), "vx.toml")
	if err == nil || !strings.Contains(err.Error(), "unknown script") {
		t.Errorf("expected unknown script error, got %v", err)
	}
}

func TestParseRejectsNonStringEnv(t *testing.T) {
	src := `
[env]
PORT = 8080
`
	_, err := Parse([]byte(src), "vx.toml")
	if err == nil || !strings.Contains(err.Error(), "must be strings") {
		t.Errorf("expected env type error, got %v", err)
	}
}

func TestFindWalksUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[tools]\nnode = \"20\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Find(nested)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Tools["node"] != "20" {
		t.Fatalf("Find = %+v", m)
	}
	if m.Dir != root {
		t.Errorf("Dir = %s, want %s", m.Dir, root)
	}
}

func TestFindOutsideProject(t *testing.T) {
	m, err := Find(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("expected nil manifest outside a project, got %+v", m)
	}
}

func TestScriptOrder(t *testing.T) {
	m, err := Parse([]byte(sampleManifest), "vx.toml")
	if err != nil {
		t.Fatal(err)
	}

	order, err := m.ScriptOrder("test")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"build", "generate", "test"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}

	// A script without dependencies orders alone.
	order, err = m.ScriptOrder("build")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"build"}) {
		t.Errorf("order = %v", order)
	}
}

func TestScriptOrderCycle(t *testing.T) {
	src := `
[scripts.a]
command = "true"
depends = ["b"]

[scripts.b]
command = "true"
depends = ["a"]
`
	m, err := Parse([]byte(src), "vx.toml")
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.ScriptOrder("a")
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestScriptOrderUnknown(t *testing.T) {
	m, err := Parse([]byte(sampleManifest), "vx.toml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ScriptOrder("deploy"); err == nil {
		t.Error("expected error for unknown script")
	}
}
