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

package installer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/provider"
)

func runActions(t *testing.T, root string, actions []provider.Action) (*events.Collector, error) {
	t.Helper()
	sink := &events.Collector{}
	err := runPostExtract(context.Background(), actions, root, testPlatform, slog.Default(), sink)
	return sink, err
}

func TestActionRenameIdempotent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "tool-linux"), []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	actions := []provider.Action{{Kind: provider.ActionRename, From: "tool-linux", To: "bin/tool"}}
	if _, err := runActions(t, root, actions); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "bin", "tool")); err != nil {
		t.Fatalf("rename target missing: %v", err)
	}

	// Second run against the already-laid-out tree is a no-op.
	if _, err := runActions(t, root, actions); err != nil {
		t.Fatalf("rerun should be idempotent: %v", err)
	}
}

func TestActionFlattenDir(t *testing.T) {
	root := t.TempDir()
	inner := filepath.Join(root, "node-v20.11.0-linux-x64")
	if err := os.MkdirAll(filepath.Join(inner, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inner, "bin", "node"), []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	actions := []provider.Action{{Kind: provider.ActionFlattenDir, Pattern: "node-v*"}}
	if _, err := runActions(t, root, actions); err != nil {
		t.Fatalf("flatten: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "bin", "node")); err != nil {
		t.Errorf("contents not moved up: %v", err)
	}
	if _, err := os.Stat(inner); !os.IsNotExist(err) {
		t.Errorf("inner dir should be removed, stat err = %v", err)
	}
}

func TestActionFlattenDirMultipleMatchesWarns(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"pkg-a", "pkg-b"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	sink, err := runActions(t, root, []provider.Action{{Kind: provider.ActionFlattenDir, Pattern: "pkg-*"}})
	if err != nil {
		t.Fatalf("multiple matches must warn, not fail: %v", err)
	}
	if sink.Count(events.Warning) != 1 {
		t.Errorf("expected a warning event, got %v", sink.Types())
	}

	// Both directories stay put.
	for _, d := range []string{"pkg-a", "pkg-b"} {
		if _, err := os.Stat(filepath.Join(root, d)); err != nil {
			t.Errorf("%s disturbed: %v", d, err)
		}
	}
}

func TestActionSetPermissions(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "script.sh"), []byte("#!/bin/sh"), 0o644); err != nil {
		t.Fatal(err)
	}

	actions := []provider.Action{{Kind: provider.ActionSetPermissions, Path: "script.sh", Mode: "755"}}
	if _, err := runActions(t, root, actions); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(root, "script.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

func TestActionSymlink(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "bin", "node"), []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	actions := []provider.Action{{Kind: provider.ActionSymlink, From: "bin/node", To: "bin/nodejs"}}
	if _, err := runActions(t, root, actions); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "bin", "nodejs")); err != nil {
		t.Errorf("symlink missing: %v", err)
	}

	// Rerun converges.
	if _, err := runActions(t, root, actions); err != nil {
		t.Errorf("rerun: %v", err)
	}
}

func TestActionRunCommandFailureModes(t *testing.T) {
	root := t.TempDir()

	fail := provider.Action{Kind: provider.ActionRunCommand, Command: "false"}

	fail.OnFailure = "warn"
	sink, err := runActions(t, root, []provider.Action{fail})
	if err != nil {
		t.Errorf("warn mode should not fail: %v", err)
	}
	if sink.Count(events.Warning) != 1 {
		t.Errorf("warn mode should emit a warning")
	}

	fail.OnFailure = "ignore"
	if _, err := runActions(t, root, []provider.Action{fail}); err != nil {
		t.Errorf("ignore mode should not fail: %v", err)
	}

	fail.OnFailure = "fatal"
	if _, err := runActions(t, root, []provider.Action{fail}); err == nil {
		t.Error("fatal mode should fail")
	}
}

func TestActionRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()

	actions := []provider.Action{{Kind: provider.ActionRename, From: "../outside", To: "bin/tool"}}
	if _, err := runActions(t, root, actions); err == nil {
		t.Error("expected error for escaping source path")
	}
}
