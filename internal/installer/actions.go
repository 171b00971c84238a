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
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
	"github.com/loonghao/vx/internal/secureio"
)

// runPostExtract executes the provider's post-extract actions against the
// staging tree, in order. Every action is idempotent against an
// already-laid-out tree, so a rerun after a crash converges.
func runPostExtract(ctx context.Context, actions []provider.Action, staging string, current platform.Platform, logger *slog.Logger, sink events.Sink) error {
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		sink.Emit(events.Event{Type: events.PostExtractAction, Action: string(a.Kind)})

		var err error
		switch a.Kind {
		case provider.ActionRename:
			err = actionRename(staging, a)
		case provider.ActionSetPermissions:
			err = actionSetPermissions(staging, a, current)
		case provider.ActionFlattenDir:
			err = actionFlattenDir(staging, a, logger, sink)
		case provider.ActionRunCommand:
			err = actionRunCommand(ctx, staging, a, logger, sink)
		case provider.ActionSymlink:
			err = actionSymlink(staging, a, current)
		default:
			err = fmt.Errorf("unsupported post-extract action %q", a.Kind)
		}
		if err != nil {
			return fmt.Errorf("post-extract %s: %w", a.Kind, err)
		}
	}
	return nil
}

func actionRename(root string, a provider.Action) error {
	from, err := secureio.WithinRoot(root, a.From)
	if err != nil {
		return err
	}
	to, err := secureio.WithinRoot(root, a.To)
	if err != nil {
		return err
	}

	if _, err := os.Stat(from); os.IsNotExist(err) {
		// Already renamed on a previous run.
		if _, err := os.Stat(to); err == nil {
			return nil
		}
		return fmt.Errorf("source %s missing", a.From)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.Rename(from, to)
}

func actionSetPermissions(root string, a provider.Action, current platform.Platform) error {
	if current.OS == platform.OSWindows {
		return nil
	}
	p, err := secureio.WithinRoot(root, a.Path)
	if err != nil {
		return err
	}
	mode, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", a.Mode, err)
	}
	return os.Chmod(p, os.FileMode(mode))
}

// actionFlattenDir moves the contents of a single matching top-level
// directory up one level. Zero or multiple matches is a warning, not an
// error, so the action stays idempotent.
func actionFlattenDir(root string, a provider.Action, logger *slog.Logger, sink events.Sink) error {
	matches, err := filepath.Glob(filepath.Join(root, a.Pattern))
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", a.Pattern, err)
	}

	var dirs []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	if len(dirs) != 1 {
		logger.Warn("flatten_dir matched unexpected count", "pattern", a.Pattern, "matches", len(dirs))
		sink.Emit(events.Event{
			Type:    events.Warning,
			Message: fmt.Sprintf("flatten_dir %q matched %d directories, skipping", a.Pattern, len(dirs)),
		})
		return nil
	}

	src := dirs[0]
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

func actionRunCommand(ctx context.Context, root string, a provider.Action, logger *slog.Logger, sink events.Sink) error {
	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	switch a.OnFailure {
	case "ignore":
		return nil
	case "warn", "":
		logger.Warn("post-extract command failed", "command", a.Command, "error", err)
		sink.Emit(events.Event{
			Type:    events.Warning,
			Message: fmt.Sprintf("command %s failed: %v", a.Command, err),
		})
		return nil
	default: // fatal
		return fmt.Errorf("command %s: %w: %s", a.Command, err, out)
	}
}

func actionSymlink(root string, a provider.Action, current platform.Platform) error {
	src, err := secureio.WithinRoot(root, a.From)
	if err != nil {
		return err
	}
	dst, err := secureio.WithinRoot(root, a.To)
	if err != nil {
		return err
	}

	if target, err := os.Readlink(dst); err == nil && target == a.From {
		return nil
	}
	_ = os.Remove(dst)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if err := os.Symlink(src, dst); err != nil {
		if current.OS == platform.OSWindows {
			// Symlink creation needs developer mode or admin on windows;
			// a copy serves the same layout.
			return copyFile(src, dst)
		}
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
