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

// Package executor materializes an environment for a managed tool and
// launches it. It ties the resolver and installer together: resolve a
// version, ensure the install exists, compose the environment, run pre-run
// actions, and hand the process over.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loonghao/vx/internal/events"
	"github.com/loonghao/vx/internal/installer"
	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
	"github.com/loonghao/vx/internal/resolve"
)

// ErrNotInstalled is returned when the resolved version is absent and
// auto-install is disabled or not allowed for the runtime.
var ErrNotInstalled = errors.New("tool is not installed")

// MissingEnvError reports required environment variables absent at exec
// time. It surfaces before the child is spawned.
type MissingEnvError struct {
	Vars []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("required environment variables missing: %s", strings.Join(e.Vars, ", "))
}

// Request is one tool invocation.
type Request struct {
	// Runtime is the tool name as typed, possibly a bundled name or alias.
	Runtime string

	// Argv are the tool's arguments (without the tool name itself).
	Argv []string

	// Dir is the working directory; empty means inherit.
	Dir string

	// Inputs carries the resolver's constraint sources.
	Inputs resolve.Inputs

	// ManifestEnv is the project manifest's [env] table.
	ManifestEnv map[string]string

	// RequiredEnv maps required variable names to their descriptions.
	RequiredEnv map[string]string

	// ExtraEnv is CLI-provided environment, highest precedence.
	ExtraEnv map[string]string

	// AutoInstall permits installing the resolved version when absent.
	AutoInstall bool

	// Replace asks for process replacement where the platform supports
	// it (POSIX exec). When false, the child is spawned and its exit code
	// mirrored.
	Replace bool
}

// Executor launches managed tools.
type Executor struct {
	resolver  *resolve.Resolver
	installer *installer.Installer
	platform  platform.Platform
	logger    *slog.Logger
	sink      events.Sink
}

// New builds an executor.
func New(resolver *resolve.Resolver, inst *installer.Installer, p platform.Platform, logger *slog.Logger, sink events.Sink) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Executor{resolver: resolver, installer: inst, platform: p, logger: logger, sink: sink}
}

// Run resolves, ensures, and launches the tool, returning the child's exit
// code. Internal failures surface as errors, disjoint from child exit
// codes.
func (e *Executor) Run(ctx context.Context, req Request) (int, error) {
	res, err := e.resolver.Resolve(ctx, req.Runtime, req.Inputs)
	if err != nil {
		return 0, err
	}

	rec, err := e.ensureInstalled(ctx, res, req.AutoInstall)
	if err != nil {
		return 0, err
	}

	executable, err := e.locateExecutable(rec, res)
	if err != nil {
		return 0, err
	}

	env, err := e.composeEnv(res, rec, req)
	if err != nil {
		return 0, err
	}

	if err := e.runPreRun(ctx, res, req, executable, env); err != nil {
		return 0, err
	}

	argv := append([]string{executable}, req.Argv...)
	if req.Replace {
		// On POSIX this replaces the process and does not return on
		// success; elsewhere it falls through to spawn.
		if err := execReplace(executable, argv, env); err != nil && !errors.Is(err, errReplaceUnsupported) {
			return 0, err
		}
	}
	return e.spawn(ctx, executable, req.Argv, req.Dir, env)
}

// ensureInstalled returns the install record, auto-installing when allowed.
func (e *Executor) ensureInstalled(ctx context.Context, res *resolve.Resolution, autoInstall bool) (*installer.Record, error) {
	fp := installer.Fingerprint{
		Provider: res.Provider.Name,
		Version:  res.Version.Version,
		Platform: e.platform.Key(),
	}
	if rec, ok := e.installer.Store().Installed(fp); ok {
		return rec, nil
	}

	if !autoInstall || !res.Runtime.AutoInstallable {
		return nil, fmt.Errorf("%w: %s %s", ErrNotInstalled, res.Provider.Name, res.Version.Version)
	}

	return e.installer.Install(ctx, installer.Request{
		Provider: res.Provider,
		Runtime:  res.Runtime,
		Version:  res.Version,
	}, installer.Options{})
}

// locateExecutable finds the launch target. For a bundled runtime the
// parent's install is searched for the bundled executable; otherwise the
// record's primary executable is used, with the conventional bin/ fallback.
func (e *Executor) locateExecutable(rec *installer.Record, res *resolve.Resolution) (string, error) {
	if rec.Manifest.System {
		return rec.Manifest.SystemPath, nil
	}

	name := res.Requested.Executable
	if name == "" {
		name = res.Requested.Name
	}

	if res.Requested.Name == res.Runtime.Name {
		if p := rec.ExecutablePath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	candidates := []string{
		filepath.Join(rec.Root, "bin", name),
		filepath.Join(rec.Root, name),
	}
	if e.platform.OS == platform.OSWindows {
		candidates = append([]string{
			filepath.Join(rec.Root, "bin", name+".exe"),
			filepath.Join(rec.Root, name+".exe"),
		}, candidates...)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("executable %s not found under %s", name, rec.Root)
}

// composeEnv merges the environment in precedence order: process env,
// provider environment, manifest env, CLI env. PATH is prepended with the
// install's bin directory. Required variables are enforced last, against
// the merged result.
func (e *Executor) composeEnv(res *resolve.Resolution, rec *installer.Record, req Request) ([]string, error) {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}

	hc := &provider.HookContext{Platform: e.platform}
	providerEnv, err := res.Provider.Hooks.Environment(hc, res.Version.Version, rec.Root)
	if err != nil {
		return nil, err
	}
	for k, v := range providerEnv {
		merged[k] = v
	}
	for k, v := range req.ManifestEnv {
		merged[k] = v
	}
	for k, v := range req.ExtraEnv {
		merged[k] = v
	}

	// The tool's own bin directory leads PATH so nested invocations find
	// the managed install first.
	if !rec.Manifest.System {
		binDir := filepath.Dir(rec.ExecutablePath())
		sep := string(os.PathListSeparator)
		if existing, ok := merged["PATH"]; ok && existing != "" {
			merged["PATH"] = binDir + sep + existing
		} else {
			merged["PATH"] = binDir
		}
	}

	var missing []string
	for name := range req.RequiredEnv {
		if merged[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingEnvError{Vars: missing}
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out, nil
}

// runPreRun dispatches the provider's pre-run actions. ensure_dependencies
// runs its command only when the sentinel path is absent under the working
// directory; failures warn and continue, except that on_failure "fatal"
// aborts the run with the command's error.
func (e *Executor) runPreRun(ctx context.Context, res *resolve.Resolution, req Request, executable string, env []string) error {
	hc := &provider.HookContext{Platform: e.platform}
	actions, err := res.Provider.Hooks.PreRun(hc, req.Argv, executable)
	if err != nil {
		return err
	}

	dir := req.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}

	for _, a := range actions {
		switch a.Kind {
		case provider.ActionEnsureDependencies:
			if a.Sentinel != "" {
				if _, err := os.Stat(filepath.Join(dir, a.Sentinel)); err == nil {
					continue
				}
			}
			command := a.Command
			if command == "" {
				command = executable
			}
			cmd := exec.CommandContext(ctx, command, a.Args...)
			cmd.Dir = dir
			cmd.Env = env
			if out, err := cmd.CombinedOutput(); err != nil {
				if a.OnFailure == "fatal" {
					return fmt.Errorf("pre-run %s: %w: %s", command, err, out)
				}
				e.logger.Warn("pre-run dependency install failed", "command", command, "error", err)
				e.sink.Emit(events.Event{
					Type:    events.Warning,
					Message: fmt.Sprintf("dependency install (%s) failed: %v", command, err),
				})
			}
		case provider.ActionRunCommand:
			cmd := exec.CommandContext(ctx, a.Command, a.Args...)
			cmd.Dir = dir
			cmd.Env = env
			if out, err := cmd.CombinedOutput(); err != nil && a.OnFailure != "ignore" && a.OnFailure != "warn" {
				return fmt.Errorf("pre-run %s: %w: %s", a.Command, err, out)
			}
		default:
			e.logger.Warn("unsupported pre-run action", "action", a.Kind)
		}
	}
	return nil
}
