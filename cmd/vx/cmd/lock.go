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

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loonghao/vx/internal/manifest"
	"github.com/loonghao/vx/internal/provider"
	"github.com/loonghao/vx/internal/version"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Pin the manifest's tools into vx.lock",
	Long: `Lock resolves every tool in vx.toml to a concrete version and writes
vx.lock. Commit the lockfile so everyone on the project gets identical
tool versions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if a.manifest == nil {
			return fmt.Errorf("no %s found; vx lock runs inside a project", manifest.FileName)
		}

		// Resolve fresh: the existing lockfile must not pin the re-lock.
		inputs := a.inputs("")
		inputs.Locked = nil

		tools := make([]string, 0, len(a.manifest.Tools))
		for tool := range a.manifest.Tools {
			tools = append(tools, tool)
		}
		sort.Strings(tools)

		locked := make(map[string]manifest.LockedTool, len(tools))
		for _, tool := range tools {
			res, err := a.resolver.Resolve(cmd.Context(), tool, inputs)
			if err != nil {
				return fmt.Errorf("lock %s: %w", tool, err)
			}

			url := res.Version.DownloadURL
			if url == "" {
				hc := &provider.HookContext{Platform: a.platform}
				url, _ = res.Provider.Hooks.DownloadURL(hc, res.Version.Version)
			}
			locked[res.Runtime.Name] = manifest.LockedTool{
				Version:   res.Version.Version,
				Checksum:  res.Version.Checksum,
				SourceURL: url,
			}
		}

		lock := manifest.NewLockfile(version.Get(), locked)
		if err := lock.WriteLock(a.manifest.Dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "locked %d tools in %s\n", len(locked), manifest.LockFileName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
}
