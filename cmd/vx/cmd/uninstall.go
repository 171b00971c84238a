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

	"github.com/spf13/cobra"

	"github.com/loonghao/vx/internal/installer"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <tool>@<version>",
	Short: "Remove an installed tool version from the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tool, version := splitToolVersion(args[0])
		if version == "" {
			return fmt.Errorf("uninstall requires an explicit version: %s@<version>", tool)
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		p, rt, err := a.registry.LookupRuntime(tool)
		if err != nil {
			return err
		}
		p, _, err = a.registry.ResolveParent(p, rt)
		if err != nil {
			return err
		}

		fp := installer.Fingerprint{
			Provider: p.Name,
			Version:  version,
			Platform: a.platform.Key(),
		}
		if err := a.installer.Uninstall(cmd.Context(), fp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", p.Name, version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
