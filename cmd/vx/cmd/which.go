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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loonghao/vx/internal/installer"
)

var whichCmd = &cobra.Command{
	Use:   "which <tool>[@version]",
	Short: "Print the path of the executable that vx run would launch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		tool, cliVersion := splitToolVersion(args[0])
		res, err := a.resolver.Resolve(cmd.Context(), tool, a.inputs(cliVersion))
		if err != nil {
			return err
		}

		fp := installer.Fingerprint{
			Provider: res.Provider.Name,
			Version:  res.Version.Version,
			Platform: a.platform.Key(),
		}
		rec, ok := a.installer.Store().Installed(fp)
		if !ok {
			return fmt.Errorf("%s %s is not installed (run: vx install %s@%s)",
				res.Provider.Name, res.Version.Version, tool, res.Version.Version)
		}

		path := rec.ExecutablePath()
		if !rec.Manifest.System && res.Requested.Name != res.Runtime.Name {
			// A bundled runtime lives in its parent's install under its own
			// executable name, which is what vx run launches.
			name := res.Requested.Executable
			if name == "" {
				name = res.Requested.Name
			}
			path = filepath.Join(rec.Root, "bin", name+a.platform.ExecutableExt())
			if _, err := os.Stat(path); err != nil {
				path = filepath.Join(rec.Root, name+a.platform.ExecutableExt())
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whichCmd)
}
