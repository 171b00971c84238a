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

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install <tool>[@version]...",
	Short: "Install one or more tools into the local store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		for _, arg := range args {
			tool, cliVersion := splitToolVersion(arg)

			res, err := a.resolver.Resolve(cmd.Context(), tool, a.inputs(cliVersion))
			if err != nil {
				return err
			}

			rec, err := a.installer.Install(cmd.Context(), installer.Request{
				Provider: res.Provider,
				Runtime:  res.Runtime,
				Version:  res.Version,
			}, installer.Options{Force: installForce, LockTimeout: a.cfg.LockTimeout()})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is installed at %s\n",
				rec.Fingerprint.Provider, rec.Fingerprint.Version, rec.Root)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "reinstall even when already present")
	rootCmd.AddCommand(installCmd)
}
