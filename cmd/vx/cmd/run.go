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

	"github.com/loonghao/vx/internal/executor"
)

var runCmd = &cobra.Command{
	Use:   "run <tool>[@version] [args...]",
	Short: "Run a managed tool",
	Long: `Run resolves the tool's version from the project manifest, lockfile,
and user configuration, installs it on first use, and executes it with the
given arguments. The child's exit code is passed through.`,
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("run requires a tool name")
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		tool, cliVersion := splitToolVersion(args[0])
		req := executor.Request{
			Runtime:     tool,
			Argv:        args[1:],
			Inputs:      a.inputs(cliVersion),
			AutoInstall: a.autoInstall(),
			Replace:     true,
		}
		if a.manifest != nil {
			req.ManifestEnv = a.manifest.Env
			req.RequiredEnv = a.manifest.RequiredEnv
		}

		code, err := a.executor.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		if code != 0 {
			return &ExitCodeError{Code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
