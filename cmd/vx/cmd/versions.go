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
)

var versionsLimit int

var versionsCmd = &cobra.Command{
	Use:   "versions <tool>",
	Short: "List installable versions for a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		p, rt, err := a.registry.LookupRuntime(args[0])
		if err != nil {
			return err
		}
		p, _, err = a.registry.ResolveParent(p, rt)
		if err != nil {
			return err
		}

		versions, err := a.resolver.Versions(cmd.Context(), p)
		if err != nil {
			return err
		}

		shown := 0
		for _, v := range versions {
			if versionsLimit > 0 && shown >= versionsLimit {
				break
			}
			marker := ""
			if v.LTS {
				marker = "  (lts)"
			}
			if v.Prerelease {
				marker = "  (prerelease)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", v.Version, marker)
			shown++
		}
		return nil
	},
}

func init() {
	versionsCmd.Flags().IntVarP(&versionsLimit, "limit", "n", 20, "maximum number of versions to print (0 = all)")
	rootCmd.AddCommand(versionsCmd)
}
