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
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var listInstalled bool

var listCmd = &cobra.Command{
	Use:   "list [provider]",
	Short: "List known providers or installed tool versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		defer func() { _ = w.Flush() }()

		if listInstalled {
			providerName := ""
			if len(args) == 1 {
				providerName = args[0]
			}
			records, err := a.installer.Store().List(providerName)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "PROVIDER\tVERSION\tPATH")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Fingerprint.Provider, rec.Fingerprint.Version, rec.Root)
			}
			return nil
		}

		title := cases.Title(language.English)
		fmt.Fprintln(w, "PROVIDER\tECOSYSTEM\tRUNTIMES\tLICENSE")
		for _, p := range a.registry.Providers() {
			runtimes := ""
			for i, rt := range p.Runtimes {
				if i > 0 {
					runtimes += ", "
				}
				runtimes += rt.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, title.String(p.Ecosystem), runtimes, p.License)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listInstalled, "installed", "i", false, "list installed versions instead of providers")
	rootCmd.AddCommand(listCmd)
}
