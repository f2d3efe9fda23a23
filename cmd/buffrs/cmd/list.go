// Copyright (c) 2024 the buffrs contributors
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

	"github.com/buffrs-dev/buffrs/internal/manifest"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the package's direct dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := loadProjectManifest()
			if err != nil {
				return err
			}
			if err := guardSinglePackage(m, "list"); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range m.SortedDependencyIDs() {
				dep := m.Dependencies[id]
				src, err := dep.Resolve(id)
				if err != nil {
					return err
				}
				switch s := src.(type) {
				case manifest.RegistrySource:
					fmt.Fprintf(out, "%s\t%s\t%s/%s\n", id, s.Constraint, s.URL, s.Repository)
				case manifest.LocalPathSource:
					fmt.Fprintf(out, "%s\tpath:%s\n", id, s.Path)
				}
			}
			return nil
		},
	}
}
