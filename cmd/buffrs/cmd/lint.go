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

	"github.com/buffrs-dev/buffrs/internal/pack"
	"github.com/buffrs-dev/buffrs/internal/protoscan"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check .proto files for common mistakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, m, err := loadProjectManifest()
			if err != nil {
				return err
			}
			if err := guardSinglePackage(m, "lint"); err != nil {
				return err
			}

			p, err := pack.Load(root)
			if err != nil {
				return err
			}

			findings := protoscan.Scan(p.Files)
			for _, f := range findings {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", f.Severity, f.File, f.Message)
			}

			if protoscan.HasErrors(findings) {
				return fmt.Errorf("lint found %d finding(s)", len(findings))
			}

			logger.Info("lint passed", "files", len(p.Files), "findings", len(findings))
			return nil
		},
	}
}
