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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buffrs-dev/buffrs/internal/archive"
	"github.com/buffrs-dev/buffrs/internal/pack"
)

// resolveOutputDir turns a possibly-relative --output-directory flag into
// an absolute path, defaulting to root when unset.
func resolveOutputDir(outputDir, root string) (string, error) {
	if outputDir == "" {
		return root, nil
	}
	if filepath.IsAbs(outputDir) {
		return outputDir, nil
	}
	return filepath.Join(root, outputDir), nil
}

func newPackageCmd() *cobra.Command {
	var outputDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Bundle the package's proto files into a distributable archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, m, err := loadProjectManifest()
			if err != nil {
				return err
			}
			if err := guardSinglePackage(m, "package"); err != nil {
				return err
			}
			if err := m.ValidateForPublish(); err != nil {
				return err
			}

			p, err := pack.Load(root)
			if err != nil {
				return err
			}

			blob, dig, err := archive.Bundle(p)
			if err != nil {
				return err
			}

			if dryRun {
				logger.Info("packaged (dry run)", "package", p.Name(), "size", len(blob), "digest", dig.String())
				return nil
			}

			dir, err := resolveOutputDir(outputDir, root)
			if err != nil {
				return err
			}
			outPath := filepath.Join(dir, fmt.Sprintf("%s-%s.tar.gz", p.Name(), m.Package.Version))
			if err := writeArchive(outPath, blob); err != nil {
				return err
			}

			logger.Info("packaged", "package", p.Name(), "output", outPath, "digest", dig.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-directory", "", "directory to write the archive to (defaults to the package root)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "bundle without writing the archive to disk")
	return cmd
}
