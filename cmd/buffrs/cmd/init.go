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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/version"
)

func newInitCmd() *cobra.Command {
	var asLib, asAPI bool

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Initialize a new buffrs package in the current directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asLib && asAPI {
				return fmt.Errorf("--lib and --api are mutually exclusive")
			}

			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			manifestPath := filepath.Join(wd, manifest.Filename)
			if _, err := os.Stat(manifestPath); err == nil {
				return fmt.Errorf("%s already exists", manifestPath)
			}

			name := filepath.Base(wd)
			if len(args) == 1 {
				name = args[0]
			}
			id, err := manifest.ParsePackageID(name)
			if err != nil {
				return err
			}

			kind := manifest.KindImpl
			switch {
			case asLib:
				kind = manifest.KindLibrary
			case asAPI:
				kind = manifest.KindAPI
			}

			m := &manifest.Manifest{
				Edition: version.LatestEdition(),
				Package: &manifest.PackageSection{
					Name:    id,
					Version: "0.1.0",
					Kind:    kind,
				},
			}

			if err := manifest.Save(manifestPath, m); err != nil {
				return err
			}

			protoDir := filepath.Join(wd, "proto")
			if err := os.MkdirAll(protoDir, 0o755); err != nil {
				return fmt.Errorf("create proto directory: %w", err)
			}

			logger.Info("initialized package", "name", string(id), "kind", kind.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asLib, "lib", false, "initialize as a library package (no dependencies allowed)")
	cmd.Flags().BoolVar(&asAPI, "api", false, "initialize as an api package")
	return cmd
}
