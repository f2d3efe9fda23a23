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
	"strings"

	"github.com/spf13/cobra"

	"github.com/buffrs-dev/buffrs/internal/manifest"
)

func newAddCmd() *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "add <repository>/<package>@<requirement>",
		Short: "Add a registry dependency to the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, m, err := loadProjectManifest()
			if err != nil {
				return err
			}
			if err := guardSinglePackage(m, "add"); err != nil {
				return err
			}
			if registryURL == "" {
				return fmt.Errorf("--registry is required")
			}

			repository, id, requirement, err := parseAddSpec(args[0])
			if err != nil {
				return err
			}

			dep := manifest.Dependency{Version: requirement, Registry: registryURL, Repository: repository}
			if _, err := dep.Resolve(id); err != nil {
				return err
			}

			if m.Dependencies == nil {
				m.Dependencies = make(map[string]manifest.Dependency)
			}
			m.Dependencies[id] = dep

			if err := m.Validate(); err != nil {
				return err
			}

			if err := manifest.Save(filepath.Join(root, manifest.Filename), m); err != nil {
				return err
			}

			logger.Info("added dependency", "package", id, "requirement", requirement)
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", "", "registry base URL")
	return cmd
}

// parseAddSpec parses "repository/package@requirement".
func parseAddSpec(spec string) (repository, id, requirement string, err error) {
	atIdx := strings.LastIndex(spec, "@")
	if atIdx < 0 {
		return "", "", "", fmt.Errorf("expected <repository>/<package>@<requirement>, got %q", spec)
	}
	path, requirement := spec[:atIdx], spec[atIdx+1:]

	slashIdx := strings.LastIndex(path, "/")
	if slashIdx < 0 {
		return "", "", "", fmt.Errorf("expected <repository>/<package>@<requirement>, got %q", spec)
	}
	repository, id = path[:slashIdx], path[slashIdx+1:]

	if repository == "" || id == "" || requirement == "" {
		return "", "", "", fmt.Errorf("expected <repository>/<package>@<requirement>, got %q", spec)
	}
	return repository, id, requirement, nil
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>",
		Short: "Remove a dependency from the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, m, err := loadProjectManifest()
			if err != nil {
				return err
			}
			if err := guardSinglePackage(m, "remove"); err != nil {
				return err
			}

			id := args[0]
			if _, ok := m.Dependencies[id]; !ok {
				return fmt.Errorf("no dependency named %q", id)
			}
			delete(m.Dependencies, id)

			if err := manifest.Save(filepath.Join(root, manifest.Filename), m); err != nil {
				return err
			}

			logger.Info("removed dependency", "package", id)
			return nil
		},
	}
}
