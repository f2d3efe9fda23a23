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
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buffrs-dev/buffrs/internal/archive"
	"github.com/buffrs-dev/buffrs/internal/diffutil"
	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/pack"
	"github.com/buffrs-dev/buffrs/internal/registryclient"
	"github.com/buffrs-dev/buffrs/internal/workspace"
)

func newPublishCmd() *cobra.Command {
	var registryURL, repository string
	var dryRun, allowDirty bool
	var only, exclude []string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a package (or every workspace member) to a registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if registryURL == "" || repository == "" {
				return fmt.Errorf("--registry and --repository are required")
			}
			if !allowDirty && workingTreeDirty() {
				return fmt.Errorf("working tree has uncommitted changes; commit or pass --allow-dirty")
			}

			root, m, err := loadProjectManifest()
			if err != nil {
				return err
			}

			store := credentialsStore()
			client, err := registryclient.NewFromCredentials(registryURL, store)
			if err != nil {
				return err
			}

			if m.IsWorkspace() {
				return publishWorkspace(cmd, root, m, client, registryURL, repository, only, exclude, dryRun)
			}
			return publishSingle(cmd, root, m, client, repository, dryRun)
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", "", "registry base URL")
	cmd.Flags().StringVar(&repository, "repository", "", "repository within the registry")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "bundle and validate without uploading")
	cmd.Flags().BoolVar(&allowDirty, "allow-dirty", false, "publish even if the working tree has uncommitted changes")
	cmd.Flags().StringSliceVar(&only, "only", nil, "only publish these workspace members")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "skip these workspace members")
	return cmd
}

func publishSingle(cmd *cobra.Command, root string, m *manifest.Manifest, client *registryclient.Client, repository string, dryRun bool) error {
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
		logger.Info("publish (dry run)", "package", p.Name(), "version", m.Package.Version, "digest", dig.String())
		return nil
	}

	ctx := cmd.Context()
	if err := client.Publish(ctx, repository, p.Name(), m.Package.Version, blob, dig); err != nil {
		return err
	}

	logger.Info("published", "package", p.Name(), "version", m.Package.Version, "digest", dig.String())
	return nil
}

func publishWorkspace(cmd *cobra.Command, root string, m *manifest.Manifest, client *registryclient.Client, registryURL, repository string, only, exclude []string, dryRun bool) error {
	members, err := workspace.LoadMembers(root, m.Workspace)
	if err != nil {
		return err
	}

	ordered, err := workspace.PublishOrder(members)
	if err != nil {
		return err
	}
	ordered = workspace.Filter(ordered, only, exclude)

	ctx := cmd.Context()
	for _, member := range ordered {
		if err := member.Manifest.ValidateForPublish(); err != nil {
			return fmt.Errorf("member %s: %w", member.ID(), err)
		}

		p, err := pack.Load(member.Dir)
		if err != nil {
			return err
		}

		blob, dig, err := archive.Bundle(p)
		if err != nil {
			return err
		}

		if dryRun {
			logger.Info("publish (dry run)", "package", p.Name(), "version", member.Manifest.Package.Version, "digest", dig.String())
		} else {
			if err := client.Publish(ctx, repository, p.Name(), member.Manifest.Package.Version, blob, dig); err != nil {
				return err
			}
			logger.Info("published", "package", p.Name(), "version", member.Manifest.Package.Version, "digest", dig.String())
		}

		before := make(map[string][]byte, len(ordered))
		for _, other := range ordered {
			if b, err := other.Manifest.Marshal(); err == nil {
				before[other.ID()] = b
			}
		}

		workspace.RewriteLocalPathDependency(ordered, member.ID(), registryURL, repository, member.Manifest.Package.Version)

		for _, other := range ordered {
			if other.ID() == member.ID() {
				continue
			}
			after, err := other.Manifest.Marshal()
			if err != nil {
				continue
			}
			diff, err := diffutil.Unified(manifest.Filename, manifest.Filename, string(before[other.ID()]), string(after))
			if err == nil && strings.TrimSpace(diff) != "" {
				fmt.Fprint(cmd.OutOrStdout(), diff)
			}
		}
	}

	return nil
}

// workingTreeDirty shells out to git to approximate the VCS dirty-state
// check spec.md leaves as an external yes/no input; a repository with no
// git history (or no git binary available) is treated as clean.
func workingTreeDirty() bool {
	out, err := exec.Command("git", "status", "--porcelain").Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) > 0
}
