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
	"context"
	"fmt"
	"path/filepath"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/buffrs-dev/buffrs/internal/cache"
	"github.com/buffrs-dev/buffrs/internal/credentials"
	"github.com/buffrs-dev/buffrs/internal/graph"
	"github.com/buffrs-dev/buffrs/internal/installer"
	"github.com/buffrs-dev/buffrs/internal/lockfile"
	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/registryclient"
	"github.com/buffrs-dev/buffrs/internal/resolver"
	"github.com/buffrs-dev/buffrs/internal/semver"
	"github.com/buffrs-dev/buffrs/internal/workspace"
)

func cacheDir() (string, error) {
	home, err := buffrsHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "cache"), nil
}

// resolvedGraph bundles the dependency graph built from a single
// package's manifest (recursively, through any local path dependencies)
// alongside the registry clients needed to query candidate versions and
// repository coordinates for each node, and the local state needed to
// reconcile local path overrides and vendor them from disk.
type resolvedGraph struct {
	graph         *graph.Graph
	clients       map[string]*registryclient.Client
	repoByID      map[string]string
	localVersions map[string]semver.Version
	localDirs     map[string]string
}

// buildGraph walks the manifest's dependencies into a dependency graph,
// constructing one registry client per distinct registry URL referenced.
// A LocalPathSource dependency is never resolved against a registry: its
// own manifest is loaded straight off disk (no network), its declared
// version recorded for the resolver to reconcile against requirements
// placed on it elsewhere in the graph, and its own dependencies are in
// turn enqueued - buffrs does not fetch transitive *registry* manifests
// ahead of resolution, but a local path sits on the caller's own
// filesystem and costs nothing to walk fully.
func buildGraph(ctx context.Context, root string, m *manifest.Manifest, store *credentials.Store) (*resolvedGraph, error) {
	g := graph.New()
	rootID := "workspace-root"
	if m.Package != nil {
		rootID = string(m.Package.Name)
	}
	rootNode := g.Root(rootID)

	clients := make(map[string]*registryclient.Client)
	clientsByURL := make(map[string]*registryclient.Client)
	repoByID := make(map[string]string)
	localVersions := make(map[string]semver.Version)
	localDirs := make(map[string]string)
	visited := make(map[string]bool)

	var enqueue func(parent graph.NodeID, dir string, cm *manifest.Manifest) error
	enqueue = func(parent graph.NodeID, dir string, cm *manifest.Manifest) error {
		for _, id := range cm.SortedDependencyIDs() {
			dep := cm.Dependencies[id]
			src, err := dep.Resolve(id)
			if err != nil {
				return err
			}

			req := semver.VersionRequirement{}
			if dep.Version != "" {
				req, err = semver.ParseRequirement(dep.Version)
				if err != nil {
					return fmt.Errorf("parse requirement for %s: %w", id, err)
				}
			}

			if _, err := g.AddEdge(parent, id, src, req); err != nil {
				return err
			}

			switch concrete := src.(type) {
			case manifest.RegistrySource:
				repoByID[id] = concrete.Repository
				client, ok := clientsByURL[concrete.URL]
				if !ok {
					client, err = registryclient.NewFromCredentials(concrete.URL, store)
					if err != nil {
						return err
					}
					clientsByURL[concrete.URL] = client
				}
				clients[id] = client

			case manifest.LocalPathSource:
				childDir := filepath.Join(dir, concrete.Path)
				absDir, err := filepath.Abs(childDir)
				if err != nil {
					return fmt.Errorf("resolve local path for %s: %w", id, err)
				}
				if visited[absDir] {
					continue
				}
				visited[absDir] = true

				childManifest, err := manifest.Load(filepath.Join(absDir, manifest.Filename))
				if err != nil {
					return fmt.Errorf("load local dependency %s: %w", id, err)
				}
				localDirs[id] = absDir
				if childManifest.Package != nil && childManifest.Package.Version != "" {
					v, err := semver.ParseVersion(childManifest.Package.Version)
					if err != nil {
						return fmt.Errorf("parse version for local dependency %s: %w", id, err)
					}
					localVersions[id] = v
				}

				childNode, _ := g.NodeByPackageID(id)
				if err := enqueue(childNode, absDir, childManifest); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := enqueue(rootNode, root, m); err != nil {
		return nil, err
	}

	return &resolvedGraph{
		graph:         g,
		clients:       clients,
		repoByID:      repoByID,
		localVersions: localVersions,
		localDirs:     localDirs,
	}, nil
}

// mapLocalVersions adapts a plain map into resolver.LocalVersions.
type mapLocalVersions map[string]semver.Version

func (m mapLocalVersions) LocalVersion(id string) (semver.Version, bool) {
	v, ok := m[id]
	return v, ok
}

// registryCandidateSource adapts registryclient into resolver.CandidateSource,
// listing and parsing every published version of a package on demand.
type registryCandidateSource struct {
	ctx      context.Context
	clients  map[string]*registryclient.Client
	repoByID map[string]string
}

func (r *registryCandidateSource) Candidates(id string) ([]semver.Version, error) {
	client := r.clients[id]
	raw, err := client.Versions(r.ctx, r.repoByID[id], id)
	if err != nil {
		return nil, err
	}
	versions := make([]semver.Version, 0, len(raw))
	for _, v := range raw {
		parsed, err := semver.ParseVersion(v)
		if err != nil {
			continue
		}
		versions = append(versions, parsed)
	}
	return versions, nil
}

// fanoutDownloader fetches a lockfile entry's archive from the registry
// client assigned to its package.
type fanoutDownloader struct {
	clients map[string]*registryclient.Client
}

func (f *fanoutDownloader) Download(ctx context.Context, e lockfile.Entry) ([]byte, error) {
	client := f.clients[e.PackageID]
	if client == nil {
		return nil, fmt.Errorf("no registry client configured for %s", e.PackageID)
	}
	result, err := client.Download(ctx, e.Repository, e.PackageID, e.Version)
	if err != nil {
		return nil, err
	}
	return result.Blob, nil
}

func newInstallCmd() *cobra.Command {
	var only, exclude []string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve dependencies and populate proto/vendor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, m, err := loadProjectManifest()
			if err != nil {
				return err
			}

			if m.IsWorkspace() {
				members, err := workspace.LoadMembers(root, m.Workspace)
				if err != nil {
					return err
				}
				members = workspace.Filter(members, only, exclude)
				for _, member := range members {
					if err := installPackage(ctx, member.Dir, member.Manifest); err != nil {
						return fmt.Errorf("member %s: %w", member.ID(), err)
					}
				}
				return nil
			}

			return installPackage(ctx, root, m)
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "at a workspace root, only install these members")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "at a workspace root, skip these members")
	return cmd
}

// installPackage runs the full resolve/download/lock/vendor pipeline for
// a single package rooted at dir, independent of whether it was reached
// directly or as one member of a workspace install.
func installPackage(ctx context.Context, dir string, m *manifest.Manifest) error {
	store := credentialsStore()
	rg, err := buildGraph(ctx, dir, m, store)
	if err != nil {
		return err
	}

	selections, err := resolver.Resolve(rg.graph, &registryCandidateSource{ctx: ctx, clients: rg.clients, repoByID: rg.repoByID}, mapLocalVersions(rg.localVersions))
	if err != nil {
		return err
	}

	dl := &fanoutDownloader{clients: rg.clients}
	lf, err := resolveAndDownload(ctx, selections, dl)
	if err != nil {
		return err
	}

	lockPath := filepath.Join(dir, lockfile.Filename)
	if err := lockfile.Save(lockPath, lf); err != nil {
		return err
	}

	cDir, err := cacheDir()
	if err != nil {
		return err
	}
	cacheStore, err := cache.Open(cDir)
	if err != nil {
		return err
	}

	var locals []installer.LocalSource
	for _, s := range selections {
		if _, ok := s.Source.(manifest.LocalPathSource); !ok {
			continue
		}
		locals = append(locals, installer.LocalSource{PackageID: s.PackageID, Dir: rg.localDirs[s.PackageID]})
	}

	protoRoot := filepath.Join(dir, "proto")
	if err := installer.Install(ctx, protoRoot, lf, locals, cacheStore, dl); err != nil {
		return err
	}

	logger.Info("installed dependencies", "count", len(lf.Packages)+len(locals))
	return nil
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the vendored dependency tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _, err := loadProjectManifest()
			if err != nil {
				return err
			}
			if err := installer.Uninstall(filepath.Join(root, "proto")); err != nil {
				return err
			}
			logger.Info("removed vendored dependencies")
			return nil
		},
	}
}

// resolveAndDownload fetches every registry-sourced selection's archive
// concurrently (bounded fan-out, matching the way a package manager
// overlaps network-bound work) and assembles the resulting lockfile from
// the digests it observes.
func resolveAndDownload(ctx context.Context, selections []resolver.Selection, dl *fanoutDownloader) (*lockfile.Lockfile, error) {
	digests := make(map[string]digest.Digest)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, s := range selections {
		src, ok := s.Source.(manifest.RegistrySource)
		if !ok {
			continue
		}
		s := s
		src := src
		g.Go(func() error {
			entry := lockfile.Entry{PackageID: s.PackageID, Version: s.Version.String(), Registry: src.URL, Repository: src.Repository}
			blob, err := dl.Download(gctx, entry)
			if err != nil {
				return fmt.Errorf("download %s: %w", s.PackageID, err)
			}
			dig := digest.FromBytes(blob)
			mu.Lock()
			digests[s.PackageID] = dig
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lockfile.FromSelections(selections, digests), nil
}
