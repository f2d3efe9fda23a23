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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buffrs-dev/buffrs/internal/credentials"
	"github.com/buffrs-dev/buffrs/internal/lockfile"
	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/registryclient"
	"github.com/buffrs-dev/buffrs/internal/resolver"
	"github.com/buffrs-dev/buffrs/internal/secureio"
	"github.com/buffrs-dev/buffrs/internal/workspace"
)

// writeArchive writes a bundled package archive to an absolute path.
func writeArchive(path string, blob []byte) error {
	return secureio.WriteFile(path, blob, 0o644)
}

func classify(err error) exitCode {
	switch {
	case errors.As(err, new(manifest.ErrEditionMissing)),
		errors.As(err, new(manifest.ErrEditionUnsupported)),
		errors.As(err, new(manifest.ErrMalformed)),
		errors.As(err, new(manifest.ErrLibraryHasDependencies)),
		errors.As(err, new(manifest.ErrDependencySourceAmbiguous)),
		errors.As(err, new(manifest.ErrImplNotPublishable)),
		errors.As(err, new(manifest.ErrAPIDependsOnAPI)),
		errors.As(err, new(manifest.ErrInvalidPackageID)),
		errors.As(err, new(manifest.ErrWorkspaceAndPackage)):
		return exitManifestError
	case errors.As(err, new(resolver.ErrNoCandidateSatisfies)),
		errors.As(err, new(resolver.ErrVersionConflict)),
		errors.As(err, new(resolver.ErrLocalVersionMismatch)),
		errors.As(err, new(lockfile.ErrStale)),
		errors.As(err, new(lockfile.ErrDigestMismatch)):
		return exitResolveError
	case errors.As(err, new(registryclient.ErrNotFound)),
		errors.As(err, new(registryclient.ErrAuthRequired)),
		errors.As(err, new(registryclient.ErrAuthRejected)),
		errors.As(err, new(registryclient.ErrConflict)),
		errors.As(err, new(registryclient.ErrDigestMismatch)),
		errors.As(err, new(registryclient.ErrTransport)):
		return exitRegistryError
	case errors.As(err, new(workspace.ErrNotPackageCommand)),
		errors.As(err, new(workspace.ErrWorkspaceCycle)):
		return exitWorkspaceError
	default:
		return exitGeneric
	}
}

// findProjectRoot walks upward from the working directory looking for
// Proto.toml, the way a version control tool finds its repository root.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, manifest.Filename)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory", manifest.Filename, dir)
		}
		dir = parent
	}
}

func loadProjectManifest() (root string, m *manifest.Manifest, err error) {
	root, err = findProjectRoot()
	if err != nil {
		return "", nil, err
	}
	m, err = manifest.Load(filepath.Join(root, manifest.Filename))
	if err != nil {
		return "", nil, err
	}
	return root, m, nil
}

// buffrsHome resolves buffrs's per-user state directory: $BUFFRS_HOME if
// set, else $HOME/.buffrs. credentials.toml and the download cache both
// live under it.
func buffrsHome() (string, error) {
	if h := os.Getenv("BUFFRS_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".buffrs"), nil
}

func credentialsStore() *credentials.Store {
	dir, err := buffrsHome()
	if err != nil {
		dir = "."
	}
	os.MkdirAll(dir, 0o700)
	return credentials.Open(filepath.Join(dir, credentials.Filename))
}

// guardSinglePackage enforces the restricted-command gate at a
// workspace root before a command that only makes sense against one
// package proceeds.
func guardSinglePackage(m *manifest.Manifest, command string) error {
	return workspace.GuardCommand(m, command)
}
