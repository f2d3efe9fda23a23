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

// Package installer materializes a resolved, locked dependency set into
// proto/vendor/: one directory per package, rebuilt atomically so a
// reader never observes a half-populated vendor tree.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"

	"github.com/buffrs-dev/buffrs/internal/archive"
	"github.com/buffrs-dev/buffrs/internal/cache"
	"github.com/buffrs-dev/buffrs/internal/lockfile"
	"github.com/buffrs-dev/buffrs/internal/pack"
	"github.com/buffrs-dev/buffrs/internal/secureio"
)

// LocalSource is a resolved local-path dependency to vendor by copying
// its proto/ subtree directly from disk, bypassing the cache and the
// downloader entirely - it is never written to the lockfile.
type LocalSource struct {
	PackageID string
	Dir       string
}

// VendorDirName is the directory under proto/ that holds installed
// dependencies.
const VendorDirName = "vendor"

// Downloader fetches the archive pinned for one lockfile entry.
type Downloader interface {
	Download(ctx context.Context, entry lockfile.Entry) ([]byte, error)
}

// ErrVendorCollision is returned when two distinct locked packages would
// materialize to the same vendor subdirectory.
type ErrVendorCollision struct {
	PackageID string
}

func (e ErrVendorCollision) Error() string {
	return fmt.Sprintf("vendor collision: %q already has a vendor directory", e.PackageID)
}

// Install ensures the cache holds every registry-sourced entry's
// archive (downloading on a cache miss and verifying the lockfile's
// digest on the way in), copies every local-path selection's proto/
// subtree straight from disk, then rebuilds protoRoot/vendor from
// scratch via a staged directory swapped in with os.Rename.
func Install(ctx context.Context, protoRoot string, lf *lockfile.Lockfile, locals []LocalSource, store *cache.Store, dl Downloader) error {
	seen := make(map[string]bool, len(lf.Packages)+len(locals))
	for _, e := range lf.Packages {
		if seen[e.PackageID] {
			return ErrVendorCollision{PackageID: e.PackageID}
		}
		seen[e.PackageID] = true
	}
	for _, loc := range locals {
		if seen[loc.PackageID] {
			return ErrVendorCollision{PackageID: loc.PackageID}
		}
		seen[loc.PackageID] = true
	}

	stagingRoot, err := os.MkdirTemp(protoRoot, ".vendor-staging-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingRoot)

	for _, e := range lf.Packages {
		blob, err := ensureCached(ctx, e, store, dl)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", e.PackageID, err)
		}

		_, files, err := archive.Unbundle(blob)
		if err != nil {
			return fmt.Errorf("unbundle %s: %w", e.PackageID, err)
		}

		if err := writeVendorFiles(stagingRoot, e.PackageID, files); err != nil {
			return err
		}
	}

	for _, loc := range locals {
		p, err := pack.Load(loc.Dir)
		if err != nil {
			return fmt.Errorf("load local dependency %s: %w", loc.PackageID, err)
		}
		if err := writeVendorFiles(stagingRoot, loc.PackageID, p.Files); err != nil {
			return err
		}
	}

	vendorDir := filepath.Join(protoRoot, VendorDirName)
	backupDir := vendorDir + ".previous"
	os.RemoveAll(backupDir)

	if _, err := os.Stat(vendorDir); err == nil {
		if err := os.Rename(vendorDir, backupDir); err != nil {
			return fmt.Errorf("back up existing vendor tree: %w", err)
		}
	}
	if err := os.Rename(stagingRoot, vendorDir); err != nil {
		if _, statErr := os.Stat(backupDir); statErr == nil {
			os.Rename(backupDir, vendorDir)
		}
		return fmt.Errorf("swap in new vendor tree: %w", err)
	}
	os.RemoveAll(backupDir)

	return nil
}

// writeVendorFiles stages one package's files under stagingRoot/packageID.
func writeVendorFiles(stagingRoot, packageID string, files []pack.File) error {
	dest := filepath.Join(stagingRoot, packageID)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create vendor dir for %s: %w", packageID, err)
	}

	for _, f := range files {
		full, err := secureio.JoinEntryPath(dest, f.Path)
		if err != nil {
			return fmt.Errorf("vendor entry for %s: %w", packageID, err)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create vendor subdir for %s: %w", packageID, err)
		}
		if err := secureio.WriteFile(full, f.Contents, 0o644); err != nil {
			return fmt.Errorf("write vendor file for %s: %w", packageID, err)
		}
	}
	return nil
}

func ensureCached(ctx context.Context, e lockfile.Entry, store *cache.Store, dl Downloader) ([]byte, error) {
	dig := digest.Digest(e.Digest)
	if dig != "" && store.Has(dig) {
		return store.Get(dig)
	}

	blob, err := dl.Download(ctx, e)
	if err != nil {
		return nil, err
	}

	if dig != "" {
		if err := archive.VerifyDigest(blob, dig); err != nil {
			return nil, err
		}
		if err := store.Put(dig, blob); err != nil {
			return nil, err
		}
	}

	return blob, nil
}

// Uninstall removes the vendor tree entirely.
func Uninstall(protoRoot string) error {
	return os.RemoveAll(filepath.Join(protoRoot, VendorDirName))
}
