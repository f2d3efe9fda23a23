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

// Package lockfile reads and writes Proto.lock: the pinned, reproducible
// record of every resolved dependency's exact version and content
// digest. Entries are always written in ascending (PackageId, Version)
// order - never map iteration order - so two resolutions of an
// unchanged dependency set produce a byte-identical file.
package lockfile

import (
	"fmt"
	"sort"

	digest "github.com/opencontainers/go-digest"
	"github.com/pelletier/go-toml/v2"

	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/resolver"
	"github.com/buffrs-dev/buffrs/internal/secureio"
)

// Filename is the conventional name of the lockfile.
const Filename = "Proto.lock"

// Entry is one pinned dependency.
type Entry struct {
	PackageID  string        `toml:"package"`
	Version    string        `toml:"version"`
	Registry   string        `toml:"registry,omitempty"`
	Repository string        `toml:"repository,omitempty"`
	Digest     digest.Digest `toml:"digest,omitempty"`
	Path       string        `toml:"path,omitempty"`
}

// Lockfile is the parsed form of Proto.lock.
type Lockfile struct {
	Version  int     `toml:"version"`
	Packages []Entry `toml:"package"`
}

// CurrentVersion is the lockfile schema version this build writes.
const CurrentVersion = 1

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PackageID != entries[j].PackageID {
			return entries[i].PackageID < entries[j].PackageID
		}
		return entries[i].Version < entries[j].Version
	})
}

// Load reads and parses the lockfile at path. A missing file is not an
// error: it returns an empty Lockfile, matching a project that has never
// been installed.
func Load(path string) (*Lockfile, error) {
	data, err := secureio.ReadFile(path)
	if err != nil {
		return &Lockfile{Version: CurrentVersion}, nil
	}
	var lf Lockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse lockfile: %w", err)
	}
	sortEntries(lf.Packages)
	return &lf, nil
}

// Save serializes lf to path in canonical order.
func Save(path string, lf *Lockfile) error {
	sortEntries(lf.Packages)
	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshal lockfile: %w", err)
	}
	if err := secureio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write lockfile: %w", err)
	}
	return nil
}

// FromSelections builds a canonically ordered Lockfile from resolver
// output plus the digest computed for each downloaded archive. Local
// path selections are omitted entirely: their paths are not portable
// across checkouts, so nothing is written for them.
func FromSelections(selections []resolver.Selection, digests map[string]digest.Digest) *Lockfile {
	entries := make([]Entry, 0, len(selections))
	for _, s := range selections {
		src, ok := s.Source.(manifest.RegistrySource)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			PackageID:  s.PackageID,
			Version:    s.Version.String(),
			Registry:   src.URL,
			Repository: src.Repository,
			Digest:     digests[s.PackageID],
		})
	}
	sortEntries(entries)
	return &Lockfile{Version: CurrentVersion, Packages: entries}
}

// ErrStale is returned when reconciling the lockfile against a freshly
// resolved selection set finds a discrepancy: a package present in one
// but not the other, or a different version for the same package.
type ErrStale struct {
	PackageID string
	Reason    string
}

func (e ErrStale) Error() string {
	return fmt.Sprintf("lockfile is stale for %q: %s", e.PackageID, e.Reason)
}

// ErrDigestMismatch is returned when Verify finds a downloaded archive's
// digest does not match the digest pinned in the lockfile.
type ErrDigestMismatch struct {
	PackageID string
	Expected  digest.Digest
	Actual    digest.Digest
}

func (e ErrDigestMismatch) Error() string {
	return fmt.Sprintf("digest mismatch for %q: lockfile has %s, archive has %s", e.PackageID, e.Expected, e.Actual)
}

// Reconcile compares lf against a freshly computed set of entries and
// returns ErrStale for the first discrepancy found, in canonical order.
// An empty diff means the existing lockfile already reflects the
// manifest's current dependency set.
func Reconcile(lf *Lockfile, fresh []Entry) error {
	sortEntries(fresh)
	existing := make(map[string]Entry, len(lf.Packages))
	for _, e := range lf.Packages {
		existing[e.PackageID] = e
	}

	for _, want := range fresh {
		got, ok := existing[want.PackageID]
		if !ok {
			return ErrStale{PackageID: want.PackageID, Reason: "missing from lockfile"}
		}
		if got.Version != want.Version {
			return ErrStale{PackageID: want.PackageID, Reason: fmt.Sprintf("locked version %s, want %s", got.Version, want.Version)}
		}
		delete(existing, want.PackageID)
	}
	orphans := make([]string, 0, len(existing))
	for id := range existing {
		orphans = append(orphans, id)
	}
	sort.Strings(orphans)
	if len(orphans) > 0 {
		return ErrStale{PackageID: orphans[0], Reason: "present in lockfile but no longer a dependency"}
	}
	return nil
}

// Verify checks that blob's digest matches the entry pinned for
// packageID in lf.
func (lf *Lockfile) Verify(packageID string, blob []byte) error {
	for _, e := range lf.Packages {
		if e.PackageID != packageID {
			continue
		}
		if e.Digest == "" {
			return nil // local path dependency, nothing to verify
		}
		got := digest.FromBytes(blob)
		if got != e.Digest {
			return ErrDigestMismatch{PackageID: packageID, Expected: e.Digest, Actual: got}
		}
		return nil
	}
	return fmt.Errorf("lockfile has no entry for %q", packageID)
}

// PrintFiles is the auxiliary projection exposed by `buffrs lock
// print-files`: for each locked package, the download URL and digest an
// external tool (e.g. a build system wanting to pre-fetch archives
// without invoking buffrs itself) would need.
type PrintFiles struct {
	URL    string        `json:"url"`
	Digest digest.Digest `json:"digest"`
}

// PrintFilesFor builds the print-files projection, sorted by package id,
// skipping local path entries which have no registry URL.
func (lf *Lockfile) PrintFilesFor() []PrintFiles {
	sortEntries(lf.Packages)
	var out []PrintFiles
	for _, e := range lf.Packages {
		if e.Registry == "" {
			continue
		}
		url := fmt.Sprintf("%s/v1/%s/%s/%s", e.Registry, e.Repository, e.PackageID, e.Version)
		out = append(out, PrintFiles{URL: url, Digest: e.Digest})
	}
	return out
}
