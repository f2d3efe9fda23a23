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

// Package resolver picks one version per PackageId from a dependency
// graph's merged requirements. It does not call registryclient itself -
// the candidate versions for each registry-sourced node come from a
// caller-supplied CandidateSource, which may query the registry on demand.
package resolver

import (
	"fmt"
	"sort"

	"github.com/buffrs-dev/buffrs/internal/graph"
	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/semver"
)

// Selection is the resolver's decision for one node.
type Selection struct {
	PackageID string
	Source    manifest.DependencySource
	Version   semver.Version // for a LocalPathSource, the local manifest's version, or zero if unknown
}

// ErrNoCandidateSatisfies is returned when no available version of a
// package satisfies the intersected requirement placed on it.
type ErrNoCandidateSatisfies struct {
	PackageID   string
	Requirement string
	Candidates  []string
}

func (e ErrNoCandidateSatisfies) Error() string {
	return fmt.Sprintf("no version of %q satisfies %s (available: %v)", e.PackageID, e.Requirement, e.Candidates)
}

// ErrVersionConflict is returned when two or more requesters place
// mutually unsatisfiable requirements on the same package, e.g. one
// parent requires "=1.0.0" and another requires "=2.0.0".
type ErrVersionConflict struct {
	PackageID string
	Wanted    []string
}

func (e ErrVersionConflict) Error() string {
	return fmt.Sprintf("conflicting version requirements for %q: %v", e.PackageID, e.Wanted)
}

// ErrLocalVersionMismatch is returned when a local path override's own
// manifest version cannot satisfy a requirement placed on it by another
// dependency in the graph.
type ErrLocalVersionMismatch struct {
	PackageID    string
	LocalVersion string
	Requirement  string
}

func (e ErrLocalVersionMismatch) Error() string {
	return fmt.Sprintf("local path dependency %q has version %s, which does not satisfy %s", e.PackageID, e.LocalVersion, e.Requirement)
}

// CandidateSource supplies the available versions for a registry node,
// keyed by PackageId. Resolve calls it once per registry node; whether
// it answers from memory or queries the registry is up to the caller.
type CandidateSource interface {
	Candidates(packageID string) ([]semver.Version, error)
}

// LocalVersions supplies the manifest-declared version for a local path
// node, keyed by PackageId.
type LocalVersions interface {
	LocalVersion(packageID string) (semver.Version, bool)
}

// Resolve selects one version for every non-root node in g.
//
// Selection policy per node: intersect every incoming edge's
// requirement, then pick the highest available candidate that satisfies
// it. A candidate is only eligible as a pre-release if some requirement
// on that node explicitly names a pre-release (AllowsPrerelease).
// Results are returned sorted by PackageId for deterministic callers
// (lockfile writing, display).
func Resolve(g *graph.Graph, candidates CandidateSource, local LocalVersions) ([]Selection, error) {
	var selections []Selection

	for _, node := range g.Nodes() {
		if node.Source == nil {
			continue // root node
		}

		edges := g.RequirementsFor(nodeIDFor(g, node.PackageID))
		merged, err := mergeRequirements(edges)
		if err != nil {
			return nil, fmt.Errorf("merge requirements for %s: %w", node.PackageID, err)
		}
		if wanted, conflict := conflictingExactRequirements(edges, merged); conflict {
			return nil, ErrVersionConflict{PackageID: node.PackageID, Wanted: wanted}
		}

		switch src := node.Source.(type) {
		case manifest.LocalPathSource:
			v, ok := local.LocalVersion(node.PackageID)
			if ok && !merged.IsZero() && !merged.Satisfies(v) {
				return nil, ErrLocalVersionMismatch{PackageID: node.PackageID, LocalVersion: v.String(), Requirement: merged.String()}
			}
			selections = append(selections, Selection{PackageID: node.PackageID, Source: src, Version: v})

		case manifest.RegistrySource:
			avail, err := candidates.Candidates(node.PackageID)
			if err != nil {
				return nil, fmt.Errorf("fetch candidates for %s: %w", node.PackageID, err)
			}
			chosen, err := selectHighest(avail, merged)
			if err != nil {
				names := make([]string, len(avail))
				for i, v := range avail {
					names[i] = v.String()
				}
				return nil, ErrNoCandidateSatisfies{PackageID: node.PackageID, Requirement: merged.String(), Candidates: names}
			}
			selections = append(selections, Selection{PackageID: node.PackageID, Source: src, Version: chosen})

		default:
			return nil, fmt.Errorf("unknown dependency source type %T for %s", src, node.PackageID)
		}
	}

	sort.Slice(selections, func(i, j int) bool { return selections[i].PackageID < selections[j].PackageID })
	return selections, nil
}

func nodeIDFor(g *graph.Graph, id string) graph.NodeID {
	nid, _ := g.NodeByPackageID(id)
	return nid
}

// conflictingExactRequirements reports whether some edge pins a single
// exact version that the fully merged requirement across all edges
// rejects - the signature of two or more requesters wanting different
// exact versions of the same package, which no selection can satisfy.
func conflictingExactRequirements(edges []graph.Edge, merged semver.VersionRequirement) ([]string, bool) {
	for _, e := range edges {
		v, ok := e.Requirement.ExactVersion()
		if !ok {
			continue
		}
		if !merged.Satisfies(v) {
			wanted := make([]string, len(edges))
			for i, e2 := range edges {
				wanted[i] = e2.Requirement.String()
			}
			return wanted, true
		}
	}
	return nil, false
}

func mergeRequirements(edges []graph.Edge) (semver.VersionRequirement, error) {
	var merged semver.VersionRequirement
	for _, e := range edges {
		var err error
		merged, err = semver.Intersect(merged, e.Requirement)
		if err != nil {
			return semver.VersionRequirement{}, err
		}
	}
	return merged, nil
}

// selectHighest returns the highest version in avail that satisfies req,
// respecting the pre-release eligibility rule.
func selectHighest(avail []semver.Version, req semver.VersionRequirement) (semver.Version, error) {
	sorted := make([]semver.Version, len(avail))
	copy(sorted, avail)
	semver.SortDescending(sorted)

	allowPre := req.AllowsPrerelease()
	for _, v := range sorted {
		if v.IsPrerelease() && !allowPre {
			continue
		}
		if req.IsZero() || req.Satisfies(v) {
			return v, nil
		}
	}
	return semver.Version{}, fmt.Errorf("no candidate satisfies requirement")
}
