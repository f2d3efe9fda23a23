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

// Package graph builds the dependency graph a resolve pass walks: one
// node per distinct PackageId, edges carrying the intersected version
// requirement of every manifest that names it. Nodes live in a single
// slice (an arena) addressed by integer NodeID rather than pointers, so
// the graph can be built bottom-up without forward references and
// printed or walked without chasing pointers across allocations.
package graph

import (
	"fmt"
	"sort"

	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/semver"
)

// NodeID addresses a Node within a Graph's arena.
type NodeID int

// Node is one distinct dependency in the graph: a package identity and
// how it is reached (registry coordinates or a local path).
type Node struct {
	PackageID string
	Source    manifest.DependencySource
	Kind      manifest.PackageKind
	KindKnown bool
}

// Edge is a requirement one manifest places on another node, recorded so
// conflicting requirements from different requesters can be reported
// together.
type Edge struct {
	From        NodeID
	To          NodeID
	Requirement semver.VersionRequirement
}

// Graph is the arena of nodes plus the edges between them.
type Graph struct {
	nodes   []Node
	edges   []Edge
	byID    map[string]NodeID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{byID: make(map[string]NodeID)}
}

// Nodes returns every node in the graph, ordered by NodeID (insertion order).
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns every edge in the graph.
func (g *Graph) Edges() []Edge { return g.edges }

// NodeByPackageID returns the node for id and whether it exists.
func (g *Graph) NodeByPackageID(id string) (NodeID, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Node returns the node at id.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// ErrKindConflict is returned when the same package is discovered with
// two different declared kinds across the graph (e.g. reached once as a
// registry dependency whose manifest says "api" and once with a local
// path override whose manifest says "lib").
type ErrKindConflict struct {
	PackageID string
	First     manifest.PackageKind
	Second    manifest.PackageKind
}

func (e ErrKindConflict) Error() string {
	return fmt.Sprintf("package %q observed with conflicting kinds: %s and %s", e.PackageID, e.First, e.Second)
}

// ensureNode returns the NodeID for id, creating it if absent.
func (g *Graph) ensureNode(id string, source manifest.DependencySource) NodeID {
	if nid, ok := g.byID[id]; ok {
		return nid
	}
	nid := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{PackageID: id, Source: source})
	g.byID[id] = nid
	return nid
}

// SetKind records the declared kind of the package at id, merging with
// any prior observation. A mismatch is a graph-construction bug in the
// caller (two different manifests disagreeing about one package's
// identity), surfaced as ErrKindConflict rather than silently picking one.
func (g *Graph) SetKind(id NodeID, kind manifest.PackageKind) error {
	n := &g.nodes[id]
	if n.KindKnown && n.Kind != kind {
		return ErrKindConflict{PackageID: n.PackageID, First: n.Kind, Second: kind}
	}
	n.Kind = kind
	n.KindKnown = true
	return nil
}

// AddEdge records that from depends on the package named id with the
// given source and requirement, merging into an existing edge between
// the same pair by intersecting requirements (testable property: two
// requesters of the same dependency must both be satisfied).
func (g *Graph) AddEdge(from NodeID, id string, source manifest.DependencySource, req semver.VersionRequirement) (NodeID, error) {
	to := g.ensureNode(id, source)

	for i := range g.edges {
		if g.edges[i].From == from && g.edges[i].To == to {
			merged, err := semver.Intersect(g.edges[i].Requirement, req)
			if err != nil {
				return to, fmt.Errorf("intersect requirements on %s: %w", id, err)
			}
			g.edges[i].Requirement = merged
			return to, nil
		}
	}

	g.edges = append(g.edges, Edge{From: from, To: to, Requirement: req})
	return to, nil
}

// Root registers and returns the NodeID of the graph's root package
// (the manifest being resolved from).
func (g *Graph) Root(id string) NodeID {
	return g.ensureNode(id, nil)
}

// RequirementsFor returns every requirement placed on node to, sorted by
// the PackageId of the requesting node, for deterministic reporting.
func (g *Graph) RequirementsFor(to NodeID) []Edge {
	var matched []Edge
	for _, e := range g.edges {
		if e.To == to {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return g.nodes[matched[i].From].PackageID < g.nodes[matched[j].From].PackageID
	})
	return matched
}
