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

// Package workspace orchestrates multi-package repositories: discovering
// [workspace].members, gating commands that only make sense against a
// single package, and publishing every member in dependency order.
package workspace

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/buffrs-dev/buffrs/internal/manifest"
)

// Member is one loaded workspace member.
type Member struct {
	Dir      string
	Manifest *manifest.Manifest
}

// ID returns the member's package identifier, or "" if it declares none.
func (m Member) ID() string {
	if m.Manifest.Package == nil {
		return ""
	}
	return string(m.Manifest.Package.Name)
}

// ErrNotPackageCommand is returned when a single-package command (add,
// remove, package, lint, list) is invoked against a workspace root
// manifest instead of a package manifest.
type ErrNotPackageCommand struct {
	Command string
}

func (e ErrNotPackageCommand) Error() string {
	return fmt.Sprintf("%q is not valid at a workspace root; run it from inside a member directory", e.Command)
}

// restrictedCommands lists every command that requires a [package]
// manifest and is rejected at a [workspace] root.
var restrictedCommands = map[string]bool{
	"add":     true,
	"remove":  true,
	"package": true,
	"lint":    true,
	"list":    true,
}

// GuardCommand returns ErrNotPackageCommand if command is restricted and
// m is a workspace root.
func GuardCommand(m *manifest.Manifest, command string) error {
	if m.IsWorkspace() && restrictedCommands[command] {
		return ErrNotPackageCommand{Command: command}
	}
	return nil
}

// LoadMembers loads every manifest named in root's [workspace].members,
// in the order they are declared.
func LoadMembers(rootDir string, ws *manifest.WorkspaceSection) ([]Member, error) {
	members := make([]Member, 0, len(ws.Members))
	for _, rel := range ws.Members {
		dir := filepath.Join(rootDir, rel)
		m, err := manifest.Load(filepath.Join(dir, manifest.Filename))
		if err != nil {
			return nil, fmt.Errorf("load workspace member %s: %w", rel, err)
		}
		members = append(members, Member{Dir: dir, Manifest: m})
	}
	return members, nil
}

// ErrWorkspaceCycle is returned when the publish dependency graph among
// workspace members is not a DAG.
type ErrWorkspaceCycle struct {
	Remaining []string
}

func (e ErrWorkspaceCycle) Error() string {
	return fmt.Sprintf("workspace members form a publish cycle: %v", e.Remaining)
}

// PublishOrder computes a topological order over members by their
// local-path dependency edges (Kahn's algorithm), so a member is never
// published before a sibling it depends on.
func PublishOrder(members []Member) ([]Member, error) {
	byID := make(map[string]Member, len(members))
	for _, m := range members {
		if id := m.ID(); id != "" {
			byID[id] = m
		}
	}

	indegree := make(map[string]int, len(members))
	dependents := make(map[string][]string, len(members))
	for id := range byID {
		indegree[id] = 0
	}

	for _, m := range members {
		id := m.ID()
		for _, depID := range m.Manifest.SortedDependencyIDs() {
			dep := m.Manifest.Dependencies[depID]
			src, err := dep.Resolve(depID)
			if err != nil {
				return nil, err
			}
			if _, ok := src.(manifest.LocalPathSource); !ok {
				continue
			}
			if _, isMember := byID[depID]; !isMember {
				continue
			}
			dependents[depID] = append(dependents[depID], id)
			indegree[id]++
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		order = append(order, next)

		var freed []string
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
		sort.Strings(queue)
	}

	if len(order) != len(byID) {
		var remaining []string
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, ErrWorkspaceCycle{Remaining: remaining}
	}

	ordered := make([]Member, len(order))
	for i, id := range order {
		ordered[i] = byID[id]
	}
	return ordered, nil
}

// RewriteLocalPathDependency rewrites every dependency across members
// that points at publishedID via a local path into a registry
// dependency at publishedVersion, once publishedID has actually been
// published. Later members in the publish order then see a registry
// coordinate instead of a path that may no longer resolve once siblings
// are published independently.
func RewriteLocalPathDependency(members []Member, publishedID, registryURL, repository, publishedVersion string) {
	for _, m := range members {
		dep, ok := m.Manifest.Dependencies[publishedID]
		if !ok {
			continue
		}
		src, err := dep.Resolve(publishedID)
		if err != nil {
			continue
		}
		if _, isLocal := src.(manifest.LocalPathSource); !isLocal {
			continue
		}
		m.Manifest.Dependencies[publishedID] = manifest.Dependency{
			Version:    "=" + publishedVersion,
			Registry:   registryURL,
			Repository: repository,
		}
	}
}

// Filter narrows members to those named in only (if non-empty) and then
// removes those named in exclude, preserving relative order.
func Filter(members []Member, only, exclude []string) []Member {
	onlySet := toSet(only)
	excludeSet := toSet(exclude)

	var out []Member
	for _, m := range members {
		id := m.ID()
		if len(onlySet) > 0 && !onlySet[id] {
			continue
		}
		if excludeSet[id] {
			continue
		}
		out = append(out, m)
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
