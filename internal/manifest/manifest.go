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

// Package manifest parses, validates, and serializes Proto.toml documents.
//
// A manifest is either a bare consumer (no [package], just [dependencies]),
// a publishable package ([package] present), or a workspace root
// ([workspace] present). [package] and [workspace] are mutually exclusive.
package manifest

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/buffrs-dev/buffrs/internal/secureio"
	"github.com/buffrs-dev/buffrs/internal/version"
)

// Filename is the conventional name of a manifest file within a project.
const Filename = "Proto.toml"

var packageIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,127}$`)

// PackageID is a validated package identifier.
type PackageID string

// ParsePackageID validates and returns id as a PackageID.
func ParsePackageID(id string) (PackageID, error) {
	if !packageIDPattern.MatchString(id) {
		return "", ErrInvalidPackageID{ID: id}
	}
	return PackageID(id), nil
}

// PackageKind classifies how a package may depend on, and be depended on
// by, other packages.
type PackageKind int

const (
	// KindLibrary packages may declare zero dependencies.
	KindLibrary PackageKind = iota
	// KindAPI packages may depend only on Library packages. Neither Validate
	// nor ValidateForPublish checks the kinds of an Api package's dependencies.
	KindAPI
	// KindImpl packages may depend on Library or Api packages and are never published.
	KindImpl
)

func (k PackageKind) String() string {
	switch k {
	case KindLibrary:
		return "lib"
	case KindAPI:
		return "api"
	case KindImpl:
		return "impl"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k PackageKind) MarshalText() ([]byte, error) {
	if k != KindLibrary && k != KindAPI && k != KindImpl {
		return nil, fmt.Errorf("invalid package kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PackageKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "lib":
		*k = KindLibrary
	case "api":
		*k = KindAPI
	case "impl":
		*k = KindImpl
	default:
		return fmt.Errorf("invalid package kind %q", text)
	}
	return nil
}

// PackageSection is the [package] table of a manifest.
type PackageSection struct {
	Description *string     `toml:"description,omitempty"`
	Name        PackageID   `toml:"name"`
	Version     string      `toml:"version"`
	Kind        PackageKind `toml:"type"`
}

// WorkspaceSection is the [workspace] table of a manifest.
type WorkspaceSection struct {
	// Members are ordered relative paths to member directories. Order is
	// preserved verbatim from the manifest; it has no semantic meaning
	// until the workspace orchestrator computes a topological order.
	Members []string `toml:"members"`
}

// Dependency is one entry of the [dependencies] table. Exactly one of the
// two shapes below must be populated: {Version, Registry, Repository} or
// {Path}. See Resolve for the validated, discriminated form.
type Dependency struct {
	Version    string `toml:"version,omitempty"`
	Registry   string `toml:"registry,omitempty"`
	Repository string `toml:"repository,omitempty"`
	Path       string `toml:"path,omitempty"`
}

// DependencySource is the discriminated, validated form of a Dependency:
// either a RegistrySource or a LocalPathSource.
type DependencySource interface {
	isDependencySource()
}

// RegistrySource fetches a dependency from a remote registry.
type RegistrySource struct {
	URL        string
	Repository string
	Constraint string
}

func (RegistrySource) isDependencySource() {}

// LocalPathSource reads a dependency from a filesystem path, resolved
// relative to the manifest declaring it. It carries no version until the
// graph builder loads the target manifest.
type LocalPathSource struct {
	Path string
}

func (LocalPathSource) isDependencySource() {}

// Resolve validates d and returns its discriminated source form.
func (d Dependency) Resolve(id string) (DependencySource, error) {
	hasPath := d.Path != ""
	hasRegistryFields := d.Version != "" || d.Registry != "" || d.Repository != ""

	switch {
	case hasPath && hasRegistryFields:
		return nil, ErrDependencySourceAmbiguous{DependencyID: id, Reason: "both path and registry fields are set"}
	case hasPath:
		return LocalPathSource{Path: d.Path}, nil
	case d.Version != "" && d.Registry != "" && d.Repository != "":
		return RegistrySource{URL: d.Registry, Repository: d.Repository, Constraint: d.Version}, nil
	case hasRegistryFields:
		return nil, ErrDependencySourceAmbiguous{DependencyID: id, Reason: "registry dependencies require version, registry, and repository"}
	default:
		return nil, ErrDependencySourceAmbiguous{DependencyID: id, Reason: "neither path nor registry fields are set"}
	}
}

// Manifest is the parsed form of a Proto.toml document.
type Manifest struct {
	Package      *PackageSection       `toml:"package,omitempty"`
	Workspace    *WorkspaceSection     `toml:"workspace,omitempty"`
	Dependencies map[string]Dependency `toml:"dependencies,omitempty"`
	Edition      string                `toml:"edition"`
}

// IsWorkspace reports whether m is a workspace root manifest.
func (m *Manifest) IsWorkspace() bool { return m.Workspace != nil }

// IsPublishable reports whether m declares a [package] section.
func (m *Manifest) IsPublishable() bool { return m.Package != nil }

// SortedDependencyIDs returns the dependency map's keys in ascending
// order, so callers never iterate the map directly (map iteration order
// is unspecified and resolution must be deterministic, per §9).
func (m *Manifest) SortedDependencyIDs() []string {
	ids := make([]string, 0, len(m.Dependencies))
	for id := range m.Dependencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parse decodes a Proto.toml document and validates its structural
// invariants (edition gate, kind/dependency coherence, id grammar).
// It does not perform the publish-only ImplNotPublishable check, which
// ValidateForPublish adds. The kinds of dependencies (ApiDependsOnApi)
// are checked neither here nor by ValidateForPublish.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, ErrMalformed{Reason: "toml decode failed", Cause: err}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the structural invariants that do not require
// consulting the dependency graph.
func (m *Manifest) Validate() error {
	if m.Workspace != nil && m.Package != nil {
		return ErrWorkspaceAndPackage{}
	}

	if m.Package != nil {
		if m.Edition == "" {
			return ErrEditionMissing{}
		}
		if !version.EditionSupported(m.Edition) {
			return ErrEditionUnsupported{Found: m.Edition, Supported: version.SupportedEditions}
		}
		if _, err := ParsePackageID(string(m.Package.Name)); err != nil {
			return err
		}
	}

	for id, dep := range m.Dependencies {
		if _, err := ParsePackageID(id); err != nil {
			return err
		}
		if _, err := dep.Resolve(id); err != nil {
			return err
		}
	}

	if m.Package != nil && m.Package.Kind == KindLibrary && len(m.Dependencies) > 0 {
		return ErrLibraryHasDependencies{PackageID: string(m.Package.Name)}
	}

	return nil
}

// ValidateForPublish additionally enforces the publish-only rule that an
// Impl package can never be published. It does not look at the kinds of
// m's dependencies, so an Api package that depends on another Api
// package passes.
func (m *Manifest) ValidateForPublish() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Package == nil {
		return fmt.Errorf("manifest has no [package] section to publish")
	}
	if m.Package.Kind == KindImpl {
		return ErrImplNotPublishable{PackageID: string(m.Package.Name)}
	}
	return nil
}

// Marshal serializes m back to its canonical TOML form. parse(serialize(m))
// must equal m on the logical model (the round-trip law).
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := secureio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Save serializes and writes m to path.
func Save(path string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := secureio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
