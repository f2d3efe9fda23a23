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

// Package semver wraps Masterminds/semver/v3 with the two domain types the
// rest of buffrs works with: a concrete Version and a VersionRequirement
// (a set of comparator predicates a Version either satisfies or does not).
//
// Unlike a multi-ecosystem updater that has to translate Terraform's
// "~> 5.0" or npm's "^1.2.3" into a common model, buffrs defines its own
// requirement grammar directly on top of semver/v3's native constraint
// syntax: "=", ">=", "<", ">", "<=", "~", "^", and comma-joined
// compounds such as ">=1.2.0,<2.0.0".
package semver

import (
	"fmt"
	"regexp"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is an immutable semantic version.
type Version struct {
	v *mm.Version
}

// ParseVersion parses a semantic version string.
func ParseVersion(s string) (Version, error) {
	v, err := mm.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("parse version %q: %w", s, err)
	}
	return Version{v: v}, nil
}

// MustParseVersion panics on an invalid version; for tests and constants.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// IsZero reports whether v is the zero Version (unset).
func (v Version) IsZero() bool { return v.v == nil }

// Major, Minor, Patch return the numeric components.
func (v Version) Major() uint64 { return v.v.Major() }
func (v Version) Minor() uint64 { return v.v.Minor() }
func (v Version) Patch() uint64 { return v.v.Patch() }

// Prerelease returns the pre-release component, or "" if none.
func (v Version) Prerelease() string { return v.v.Prerelease() }

// IsPrerelease reports whether v carries a pre-release component.
func (v Version) IsPrerelease() bool { return v.Prerelease() != "" }

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than other.
// Pre-release versions sort before their corresponding release per SemVer.
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// LessThan reports whether v sorts before other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// GreaterThan reports whether v sorts after other.
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }

// Equal reports whether v and other denote the same version.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// MarshalText implements encoding.TextMarshaler so Version can be embedded
// directly in TOML-tagged structs.
func (v Version) MarshalText() ([]byte, error) {
	if v.v == nil {
		return nil, fmt.Errorf("marshal zero version")
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VersionRequirement is a set of comparator predicates a Version must
// satisfy. The textual form is preserved verbatim (Raw) so that manifest
// round-tripping (parse -> serialize -> parse) reproduces the original
// requirement string exactly, per the round-trip law.
type VersionRequirement struct {
	Raw         string
	constraints *mm.Constraints
}

// ParseRequirement parses a requirement string such as "=1.0.0",
// ">=1.2.0,<2.0.0", "^1.0.0", or "~1.2.0".
func ParseRequirement(s string) (VersionRequirement, error) {
	raw := strings.TrimSpace(s)
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return VersionRequirement{}, fmt.Errorf("parse version requirement %q: %w", s, err)
	}
	return VersionRequirement{Raw: raw, constraints: c}, nil
}

func (r VersionRequirement) String() string { return r.Raw }

// IsZero reports whether r is the unset requirement.
func (r VersionRequirement) IsZero() bool { return r.constraints == nil }

// Satisfies reports whether v satisfies every predicate in r. The zero
// requirement satisfies no version.
func (r VersionRequirement) Satisfies(v Version) bool {
	if r.constraints == nil {
		return false
	}
	return r.constraints.Check(v.v)
}

var prereleaseComparand = regexp.MustCompile(`\d+\.\d+\.\d+-[0-9A-Za-z.-]+`)

// AllowsPrerelease reports whether r explicitly names a pre-release
// version in one of its comparators (e.g. "=1.0.0-rc.1"). Per the
// resolver's selection policy, pre-release candidates are only eligible
// when some requirement explicitly opts in this way.
func (r VersionRequirement) AllowsPrerelease() bool {
	return prereleaseComparand.MatchString(r.Raw)
}

var exactRequirement = regexp.MustCompile(`^=\s*(\S+)$`)

// ExactVersion reports whether r pins a single exact version ("=X.Y.Z",
// with no other comparator joined in), returning the parsed version.
// Used by the resolver to detect two requesters naming different exact
// versions of the same package, which no single selection can satisfy.
func (r VersionRequirement) ExactVersion() (Version, bool) {
	m := exactRequirement.FindStringSubmatch(r.Raw)
	if m == nil {
		return Version{}, false
	}
	v, err := ParseVersion(m[1])
	if err != nil {
		return Version{}, false
	}
	return v, true
}

// Intersect combines r and other into a single requirement whose
// satisfying set is the intersection of both. Used when a graph edge
// pair is deduplicated (see graph package) and two requirements on the
// same PackageId must both hold.
func Intersect(r, other VersionRequirement) (VersionRequirement, error) {
	if r.IsZero() {
		return other, nil
	}
	if other.IsZero() {
		return r, nil
	}
	combined := r.Raw
	if combined != "" && other.Raw != "" {
		combined = combined + "," + other.Raw
	}
	return ParseRequirement(combined)
}

// SortDescending sorts versions from highest to lowest in place.
func SortDescending(versions []Version) {
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j].GreaterThan(versions[j-1]); j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
}
