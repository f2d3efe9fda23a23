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

package manifest

import "fmt"

// ErrEditionMissing is returned when a package-bearing manifest omits the
// top-level edition field.
type ErrEditionMissing struct{}

func (ErrEditionMissing) Error() string { return "manifest is missing the edition field" }

// ErrEditionUnsupported is returned when the manifest's edition is not
// understood by this build.
type ErrEditionUnsupported struct {
	Found     string
	Supported []string
}

func (e ErrEditionUnsupported) Error() string {
	return fmt.Sprintf("unsupported edition %q (supported: %v)", e.Found, e.Supported)
}

// ErrMalformed wraps a TOML decode or structural failure.
type ErrMalformed struct {
	Reason string
	Cause  error
}

func (e ErrMalformed) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed manifest: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed manifest: %s", e.Reason)
}

func (e ErrMalformed) Unwrap() error { return e.Cause }

// ErrLibraryHasDependencies is returned when a Library package declares
// one or more dependencies, which is never allowed.
type ErrLibraryHasDependencies struct {
	PackageID string
}

func (e ErrLibraryHasDependencies) Error() string {
	return fmt.Sprintf("library package %q must not declare dependencies", e.PackageID)
}

// ErrDependencySourceAmbiguous is returned when a dependency entry mixes
// registry fields with a path field, or provides neither.
type ErrDependencySourceAmbiguous struct {
	DependencyID string
	Reason       string
}

func (e ErrDependencySourceAmbiguous) Error() string {
	return fmt.Sprintf("dependency %q has an ambiguous source: %s", e.DependencyID, e.Reason)
}

// ErrImplNotPublishable is returned when an Impl-kind package is the
// subject of a publish operation.
type ErrImplNotPublishable struct {
	PackageID string
}

func (e ErrImplNotPublishable) Error() string {
	return fmt.Sprintf("impl package %q cannot be published", e.PackageID)
}

// ErrAPIDependsOnAPI describes an Api package whose direct dependency is
// also of kind Api. No publish path constructs it: ValidateForPublish
// checks only the package's own kind.
type ErrAPIDependsOnAPI struct {
	PackageID     string
	DependencyID  string
}

func (e ErrAPIDependsOnAPI) Error() string {
	return fmt.Sprintf("api package %q depends on api package %q", e.PackageID, e.DependencyID)
}

// ErrInvalidPackageID is returned when a package or dependency identifier
// does not match the required grammar.
type ErrInvalidPackageID struct {
	ID string
}

func (e ErrInvalidPackageID) Error() string {
	return fmt.Sprintf("invalid package id %q", e.ID)
}

// ErrWorkspaceAndPackage is returned when a manifest declares both
// [workspace] and [package], which is mutually exclusive.
type ErrWorkspaceAndPackage struct{}

func (ErrWorkspaceAndPackage) Error() string {
	return "manifest declares both [workspace] and [package]"
}
