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

// Package version provides version information for buffrs.
// The version is embedded from the VERSION file at the repository root.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionFile string

// version holds the current buffrs version, read from the embedded VERSION file.
// Can be overridden at build time using -ldflags "-X internal/version.version=X.Y.Z"
var version = strings.TrimSpace(versionFile)

// Get returns the current buffrs version.
func Get() string {
	if version == "" {
		return "dev"
	}
	return version
}

// SupportedEditions lists the manifest edition markers this build understands.
// Keep in ascending order; the latest entry is used by `buffrs init`.
var SupportedEditions = []string{"0.8", "0.9"}

// LatestEdition is the edition written into newly initialized manifests.
func LatestEdition() string {
	return SupportedEditions[len(SupportedEditions)-1]
}

// EditionSupported reports whether edition is understood by this build.
func EditionSupported(edition string) bool {
	for _, e := range SupportedEditions {
		if e == edition {
			return true
		}
	}
	return false
}
