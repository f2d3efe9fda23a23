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

// Package pack builds the in-memory Package model: the manifest plus the
// sorted, validated set of .proto files under a package root's proto/
// directory, excluding the vendor tree.
package pack

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/secureio"
)

// ProtoDir is the conventional directory holding a package's .proto files.
const ProtoDir = "proto"

// VendorDir is the conventional subdirectory of ProtoDir holding installed
// dependencies; it is never included in a package's own file set.
const VendorDir = "vendor"

// File is one source file contributed to a package, keyed by its
// slash-separated path relative to the package root (e.g. "proto/a.proto").
type File struct {
	Path     string
	Contents []byte
}

// Package is a manifest plus the ordered set of files it publishes.
type Package struct {
	Manifest *manifest.Manifest
	Files    []File
}

// ErrPackagePathEscape is returned when a discovered file's path cannot be
// safely expressed as a package-relative entry (it fails
// secureio.ValidateEntryPath). Symlink targets are not inspected.
type ErrPackagePathEscape struct {
	Path string
}

func (e ErrPackagePathEscape) Error() string {
	return fmt.Sprintf("file path escapes package root: %s", e.Path)
}

// ErrNotUTF8 is returned when a .proto file's contents are not valid UTF-8.
type ErrNotUTF8 struct {
	Path string
}

func (e ErrNotUTF8) Error() string {
	return fmt.Sprintf("file is not valid UTF-8: %s", e.Path)
}

// Load reads the manifest at root/Proto.toml and every .proto file under
// root/proto/ (excluding root/proto/vendor/), producing a Package whose
// Files are sorted lexicographically by path for deterministic archiving.
func Load(root string) (*Package, error) {
	m, err := manifest.Load(filepath.Join(root, manifest.Filename))
	if err != nil {
		return nil, err
	}

	protoRoot := filepath.Join(root, ProtoDir)
	vendorRoot := filepath.Join(protoRoot, VendorDir)

	var files []File

	err = filepath.WalkDir(protoRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path == vendorRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(path, vendorRoot+string(filepath.Separator)) {
			return nil
		}
		if filepath.Ext(path) != ".proto" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("compute relative path for %s: %w", path, err)
		}
		entry := filepath.ToSlash(rel)
		if err := secureio.ValidateEntryPath(entry); err != nil {
			return ErrPackagePathEscape{Path: entry}
		}

		contents, err := secureio.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !utf8.Valid(contents) {
			return ErrNotUTF8{Path: entry}
		}

		files = append(files, File{Path: entry, Contents: contents})
		return nil
	})
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("proto directory missing at %s: %w", protoRoot, err)
		}
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &Package{Manifest: m, Files: files}, nil
}

// Name returns the package's identifier, or "" if the manifest declares no
// [package] section.
func (p *Package) Name() string {
	if p.Manifest.Package == nil {
		return ""
	}
	return string(p.Manifest.Package.Name)
}
