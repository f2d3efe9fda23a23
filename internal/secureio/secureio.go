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

// Package secureio provides secure file I/O operations with path validation.
package secureio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates that a file path is safe to read/write
func ValidateFilePath(path string) error {
	// Check for directory traversal attempts before cleaning
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	// Clean the path to resolve any . components
	cleanPath := filepath.Clean(path)

	// Ensure path is absolute for security
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path must be absolute: %s", path)
	}

	return nil
}

// ReadFile safely reads a file after validating the path
func ReadFile(path string) ([]byte, error) {
	if err := ValidateFilePath(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path) // #nosec G304 - path validated above
}

// WriteFile safely writes a file after validating the path
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm) // #nosec G306 - secure permissions enforced
}

// Create safely creates a file after validating the path
func Create(path string) (*os.File, error) {
	if err := ValidateFilePath(path); err != nil {
		return nil, err
	}
	return os.Create(path) // #nosec G304 - path validated above
}

// ValidateEntryPath validates a slash-separated relative path taken from an
// untrusted source (an archive entry, a package file listing) before it is
// joined to a trusted root directory. It rejects absolute paths, empty
// segments, and any ".." component - the same traversal shapes
// ValidateFilePath rejects, but for paths that are relative by construction
// (archive entries, proto/ file listings) rather than a bug.
func ValidateEntryPath(entry string) error {
	if entry == "" {
		return fmt.Errorf("empty entry path")
	}
	if strings.Contains(entry, "\\") {
		return fmt.Errorf("entry path must use forward slashes: %s", entry)
	}
	if path := filepath.ToSlash(entry); path != entry {
		return fmt.Errorf("entry path must use forward slashes: %s", entry)
	}
	if strings.HasPrefix(entry, "/") {
		return fmt.Errorf("entry path must be relative: %s", entry)
	}
	for _, seg := range strings.Split(entry, "/") {
		switch seg {
		case "":
			return fmt.Errorf("entry path contains empty segment: %s", entry)
		case ".", "..":
			return fmt.Errorf("entry path escapes its root: %s", entry)
		}
	}
	return nil
}

// JoinEntryPath validates entry and joins it under root, returning the
// resulting native path. Callers must still verify the result remains a
// descendant of root (e.g. via filepath.Rel) when root itself may be a
// symlink target controlled by untrusted input.
func JoinEntryPath(root, entry string) (string, error) {
	if err := ValidateEntryPath(entry); err != nil {
		return "", err
	}
	joined := filepath.Join(root, filepath.FromSlash(entry))
	rel, err := filepath.Rel(root, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("entry path escapes root: %s", entry)
	}
	return joined, nil
}
