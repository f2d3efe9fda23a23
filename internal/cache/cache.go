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

// Package cache implements a content-addressed store for downloaded
// archives, keyed by their SHA-256 digest. Entries are written to a
// temporary file and moved into place with os.Rename, so a reader never
// observes a partially written entry and concurrent writers racing to
// populate the same digest converge on identical content.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
)

// Store is a content-addressed cache rooted at a directory.
type Store struct {
	root string
}

// Open returns a Store rooted at root, creating the directory if needed.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) entryPath(dig digest.Digest) string {
	return filepath.Join(s.root, dig.Encoded()+".tgz")
}

// Has reports whether an entry for dig is already cached.
func (s *Store) Has(dig digest.Digest) bool {
	_, err := os.Stat(s.entryPath(dig))
	return err == nil
}

// ErrDigestMismatch is returned when the bytes passed to Put do not hash
// to the digest they were claimed to satisfy.
type ErrDigestMismatch struct {
	Expected digest.Digest
	Actual   digest.Digest
}

func (e ErrDigestMismatch) Error() string {
	return fmt.Sprintf("cache put: digest mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Put stores blob under dig, verifying the digest first. Writing goes
// through a temp file in the same directory followed by os.Rename, so
// concurrent Put calls for the same digest never leave a half-written
// file visible to a concurrent Get.
func (s *Store) Put(dig digest.Digest, blob []byte) error {
	if got := dig.Algorithm().FromBytes(blob); got != dig {
		return ErrDigestMismatch{Expected: dig, Actual: got}
	}

	dir := filepath.Dir(s.entryPath(dig))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "put-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache entry: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache entry: %w", err)
	}

	if err := os.Rename(tmpPath, s.entryPath(dig)); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// ErrNotCached is returned when Get is called for an absent digest.
type ErrNotCached struct {
	Digest digest.Digest
}

func (e ErrNotCached) Error() string {
	return fmt.Sprintf("not cached: %s", e.Digest)
}

// Get returns the bytes stored under dig.
func (s *Store) Get(dig digest.Digest) ([]byte, error) {
	data, err := os.ReadFile(s.entryPath(dig))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached{Digest: dig}
		}
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return data, nil
}
