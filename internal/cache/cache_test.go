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

package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	digest "github.com/opencontainers/go-digest"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	blob := []byte("hello world")
	dig := digest.FromBytes(blob)

	if store.Has(dig) {
		t.Error("Has() returned true before Put")
	}

	if err := store.Put(dig, blob); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if !store.Has(dig) {
		t.Error("Has() returned false after Put")
	}

	got, err := store.Get(dig)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("Get() = %q, want %q", got, blob)
	}
}

func TestPutRejectsDigestMismatch(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	wrong := digest.FromBytes([]byte("something else"))
	err = store.Put(wrong, []byte("hello world"))
	if _, ok := err.(ErrDigestMismatch); !ok {
		t.Errorf("error = %v (%T), want ErrDigestMismatch", err, err)
	}
}

func TestGetMissingEntry(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	_, err = store.Get(digest.FromBytes([]byte("absent")))
	if _, ok := err.(ErrNotCached); !ok {
		t.Errorf("error = %v (%T), want ErrNotCached", err, err)
	}
}
