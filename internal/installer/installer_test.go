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

package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/buffrs-dev/buffrs/internal/archive"
	"github.com/buffrs-dev/buffrs/internal/cache"
	"github.com/buffrs-dev/buffrs/internal/lockfile"
	"github.com/buffrs-dev/buffrs/internal/manifest"
	"github.com/buffrs-dev/buffrs/internal/pack"
)

type fakeDownloader struct {
	blobs map[string][]byte
	calls int
}

func (f *fakeDownloader) Download(_ context.Context, e lockfile.Entry) ([]byte, error) {
	f.calls++
	return f.blobs[e.PackageID], nil
}

func testArchive(t *testing.T, name string) ([]byte, digest.Digest) {
	t.Helper()
	p := &pack.Package{
		Manifest: &manifest.Manifest{Edition: "0.9", Package: &manifest.PackageSection{Name: manifest.PackageID(name), Version: "1.0.0", Kind: manifest.KindLibrary}},
		Files:    []pack.File{{Path: "proto/a.proto", Contents: []byte("syntax = \"proto3\";")}},
	}
	blob, dig, err := archive.Bundle(p)
	if err != nil {
		t.Fatal(err)
	}
	return blob, dig
}

func TestInstallBuildsVendorTree(t *testing.T) {
	protoRoot := filepath.Join(t.TempDir(), "proto")
	if err := os.MkdirAll(protoRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	blob, dig := testArchive(t, "physics")
	dl := &fakeDownloader{blobs: map[string][]byte{"physics": blob}}

	lf := &lockfile.Lockfile{Packages: []lockfile.Entry{
		{PackageID: "physics", Version: "1.0.0", Registry: "https://r", Repository: "repo", Digest: dig},
	}}

	if err := Install(context.Background(), protoRoot, lf, nil, store, dl); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	vendored := filepath.Join(protoRoot, VendorDirName, "physics", "proto", "a.proto")
	if _, err := os.Stat(vendored); err != nil {
		t.Errorf("expected vendored file at %s: %v", vendored, err)
	}
}

func TestInstallIsIdempotentAndCacheBacked(t *testing.T) {
	protoRoot := filepath.Join(t.TempDir(), "proto")
	if err := os.MkdirAll(protoRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	blob, dig := testArchive(t, "physics")
	dl := &fakeDownloader{blobs: map[string][]byte{"physics": blob}}

	lf := &lockfile.Lockfile{Packages: []lockfile.Entry{
		{PackageID: "physics", Version: "1.0.0", Registry: "https://r", Repository: "repo", Digest: dig},
	}}

	if err := Install(context.Background(), protoRoot, lf, nil, store, dl); err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	if err := Install(context.Background(), protoRoot, lf, nil, store, dl); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}

	if dl.calls != 1 {
		t.Errorf("expected 1 network download (second run served from cache), got %d", dl.calls)
	}
}

func TestInstallDetectsVendorCollision(t *testing.T) {
	protoRoot := filepath.Join(t.TempDir(), "proto")
	if err := os.MkdirAll(protoRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	lf := &lockfile.Lockfile{Packages: []lockfile.Entry{
		{PackageID: "physics", Version: "1.0.0"},
		{PackageID: "physics", Version: "2.0.0"},
	}}

	err = Install(context.Background(), protoRoot, lf, nil, store, &fakeDownloader{})
	if _, ok := err.(ErrVendorCollision); !ok {
		t.Errorf("error = %v (%T), want ErrVendorCollision", err, err)
	}
}

func TestInstallVendorsLocalDependency(t *testing.T) {
	protoRoot := filepath.Join(t.TempDir(), "proto")
	if err := os.MkdirAll(protoRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	siblingDir := t.TempDir()
	siblingProto := filepath.Join(siblingDir, "proto")
	if err := os.MkdirAll(siblingProto, 0o755); err != nil {
		t.Fatal(err)
	}
	manifestTOML := "edition = \"0.9\"\n\n[package]\nname = \"sibling\"\nversion = \"1.0.0\"\ntype = \"lib\"\n"
	if err := os.WriteFile(filepath.Join(siblingDir, manifest.Filename), []byte(manifestTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(siblingProto, "b.proto"), []byte("syntax = \"proto3\";"), 0o644); err != nil {
		t.Fatal(err)
	}

	lf := &lockfile.Lockfile{}
	locals := []LocalSource{{PackageID: "sibling", Dir: siblingDir}}

	if err := Install(context.Background(), protoRoot, lf, locals, store, &fakeDownloader{}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	vendored := filepath.Join(protoRoot, VendorDirName, "sibling", "proto", "b.proto")
	if _, err := os.Stat(vendored); err != nil {
		t.Errorf("expected vendored local file at %s: %v", vendored, err)
	}
}

func TestUninstallRemovesVendorTree(t *testing.T) {
	protoRoot := filepath.Join(t.TempDir(), "proto")
	vendorDir := filepath.Join(protoRoot, VendorDirName)
	if err := os.MkdirAll(vendorDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Uninstall(protoRoot); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if _, err := os.Stat(vendorDir); !os.IsNotExist(err) {
		t.Error("expected vendor directory to be removed")
	}
}
