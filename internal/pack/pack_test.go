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

package pack

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root string) {
	t.Helper()
	doc := `edition = "0.9"

[package]
name = "physics"
version = "1.0.0"
type = "lib"
`
	if err := os.WriteFile(filepath.Join(root, "Proto.toml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSortsFilesAndExcludesVendor(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	mustWrite := func(rel, contents string) {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("proto/zeta.proto", "syntax = \"proto3\";")
	mustWrite("proto/alpha.proto", "syntax = \"proto3\";")
	mustWrite("proto/nested/beta.proto", "syntax = \"proto3\";")
	mustWrite("proto/vendor/other/gamma.proto", "syntax = \"proto3\";")
	mustWrite("proto/notes.txt", "ignored")

	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if p.Name() != "physics" {
		t.Errorf("Name() = %q, want physics", p.Name())
	}

	want := []string{"proto/alpha.proto", "proto/nested/beta.proto", "proto/zeta.proto"}
	if len(p.Files) != len(want) {
		t.Fatalf("got %d files, want %d: %+v", len(p.Files), len(want), p.Files)
	}
	for i, f := range p.Files {
		if f.Path != want[i] {
			t.Errorf("Files[%d].Path = %q, want %q", i, f.Path, want[i])
		}
	}
}

func TestLoadRejectsNonUTF8(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	if err := os.MkdirAll(filepath.Join(root, "proto"), 0o755); err != nil {
		t.Fatal(err)
	}
	invalid := []byte{0xff, 0xfe, 0x00}
	if err := os.WriteFile(filepath.Join(root, "proto", "bad.proto"), invalid, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(root)
	var want ErrNotUTF8
	if err == nil {
		t.Fatal("expected error for non-UTF8 file")
	}
	if _, ok := err.(ErrNotUTF8); !ok {
		t.Errorf("error = %v (%T), want %T", err, err, want)
	}
}

func TestLoadMissingProtoDir(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root)

	if _, err := Load(root); err == nil {
		t.Error("expected error for missing proto directory")
	}
}
