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

package credentials

import (
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	a, err := Normalize("HTTPS://Registry.Example.com/")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	b, err := Normalize("https://registry.example.com")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if a != b {
		t.Errorf("Normalize() mismatch: %q != %q", a, b)
	}

	if _, err := Normalize("not-a-url"); err == nil {
		t.Error("expected error for relative url")
	}
}

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	store := Open(filepath.Join(dir, Filename))

	tok, err := store.Get("https://registry.example.com")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tok != "" {
		t.Errorf("expected empty token before Put, got %q", tok)
	}

	if err := store.Put("https://registry.example.com", "secret-1"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	tok, err = store.Get("https://REGISTRY.example.com/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tok != "secret-1" {
		t.Errorf("Get() = %q, want secret-1", tok)
	}

	if err := store.Put("https://registry.example.com", "secret-2"); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	tok, _ = store.Get("https://registry.example.com")
	if tok != "secret-2" {
		t.Errorf("Get() after overwrite = %q, want secret-2", tok)
	}

	if err := store.Delete("https://registry.example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	tok, _ = store.Get("https://registry.example.com")
	if tok != "" {
		t.Errorf("expected empty token after Delete, got %q", tok)
	}
}

func TestMultipleRegistries(t *testing.T) {
	dir := t.TempDir()
	store := Open(filepath.Join(dir, Filename))

	if err := store.Put("https://a.example.com", "token-a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Put("https://b.example.com", "token-b"); err != nil {
		t.Fatal(err)
	}

	a, _ := store.Get("https://a.example.com")
	b, _ := store.Get("https://b.example.com")
	if a != "token-a" || b != "token-b" {
		t.Errorf("got a=%q b=%q, want a=token-a b=token-b", a, b)
	}
}
