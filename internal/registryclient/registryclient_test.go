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

package registryclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	digest "github.com/opencontainers/go-digest"
)

func TestVersionsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/acme/physics/versions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(VersionList{Versions: []string{"1.0.0", "1.1.0"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	versions, err := c.Versions(context.Background(), "acme", "physics")
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 2 || versions[0] != "1.0.0" {
		t.Errorf("Versions() = %v", versions)
	}
}

func TestVersionsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Versions(context.Background(), "acme", "missing")
	if _, ok := err.(ErrNotFound); !ok {
		t.Errorf("error = %v (%T), want ErrNotFound", err, err)
	}
}

func TestDownloadVerifiesDigest(t *testing.T) {
	blob := []byte("archive-bytes")
	want := digest.FromBytes(blob)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Buffrs-Digest", want.String())
		w.Write(blob)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	result, err := c.Download(context.Background(), "acme", "physics", "1.0.0")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.Digest != want {
		t.Errorf("Digest = %s, want %s", result.Digest, want)
	}
}

func TestDownloadDetectsDigestMismatch(t *testing.T) {
	blob := []byte("archive-bytes")
	wrong := digest.FromBytes([]byte("different-bytes"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Buffrs-Digest", wrong.String())
		w.Write(blob)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Download(context.Background(), "acme", "physics", "1.0.0")
	if _, ok := err.(ErrDigestMismatch); !ok {
		t.Errorf("error = %v (%T), want ErrDigestMismatch", err, err)
	}
}

func TestPublishAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	blob := []byte("archive-bytes")
	err := c.Publish(context.Background(), "acme", "physics", "1.0.0", blob, digest.FromBytes(blob))
	if _, ok := err.(ErrAuthRequired); !ok {
		t.Errorf("error = %v (%T), want ErrAuthRequired", err, err)
	}
}

func TestPublishConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	blob := []byte("archive-bytes")
	err := c.Publish(context.Background(), "acme", "physics", "1.0.0", blob, digest.FromBytes(blob))
	if _, ok := err.(ErrConflict); !ok {
		t.Errorf("error = %v (%T), want ErrConflict", err, err)
	}
}

func TestPublishSucceeds(t *testing.T) {
	blob := []byte("archive-bytes")
	dig := digest.FromBytes(blob)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Buffrs-Digest", dig.String())
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	if err := c.Publish(context.Background(), "acme", "physics", "1.0.0", blob, dig); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}
