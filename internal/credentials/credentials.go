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

// Package credentials stores registry bearer tokens in a TOML file keyed
// by normalized registry URL, guarded by a sibling lock file so
// concurrent `buffrs login`/`logout` invocations never interleave writes.
package credentials

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/buffrs-dev/buffrs/internal/secureio"
)

// Filename is the conventional name of the credentials store.
const Filename = "credentials.toml"

// Credential is one stored registry token.
type Credential struct {
	URI   string `toml:"uri"`
	Token string `toml:"token"`
}

// File is the parsed form of credentials.toml.
type File struct {
	Credentials []Credential `toml:"credentials"`
}

// Store manages a credentials file on disk.
type Store struct {
	path     string
	lockPath string
}

// Open returns a Store backed by the file at path.
func Open(path string) *Store {
	return &Store{path: path, lockPath: path + ".lock"}
}

// Normalize canonicalizes a registry URL for use as a lookup key: scheme
// and host are lowercased, any trailing slash is stripped, and userinfo
// is dropped so equivalent URLs collide regardless of how they were typed.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse registry url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("registry url %q must be absolute", rawURL)
	}
	u.User = nil
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func (s *Store) load() (*File, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return &File{}, nil
	}
	data, err := secureio.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &f, nil
}

func (s *Store) save(f *File) error {
	sort.Slice(f.Credentials, func(i, j int) bool { return f.Credentials[i].URI < f.Credentials[j].URI })
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := secureio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// ErrLocked is returned when another process holds the credentials lock.
type ErrLocked struct {
	Path string
}

func (e ErrLocked) Error() string {
	return fmt.Sprintf("credentials file is locked by another process: %s", e.Path)
}

// withLock acquires an exclusive O_EXCL sibling lock file for the
// duration of fn, retrying every 25ms for up to two seconds before giving
// up with ErrLocked.
func (s *Store) withLock(fn func() error) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			defer func() {
				lock.Close()
				os.Remove(s.lockPath)
			}()
			return fn()
		}
		if !os.IsExist(err) {
			return fmt.Errorf("acquire credentials lock: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrLocked{Path: s.lockPath}
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// Get returns the token stored for registryURL, or "" if none is stored.
func (s *Store) Get(registryURL string) (string, error) {
	key, err := Normalize(registryURL)
	if err != nil {
		return "", err
	}
	f, err := s.load()
	if err != nil {
		return "", err
	}
	for _, c := range f.Credentials {
		if c.URI == key {
			return c.Token, nil
		}
	}
	return "", nil
}

// Put stores token for registryURL, overwriting any existing entry.
func (s *Store) Put(registryURL, token string) error {
	key, err := Normalize(registryURL)
	if err != nil {
		return err
	}
	return s.withLock(func() error {
		f, err := s.load()
		if err != nil {
			return err
		}
		replaced := false
		for i, c := range f.Credentials {
			if c.URI == key {
				f.Credentials[i].Token = token
				replaced = true
				break
			}
		}
		if !replaced {
			f.Credentials = append(f.Credentials, Credential{URI: key, Token: token})
		}
		return s.save(f)
	})
}

// Delete removes the credential for registryURL, if present.
func (s *Store) Delete(registryURL string) error {
	key, err := Normalize(registryURL)
	if err != nil {
		return err
	}
	return s.withLock(func() error {
		f, err := s.load()
		if err != nil {
			return err
		}
		kept := f.Credentials[:0]
		for _, c := range f.Credentials {
			if c.URI != key {
				kept = append(kept, c)
			}
		}
		f.Credentials = kept
		return s.save(f)
	})
}
