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

// Package registryclient talks to a buffrs registry over HTTP+JSON: list
// versions, download an archive, and publish one. Idempotent reads retry
// on transient failure; publish does not, since retrying a non-idempotent
// write risks a duplicate-publish conflict the caller would rather see
// directly.
package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/buffrs-dev/buffrs/internal/credentials"
)

// Client talks to a single registry base URL.
type Client struct {
	baseURL string
	token   string
	retry   *retryablehttp.Client
	plain   *http.Client
}

// New returns a Client for baseURL, authenticating requests with token
// (which may be empty for anonymous reads).
func New(baseURL, token string) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 4
	retry.RetryWaitMin = 200 * time.Millisecond
	retry.RetryWaitMax = 3 * time.Second
	retry.Logger = nil

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		retry:   retry,
		plain:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewFromCredentials resolves a token for registryURL out of store and
// constructs a Client.
func NewFromCredentials(registryURL string, store *credentials.Store) (*Client, error) {
	token, err := store.Get(registryURL)
	if err != nil {
		return nil, fmt.Errorf("load credentials for %s: %w", registryURL, err)
	}
	return New(registryURL, token), nil
}

// Error kinds. The registry maps HTTP status codes onto these per the
// external interface contract; callers match with errors.As.

// ErrNotFound means the requested repository/package/version does not exist.
type ErrNotFound struct{ Path string }

func (e ErrNotFound) Error() string { return fmt.Sprintf("not found: %s", e.Path) }

// ErrAuthRequired means the registry rejected an unauthenticated request.
type ErrAuthRequired struct{ Path string }

func (e ErrAuthRequired) Error() string { return fmt.Sprintf("authentication required: %s", e.Path) }

// ErrAuthRejected means the registry rejected the supplied credentials.
type ErrAuthRejected struct{ Path string }

func (e ErrAuthRejected) Error() string { return fmt.Sprintf("authentication rejected: %s", e.Path) }

// ErrConflict means the registry refused a publish because the version
// already exists.
type ErrConflict struct{ Path string }

func (e ErrConflict) Error() string { return fmt.Sprintf("conflict: %s", e.Path) }

// ErrDigestMismatch means the registry's digest for an archive (echoed
// after an upload, or sent with a download) differs from the digest the
// client computed. Expected is the client's digest, Actual the registry's.
type ErrDigestMismatch struct {
	Expected digest.Digest
	Actual   digest.Digest
}

func (e ErrDigestMismatch) Error() string {
	return fmt.Sprintf("digest mismatch: client computed %s, registry computed %s", e.Expected, e.Actual)
}

// ErrTransport wraps a network-level failure that survived retries.
type ErrTransport struct{ Cause error }

func (e ErrTransport) Error() string { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e ErrTransport) Unwrap() error { return e.Cause }

func (c *Client) authHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func mapStatus(path string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound{Path: path}
	case http.StatusUnauthorized:
		return ErrAuthRequired{Path: path}
	case http.StatusForbidden:
		return ErrAuthRejected{Path: path}
	case http.StatusConflict:
		return ErrConflict{Path: path}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d for %s: %s", resp.StatusCode, path, string(body))
	}
}

// VersionList is the response of Versions.
type VersionList struct {
	Versions []string `json:"versions"`
}

// Versions lists every published version of repository/packageID.
func (c *Client) Versions(ctx context.Context, repository, packageID string) ([]string, error) {
	path := fmt.Sprintf("/v1/%s/%s/versions", repository, packageID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authHeader(req.Request)

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, ErrTransport{Cause: err}
	}
	defer resp.Body.Close()

	if err := mapStatus(path, resp); err != nil {
		return nil, err
	}

	var list VersionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode version list: %w", err)
	}
	return list.Versions, nil
}

// DownloadResult is the response of Download.
type DownloadResult struct {
	Blob   []byte
	Digest digest.Digest
}

// Download fetches the archive for repository/packageID@version.
func (c *Client) Download(ctx context.Context, repository, packageID, version string) (*DownloadResult, error) {
	path := fmt.Sprintf("/v1/%s/%s/%s", repository, packageID, version)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authHeader(req.Request)

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, ErrTransport{Cause: err}
	}
	defer resp.Body.Close()

	if err := mapStatus(path, resp); err != nil {
		return nil, err
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive body: %w", err)
	}

	want := digest.Digest(resp.Header.Get("X-Buffrs-Digest"))
	got := digest.FromBytes(blob)
	if want != "" && want != got {
		return nil, ErrDigestMismatch{Expected: got, Actual: want}
	}

	return &DownloadResult{Blob: blob, Digest: got}, nil
}

// Publish uploads an archive for repository/packageID@version. It does
// not retry: a publish is not idempotent, and a retried write could turn
// a transient network blip into a spurious ErrConflict.
func (c *Client) Publish(ctx context.Context, repository, packageID, version string, blob []byte, dig digest.Digest) error {
	path := fmt.Sprintf("/v1/%s/%s/%s", repository, packageID, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authHeader(req)
	req.Header.Set("Content-Type", "application/gzip")
	req.Header.Set("X-Buffrs-Digest", dig.String())

	resp, err := c.plain.Do(req)
	if err != nil {
		return ErrTransport{Cause: err}
	}
	defer resp.Body.Close()

	if err := mapStatus(path, resp); err != nil {
		return err
	}

	if echoed := digest.Digest(resp.Header.Get("X-Buffrs-Digest")); echoed != "" && echoed != dig {
		return ErrDigestMismatch{Expected: dig, Actual: echoed}
	}

	return nil
}
