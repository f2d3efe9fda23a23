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

package protoscan

import (
	"testing"

	"github.com/buffrs-dev/buffrs/internal/pack"
)

func TestScanCleanFile(t *testing.T) {
	files := []pack.File{
		{Path: "proto/a.proto", Contents: []byte(`syntax = "proto3";
package physics;

message Particle {
  string id = 1;
}
`)},
	}

	findings := Scan(files)
	for _, f := range findings {
		t.Errorf("unexpected finding for clean file: %+v", f)
	}
}

func TestScanReportsParseError(t *testing.T) {
	files := []pack.File{
		{Path: "proto/broken.proto", Contents: []byte(`this is not valid proto {{{`)},
	}

	findings := Scan(files)
	if !HasErrors(findings) {
		t.Fatal("expected a parse error finding")
	}
}

func TestScanWarnsOnMissingDeclarations(t *testing.T) {
	files := []pack.File{
		{Path: "proto/bare.proto", Contents: []byte(`message Empty {}`)},
	}

	findings := Scan(files)
	if HasErrors(findings) {
		t.Fatal("did not expect a parse error")
	}

	wantMessages := map[string]bool{
		"missing syntax declaration":  false,
		"missing package declaration": false,
	}
	for _, f := range findings {
		if _, ok := wantMessages[f.Message]; ok {
			wantMessages[f.Message] = true
		}
	}
	for msg, found := range wantMessages {
		if !found {
			t.Errorf("expected finding %q", msg)
		}
	}
}

func TestScanWarnsOnEmptyMessage(t *testing.T) {
	files := []pack.File{
		{Path: "proto/a.proto", Contents: []byte(`syntax = "proto3";
package physics;

message Empty {}
`)},
	}

	findings := Scan(files)
	found := false
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning for a message with no fields")
	}
}
