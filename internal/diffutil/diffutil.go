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

// Package diffutil renders unified diffs of manifest rewrites, so
// `buffrs publish` can show an author exactly which dependency lines a
// workspace publish is about to rewrite (local path -> registry
// coordinates) before committing to it.
package diffutil

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified renders a unified diff between before and after, labeled with
// fromFile/toFile the way a patch tool would.
func Unified(fromFile, toFile, before, after string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("generate diff: %w", err)
	}
	return text, nil
}

// ChangedLineCount reports how many lines changed between before and
// after, counting an added and a removed line independently (so a
// one-line edit counts as two changes).
func ChangedLineCount(before, after string) int {
	matcher := difflib.NewMatcher(difflib.SplitLines(before), difflib.SplitLines(after))
	count := 0
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		count += (op.I2 - op.I1) + (op.J2 - op.J1)
	}
	return count
}
