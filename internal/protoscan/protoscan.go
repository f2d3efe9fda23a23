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

// Package protoscan performs a syntactic pass over .proto sources using
// emicklei/proto's parser, surfacing parse failures and a handful of
// cheap structural observations as warnings. It does not understand
// import resolution, type checking, or wire compatibility - a full lint
// engine is out of scope. Only `buffrs lint` runs it; packaging and
// publishing do not.
package protoscan

import (
	"fmt"
	"strings"

	"github.com/emicklei/proto"

	"github.com/buffrs-dev/buffrs/internal/pack"
)

// Severity classifies a Finding.
type Severity int

const (
	// SeverityWarning findings never block package/publish; they are
	// surfaced by `buffrs lint` for the author's attention.
	SeverityWarning Severity = iota
	// SeverityError findings indicate the file could not be parsed at all.
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Finding is one observation about a single proto file.
type Finding struct {
	File     string
	Message  string
	Severity Severity
}

// Scan parses every file in files and returns the findings accumulated
// across all of them. A parse failure on one file does not prevent the
// others from being scanned.
func Scan(files []pack.File) []Finding {
	var findings []Finding
	for _, f := range files {
		findings = append(findings, scanFile(f)...)
	}
	return findings
}

func scanFile(f pack.File) []Finding {
	parser := proto.NewParser(strings.NewReader(string(f.Contents)))
	def, err := parser.Parse()
	if err != nil {
		return []Finding{{File: f.Path, Severity: SeverityError, Message: fmt.Sprintf("parse error: %v", err)}}
	}

	var findings []Finding
	var sawSyntax bool
	var sawPackage bool

	proto.Walk(def,
		proto.WithSyntax(func(s *proto.Syntax) {
			sawSyntax = true
			if s.Value != "proto3" {
				findings = append(findings, Finding{
					File:     f.Path,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("syntax %q is not proto3", s.Value),
				})
			}
		}),
		proto.WithPackage(func(*proto.Package) { sawPackage = true }),
		proto.WithMessage(func(m *proto.Message) {
			if len(m.Elements) == 0 {
				findings = append(findings, Finding{
					File:     f.Path,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("message %q has no fields", m.Name),
				})
			}
		}),
	)

	if !sawSyntax {
		findings = append(findings, Finding{
			File:     f.Path,
			Severity: SeverityWarning,
			Message:  "missing syntax declaration",
		})
	}
	if !sawPackage {
		findings = append(findings, Finding{
			File:     f.Path,
			Severity: SeverityWarning,
			Message:  "missing package declaration",
		})
	}

	return findings
}

// HasErrors reports whether any finding in findings is SeverityError.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
