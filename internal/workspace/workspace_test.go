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

package workspace

import (
	"testing"

	"github.com/buffrs-dev/buffrs/internal/manifest"
)

func memberWithDeps(name string, deps map[string]manifest.Dependency) Member {
	return Member{
		Dir: name,
		Manifest: &manifest.Manifest{
			Edition:      "0.9",
			Package:      &manifest.PackageSection{Name: manifest.PackageID(name), Version: "1.0.0", Kind: manifest.KindAPI},
			Dependencies: deps,
		},
	}
}

func TestGuardCommandRejectsAtWorkspaceRoot(t *testing.T) {
	root := &manifest.Manifest{Edition: "0.9", Workspace: &manifest.WorkspaceSection{Members: []string{"a"}}}
	err := GuardCommand(root, "add")
	if _, ok := err.(ErrNotPackageCommand); !ok {
		t.Errorf("error = %v (%T), want ErrNotPackageCommand", err, err)
	}

	if err := GuardCommand(root, "install"); err != nil {
		t.Errorf("install should not be restricted, got %v", err)
	}
}

func TestPublishOrderRespectsLocalDependencies(t *testing.T) {
	units := memberWithDeps("units", nil)
	physics := memberWithDeps("physics", map[string]manifest.Dependency{
		"units": {Path: "../units"},
	})
	app := memberWithDeps("app", map[string]manifest.Dependency{
		"physics": {Path: "../physics"},
	})

	order, err := PublishOrder([]Member{app, physics, units})
	if err != nil {
		t.Fatalf("PublishOrder() error = %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, m := range order {
		pos[m.ID()] = i
	}
	if pos["units"] > pos["physics"] {
		t.Error("expected units before physics")
	}
	if pos["physics"] > pos["app"] {
		t.Error("expected physics before app")
	}
}

func TestPublishOrderDetectsCycle(t *testing.T) {
	a := memberWithDeps("a", map[string]manifest.Dependency{"b": {Path: "../b"}})
	b := memberWithDeps("b", map[string]manifest.Dependency{"a": {Path: "../a"}})

	_, err := PublishOrder([]Member{a, b})
	if _, ok := err.(ErrWorkspaceCycle); !ok {
		t.Errorf("error = %v (%T), want ErrWorkspaceCycle", err, err)
	}
}

func TestRewriteLocalPathDependency(t *testing.T) {
	physics := memberWithDeps("physics", map[string]manifest.Dependency{
		"units": {Path: "../units"},
	})

	RewriteLocalPathDependency([]Member{physics}, "units", "https://r", "repo", "2.0.0")

	dep := physics.Manifest.Dependencies["units"]
	src, err := dep.Resolve("units")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	reg, ok := src.(manifest.RegistrySource)
	if !ok {
		t.Fatalf("expected RegistrySource after rewrite, got %T", src)
	}
	if reg.Constraint != "=2.0.0" {
		t.Errorf("Constraint = %q, want =2.0.0", reg.Constraint)
	}
}

func TestFilterOnlyAndExclude(t *testing.T) {
	a := memberWithDeps("a", nil)
	b := memberWithDeps("b", nil)
	c := memberWithDeps("c", nil)

	only := Filter([]Member{a, b, c}, []string{"a", "c"}, nil)
	if len(only) != 2 {
		t.Fatalf("Filter(only) got %d members, want 2", len(only))
	}

	excluded := Filter([]Member{a, b, c}, nil, []string{"b"})
	if len(excluded) != 2 {
		t.Fatalf("Filter(exclude) got %d members, want 2", len(excluded))
	}
	for _, m := range excluded {
		if m.ID() == "b" {
			t.Error("expected b to be excluded")
		}
	}
}
