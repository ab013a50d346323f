// Copyright 2024 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

func TestResolveAbsolutePackageURIRequiresAllowList(t *testing.T) {
	l := New(Options{})
	_, err := l.Resolve(context.Background(), nil, "package://example.com/foo@1.0.0", token.NoPos)
	if err == nil {
		t.Fatal("expected scheme not allowed error")
	}
	if err.Kind() != errors.Security {
		t.Fatalf("got kind %v, want Security", err.Kind())
	}
}

func TestResolveAbsolutePackageURIAllowed(t *testing.T) {
	l := New(Options{AllowedSchemes: []string{"package"}})
	k, err := l.Resolve(context.Background(), nil, "package://example.com/foo@1.0.0", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if k.Scheme != "package" {
		t.Fatalf("got scheme %q, want package", k.Scheme)
	}
}

func TestResolvePklSchemeAlwaysAllowed(t *testing.T) {
	l := New(Options{}) // no allow-list entries at all
	k, err := l.Resolve(context.Background(), nil, "pkl:base", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if k.Scheme != "pkl" {
		t.Fatalf("got scheme %q, want pkl", k.Scheme)
	}
}

func TestResolveRelativeAgainstFileReferrer(t *testing.T) {
	l := New(Options{AllowedSchemes: []string{"file"}})
	referrer := Key{Scheme: "file", URI: "file:///a/b/main.pkl"}
	k, err := l.Resolve(context.Background(), &referrer, "./sibling.pkl", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if k.URI != "file:///a/b/sibling.pkl" {
		t.Fatalf("got %q, want file:///a/b/sibling.pkl", k.URI)
	}
}

func TestResolveRelativeWithoutReferrerFails(t *testing.T) {
	l := New(Options{AllowedSchemes: []string{"file"}})
	_, err := l.Resolve(context.Background(), nil, "./sibling.pkl", token.NoPos)
	if err == nil {
		t.Fatal("expected an error for a relative import with no referrer")
	}
}

func TestResolveUpwardFindsAncestorFile(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "PklProject")
	if err := os.WriteFile(target, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Options{AllowedSchemes: []string{"file"}})
	referrer := Key{Scheme: "file", URI: "file://" + filepath.Join(nested, "main.pkl")}
	k, err := l.Resolve(context.Background(), &referrer, ".../PklProject", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "file://" + target
	if k.URI != want {
		t.Fatalf("got %q, want %q", k.URI, want)
	}

	// A second resolution from the same referrer dir should hit the
	// upward-search cache instead of re-walking the filesystem.
	k2, err := l.Resolve(context.Background(), &referrer, ".../PklProject", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if k2.URI != want {
		t.Fatalf("got %q, want %q", k2.URI, want)
	}
}

func TestResolveUpwardNearerCandidateWins(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	near := filepath.Join(nested, "d.pkl")
	far := filepath.Join(dir, "a", "d.pkl")
	for _, p := range []string{near, far} {
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	l := New(Options{AllowedSchemes: []string{"file"}})
	referrer := Key{Scheme: "file", URI: "file://" + filepath.Join(nested, "c.pkl")}
	k, err := l.Resolve(context.Background(), &referrer, ".../d.pkl", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "file://" + near; k.URI != want {
		t.Fatalf("got %q, want the nearer candidate %q", k.URI, want)
	}
}

func TestResolveUpwardNoMatchFails(t *testing.T) {
	dir := t.TempDir()
	l := New(Options{AllowedSchemes: []string{"file"}})
	referrer := Key{Scheme: "file", URI: "file://" + filepath.Join(dir, "main.pkl")}
	_, err := l.Resolve(context.Background(), &referrer, ".../nonexistent.pkl", token.NoPos)
	if err == nil {
		t.Fatal("expected an error when no ancestor has the named file")
	}
}

func TestResolveFileRespectsRootDirGuard(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "evil.pkl")
	if err := os.WriteFile(outsideFile, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Options{AllowedSchemes: []string{"file"}, RootDir: root})
	_, err := l.resolveFile(outsideFile, token.NoPos)
	if err == nil {
		t.Fatal("expected the root-dir guard to reject a path outside RootDir")
	}
}

func TestResolveFileRejectsSiblingPrefixOfRootDir(t *testing.T) {
	root := t.TempDir()
	sibling := root + "bar" // shares root as a string prefix, not as a path
	if err := os.MkdirAll(sibling, 0o755); err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(sibling)
	outsideFile := filepath.Join(sibling, "evil.pkl")
	if err := os.WriteFile(outsideFile, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Options{AllowedSchemes: []string{"file"}, RootDir: root})
	if _, err := l.resolveFile(outsideFile, token.NoPos); err == nil {
		t.Fatal("expected the root-dir guard to reject a sibling directory sharing the root as a string prefix")
	}
}

func TestValidateHostAcceptsExplicitPort(t *testing.T) {
	got, err := validateHost("example.com:8080")
	if err != nil {
		t.Fatalf("validateHost: %v", err)
	}
	if got != "example.com:8080" {
		t.Fatalf("got %q, want example.com:8080", got)
	}
}

func TestResolveFileWithinRootDirSucceeds(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "mod.pkl")
	if err := os.WriteFile(inside, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Options{AllowedSchemes: []string{"file"}, RootDir: root})
	k, err := l.resolveFile(inside, token.NoPos)
	if err != nil {
		t.Fatalf("resolveFile: %v", err)
	}
	if k.Scheme != "file" {
		t.Fatalf("got scheme %q, want file", k.Scheme)
	}
}

func TestResolveModulePathSearchesEntriesInOrder(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir2, "foo.pkl"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Options{
		AllowedSchemes: []string{"modulepath"},
		ModulePath:     []ModulePathEntry{{Dir: dir1}, {Dir: dir2}},
	})
	k, err := l.Resolve(context.Background(), nil, "modulepath:/foo.pkl", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if k.Scheme != "modulepath" {
		t.Fatalf("got scheme %q, want modulepath", k.Scheme)
	}
	real, realErr := l.RealPath(k)
	if realErr != nil {
		t.Fatalf("RealPath: %v", realErr)
	}
	if real != filepath.Join(dir2, "foo.pkl") {
		t.Fatalf("got %q, want the dir2 candidate", real)
	}
}

func TestResolveModulePathNotFound(t *testing.T) {
	l := New(Options{
		AllowedSchemes: []string{"modulepath"},
		ModulePath:     []ModulePathEntry{{Dir: t.TempDir()}},
	})
	_, err := l.Resolve(context.Background(), nil, "modulepath:/missing.pkl", token.NoPos)
	if err == nil {
		t.Fatal("expected a not-found error")
	}
}

func TestResolveReplText(t *testing.T) {
	l := New(Options{})
	k, err := l.Resolve(context.Background(), nil, "repl:text", token.NoPos)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if k.Scheme != "repl" {
		t.Fatalf("got scheme %q, want repl", k.Scheme)
	}
}
