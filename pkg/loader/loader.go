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

// Package loader implements spec.md §4.1's module loader and URI
// resolution: canonicalizing a relative or absolute module URI against its
// referrer, checking it against the security-manager allow-list, and
// dispatching to a per-scheme module key factory. It has no teacher
// counterpart (CUE's cue/load resolves package import paths against
// GOPATH-style module roots, a different problem), so its shape is
// grounded directly on spec.md §4.1's prose rather than adapted from CUE
// source; see DESIGN.md.
package loader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/external"
	"pkl-lang.org/go/pkg/token"
)

// Key is a resolved module key: the scheme that will serve it, and the
// final URI text to hand to that scheme's SourceReader (spec.md §3
// "moduleKey (how to reach it)"). For `modulepath:` URIs, URI is always
// reported back in modulepath form even though resolution searched a list
// of directories (spec.md §4.1).
type Key struct {
	Scheme string
	URI    string
}

func (k Key) String() string { return k.URI }

// ModulePathEntry is one directory (or archive) searched, in order, for a
// `modulepath:` URI (spec.md §4.1 "an ordered list of directories/JARs").
type ModulePathEntry struct {
	Dir string
}

// Options configures one Loader instance: the allow-list of schemes a
// bare absolute URI may use, the ordered modulepath search list, an
// optional root directory guard, and a LocalFS reader. Existence checks
// during upward and modulepath search use os.Stat directly; LocalFS is not
// consulted.
type Options struct {
	AllowedSchemes []string
	ModulePath     []ModulePathEntry
	RootDir        string // "" disables the guard
	ReplText       string // text backing a single repl: URI, if any
	LocalFS        external.ResourceReader
}

// Loader resolves module URIs per spec.md §4.1. It caches upward-search
// probes per referrer directory (SPEC_FULL.md supplemented feature:
// "Upward-search caching", grounded on the teacher's cue/load/search.go
// directory-listing memoization).
type Loader struct {
	opts Options

	upwardCache map[string]string // referrerDir -> resolved path, memoized
}

func New(opts Options) *Loader {
	return &Loader{opts: opts, upwardCache: map[string]string{}}
}

func (l *Loader) allowed(scheme string) bool {
	for _, s := range l.opts.AllowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// Resolve implements spec.md §4.1's contract: resolve(referrer,
// relative-or-absolute-uri) -> ResolvedKey.
func (l *Loader) Resolve(ctx context.Context, referrer *Key, raw string, pos token.Pos) (Key, errors.Error) {
	if raw == "repl:text" {
		return Key{Scheme: "repl", URI: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Key{}, errors.Newf(errors.Security, pos, "invalid module URI %q: %v", raw, err)
	}

	if u.IsAbs() {
		return l.resolveAbsolute(u, pos)
	}
	if referrer == nil {
		return Key{}, errors.Newf(errors.Security, pos, "relative import %q has no referrer", raw)
	}
	return l.resolveRelative(ctx, *referrer, raw, pos)
}

func (l *Loader) resolveAbsolute(u *url.URL, pos token.Pos) (Key, errors.Error) {
	scheme := u.Scheme
	switch scheme {
	case "package", "projectpackage":
		if !l.allowed(scheme) {
			return Key{}, errors.Newf(errors.Security, pos, "scheme %q is not allowed", scheme)
		}
		if _, err := validateHost(u.Host); err != nil {
			return Key{}, errors.Newf(errors.Security, pos, "%v", err)
		}
		return Key{Scheme: scheme, URI: u.String()}, nil
	case "pkl":
		// The standard library is always reachable regardless of the
		// allow-list (spec.md §1 lists pkl: alongside file/https/package as
		// a first-class scheme, but it is never untrusted third-party
		// content).
		return Key{Scheme: scheme, URI: u.String()}, nil
	case "file":
		if !l.allowed(scheme) {
			return Key{}, errors.Newf(errors.Security, pos, "scheme %q is not allowed", scheme)
		}
		return l.resolveFile(u.Path, pos)
	case "https":
		if !l.allowed(scheme) {
			return Key{}, errors.Newf(errors.Security, pos, "scheme %q is not allowed", scheme)
		}
		if _, err := validateHost(u.Host); err != nil {
			return Key{}, errors.Newf(errors.Security, pos, "%v", err)
		}
		return Key{Scheme: scheme, URI: u.String()}, nil
	case "modulepath":
		if !l.allowed(scheme) {
			return Key{}, errors.Newf(errors.Security, pos, "scheme %q is not allowed", scheme)
		}
		return l.resolveModulePath(u.Opaque+u.Path, pos)
	default:
		if !l.allowed(scheme) {
			return Key{}, errors.Newf(errors.Security, pos, "scheme %q is not allowed", scheme)
		}
		return Key{Scheme: scheme, URI: u.String()}, nil
	}
}

// resolveRelative implements RFC 3986 relative resolution against
// referrer, including the `".../x"` upward-search convention (spec.md
// §4.1).
func (l *Loader) resolveRelative(ctx context.Context, referrer Key, raw string, pos token.Pos) (Key, errors.Error) {
	if strings.HasPrefix(raw, ".../") {
		return l.resolveUpward(ctx, referrer, strings.TrimPrefix(raw, ".../"), pos)
	}
	base, err := url.Parse(referrer.URI)
	if err != nil {
		return Key{}, errors.Newf(errors.Security, pos, "invalid referrer URI %q: %v", referrer.URI, err)
	}
	rel, err := url.Parse(raw)
	if err != nil {
		return Key{}, errors.Newf(errors.Security, pos, "invalid relative URI %q: %v", raw, err)
	}
	resolved := base.ResolveReference(rel)
	return l.resolveAbsolute(resolved, pos)
}

// resolveUpward implements spec.md §4.1's upward-search rule: try `x` in
// the referrer's own directory, then `../x`, `../../x`, … up to the module
// root (RootDir when set, else the filesystem root), returning the first
// existing match; fail if none exists.
func (l *Loader) resolveUpward(ctx context.Context, referrer Key, rest string, pos token.Pos) (Key, errors.Error) {
	if referrer.Scheme != "file" {
		return Key{}, errors.Newf(errors.Security, pos, "upward search (.../) is only supported for file: referrers")
	}
	dir := filepath.Dir(strings.TrimPrefix(referrer.URI, "file://"))
	cacheKey := dir + "\x00" + rest
	if cached, ok := l.upwardCache[cacheKey]; ok {
		if cached == "" {
			return Key{}, errors.Newf(errors.Io, pos, "upward search for %q from %q found no match", rest, dir)
		}
		return Key{Scheme: "file", URI: "file://" + cached}, nil
	}

	for {
		candidate := filepath.Join(dir, rest)
		if l.fileExists(candidate) {
			l.upwardCache[cacheKey] = candidate
			return Key{Scheme: "file", URI: "file://" + candidate}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir || (l.opts.RootDir != "" && !underRoot(l.opts.RootDir, parent)) {
			break
		}
		dir = parent
	}
	l.upwardCache[cacheKey] = ""
	return Key{}, errors.Newf(errors.Io, pos, "upward search for %q found no match", rest)
}

func (l *Loader) fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// resolveFile normalizes p through symlinks to its real path and applies
// the root-dir guard (spec.md §4.1 "file: paths are normalized through
// symlinks to their real path before allow-check" and "Root-dir guard").
func (l *Loader) resolveFile(p string, pos token.Pos) (Key, errors.Error) {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		// A module that doesn't exist yet (e.g. under test) still resolves;
		// the I/O error surfaces when the reader actually tries to read it.
		real = filepath.Clean(p)
	}
	if l.opts.RootDir != "" && !underRoot(l.opts.RootDir, real) {
		return Key{}, errors.Newf(errors.Security, pos, "refusing to load %q: outside root dir %q", p, l.opts.RootDir)
	}
	return Key{Scheme: "file", URI: "file://" + real}, nil
}

// underRoot reports whether p lies beneath root on a path-segment
// boundary, so /root/foobar does not pass a /root/foo guard.
func underRoot(root, p string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	pAbs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, pAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveModulePath implements spec.md §4.1's `modulepath:` rule: search
// each configured directory in order, first hit wins, but still report the
// resolved URI back to callers in modulepath: form.
func (l *Loader) resolveModulePath(rel string, pos token.Pos) (Key, errors.Error) {
	rel = strings.TrimPrefix(rel, "/")
	for _, entry := range l.opts.ModulePath {
		candidate := filepath.Join(entry.Dir, filepath.FromSlash(rel))
		if l.fileExists(candidate) {
			return Key{Scheme: "modulepath", URI: "modulepath:" + path.Clean("/"+rel)}, nil
		}
	}
	return Key{}, errors.Newf(errors.Io, pos, "modulepath: %q not found in any module path entry", rel)
}

// RealPath resolves a `modulepath:` Key back to the real filesystem path
// it was found at, re-running the same search resolveModulePath used. A
// SourceReader for the modulepath scheme needs this to actually read the
// bytes; the loader keeps the original modulepath: URI as the Key's
// canonical text per spec.md §4.1 ("the resolved URI is still reported as
// modulepath:… to callers").
func (l *Loader) RealPath(k Key) (string, error) {
	if k.Scheme != "modulepath" {
		return "", fmt.Errorf("loader: %v is not a modulepath: key", k)
	}
	rel := strings.TrimPrefix(k.URI, "modulepath:")
	rel = strings.TrimPrefix(rel, "/")
	for _, entry := range l.opts.ModulePath {
		candidate := filepath.Join(entry.Dir, filepath.FromSlash(rel))
		if l.fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("loader: %v not found", k)
}
