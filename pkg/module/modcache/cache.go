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

// Package modcache implements spec.md §4.2's package cache: an on-disk,
// content-addressed store of fetched `package:`/`projectpackage:` ZIPs
// with SHA-256 integrity checking, grounded on the teacher's
// mod/modcache package (cache.go's cachePath layout, fetch.go's
// lock-then-recheck download algorithm — see fetch.go in this package for
// the direct line of descent).
package modcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/module"
	"pkl-lang.org/go/pkg/module/modregistry"
	"pkl-lang.org/go/pkg/token"
)

// schemaVersion namespaces the on-disk layout (spec.md §6 "Package cache
// on disk": `<root>/package-<schema>/...`) so a future format change
// doesn't collide with caches written by an older version of this code.
const schemaVersion = "1"

// Cache is the local, content-addressed directory described by spec.md
// §6: `<root>/package-<schema>/<host>[:port]/<name>@<ver>/` holding the
// unpacked package contents plus its metadata, both checksum files.
type Cache struct {
	root     string
	registry *modregistry.Client

	// NoTransitive disables the recursive dependency walk of spec.md §4.2
	// step 5, fetching only the named package itself.
	NoTransitive bool

	mu      sync.Mutex
	pending map[module.Version]chan struct{} // §4.2 step 4 in-flight dedup
}

func New(root string, registry *modregistry.Client) *Cache {
	return &Cache{root: root, registry: registry, pending: map[module.Version]chan struct{}{}}
}

// dirFor returns the directory a resolved package version is stored
// under, following spec.md §6's layout exactly.
func (c *Cache) dirFor(p module.PackageURI) string {
	host := p.Host
	return filepath.Join(c.root, "package-"+schemaVersion, host, p.Name+"@"+p.Version)
}

func (c *Cache) assetPath(p module.PackageURI, suffix string) string {
	base := fmt.Sprintf("%s@%s", lastSegment(p.Name), p.Version)
	return filepath.Join(c.dirFor(p), base+suffix)
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ChecksumMismatchError reports spec.md §4.2's "checksum mismatch" /
// "cache directory ... produces a diagnostic with computed and published
// hex checksums" error, carrying both hashes and the asset URL per spec.md
// §8's package-checksum scenario.
type ChecksumMismatchError struct {
	Asset    string
	Computed string
	Expected string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: computed sha256:%s, expected sha256:%s", e.Asset, e.Computed, e.Expected)
}

// Result is what Fetch returns: the directory the package's unpacked
// contents live in, and its parsed metadata.
type Result struct {
	Dir  string
	Meta *modregistry.Metadata
}

// Fetch implements spec.md §4.2's algorithm end to end: lookup-or-fetch
// metadata with checksum verification, lookup-or-fetch+unpack the ZIP with
// its own checksum verification, atomic staging-to-final rename, in-flight
// deduplication so concurrent callers for the same (canonical, version)
// share one download, and — unless NoTransitive is set — a breadth-first
// walk ensuring every declared dependency is present too (step 5). The
// walk is iterative with a visited set rather than recursive so a
// dependency cycle between packages cannot deadlock the in-flight dedup.
func (c *Cache) Fetch(ctx context.Context, p module.PackageURI) (*Result, errors.Error) {
	res, err := c.fetchOne(ctx, p)
	if err != nil || c.NoTransitive {
		return res, err
	}
	seen := map[module.Version]bool{p.ToVersion(): true}
	work := dependencyURIs(res.Meta)
	for len(work) > 0 {
		uri := work[0]
		work = work[1:]
		dep, perr := module.Parse(uri)
		if perr != nil {
			return nil, errors.Newf(errors.Package, token.NoPos, "invalid dependency URI %q: %v", uri, perr)
		}
		if seen[dep.ToVersion()] {
			continue
		}
		seen[dep.ToVersion()] = true
		depRes, err := c.fetchOne(ctx, dep)
		if err != nil {
			return nil, err
		}
		work = append(work, dependencyURIs(depRes.Meta)...)
	}
	return res, nil
}

func dependencyURIs(meta *modregistry.Metadata) []string {
	uris := make([]string, 0, len(meta.Dependencies))
	for _, d := range meta.Dependencies {
		if d.URI != "" {
			uris = append(uris, d.URI)
		}
	}
	sort.Strings(uris)
	return uris
}

// fetchOne fetches a single package version with no dependency walk.
func (c *Cache) fetchOne(ctx context.Context, p module.PackageURI) (*Result, errors.Error) {
	mv := p.ToVersion()
	done, first := c.claim(mv)
	if !first {
		<-done
	}
	defer func() {
		if first {
			c.mu.Lock()
			delete(c.pending, mv)
			c.mu.Unlock()
			close(done)
		}
	}()

	dir := c.dirFor(p)
	if meta, err := c.readCachedMetadata(dir); err == nil {
		return &Result{Dir: dir, Meta: meta}, nil
	}

	meta, metaHex, err := c.registry.FetchMetadata(ctx, p)
	if err != nil {
		return nil, errors.Newf(errors.Package, token.NoPos, "%v", err)
	}
	if p.Checksum != "" && !strings.EqualFold(p.Checksum, metaHex) {
		return nil, errors.Newf(errors.Package, token.NoPos, "%v",
			&ChecksumMismatchError{Asset: p.String(), Computed: metaHex, Expected: p.Checksum})
	}

	zipData, zipHex, err := c.registry.FetchZip(ctx, meta)
	if err != nil {
		return nil, errors.Newf(errors.Package, token.NoPos, "%v", err)
	}
	if want := strings.ToLower(meta.PackageZipChecksums.Sha256); want != "" && !strings.EqualFold(want, zipHex) {
		return nil, errors.Newf(errors.Package, token.NoPos, "%v",
			&ChecksumMismatchError{Asset: meta.PackageZipURL, Computed: zipHex, Expected: want})
	}

	if err := c.stageAndCommit(dir, p, meta, zipData, zipHex); err != nil {
		return nil, errors.Newf(errors.Package, token.NoPos, "%v", err)
	}
	return &Result{Dir: dir, Meta: meta}, nil
}

// claim registers the caller as the in-flight fetcher for mv, or returns
// the existing in-flight channel to wait on (spec.md §4.2 step 4).
func (c *Cache) claim(mv module.Version) (done chan struct{}, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.pending[mv]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	c.pending[mv] = ch
	return ch, true
}

func computeHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
