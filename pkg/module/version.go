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

// Package module implements spec.md §3's package/project-package URI
// shape and the semver-aware Version pair identifying one dependency,
// grounded on the teacher's mod/module package (the same role: a
// comparable, escapable module-path+version pair used to key an on-disk
// cache) adapted from CUE's OCI-registry-shaped module path to Pkl's
// `package://<host>/<name>@<ver>` URI.
package module

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version identifies one resolved package dependency: its canonical path
// (scheme+host+name, without the version) and its semver version. It is
// comparable, the same guarantee the teacher's module.Version gives so it
// can key a map in the package cache (modcache's in-flight and visited
// sets).
type Version struct {
	path    string // "package://host/name"
	version string // "v1.2.3"
}

func NewVersion(path, version string) Version { return Version{path: path, version: version} }

func (v Version) Path() string    { return v.path }
func (v Version) Version() string { return v.version }
func (v Version) IsZero() bool    { return v.path == "" && v.version == "" }

func (v Version) String() string {
	if v.version == "" {
		return v.path
	}
	return v.path + "@" + v.version
}

// Compare orders by path then by semver precedence, matching
// golang.org/x/mod/semver.Compare's convention (a version string
// containing a build/prerelease suffix still sorts behind its release).
func (v Version) Compare(o Version) int {
	if v.path != o.path {
		if v.path < o.path {
			return -1
		}
		return 1
	}
	return semver.Compare(v.version, o.version)
}

// PackageURI is the parsed form of spec.md §3's package URI:
//
//	package://<host>/<name>@<ver>[::sha256:<hex>][#<fragment>]
//
// A project package URI (scheme projectpackage) parses identically; Scheme
// is kept so callers can tell the two apart per spec.md §3's "signals it
// was resolved through a project".
type PackageURI struct {
	Scheme   string // "package" or "projectpackage"
	Host     string
	Name     string // path component after host, without "@version"
	Version  string // empty if the URI names no version (a dependency reference)
	Checksum string // lowercase hex sha256, "" if not pinned
	Fragment string
}

// Parse parses a package or projectpackage URI. It does not validate the
// version at all: whatever follows the last '@' becomes Version. Canonical
// reads the major version with golang.org/x/mod/semver.Major, which yields
// "" (reported as v0) for a version that is not valid 'v'-prefixed semver.
func Parse(raw string) (PackageURI, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || (scheme != "package" && scheme != "projectpackage") {
		return PackageURI{}, fmt.Errorf("module: not a package URI: %q", raw)
	}
	var frag string
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest, frag = rest[:i], rest[i+1:]
	}
	var checksum string
	if i := strings.Index(rest, "::sha256:"); i >= 0 {
		checksum = rest[i+len("::sha256:"):]
		rest = rest[:i]
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return PackageURI{}, fmt.Errorf("module: package URI %q has no path", raw)
	}
	host, path := rest[:slash], rest[slash+1:]
	if host == "" || path == "" {
		return PackageURI{}, fmt.Errorf("module: package URI %q missing host or name", raw)
	}
	name, version := path, ""
	if at := strings.LastIndexByte(path, '@'); at >= 0 {
		name, version = path[:at], path[at+1:]
	}
	return PackageURI{
		Scheme:   scheme,
		Host:     host,
		Name:     name,
		Version:  version,
		Checksum: strings.ToLower(checksum),
		Fragment: frag,
	}, nil
}

// Canonical returns the canonical form spec.md §3 defines: scheme, host,
// path-without-version, and major version only — no checksum, no
// fragment, no minor/patch. Two package URIs that differ only in minor
// version, checksum, or fragment canonicalize to the same string, which is
// the form pkg/evaluator uses to key DepsLedger.Resolve. The package cache
// directory layout uses the full version instead (modcache's dirFor).
func (p PackageURI) Canonical() string {
	major := semver.Major(p.Version)
	if major == "" {
		major = "v0"
	}
	return fmt.Sprintf("package://%s/%s@%s", p.Host, p.Name, major)
}

// String reassembles the URI, including checksum and fragment if present.
func (p PackageURI) String() string {
	s := fmt.Sprintf("%s://%s/%s", p.Scheme, p.Host, p.Name)
	if p.Version != "" {
		s += "@" + p.Version
	}
	if p.Checksum != "" {
		s += "::sha256:" + p.Checksum
	}
	if p.Fragment != "" {
		s += "#" + p.Fragment
	}
	return s
}

// ToVersion drops checksum/fragment, giving the (path, version) pair used
// to key the module cache and dependency graph.
func (p PackageURI) ToVersion() Version {
	return Version{path: fmt.Sprintf("package://%s/%s", p.Host, p.Name), version: p.Version}
}
