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

package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pkl-lang.org/go/pkg/module"
	"pkl-lang.org/go/pkg/module/modcache"
)

// DepsSchemaVersion is the schema version stamped into a resolved
// PklProject.deps.json document (spec.md §6 "Project file").
const DepsSchemaVersion = 1

// DepsChecksums is the `checksums` object of one resolved remote
// dependency.
type DepsChecksums struct {
	Sha256 string `json:"sha256"`
}

// ResolvedDependency is one entry of a project's resolved dependency
// graph: either a local sibling project (referenced by relative import)
// or a remote package pinned to a checksum, matching spec.md §6's
// `{type: local|remote, uri, path|checksums}` shape.
type ResolvedDependency struct {
	Type      string         `json:"type"` // "local" or "remote"
	URI       string         `json:"uri,omitempty"`
	Path      string         `json:"path,omitempty"` // local only
	Checksums *DepsChecksums `json:"checksums,omitempty"`
}

// DepsLedger is the resolved-dependency document (spec.md §6 "A companion
// PklProject.deps.json records the resolved dependency graph"). Remote
// entries are keyed by the dependency's canonical base URI; local entries
// by their declared name, since a local project has no package URI until
// it is published.
type DepsLedger struct {
	SchemaVersion int                           `json:"schemaVersion"`
	Resolve       map[string]ResolvedDependency `json:"resolve"`
}

// ResolveProjectDependencies implements SPEC_FULL.md's supplemented
// feature 1: walking a project's declared `dependencies` map and
// producing the ledger a host would write to PklProject.deps.json,
// grounded on the teacher's cue/load module-root discovery (resolving
// each named dependency to a concrete location) generalized from CUE's
// module-graph shape to Pkl's flat per-project dependency map (Pkl
// projects do not carry CUE's transitive module-graph algebra; each
// `dependencies` entry resolves independently).
func ResolveProjectDependencies(ctx context.Context, cache *modcache.Cache, deps map[string]DependencyDecl) (*DepsLedger, error) {
	ledger := &DepsLedger{SchemaVersion: DepsSchemaVersion, Resolve: map[string]ResolvedDependency{}}
	for name, decl := range deps {
		if decl.LocalProjectPath != "" {
			ledger.Resolve[name] = ResolvedDependency{
				Type: "local",
				Path: decl.LocalProjectPath,
			}
			continue
		}
		if decl.URI == "" {
			return nil, fmt.Errorf("project: dependency %q names neither a package URI nor a local project path", name)
		}
		p, err := module.Parse(decl.URI)
		if err != nil {
			return nil, fmt.Errorf("project: dependency %q: %w", name, err)
		}
		if decl.Checksum != "" {
			p.Checksum = strings.ToLower(decl.Checksum)
		}
		if cache == nil {
			return nil, fmt.Errorf("project: dependency %q: no package cache configured", name)
		}
		res, fetchErr := cache.Fetch(ctx, p)
		if fetchErr != nil {
			return nil, fmt.Errorf("project: dependency %q: %v", name, fetchErr)
		}
		ledger.Resolve[p.Canonical()] = ResolvedDependency{
			Type:      "remote",
			URI:       p.String(),
			Checksums: &DepsChecksums{Sha256: res.Meta.PackageZipChecksums.Sha256},
		}
	}
	return ledger, nil
}

// MarshalDepsJSON renders a ledger the way a host would persist it to
// PklProject.deps.json.
func MarshalDepsJSON(l *DepsLedger) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}
