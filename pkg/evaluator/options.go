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

// Package evaluator assembles the host-supplied configuration spec.md §1
// and §5 describe (allowed schemes, cache dir, module paths, env vars,
// external properties, timeout, project dependencies) into one immutable
// Evaluator, and drives spec.md §5's single-threaded, cooperative
// concurrency model: one worker goroutine per Evaluator serializing every
// request against it, with the module/package caches it owns. It
// corresponds to the teacher's cue/cuecontext package's role (assembling
// functional Options into one immutable *cue.Context) generalized to
// Pkl's richer per-evaluator configuration surface.
package evaluator

import (
	"time"

	"pkl-lang.org/go/internal/core/runtime"
	"pkl-lang.org/go/pkg/external"
	"pkl-lang.org/go/pkg/loader"
	"pkl-lang.org/go/pkg/module/modcache"
	"pkl-lang.org/go/pkg/module/modconfig"
)

// Options collects every piece of host-supplied configuration named in
// spec.md §1's "Host CLI/server" row and §6's evaluator-creation message
// (0x20). New receives a copy of the struct, so assigning to the caller's
// fields afterwards has no effect on an already-built Evaluator (spec.md §5
// "constructed per evaluator and then immutable"). Slice and map fields are
// not deep-copied and stay shared with the caller.
type Options struct {
	AllowedSchemes []string
	ModulePath     []loader.ModulePathEntry
	RootDir        string

	CacheDir string

	Env                map[string]string
	ExternalProperties map[string]string

	Timeout time.Duration

	Readers       map[string]external.ResourceReader
	SourceReaders map[string]external.SourceReader
	HTTP          external.HTTPClient
	Parse         runtime.Parser

	// RegistryConfig supplies URL-rewrite rules applied to package
	// metadata/ZIP fetches (spec.md §6 "URL rewrites").
	RegistryConfig *modconfig.Config

	Project *ProjectSettings
}

// ProjectSettings mirrors spec.md §6's "Project file" evaluatorSettings
// block: the subset of a resolved PklProject that overrides/extends the
// Options a host would otherwise supply directly.
type ProjectSettings struct {
	Env                map[string]string
	ExternalProperties map[string]string
	ModuleCacheDir     string
	AllowedModules     []string
	AllowedResources   []string
	RootDir            string
	Timeout            time.Duration
	ModulePath         []loader.ModulePathEntry
	Dependencies       map[string]DependencyDecl // name -> declared dependency
}

// DependencyDecl is one entry of a project's `dependencies` map: either a
// remote package reference or a relative import of another project's
// PklProject (spec.md §6).
type DependencyDecl struct {
	URI              string // "package://..." or "" if LocalProjectPath is set
	Checksum         string
	LocalProjectPath string // "../other/PklProject" form
}

// applyTo applies p on top of o, following the same override precedence
// a project file has over an explicitly passed Option (project settings
// win for any field they set).
func (p *ProjectSettings) applyTo(o *Options) {
	if p == nil {
		return
	}
	if len(p.AllowedModules) > 0 {
		o.AllowedSchemes = p.AllowedModules
	}
	if p.RootDir != "" {
		o.RootDir = p.RootDir
	}
	if p.ModuleCacheDir != "" {
		o.CacheDir = p.ModuleCacheDir
	}
	if p.Timeout > 0 {
		o.Timeout = p.Timeout
	}
	if len(p.ModulePath) > 0 {
		o.ModulePath = p.ModulePath
	}
	for k, v := range p.Env {
		if o.Env == nil {
			o.Env = map[string]string{}
		}
		o.Env[k] = v
	}
	for k, v := range p.ExternalProperties {
		if o.ExternalProperties == nil {
			o.ExternalProperties = map[string]string{}
		}
		o.ExternalProperties[k] = v
	}
}

// newCache builds the package cache backing this Options' CacheDir, or
// nil if no HTTP client/cache dir is configured (a host that never uses
// `package:` URIs need not supply either).
func (o *Options) newCache() (*modcache.Cache, error) {
	if o.CacheDir == "" || o.HTTP == nil {
		return nil, nil
	}
	client := newRegistryClient(o.HTTP)
	if o.RegistryConfig != nil {
		if err := o.RegistryConfig.Validate(); err != nil {
			return nil, err
		}
		client.Rewrite = o.RegistryConfig.ApplyRewrite
	}
	return modcache.New(o.CacheDir, client), nil
}
