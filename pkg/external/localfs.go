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

package external

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalFS is the one necessarily-concrete reader this module ships: a
// `file:` scheme SourceReader/ResourceReader backed by the OS filesystem,
// needed so tests (and a minimal host) can load modules without bringing
// in a real parser/CLI. It performs no symlink resolution itself — that
// normalization is pkg/loader's job (spec.md §4.1 "file: paths are
// normalized through symlinks... before allow-check"), so by the time a
// URI reaches LocalFS it is already a real path.
type LocalFS struct{}

func (LocalFS) Scheme() string            { return "file" }
func (LocalFS) HasHierarchicalURIs() bool { return true }
func (LocalFS) IsLocal() bool             { return true }
func (LocalFS) IsGlobbable() bool         { return true }

func filePath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// Read implements ResourceReader.Read, returning raw bytes.
func (LocalFS) Read(ctx context.Context, uri string) ([]byte, error) {
	b, err := os.ReadFile(filePath(uri))
	if err != nil {
		return nil, &IoError{NotFound: os.IsNotExist(err), Err: err}
	}
	return b, nil
}

// Has implements ResourceReader.Has.
func (LocalFS) Has(ctx context.Context, uri string) (bool, error) {
	_, err := os.Stat(filePath(uri))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Glob implements ResourceReader.Glob by walking baseURI's directory tree,
// mirroring the shape of spec.md §6's glob contract (one PathElement per
// entry, directories marked so a glob pattern like `**/*.pkl` can prune).
func (LocalFS) Glob(ctx context.Context, baseURI string) ([]PathElement, error) {
	base := filePath(baseURI)
	var out []PathElement
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		out = append(out, PathElement{Name: rel, IsDir: d.IsDir()})
		return nil
	})
	if err != nil {
		return nil, &IoError{NotFound: os.IsNotExist(err), Err: err}
	}
	return out, nil
}

var _ ResourceReader = LocalFS{}
var _ SourceReader = LocalModuleSource{}

// LocalModuleSource adapts LocalFS to the module-loading SourceReader
// contract (text, not bytes) used for `file:` module URIs (spec.md §1
// "Source reader"). It is a separate type from LocalFS because the two
// contracts return different Go types for the same verb ("Read"); a
// ResourceReader is used for `read()` expressions, a SourceReader for
// loading a module's own text.
type LocalModuleSource struct{}

func (LocalModuleSource) Read(ctx context.Context, uri string) (string, error) {
	b, err := (LocalFS{}).Read(ctx, uri)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
