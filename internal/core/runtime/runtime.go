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

// Package runtime ties the module loader (pkg/loader), the IR builder
// (internal/core/compile), and the evaluation engine (internal/core/eval)
// together into spec.md §2's pipeline steps 4-5: turning a resolved
// module's parsed text into an instantiated module object, resolving its
// `amends`/`extends` target and `import` aliases by recursively loading
// whatever modules they name. It has no single teacher counterpart — CUE
// builds its module table inside cue/load/instance.go and
// internal/core/runtime/build.go combined; this package is grounded on
// that pairing's *role* (a table keyed by resolved module identity, built
// once, shared by every reference to that module within one evaluator)
// rather than its line content, since CUE's table also threads package
// membership and build-tag matching that Pkl's single-module-per-file
// model has no use for.
package runtime

import (
	"context"

	"pkl-lang.org/go/internal/core/compile"
	"pkl-lang.org/go/internal/core/eval"
	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/ast"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/external"
	"pkl-lang.org/go/pkg/loader"
	"pkl-lang.org/go/pkg/token"
)

// Parser is the external collaborator spec.md §1 excludes from this
// module's scope: bytes/text in, a concrete parse tree with source
// positions out.
type Parser func(fset *token.FileSet, filename, text string) (*ast.File, errors.Error)

// SourceReaders maps a URI scheme to the external.SourceReader that
// fetches that scheme's module text (spec.md §1 "Source reader").
type SourceReaders map[string]external.SourceReader

// entry is one module table slot (spec.md §3 "Module"): the compiled
// object once ready, or an in-progress marker used for cycle detection.
type entry struct {
	loading bool
	obj     *value.Object
	err     errors.Error
}

// Runtime is the per-evaluator module table plus the collaborators needed
// to populate it. One Runtime instance backs one pkg/evaluator.Evaluator;
// it is not safe for concurrent use by design (spec.md §5 "the evaluator
// is not reentrant").
type Runtime struct {
	FileSet *token.FileSet
	Loader  *loader.Loader
	Parse   Parser
	Readers SourceReaders
	Engine  *eval.Engine

	modules map[string]*entry // keyed by resolved Key.String()
}

func New(fset *token.FileSet, ld *loader.Loader, parse Parser, readers SourceReaders) *Runtime {
	return &Runtime{
		FileSet: fset,
		Loader:  ld,
		Parse:   parse,
		Readers: readers,
		Engine:  eval.New(),
		modules: map[string]*entry{},
	}
}

// Load resolves uri against referrer (nil for a root module) and returns
// its instantiated module object, loading and compiling it (and,
// transitively, everything it amends/extends/imports) at most once per
// resolved key for the lifetime of this Runtime (spec.md §3 "Lifecycle":
// "Module objects are created by the loader once per (resolvedKey)").
func (r *Runtime) Load(ctx context.Context, referrer *loader.Key, uri string, pos token.Pos) (*value.Object, errors.Error) {
	key, err := r.Loader.Resolve(ctx, referrer, uri, pos)
	if err != nil {
		return nil, errors.Wrapf(err, pos)
	}
	return r.loadKey(ctx, key, pos)
}

func (r *Runtime) loadKey(ctx context.Context, key loader.Key, pos token.Pos) (*value.Object, errors.Error) {
	id := key.String()
	if e, ok := r.modules[id]; ok {
		if e.loading {
			return nil, errors.Newf(errors.Stack, pos, "import cycle loading module %s", id)
		}
		return e.obj, e.err
	}
	e := &entry{loading: true}
	r.modules[id] = e
	obj, err := r.build(ctx, key, pos)
	e.loading = false
	e.obj, e.err = obj, err
	return obj, err
}

// build reads, parses, compiles, and instantiates one module: the
// pipeline of spec.md §2 steps 3-5 run against a single resolved key.
func (r *Runtime) build(ctx context.Context, key loader.Key, pos token.Pos) (*value.Object, errors.Error) {
	reader, ok := r.Readers[key.Scheme]
	if !ok {
		return nil, errors.Newf(errors.Io, pos, "no source reader registered for scheme %q", key.Scheme)
	}
	text, ioErr := reader.Read(ctx, key.URI)
	if ioErr != nil {
		return nil, errors.Newf(errors.Io, pos, "reading %s: %v", key.URI, ioErr)
	}

	file, perr := r.Parse(r.FileSet, key.URI, text)
	if perr != nil {
		return nil, perr
	}

	compiled := compile.CompileModule(file)
	if compiled.Errs != nil {
		return nil, compiled.Errs
	}

	var parent *value.Object
	if compiled.ExtendsURI != "" {
		p, err := r.Load(ctx, &key, compiled.ExtendsURI, pos)
		if err != nil {
			return nil, errors.Wrapf(err, pos)
		}
		parent = p
	} else if compiled.AmendsURI != "" {
		p, err := r.Load(ctx, &key, compiled.AmendsURI, pos)
		if err != nil {
			return nil, errors.Wrapf(err, pos)
		}
		parent = p
	}

	frame := value.NewFrame(compiled.Frame, nil)
	for _, imp := range compiled.Imports {
		importedURI := imp.Path
		if imp.Glob {
			// Glob imports are skipped: no code in this module builds the
			// Mapping of path -> module that a glob import binds, so the
			// import's slot stays unset.
			continue
		}
		v, err := r.Load(ctx, &key, importedURI, pos)
		if err != nil {
			return nil, errors.Wrapf(err, pos)
		}
		frame.Set(imp.Slot, v)
	}

	moduleName := file.Name
	if moduleName == "" {
		moduleName = inferModuleName(key.URI)
	}

	obj := r.Engine.BuildModule(parent, moduleName, compiled.Body)
	bindFrame(obj, frame)
	for _, cls := range compiled.Classes {
		if cls.Prototype != nil {
			bindFrame(cls.Prototype, frame)
		}
	}
	return obj, nil
}

// bindFrame makes an object's members' EnclosingFrame the frame holding
// the module's resolved import bindings, so a property body referencing
// an imported alias finds it at the right slot (spec.md §4.3 "frame
// descriptor (ordered slots for locals and parameters)"). It is applied
// to the module object itself and to each class prototype, whose members
// otherwise never pass through the engine's construction path.
func bindFrame(obj *value.Object, frame *value.FrameInstance) {
	for _, m := range obj.Members().All() {
		if m.EnclosingFrame == nil {
			m.EnclosingFrame = frame
		}
	}
}

func inferModuleName(uri string) string {
	i := len(uri) - 1
	for ; i >= 0; i-- {
		if uri[i] == '/' {
			break
		}
	}
	name := uri[i+1:]
	for j := 0; j < len(name); j++ {
		if name[j] == '.' {
			return name[:j]
		}
	}
	return name
}
