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
	"fmt"
	"sync"

	"pkl-lang.org/go/internal/core/runtime"
	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/external"
	"pkl-lang.org/go/pkg/loader"
	"pkl-lang.org/go/pkg/module/modregistry"
	"pkl-lang.org/go/pkg/token"
)

func newRegistryClient(http external.HTTPClient) *modregistry.Client { return modregistry.New(http) }

// request is one unit of work the worker goroutine drains (spec.md §5
// "Suspension points": the evaluator never yields mid-force, so each
// request runs to completion on the worker before the next is dequeued).
type request struct {
	fn   func(ctx context.Context) (*value.Object, errors.Error)
	resp chan result
}

type result struct {
	obj *value.Object
	err errors.Error
}

// Evaluator is one evaluator instance, spec.md §5's "single-threaded and
// cooperative" unit: all requests against it — Evaluate calls, resource
// reads it triggers — are serialized onto one worker goroutine. Multiple
// Evaluators may run concurrently with no ordering promised between them.
type Evaluator struct {
	opts Options
	rt   *runtime.Runtime
	ld   *loader.Loader
	fset *token.FileSet

	reqs   chan request
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// New builds an immutable Evaluator from opts, applying project settings
// (if any) on top of the directly-supplied Options per spec.md §6's
// "Project file" precedence, then starts its single worker goroutine.
func New(opts Options) (*Evaluator, error) {
	opts.Project.applyTo(&opts)

	fset := token.NewFileSet()
	ld := loader.New(loader.Options{
		AllowedSchemes: opts.AllowedSchemes,
		ModulePath:     opts.ModulePath,
		RootDir:        opts.RootDir,
	})
	if opts.Parse == nil {
		return nil, fmt.Errorf("evaluator: Options.Parse must supply a parser (spec.md §1 excludes the parser from this module)")
	}
	readers := runtime.SourceReaders{}
	for scheme, r := range opts.SourceReaders {
		readers[scheme] = r
	}
	cache, err := opts.newCache()
	if err != nil {
		return nil, err
	}
	if cache != nil {
		// package: and projectpackage: modules are served out of the cache;
		// an explicitly registered reader for either scheme still wins.
		ps := packageSource{cache: cache}
		if _, ok := readers["package"]; !ok {
			readers["package"] = ps
		}
		if _, ok := readers["projectpackage"]; !ok {
			readers["projectpackage"] = ps
		}
	}
	rt := runtime.New(fset, ld, opts.Parse, readers)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Evaluator{
		opts:   opts,
		rt:     rt,
		ld:     ld,
		fset:   fset,
		reqs:   make(chan request),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go e.run(ctx)
	return e, nil
}

// run is the single worker loop: it drains e.reqs in arrival order (spec.md
// §5 "requests targeting the same evaluator are serialized") until ctx is
// cancelled by Close.
func (e *Evaluator) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-e.reqs:
			obj, err := r.fn(ctx)
			r.resp <- result{obj: obj, err: err}
		}
	}
}

// Evaluate loads and instantiates the module at uri (spec.md §6 code
// 0x23 "Evaluate (moduleUri, ...)"), applying the configured per-
// evaluation timeout (spec.md §4.6 "Evaluation of a top-level source
// module must complete within the configured timeout").
func (e *Evaluator) Evaluate(ctx context.Context, uri string) (*value.Object, errors.Error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	resp := make(chan result, 1)
	req := request{
		fn: func(ctx context.Context) (*value.Object, errors.Error) {
			return e.rt.Load(ctx, nil, uri, token.NoPos)
		},
		resp: resp,
	}
	select {
	case e.reqs <- req:
	case <-e.done:
		return nil, errors.Newf(errors.Bug, token.NoPos, "evaluator: closed")
	}
	select {
	case r := <-resp:
		return r.obj, r.err
	case <-ctx.Done():
		return nil, errors.Newf(errors.Timeout, token.NoPos, "evaluation timed out")
	}
}

// Close cancels the context the worker hands to every request (module
// loads and source reads receive it), stops accepting new requests, and
// waits for the worker goroutine to exit. Forcing never checks the
// context, so a request already running is interrupted only if a reader it
// calls honours the cancellation; Close returns after that request has
// returned. The runtime's module table is not cleared. Idempotent.
func (e *Evaluator) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.done
	})
}
