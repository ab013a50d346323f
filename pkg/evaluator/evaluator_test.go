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
	"testing"
	"time"

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/ast"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/external"
	"pkl-lang.org/go/pkg/token"
)

// memSourceReader returns canned text for a fixed set of URIs, standing in
// for a real filesystem/network external.SourceReader in these tests.
type memSourceReader struct{ texts map[string]string }

func (r memSourceReader) Read(ctx context.Context, uri string) (string, error) {
	t, ok := r.texts[uri]
	if !ok {
		return "", &external.IoError{NotFound: true, Err: errNoFixture(uri)}
	}
	return t, nil
}

type noFixtureErr string

func (e noFixtureErr) Error() string { return "no fixture for " + string(e) }
func errNoFixture(uri string) error  { return noFixtureErr(uri) }

// fixtureParser looks up a pre-built *ast.File by filename instead of
// actually parsing text, since no real Pkl parser exists within this
// module's scope (spec.md §1 excludes it).
type fixtureParser struct{ files map[string]*ast.File }

func (p fixtureParser) parse(fset *token.FileSet, filename, text string) (*ast.File, errors.Error) {
	f, ok := p.files[filename]
	if !ok {
		return nil, errors.Newf(errors.Io, token.NoPos, "fixtureParser: no fixture for %q", filename)
	}
	return f, nil
}

func TestEvaluatorEvaluateReturnsModuleObject(t *testing.T) {
	uri := "file:///m.pkl"
	p := fixtureParser{files: map[string]*ast.File{
		uri: {
			Name:  "m",
			Decls: []ast.Decl{&ast.PropertyDecl{Name: "answer", Value: &ast.BasicLit{Kind: ast.IntLit, Value: "42"}}},
		},
	}}
	r := memSourceReader{texts: map[string]string{uri: ""}}

	e, err := New(Options{
		AllowedSchemes: []string{"file"},
		SourceReaders:  map[string]external.SourceReader{"file": r},
		Parse:          p.parse,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	obj, evalErr := e.Evaluate(context.Background(), uri)
	if evalErr != nil {
		t.Fatalf("Evaluate: %v", evalErr)
	}
	got := e.rt.Engine.Force(obj, value.PropKey("answer"))
	if value.IsBottom(got) {
		t.Fatalf("forcing answer: %v", got)
	}
	if i, ok := got.(value.Int); !ok || i != 42 {
		t.Fatalf("got %v, want Int(42)", got)
	}
}

func TestEvaluatorRejectsMissingParser(t *testing.T) {
	_, err := New(Options{AllowedSchemes: []string{"file"}})
	if err == nil {
		t.Fatal("expected New to reject Options with no Parse hook")
	}
}

func TestEvaluatorEvaluateTimesOut(t *testing.T) {
	uri := "file:///slow.pkl"
	blocked := make(chan struct{})
	p := blockingParser{files: map[string]*ast.File{
		uri: {Name: "slow", Decls: []ast.Decl{&ast.PropertyDecl{Name: "x", Value: &ast.BasicLit{Kind: ast.IntLit, Value: "1"}}}},
	}, block: blocked}
	r := memSourceReader{texts: map[string]string{uri: ""}}

	e, err := New(Options{
		AllowedSchemes: []string{"file"},
		SourceReaders:  map[string]external.SourceReader{"file": r},
		Parse:          p.parse,
		Timeout:        10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		close(blocked)
		e.Close()
	}()

	_, evalErr := e.Evaluate(context.Background(), uri)
	if evalErr == nil {
		t.Fatal("expected a timeout error")
	}
	if evalErr.Kind() != errors.Timeout {
		t.Fatalf("got kind %v, want Timeout", evalErr.Kind())
	}
}

// blockingParser parses normally but first waits on block, letting a test
// simulate a module whose load takes longer than the configured timeout.
type blockingParser struct {
	files map[string]*ast.File
	block chan struct{}
}

func (p blockingParser) parse(fset *token.FileSet, filename, text string) (*ast.File, errors.Error) {
	<-p.block
	f, ok := p.files[filename]
	if !ok {
		return nil, errors.Newf(errors.Io, token.NoPos, "blockingParser: no fixture for %q", filename)
	}
	return f, nil
}

func TestEvaluatorCloseIsIdempotent(t *testing.T) {
	uri := "file:///m.pkl"
	p := fixtureParser{files: map[string]*ast.File{
		uri: {Decls: []ast.Decl{&ast.PropertyDecl{Name: "x", Value: &ast.BasicLit{Kind: ast.IntLit, Value: "1"}}}},
	}}
	r := memSourceReader{texts: map[string]string{uri: ""}}
	e, err := New(Options{
		AllowedSchemes: []string{"file"},
		SourceReaders:  map[string]external.SourceReader{"file": r},
		Parse:          p.parse,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Close()
	e.Close() // must not panic or block a second time
}
