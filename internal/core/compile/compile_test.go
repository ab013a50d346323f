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

package compile

import (
	"testing"

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/ast"
	"pkl-lang.org/go/pkg/token"
)

func TestScopeResolutionFindsLexicalLocal(t *testing.T) {
	c := newCompiler()
	c.push(ScopeBase, "")
	mod := c.push(ScopeModule, "test")
	method := c.push(ScopeMethod, "f")
	method.addLocalSlot("x", value.SlotParam, true)

	res, err := c.resolve("x", token.NoPos)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Kind != ResolveLocal {
		t.Fatalf("got Kind %v, want ResolveLocal", res.Kind)
	}
	if res.LevelsUp != 0 {
		t.Fatalf("got LevelsUp %d, want 0", res.LevelsUp)
	}
	_ = mod
}

func TestScopeResolutionUnknownNameIsDynamic(t *testing.T) {
	c := newCompiler()
	c.push(ScopeBase, "")
	c.push(ScopeModule, "test")

	res, err := c.resolve("somePropertyOnThis", token.NoPos)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Kind != ResolveDynamic {
		t.Fatalf("got Kind %v, want ResolveDynamic", res.Kind)
	}
}

func TestValidateModifiersRejectsLocalHidden(t *testing.T) {
	mods := ast.ModLocal | ast.ModHidden
	err := validateModifiers(mods, validPropertyMods, token.NoPos, "property")
	if err == nil {
		t.Fatal("expected an error for local+hidden")
	}
}

func TestValidateModifiersRejectsAbstractOpen(t *testing.T) {
	mods := ast.ModAbstract | ast.ModOpen
	err := validateModifiers(mods, validPropertyMods|ast.ModOpen, token.NoPos, "class")
	if err == nil {
		t.Fatal("expected an error for abstract+open")
	}
}

func TestValidateModifiersAcceptsPlainConst(t *testing.T) {
	mods := ast.ModConst
	if err := validateModifiers(mods, validPropertyMods, token.NoPos, "property"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileModuleBuildsPropertyMember(t *testing.T) {
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.PropertyDecl{
				Name:  "answer",
				Value: &ast.BasicLit{Kind: ast.IntLit, Value: "42"},
			},
		},
	}
	cm := CompileModule(file)
	if cm.Errs != nil {
		t.Fatalf("unexpected compile errors: %v", cm.Errs)
	}
	var m *value.Member
	for _, cand := range cm.Body.DirectMembers {
		if cand.Key == value.PropKey("answer") {
			m = cand
		}
	}
	if m == nil {
		t.Fatal("expected an 'answer' member in the module body")
	}
	frame := value.NewFrame(m.FrameDesc, nil)
	ctx := &value.EvalContext{Receiver: nil, Owner: nil, Frame: frame}
	got := m.Body.Eval(ctx)
	if value.IsBottom(got) {
		t.Fatalf("eval failed: %v", got)
	}
	if i, ok := got.(value.Int); !ok || i != 42 {
		t.Fatalf("got %v, want Int(42)", got)
	}
}

func TestCompileModuleResolvesForwardClassReference(t *testing.T) {
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.ClassDecl{
				Name:       "Derived",
				SuperClass: &ast.Ident{Name: "Base"},
			},
			&ast.ClassDecl{Name: "Base"},
		},
	}
	cm := CompileModule(file)
	if cm.Errs != nil {
		t.Fatalf("unexpected compile errors: %v", cm.Errs)
	}
}

func TestConstPropertyRejectsThisReference(t *testing.T) {
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.PropertyDecl{
				Modifiers: ast.ModConst,
				Name:      "c",
				Value:     &ast.ThisExpr{},
			},
		},
	}
	cm := CompileModule(file)
	if cm.Errs == nil {
		t.Fatal("expected a const-discipline error for 'this' in a const property")
	}
}

func TestConstPropertyRejectsNonConstPropertyRead(t *testing.T) {
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.PropertyDecl{Name: "plain", Value: &ast.BasicLit{Kind: ast.IntLit, Value: "1"}},
			&ast.PropertyDecl{
				Modifiers: ast.ModConst,
				Name:      "c",
				Value:     &ast.Ident{Name: "plain"},
			},
		},
	}
	cm := CompileModule(file)
	if cm.Errs == nil {
		t.Fatal("expected a needs-const error for an implicit property read in a const scope")
	}
}

func TestStringLiteralUnionCompilesToMembershipTest(t *testing.T) {
	c := newCompiler()
	c.push(ScopeBase, "")
	c.push(ScopeModule, "test")

	tc := c.compileType(&ast.UnionType{
		Members: []ast.TypeExpr{
			&ast.StringLitType{Value: "north"},
			&ast.StringLitType{Value: "south"},
		},
	})
	if _, ok := tc.(stringEnumType); !ok {
		t.Fatalf("got %T, want stringEnumType", tc)
	}
	if b := tc.Check(&value.EvalContext{}, value.String("south")); b != nil {
		t.Fatalf("expected \"south\" to satisfy the union, got %v", b)
	}
	if b := tc.Check(&value.EvalContext{}, value.String("up")); b == nil {
		t.Fatal("expected \"up\" to fail the union")
	}
	if b := tc.Check(&value.EvalContext{}, value.Int(1)); b == nil {
		t.Fatal("expected a non-String to fail the union")
	}
}

func TestConstrainedTypeChecksAgainstCustomThis(t *testing.T) {
	c := newCompiler()
	c.push(ScopeBase, "")
	c.push(ScopeModule, "test")

	tc := c.compileConstrainedType(&ast.ConstrainedType{
		Base: &ast.DeclaredType{Name: "Int"},
		Predicates: []ast.Expr{
			&ast.BinaryExpr{Op: ">", X: &ast.ThisExpr{}, Y: &ast.BasicLit{Kind: ast.IntLit, Value: "0"}},
		},
	})

	if b := tc.Check(&value.EvalContext{}, value.Int(5)); b != nil {
		t.Fatalf("expected Int(5) to satisfy constraint, got %v", b)
	}
	if b := tc.Check(&value.EvalContext{}, value.Int(-1)); b == nil {
		t.Fatal("expected Int(-1) to fail the constraint")
	}
}
