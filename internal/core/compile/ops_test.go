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
	"math"
	"strings"
	"testing"

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/ast"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

func wantBottomKind(t *testing.T, v value.Value, kind errors.Kind, substr string) {
	t.Helper()
	b, ok := v.(*value.Bottom)
	if !ok {
		t.Fatalf("got %#v, want a Bottom", v)
	}
	if b.Err.Kind() != kind {
		t.Fatalf("got kind %v, want %v (%v)", b.Err.Kind(), kind, b.Err)
	}
	if substr != "" && !strings.Contains(b.Err.Error(), substr) {
		t.Fatalf("error %q does not mention %q", b.Err.Error(), substr)
	}
}

func TestIntAdditionTrapsOnOverflow(t *testing.T) {
	got := applyBinaryOp("+", value.Int(math.MaxInt64), value.Int(1), token.NoPos)
	wantBottomKind(t, got, errors.Arithmetic, "overflow")
}

func TestIntSubtractionTrapsOnOverflow(t *testing.T) {
	got := applyBinaryOp("-", value.Int(math.MinInt64), value.Int(1), token.NoPos)
	wantBottomKind(t, got, errors.Arithmetic, "overflow")
}

func TestIntMultiplicationTrapsOnOverflow(t *testing.T) {
	got := applyBinaryOp("*", value.Int(math.MaxInt64), value.Int(2), token.NoPos)
	wantBottomKind(t, got, errors.Arithmetic, "overflow")

	got = applyBinaryOp("*", value.Int(3), value.Int(4), token.NoPos)
	if n, ok := got.(value.Int); !ok || n != 12 {
		t.Fatalf("3 * 4 = %#v, want Int(12)", got)
	}
}

func TestIntDivisionByZeroIsError(t *testing.T) {
	wantBottomKind(t, applyBinaryOp("~/", value.Int(1), value.Int(0), token.NoPos), errors.Arithmetic, "division by zero")
	wantBottomKind(t, applyBinaryOp("%", value.Int(1), value.Int(0), token.NoPos), errors.Arithmetic, "division by zero")
}

func TestUnaryMinusTrapsOnMinInt(t *testing.T) {
	wantBottomKind(t, applyUnaryOp("-", value.Int(math.MinInt64), token.NoPos), errors.Arithmetic, "overflow")
}

func TestFloatDivisionFollowsIEEE(t *testing.T) {
	got := applyBinaryOp("/", value.Float(1), value.Float(0), token.NoPos)
	f, ok := got.(value.Float)
	if !ok || !math.IsInf(float64(f), 1) {
		t.Fatalf("1.0 / 0.0 = %#v, want +Inf", got)
	}
}

func TestRangeOperatorBuildsIntSeq(t *testing.T) {
	got := applyBinaryOp("..", value.Int(1), value.Int(5), token.NoPos)
	seq, ok := got.(value.IntSeq)
	if !ok || seq.Start != 1 || seq.End != 5 || seq.Step != 1 {
		t.Fatalf("1..5 = %#v, want IntSeq{1,5,1}", got)
	}
}

func TestStringComparisonRejectsMixedOperands(t *testing.T) {
	wantBottomKind(t, applyBinaryOp("<", value.String("a"), value.Int(1), token.NoPos), errors.Type, "")
}

func TestPipeAppliesFunction(t *testing.T) {
	// doubled = 21 |> ((x) -> x * 2)
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.PropertyDecl{
				Name: "doubled",
				Value: &ast.BinaryExpr{
					Op: "|>",
					X:  intLit("21"),
					Y: &ast.FunctionLit{
						Params: []*ast.Param{{Name: "x"}},
						Body:   &ast.BinaryExpr{Op: "*", X: &ast.Ident{Name: "x"}, Y: intLit("2")},
					},
				},
			},
		},
	}
	e, obj := buildModule(t, file)
	got := e.Force(obj, value.PropKey("doubled"))
	if !isInt(got, 42) {
		t.Fatalf("doubled = %#v, want Int(42)", got)
	}
}

func TestMethodCallBindsParamsAndClosure(t *testing.T) {
	// function double(x) = x * 2
	// result = double(21)
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.MethodDecl{
				Name:   "double",
				Params: []*ast.Param{{Name: "x"}},
				Body:   &ast.BinaryExpr{Op: "*", X: &ast.Ident{Name: "x"}, Y: intLit("2")},
			},
			&ast.PropertyDecl{
				Name:  "result",
				Value: &ast.CallExpr{Fun: &ast.Ident{Name: "double"}, Args: []ast.Expr{intLit("21")}},
			},
		},
	}
	e, obj := buildModule(t, file)
	got := e.Force(obj, value.PropKey("result"))
	if !isInt(got, 42) {
		t.Fatalf("result = %#v, want Int(42)", got)
	}
}

func TestLetBindingIsVisibleAcrossAClosureCall(t *testing.T) {
	// scaled = let a = 2 in ((x) -> x * a)(21)
	file := &ast.File{
		Name: "test",
		Decls: []ast.Decl{
			&ast.PropertyDecl{
				Name: "scaled",
				Value: &ast.LetExpr{
					Name:  "a",
					Value: intLit("2"),
					Body: &ast.CallExpr{
						Fun: &ast.FunctionLit{
							Params: []*ast.Param{{Name: "x"}},
							Body:   &ast.BinaryExpr{Op: "*", X: &ast.Ident{Name: "x"}, Y: &ast.Ident{Name: "a"}},
						},
						Args: []ast.Expr{intLit("21")},
					},
				},
			},
		},
	}
	e, obj := buildModule(t, file)
	got := e.Force(obj, value.PropKey("scaled"))
	if !isInt(got, 42) {
		t.Fatalf("scaled = %#v, want Int(42)", got)
	}
}

func TestNegationFoldingProducesNegativeLiteral(t *testing.T) {
	c := newCompiler()
	c.push(ScopeBase, "")
	c.push(ScopeModule, "test")
	n := c.compileExpr(&ast.UnaryExpr{Op: "-", X: intLit("7")})
	lit, ok := n.(*litNode)
	if !ok {
		t.Fatalf("got %T, want a folded literal", n)
	}
	if v, ok := lit.val.(value.Int); !ok || v != -7 {
		t.Fatalf("folded value = %#v, want Int(-7)", lit.val)
	}
}
