// Copyright 2018 The CUE Authors
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

// Package ast defines the concrete parse tree contract the IR builder
// (internal/core/compile) consumes. Producing these nodes from source text
// is the parser's job (spec.md §1 names it an external collaborator); this
// package only fixes the shape a parser must emit, mirroring cue/ast but
// specialized to Pkl's module/class/object grammar.
package ast

import "pkl-lang.org/go/pkg/token"

// Node is satisfied by every AST node; Pos/End bound its source span so the
// compiler can attach precise diagnostics (spec.md §4.3 "Diagnostics").
type Node interface {
	Pos() token.Pos
	End() token.Pos
}

// Modifier is one of the bitset flags spec.md §3 lists on a Member.
type Modifier uint32

const (
	ModLocal Modifier = 1 << iota
	ModHidden
	ModConst
	ModFixed
	ModAbstract
	ModExternal
	ModOpen
	ModDelete
)

func (m Modifier) Has(f Modifier) bool { return m&f != 0 }

// ---- Module ----

// File is the root of one parsed module.
type File struct {
	Name      string // declared module name, or "" if inferred from URI
	Amends    Expr   // amends clause target, or nil
	Extends   Expr   // extends clause target, or nil
	Imports   []*ImportDecl
	Decls     []Decl
	StartPos  token.Pos
	EndPos    token.Pos
	DocRanges []DocRange // §3 moduleInfo "doc section ranges"
}

func (f *File) Pos() token.Pos { return f.StartPos }
func (f *File) End() token.Pos { return f.EndPos }

// DocRange marks a documentation comment block's source span.
type DocRange struct {
	Start, End token.Pos
}

// ImportDecl is `import "uri" as alias` or a glob import.
type ImportDecl struct {
	Path     string
	Alias    string // "" if none supplied
	IsGlob   bool
	StartPos token.Pos
	EndPos   token.Pos
}

func (d *ImportDecl) Pos() token.Pos { return d.StartPos }
func (d *ImportDecl) End() token.Pos { return d.EndPos }

// Decl is a top-level or class-body declaration.
type Decl interface {
	Node
	declNode()
}

// ClassDecl declares `class Name extends Base { ... }`.
type ClassDecl struct {
	Modifiers  Modifier
	Name       string
	TypeParams []string
	SuperClass Expr // nil if none (extends pkl:base Any implicitly)
	Members    []Member
	StartPos   token.Pos
	EndPos     token.Pos
}

func (d *ClassDecl) Pos() token.Pos { return d.StartPos }
func (d *ClassDecl) End() token.Pos { return d.EndPos }
func (*ClassDecl) declNode()        {}

// TypeAliasDecl declares `typealias Name = Type`.
type TypeAliasDecl struct {
	Modifiers  Modifier
	Name       string
	TypeParams []string
	Type       TypeExpr
	StartPos   token.Pos
	EndPos     token.Pos
}

func (d *TypeAliasDecl) Pos() token.Pos { return d.StartPos }
func (d *TypeAliasDecl) End() token.Pos { return d.EndPos }
func (*TypeAliasDecl) declNode()        {}

// PropertyDecl is a top-level (module-scope) property.
type PropertyDecl struct {
	Modifiers Modifier
	Name      string
	Type      TypeExpr // nil if inferred
	Value     Expr     // nil if abstract/external
	StartPos  token.Pos
	EndPos    token.Pos
}

func (d *PropertyDecl) Pos() token.Pos { return d.StartPos }
func (d *PropertyDecl) End() token.Pos { return d.EndPos }
func (*PropertyDecl) declNode()        {}

// MethodDecl declares a method at module or class scope.
type MethodDecl struct {
	Modifiers  Modifier
	Name       string
	TypeParams []string
	Params     []*Param
	ReturnType TypeExpr
	Body       Expr // nil if abstract/external
	StartPos   token.Pos
	EndPos     token.Pos
}

func (d *MethodDecl) Pos() token.Pos { return d.StartPos }
func (d *MethodDecl) End() token.Pos { return d.EndPos }
func (*MethodDecl) declNode()        {}

// Param is one method/function parameter; Name == "_" marks the anonymous
// pattern that skips type checking at call sites (spec.md §4.5 "Methods").
type Param struct {
	Name string
	Type TypeExpr
}

// ---- Object-body members ----

// Member is one property/entry/element/generator construct inside an
// object literal or class body.
type Member interface {
	Node
	memberNode()
}

// PropertyMember is `name = expr` or `name { ... }` inside an object body.
type PropertyMember struct {
	Modifiers Modifier
	Name      string
	Type      TypeExpr
	Value     Expr
	StartPos  token.Pos
	EndPos    token.Pos
}

func (m *PropertyMember) Pos() token.Pos { return m.StartPos }
func (m *PropertyMember) End() token.Pos { return m.EndPos }
func (*PropertyMember) memberNode()      {}

// EntryMember is `[key] = value` inside a Mapping/Dynamic body.
type EntryMember struct {
	Key      Expr // constant-foldable or dynamic
	Value    Expr
	StartPos token.Pos
	EndPos   token.Pos
}

func (m *EntryMember) Pos() token.Pos { return m.StartPos }
func (m *EntryMember) End() token.Pos { return m.EndPos }
func (*EntryMember) memberNode()      {}

// ElementMember is a bare `value` inside a Listing/Dynamic body.
type ElementMember struct {
	Value    Expr
	StartPos token.Pos
	EndPos   token.Pos
}

func (m *ElementMember) Pos() token.Pos { return m.StartPos }
func (m *ElementMember) End() token.Pos { return m.EndPos }
func (*ElementMember) memberNode()      {}

// WhenMember is `when (cond) { thenMembers } else { elseMembers }`.
type WhenMember struct {
	Cond     Expr
	Then     []Member
	Else     []Member // nil if no else clause
	StartPos token.Pos
	EndPos   token.Pos
}

func (m *WhenMember) Pos() token.Pos { return m.StartPos }
func (m *WhenMember) End() token.Pos { return m.EndPos }
func (*WhenMember) memberNode()      {}

// ForMember is `for (k, v in iterable) { body }`; KeyName may be "" if only
// a single binding is declared.
type ForMember struct {
	KeyName  string
	ValName  string
	Iterable Expr
	Body     []Member
	StartPos token.Pos
	EndPos   token.Pos
}

func (m *ForMember) Pos() token.Pos { return m.StartPos }
func (m *ForMember) End() token.Pos { return m.EndPos }
func (*ForMember) memberNode()      {}

// SpreadMember is `...expr`.
type SpreadMember struct {
	Value    Expr
	StartPos token.Pos
	EndPos   token.Pos
}

func (m *SpreadMember) Pos() token.Pos { return m.StartPos }
func (m *SpreadMember) End() token.Pos { return m.EndPos }
func (*SpreadMember) memberNode()      {}

// MemberPredicateMember is `[[pred]] { body }`, applied to every existing
// entry/element of the parent whose key satisfies pred.
type MemberPredicateMember struct {
	KeyName   string // binding name for the candidate key inside Predicate
	Predicate Expr
	Body      []Member
	StartPos  token.Pos
	EndPos    token.Pos
}

func (m *MemberPredicateMember) Pos() token.Pos { return m.StartPos }
func (m *MemberPredicateMember) End() token.Pos { return m.EndPos }
func (*MemberPredicateMember) memberNode()      {}

// MethodMember declares a method inside a class body. Module-scope methods
// use the top-level MethodDecl instead; class bodies use this Member
// variant so methods interleave with properties in declaration order.
type MethodMember struct {
	Modifiers  Modifier
	Name       string
	TypeParams []string
	Params     []*Param
	ReturnType TypeExpr
	Body       Expr // nil if abstract/external
	StartPos   token.Pos
	EndPos     token.Pos
}

func (m *MethodMember) Pos() token.Pos { return m.StartPos }
func (m *MethodMember) End() token.Pos { return m.EndPos }
func (*MethodMember) memberNode()      {}

// ---- Expressions ----

// Expr is any expression node.
type Expr interface {
	Node
	exprNode()
}

// Ident is a bare identifier reference, resolved by the symbol table.
type Ident struct {
	Name     string
	StartPos token.Pos
}

func (e *Ident) Pos() token.Pos { return e.StartPos }
func (e *Ident) End() token.Pos { return token.Pos{} }
func (*Ident) exprNode()        {}

// BasicLit is a literal null/bool/int/float/string token.
type BasicLitKind int

const (
	NullLit BasicLitKind = iota
	BoolLit
	IntLit
	FloatLit
	StringLit
)

type BasicLit struct {
	Kind     BasicLitKind
	Value    string // raw token text, unescaped by the compiler
	StartPos token.Pos
}

func (e *BasicLit) Pos() token.Pos { return e.StartPos }
func (e *BasicLit) End() token.Pos { return token.Pos{} }
func (*BasicLit) exprNode()        {}

// InterpolatedString is a string literal containing `\(expr)` splices.
type InterpolatedString struct {
	Parts    []StringPart
	StartPos token.Pos
	EndPos   token.Pos
}

func (e *InterpolatedString) Pos() token.Pos { return e.StartPos }
func (e *InterpolatedString) End() token.Pos { return e.EndPos }
func (*InterpolatedString) exprNode()        {}

// StringPart is either a constant run of text or a spliced expression.
type StringPart struct {
	Text string // valid iff Expr == nil
	Expr Expr
}

// BinaryExpr covers arithmetic, comparison, equality, logical, pipe, and
// null-coalesce operators, distinguished by Op.
type BinaryExpr struct {
	Op       string
	X, Y     Expr
	StartPos token.Pos
}

func (e *BinaryExpr) Pos() token.Pos { return e.StartPos }
func (e *BinaryExpr) End() token.Pos { return e.Y.End() }
func (*BinaryExpr) exprNode()        {}

// UnaryExpr covers unary minus, unary `!`.
type UnaryExpr struct {
	Op       string
	X        Expr
	StartPos token.Pos
}

func (e *UnaryExpr) Pos() token.Pos { return e.StartPos }
func (e *UnaryExpr) End() token.Pos { return e.X.End() }
func (*UnaryExpr) exprNode()        {}

// TernaryExpr is `cond then expr else expr`, written `cond ? a : b`.
type TernaryExpr struct {
	Cond, Then, Else Expr
	StartPos         token.Pos
}

func (e *TernaryExpr) Pos() token.Pos { return e.StartPos }
func (e *TernaryExpr) End() token.Pos { return e.Else.End() }
func (*TernaryExpr) exprNode()        {}

// SelectorExpr reads a property off an explicit receiver: `x.y`.
type SelectorExpr struct {
	X        Expr
	Sel      string
	StartPos token.Pos
}

func (e *SelectorExpr) Pos() token.Pos { return e.X.Pos() }
func (e *SelectorExpr) End() token.Pos { return e.StartPos }
func (*SelectorExpr) exprNode()        {}

// SuperExpr is `super.name` or `super[name]`.
type SuperExpr struct {
	Sel      string
	StartPos token.Pos
}

func (e *SuperExpr) Pos() token.Pos { return e.StartPos }
func (e *SuperExpr) End() token.Pos { return e.StartPos }
func (*SuperExpr) exprNode()        {}

// OuterExpr is `outer.name`, reading from the lexically enclosing object.
type OuterExpr struct {
	Sel      string
	StartPos token.Pos
}

func (e *OuterExpr) Pos() token.Pos { return e.StartPos }
func (e *OuterExpr) End() token.Pos { return e.StartPos }
func (*OuterExpr) exprNode()        {}

// ModuleExpr is `module.name`, reading a property off the module object.
type ModuleExpr struct {
	Sel      string
	StartPos token.Pos
}

func (e *ModuleExpr) Pos() token.Pos { return e.StartPos }
func (e *ModuleExpr) End() token.Pos { return e.StartPos }
func (*ModuleExpr) exprNode()        {}

// ThisExpr is the bare `this` keyword.
type ThisExpr struct{ StartPos token.Pos }

func (e *ThisExpr) Pos() token.Pos { return e.StartPos }
func (e *ThisExpr) End() token.Pos { return e.StartPos }
func (*ThisExpr) exprNode()        {}

// IndexExpr is `x[y]`.
type IndexExpr struct {
	X, Index Expr
	StartPos token.Pos
}

func (e *IndexExpr) Pos() token.Pos { return e.X.Pos() }
func (e *IndexExpr) End() token.Pos { return e.Index.End() }
func (*IndexExpr) exprNode()        {}

// CallExpr is `f(args...)`, receiver-qualified or bare.
type CallExpr struct {
	Fun      Expr
	Args     []Expr
	StartPos token.Pos
	EndPos   token.Pos
}

func (e *CallExpr) Pos() token.Pos { return e.Fun.Pos() }
func (e *CallExpr) End() token.Pos { return e.EndPos }
func (*CallExpr) exprNode()        {}

// NewExpr is `new T { body }`; Type is nil when the parent is inferred
// lexically (spec.md §4.3 "New-expression").
type NewExpr struct {
	Type     TypeExpr
	Body     []Member
	StartPos token.Pos
	EndPos   token.Pos
}

func (e *NewExpr) Pos() token.Pos { return e.StartPos }
func (e *NewExpr) End() token.Pos { return e.EndPos }
func (*NewExpr) exprNode()        {}

// AmendExpr is `expr { body }`, amending the value of expr.
type AmendExpr struct {
	Parent   Expr
	Body     []Member
	StartPos token.Pos
	EndPos   token.Pos
}

func (e *AmendExpr) Pos() token.Pos { return e.Parent.Pos() }
func (e *AmendExpr) End() token.Pos { return e.EndPos }
func (*AmendExpr) exprNode()        {}

// ObjectLit is a standalone `{ body }` with an inferred Dynamic parent.
type ObjectLit struct {
	Body     []Member
	StartPos token.Pos
	EndPos   token.Pos
}

func (e *ObjectLit) Pos() token.Pos { return e.StartPos }
func (e *ObjectLit) End() token.Pos { return e.EndPos }
func (*ObjectLit) exprNode()        {}

// FunctionLit is an anonymous `(params) -> body` closure.
type FunctionLit struct {
	Params   []*Param
	Body     Expr
	StartPos token.Pos
}

func (e *FunctionLit) Pos() token.Pos { return e.StartPos }
func (e *FunctionLit) End() token.Pos { return e.Body.End() }
func (*FunctionLit) exprNode()        {}

// LetExpr is `let x = value in body`.
type LetExpr struct {
	Name     string
	Value    Expr
	Body     Expr
	StartPos token.Pos
}

func (e *LetExpr) Pos() token.Pos { return e.StartPos }
func (e *LetExpr) End() token.Pos { return e.Body.End() }
func (*LetExpr) exprNode()        {}

// IfExpr is `if (cond) then else else`.
type IfExpr struct {
	Cond, Then, Else Expr
	StartPos         token.Pos
}

func (e *IfExpr) Pos() token.Pos { return e.StartPos }
func (e *IfExpr) End() token.Pos { return e.Else.End() }
func (*IfExpr) exprNode()        {}

// TraceExpr is `trace(message, value)`.
type TraceExpr struct {
	Message  Expr
	Value    Expr
	StartPos token.Pos
}

func (e *TraceExpr) Pos() token.Pos { return e.StartPos }
func (e *TraceExpr) End() token.Pos { return e.Value.End() }
func (*TraceExpr) exprNode()        {}

// ---- Types ----

// TypeExpr is any type annotation node (spec.md §4.3 "Type nodes").
type TypeExpr interface {
	Node
	typeNode()
}

type UnknownType struct{ StartPos token.Pos }

func (t *UnknownType) Pos() token.Pos { return t.StartPos }
func (t *UnknownType) End() token.Pos { return t.StartPos }
func (*UnknownType) typeNode()        {}

type NothingType struct{ StartPos token.Pos }

func (t *NothingType) Pos() token.Pos { return t.StartPos }
func (t *NothingType) End() token.Pos { return t.StartPos }
func (*NothingType) typeNode()        {}

type ModuleType struct{ StartPos token.Pos }

func (t *ModuleType) Pos() token.Pos { return t.StartPos }
func (t *ModuleType) End() token.Pos { return t.StartPos }
func (*ModuleType) typeNode()        {}

// DeclaredType names a class or typealias, optionally parameterized.
type DeclaredType struct {
	Name     string
	Args     []TypeExpr
	StartPos token.Pos
}

func (t *DeclaredType) Pos() token.Pos { return t.StartPos }
func (t *DeclaredType) End() token.Pos { return t.StartPos }
func (*DeclaredType) typeNode()        {}

// StringLitType is a string-literal type, e.g. the members of
// `"north"|"south"|"east"|"west"`.
type StringLitType struct {
	Value    string // already unquoted by the parser
	StartPos token.Pos
}

func (t *StringLitType) Pos() token.Pos { return t.StartPos }
func (t *StringLitType) End() token.Pos { return t.StartPos }
func (*StringLitType) typeNode()        {}

type NullableType struct {
	Elem     TypeExpr
	StartPos token.Pos
}

func (t *NullableType) Pos() token.Pos { return t.StartPos }
func (t *NullableType) End() token.Pos { return t.Elem.End() }
func (*NullableType) typeNode()        {}

// UnionType is `A|B|C`; DefaultIndex names the member chosen when a value
// must be produced without further context (-1 if none declared).
type UnionType struct {
	Members      []TypeExpr
	DefaultIndex int
	StartPos     token.Pos
}

func (t *UnionType) Pos() token.Pos { return t.StartPos }
func (t *UnionType) End() token.Pos { return t.StartPos }
func (*UnionType) typeNode()        {}

// ConstrainedType is `Base(predicate, predicate, ...)`.
type ConstrainedType struct {
	Base       TypeExpr
	Predicates []Expr
	StartPos   token.Pos
}

func (t *ConstrainedType) Pos() token.Pos { return t.StartPos }
func (t *ConstrainedType) End() token.Pos { return t.StartPos }
func (*ConstrainedType) typeNode()        {}

type FunctionType struct {
	Params   []TypeExpr
	Result   TypeExpr
	StartPos token.Pos
}

func (t *FunctionType) Pos() token.Pos { return t.StartPos }
func (t *FunctionType) End() token.Pos { return t.Result.End() }
func (*FunctionType) typeNode()        {}
