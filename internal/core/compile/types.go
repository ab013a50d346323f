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
	"fmt"
	"strings"

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/ast"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

// builtinKinds maps the base-module class names spec.md §3's value table
// names onto their runtime Kind, for the classes whose type check is just
// a Kind test.
var builtinKinds = map[string]value.Kind{
	"Boolean":   value.BoolKind,
	"Int":       value.IntKind,
	"Float":     value.FloatKind,
	"Number":    value.FloatKind,
	"String":    value.StringKind,
	"Duration":  value.DurationKind,
	"DataSize":  value.DataSizeKind,
	"Pair":      value.PairKind,
	"IntSeq":    value.IntSeqKind,
	"Regex":     value.RegexKind,
	"List":      value.ListKind,
	"Set":       value.SetKind,
	"Map":       value.MapKind,
	"Listing":   value.ListingKind,
	"Mapping":   value.MappingKind,
	"Dynamic":   value.DynamicKind,
	"Class":     value.ClassKind,
	"TypeAlias": value.TypeAliasKind,
}

// compileType lowers a parsed type annotation into a TypeCheck, resolving
// DeclaredType names against the module's class/type-alias tables built in
// CompileModule's first pass.
func (c *compiler) compileType(t ast.TypeExpr) value.TypeCheck {
	switch x := t.(type) {
	case *ast.UnknownType:
		return unknownType{}
	case *ast.NothingType:
		return nothingType{pos: x.StartPos}
	case *ast.ModuleType:
		return moduleType{pos: x.StartPos}
	case *ast.DeclaredType:
		return c.compileDeclaredType(x)
	case *ast.NullableType:
		return nullableType{pos: x.StartPos, elem: c.compileType(x.Elem)}
	case *ast.StringLitType:
		return stringLitType{pos: x.StartPos, value: x.Value}
	case *ast.UnionType:
		if t, ok := compileStringEnum(x); ok {
			return t
		}
		members := make([]value.TypeCheck, len(x.Members))
		for i, m := range x.Members {
			members[i] = c.compileType(m)
		}
		return unionType{pos: x.StartPos, members: members, defaultIndex: x.DefaultIndex}
	case *ast.ConstrainedType:
		return c.compileConstrainedType(x)
	case *ast.FunctionType:
		return functionType{pos: x.StartPos, arity: len(x.Params)}
	}
	return unknownType{}
}

func (c *compiler) compileDeclaredType(x *ast.DeclaredType) value.TypeCheck {
	if x.Name == "Any" {
		return anyType{}
	}
	if kind, ok := builtinKinds[x.Name]; ok {
		return kindType{pos: x.StartPos, name: x.Name, kind: kind}
	}
	if cls, ok := c.classesByName[x.Name]; ok {
		return classType{pos: x.StartPos, cls: cls}
	}
	if alias, ok := c.typeAliasesByName[x.Name]; ok {
		return aliasRefType{pos: x.StartPos, alias: alias}
	}
	c.addErr(errors.Newf(errors.NameResolution, x.StartPos, "unknown type %q", x.Name))
	return unknownType{}
}

// aliasRefType defers to a TypeAlias's Type, which may not be filled in
// yet at the point a forward-referencing DeclaredType is compiled (two
// mutually recursive typealiases), so it reads alias.Type lazily rather
// than copying it at construction time.
type aliasRefType struct {
	pos   token.Pos
	alias *value.TypeAlias
}

func (t aliasRefType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	if t.alias.Type == nil {
		return value.NewBottom(errors.Newf(errors.Bug, t.pos, "typealias %q has no definition", t.alias.Name))
	}
	return t.alias.Type.Check(ctx, v)
}
func (t aliasRefType) String() string { return t.alias.Name }

func (c *compiler) compileConstrainedType(x *ast.ConstrainedType) value.TypeCheck {
	base := c.compileType(x.Base)
	customThis := c.push(ScopeCustomThis, "")
	slot := customThis.addLocalSlot("this", value.SlotCustomThis, true)
	preds := make([]value.Node, len(x.Predicates))
	for i, p := range x.Predicates {
		preds[i] = c.compileExpr(p)
	}
	frameDesc := customThis.Frame
	c.pop()
	_ = slot // the predicate frame's sole slot is always index 0
	return constrainedType{pos: x.StartPos, base: base, name: base.String() + "(...)", predicates: preds, frameDesc: frameDesc}
}

// unknownType is Pkl's `unknown`; every value satisfies it.
type unknownType struct{}

func (unknownType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom { return nil }
func (unknownType) String() string                                            { return "unknown" }

// nothingType is Pkl's `nothing`; no value satisfies it. Where the
// annotation appears is not validated; it compiles in any type position.
type nothingType struct{ pos token.Pos }

func (t nothingType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected nothing, got a value"))
}
func (nothingType) String() string { return "nothing" }

// kindType checks the value's runtime Kind against one expected Kind, used
// for the base scalar/collection classes (`Int`, `String`, `List`, ...).
type kindType struct {
	pos      token.Pos
	name     string
	kind     value.Kind
	subclass func(value.Value) bool // optional extra structural check (e.g. Int8 range)
}

func (t kindType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	if v.Kind() != t.kind {
		return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected type %s, got %s", t.name, v.Kind()))
	}
	if t.subclass != nil && !t.subclass(v) {
		return value.NewBottom(errors.Newf(errors.Type, t.pos, "value is not a valid %s", t.name))
	}
	return nil
}
func (t kindType) String() string { return t.name }

// anyType is `Any`; like unknownType but named distinctly for diagnostics.
type anyType struct{}

func (anyType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom { return nil }
func (anyType) String() string                                            { return "Any" }

// classType checks membership in a Typed class hierarchy: v must be a
// *value.Object whose Class is cls or a subclass of cls.
type classType struct {
	pos token.Pos
	cls *value.Class
}

func (t classType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	obj, ok := v.(*value.Object)
	if !ok || obj.Class == nil {
		return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected instance of %s, got %s", t.cls.Name, v.Kind()))
	}
	for c := obj.Class; c != nil; c = c.SuperClass {
		if c == t.cls {
			return nil
		}
	}
	return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected instance of %s, got instance of %s", t.cls.Name, obj.Class.Name))
}
func (t classType) String() string { return t.cls.Name }

// nullableType is `T?`.
type nullableType struct {
	pos  token.Pos
	elem value.TypeCheck
}

func (t nullableType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	if _, isNull := v.(value.Null); isNull {
		return nil
	}
	return t.elem.Check(ctx, v)
}
func (t nullableType) String() string { return t.elem.String() + "?" }

// stringLitType is a single string-literal type: only that exact string
// satisfies it.
type stringLitType struct {
	pos   token.Pos
	value string
}

func (t stringLitType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	if s, ok := v.(value.String); ok && string(s) == t.value {
		return nil
	}
	return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected %q, got %v", t.value, v))
}
func (t stringLitType) String() string { return `"` + t.value + `"` }

// compileStringEnum recognizes a union made entirely of string literals
// and compiles it to a set-membership test instead of a linear member
// walk (spec.md §4.3 "a union entirely of string literals is compiled to
// a more efficient membership test").
func compileStringEnum(x *ast.UnionType) (value.TypeCheck, bool) {
	values := make(map[string]bool, len(x.Members))
	var name strings.Builder
	for i, m := range x.Members {
		lit, ok := m.(*ast.StringLitType)
		if !ok {
			return nil, false
		}
		values[lit.Value] = true
		if i > 0 {
			name.WriteByte('|')
		}
		name.WriteString(`"` + lit.Value + `"`)
	}
	if len(values) == 0 {
		return nil, false
	}
	return stringEnumType{pos: x.StartPos, name: name.String(), values: values}, true
}

// stringEnumType is the membership-test compilation of an all-string-
// literal union.
type stringEnumType struct {
	pos    token.Pos
	name   string
	values map[string]bool
}

func (t stringEnumType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	if s, ok := v.(value.String); ok && t.values[string(s)] {
		return nil
	}
	return value.NewBottom(errors.Newf(errors.Type, t.pos, "value does not match any member of union type %s", t.name))
}
func (t stringEnumType) String() string { return t.name }

// unionType is `A|B|C`; defaultIndex marks the member a renderer or
// new-expression would pick when no value is supplied (-1 if the union
// declares no default).
type unionType struct {
	pos          token.Pos
	members      []value.TypeCheck
	defaultIndex int
}

func (t unionType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	for _, m := range t.members {
		if m.Check(ctx, v) == nil {
			return nil
		}
	}
	return value.NewBottom(errors.Newf(errors.Type, t.pos, "value does not match any member of union type %s", t.String()))
}
func (t unionType) String() string {
	s := ""
	for i, m := range t.members {
		if i > 0 {
			s += "|"
		}
		s += m.String()
	}
	return s
}

// constrainedType is `Base(pred, pred, ...)`; predicates run against a
// CustomThis frame bound to the candidate value (spec.md §4.3).
type constrainedType struct {
	pos        token.Pos
	base       value.TypeCheck
	name       string
	predicates []value.Node
	frameDesc  *value.FrameDescriptor
}

func (t constrainedType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	if b := t.base.Check(ctx, v); b != nil {
		return b
	}
	frame := value.NewFrame(t.frameDesc, ctx.Frame)
	predCtx := &value.EvalContext{Receiver: objectOf(v), Owner: ctx.Owner, Frame: frame, Engine: ctx.Engine}
	frame.Set(0, v)
	for _, p := range t.predicates {
		pv := p.Eval(predCtx)
		if value.IsBottom(pv) {
			return pv.(*value.Bottom)
		}
		ok, isBool := pv.(value.Bool)
		if !isBool {
			return value.NewBottom(errors.Newf(errors.Type, t.pos, "constraint predicate must produce a Boolean"))
		}
		if !bool(ok) {
			return value.NewBottom(errors.Newf(errors.Type, p.Pos(), "value does not satisfy constraint of type %s", t.name))
		}
	}
	return nil
}
func (t constrainedType) String() string { return t.name }

func objectOf(v value.Value) *value.Object {
	if o, ok := v.(*value.Object); ok {
		return o
	}
	return nil
}

// functionType checks that v is a Function with a matching arity; full
// parameter/result type checking of function *values* happens at call
// sites, per spec.md §4.5, so this only validates shape.
type functionType struct {
	pos   token.Pos
	arity int
}

func (t functionType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	fn, ok := v.(*value.Function)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected a Function, got %s", v.Kind()))
	}
	if len(fn.Params) != t.arity {
		return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected a %d-ary function, got %d-ary", t.arity, len(fn.Params)))
	}
	return nil
}
func (t functionType) String() string { return fmt.Sprintf("Function%d", t.arity) }

// moduleType matches spec.md's `module` type annotation: v must be a
// module object (an Object with a ModuleName); which module is not checked.
type moduleType struct{ pos token.Pos }

func (t moduleType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	obj, ok := v.(*value.Object)
	if !ok || obj.ModuleName == "" {
		return value.NewBottom(errors.Newf(errors.Type, t.pos, "expected module, got %s", v.Kind()))
	}
	return nil
}
func (moduleType) String() string { return "module" }
