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

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/ast"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/literal"
	"pkl-lang.org/go/pkg/token"
)

// classMemberInfo is what resolve.go's classLookup needs to know about one
// class-scope binding without re-walking the AST.
type classMemberInfo struct {
	name    string
	isLocal bool
	isConst bool
}

// compiler holds the state threaded through one module's compilation: the
// lexical scope stack, accumulated diagnostics, and the per-class lookup
// tables resolve.go consults. It corresponds to no single teacher type —
// CUE's equivalent state lives spread across its compiler struct in
// internal/core/compile/compile.go; this is the same role, rebuilt for
// Pkl's class/object grammar instead of CUE's struct-literal grammar.
type compiler struct {
	stack               []*Scope
	errs                errors.Error
	classMembers        map[*Scope][]classMemberInfo
	classOpenOrAbstract map[*Scope]bool
	baseConstants       map[string]func() value.Value

	classesByName     map[string]*value.Class
	typeAliasesByName map[string]*value.TypeAlias
	classScopeByName  map[string]*Scope

	// newParents tracks the class a bare `new { ... }` should instantiate,
	// derived lexically from the enclosing property's declared type
	// (spec.md §4.3 "New-expression ... inferred parent"). nil entries mark
	// properties whose type names no class.
	newParents []*value.Class
}

func newCompiler() *compiler {
	c := &compiler{
		classMembers:        map[*Scope][]classMemberInfo{},
		classOpenOrAbstract: map[*Scope]bool{},
		classesByName:       map[string]*value.Class{},
		typeAliasesByName:   map[string]*value.TypeAlias{},
		classScopeByName:    map[string]*Scope{},
	}
	c.baseConstants = map[string]func() value.Value{
		"NaN":      func() value.Value { return value.Float(math.NaN()) },
		"Infinity": func() value.Value { return value.Float(math.Inf(1)) },
	}
	return c
}

func (c *compiler) top() *Scope {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

func (c *compiler) push(kind ScopeKind, name string) *Scope {
	s := pushScope(c.top(), kind, name)
	c.stack = append(c.stack, s)
	return s
}

func (c *compiler) pop() { c.stack = c.stack[:len(c.stack)-1] }

func (c *compiler) addErr(err errors.Error) { c.errs = errors.Append(c.errs, err) }

// ImportBinding is one `import "uri" as alias` declaration, resolved down
// to the frame slot its value lands in. internal/core/runtime loads Path
// (recursively compiling and instantiating it like any other module) and
// stores the result at Slot in the module's FrameInstance before any
// member referencing the alias is forced.
type ImportBinding struct {
	Alias string
	Path  string
	Slot  int
	Glob  bool
}

// CompiledModule is what CompileModule produces: the module's declarations
// lowered to a value.ObjectBody (spec.md §4.4's "Module object" is an
// amend target like any other, just with no literal parent syntax of its
// own — `amends`/`extends` supply one), the FrameDescriptor its import
// aliases are slotted into, and the raw target URIs named by `amends`/
// `extends`, left unresolved here since resolving a module URI to its
// compiled form is the loader's job, not the compiler's.
// internal/core/runtime does the rest: resolve AmendsURI/ExtendsURI and
// every ImportBinding to instantiated Objects, build the module's
// FrameInstance from Frame, and hand Body to the engine to produce the
// final module object.
type CompiledModule struct {
	Body       *value.ObjectBody
	Frame      *value.FrameDescriptor
	Imports    []ImportBinding
	AmendsURI  string // "" if the module has no `amends` clause
	ExtendsURI string // "" if the module has no `extends` clause

	// Classes are the module's class declarations, exposed so the runtime
	// can bind each prototype member's enclosing frame to the module's
	// import frame once that frame exists (imports are resolved after
	// compilation, by internal/core/runtime).
	Classes map[string]*value.Class

	Errs errors.Error
}

// CompileModule lowers a parsed file into a module object. Classes and
// type aliases are compiled in two passes so that forward and mutually
// recursive references between them (a very common Pkl pattern) resolve:
// pass one creates stub *value.Class/*value.TypeAlias and class scopes for
// every declaration, pass two fills in members, supertypes, and alias
// bodies once every name is registered.
func CompileModule(file *ast.File) *CompiledModule {
	c := newCompiler()
	c.push(ScopeBase, "")
	modScope := c.push(ScopeModule, file.Name)

	imports := make([]ImportBinding, 0, len(file.Imports))
	for _, imp := range file.Imports {
		alias := imp.Alias
		if alias == "" {
			alias = lastPathSegment(imp.Path)
		}
		slot := modScope.addLocalSlot(alias, value.SlotLocal, true)
		imports = append(imports, ImportBinding{Alias: alias, Path: imp.Path, Slot: slot, Glob: imp.IsGlob})
	}

	var amendsURI, extendsURI string
	if file.Amends != nil {
		uri, err := c.moduleURILit(file.Amends)
		if err != nil {
			c.addErr(err)
		}
		amendsURI = uri
	}
	if file.Extends != nil {
		uri, err := c.moduleURILit(file.Extends)
		if err != nil {
			c.addErr(err)
		}
		extendsURI = uri
	}

	// Pass one: register stubs so siblings can reference each other.
	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.ClassDecl:
			cls := &value.Class{Name: decl.Name, TypeParams: decl.TypeParams}
			c.classesByName[decl.Name] = cls
			classScope := c.push(ScopeClass, decl.Name)
			c.classOpenOrAbstract[classScope] = decl.Modifiers.Has(ast.ModOpen) || decl.Modifiers.Has(ast.ModAbstract)
			c.classScopeByName[decl.Name] = classScope
			c.pop()
		case *ast.TypeAliasDecl:
			c.typeAliasesByName[decl.Name] = &value.TypeAlias{Name: decl.Name, TypeParams: decl.TypeParams}
		}
	}

	members := make([]*value.Member, 0, len(file.Decls))
	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.ClassDecl:
			c.compileClassBody(decl)
		case *ast.TypeAliasDecl:
			c.compileTypeAliasBody(decl)
		case *ast.PropertyDecl:
			members = append(members, c.compilePropertyDecl(decl, modScope))
		case *ast.MethodDecl:
			members = append(members, c.compileMethodDecl(decl, modScope, false))
		}
	}
	c.pop() // module
	c.pop() // base

	body := &value.ObjectBody{Flavor: value.FlavorConstProperties, Variant: value.VariantDynamic, DirectMembers: members}
	return &CompiledModule{
		Body:       body,
		Frame:      modScope.Frame,
		Imports:    imports,
		AmendsURI:  amendsURI,
		ExtendsURI: extendsURI,
		Classes:    c.classesByName,
		Errs:       c.errs,
	}
}

// moduleURILit requires an `amends`/`extends` clause target to be a plain
// string literal naming a module URI (spec.md §3's moduleKey design: the
// target is resolved by the loader before the module is ever evaluated, so
// it cannot depend on anything the evaluator computes).
func (c *compiler) moduleURILit(e ast.Expr) (string, errors.Error) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != ast.StringLit {
		return "", errors.Newf(errors.Parse, e.Pos(), "amends/extends target must be a string literal module URI")
	}
	s, err := literal.Unquote(lit.Value, 0)
	if err != nil {
		return "", errors.Newf(errors.Parse, e.Pos(), "invalid String literal: %v", err)
	}
	return s, nil
}

func lastPathSegment(path string) string {
	last := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			last = path[i+1:]
			break
		}
	}
	for i := 0; i < len(last); i++ {
		if last[i] == '.' {
			return last[:i]
		}
	}
	return last
}

// compileClassBody fills in the stub class created in pass one: modifier
// validation, superclass linkage, and member compilation.
func (c *compiler) compileClassBody(decl *ast.ClassDecl) {
	cls := c.classesByName[decl.Name]
	cls.Abstract = decl.Modifiers.Has(ast.ModAbstract)
	cls.Open = decl.Modifiers.Has(ast.ModOpen)
	if decl.SuperClass != nil {
		if ident, ok := decl.SuperClass.(*ast.Ident); ok {
			if sup, ok := c.classesByName[ident.Name]; ok {
				cls.SuperClass = sup
			} else {
				c.addErr(errors.Newf(errors.NameResolution, ident.StartPos, "unknown superclass %q", ident.Name))
			}
		}
	}

	classScope := c.classScopeByName[decl.Name]
	c.stack = append(c.stack, classScope)

	var infos []classMemberInfo
	var declMembers []*value.Member
	for _, md := range decl.Members {
		switch m := md.(type) {
		case *ast.PropertyMember:
			infos = append(infos, classMemberInfo{name: m.Name, isLocal: m.Modifiers.Has(ast.ModLocal), isConst: m.Modifiers.Has(ast.ModConst)})
			classScope.addNonSlotBinding(m.Name, false, m.Modifiers.Has(ast.ModConst))
		case *ast.MethodMember:
			infos = append(infos, classMemberInfo{name: m.Name, isLocal: m.Modifiers.Has(ast.ModLocal), isConst: m.Modifiers.Has(ast.ModConst)})
			classScope.addNonSlotBinding(m.Name, true, m.Modifiers.Has(ast.ModConst))
		}
	}
	c.classMembers[classScope] = infos

	for _, md := range decl.Members {
		switch m := md.(type) {
		case *ast.PropertyMember:
			declMembers = append(declMembers, c.compileClassProperty(m, classScope))
		case *ast.MethodMember:
			declMembers = append(declMembers, c.compileClassMethod(m, classScope))
		}
	}
	cls.Members = declMembers

	proto := value.NewObject(value.VariantTyped, nil, nil)
	proto.Class = cls
	om := value.NewOrderedMembers()
	for _, m := range declMembers {
		om.Put(m)
	}
	proto.SetMembers(om)
	cls.Prototype = proto

	c.stack = c.stack[:len(c.stack)-1]
}

func (c *compiler) compileTypeAliasBody(decl *ast.TypeAliasDecl) {
	alias := c.typeAliasesByName[decl.Name]
	aliasScope := c.push(ScopeTypeAlias, decl.Name)
	aliasScope.TypeParams = decl.TypeParams
	alias.Type = c.compileType(decl.Type)
	c.pop()
}

var validPropertyMods = ast.ModLocal | ast.ModHidden | ast.ModConst | ast.ModFixed | ast.ModAbstract | ast.ModExternal

func validateModifiers(mods, allowed ast.Modifier, pos token.Pos, declKind string) errors.Error {
	if mods&^allowed != 0 {
		return errors.Newf(errors.Modifier, pos, "invalid modifier combination for %s", declKind)
	}
	if mods.Has(ast.ModLocal) && mods.Has(ast.ModHidden) {
		return errors.Newf(errors.Modifier, pos, "'local' and 'hidden' cannot be combined")
	}
	if mods.Has(ast.ModLocal) && mods.Has(ast.ModFixed) {
		return errors.Newf(errors.Modifier, pos, "'local' and 'fixed' cannot be combined")
	}
	if mods.Has(ast.ModAbstract) && mods.Has(ast.ModOpen) {
		return errors.Newf(errors.Modifier, pos, "'abstract' and 'open' cannot both be set on the same declaration")
	}
	return nil
}

func (c *compiler) compilePropertyDecl(decl *ast.PropertyDecl, owner *Scope) *value.Member {
	if err := validateModifiers(decl.Modifiers, validPropertyMods, decl.StartPos, "property"); err != nil {
		c.addErr(err)
	}
	mods := translateModifiers(decl.Modifiers) | value.ModClassMember
	m := &value.Member{
		Pos:           decl.StartPos,
		Modifiers:     mods,
		QualifiedName: joinQualified(owner.QualifiedName, ScopeProperty, decl.Name),
		Key:           value.PropKey(decl.Name),
	}
	c.compilePropertyTypeAndBody(m, decl.Name, decl.Modifiers, decl.Type, decl.Value)
	return m
}

func (c *compiler) compileClassProperty(decl *ast.PropertyMember, classScope *Scope) *value.Member {
	if err := validateModifiers(decl.Modifiers, validPropertyMods, decl.StartPos, "property"); err != nil {
		c.addErr(err)
	}
	mods := translateModifiers(decl.Modifiers) | value.ModClassMember
	m := &value.Member{
		Pos:           decl.StartPos,
		Modifiers:     mods,
		QualifiedName: joinQualified(classScope.QualifiedName, ScopeProperty, decl.Name),
		Key:           value.PropKey(decl.Name),
	}
	c.compilePropertyTypeAndBody(m, decl.Name, decl.Modifiers, decl.Type, decl.Value)
	return m
}

// compilePropertyTypeAndBody is the shared tail of every property form:
// both the type annotation and the value are compiled inside the
// property's own scope, so a constraint predicate's CustomThis frame
// chains off the property's runtime activation and a `const` property's
// body sees the raised const level (spec.md §4.3 "Const discipline").
func (c *compiler) compilePropertyTypeAndBody(m *value.Member, name string, mods ast.Modifier, typ ast.TypeExpr, val ast.Expr) {
	propScope := c.push(ScopeProperty, name)
	if mods.Has(ast.ModConst) {
		propScope.ConstLevel = ConstAll
	}
	if typ != nil {
		m.Type = c.compileType(typ)
	}
	if val != nil {
		c.pushNewParent(typ)
		m.Body = c.compileExpr(val)
		c.popNewParent()
	}
	m.FrameDesc = propScope.Frame
	c.pop()
}

// pushNewParent records the class the property's declared type names (if
// any) for the duration of its value expression, so a bare `new { ... }`
// inside can pick it up (spec.md §4.3 "inferred parent ... property →
// property type").
func (c *compiler) pushNewParent(typ ast.TypeExpr) {
	var cls *value.Class
	if dt, ok := typ.(*ast.DeclaredType); ok {
		cls = c.classesByName[dt.Name]
	}
	c.newParents = append(c.newParents, cls)
}

func (c *compiler) popNewParent() { c.newParents = c.newParents[:len(c.newParents)-1] }

func (c *compiler) inferredNewClass() *value.Class {
	if n := len(c.newParents); n > 0 {
		return c.newParents[n-1]
	}
	return nil
}

var validMethodMods = ast.ModLocal | ast.ModAbstract | ast.ModExternal

func (c *compiler) compileMethodDecl(decl *ast.MethodDecl, owner *Scope, isClassMethod bool) *value.Member {
	if err := validateModifiers(decl.Modifiers, validMethodMods, decl.StartPos, "method"); err != nil {
		c.addErr(err)
	}
	// Forcing a method member materializes its Function value in one
	// (empty) activation; calling the Function then allocates the real
	// parameter frame chained to it. Two runtime frames, so two scopes.
	memberScope := c.push(ScopeMethod, decl.Name)
	methodScope := c.push(ScopeMethod, "")
	params := make([]value.FunctionParam, len(decl.Params))
	for i, p := range decl.Params {
		methodScope.addLocalSlot(p.Name, value.SlotParam, true)
		var pt value.TypeCheck
		if p.Type != nil {
			pt = c.compileType(p.Type)
		}
		params[i] = value.FunctionParam{Name: p.Name, Type: pt}
	}
	var retType value.TypeCheck
	if decl.ReturnType != nil {
		retType = c.compileType(decl.ReturnType)
	}
	var bodyNode value.Node
	if decl.Body != nil {
		bodyNode = c.compileExpr(decl.Body)
	}
	frameDesc := methodScope.Frame
	c.pop()
	c.pop()

	mods := translateModifiers(decl.Modifiers) | value.ModClassMember
	fnLit := &funcLitNode{pos: decl.StartPos, params: params, frameDesc: frameDesc, body: bodyNode}
	m := &value.Member{
		Pos:           decl.StartPos,
		Modifiers:     mods,
		QualifiedName: memberScope.QualifiedName,
		Key:           value.PropKey(decl.Name),
		FrameDesc:     memberScope.Frame,
	}
	m.Body = &methodLitWithReturn{funcLitNode: fnLit, returnType: retType}
	return m
}

func (c *compiler) compileClassMethod(decl *ast.MethodMember, owner *Scope) *value.Member {
	return c.compileMethodDecl(&ast.MethodDecl{
		Modifiers:  decl.Modifiers,
		Name:       decl.Name,
		TypeParams: decl.TypeParams,
		Params:     decl.Params,
		ReturnType: decl.ReturnType,
		Body:       decl.Body,
		StartPos:   decl.StartPos,
		EndPos:     decl.EndPos,
	}, owner, true)
}

// methodLitWithReturn attaches a checked return type to the Function
// value a method member produces, since ast.MethodDecl keeps ReturnType
// separate from Body.
type methodLitWithReturn struct {
	*funcLitNode
	returnType value.TypeCheck
}

func (n *methodLitWithReturn) Eval(ctx *value.EvalContext) value.Value {
	fv := n.funcLitNode.Eval(ctx)
	fn := fv.(*value.Function)
	fn.ReturnType = n.returnType
	return fn
}

// translateModifiers maps the parser's ast.Modifier bitset onto value's
// (which adds compile-only flags like ModClassMember/ModTypeAlias).
func translateModifiers(m ast.Modifier) value.Modifier {
	var out value.Modifier
	if m.Has(ast.ModLocal) {
		out |= value.ModLocal
	}
	if m.Has(ast.ModHidden) {
		out |= value.ModHidden
	}
	if m.Has(ast.ModConst) {
		out |= value.ModConst
	}
	if m.Has(ast.ModFixed) {
		out |= value.ModFixed
	}
	if m.Has(ast.ModAbstract) {
		out |= value.ModAbstract
	}
	if m.Has(ast.ModExternal) {
		out |= value.ModExternal
	}
	if m.Has(ast.ModOpen) {
		out |= value.ModOpen
	}
	if m.Has(ast.ModDelete) {
		out |= value.ModDelete
	}
	return out
}

// ---- Expression compilation ----

func (c *compiler) compileExpr(e ast.Expr) value.Node {
	switch x := e.(type) {
	case *ast.BasicLit:
		return c.compileBasicLit(x)
	case *ast.InterpolatedString:
		return c.compileInterpolatedString(x)
	case *ast.Ident:
		return c.compileIdent(x)
	case *ast.BinaryExpr:
		return &binaryNode{pos: x.StartPos, op: x.Op, x: c.compileExpr(x.X), y: c.compileExpr(x.Y)}
	case *ast.UnaryExpr:
		if folded, ok := c.foldNegation(x); ok {
			return folded
		}
		return &unaryNode{pos: x.StartPos, op: x.Op, x: c.compileExpr(x.X)}
	case *ast.TernaryExpr:
		return &ternaryNode{pos: x.StartPos, cond: c.compileExpr(x.Cond), then: c.compileExpr(x.Then), els: c.compileExpr(x.Else)}
	case *ast.SelectorExpr:
		return &selectorNode{pos: x.StartPos, x: c.compileExpr(x.X), name: x.Sel}
	case *ast.SuperExpr:
		return &superNode{pos: x.StartPos, name: x.Sel}
	case *ast.OuterExpr:
		if c.top().ConstLevel == ConstAll {
			err := errors.Newf(errors.NameResolution, x.StartPos, "'outer' is not const in this scope")
			c.addErr(err)
			return &litNode{pos: x.StartPos, val: value.NewBottom(err)}
		}
		return &outerNode{pos: x.StartPos, name: x.Sel}
	case *ast.ModuleExpr:
		if c.top().ConstLevel == ConstAll {
			err := errors.Newf(errors.NameResolution, x.StartPos, "'module' is not const in this scope")
			c.addErr(err)
			return &litNode{pos: x.StartPos, val: value.NewBottom(err)}
		}
		return &moduleNode{pos: x.StartPos, name: x.Sel}
	case *ast.ThisExpr:
		return c.compileThisExpr(x)
	case *ast.IndexExpr:
		return c.compileIndexExpr(x)
	case *ast.CallExpr:
		args := make([]value.Node, len(x.Args))
		for i, a := range x.Args {
			args[i] = c.compileExpr(a)
		}
		return &methodCallNode{pos: x.StartPos, fun: c.compileExpr(x.Fun), args: args}
	case *ast.NewExpr:
		return c.compileNewExpr(x)
	case *ast.AmendExpr:
		body := c.compileObjectBody(x.Body, value.VariantDynamic)
		return &amendExprNode{pos: x.StartPos, parent: c.compileExpr(x.Parent), body: body}
	case *ast.ObjectLit:
		body := c.compileObjectBody(x.Body, value.VariantDynamic)
		return &amendExprNode{pos: x.StartPos, parent: &litNode{pos: x.StartPos, val: value.NewObject(value.VariantDynamic, nil, nil)}, body: body}
	case *ast.FunctionLit:
		return c.compileFunctionLit(x)
	case *ast.LetExpr:
		return c.compileLetExpr(x)
	case *ast.IfExpr:
		return &ifNode{pos: x.StartPos, cond: c.compileExpr(x.Cond), then: c.compileExpr(x.Then), els: c.compileExpr(x.Else)}
	case *ast.TraceExpr:
		return c.compileExpr(x.Value) // trace's side channel is a rendering concern, not evaluation
	}
	return &litNode{pos: e.Pos(), val: value.NewBottom(errors.Newf(errors.Bug, e.Pos(), "unsupported expression form"))}
}

func (c *compiler) compileBasicLit(x *ast.BasicLit) value.Node {
	switch x.Kind {
	case ast.NullLit:
		return &litNode{pos: x.StartPos, val: value.Null{}}
	case ast.BoolLit:
		return &litNode{pos: x.StartPos, val: value.Bool(x.Value == "true")}
	case ast.IntLit:
		n, err := literal.ParseInt(x.Value)
		if err != nil {
			return &litNode{pos: x.StartPos, val: value.NewBottom(errors.Newf(errors.Parse, x.StartPos, "invalid Int literal: %v", err))}
		}
		return &litNode{pos: x.StartPos, val: value.Int(n)}
	case ast.FloatLit:
		f, err := literal.ParseFloat(x.Value)
		if err != nil {
			return &litNode{pos: x.StartPos, val: value.NewBottom(errors.Newf(errors.Parse, x.StartPos, "invalid Float literal: %v", err))}
		}
		return &litNode{pos: x.StartPos, val: value.Float(f)}
	case ast.StringLit:
		s, err := literal.Unquote(x.Value, 0)
		if err != nil {
			return &litNode{pos: x.StartPos, val: value.NewBottom(errors.Newf(errors.Parse, x.StartPos, "invalid String literal: %v", err))}
		}
		return &litNode{pos: x.StartPos, val: value.String(s)}
	}
	return &litNode{pos: x.StartPos, val: value.NewBottom(errors.Newf(errors.Bug, x.StartPos, "unknown literal kind"))}
}

func (c *compiler) compileInterpolatedString(x *ast.InterpolatedString) value.Node {
	parts := make([]interpPart, len(x.Parts))
	for i, p := range x.Parts {
		if p.Expr != nil {
			parts[i] = interpPart{expr: c.compileExpr(p.Expr)}
		} else {
			s, _ := literal.Unquote(p.Text, 0)
			parts[i] = interpPart{text: s}
		}
	}
	return &interpNode{pos: x.StartPos, parts: parts}
}

// compileIdent resolves a bare identifier through the scope stack,
// producing the Node kind spec.md §4.3's five resolution outcomes call
// for.
func (c *compiler) compileIdent(x *ast.Ident) value.Node {
	res, err := c.resolve(x.Name, x.StartPos)
	if err != nil {
		c.addErr(err)
		return &litNode{pos: x.StartPos, val: value.NewBottom(err)}
	}
	switch res.Kind {
	case ResolveLocal:
		return &localRefNode{pos: x.StartPos, levelsUp: res.LevelsUp, slot: res.SlotIndex, name: res.Name}
	case ResolveMethod, ResolveClassProperty, ResolveDynamic:
		return &implicitPropertyNode{pos: x.StartPos, name: res.Name}
	case ResolveBaseConstant:
		getter := c.baseConstants[res.Name]
		return &baseConstNode{pos: x.StartPos, name: res.Name, get: getter}
	}
	return &litNode{pos: x.StartPos, val: value.NewBottom(errors.Newf(errors.Bug, x.StartPos, "unresolved identifier %q", x.Name))}
}

// compileThisExpr resolves `this` at build time where possible: inside a
// type-constraint predicate it is the CustomThis slot holding the value
// under test (spec.md §4.3 "CustomThis ... used by type constraints and
// member predicates"); inside a const scope it is rejected; everywhere
// else it stays a runtime receiver read.
func (c *compiler) compileThisExpr(x *ast.ThisExpr) value.Node {
	cur := c.top()
	for s := cur; s != nil; s = s.Parent {
		if s.Kind != ScopeCustomThis {
			continue
		}
		if b, ok := s.lookupLocal("this"); ok {
			return &localRefNode{pos: x.StartPos, levelsUp: cur.levelsTo(s), slot: b.slot, name: "this"}
		}
	}
	if cur.ConstLevel == ConstAll {
		err := errors.Newf(errors.NameResolution, x.StartPos, "'this' is not const in this scope")
		c.addErr(err)
		return &litNode{pos: x.StartPos, val: value.NewBottom(err)}
	}
	return &thisNode{pos: x.StartPos}
}

// foldNegation folds `-<literal>` into a single negative literal at build
// time (spec.md §4.3 "Literals ... with compile-time negation folding"),
// which also makes math.MinInt64 expressible without an overflow trap.
func (c *compiler) foldNegation(x *ast.UnaryExpr) (value.Node, bool) {
	if x.Op != "-" {
		return nil, false
	}
	lit, ok := x.X.(*ast.BasicLit)
	if !ok {
		return nil, false
	}
	switch lit.Kind {
	case ast.IntLit:
		n, err := literal.ParseInt("-" + lit.Value)
		if err != nil {
			err2 := errors.Newf(errors.Parse, x.StartPos, "invalid Int literal: %v", err)
			return &litNode{pos: x.StartPos, val: value.NewBottom(err2)}, true
		}
		return &litNode{pos: x.StartPos, val: value.Int(n)}, true
	case ast.FloatLit:
		f, err := literal.ParseFloat(lit.Value)
		if err != nil {
			err2 := errors.Newf(errors.Parse, x.StartPos, "invalid Float literal: %v", err)
			return &litNode{pos: x.StartPos, val: value.NewBottom(err2)}, true
		}
		return &litNode{pos: x.StartPos, val: value.Float(-f)}, true
	}
	return nil, false
}

func (c *compiler) compileIndexExpr(x *ast.IndexExpr) value.Node {
	xNode := c.compileExpr(x.X)
	idxNode := c.compileExpr(x.Index)
	return &indexNode{pos: x.StartPos, x: xNode, index: idxNode}
}

// builtinVariants maps the base-module object classes a `new T { ... }`
// may name onto the object-like Variant they construct directly, with no
// user class involved.
var builtinVariants = map[string]value.Variant{
	"Dynamic": value.VariantDynamic,
	"Listing": value.VariantListing,
	"Mapping": value.VariantMapping,
}

func (c *compiler) compileNewExpr(x *ast.NewExpr) value.Node {
	if x.Type != nil {
		dt, ok := x.Type.(*ast.DeclaredType)
		if !ok {
			err := errors.Newf(errors.Type, x.StartPos, "'new' requires a declared type")
			c.addErr(err)
			return &litNode{pos: x.StartPos, val: value.NewBottom(err)}
		}
		if variant, ok := builtinVariants[dt.Name]; ok {
			body := c.compileObjectBody(x.Body, variant)
			return &amendExprNode{pos: x.StartPos, parent: &litNode{pos: x.StartPos, val: value.NewObject(variant, nil, nil)}, body: body}
		}
		cls, ok := c.classesByName[dt.Name]
		if !ok {
			err := errors.Newf(errors.NameResolution, x.StartPos, "unknown class %q", dt.Name)
			c.addErr(err)
			return &litNode{pos: x.StartPos, val: value.NewBottom(err)}
		}
		body := c.compileObjectBody(x.Body, value.VariantTyped)
		return &newExprNode{pos: x.StartPos, body: body, classOf: func(ctx *value.EvalContext) (*value.Class, *value.Bottom) {
			return cls, nil
		}}
	}
	// Inferred parent (spec.md §4.3): the enclosing property's declared
	// type if it names a class, else the enclosing Typed object's runtime
	// class, else Dynamic (the class-method default).
	if cls := c.inferredNewClass(); cls != nil {
		body := c.compileObjectBody(x.Body, value.VariantTyped)
		return &newExprNode{pos: x.StartPos, body: body, classOf: func(ctx *value.EvalContext) (*value.Class, *value.Bottom) {
			return cls, nil
		}}
	}
	body := c.compileObjectBody(x.Body, value.VariantDynamic)
	return &newExprNode{pos: x.StartPos, body: body, classOf: func(ctx *value.EvalContext) (*value.Class, *value.Bottom) {
		if ctx.Owner != nil && ctx.Owner.Class != nil {
			return ctx.Owner.Class, nil
		}
		return nil, nil
	}}
}

func (c *compiler) compileFunctionLit(x *ast.FunctionLit) value.Node {
	lambda := c.push(ScopeClosure, "")
	params := make([]value.FunctionParam, len(x.Params))
	for i, p := range x.Params {
		lambda.addLocalSlot(p.Name, value.SlotParam, true)
		var pt value.TypeCheck
		if p.Type != nil {
			pt = c.compileType(p.Type)
		}
		params[i] = value.FunctionParam{Name: p.Name, Type: pt}
	}
	body := c.compileExpr(x.Body)
	frameDesc := lambda.Frame
	c.pop()
	return &funcLitNode{pos: x.StartPos, params: params, frameDesc: frameDesc, body: body}
}

func (c *compiler) compileLetExpr(x *ast.LetExpr) value.Node {
	valueNode := c.compileExpr(x.Value)
	letScope := c.push(ScopeLambda, x.Name) // let shares the enclosing frame, only adding one slot
	slot := letScope.addLocalSlot(x.Name, value.SlotLet, true)
	body := c.compileExpr(x.Body)
	c.pop()
	return &letNode{pos: x.StartPos, value: valueNode, slot: slot, body: body}
}

// ---- Object-body compilation ----

// compileObjectBody classifies and compiles a member list per spec.md
// §4.3's five-way BodyFlavor split, descending into a fresh ScopeObject so
// property/entry/element bodies see `this`-relative lookups correctly.
func (c *compiler) compileObjectBody(members []ast.Member, variant value.Variant) *value.ObjectBody {
	objScope := c.push(ScopeObject, "")
	defer c.pop()

	body := &value.ObjectBody{Variant: variant}
	hasDynamicKey, hasElements, hasGenerators := false, false, false

	for _, md := range members {
		switch m := md.(type) {
		case *ast.PropertyMember:
			body.DirectMembers = append(body.DirectMembers, c.compileBodyProperty(m, objScope))
		case *ast.EntryMember:
			mem, dynamic := c.compileBodyEntry(m, objScope)
			hasDynamicKey = hasDynamicKey || dynamic
			body.DirectMembers = append(body.DirectMembers, mem)
		case *ast.ElementMember:
			hasElements = true
			body.DirectMembers = append(body.DirectMembers, c.compileBodyElement(m, objScope, len(body.DirectMembers)))
		case *ast.WhenMember:
			hasGenerators = true
			body.Generators = append(body.Generators, c.compileWhenMember(m, objScope))
		case *ast.ForMember:
			hasGenerators = true
			body.Generators = append(body.Generators, c.compileForMember(m, objScope))
		case *ast.SpreadMember:
			hasGenerators = true
			body.Generators = append(body.Generators, &spreadGenerator{pos: m.StartPos, x: c.compileExpr(m.Value)})
		case *ast.MemberPredicateMember:
			hasGenerators = true
			body.Generators = append(body.Generators, c.compileMemberPredicate(m, objScope))
		}
	}

	switch {
	case hasGenerators:
		body.Flavor = value.FlavorGenerator
	case hasElements:
		body.Flavor = value.FlavorElements
	case hasDynamicKey:
		body.Flavor = value.FlavorMixedEntries
	case len(body.DirectMembers) > 0 && body.DirectMembers[0].Key.Kind == value.EntryMember:
		body.Flavor = value.FlavorConstEntries
	default:
		body.Flavor = value.FlavorConstProperties
	}
	return body
}

func (c *compiler) compileBodyProperty(m *ast.PropertyMember, owner *Scope) *value.Member {
	// `delete` is only meaningful inside an amending body, so the object-
	// body mask allows it where the declaration mask does not.
	if err := validateModifiers(m.Modifiers, validPropertyMods|ast.ModDelete, m.StartPos, "property"); err != nil {
		c.addErr(err)
	}
	owner.addNonSlotBinding(m.Name, false, m.Modifiers.Has(ast.ModConst))
	mem := &value.Member{
		Pos:           m.StartPos,
		Modifiers:     translateModifiers(m.Modifiers),
		QualifiedName: joinQualified(owner.QualifiedName, ScopeProperty, m.Name),
		Key:           value.PropKey(m.Name),
	}
	c.compilePropertyTypeAndBody(mem, m.Name, m.Modifiers, m.Type, m.Value)
	return mem
}

// compileBodyEntry compiles `[key] = value`. The actual MemberKey isn't
// known until keyNode is forced, so the member's static Key field is left
// as a bare EntryMember placeholder; eval.Amend forces KeyNode() first and
// rebuilds the real MemberKey before inserting into the object's member
// map (spec.md §4.4 "constant-keyed entry" / "mixed entries").
func (c *compiler) compileBodyEntry(m *ast.EntryMember, owner *Scope) (*value.Member, bool) {
	entryScope := c.push(ScopeEntry, "")
	keyNode := c.compileExpr(m.Key)
	valNode := c.compileExpr(m.Value)
	frameDesc := entryScope.Frame
	c.pop()

	dynamic := !isConstKeyExpr(m.Key)
	mem := &value.Member{
		Pos:       m.StartPos,
		Key:       value.MemberKey{Kind: value.EntryMember},
		FrameDesc: frameDesc,
		Body:      &entryBodyNode{keyNode: keyNode, valNode: valNode},
	}
	return mem, dynamic
}

// entryBodyNode bundles an entry's key and value expressions; the engine
// forces KeyNode() first (to compute the actual MemberKey at amend time)
// and then Eval's normally for the member's stored value.
type entryBodyNode struct {
	keyNode, valNode value.Node
}

func (n *entryBodyNode) Pos() token.Pos                          { return n.keyNode.Pos() }
func (n *entryBodyNode) Eval(ctx *value.EvalContext) value.Value { return n.valNode.Eval(ctx) }
func (n *entryBodyNode) KeyNode() value.Node                     { return n.keyNode }

func isConstKeyExpr(e ast.Expr) bool {
	_, ok := e.(*ast.BasicLit)
	return ok
}

func (c *compiler) compileBodyElement(m *ast.ElementMember, owner *Scope, index int) *value.Member {
	// An element body gets its own activation when forced, exactly like an
	// entry's value; ScopeEntry is the frame-owning scope kind for both.
	elemScope := c.push(ScopeEntry, "")
	valNode := c.compileExpr(m.Value)
	frameDesc := elemScope.Frame
	c.pop()
	return &value.Member{
		Pos:       m.StartPos,
		Key:       value.ElemKey(index),
		Body:      valNode,
		FrameDesc: frameDesc,
	}
}

func (c *compiler) compileWhenMember(m *ast.WhenMember, owner *Scope) *whenGenerator {
	cond := c.compileExpr(m.Cond)
	thenBody := c.compileObjectBody(m.Then, value.VariantDynamic)
	var elseMembers []*value.Member
	if m.Else != nil {
		elseBody := c.compileObjectBody(m.Else, value.VariantDynamic)
		elseMembers = elseBody.DirectMembers
	}
	return &whenGenerator{pos: m.StartPos, cond: cond, then: thenBody.DirectMembers, els: elseMembers}
}

func (c *compiler) compileForMember(m *ast.ForMember, owner *Scope) *forGenerator {
	iterable := c.compileExpr(m.Iterable)
	forScope := c.push(ScopeForGenerator, "")
	keySlot := -1
	if m.KeyName != "" {
		keySlot = forScope.addLocalSlot(m.KeyName, value.SlotForKey, true)
	}
	valSlot := forScope.addLocalSlot(m.ValName, value.SlotForValue, true)
	c.push(ScopeForEager, "")
	body := c.compileObjectBody(m.Body, value.VariantDynamic)
	c.pop()
	frameDesc := forScope.Frame
	c.pop()
	return &forGenerator{
		pos:          m.StartPos,
		iterable:     iterable,
		frameDesc:    frameDesc,
		keySlot:      keySlot,
		valSlot:      valSlot,
		bodyTemplate: body.DirectMembers,
		rebind:       rebindFrame,
	}
}

func (c *compiler) compileMemberPredicate(m *ast.MemberPredicateMember, owner *Scope) *memberPredicateGenerator {
	predScope := c.push(ScopeForGenerator, "")
	keySlot := predScope.addLocalSlot(m.KeyName, value.SlotForKey, true)
	pred := c.compileExpr(m.Predicate)
	body := c.compileObjectBody(m.Body, value.VariantDynamic)
	frameDesc := predScope.Frame
	c.pop()
	return &memberPredicateGenerator{
		pos:       m.StartPos,
		keySlot:   keySlot,
		frameDesc: frameDesc,
		predicate: pred,
		rebind:    rebindFrame,
		body:      body.DirectMembers,
	}
}

// rebindFrame returns copies of body whose EnclosingFrame is the given
// per-iteration frame instance (holding that iteration's key/value
// bindings), so each loop iteration's members see their own bindings once
// the engine later builds their own activation as
// NewFrame(member.FrameDesc, member.EnclosingFrame). This indirection
// exists so for/predicate bodies can be expanded once per iteration
// without recompiling.
func rebindFrame(body []*value.Member, frame *value.FrameInstance) []*value.Member {
	out := make([]*value.Member, len(body))
	for i, m := range body {
		cp := *m
		cp.EnclosingFrame = frame
		out[i] = &cp
	}
	return out
}

// indexNode is `x[y]`: List/Map/Mapping/Listing subscript.
type indexNode struct {
	pos      token.Pos
	x, index value.Node
}

func (n *indexNode) Pos() token.Pos { return n.pos }
func (n *indexNode) Eval(ctx *value.EvalContext) value.Value {
	xv := n.x.Eval(ctx)
	if value.IsBottom(xv) {
		return xv
	}
	iv := n.index.Eval(ctx)
	if value.IsBottom(iv) {
		return iv
	}
	switch x := xv.(type) {
	case *value.List:
		i, ok := iv.(value.Int)
		if !ok || int(i) < 0 || int(i) >= len(x.Elems) {
			return value.NewBottom(errors.Newf(errors.Io, n.pos, "list index out of range"))
		}
		return x.Elems[i]
	case *value.Map:
		v, ok := x.Get(iv)
		if !ok {
			return value.NewBottom(errors.Newf(errors.Io, n.pos, "key not found in Map"))
		}
		return v
	case *value.Object:
		key := value.EntryKey(iv)
		if x.Kind() == value.ListingKind {
			if i, ok := iv.(value.Int); ok {
				key = value.ElemKey(int(i))
			}
		}
		return ctx.Engine.Force(x, key)
	}
	return value.NewBottom(errors.Newf(errors.Type, n.pos, "cannot index a %s", xv.Kind()))
}
