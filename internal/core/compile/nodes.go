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
	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

// litNode wraps an already-folded constant; used where a constant has to
// be supplied as a Node rather than through the member-level ConstValue
// fast path.
type litNode struct {
	pos token.Pos
	val value.Value
}

func (n *litNode) Pos() token.Pos                          { return n.pos }
func (n *litNode) Eval(ctx *value.EvalContext) value.Value { return n.val }

// localRefNode reads a lexical local/parameter by frame slot (spec.md
// §4.3 ResolveLocal outcome).
type localRefNode struct {
	pos      token.Pos
	levelsUp int
	slot     int
	name     string
}

func (n *localRefNode) Pos() token.Pos { return n.pos }
func (n *localRefNode) Eval(ctx *value.EvalContext) value.Value {
	f := ctx.Frame.Up(n.levelsUp)
	if f == nil {
		return value.NewBottom(errors.Newf(errors.Bug, n.pos, "missing frame for local %q", n.name))
	}
	return f.Get(n.slot)
}

// implicitPropertyNode reads a property off the implicit receiver: bare
// `name` inside an object body that resolved to a class property or an
// unqualified runtime property (spec.md §4.3 "implicit receiver"). When
// the receiver itself has no such member, the read climbs the enclosing-
// owner chain (spec.md §3 "enclosing owner (for lexical scoping of
// unqualified names)"), so a body can reference module-level siblings.
type implicitPropertyNode struct {
	pos  token.Pos
	name string
}

func (n *implicitPropertyNode) Pos() token.Pos { return n.pos }
func (n *implicitPropertyNode) Eval(ctx *value.EvalContext) value.Value {
	key := value.PropKey(n.name)
	if ctx.Receiver != nil {
		if _, ok := ctx.Receiver.Lookup(key); ok {
			return ctx.Engine.Force(ctx.Receiver, key)
		}
	}
	for o := ctx.Owner; o != nil; o = o.Owner {
		if _, ok := o.Lookup(key); ok {
			return ctx.Engine.Force(o, key)
		}
	}
	return value.NewBottom(errors.Newf(errors.NameResolution, n.pos, "cannot resolve property %q", n.name))
}

// selectorNode reads a property off an explicit receiver expression.
type selectorNode struct {
	pos  token.Pos
	x    value.Node
	name string
}

func (n *selectorNode) Pos() token.Pos { return n.pos }
func (n *selectorNode) Eval(ctx *value.EvalContext) value.Value {
	xv := n.x.Eval(ctx)
	if value.IsBottom(xv) {
		return xv
	}
	obj, ok := xv.(*value.Object)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "cannot read property %q of a %s", n.name, xv.Kind()))
	}
	return ctx.Engine.Force(obj, value.PropKey(n.name))
}

// superNode reads `super.name`: it walks the parent chain starting at
// owner.Parent, then forces against the *current* receiver (spec.md §4.5
// "Super reads").
type superNode struct {
	pos  token.Pos
	name string
}

func (n *superNode) Pos() token.Pos { return n.pos }
func (n *superNode) Eval(ctx *value.EvalContext) value.Value {
	owner := ctx.Owner
	if owner == nil || owner.Parent == nil {
		return value.NewBottom(errors.Newf(errors.NameResolution, n.pos, "no super class for %q", n.name))
	}
	ancestor := owner.Parent
	for ancestor != nil {
		if _, ok := ancestor.Lookup(value.PropKey(n.name)); ok {
			return ctx.Engine.ForceOn(ctx.Receiver, ancestor, value.PropKey(n.name))
		}
		ancestor = ancestor.Parent
	}
	return value.NewBottom(errors.Newf(errors.NameResolution, n.pos, "super has no property %q", n.name))
}

// outerNode reads `outer.name` from the lexically enclosing object.
type outerNode struct {
	pos  token.Pos
	name string
}

func (n *outerNode) Pos() token.Pos { return n.pos }
func (n *outerNode) Eval(ctx *value.EvalContext) value.Value {
	if ctx.Owner == nil || ctx.Owner.Owner == nil {
		return value.NewBottom(errors.Newf(errors.NameResolution, n.pos, "no enclosing object for 'outer.%s'", n.name))
	}
	return ctx.Engine.Force(ctx.Owner.Owner, value.PropKey(n.name))
}

// moduleNode reads `module.name` off the enclosing module object.
type moduleNode struct {
	pos  token.Pos
	name string
}

func (n *moduleNode) Pos() token.Pos { return n.pos }
func (n *moduleNode) Eval(ctx *value.EvalContext) value.Value {
	m := ctx.Owner
	for m != nil && m.ModuleName == "" {
		m = m.Owner
	}
	if m == nil {
		return value.NewBottom(errors.Newf(errors.NameResolution, n.pos, "no module in scope for 'module.%s'", n.name))
	}
	return ctx.Engine.Force(m, value.PropKey(n.name))
}

// thisNode is the bare `this` reference.
type thisNode struct{ pos token.Pos }

func (n *thisNode) Pos() token.Pos { return n.pos }
func (n *thisNode) Eval(ctx *value.EvalContext) value.Value {
	// A constraint predicate's frame binds the candidate value to a
	// CustomThis slot named "this" (spec.md §4.3); prefer that over the
	// receiver so `this` inside `Base(this > 0)` refers to the value under
	// test, not the enclosing object.
	if ctx.Frame != nil {
		if idx, ok := ctx.Frame.Desc.IndexOf("this"); ok {
			return ctx.Frame.Get(idx)
		}
	}
	return ctx.Receiver
}

// baseConstNode reads a memoized pkl:base constant (spec.md §4.3
// "base-module constant (memoized on the BaseScope)").
type baseConstNode struct {
	pos  token.Pos
	name string
	get  func() value.Value
}

func (n *baseConstNode) Pos() token.Pos                          { return n.pos }
func (n *baseConstNode) Eval(ctx *value.EvalContext) value.Value { return n.get() }

// methodCallNode invokes a resolved method/function value.
type methodCallNode struct {
	pos  token.Pos
	fun  value.Node
	args []value.Node
}

func (n *methodCallNode) Pos() token.Pos { return n.pos }
func (n *methodCallNode) Eval(ctx *value.EvalContext) value.Value {
	fv := n.fun.Eval(ctx)
	if value.IsBottom(fv) {
		return fv
	}
	fn, ok := fv.(*value.Function)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "cannot call a %s", fv.Kind()))
	}
	args := make([]value.Value, len(n.args))
	for i, a := range n.args {
		av := a.Eval(ctx)
		if value.IsBottom(av) {
			return av
		}
		args[i] = av
	}
	return callFunction(ctx, fn, args, n.pos)
}

// callFunction applies fn to args in a fresh frame chained to its
// closure, type-checking parameters unless they use the anonymous `_`
// pattern (spec.md §4.5 "Methods").
func callFunction(ctx *value.EvalContext, fn *value.Function, args []value.Value, pos token.Pos) value.Value {
	if len(args) != len(fn.Params) {
		return value.NewBottom(errors.Newf(errors.Type, pos, "expected %d arguments, got %d", len(fn.Params), len(args)))
	}
	frame := value.NewFrame(fn.FrameDesc, fn.Closure)
	callCtx := &value.EvalContext{Receiver: fn.Receiver, Owner: fn.Owner, Frame: frame, Engine: ctx.Engine}
	for i, p := range fn.Params {
		if p.Name != "_" && p.Type != nil {
			if b := p.Type.Check(callCtx, args[i]); b != nil {
				return b
			}
		}
		frame.Set(i, args[i])
	}
	result := fn.Body.Eval(callCtx)
	if value.IsBottom(result) {
		return result
	}
	if fn.ReturnType != nil {
		if b := fn.ReturnType.Check(callCtx, result); b != nil {
			return b
		}
	}
	return result
}

// binaryNode covers arithmetic/comparison/equality/logical/pipe/null-
// coalesce operators; specialization per operand Kind happens in ops.go.
type binaryNode struct {
	pos  token.Pos
	op   string
	x, y value.Node
}

func (n *binaryNode) Pos() token.Pos { return n.pos }
func (n *binaryNode) Eval(ctx *value.EvalContext) value.Value {
	if n.op == "&&" || n.op == "||" {
		return evalShortCircuit(ctx, n)
	}
	if n.op == "??" {
		xv := n.x.Eval(ctx)
		if value.IsBottom(xv) {
			return xv
		}
		if _, isNull := xv.(value.Null); isNull {
			return n.y.Eval(ctx)
		}
		return xv
	}
	if n.op == "|>" {
		return evalPipe(ctx, n)
	}
	xv := n.x.Eval(ctx)
	if value.IsBottom(xv) {
		return xv
	}
	yv := n.y.Eval(ctx)
	if value.IsBottom(yv) {
		return yv
	}
	return applyBinaryOp(n.op, xv, yv, n.pos)
}

func evalShortCircuit(ctx *value.EvalContext, n *binaryNode) value.Value {
	xv := n.x.Eval(ctx)
	if value.IsBottom(xv) {
		return xv
	}
	xb, ok := xv.(value.Bool)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "expected Boolean, got %s", xv.Kind()))
	}
	if n.op == "&&" && !bool(xb) {
		return value.Bool(false)
	}
	if n.op == "||" && bool(xb) {
		return value.Bool(true)
	}
	yv := n.y.Eval(ctx)
	if value.IsBottom(yv) {
		return yv
	}
	if _, ok := yv.(value.Bool); !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "expected Boolean, got %s", yv.Kind()))
	}
	return yv
}

// evalPipe is `x |> f`: apply the one-argument function f to x.
func evalPipe(ctx *value.EvalContext, n *binaryNode) value.Value {
	xv := n.x.Eval(ctx)
	if value.IsBottom(xv) {
		return xv
	}
	fv := n.y.Eval(ctx)
	if value.IsBottom(fv) {
		return fv
	}
	fn, ok := fv.(*value.Function)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "right operand of '|>' must be a Function, got %s", fv.Kind()))
	}
	return callFunction(ctx, fn, []value.Value{xv}, n.pos)
}

// unaryNode covers unary `-` and `!`.
type unaryNode struct {
	pos token.Pos
	op  string
	x   value.Node
}

func (n *unaryNode) Pos() token.Pos { return n.pos }
func (n *unaryNode) Eval(ctx *value.EvalContext) value.Value {
	xv := n.x.Eval(ctx)
	if value.IsBottom(xv) {
		return xv
	}
	return applyUnaryOp(n.op, xv, n.pos)
}

// ternaryNode is `cond ? then : else`.
type ternaryNode struct {
	pos             token.Pos
	cond, then, els value.Node
}

func (n *ternaryNode) Pos() token.Pos { return n.pos }
func (n *ternaryNode) Eval(ctx *value.EvalContext) value.Value {
	cv := n.cond.Eval(ctx)
	if value.IsBottom(cv) {
		return cv
	}
	b, ok := cv.(value.Bool)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "expected Boolean condition, got %s", cv.Kind()))
	}
	if bool(b) {
		return n.then.Eval(ctx)
	}
	return n.els.Eval(ctx)
}

// interpNode evaluates an interpolated string's spliced expressions and
// concatenates them with the constant runs (spec.md §4.3 "Interpolated
// string").
type interpNode struct {
	pos   token.Pos
	parts []interpPart
}

type interpPart struct {
	text string
	expr value.Node
}

func (n *interpNode) Pos() token.Pos { return n.pos }
func (n *interpNode) Eval(ctx *value.EvalContext) value.Value {
	var out []byte
	for _, p := range n.parts {
		if p.expr == nil {
			out = append(out, p.text...)
			continue
		}
		v := p.expr.Eval(ctx)
		if value.IsBottom(v) {
			return v
		}
		s, b := forceToString(v, n.pos)
		if b != nil {
			return b
		}
		out = append(out, s...)
	}
	return value.String(out)
}

func forceToString(v value.Value, pos token.Pos) (string, *value.Bottom) {
	switch x := v.(type) {
	case value.String:
		return string(x), nil
	case value.Int:
		return formatInt(int64(x)), nil
	case value.Float:
		return formatFloat(float64(x)), nil
	case value.Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case value.Null:
		return "null", nil
	case value.Duration:
		return formatFloat(x.Magnitude) + "." + x.Unit.String(), nil
	case value.DataSize:
		return formatFloat(x.Magnitude) + "." + x.Unit.String(), nil
	default:
		return "", value.NewBottom(errors.Newf(errors.Type, pos, "cannot convert %s to String", v.Kind()))
	}
}

// newExprNode constructs `new T { ... }` / amend bodies via the engine.
type newExprNode struct {
	pos     token.Pos
	classOf func(ctx *value.EvalContext) (*value.Class, *value.Bottom)
	body    *value.ObjectBody
}

func (n *newExprNode) Pos() token.Pos { return n.pos }
func (n *newExprNode) Eval(ctx *value.EvalContext) value.Value {
	class, b := n.classOf(ctx)
	if b != nil {
		return b
	}
	if class == nil {
		// No class was declared or inferable; `new { ... }` falls back to a
		// fresh Dynamic (spec.md §4.3 "class method → implicit Dynamic").
		return ctx.Engine.Amend(value.NewObject(value.VariantDynamic, nil, nil), ctx.Receiver, ctx.Frame, n.body)
	}
	return ctx.Engine.NewInstance(class, ctx.Receiver, ctx.Frame, n.body)
}

// amendExprNode constructs `expr { ... }`.
type amendExprNode struct {
	pos    token.Pos
	parent value.Node
	body   *value.ObjectBody
}

func (n *amendExprNode) Pos() token.Pos { return n.pos }
func (n *amendExprNode) Eval(ctx *value.EvalContext) value.Value {
	pv := n.parent.Eval(ctx)
	if value.IsBottom(pv) {
		return pv
	}
	base, ok := pv.(*value.Object)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "cannot amend a %s", pv.Kind()))
	}
	return ctx.Engine.Amend(base, ctx.Receiver, ctx.Frame, n.body)
}

// funcLitNode evaluates to a first-class Function value, capturing the
// current frame as its closure (spec.md §9 "Capture is by reference").
type funcLitNode struct {
	pos       token.Pos
	params    []value.FunctionParam
	frameDesc *value.FrameDescriptor
	body      value.Node
}

func (n *funcLitNode) Pos() token.Pos { return n.pos }
func (n *funcLitNode) Eval(ctx *value.EvalContext) value.Value {
	return &value.Function{
		Params:    n.params,
		Body:      n.body,
		FrameDesc: n.frameDesc,
		Closure:   ctx.Frame,
		Receiver:  ctx.Receiver,
		Owner:     ctx.Owner,
	}
}

// letNode is `let x = value in body`; x is const within body.
type letNode struct {
	pos   token.Pos
	value value.Node
	slot  int
	body  value.Node
}

func (n *letNode) Pos() token.Pos { return n.pos }
func (n *letNode) Eval(ctx *value.EvalContext) value.Value {
	v := n.value.Eval(ctx)
	if value.IsBottom(v) {
		return v
	}
	ctx.Frame.Set(n.slot, v)
	return n.body.Eval(ctx)
}

// ifNode is `if (cond) then else else`.
type ifNode struct {
	pos             token.Pos
	cond, then, els value.Node
}

func (n *ifNode) Pos() token.Pos { return n.pos }
func (n *ifNode) Eval(ctx *value.EvalContext) value.Value {
	cv := n.cond.Eval(ctx)
	if value.IsBottom(cv) {
		return cv
	}
	b, ok := cv.(value.Bool)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "expected Boolean condition, got %s", cv.Kind()))
	}
	if bool(b) {
		return n.then.Eval(ctx)
	}
	return n.els.Eval(ctx)
}
