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

// whenGenerator implements `when (cond) { ... } else { ... }` (spec.md
// §4.5 "Generators"): cond is evaluated once at expansion time and only
// the chosen branch's members are produced.
type whenGenerator struct {
	pos       token.Pos
	cond      value.Node
	then, els []*value.Member
}

func (g *whenGenerator) Pos() token.Pos { return g.pos }
func (g *whenGenerator) Expand(ctx *value.EvalContext) ([]*value.Member, *value.Bottom) {
	cv := g.cond.Eval(ctx)
	if value.IsBottom(cv) {
		return nil, cv.(*value.Bottom)
	}
	b, ok := cv.(value.Bool)
	if !ok {
		return nil, value.NewBottom(errors.Newf(errors.Type, g.pos, "when condition must be Boolean, got %s", cv.Kind()))
	}
	if bool(b) {
		return g.then, nil
	}
	return g.els, nil
}

// forGenerator implements `for (k, v in iterable) { ... }`. Each iteration
// step gets its own FrameInstance chained to ctx.Frame so nested closures
// capture that iteration's bindings by reference (spec.md §9).
type forGenerator struct {
	pos          token.Pos
	iterable     value.Node
	frameDesc    *value.FrameDescriptor
	keySlot      int // -1 if no key binding declared
	valSlot      int
	bodyTemplate []*value.Member // re-instantiated per iteration, frame swapped in
	rebind       func(body []*value.Member, frame *value.FrameInstance) []*value.Member
}

func (g *forGenerator) Pos() token.Pos { return g.pos }
func (g *forGenerator) Expand(ctx *value.EvalContext) ([]*value.Member, *value.Bottom) {
	iv := g.iterable.Eval(ctx)
	if value.IsBottom(iv) {
		return nil, iv.(*value.Bottom)
	}
	pairs, b := iterationPairs(ctx, iv, g.pos)
	if b != nil {
		return nil, b
	}
	var out []*value.Member
	for _, p := range pairs {
		frame := value.NewFrame(g.frameDesc, ctx.Frame)
		if g.keySlot >= 0 {
			frame.Set(g.keySlot, p.key)
		}
		frame.Set(g.valSlot, p.val)
		out = append(out, g.rebind(g.bodyTemplate, frame)...)
	}
	return out, nil
}

type kvPair struct{ key, val value.Value }

// iterationPairs enumerates spec.md §4.5's generator sources: List/Set
// elements (key is the 0-based index), Map/Mapping entries, and Listing
// elements.
func iterationPairs(ctx *value.EvalContext, v value.Value, pos token.Pos) ([]kvPair, *value.Bottom) {
	switch x := v.(type) {
	case *value.List:
		pairs := make([]kvPair, len(x.Elems))
		for i, e := range x.Elems {
			pairs[i] = kvPair{key: value.Int(i), val: e}
		}
		return pairs, nil
	case *value.Set:
		elems := x.Elems()
		pairs := make([]kvPair, len(elems))
		for i, e := range elems {
			pairs[i] = kvPair{key: value.Int(i), val: e}
		}
		return pairs, nil
	case *value.Map:
		keys := x.Keys()
		pairs := make([]kvPair, len(keys))
		for i, k := range keys {
			val, _ := x.Get(k)
			pairs[i] = kvPair{key: k, val: val}
		}
		return pairs, nil
	case value.IntSeq:
		step := x.Step
		if step <= 0 {
			step = 1
		}
		var pairs []kvPair
		if x.Start <= x.End {
			for i, v := 0, x.Start; v <= x.End; i, v = i+1, v+step {
				pairs = append(pairs, kvPair{key: value.Int(i), val: value.Int(v)})
			}
		} else {
			for i, v := 0, x.Start; v >= x.End; i, v = i+1, v-step {
				pairs = append(pairs, kvPair{key: value.Int(i), val: value.Int(v)})
			}
		}
		return pairs, nil
	case *value.Object:
		if x.Kind() != value.ListingKind && x.Kind() != value.MappingKind && x.Kind() != value.DynamicKind {
			return nil, value.NewBottom(errors.Newf(errors.Type, pos, "cannot iterate a %s", x.Kind()))
		}
		members := x.Members().All()
		pairs := make([]kvPair, 0, len(members))
		for _, m := range members {
			key := keyValueOf(m.Key)
			val := ctx.Engine.Force(x, m.Key)
			if value.IsBottom(val) {
				return nil, val.(*value.Bottom)
			}
			pairs = append(pairs, kvPair{key: key, val: val})
		}
		return pairs, nil
	}
	return nil, value.NewBottom(errors.Newf(errors.Type, pos, "cannot iterate a %s", v.Kind()))
}

// spreadGenerator implements `...expr`: every member of the spread
// operand's amended object is merged in, in that object's own order
// (spec.md §4.5 "Spread").
type spreadGenerator struct {
	pos token.Pos
	x   value.Node
}

func (g *spreadGenerator) Pos() token.Pos { return g.pos }
func (g *spreadGenerator) Expand(ctx *value.EvalContext) ([]*value.Member, *value.Bottom) {
	xv := g.x.Eval(ctx)
	if value.IsBottom(xv) {
		return nil, xv.(*value.Bottom)
	}
	obj, ok := xv.(*value.Object)
	if !ok {
		return nil, value.NewBottom(errors.Newf(errors.Type, g.pos, "cannot spread a %s", xv.Kind()))
	}
	return obj.Members().All(), nil
}

// memberPredicateGenerator implements `[[pred]] { body }`: body is applied
// to every existing member of the object under construction whose key
// satisfies pred (spec.md §4.5 "Member predicate"). Because it tests
// *existing* members, expansion needs the partially-built member set,
// passed in via ctx's receiver once the engine has merged prior
// generators — the engine is responsible for running predicate generators
// last within a body, per spec.md §4.4's ordering rule.
type memberPredicateGenerator struct {
	pos       token.Pos
	keySlot   int
	frameDesc *value.FrameDescriptor
	predicate value.Node
	rebind    func(body []*value.Member, frame *value.FrameInstance) []*value.Member
	body      []*value.Member
}

func (g *memberPredicateGenerator) Pos() token.Pos { return g.pos }

// IsMemberPredicate lets internal/core/eval's overlay logic recognize this
// generator without importing compile's unexported types, so it can defer
// predicate expansion until every other generator in the body has merged
// (spec.md §4.4's ordering rule).
func (g *memberPredicateGenerator) IsMemberPredicate() bool { return true }
func (g *memberPredicateGenerator) Expand(ctx *value.EvalContext) ([]*value.Member, *value.Bottom) {
	existing := ctx.Receiver.Members().All()
	var out []*value.Member
	for _, m := range existing {
		if m.Key.Kind == value.PropertyMember {
			// Predicates apply to entries and elements only (spec.md §4.5).
			continue
		}
		frame := value.NewFrame(g.frameDesc, ctx.Frame)
		frame.Set(g.keySlot, keyValueOf(m.Key))
		predCtx := ctx.Child(frame, m.Key)
		pv := g.predicate.Eval(predCtx)
		if value.IsBottom(pv) {
			return nil, pv.(*value.Bottom)
		}
		ok, isBool := pv.(value.Bool)
		if !isBool {
			return nil, value.NewBottom(errors.Newf(errors.Type, g.pos, "member predicate must produce a Boolean"))
		}
		if !bool(ok) {
			continue
		}
		// Replace the matched member with one that amends its value by the
		// predicate body ("merging the body onto it", spec.md §4.5).
		// ModIndexAmend keeps an element replacement at its original index
		// instead of being appended as a fresh trailing element.
		cp := *m
		cp.Modifiers |= value.ModIndexAmend
		cp.Body = &predicateAmendNode{pos: g.pos, orig: m, body: g.rebind(g.body, frame)}
		cp.FrameDesc = &value.FrameDescriptor{}
		cp.EnclosingFrame = frame
		out = append(out, &cp)
	}
	return out, nil
}

// predicateAmendNode is the body of a member a predicate generator
// rewrote: it forces the original member against the current receiver,
// then overlays the predicate body onto the resulting object.
type predicateAmendNode struct {
	pos  token.Pos
	orig *value.Member
	body []*value.Member
}

func (n *predicateAmendNode) Pos() token.Pos { return n.pos }
func (n *predicateAmendNode) Eval(ctx *value.EvalContext) value.Value {
	var base value.Value
	switch {
	case n.orig.ConstValue != nil:
		base = n.orig.ConstValue
	case n.orig.Body != nil:
		frame := value.NewFrame(n.orig.FrameDesc, n.orig.EnclosingFrame)
		origCtx := &value.EvalContext{Receiver: ctx.Receiver, Owner: ctx.Owner, Key: ctx.Key, Frame: frame, Engine: ctx.Engine}
		base = n.orig.Body.Eval(origCtx)
	default:
		return value.NewBottom(errors.Newf(errors.Bug, n.pos, "member %s has no value to amend", n.orig.Key))
	}
	if value.IsBottom(base) {
		return base
	}
	obj, ok := base.(*value.Object)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, n.pos, "cannot amend a %s with a member predicate body", base.Kind()))
	}
	return ctx.Engine.Amend(obj, ctx.Receiver, ctx.Frame, &value.ObjectBody{Variant: obj.Variant, DirectMembers: n.body})
}

func keyValueOf(k value.MemberKey) value.Value {
	switch k.Kind {
	case value.PropertyMember:
		return value.String(k.Name)
	case value.EntryMember:
		return k.Key
	default:
		return value.Int(k.Index)
	}
}
