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

package eval

import (
	"pkl-lang.org/go/internal/core/value"
)

// Amend implements value.Engine.Amend: `expr { ... }` overlays a new
// member map onto base's (spec.md §4.4 "`expr { ... }` (amend)").
func (e *Engine) Amend(base *value.Object, bodyOwner *value.Object, frame *value.FrameInstance, body *value.ObjectBody) *value.Object {
	obj := e.overlay(base, base.Variant, bodyOwner, frame, body)
	obj.Class = base.Class
	return obj
}

// NewInstance implements value.Engine.NewInstance: `new T { ... }`
// overlays a new member map onto class's prototype (spec.md §4.4
// "`new T { ... }`").
func (e *Engine) NewInstance(class *value.Class, bodyOwner *value.Object, frame *value.FrameInstance, body *value.ObjectBody) *value.Object {
	obj := e.overlay(class.Prototype, value.VariantTyped, bodyOwner, frame, body)
	obj.Class = class
	return obj
}

// BuildModule assembles a module object from its compiled body: the
// top level of a Pkl module is, per spec.md §4.4 "Module object", a
// single object literal amending the parent its `amends`/`extends`
// clause resolved to (nil for a module with neither).
func (e *Engine) BuildModule(parent *value.Object, moduleName string, body *value.ObjectBody) *value.Object {
	variant := value.VariantDynamic
	if parent != nil {
		variant = parent.Variant
	}
	obj := e.overlay(parent, variant, nil, nil, body)
	obj.ModuleName = moduleName
	return obj
}

// overlay is the shared construction path behind Amend, NewInstance, and
// BuildModule (spec.md §4.4 "Creating an object"): it clones parent's
// member map, applies body's direct members on top (replace-by-name for
// properties/constant-keyed entries, append-and-renumber for elements,
// hide-on-`delete`), then expands body's generators — non-predicate
// generators in source order first, member-predicate generators last,
// since a predicate body is applied to the object's already-merged
// member set (spec.md §4.5 "Generators").
func (e *Engine) overlay(parent *value.Object, variant value.Variant, bodyOwner *value.Object, frame *value.FrameInstance, body *value.ObjectBody) *value.Object {
	child := value.NewObject(variant, parent, bodyOwner)
	om := value.NewOrderedMembers()
	nextElem := 0
	if parent != nil {
		for _, m := range parent.Members().All() {
			om.Put(m)
			if m.Key.Kind == value.ElementMember && m.Key.Index >= nextElem {
				nextElem = m.Key.Index + 1
			}
		}
	}
	child.SetMembers(om)

	if body == nil {
		return child
	}

	ctorCtx := &value.EvalContext{Receiver: child, Owner: child, Frame: frame, Engine: e}

	if b := e.mergeDirect(om, &nextElem, child, frame, body.DirectMembers); b != nil {
		child.ConstructError = b
		child.SetMembers(om)
		return child
	}
	child.SetMembers(om)

	var predicates []value.GeneratorNode
	for _, g := range body.Generators {
		if pg, ok := g.(predicateGenerator); ok && pg.IsMemberPredicate() {
			predicates = append(predicates, g)
			continue
		}
		expanded, b := g.Expand(ctorCtx)
		if b != nil {
			child.ConstructError = b
			return child
		}
		if b := e.mergeDirect(om, &nextElem, child, frame, expanded); b != nil {
			child.ConstructError = b
			return child
		}
		child.SetMembers(om)
	}
	for _, g := range predicates {
		expanded, b := g.Expand(ctorCtx)
		if b != nil {
			child.ConstructError = b
			return child
		}
		if b := e.mergeDirect(om, &nextElem, child, frame, expanded); b != nil {
			child.ConstructError = b
			return child
		}
		child.SetMembers(om)
	}

	return child
}

// predicateGenerator is satisfied by compile's memberPredicateGenerator;
// it is used only to sort predicate generators to the end of expansion
// (spec.md §4.5 "Member predicates apply to every existing... member").
// Naming the behavior via an interface (rather than importing compile's
// unexported type) keeps this package independent of compile's internals.
type predicateGenerator interface {
	IsMemberPredicate() bool
}

// mergeDirect applies a list of members on top of om, in order (spec.md
// §4.4 "Member overlay rules"). It is used both for a body's literal
// members and for a generator's expanded output, since both need the
// same replace-by-name/append-element/delete/resolve-dynamic-key
// treatment. It returns a non-nil Bottom only if a dynamic-keyed entry's
// key expression itself bottoms while being forced.
func (e *Engine) mergeDirect(om *value.OrderedMembers, nextElem *int, owner *value.Object, frame *value.FrameInstance, members []*value.Member) *value.Bottom {
	for _, m := range members {
		cp := *m
		cp.DefiningOwner = owner
		if cp.EnclosingFrame == nil {
			cp.EnclosingFrame = frame
		}
		if cp.Key.Kind == value.ElementMember && !cp.Modifiers.Has(value.ModIndexAmend) {
			// A plain element appends; a predicate rewrite or explicit index
			// amend keeps its concrete index so Put replaces in place
			// (spec.md §4.4 "unless the child uses a member predicate ... or
			// explicit index amend").
			cp.Key = value.ElemKey(*nextElem)
			*nextElem++
		}
		if cp.Key.Kind == value.EntryMember {
			if kn, ok := cp.Body.(value.KeyNoder); ok {
				keyCtx := &value.EvalContext{Receiver: owner, Owner: owner, Frame: value.NewFrame(cp.FrameDesc, cp.EnclosingFrame), Engine: e}
				kv := kn.KeyNode().Eval(keyCtx)
				if value.IsBottom(kv) {
					return kv.(*value.Bottom)
				}
				cp.Key = value.EntryKey(kv)
			}
		}
		if cp.IsDelete() {
			om.Delete(cp.Key)
			continue
		}
		om.Put(&cp)
	}
	return nil
}
