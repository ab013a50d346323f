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

package value

import "pkl-lang.org/go/pkg/token"

// Modifier mirrors pkg/ast.Modifier but adds the flags only meaningful once
// compiled (spec.md §3's "modifier bitset").
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
	ModClassMember
	ModTypeAlias
	ModImport
	ModGlob
	// ModIndexAmend marks a member that replaces an existing element at
	// its own (already concrete) index — a member-predicate rewrite or an
	// explicit index amend — rather than appending a new element.
	ModIndexAmend
)

func (m Modifier) Has(f Modifier) bool { return m&f != 0 }

// Node is an IR expression/body node. Concrete node types live in
// internal/core/compile (the IR builder); keeping the interface here lets
// Member reference a body without compile importing this package's sibling
// eval package, and without value importing compile (which would cycle).
type Node interface {
	// Eval forces the node against ctx, returning either a real Value or a
	// *Bottom failure marker.
	Eval(ctx *EvalContext) Value
	Pos() token.Pos
}

// TypeCheck is a resolved type annotation, able to validate a forced value
// against itself (spec.md §4.5 "Type check"). Constraint predicates run in
// a CustomThis frame per spec.md §4.3.
type TypeCheck interface {
	Check(ctx *EvalContext, v Value) *Bottom
	String() string
}

// KeyNoder is implemented by an entry member's Body when the entry has a
// separate key expression (`[expr] = value`, spec.md §4.4's dynamic-keyed
// entries). The engine forces KeyNode() once, at the point the entry is
// merged into an object's member map, to compute the entry's real
// MemberKey before the member is stored; Body.Eval continues to produce
// the entry's value as usual.
type KeyNoder interface {
	KeyNode() Node
}

// Engine is implemented by internal/core/eval and lets IR nodes force
// members, resolve super/outer/module reads, and create amended objects
// without the value package depending on eval (which would cycle, since
// eval necessarily depends on value for the Object/Member types it
// operates over).
type Engine interface {
	// Force evaluates member on receiver, memoizing the result.
	Force(receiver *Object, key MemberKey) Value
	// ForceOn evaluates a member body with an explicit (receiver, owner)
	// pair, used for super reads (spec.md §4.5 "Super reads").
	ForceOn(receiver, owner *Object, key MemberKey) Value
	// Amend creates a new object whose parent is base, overlaid with body
	// (direct members and generators alike) compiled against frame
	// (spec.md §4.4).
	Amend(base *Object, bodyOwner *Object, frame *FrameInstance, body *ObjectBody) *Object
	// NewInstance creates `new T { ... }` against the given class.
	NewInstance(class *Class, bodyOwner *Object, frame *FrameInstance, body *ObjectBody) *Object
}

// EvalContext is the argument bundle every Node.Eval receives: spec.md
// §4.5's (receiver, owner, memberKey) triple, plus the lexical frame
// instance and a handle back into the engine for nested forces.
type EvalContext struct {
	Receiver *Object
	Owner    *Object
	Key      MemberKey
	Frame    *FrameInstance
	Engine   Engine
}

// Child derives a context for a nested Eval call that shares receiver and
// engine but runs in a different frame (a lambda body, a comprehension
// step) or against a different member key (entries/elements iterate many
// keys from one body template).
func (c *EvalContext) Child(frame *FrameInstance, key MemberKey) *EvalContext {
	cp := *c
	cp.Frame = frame
	cp.Key = key
	return &cp
}

// WithOwner derives a context for a super read: same receiver, same frame
// lineage, but owner rebound to the ancestor that declared the member.
func (c *EvalContext) WithOwner(owner *Object) *EvalContext {
	cp := *c
	cp.Owner = owner
	return &cp
}

// Member is the immutable IR record for one property/entry/element
// (spec.md §3 "Member"). Members are shared by reference between an object
// and every object that amends it; only the receiver's memoization slot
// differs per instance.
type Member struct {
	Pos           token.Pos
	Modifiers     Modifier
	QualifiedName string // built by compile's scope, "#"/"." joined
	Key           MemberKey
	Type          TypeCheck // nil if no annotation
	ConstValue    Value     // non-nil iff this member has a constant fast path
	Body          Node      // nil iff ConstValue != nil, or member is abstract/external
	FrameDesc     *FrameDescriptor
	DefiningOwner *Object // the object whose body literally declared this member

	// EnclosingFrame is the runtime frame instance that was live at the
	// point this member's containing object literal was constructed (the
	// lexical frame the `new`/amend/for-iteration expression itself ran
	// in). The engine sets this once, when the member is copied into an
	// object's member map during Amend/NewInstance; Force then builds the
	// member's own activation as NewFrame(FrameDesc, EnclosingFrame), so a
	// member's own lets/lambdas get fresh slots chained to the frame that
	// was actually in scope around its declaration, not to whatever frame
	// happens to be live on the caller's stack when it is later read.
	EnclosingFrame *FrameInstance
}

// IsConst reports whether m's const-level permits it to be referenced from
// a const scope (spec.md §4.3 "Const discipline" — monotonic propagation
// is enforced by the compiler; this flag records the compiler's verdict).
func (m *Member) IsConst() bool { return m.Modifiers.Has(ModConst) }

func (m *Member) IsLocal() bool    { return m.Modifiers.Has(ModLocal) }
func (m *Member) IsHidden() bool   { return m.Modifiers.Has(ModHidden) }
func (m *Member) IsFixed() bool    { return m.Modifiers.Has(ModFixed) }
func (m *Member) IsAbstract() bool { return m.Modifiers.Has(ModAbstract) }
func (m *Member) IsExternal() bool { return m.Modifiers.Has(ModExternal) }
func (m *Member) IsOpen() bool     { return m.Modifiers.Has(ModOpen) }
func (m *Member) IsDelete() bool   { return m.Modifiers.Has(ModDelete) }
