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

// Variant distinguishes the four object-like Kinds an Object can take on.
type Variant int8

const (
	VariantTyped Variant = iota
	VariantDynamic
	VariantListing
	VariantMapping
)

func (v Variant) Kind() Kind {
	switch v {
	case VariantTyped:
		return TypedKind
	case VariantListing:
		return ListingKind
	case VariantMapping:
		return MappingKind
	default:
		return DynamicKind
	}
}

// memoSlot holds the memoized result of forcing one member on one receiver
// (spec.md §3 "per-member memoization slot"). forced is false until the
// first Force call completes; this also lets the engine detect a cycle
// (forcing re-entered while in progress) by checking forcing.
type memoSlot struct {
	forcing bool
	forced  bool
	value   Value
}

// Object is the central runtime type of spec.md §3: every Typed, Dynamic,
// Listing, and Mapping value is one of these. It corresponds to the
// teacher's adt.Vertex, trimmed to Pkl's simpler amend model (no
// conjuncts/disjunctions; one parent, one overlay).
type Object struct {
	Variant Variant
	Class   *Class // non-nil iff Variant == VariantTyped

	// Parent is the value this object amends; nil only for root objects and
	// class prototypes (spec.md §3 invariants).
	Parent *Object

	// Owner is the lexically enclosing object, used to resolve unqualified
	// names and `outer` (spec.md §3 "enclosing owner").
	Owner *Object

	members *OrderedMembers
	memo    map[interface{}]*memoSlot

	// ModuleName, when non-empty, marks this Object as a module object
	// (spec.md §3 "Module"); used for qualified-name rendering in stacks.
	ModuleName string

	// ConstructError records a failure that happened while building this
	// object's member map itself — a generator that bottomed while
	// expanding, or a dynamic-keyed entry whose key expression bottomed —
	// rather than while forcing one of its members. Engine.Amend and
	// Engine.NewInstance have no error return (object construction is
	// itself lazy in Pkl: nothing about `new T { ... }` fails until a
	// member is actually read), so a construction failure is stashed here
	// and surfaced the first time anything tries to Force a member on this
	// object.
	ConstructError *Bottom
}

func (o *Object) Kind() Kind { return o.Variant.Kind() }

// NewObject creates a fresh object-like value of the given variant with an
// empty member map.
func NewObject(variant Variant, parent, owner *Object) *Object {
	return &Object{
		Variant: variant,
		Parent:  parent,
		Owner:   owner,
		members: NewOrderedMembers(),
		memo:    map[interface{}]*memoSlot{},
	}
}

// Members returns the object's own ordered member map (post-overlay: this
// already reflects amendment, deletion, and spread — see eval.Amend).
func (o *Object) Members() *OrderedMembers { return o.members }

// SetMembers replaces the object's member map wholesale; used once by the
// engine after building the overlay for an amend/new/module-object.
func (o *Object) SetMembers(m *OrderedMembers) { o.members = m }

// Lookup finds the member for key, searching this object's own map only
// (not the parent chain — callers needing inherited lookup should walk
// Parent themselves, since that walk differs for `super` vs implicit
// receiver resolution).
func (o *Object) Lookup(key MemberKey) (*Member, bool) {
	return o.members.Get(key)
}

// slot returns (creating if necessary) the memoization slot for key.
func (o *Object) slot(key MemberKey) *memoSlot {
	h := key.hashKey()
	s := o.memo[h]
	if s == nil {
		s = &memoSlot{}
		o.memo[h] = s
	}
	return s
}

// MemoState reports the current memoization state of key on o, for the
// engine's Force implementation: a slot is either untouched, in progress
// (forcing, used to detect reference cycles), or holds a finished value.
func (o *Object) MemoState(key MemberKey) (v Value, forcing, forced bool) {
	s := o.slot(key)
	return s.value, s.forcing, s.forced
}

// BeginForce marks key as in progress, so a reentrant Force of the same
// (receiver, key) pair is recognized as a cycle rather than recursing
// forever.
func (o *Object) BeginForce(key MemberKey) { o.slot(key).forcing = true }

// FinishForce records v as key's forced result and clears the in-progress
// marker set by BeginForce.
func (o *Object) FinishForce(key MemberKey, v Value) {
	s := o.slot(key)
	s.forcing = false
	s.forced = true
	s.value = v
}

// OrderedMembers is an insertion-ordered map from MemberKey to *Member,
// shared by every object-like value (spec.md §4.6 "Traversal order of
// object members is insertion order").
type OrderedMembers struct {
	order []*Member
	index map[interface{}]int
}

func NewOrderedMembers() *OrderedMembers {
	return &OrderedMembers{index: map[interface{}]int{}}
}

// Get returns the member for key, if present.
func (m *OrderedMembers) Get(key MemberKey) (*Member, bool) {
	i, ok := m.index[key.hashKey()]
	if !ok {
		return nil, false
	}
	return m.order[i], true
}

// Put inserts member at the end if its key is new, or replaces the member
// in place (preserving position) if the key already exists — this is
// exactly spec.md §4.4's "replaces the parent's member of that name... in
// place" rule.
func (m *OrderedMembers) Put(member *Member) {
	h := member.Key.hashKey()
	if i, ok := m.index[h]; ok {
		m.order[i] = member
		return
	}
	m.index[h] = len(m.order)
	m.order = append(m.order, member)
}

// Delete removes key from the map entirely, used to apply a `delete`
// modifier in an amending body (spec.md §4.4).
func (m *OrderedMembers) Delete(key MemberKey) {
	h := key.hashKey()
	i, ok := m.index[h]
	if !ok {
		return
	}
	delete(m.index, h)
	m.order = append(m.order[:i], m.order[i+1:]...)
	for j := i; j < len(m.order); j++ {
		m.index[m.order[j].Key.hashKey()] = j
	}
}

// All returns the members in insertion order. Callers must not mutate the
// returned slice.
func (m *OrderedMembers) All() []*Member { return m.order }

func (m *OrderedMembers) Len() int { return len(m.order) }

// Clone makes a shallow copy (members are shared by reference, per
// spec.md §3 "Members are shared by reference") with its own order/index
// backing arrays, safe for a caller to Put/Delete into independently.
func (m *OrderedMembers) Clone() *OrderedMembers {
	cp := &OrderedMembers{
		order: append([]*Member(nil), m.order...),
		index: make(map[interface{}]int, len(m.index)),
	}
	for k, v := range m.index {
		cp.index[k] = v
	}
	return cp
}

// Class is the runtime metadata for a `class` declaration (spec.md §3's
// "Class" variant). Classes are first-class values but opaque at render
// time.
type Class struct {
	Name       string
	SuperClass *Class    // nil only for the root of the class hierarchy
	Members    []*Member // declared on this class only, in source order
	Abstract   bool
	Open       bool
	TypeParams []string
	Prototype  *Object // the object `new T{}` amends when no body overrides inherited values
}

func (*Class) Kind() Kind { return ClassKind }

// AllRegularProperties returns every non-local, non-hidden property name
// declared by c or an ancestor, used to enforce spec.md §3's invariant
// that "Typed objects' property set is exactly class.allRegularProperties".
func (c *Class) AllRegularProperties() []string {
	seen := map[string]bool{}
	var names []string
	for cl := c; cl != nil; cl = cl.SuperClass {
		for _, m := range cl.Members {
			if m.Key.Kind != PropertyMember || m.IsLocal() || m.IsHidden() {
				continue
			}
			if seen[m.Key.Name] {
				continue
			}
			seen[m.Key.Name] = true
			names = append(names, m.Key.Name)
		}
	}
	return names
}

// TypeAlias is the runtime metadata for a `typealias` declaration.
type TypeAlias struct {
	Name       string
	TypeParams []string
	Type       TypeCheck
}

func (*TypeAlias) Kind() Kind { return TypeAliasKind }

// Function is a first-class closure: a method or lambda value, capturing
// the FrameInstance live at its point of creation (spec.md §9 "Capture is
// by reference to the enclosing instance").
type Function struct {
	Name       string
	Params     []FunctionParam
	ReturnType TypeCheck // nil if unchecked (stdlib fast path, or inferred)
	Body       Node
	FrameDesc  *FrameDescriptor
	Closure    *FrameInstance
	// Receiver/Owner bind a method literal to the object it was read from,
	// so `this`/`super` resolve correctly when the Function is later called
	// as a value (passed to another function, stored in a property, etc).
	Receiver *Object
	Owner    *Object
}

func (*Function) Kind() Kind { return FunctionKind }

type FunctionParam struct {
	Name string // "_" skips type checking at call sites (spec.md §4.5)
	Type TypeCheck
}
