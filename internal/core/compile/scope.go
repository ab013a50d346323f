// Copyright 2020 CUE Authors
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

// Package compile builds typed IR from a parse tree (pkg/ast), entering a
// lexical symbol table of scopes as it goes (spec.md §4.3). It corresponds
// to the teacher's internal/core/compile, restructured around Pkl's scope
// kinds and const-level discipline instead of CUE's struct-literal
// resolution.
package compile

import "pkl-lang.org/go/internal/core/value"

// ScopeKind is one of spec.md §4.3's scope kinds.
type ScopeKind int8

const (
	ScopeModule ScopeKind = iota
	ScopeBase
	ScopeClass
	ScopeTypeAlias
	ScopeMethod
	ScopeLambda
	ScopeClosure
	ScopeProperty
	ScopeEntry
	ScopeObject
	ScopeCustomThis
	ScopeAnnotation
	ScopeForGenerator
	ScopeForEager
)

func (k ScopeKind) String() string {
	names := [...]string{
		"Module", "Base", "Class", "TypeAlias", "Method", "Lambda", "Closure",
		"Property", "Entry", "Object", "CustomThis", "Annotation",
		"ForGenerator", "ForEager",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// ConstLevel tracks how restrictive name resolution is in a scope. It
// never decreases as the compiler descends into nested scopes (spec.md
// §3 "A property's effective const-level is monotonic down the lexical
// chain").
type ConstLevel int8

const (
	ConstNone ConstLevel = iota
	ConstModule
	ConstAll
)

// binding is one name introduced by a scope: a local, a parameter, a
// for-loop variable, or (for ScopeClass) a property.
type binding struct {
	name      string
	slot      int // index into the scope's FrameDescriptor, or -1 if none
	isMethod  bool
	isConst   bool
	declScope *Scope // the scope the binding was added to, which owns its slot
}

// Scope is one entry in the compiler's lexical scope stack.
type Scope struct {
	Kind          ScopeKind
	Name          string // "" for anonymous scopes (most expression scopes)
	QualifiedName string // built incrementally as scopes are pushed
	ConstLevel    ConstLevel
	TypeParams    []string
	Parent        *Scope

	// frameLevel is the number of runtime FrameInstance hops between this
	// scope and the module root. Only scopes whose activation actually
	// exists at runtime increment it: the module itself, each member force
	// (Property/Entry), each method/closure call, each for/predicate
	// iteration step, and each constraint-predicate check (CustomThis).
	// ScopeLambda (a `let` binding, which always runs inline in its
	// enclosing body — never as a separately-invoked closure) shares its
	// parent's frame per spec.md §4.3 "skipping Lambda scopes for
	// enclosing-counter purposes"; ScopeClosure (a real `(x) -> expr`
	// function literal) is NOT folded in this way, since every call needs
	// its own fresh parameter slots.
	frameLevel int

	// Frame is the FrameDescriptor this scope's slots are allocated from.
	// Scopes that share their enclosing frame point at the same descriptor
	// as their parent instead of owning their own.
	Frame *value.FrameDescriptor

	bindings []binding
}

// pushScope creates a new scope chained onto parent, computing its
// qualified name and const level per spec.md §4.3.
func pushScope(parent *Scope, kind ScopeKind, name string) *Scope {
	s := &Scope{Kind: kind, Name: name, Parent: parent}
	if parent == nil {
		s.ConstLevel = ConstNone
		s.frameLevel = 0
		s.Frame = &value.FrameDescriptor{Name: name}
		return s
	}
	s.ConstLevel = parent.ConstLevel
	switch kind {
	case ScopeTypeAlias, ScopeAnnotation:
		if s.ConstLevel < ConstModule {
			s.ConstLevel = ConstModule
		}
	}
	switch kind {
	case ScopeLambda, ScopeForEager, ScopeObject, ScopeClass, ScopeTypeAlias, ScopeAnnotation:
		// These scopes never get a FrameInstance of their own at runtime:
		// a `let` runs inline in its enclosing activation, object bodies
		// allocate frames per member (not per body), and class/typealias/
		// annotation scopes only exist for name resolution. They share the
		// parent's descriptor and keep its frameLevel so compile-time
		// level-up counts match the runtime Parent chain.
		s.frameLevel = parent.frameLevel
		s.Frame = parent.Frame
	default:
		s.frameLevel = parent.frameLevel + 1
		s.Frame = &value.FrameDescriptor{Name: name}
	}
	s.QualifiedName = joinQualified(parent.QualifiedName, kind, name)
	return s
}

// joinQualified concatenates with "#" at a module boundary and "."
// elsewhere (spec.md §4.3), quoting identifiers when needed.
func joinQualified(parent string, kind ScopeKind, name string) string {
	if name == "" {
		return parent
	}
	sep := "."
	if kind == ScopeModule {
		sep = "#"
	}
	if parent == "" {
		return quoteIfNeeded(name)
	}
	return parent + sep + quoteIfNeeded(name)
}

func quoteIfNeeded(name string) string {
	for i, r := range name {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if !ok {
			return `"` + name + `"`
		}
	}
	return name
}

// addLocalSlot records a local/parameter/for-variable binding, allocating
// it a slot in the scope's FrameDescriptor, and returns that slot index.
func (s *Scope) addLocalSlot(name string, kind value.SlotKind, isConst bool) int {
	idx := s.Frame.AddSlot(name, kind)
	s.bindings = append(s.bindings, binding{name: name, slot: idx, isConst: isConst, declScope: s})
	return idx
}

// addNonSlotBinding records a binding with no frame slot (a class
// property or method, resolved dynamically at runtime per spec.md §4.3).
func (s *Scope) addNonSlotBinding(name string, isMethod, isConst bool) {
	s.bindings = append(s.bindings, binding{name: name, slot: -1, isMethod: isMethod, isConst: isConst, declScope: s})
}

// lookupLocal searches only s's own bindings (not its ancestors).
func (s *Scope) lookupLocal(name string) (binding, bool) {
	for i := len(s.bindings) - 1; i >= 0; i-- {
		if s.bindings[i].name == name {
			return s.bindings[i], true
		}
	}
	return binding{}, false
}

// levelsTo returns the number of frame hops between s and the scope that
// owns b's slot, per spec.md §4.3's "slot index + level-up" lexical-local
// outcome.
func (s *Scope) levelsTo(owner *Scope) int {
	return s.frameLevel - owner.frameLevel
}
