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
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

// ResolutionKind tags the outcome of resolving an unqualified identifier,
// the five cases spec.md §4.3 "Name resolution" lists.
type ResolutionKind int8

const (
	ResolveLocal ResolutionKind = iota
	ResolveMethod
	ResolveClassProperty
	ResolveBaseConstant
	ResolveDynamic
)

// Resolution is what resolve() returns for one identifier lookup.
type Resolution struct {
	Kind ResolutionKind

	// ResolveLocal
	SlotIndex int
	LevelsUp  int
	IsConst   bool

	// ResolveMethod: whether calls should use static (closed class) or
	// virtual (open/abstract class, subject to override) dispatch.
	VirtualDispatch bool

	// ResolveClassProperty
	IsLocalProperty bool

	Name string
}

// resolve climbs c's scope stack looking for name, implementing spec.md
// §4.3's algorithm: Lambda scopes are transparent for frame-level counting
// (scope.pushScope already folds that in via frameLevel), ForEager scopes
// are skipped entirely, and the first hit wins.
func (c *compiler) resolve(name string, pos token.Pos) (Resolution, errors.Error) {
	for s := c.top(); s != nil; s = s.Parent {
		if s.Kind == ScopeForEager {
			continue
		}
		if b, ok := s.lookupLocal(name); ok {
			return c.classify(b, s, pos)
		}
		if s.Kind == ScopeClass {
			if isMember, virtual, isLocal, isConst := c.classLookup(s, name); isMember {
				if c.top().ConstLevel == ConstAll && !isConst {
					return Resolution{}, c.needsConstErr(name, pos)
				}
				return Resolution{
					Kind:            ResolveClassProperty,
					Name:            name,
					VirtualDispatch: virtual,
					IsLocalProperty: isLocal,
				}, nil
			}
		}
		if s.Kind == ScopeBase {
			if c.baseHas(name) {
				return Resolution{Kind: ResolveBaseConstant, Name: name}, nil
			}
		}
	}
	// Not found lexically: the reference may still resolve at runtime
	// against an implicit receiver (a property read with no qualifier
	// inside an object body), which spec.md §4.3 calls "resolve
	// dynamically at runtime". A const scope forbids implicit-receiver
	// reads outright, since the target cannot be proven const.
	if c.top().ConstLevel == ConstAll {
		return Resolution{}, c.needsConstErr(name, pos)
	}
	return Resolution{Kind: ResolveDynamic, Name: name}, nil
}

func (c *compiler) classify(b binding, owner *Scope, pos token.Pos) (Resolution, errors.Error) {
	cur := c.top()
	if cur.ConstLevel != ConstNone && !b.isConst && owner.ConstLevel < cur.ConstLevel {
		return Resolution{}, c.needsConstErr(b.name, pos)
	}
	if b.isMethod {
		return Resolution{Kind: ResolveMethod, Name: b.name, VirtualDispatch: c.methodIsVirtual(owner)}, nil
	}
	if b.slot < 0 {
		return Resolution{Kind: ResolveDynamic, Name: b.name}, nil
	}
	return Resolution{
		Kind:      ResolveLocal,
		Name:      b.name,
		SlotIndex: b.slot,
		LevelsUp:  cur.levelsTo(owner),
		IsConst:   b.isConst,
	}, nil
}

// methodIsVirtual decides static-vs-virtual dispatch from the enclosing
// class's modifiers (spec.md §4.3 "lexical method... with closed/virtual
// distinction based on enclosing class open/abstract modifiers").
func (c *compiler) methodIsVirtual(owner *Scope) bool {
	for s := owner; s != nil; s = s.Parent {
		if s.Kind == ScopeClass {
			return c.classOpenOrAbstract[s]
		}
	}
	return false
}

// classLookup reports whether name is a property/method of the class
// scope s represents, per the class's own member list (tracked in
// c.classMembers, populated while compiling the ClassDecl). Members
// inherited from superclasses are not in that list and are not found here.
func (c *compiler) classLookup(s *Scope, name string) (isMember, virtual, isLocal, isConst bool) {
	members := c.classMembers[s]
	for _, m := range members {
		if m.name == name {
			return true, c.classOpenOrAbstract[s], m.isLocal, m.isConst
		}
	}
	return false, false, false, false
}

func (c *compiler) baseHas(name string) bool {
	_, ok := c.baseConstants[name]
	return ok
}

// needsConstErr raises one of spec.md §4.3's const-discipline diagnostics.
// The precise wording distinguishes `this`, `outer`, `module`, and a
// qualified property read, per spec.md §4.3's "Const discipline".
func (c *compiler) needsConstErr(name string, pos token.Pos) errors.Error {
	switch name {
	case "this":
		return errors.Newf(errors.NameResolution, pos, "'this' is not const in this scope")
	case "outer":
		return errors.Newf(errors.NameResolution, pos, "'outer' is not const in this scope")
	case "module":
		return errors.Newf(errors.NameResolution, pos, "'module' is not const in this scope")
	default:
		return errors.Newf(errors.NameResolution, pos, "reference to %q needs a const binding in this scope", name)
	}
}
