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

// Package value implements the object-evaluation core of spec.md §3-§4:
// the tagged value variant, the ordered member map shared by every
// object-like value, and the memoization slots that make forcing a member
// idempotent. It corresponds to the teacher's internal/core/adt package,
// trimmed from CUE's constraint-lattice (conjuncts/disjunctions/closedness)
// down to Pkl's simpler amend-and-override model.
package value

import "fmt"

// MemberKind distinguishes the three member namespaces named in spec.md §3:
// a Typed/Dynamic object's properties, a Mapping/Dynamic's entries (keyed by
// an arbitrary value), and a Listing/Dynamic's elements (keyed by position).
type MemberKind int8

const (
	PropertyMember MemberKind = iota
	EntryMember
	ElementMember
)

func (k MemberKind) String() string {
	switch k {
	case PropertyMember:
		return "property"
	case EntryMember:
		return "entry"
	case ElementMember:
		return "element"
	default:
		return "unknown"
	}
}

// MemberKey identifies one member within an object's member map. Two keys
// are the same member iff Kind matches and, for PropertyMember, Name is
// equal, or for EntryMember, the entry key is structurally equal (§4.6), or
// for ElementMember, Index is equal.
//
// No hash is stored on the key: hashKey derives the Go map key on each
// call, running HashKey over Key for an EntryMember.
type MemberKey struct {
	Kind  MemberKind
	Name  string // valid iff Kind == PropertyMember
	Key   Value  // valid iff Kind == EntryMember; must be hashable (HashKey)
	Index int    // valid iff Kind == ElementMember
}

// hashKey returns the Go map key used internally by Members to locate a
// MemberKey in O(1).
func (k MemberKey) hashKey() interface{} {
	switch k.Kind {
	case PropertyMember:
		return propHashKey(k.Name)
	case EntryMember:
		return entryHashKey(HashKey(k.Key))
	default:
		return elemHashKey(k.Index)
	}
}

type propHashKey string
type entryHashKey string
type elemHashKey int

func (k MemberKey) String() string {
	switch k.Kind {
	case PropertyMember:
		return k.Name
	case EntryMember:
		return fmt.Sprintf("[%s]", HashKey(k.Key))
	default:
		return fmt.Sprintf("[%d]", k.Index)
	}
}

// PropKey builds a property MemberKey.
func PropKey(name string) MemberKey { return MemberKey{Kind: PropertyMember, Name: name} }

// EntryKey builds an entry MemberKey from its (already-forced) key value.
func EntryKey(key Value) MemberKey { return MemberKey{Kind: EntryMember, Key: key} }

// ElemKey builds an element MemberKey from its position. Elements are
// renumbered as they are appended; two ElemKeys with the same Index before
// a spread/amend reshuffles things refer to the same slot.
func ElemKey(index int) MemberKey { return MemberKey{Kind: ElementMember, Index: index} }
