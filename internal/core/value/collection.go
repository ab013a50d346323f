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

// List is an ordered, possibly-repeating sequence of values.
type List struct{ Elems []Value }

func (*List) Kind() Kind { return ListKind }

// Set preserves insertion order (spec.md §3) while guaranteeing uniqueness
// by structural equality; membership is decided with HashKey since Set
// elements are required to be hashable scalars in practice.
type Set struct {
	order []Value
	seen  map[string]bool
}

func NewSet() *Set { return &Set{seen: map[string]bool{}} }

func (*Set) Kind() Kind { return SetKind }

// Add inserts v if not already present, preserving first-seen order.
func (s *Set) Add(v Value) {
	h := HashKey(v)
	if s.seen[h] {
		return
	}
	s.seen[h] = true
	s.order = append(s.order, v)
}

func (s *Set) Elems() []Value   { return s.order }
func (s *Set) Has(v Value) bool { return s.seen[HashKey(v)] }
func (s *Set) Len() int         { return len(s.order) }

// Map is an insertion-ordered association from hashable Values to Values,
// Pkl's `Map` literal type (distinct from the object-like Mapping).
type Map struct {
	keys   []Value
	values map[string]Value
	index  map[string]int
}

func NewMap() *Map {
	return &Map{values: map[string]Value{}, index: map[string]int{}}
}

func (*Map) Kind() Kind { return MapKind }

// Put inserts or replaces the value for key, preserving the original
// position on replace (amend-style overlay semantics, spec.md §4.4).
func (m *Map) Put(key, val Value) {
	h := HashKey(key)
	if _, ok := m.values[h]; !ok {
		m.index[h] = len(m.keys)
		m.keys = append(m.keys, key)
	}
	m.values[h] = val
}

func (m *Map) Get(key Value) (Value, bool) {
	v, ok := m.values[HashKey(key)]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value { return m.keys }

func (m *Map) Len() int { return len(m.keys) }
