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

// BodyFlavor is the IR-locality classification spec.md §4.3 assigns to an
// object body at build time: "all-constant-keys properties-only;
// constant-keyed entries; mixed entries with dynamic keys; elements (with
// or without constant entries alongside); and a general generator body
// when for/when/spread/predicate members are present."
type BodyFlavor int8

const (
	FlavorConstProperties BodyFlavor = iota
	FlavorConstEntries
	FlavorMixedEntries
	FlavorElements
	FlavorGenerator
)

// GeneratorNode is one for/when/spread/member-predicate construct in an
// object body. Unlike a plain Member, a generator does not name a single
// key: forcing it (at the point the containing object is amended — see
// spec.md §4.5 "Generators") yields zero or more members to merge into the
// object's member map, in iteration order.
type GeneratorNode interface {
	Expand(ctx *EvalContext) ([]*Member, *Bottom)
	Pos() token.Pos
}

// ObjectBody is the compiled form of one `{ ... }` body: a class body, a
// module's top level, or the body of new/amend/object-literal expression.
// Generators are expanded and merged on top of DirectMembers whenever the
// object is constructed, in source order except that member-predicate
// generators run after all the others (spec.md §4.4 "Creating an object").
type ObjectBody struct {
	Flavor        BodyFlavor
	Variant       Variant
	DirectMembers []*Member
	Generators    []GeneratorNode
}
