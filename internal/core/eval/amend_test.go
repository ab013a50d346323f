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
	"testing"

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/token"
)

func elemMember(index int, v value.Value) *value.Member {
	return &value.Member{
		Key:       value.ElemKey(index),
		Body:      constNode{v},
		FrameDesc: &value.FrameDescriptor{},
	}
}

func entryMember(key, v value.Value) *value.Member {
	return &value.Member{
		Key:       value.EntryKey(key),
		Body:      constNode{v},
		FrameDesc: &value.FrameDescriptor{},
	}
}

// dynKeyBody implements value.KeyNoder so its member's real key is computed
// at merge time rather than known up front, the `[expr] = value` case.
type dynKeyBody struct {
	key value.Node
	val value.Value
}

func (b dynKeyBody) Pos() token.Pos                      { return token.NoPos }
func (b dynKeyBody) Eval(*value.EvalContext) value.Value { return b.val }
func (b dynKeyBody) KeyNode() value.Node                 { return b.key }

func dynEntryMember(keyExpr value.Node, v value.Value) *value.Member {
	return &value.Member{
		Key:       value.EntryKey(value.Null{}), // placeholder, resolved by KeyNoder
		Body:      dynKeyBody{key: keyExpr, val: v},
		FrameDesc: &value.FrameDescriptor{},
	}
}

func mustInt(t *testing.T, v value.Value) int64 {
	t.Helper()
	i, ok := v.(value.Int)
	if !ok {
		t.Fatalf("value %#v is not an Int", v)
	}
	return int64(i)
}

func TestAmendOverridesPropertyInPlace(t *testing.T) {
	e := New()
	base := newTestObject(propMember("a", constNode{value.Int(1)}), propMember("b", constNode{value.Int(2)}))
	body := &value.ObjectBody{DirectMembers: []*value.Member{propMember("a", constNode{value.Int(10)})}}

	child := e.Amend(base, nil, nil, body)

	if child.ConstructError != nil {
		t.Fatalf("unexpected construct error: %v", child.ConstructError)
	}
	got := e.Force(child, value.PropKey("a"))
	if mustInt(t, got) != 10 {
		t.Fatalf("a = %#v, want 10", got)
	}
	got = e.Force(child, value.PropKey("b"))
	if mustInt(t, got) != 2 {
		t.Fatalf("b = %#v, want 2 (inherited)", got)
	}
	// position is preserved: "a" stays first.
	names := []string{}
	for _, m := range child.Members().All() {
		names = append(names, m.Key.Name)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("member order = %v, want [a b]", names)
	}
}

func TestAmendDeleteModifierRemovesMember(t *testing.T) {
	e := New()
	base := newTestObject(propMember("a", constNode{value.Int(1)}))
	del := propMember("a", nil)
	del.Modifiers |= value.ModDelete
	body := &value.ObjectBody{DirectMembers: []*value.Member{del}}

	child := e.Amend(base, nil, nil, body)
	if _, ok := child.Lookup(value.PropKey("a")); ok {
		t.Fatalf("member 'a' still present after delete modifier")
	}
}

func TestNewInstanceElementsAppendAndRenumber(t *testing.T) {
	e := New()
	class := &value.Class{
		Name:      "Listish",
		Prototype: newTestObject(elemMember(0, value.Int(1)), elemMember(1, value.Int(2))),
	}
	body := &value.ObjectBody{DirectMembers: []*value.Member{elemMember(0, value.Int(3))}}

	obj := e.NewInstance(class, nil, nil, body)
	if obj.Class != class {
		t.Fatalf("obj.Class = %v, want %v", obj.Class, class)
	}
	all := obj.Members().All()
	if len(all) != 3 {
		t.Fatalf("len(members) = %d, want 3", len(all))
	}
	wantIdx := []int{0, 1, 2}
	wantVal := []int64{1, 2, 3}
	for i, m := range all {
		if m.Key.Index != wantIdx[i] {
			t.Fatalf("member %d index = %d, want %d", i, m.Key.Index, wantIdx[i])
		}
		got := e.Force(obj, m.Key)
		if mustInt(t, got) != wantVal[i] {
			t.Fatalf("member %d value = %#v, want %d", i, got, wantVal[i])
		}
	}
}

func TestAmendEntryMergeByStructuralKey(t *testing.T) {
	e := New()
	base := newTestObject(entryMember(value.String("k1"), value.Int(1)))
	body := &value.ObjectBody{DirectMembers: []*value.Member{entryMember(value.String("k1"), value.Int(99))}}

	child := e.Amend(base, nil, nil, body)
	got := e.Force(child, value.EntryKey(value.String("k1")))
	if mustInt(t, got) != 99 {
		t.Fatalf("entry k1 = %#v, want 99 (overridden)", got)
	}
	if len(child.Members().All()) != 1 {
		t.Fatalf("len(members) = %d, want 1 (merged, not duplicated)", len(child.Members().All()))
	}
}

func TestAmendResolvesDynamicEntryKey(t *testing.T) {
	e := New()
	keyExpr := constNode{value.String("computed")}
	body := &value.ObjectBody{DirectMembers: []*value.Member{dynEntryMember(keyExpr, value.Int(5))}}

	child := e.Amend(newTestObject(), nil, nil, body)
	if child.ConstructError != nil {
		t.Fatalf("unexpected construct error: %v", child.ConstructError)
	}
	got := e.Force(child, value.EntryKey(value.String("computed")))
	if mustInt(t, got) != 5 {
		t.Fatalf("entry[computed] = %#v, want 5", got)
	}
}

// countingGenerator is a fixture value.GeneratorNode whose Expand records
// the order in which it ran, used to assert predicate generators always
// expand after non-predicate generators regardless of source order.
type countingGenerator struct {
	members []*value.Member
	order   *[]string
	name    string
	isPred  bool
}

func (g countingGenerator) Pos() token.Pos { return token.NoPos }
func (g countingGenerator) Expand(ctx *value.EvalContext) ([]*value.Member, *value.Bottom) {
	*g.order = append(*g.order, g.name)
	return g.members, nil
}
func (g countingGenerator) IsMemberPredicate() bool { return g.isPred }

func TestGeneratorsExpandPredicatesLast(t *testing.T) {
	e := New()
	var order []string
	body := &value.ObjectBody{
		Generators: []value.GeneratorNode{
			countingGenerator{name: "predicate", isPred: true, order: &order, members: []*value.Member{propMember("p", constNode{value.Int(1)})}},
			countingGenerator{name: "for", order: &order, members: []*value.Member{propMember("f", constNode{value.Int(2)})}},
		},
	}

	child := e.Amend(newTestObject(), nil, nil, body)
	if len(order) != 2 || order[0] != "for" || order[1] != "predicate" {
		t.Fatalf("generator expansion order = %v, want [for predicate]", order)
	}
	if got := e.Force(child, value.PropKey("f")); mustInt(t, got) != 2 {
		t.Fatalf("f = %#v, want 2", got)
	}
	if got := e.Force(child, value.PropKey("p")); mustInt(t, got) != 1 {
		t.Fatalf("p = %#v, want 1", got)
	}
}

func TestAmendWithNilBodyReturnsParentShape(t *testing.T) {
	e := New()
	base := newTestObject(propMember("a", constNode{value.Int(1)}))
	child := e.Amend(base, nil, nil, nil)
	got := e.Force(child, value.PropKey("a"))
	if mustInt(t, got) != 1 {
		t.Fatalf("a = %#v, want 1", got)
	}
}

func TestBuildModuleSetsModuleName(t *testing.T) {
	e := New()
	body := &value.ObjectBody{DirectMembers: []*value.Member{propMember("x", constNode{value.Int(1)})}}
	mod := e.BuildModule(nil, "pkg:main", body)
	if mod.ModuleName != "pkg:main" {
		t.Fatalf("ModuleName = %q, want pkg:main", mod.ModuleName)
	}
	if got := e.Force(mod, value.PropKey("x")); mustInt(t, got) != 1 {
		t.Fatalf("x = %#v, want 1", got)
	}
}
