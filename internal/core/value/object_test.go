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

package value_test

import (
	"testing"

	"pkl-lang.org/go/internal/core/value"
)

func TestOrderedMembersPreservesInsertionOrder(t *testing.T) {
	m := value.NewOrderedMembers()
	m.Put(&value.Member{Key: value.PropKey("b"), ConstValue: value.Int(2)})
	m.Put(&value.Member{Key: value.PropKey("a"), ConstValue: value.Int(1)})
	m.Put(&value.Member{Key: value.PropKey("b"), ConstValue: value.Int(20)}) // replace in place

	all := m.All()
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[0].Key.Name != "b" || all[0].ConstValue != value.Int(20) {
		t.Fatalf("replace-in-place failed: %+v", all[0])
	}
	if all[1].Key.Name != "a" {
		t.Fatalf("order not preserved: %+v", all)
	}
}

func TestOrderedMembersDeleteThenReindex(t *testing.T) {
	m := value.NewOrderedMembers()
	m.Put(&value.Member{Key: value.PropKey("a")})
	m.Put(&value.Member{Key: value.PropKey("b")})
	m.Put(&value.Member{Key: value.PropKey("c")})

	m.Delete(value.PropKey("b"))

	if _, ok := m.Get(value.PropKey("b")); ok {
		t.Fatalf("expected b to be gone")
	}
	c, ok := m.Get(value.PropKey("c"))
	if !ok || c.Key.Name != "c" {
		t.Fatalf("lookup broke after delete+reindex")
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
}

func TestClassAllRegularProperties(t *testing.T) {
	base := &value.Class{
		Name: "Base",
		Members: []*value.Member{
			{Key: value.PropKey("name")},
			{Key: value.PropKey("secret"), Modifiers: value.ModHidden},
		},
	}
	child := &value.Class{
		Name:       "Child",
		SuperClass: base,
		Members: []*value.Member{
			{Key: value.PropKey("age")},
			{Key: value.PropKey("tmp"), Modifiers: value.ModLocal},
		},
	}
	got := child.AllRegularProperties()
	want := []string{"age", "name"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := value.NewOrderedMembers()
	m.Put(&value.Member{Key: value.PropKey("a")})
	cp := m.Clone()
	cp.Put(&value.Member{Key: value.PropKey("b")})

	if m.Len() != 1 {
		t.Fatalf("original mutated: len = %d", m.Len())
	}
	if cp.Len() != 2 {
		t.Fatalf("clone missing insert: len = %d", cp.Len())
	}
}
