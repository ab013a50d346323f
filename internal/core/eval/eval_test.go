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
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

func testBug(msg string) errors.Error { return errors.Newf(errors.Bug, token.NoPos, "%s", msg) }

func errorsStackKind() errors.Kind { return errors.Stack }

// constNode is a fixture Node that always evaluates to the same Value,
// standing in for a compiled literal without pulling in internal/core/compile.
type constNode struct{ v value.Value }

func (constNode) Pos() token.Pos                        { return token.NoPos }
func (n constNode) Eval(*value.EvalContext) value.Value { return n.v }

// countingNode records how many times Eval ran, used to assert
// memoization actually short-circuits repeated forces.
type countingNode struct {
	v     value.Value
	calls *int
}

func (countingNode) Pos() token.Pos { return token.NoPos }
func (n countingNode) Eval(*value.EvalContext) value.Value {
	*n.calls++
	return n.v
}

// selfForceNode forces its own containing receiver/key again, used to
// provoke a reentrant-force cycle.
type selfForceNode struct{ key value.MemberKey }

func (selfForceNode) Pos() token.Pos { return token.NoPos }
func (n selfForceNode) Eval(ctx *value.EvalContext) value.Value {
	return ctx.Engine.Force(ctx.Receiver, n.key)
}

func propMember(name string, body value.Node) *value.Member {
	return &value.Member{
		Key:           value.PropKey(name),
		QualifiedName: name,
		Body:          body,
		FrameDesc:     &value.FrameDescriptor{},
	}
}

func newTestObject(members ...*value.Member) *value.Object {
	obj := value.NewObject(value.VariantDynamic, nil, nil)
	om := value.NewOrderedMembers()
	for _, m := range members {
		mm := *m
		mm.DefiningOwner = obj
		om.Put(&mm)
	}
	obj.SetMembers(om)
	return obj
}

func TestForceReturnsMemberValue(t *testing.T) {
	e := New()
	obj := newTestObject(propMember("x", constNode{value.Int(42)}))
	got := e.Force(obj, value.PropKey("x"))
	if i, ok := got.(value.Int); !ok || i != 42 {
		t.Fatalf("Force(x) = %#v, want Int(42)", got)
	}
}

func TestForceMissingMemberIsBottom(t *testing.T) {
	e := New()
	obj := newTestObject()
	got := e.Force(obj, value.PropKey("missing"))
	if !value.IsBottom(got) {
		t.Fatalf("Force(missing) = %#v, want Bottom", got)
	}
}

func TestForceMemoizesAcrossCalls(t *testing.T) {
	e := New()
	calls := 0
	obj := newTestObject(propMember("x", countingNode{value.Int(7), &calls}))
	for i := 0; i < 3; i++ {
		got := e.Force(obj, value.PropKey("x"))
		if i2, ok := got.(value.Int); !ok || i2 != 7 {
			t.Fatalf("Force(x) call %d = %#v, want Int(7)", i, got)
		}
	}
	if calls != 1 {
		t.Fatalf("member body evaluated %d times, want 1 (memoized)", calls)
	}
}

func TestForceDetectsCycle(t *testing.T) {
	e := New()
	key := value.PropKey("x")
	obj := newTestObject(propMember("x", selfForceNode{key}))
	got := e.Force(obj, key)
	b, ok := got.(*value.Bottom)
	if !ok {
		t.Fatalf("Force(x) = %#v, want cycle Bottom", got)
	}
	if b.Err.Kind() != errorsStackKind() {
		t.Fatalf("cycle bottom kind = %v, want Stack", b.Err.Kind())
	}
}

func TestForceConstValueFastPath(t *testing.T) {
	e := New()
	m := propMember("x", nil)
	m.ConstValue = value.String("fast")
	obj := newTestObject(m)
	got := e.Force(obj, value.PropKey("x"))
	if s, ok := got.(value.String); !ok || s != "fast" {
		t.Fatalf("Force(x) = %#v, want String(fast)", got)
	}
}

func TestForcePropagatesConstructError(t *testing.T) {
	e := New()
	obj := newTestObject(propMember("x", constNode{value.Int(1)}))
	obj.ConstructError = value.NewBottom(testBug("boom"))
	got := e.Force(obj, value.PropKey("x"))
	if !value.IsBottom(got) {
		t.Fatalf("Force(x) on a broken object = %#v, want Bottom", got)
	}
}

func TestForceTypeCheckFailureIsBottom(t *testing.T) {
	e := New()
	m := propMember("x", constNode{value.String("not an int")})
	m.Type = rejectingType{}
	obj := newTestObject(m)
	got := e.Force(obj, value.PropKey("x"))
	if !value.IsBottom(got) {
		t.Fatalf("Force(x) with failing type check = %#v, want Bottom", got)
	}
}

// rejectingType is a fixture TypeCheck that always fails, used to confirm
// evalMember consults Member.Type after running Body.
type rejectingType struct{}

func (rejectingType) Check(ctx *value.EvalContext, v value.Value) *value.Bottom {
	return value.NewBottom(testBug("wrong type"))
}
func (rejectingType) String() string { return "Rejecting" }

func TestForceOnReadsOwnerBodyUnderCurrentReceiver(t *testing.T) {
	e := New()
	key := value.PropKey("greeting")
	// owner's body reads "this" indirectly by returning a constant that
	// differs from what the receiver's own (overriding) member would
	// produce, to prove ForceOn runs owner's Body, not receiver's.
	owner := newTestObject(propMember("greeting", constNode{value.String("from base")}))
	receiver := newTestObject(propMember("greeting", constNode{value.String("from child")}))

	gotSuper := e.ForceOn(receiver, owner, key)
	if s, ok := gotSuper.(value.String); !ok || s != "from base" {
		t.Fatalf("ForceOn = %#v, want String(from base)", gotSuper)
	}
	gotOwn := e.Force(receiver, key)
	if s, ok := gotOwn.(value.String); !ok || s != "from child" {
		t.Fatalf("Force = %#v, want String(from child)", gotOwn)
	}
}

func TestForceOnMemoizesOnOwnerNotReceiver(t *testing.T) {
	e := New()
	key := value.PropKey("x")
	calls := 0
	owner := newTestObject(propMember("x", countingNode{value.Int(9), &calls}))
	receiver := newTestObject(propMember("x", constNode{value.Int(99)}))

	e.ForceOn(receiver, owner, key)
	e.ForceOn(receiver, owner, key)
	if calls != 1 {
		t.Fatalf("owner body evaluated %d times via ForceOn, want 1", calls)
	}
	// receiver's own slot for key is untouched by the super reads.
	if v, _, forced := receiver.MemoState(key); forced {
		t.Fatalf("receiver's own memo slot was populated by ForceOn: %#v", v)
	}
}
