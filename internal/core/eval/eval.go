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

// Package eval implements the lazy, memoized, amend-aware evaluation
// engine spec.md §4.4-§4.5 describe: it is the one concrete
// implementation of value.Engine, giving every compiled value.Node a way
// to force a member, read through super, and build the object graph that
// `new`/amend expressions produce. It corresponds to the teacher's
// internal/core/eval package's role (the "Evaluator" that drives
// compiled IR against runtime values) without the teacher's unification
// machinery, which Pkl's single-parent amend model has no use for.
package eval

import (
	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

// Engine is the module's value.Engine implementation. It is stateless
// between forces: all memoization lives on the Objects themselves
// (spec.md §3 "per-member memoization slot"), so one Engine can safely
// serve every object in a single evaluator instance (spec.md §5 "single-
// threaded and cooperative").
type Engine struct{}

// New creates an Engine. There is no configuration at this layer, and the
// engine reads no per-evaluator setting (timeout, allowed schemes, external
// properties); those stay in pkg/evaluator and pkg/loader. Stdlib functions
// reading `read()`/`Process`/etc. are not implemented in this package.
func New() *Engine { return &Engine{} }

var _ value.Engine = (*Engine)(nil)

// Force implements value.Engine.Force: look up key on receiver's own
// member map and evaluate it, memoizing the result on receiver (spec.md
// §4.5 "Force").
func (e *Engine) Force(receiver *value.Object, key value.MemberKey) value.Value {
	if receiver == nil {
		// An implicit-receiver read with no receiver in scope, e.g. a bare
		// property name inside a constraint predicate over a scalar value.
		return value.NewBottom(errors.Newf(errors.NameResolution, token.NoPos, "cannot resolve %s: no receiver in scope", key))
	}
	if receiver.ConstructError != nil {
		return receiver.ConstructError
	}
	member, ok := receiver.Lookup(key)
	if !ok {
		return value.NewBottom(errors.Newf(errors.NameResolution, token.NoPos, "no member %s", key))
	}
	owner := member.DefiningOwner
	if owner == nil {
		owner = receiver
	}
	return e.forceMemoized(receiver, owner, key, member)
}

// ForceOn implements value.Engine.ForceOn: used for super reads, where
// the member body to run is owner's (an ancestor's overridden-away
// version) but `this`/implicit-receiver reads inside that body must still
// resolve against the current receiver so downstream overrides are
// visible (spec.md §4.5 "Super reads").
//
// Super reads are not memoized on receiver's own slot for key: that slot
// already holds (or will hold) the *overriding* child member's result,
// and a super read must be able to produce the distinct, older value the
// ancestor's body computes. They are still forced at most once per
// (owner, key) pair within a single evaluation by memoizing on owner
// instead, which is safe because owner's member map for key never
// changes after it was built.
func (e *Engine) ForceOn(receiver, owner *value.Object, key value.MemberKey) value.Value {
	if owner.ConstructError != nil {
		return owner.ConstructError
	}
	member, ok := owner.Lookup(key)
	if !ok {
		return value.NewBottom(errors.Newf(errors.NameResolution, token.NoPos, "super has no member %s", key))
	}
	if member.ConstValue != nil {
		return member.ConstValue
	}
	if v, forcing, forced := owner.MemoState(key); forced {
		return v
	} else if forcing {
		return value.NewBottom(errors.Newf(errors.Stack, member.Pos, "cycle detected forcing %s", key))
	}
	owner.BeginForce(key)
	result := e.evalMember(receiver, owner, key, member)
	owner.FinishForce(key, result)
	return result
}

// forceMemoized is Force's body, split out so ForceOn can share the
// evaluate-and-type-check step without also sharing Force's "resolve
// member/owner from receiver" step.
func (e *Engine) forceMemoized(receiver, owner *value.Object, key value.MemberKey, member *value.Member) value.Value {
	if member.ConstValue != nil {
		return member.ConstValue
	}
	if v, forcing, forced := receiver.MemoState(key); forced {
		return v
	} else if forcing {
		return value.NewBottom(errors.Newf(errors.Stack, member.Pos, "cycle detected forcing %s", key))
	}
	receiver.BeginForce(key)
	result := e.evalMember(receiver, owner, key, member)
	receiver.FinishForce(key, result)
	return result
}

// evalMember runs member.Body against (receiver, owner, key) and applies
// its type check, per spec.md §4.5 "Force"/"Type check". Abstract and
// external members have no Body; forcing one is a bug in the caller (the
// compiler should never emit a property read that resolves to one
// without a concrete override somewhere in the amend chain), surfaced as
// a Bug-kind Bottom rather than a panic.
func (e *Engine) evalMember(receiver, owner *value.Object, key value.MemberKey, member *value.Member) value.Value {
	if member.Body == nil {
		return value.NewBottom(errors.Newf(errors.Bug, member.Pos, "member %q has no implementation", member.QualifiedName))
	}
	frame := value.NewFrame(member.FrameDesc, member.EnclosingFrame)
	ctx := &value.EvalContext{Receiver: receiver, Owner: owner, Key: key, Frame: frame, Engine: e}
	result := member.Body.Eval(ctx)
	if value.IsBottom(result) {
		return result
	}
	if member.Type != nil {
		if b := member.Type.Check(ctx, result); b != nil {
			return b
		}
	}
	return result
}
