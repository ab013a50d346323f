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

import "pkl-lang.org/go/pkg/errors"

// Bottom is the evaluator's internal failure marker: forcing a member can
// fail, and that failure must propagate through every caller up to the
// renderer boundary (spec.md §7 "fail-fast"). It is not itself a Kind in
// the value union — callers test for it explicitly after every Force call,
// the same discipline Go's (value, error) idiom encourages, kept explicit
// here because Bottom can also be deliberately produced by user code
// (Pkl's `throw(...)`).
type Bottom struct {
	Err errors.Error
}

func NewBottom(err errors.Error) *Bottom { return &Bottom{Err: err} }

func (b *Bottom) Error() string { return b.Err.Error() }

// IsBottom reports whether v is an error marker rather than a real value;
// Force implementations return the *Bottom itself as their result on
// failure, so callers test each forced value with IsBottom.
func IsBottom(v Value) bool {
	_, ok := v.(*Bottom)
	return ok
}

func (*Bottom) Kind() Kind { return 0xFF } // never matches any real Kind
