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

// FrameDescriptor is the compile-time shape of one lexical frame: an
// ordered list of named slots for locals and parameters (spec.md §9
// "Frames vs closures"). Method and lambda bodies share one descriptor
// across every call; only the per-call FrameInstance varies.
type FrameDescriptor struct {
	Name  string // enclosing method/lambda/comprehension name, for traces
	Slots []SlotDescriptor
}

type SlotKind int8

const (
	SlotLocal SlotKind = iota
	SlotParam
	SlotForKey
	SlotForValue
	SlotCustomThis
	SlotLet
)

type SlotDescriptor struct {
	Name string
	Kind SlotKind
}

// AddSlot appends a slot to the descriptor and returns its index.
func (d *FrameDescriptor) AddSlot(name string, kind SlotKind) int {
	d.Slots = append(d.Slots, SlotDescriptor{Name: name, Kind: kind})
	return len(d.Slots) - 1
}

func (d *FrameDescriptor) IndexOf(name string) (int, bool) {
	for i, s := range d.Slots {
		if s.Name == name {
			return i, true
		}
	}
	return 0, false
}

// FrameInstance is the runtime array of slot values for one activation.
// Capture is by reference to the enclosing instance: a closure stores a
// pointer to the FrameInstance that was live when it was created, so later
// mutation of an outer local (a comprehension variable, for instance) is
// visible to callees created during the same force.
type FrameInstance struct {
	Desc   *FrameDescriptor
	Values []Value
	Parent *FrameInstance // lexically enclosing instance, or nil at module scope
}

// NewFrame allocates a zeroed instance for desc, chained to parent.
func NewFrame(desc *FrameDescriptor, parent *FrameInstance) *FrameInstance {
	return &FrameInstance{Desc: desc, Values: make([]Value, len(desc.Slots)), Parent: parent}
}

// Set stores v at the given slot index, growing the slice defensively if
// a slot was added after allocation (comprehension bodies may add slots
// lazily on first iteration).
func (f *FrameInstance) Set(index int, v Value) {
	for len(f.Values) <= index {
		f.Values = append(f.Values, nil)
	}
	f.Values[index] = v
}

func (f *FrameInstance) Get(index int) Value { return f.Values[index] }

// Up walks n enclosing-frame links, used by lexical local references
// compiled with a level-up count (spec.md §4.3 "lexical local").
func (f *FrameInstance) Up(n int) *FrameInstance {
	for ; n > 0 && f != nil; n-- {
		f = f.Parent
	}
	return f
}
