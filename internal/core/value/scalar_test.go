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

func TestEqualScalars(t *testing.T) {
	if !value.Equal(value.Int(3), value.Int(3)) {
		t.Fatalf("3 != 3")
	}
	if value.Equal(value.Int(3), value.Int(4)) {
		t.Fatalf("3 == 4")
	}
	if !value.Equal(value.String("a"), value.String("a")) {
		t.Fatalf("a != a")
	}
}

func TestDurationNanosNormalizesUnits(t *testing.T) {
	a := value.Duration{Magnitude: 1, Unit: value.Seconds}
	b := value.Duration{Magnitude: 1000, Unit: value.Millis}
	if !value.Equal(a, b) {
		t.Fatalf("1s should equal 1000ms")
	}
}

func TestDataSizeBytesNormalizesUnits(t *testing.T) {
	a := value.DataSize{Magnitude: 1, Unit: value.Kibibytes}
	b := value.DataSize{Magnitude: 1024, Unit: value.Bytes}
	if !value.Equal(a, b) {
		t.Fatalf("1kib should equal 1024b")
	}
}

func TestSetAddDeduplicates(t *testing.T) {
	s := value.NewSet()
	s.Add(value.Int(1))
	s.Add(value.Int(2))
	s.Add(value.Int(1))
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
}

func TestMapPutReplacesInPlace(t *testing.T) {
	m := value.NewMap()
	m.Put(value.String("a"), value.Int(1))
	m.Put(value.String("b"), value.Int(2))
	m.Put(value.String("a"), value.Int(10))

	keys := m.Keys()
	if len(keys) != 2 || keys[0].(value.String) != "a" {
		t.Fatalf("order broken: %v", keys)
	}
	v, ok := m.Get(value.String("a"))
	if !ok || v != value.Int(10) {
		t.Fatalf("replace failed: %v", v)
	}
}
