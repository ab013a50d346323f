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

import (
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// Null is the Pkl `null` value. HasDefault records whether this null arose
// from an unset property with a declared default (spec.md §3 table).
type Null struct{ HasDefault bool }

func (Null) Kind() Kind { return NullKind }

type Bool bool

func (Bool) Kind() Kind { return BoolKind }

// Int is a 64-bit signed integer. Arithmetic on Int traps on overflow
// rather than wrapping (spec.md §4.6).
type Int int64

func (Int) Kind() Kind { return IntKind }

// Float is a 64-bit IEEE-754 float; NaN/Inf follow IEEE-754 (spec.md §4.6).
type Float float64

func (Float) Kind() Kind { return FloatKind }

// String is Pkl's UTF-8 string scalar.
type String string

func (String) Kind() Kind { return StringKind }

// DurationUnit enumerates spec.md §3's closed unit set for Duration.
type DurationUnit int8

const (
	Nanos DurationUnit = iota
	Micros
	Millis
	Seconds
	Minutes
	Hours
	Days
)

var durationUnitNames = [...]string{"ns", "us", "ms", "s", "min", "h", "d"}

func (u DurationUnit) String() string { return durationUnitNames[u] }

// durationUnitNanos gives each unit's length in nanoseconds for converting
// between units when comparing or formatting Durations.
var durationUnitNanos = [...]float64{1, 1e3, 1e6, 1e9, 6e10, 3.6e12, 8.64e13}

type Duration struct {
	Magnitude float64
	Unit      DurationUnit
}

func (Duration) Kind() Kind { return DurationKind }

// Nanos returns the duration expressed in nanoseconds, used to compare two
// Durations expressed in different units.
func (d Duration) Nanos() float64 { return d.Magnitude * durationUnitNanos[d.Unit] }

// DataSizeUnit enumerates spec.md §3's closed unit set for DataSize.
type DataSizeUnit int8

const (
	Bytes DataSizeUnit = iota
	Kilobytes
	Megabytes
	Gigabytes
	Terabytes
	Petabytes
	Kibibytes
	Mebibytes
	Gibibytes
	Tebibytes
	Pebibytes
)

var dataSizeUnitNames = [...]string{"b", "kb", "mb", "gb", "tb", "pb", "kib", "mib", "gib", "tib", "pib"}

func (u DataSizeUnit) String() string { return dataSizeUnitNames[u] }

var dataSizeUnitBytes = [...]float64{
	1, 1e3, 1e6, 1e9, 1e12, 1e15,
	1 << 10, 1 << 20, 1 << 30, 1 << 40, 1 << 50,
}

type DataSize struct {
	Magnitude float64
	Unit      DataSizeUnit
}

func (DataSize) Kind() Kind { return DataSizeKind }

func (d DataSize) Bytes() float64 { return d.Magnitude * dataSizeUnitBytes[d.Unit] }

// Pair is a fixed two-element tuple.
type Pair struct{ First, Second Value }

func (Pair) Kind() Kind { return PairKind }

// IntSeq is an arithmetic progression, e.g. produced by `1..10` or
// `1..10.step(2)`; Step is always positive, regardless of iteration
// direction, which callers derive from Start > End.
type IntSeq struct{ Start, End, Step int64 }

func (IntSeq) Kind() Kind { return IntSeqKind }

// Regex wraps a compiled pattern; two Regex values are equal iff their
// source patterns are equal (not their compiled form).
type Regex struct {
	Source   string
	compiled *regexp.Regexp
}

func NewRegex(source string) (Regex, error) {
	re, err := regexp.Compile(source)
	if err != nil {
		return Regex{}, err
	}
	return Regex{Source: source, compiled: re}, nil
}

func (Regex) Kind() Kind                 { return RegexKind }
func (r Regex) Compiled() *regexp.Regexp { return r.compiled }

// HashKey returns a canonical string encoding of v suitable for use as a map
// key and for structural equality comparisons (spec.md §4.6). It is only
// defined for values that may legally appear as Mapping/Dynamic entry keys:
// scalars, and composite scalars built from them.
func HashKey(v Value) string {
	switch x := v.(type) {
	case Null:
		return "null"
	case Bool:
		if x {
			return "b:true"
		}
		return "b:false"
	case Int:
		return fmt.Sprintf("i:%d", int64(x))
	case Float:
		return fmt.Sprintf("f:%v", float64(x))
	case String:
		return "s:" + norm.NFC.String(string(x))
	case Duration:
		return fmt.Sprintf("d:%v", x.Nanos())
	case DataSize:
		return fmt.Sprintf("z:%v", x.Bytes())
	case Pair:
		return fmt.Sprintf("p:(%s,%s)", HashKey(x.First), HashKey(x.Second))
	case IntSeq:
		return fmt.Sprintf("r:%d:%d:%d", x.Start, x.End, x.Step)
	case Regex:
		return "x:" + x.Source
	default:
		// Object-like and collection keys are rare but legal (Pkl allows
		// composite map keys); fall back to pointer identity via %p so
		// distinct instances never alias.
		return fmt.Sprintf("o:%p", v)
	}
}

// Equal reports equality between two scalar-like values (Null, Bool, Int,
// Float, String, Pair, IntSeq, Regex, Duration, DataSize), per spec.md
// §4.6. For collections and object-like values it returns false, even when
// a and b are the same instance.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Null, Bool, Int, Float, String, Pair, IntSeq, Regex:
		return HashKey(a) == HashKey(b)
	case Duration:
		return x.Nanos() == b.(Duration).Nanos()
	case DataSize:
		return x.Bytes() == b.(DataSize).Bytes()
	default:
		return false
	}
}
