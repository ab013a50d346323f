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

import "fmt"

// Kind enumerates the closed tagged union of spec.md §3's value table.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	IntKind
	FloatKind
	StringKind
	DurationKind
	DataSizeKind
	PairKind
	IntSeqKind
	RegexKind
	ListKind
	SetKind
	MapKind
	TypedKind
	DynamicKind
	ListingKind
	MappingKind
	ClassKind
	TypeAliasKind
	FunctionKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "Null"
	case BoolKind:
		return "Boolean"
	case IntKind:
		return "Int"
	case FloatKind:
		return "Float"
	case StringKind:
		return "String"
	case DurationKind:
		return "Duration"
	case DataSizeKind:
		return "DataSize"
	case PairKind:
		return "Pair"
	case IntSeqKind:
		return "IntSeq"
	case RegexKind:
		return "Regex"
	case ListKind:
		return "List"
	case SetKind:
		return "Set"
	case MapKind:
		return "Map"
	case TypedKind:
		return "Typed"
	case DynamicKind:
		return "Dynamic"
	case ListingKind:
		return "Listing"
	case MappingKind:
		return "Mapping"
	case ClassKind:
		return "Class"
	case TypeAliasKind:
		return "TypeAlias"
	case FunctionKind:
		return "Function"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsObjectLike reports whether k carries ordered members (spec.md §3's
// "object-like" values: Typed, Dynamic, Listing, Mapping).
func (k Kind) IsObjectLike() bool {
	switch k {
	case TypedKind, DynamicKind, ListingKind, MappingKind:
		return true
	default:
		return false
	}
}

// Value is the closed tagged union at the center of the evaluator. Member
// dispatch on it is always a finite switch over Kind(); scalars are stored
// inline in their own struct, collections and objects behind pointers.
type Value interface {
	Kind() Kind
}
