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

package compile

import (
	"math"
	"strconv"

	"pkl-lang.org/go/internal/core/value"
	"pkl-lang.org/go/pkg/errors"
	"pkl-lang.org/go/pkg/token"
)

func formatInt(i int64) string { return strconv.FormatInt(i, 10) }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// applyBinaryOp dispatches a fully-evaluated binary operation by operand
// Kind, mirroring spec.md §4.5's per-type operator tables. `+` adds
// numbers and concatenates Strings and Lists; Map, Listing and Mapping
// operands are not handled and produce the type error below.
func applyBinaryOp(op string, x, y value.Value, pos token.Pos) value.Value {
	switch op {
	case "==":
		return value.Bool(value.Equal(x, y))
	case "!=":
		return value.Bool(!value.Equal(x, y))
	}
	switch xv := x.(type) {
	case value.Int:
		return applyIntOp(op, xv, y, pos)
	case value.Float:
		return applyFloatOp(op, xv, y, pos)
	case value.String:
		return applyStringOp(op, xv, y, pos)
	case value.Bool:
		return applyBoolOp(op, xv, y, pos)
	case *value.List:
		return applyListOp(op, xv, y, pos)
	}
	return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q not defined for %s", op, x.Kind()))
}

func applyIntOp(op string, x value.Int, y value.Value, pos token.Pos) value.Value {
	if yf, ok := y.(value.Float); ok {
		return applyFloatOp(op, value.Float(x), yf, pos)
	}
	yi, ok := y.(value.Int)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q: mismatched operand types", op))
	}
	switch op {
	case "+":
		sum := x + yi
		if (sum > x) != (yi > 0) {
			return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "integer overflow in %d + %d", x, yi))
		}
		return value.Int(sum)
	case "-":
		diff := x - yi
		if (diff < x) != (yi > 0) {
			return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "integer overflow in %d - %d", x, yi))
		}
		return value.Int(diff)
	case "*":
		prod := x * yi
		if x != 0 && (prod/x != yi || (x == -1 && yi == math.MinInt64)) {
			return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "integer overflow in %d * %d", x, yi))
		}
		return value.Int(prod)
	case "/":
		return value.Float(float64(x) / float64(yi))
	case "~/":
		if yi == 0 {
			return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "division by zero"))
		}
		if x == math.MinInt64 && yi == -1 {
			return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "integer overflow in %d ~/ %d", x, yi))
		}
		return value.Int(x / yi)
	case "%":
		if yi == 0 {
			return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "division by zero"))
		}
		return value.Int(x % yi)
	case "**":
		return value.Float(math.Pow(float64(x), float64(yi)))
	case "..":
		return value.IntSeq{Start: int64(x), End: int64(yi), Step: 1}
	case "<":
		return value.Bool(x < yi)
	case "<=":
		return value.Bool(x <= yi)
	case ">":
		return value.Bool(x > yi)
	case ">=":
		return value.Bool(x >= yi)
	}
	return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q not defined for Int", op))
}

func applyFloatOp(op string, x value.Float, y value.Value, pos token.Pos) value.Value {
	var yf float64
	switch v := y.(type) {
	case value.Float:
		yf = float64(v)
	case value.Int:
		yf = float64(v)
	default:
		return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q: mismatched operand types", op))
	}
	xf := float64(x)
	switch op {
	case "+":
		return value.Float(xf + yf)
	case "-":
		return value.Float(xf - yf)
	case "*":
		return value.Float(xf * yf)
	case "/":
		return value.Float(xf / yf)
	case "**":
		return value.Float(math.Pow(xf, yf))
	case "<":
		return value.Bool(xf < yf)
	case "<=":
		return value.Bool(xf <= yf)
	case ">":
		return value.Bool(xf > yf)
	case ">=":
		return value.Bool(xf >= yf)
	}
	return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q not defined for Float", op))
}

func applyStringOp(op string, x value.String, y value.Value, pos token.Pos) value.Value {
	ys, ok := y.(value.String)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q: expected String, got %s", op, y.Kind()))
	}
	switch op {
	case "+":
		return value.String(string(x) + string(ys))
	// Comparisons are Unicode-code-point-wise, which for UTF-8 encoded
	// strings is exactly Go's byte-wise string order.
	case "<":
		return value.Bool(string(x) < string(ys))
	case "<=":
		return value.Bool(string(x) <= string(ys))
	case ">":
		return value.Bool(string(x) > string(ys))
	case ">=":
		return value.Bool(string(x) >= string(ys))
	}
	return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q not defined for String", op))
}

func applyBoolOp(op string, x value.Bool, y value.Value, pos token.Pos) value.Value {
	yb, ok := y.(value.Bool)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q: mismatched operand types", op))
	}
	switch op {
	case "||":
		return value.Bool(x || yb)
	case "&&":
		return value.Bool(x && yb)
	}
	return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q not defined for Boolean", op))
}

func applyListOp(op string, x *value.List, y value.Value, pos token.Pos) value.Value {
	if op != "+" {
		return value.NewBottom(errors.Newf(errors.Type, pos, "operator %q not defined for List", op))
	}
	yl, ok := y.(*value.List)
	if !ok {
		return value.NewBottom(errors.Newf(errors.Type, pos, "cannot concatenate List with %s", y.Kind()))
	}
	elems := make([]value.Value, 0, len(x.Elems)+len(yl.Elems))
	elems = append(elems, x.Elems...)
	elems = append(elems, yl.Elems...)
	return &value.List{Elems: elems}
}

func applyUnaryOp(op string, x value.Value, pos token.Pos) value.Value {
	switch op {
	case "-":
		switch v := x.(type) {
		case value.Int:
			if v == math.MinInt64 {
				return value.NewBottom(errors.Newf(errors.Arithmetic, pos, "integer overflow negating %d", int64(v)))
			}
			return value.Int(-v)
		case value.Float:
			return value.Float(-v)
		}
		return value.NewBottom(errors.Newf(errors.Type, pos, "unary '-' not defined for %s", x.Kind()))
	case "!":
		if v, ok := x.(value.Bool); ok {
			return value.Bool(!v)
		}
		return value.NewBottom(errors.Newf(errors.Type, pos, "unary '!' not defined for %s", x.Kind()))
	}
	return value.NewBottom(errors.Newf(errors.Bug, pos, "unknown unary operator %q", op))
}
