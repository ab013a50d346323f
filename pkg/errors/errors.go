// Copyright 2018 The CUE Authors
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

// Package errors defines the closed set of error kinds the evaluator can
// surface (spec.md §7) and the Error interface the compiler, engine,
// loader, runtime and package cache return for diagnostics. pkg/evaluator.New
// and the pkg/external reader interfaces return a plain error instead.
package errors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"pkl-lang.org/go/pkg/token"
)

// Kind partitions diagnostics into the closed set named by spec.md §7.
type Kind int

const (
	Parse Kind = iota
	NameResolution
	Type
	Modifier
	Arithmetic
	Io
	Security
	Package
	Timeout
	Stack
	Bug
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "Parse"
	case NameResolution:
		return "NameResolution"
	case Type:
		return "Type"
	case Modifier:
		return "Modifier"
	case Arithmetic:
		return "Arithmetic"
	case Io:
		return "Io"
	case Security:
		return "Security"
	case Package:
		return "Package"
	case Timeout:
		return "Timeout"
	case Stack:
		return "Stack"
	case Bug:
		return "Bug"
	default:
		return "Unknown"
	}
}

// New is a convenience wrapper for the standard library's errors.New. It
// does not produce an Error carrying a Kind or position.
func New(msg string) error { return errors.New(msg) }

// Is and As forward to the standard library for chain inspection.
func Is(err, target error) bool             { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }
func Unwrap(err error) error                { return errors.Unwrap(err) }

// Message implements the error interface while deferring formatting, so a
// host can re-render the same diagnostic with a different locale later.
type Message struct {
	format string
	args   []interface{}
}

// NewMessagef records a printf-style message for later rendering.
func NewMessagef(format string, args ...interface{}) Message {
	return Message{format: format, args: args}
}

func (m *Message) Msg() (string, []interface{}) { return m.format, m.args }
func (m *Message) Error() string                { return fmt.Sprintf(m.format, m.args...) }

// Error is the interface every diagnostic in this module satisfies. A
// surfaced error carries a short kind/title, a one-line message, a source
// section (file/line/caret) and, through InputPositions, the contributing
// stack of call-boundary frames (spec.md §7).
type Error interface {
	error
	Kind() Kind
	Position() token.Pos
	InputPositions() []token.Pos
	Path() []string
	Msg() (format string, args []interface{})
}

// posError is the concrete Error used throughout the evaluator.
type posError struct {
	Message
	kind  Kind
	pos   token.Pos
	path  []string
	stack []token.Pos // appended one per call boundary, innermost first
}

func (e *posError) Kind() Kind                  { return e.kind }
func (e *posError) Position() token.Pos         { return e.pos }
func (e *posError) Path() []string              { return e.path }
func (e *posError) InputPositions() []token.Pos { return e.stack }

// Newf creates an Error of the given kind at the given position.
func Newf(kind Kind, p token.Pos, format string, args ...interface{}) Error {
	return &posError{Message: NewMessagef(format, args...), kind: kind, pos: p}
}

// NewfPath is like Newf but also records the object path the error occurred
// at (property/entry/element names from the module root).
func NewfPath(kind Kind, p token.Pos, path []string, format string, args ...interface{}) Error {
	return &posError{Message: NewMessagef(format, args...), kind: kind, pos: p, path: path}
}

// Wrapf appends a stack frame (spec.md §7 "propagation") to err recording
// the call boundary at p.
func Wrapf(err Error, p token.Pos) Error {
	if err == nil {
		return nil
	}
	pe, ok := err.(*posError)
	if !ok {
		return err
	}
	cp := *pe
	cp.stack = append(append([]token.Pos(nil), pe.stack...), p)
	return &cp
}

// Positions returns every valid position contributing to err, the primary
// position first, duplicates removed.
func Positions(err error) []token.Pos {
	var e Error
	if !errors.As(err, &e) {
		return nil
	}
	a := make([]token.Pos, 0, 4)
	if p := e.Position(); p.IsValid() {
		a = append(a, p)
	}
	start := len(a)
	for _, p := range e.InputPositions() {
		if p.IsValid() {
			a = append(a, p)
		}
	}
	sort.Slice(a[start:], func(i, j int) bool {
		return a[start+i].Compare(a[start+j]) < 0
	})
	return dedupPos(a)
}

func dedupPos(a []token.Pos) []token.Pos {
	out := a[:0]
	for i, p := range a {
		if i == 0 || p != a[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// list is a non-empty accumulation of errors (spec.md §9 "error
// accumulation vs fail-fast" — used by imports-collection passes).
type list []Error

// Append adds child to a running list of errors, flattening nested lists.
// A nil parent or child is handled gracefully, matching the accumulation
// pattern used throughout the compiler.
func Append(parent Error, child Error) Error {
	if child == nil {
		return parent
	}
	if parent == nil {
		return child
	}
	var out list
	if l, ok := parent.(list); ok {
		out = append(out, l...)
	} else {
		out = append(out, parent)
	}
	if l, ok := child.(list); ok {
		out = append(out, l...)
	} else {
		out = append(out, child)
	}
	return out
}

func (l list) Error() string {
	if len(l) == 0 {
		return ""
	}
	return l[0].Error()
}
func (l list) Kind() Kind                   { return l[0].Kind() }
func (l list) Position() token.Pos          { return l[0].Position() }
func (l list) InputPositions() []token.Pos  { return l[0].InputPositions() }
func (l list) Path() []string               { return l[0].Path() }
func (l list) Msg() (string, []interface{}) { return l[0].Msg() }

// Errors returns the individual errors contained in err, flattening a list
// produced by Append, or a single-element slice otherwise.
func Errors(err error) []Error {
	if err == nil {
		return nil
	}
	if l, ok := err.(list); ok {
		return []Error(l)
	}
	var e Error
	if errors.As(err, &e) {
		return []Error{e}
	}
	return nil
}

// Print writes a host-facing rendering of err: kind, message, source
// section with a caret, and the Pkl call stack, with any implementation
// (Go) stack frames filtered out. This is the "user-visible rendering"
// contract of spec.md §7.
func Print(w io.Writer, err error, lookupLine func(token.Pos) string) {
	for _, e := range Errors(err) {
		fmt.Fprintf(w, "--- %s error ---\n", e.Kind())
		format, args := e.Msg()
		fmt.Fprintf(w, "%s\n", fmt.Sprintf(format, args...))
		printSection(w, e.Position(), lookupLine)
		if path := e.Path(); len(path) > 0 {
			fmt.Fprintf(w, "  at: %s\n", strings.Join(path, "."))
		}
		for _, p := range e.InputPositions() {
			printSection(w, p, lookupLine)
		}
	}
}

func printSection(w io.Writer, p token.Pos, lookupLine func(token.Pos) string) {
	if !p.IsValid() {
		return
	}
	pos := p.Position()
	fmt.Fprintf(w, "    %s\n", pos.String())
	if lookupLine == nil {
		return
	}
	line := lookupLine(p)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "    %s\n", line)
	var b bytes.Buffer
	for i := 1; i < pos.Column; i++ {
		b.WriteByte(' ')
	}
	b.WriteByte('^')
	fmt.Fprintf(w, "    %s\n", b.String())
}

// Details renders a one-line string summarizing err without the source
// section, mainly for log lines and test table failures.
func Details(err error) string {
	var e Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	pos := e.Position()
	if pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", pos.Position(), e.Kind(), e.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind(), e.Error())
}
