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

// Package token defines byte-offset source positions and the machinery to
// turn them into human-readable file/line/column locations, shared by every
// error and diagnostic the evaluator emits.
package token

import (
	"fmt"
	"sort"
	"sync"
)

// Pos is a compact encoding of a source location: which File it belongs to
// and the byte offset within that file. The zero Pos is NoPos.
type Pos struct {
	file   *File
	offset int
}

// NoPos is the zero value for Pos; it means "no position available".
var NoPos Pos

// IsValid reports whether the position is within a known file.
func (p Pos) IsValid() bool { return p.file != nil }

// Filename returns the name of the file containing p, or "" for NoPos.
func (p Pos) Filename() string {
	if p.file == nil {
		return ""
	}
	return p.file.name
}

// Position resolves p to a full Position (file name, offset, line, column).
func (p Pos) Position() Position {
	if p.file == nil {
		return Position{}
	}
	return p.file.position(p)
}

// Compare orders two positions by file, then offset, treating NoPos as
// smaller than any valid position.
func (a Pos) Compare(b Pos) int {
	if a == b {
		return 0
	}
	if a.file == nil {
		return -1
	}
	if b.file == nil {
		return 1
	}
	if a.file != b.file {
		if a.file.name != b.file.name {
			if a.file.name < b.file.name {
				return -1
			}
			return 1
		}
	}
	switch {
	case a.offset < b.offset:
		return -1
	case a.offset > b.offset:
		return 1
	default:
		return 0
	}
}

// Position is the resolved, human-facing form of a Pos: a 1-based line and
// column together with the file name and byte offset. The text of the
// offending line is not part of it; File.Line returns that line so callers
// can render a caret (see pkg/errors).
type Position struct {
	Filename string
	Offset   int // byte offset, 0-based
	Line     int // 1-based
	Column   int // 1-based, in bytes
}

// IsValid reports whether the position carries a known line number.
func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	s := p.Filename
	if s == "" {
		s = "-"
	}
	return fmt.Sprintf("%s:%d:%d", s, p.Line, p.Column)
}

// A File tracks the newline offsets of one source text so that byte offsets
// can be turned into line/column pairs without rescanning the text on every
// lookup.
type File struct {
	set  *FileSet
	name string
	base int // offset of this file's Pos space within the FileSet
	size int

	mu      sync.Mutex
	lines   []int // byte offset of the start of each line
	content []byte
}

// Name returns the file's name as supplied to FileSet.AddFile.
func (f *File) Name() string { return f.name }

// Base returns the lowest Pos offset valid for this file.
func (f *File) Base() int { return f.base }

// Size returns the length of the file's content in bytes.
func (f *File) Size() int { return f.size }

// SetContent records the file's bytes, used to recover the offending line
// for diagnostics. It also indexes newline offsets for Pos.
func (f *File) SetContent(content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = content
	f.size = len(content)
	lines := []int{0}
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			lines = append(lines, i+1)
		}
	}
	f.lines = lines
}

// Pos returns the Pos for the given byte offset within the file.
func (f *File) Pos(offset int) Pos {
	if offset < 0 {
		offset = 0
	}
	if offset > f.size {
		offset = f.size
	}
	return Pos{file: f, offset: offset}
}

func (f *File) position(p Pos) Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > p.offset }) - 1
	if line < 0 {
		line = 0
	}
	col := p.offset - f.lines[line] + 1
	return Position{
		Filename: f.name,
		Offset:   p.offset,
		Line:     line + 1,
		Column:   col,
	}
}

// Line returns the full text of the given 1-based line number, without the
// trailing newline, or "" if out of range. Used to render the caret in
// source sections (spec.md §7).
func (f *File) Line(n int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 1 || n > len(f.lines) {
		return ""
	}
	start := f.lines[n-1]
	end := f.size
	if n < len(f.lines) {
		end = f.lines[n]
	}
	for end > start && (f.content[end-1] == '\n' || f.content[end-1] == '\r') {
		end--
	}
	return string(f.content[start:end])
}

// A FileSet holds the Files added to it and hands each one its range of
// Pos offsets. Files are not interned by name: every AddFile call creates a
// new File, even for a name already added.
type FileSet struct {
	mu    sync.Mutex
	base  int
	files []*File
}

// NewFileSet creates an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{base: 1}
}

// AddFile registers a new file of the given byte size and returns it. Pos
// values minted from the returned File are valid only for this FileSet.
func AddFile(set *FileSet, name string, size int) *File {
	set.mu.Lock()
	defer set.mu.Unlock()
	f := &File{set: set, name: name, base: set.base, size: size}
	set.base += size + 1
	set.files = append(set.files, f)
	return f
}
