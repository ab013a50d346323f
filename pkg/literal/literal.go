// Copyright 2020 CUE Authors
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

// Package literal parses and quotes the scalar literal forms the compiler
// sees in an already-unescaped-by-nobody token stream: number literals
// (with Pkl's 0x/0b/0o prefixes and `_` digit separators) and string
// literal bodies (with `\n`/`\t`/`\uXXXX`/`\u{XXXX}` escapes). The pack
// only retained cue/literal's tests, not its sources, so this is written
// fresh against the behavior those tests imply plus Pkl's own literal
// grammar, rather than recovered from the teacher.
package literal

import (
	"fmt"
	"strconv"
	"strings"
)

// Unquote resolves escape sequences in raw, a string literal body whose
// delimiters the parser has already removed; it strips no quotes. Unlike Go string literals, Pkl's escape delimiter is
// configurable per the string's pound-sign fence count; nPounds is 0 for a
// plain string.
func Unquote(raw string, nPounds int) (string, error) {
	esc := "\\" + strings.Repeat("#", nPounds)
	var b strings.Builder
	for i := 0; i < len(raw); {
		if strings.HasPrefix(raw[i:], esc) {
			r, n, err := decodeEscape(raw[i+len(esc):])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += len(esc) + n
			continue
		}
		b.WriteByte(raw[i])
		i++
	}
	return b.String(), nil
}

func decodeEscape(s string) (rune, int, error) {
	if s == "" {
		return 0, 0, fmt.Errorf("dangling escape")
	}
	switch s[0] {
	case 'n':
		return '\n', 1, nil
	case 't':
		return '\t', 1, nil
	case 'r':
		return '\r', 1, nil
	case '\\':
		return '\\', 1, nil
	case '"':
		return '"', 1, nil
	case '(':
		return '(', 1, nil // interpolation splice marker; parser handles the rest
	case 'u':
		return decodeUnicodeEscape(s[1:])
	default:
		return 0, 0, fmt.Errorf("invalid escape sequence \\%c", s[0])
	}
}

func decodeUnicodeEscape(s string) (rune, int, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return 0, 0, fmt.Errorf("unterminated \\u{...} escape")
		}
		n, err := strconv.ParseInt(s[1:end], 16, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid \\u{...} escape: %w", err)
		}
		return rune(n), end + 2, nil
	}
	if len(s) < 4 {
		return 0, 0, fmt.Errorf("short \\u escape")
	}
	n, err := strconv.ParseInt(s[:4], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid \\u escape: %w", err)
	}
	return rune(n), 5, nil
}

// ParseInt parses an Int literal's raw token text, accepting decimal,
// 0x/0X hex, 0o/0O octal, and 0b/0B binary forms with `_` separators.
func ParseInt(raw string) (int64, error) {
	s := strings.ReplaceAll(raw, "_", "")
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0o"), strings.HasPrefix(s, "0O"):
		base, s = 8, s[2:]
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		base, s = 2, s[2:]
	}
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		if n > 1<<63 {
			return 0, fmt.Errorf("integer literal %q out of range", raw)
		}
		return -int64(n), nil
	}
	if n > 1<<63-1 {
		return 0, fmt.Errorf("integer literal %q out of range", raw)
	}
	return int64(n), nil
}

// ParseFloat parses a Float literal's raw token text.
func ParseFloat(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, "_", ""), 64)
}

// Quote renders s as a Pkl double-quoted string literal, escaping control
// characters, backslashes, and quotes (a spec.md render-path helper for
// String values embedded in generated output; no package in this module
// calls it).
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
