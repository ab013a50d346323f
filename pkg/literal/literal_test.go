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

package literal

import "testing"

func TestUnquote(t *testing.T) {
	cases := []struct{ in, want string }{
		{`abc`, "abc"},
		{`a\nb`, "a\nb"},
		{`a\tb`, "a\tb"},
		{`A`, "A"},
		{`\u{1F600}`, "\U0001F600"},
	}
	for _, c := range cases {
		got, err := Unquote(c.in, 0)
		if err != nil {
			t.Fatalf("Unquote(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Unquote(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseInt(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"123", 123},
		{"1_000", 1000},
		{"0xFF", 255},
		{"0b101", 5},
		{"0o17", 15},
		{"-42", -42},
	}
	for _, c := range cases {
		got, err := ParseInt(c.in)
		if err != nil {
			t.Fatalf("ParseInt(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseInt(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestQuoteRoundTripsBasicEscapes(t *testing.T) {
	in := "a\nb\tc\"d"
	got := Quote(in)
	want := `"a\nb\tc\"d"`
	if got != want {
		t.Errorf("Quote(%q) = %s, want %s", in, got, want)
	}
}
