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

package modconfig

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseValidConfig(t *testing.T) {
	doc := []byte(`
defaultHost: pkg.pkl-lang.org
rewrites:
  - from: "https://old.example.com/"
    to: "https://new.example.com/"
`)
	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Config{
		DefaultHost: "pkg.pkl-lang.org",
		Rewrites:    []Rewrite{{From: "https://old.example.com/", To: "https://new.example.com/"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRejectsNonHTTPScheme(t *testing.T) {
	cfg := &Config{Rewrites: []Rewrite{{From: "ftp://example.com/", To: "https://example.com/"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a non-http(s) scheme")
	}
}

func TestValidateRejectsMissingTrailingSlash(t *testing.T) {
	cfg := &Config{Rewrites: []Rewrite{{From: "https://example.com", To: "https://example.com/"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a missing trailing slash")
	}
}

func TestValidateRejectsUppercaseHost(t *testing.T) {
	cfg := &Config{Rewrites: []Rewrite{{From: "https://Example.com/", To: "https://example.com/"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an uppercase host")
	}
}

func TestApplyRewriteFirstMatchWins(t *testing.T) {
	cfg := &Config{Rewrites: []Rewrite{
		{From: "https://old.example.com/", To: "https://new.example.com/"},
		{From: "https://old.example.com/", To: "https://other.example.com/"},
	}}
	got := cfg.ApplyRewrite("https://old.example.com/foo@v1.0.0.json")
	want := "https://new.example.com/foo@v1.0.0.json"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestApplyRewriteNoMatchReturnsUnchanged(t *testing.T) {
	cfg := &Config{Rewrites: []Rewrite{
		{From: "https://old.example.com/", To: "https://new.example.com/"},
	}}
	url := "https://untouched.example.com/foo@v1.0.0.json"
	if got := cfg.ApplyRewrite(url); got != url {
		t.Fatalf("got %q, want unchanged %q", got, url)
	}
}
