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

// Package modconfig loads the registry configuration a host supplies for
// resolving `package:` URIs to a fetchable host, grounded on the
// teacher's mod/modconfig package (the role of "standard module
// configuration, including registry access") with its OCI-registry/OAuth
// machinery dropped, since Pkl's package protocol is a plain HTTPS
// metadata+ZIP fetch rather than an OCI registry (spec.md §4.2). Kept as
// its own package because the teacher keeps registry configuration
// separate from the cache/registry client themselves.
package modconfig

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rewrite is one URL-rewrite rule (spec.md §6 "Rewrite rules require
// lowercase host, trailing /, and http(s) scheme on both sides").
type Rewrite struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Config is the parsed form of a host's registry configuration file: the
// default registry host new `package:` URIs without an explicit host
// resolve against, and a list of URL rewrite rules applied before any
// fetch.
type Config struct {
	DefaultHost string    `yaml:"defaultHost"`
	Rewrites    []Rewrite `yaml:"rewrites"`
}

// Parse parses a YAML registry-configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("modconfig: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every rewrite rule against spec.md §6's constraints,
// reporting violations at configuration time rather than letting a
// malformed rule silently fail to match at fetch time.
func (c *Config) Validate() error {
	for _, rw := range c.Rewrites {
		for _, u := range []string{rw.From, rw.To} {
			if err := validateRewriteSide(u); err != nil {
				return fmt.Errorf("modconfig: rewrite %q -> %q: %w", rw.From, rw.To, err)
			}
		}
	}
	return nil
}

func validateRewriteSide(u string) error {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok || (scheme != "http" && scheme != "https") {
		return fmt.Errorf("must use http(s) scheme, got %q", u)
	}
	if rest == "" || !strings.HasSuffix(rest, "/") {
		return fmt.Errorf("must end with a trailing slash")
	}
	host, _, _ := strings.Cut(rest, "/")
	if host != strings.ToLower(host) {
		return fmt.Errorf("host must be lowercase, got %q", host)
	}
	return nil
}

// ApplyRewrite applies the configured rewrite rules to url, returning the
// first match (or url unchanged if none apply).
func (c *Config) ApplyRewrite(url string) string {
	for _, rw := range c.Rewrites {
		if strings.HasPrefix(url, rw.From) {
			return rw.To + url[len(rw.From):]
		}
	}
	return url
}
