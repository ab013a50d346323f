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

package evaluator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkl-lang.org/go/pkg/module"
	"pkl-lang.org/go/pkg/module/modcache"
)

// packageSource serves `package:`/`projectpackage:` module URIs out of the
// package cache (spec.md §4.2): the URI's fragment names the file inside
// the unpacked package, e.g. package://host/birds@0.5.0#/Bird.pkl.
type packageSource struct {
	cache *modcache.Cache
}

func (s packageSource) Read(ctx context.Context, uri string) (string, error) {
	p, err := module.Parse(uri)
	if err != nil {
		return "", err
	}
	if p.Fragment == "" {
		return "", fmt.Errorf("evaluator: package URI %q names no file (missing #/path fragment)", uri)
	}
	res, fetchErr := s.cache.Fetch(ctx, p)
	if fetchErr != nil {
		return "", fetchErr
	}
	rel := strings.TrimPrefix(p.Fragment, "/")
	target := filepath.Join(res.Dir, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(res.Dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("evaluator: fragment %q escapes package directory", p.Fragment)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
