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

package modcache

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pkl-lang.org/go/pkg/module"
	"pkl-lang.org/go/pkg/module/modregistry"
)

type fakeHTTP struct {
	byURL map[string][]byte
}

func (f fakeHTTP) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	data, ok := f.byURL[url]
	if !ok {
		return nil, fmt.Errorf("fakeHTTP: no fixture for %s", url)
	}
	return data, nil
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func hexSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestFetchDownloadsVerifiesAndUnpacks(t *testing.T) {
	p, err := module.Parse("package://example.com/foo@v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	zipData := buildZip(t, map[string]string{"foo.pkl": "x = 1"})
	metaURL := "https://example.com/foo@v1.0.0.json"
	zipURL := "https://example.com/foo@v1.0.0.zip"
	meta := modregistry.Metadata{
		Name: "foo", Version: "v1.0.0", PackageZipURL: zipURL,
		PackageZipChecksums: modregistry.Checksums{Sha256: hexSHA256(zipData)},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}

	http := fakeHTTP{byURL: map[string][]byte{metaURL: metaJSON, zipURL: zipData}}
	c := New(t.TempDir(), modregistry.New(http))

	res, fetchErr := c.Fetch(context.Background(), p)
	if fetchErr != nil {
		t.Fatalf("Fetch: %v", fetchErr)
	}
	data, err := os.ReadFile(filepath.Join(res.Dir, "foo.pkl"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(data) != "x = 1" {
		t.Fatalf("got %q, want %q", data, "x = 1")
	}

	// A second fetch should hit the warm on-disk cache without needing the
	// registry at all.
	c2 := New(c.root, modregistry.New(fakeHTTP{byURL: map[string][]byte{}}))
	res2, fetchErr := c2.Fetch(context.Background(), p)
	if fetchErr != nil {
		t.Fatalf("second Fetch (should be warm-cache hit): %v", fetchErr)
	}
	if res2.Dir != res.Dir {
		t.Fatalf("got dir %q, want %q", res2.Dir, res.Dir)
	}
}

func TestFetchEnsuresTransitiveDependencies(t *testing.T) {
	p, err := module.Parse("package://example.com/app@v1.0.0")
	if err != nil {
		t.Fatal(err)
	}

	libZip := buildZip(t, map[string]string{"lib.pkl": "y = 2"})
	libMeta := modregistry.Metadata{
		Name: "lib", Version: "v1.0.0", PackageZipURL: "https://example.com/lib@v1.0.0.zip",
		PackageZipChecksums: modregistry.Checksums{Sha256: hexSHA256(libZip)},
	}
	libMetaJSON, err := json.Marshal(libMeta)
	if err != nil {
		t.Fatal(err)
	}

	appZip := buildZip(t, map[string]string{"app.pkl": "x = 1"})
	appMeta := modregistry.Metadata{
		Name: "app", Version: "v1.0.0", PackageZipURL: "https://example.com/app@v1.0.0.zip",
		PackageZipChecksums: modregistry.Checksums{Sha256: hexSHA256(appZip)},
		Dependencies:        map[string]modregistry.Dependency{"lib": {URI: "package://example.com/lib@v1.0.0"}},
	}
	appMetaJSON, err := json.Marshal(appMeta)
	if err != nil {
		t.Fatal(err)
	}

	http := fakeHTTP{byURL: map[string][]byte{
		"https://example.com/app@v1.0.0.json": appMetaJSON,
		"https://example.com/app@v1.0.0.zip":  appZip,
		"https://example.com/lib@v1.0.0.json": libMetaJSON,
		"https://example.com/lib@v1.0.0.zip":  libZip,
	}}
	c := New(t.TempDir(), modregistry.New(http))

	res, fetchErr := c.Fetch(context.Background(), p)
	if fetchErr != nil {
		t.Fatalf("Fetch: %v", fetchErr)
	}
	if _, err := os.Stat(filepath.Join(res.Dir, "app.pkl")); err != nil {
		t.Fatalf("app contents missing: %v", err)
	}
	lib, err := module.Parse("package://example.com/lib@v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(c.dirFor(lib), "lib.pkl")); err != nil {
		t.Fatalf("transitive dependency not populated: %v", err)
	}
}

func TestFetchNoTransitiveSkipsDependencies(t *testing.T) {
	p, err := module.Parse("package://example.com/app@v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	appZip := buildZip(t, map[string]string{"app.pkl": "x = 1"})
	appMeta := modregistry.Metadata{
		Name: "app", Version: "v1.0.0", PackageZipURL: "https://example.com/app@v1.0.0.zip",
		PackageZipChecksums: modregistry.Checksums{Sha256: hexSHA256(appZip)},
		Dependencies:        map[string]modregistry.Dependency{"lib": {URI: "package://example.com/lib@v1.0.0"}},
	}
	appMetaJSON, err := json.Marshal(appMeta)
	if err != nil {
		t.Fatal(err)
	}
	// The lib fixtures are deliberately absent: fetching them would fail.
	http := fakeHTTP{byURL: map[string][]byte{
		"https://example.com/app@v1.0.0.json": appMetaJSON,
		"https://example.com/app@v1.0.0.zip":  appZip,
	}}
	c := New(t.TempDir(), modregistry.New(http))
	c.NoTransitive = true

	if _, fetchErr := c.Fetch(context.Background(), p); fetchErr != nil {
		t.Fatalf("Fetch with NoTransitive: %v", fetchErr)
	}
}

func TestFetchRejectsMetadataChecksumMismatch(t *testing.T) {
	p, err := module.Parse("package://example.com/foo@v1.0.0::sha256:0000000000000000000000000000000000000000000000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	metaURL := "https://example.com/foo@v1.0.0.json"
	metaJSON := []byte(`{"name":"foo","version":"v1.0.0"}`)
	http := fakeHTTP{byURL: map[string][]byte{metaURL: metaJSON}}
	c := New(t.TempDir(), modregistry.New(http))

	_, fetchErr := c.Fetch(context.Background(), p)
	if fetchErr == nil {
		t.Fatal("expected a metadata checksum mismatch error")
	}
}

func TestFetchRejectsZipChecksumMismatch(t *testing.T) {
	p, err := module.Parse("package://example.com/foo@v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	zipData := buildZip(t, map[string]string{"foo.pkl": "x = 1"})
	metaURL := "https://example.com/foo@v1.0.0.json"
	zipURL := "https://example.com/foo@v1.0.0.zip"
	meta := modregistry.Metadata{
		Name: "foo", Version: "v1.0.0", PackageZipURL: zipURL,
		PackageZipChecksums: modregistry.Checksums{Sha256: "deadbeef"},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	http := fakeHTTP{byURL: map[string][]byte{metaURL: metaJSON, zipURL: zipData}}
	c := New(t.TempDir(), modregistry.New(http))

	_, fetchErr := c.Fetch(context.Background(), p)
	if fetchErr == nil {
		t.Fatal("expected a zip checksum mismatch error")
	}
}

func TestFetchRejectsZipSlip(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../../escape.pkl")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("evil")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	zipData := buf.Bytes()

	p, err := module.Parse("package://example.com/foo@v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	metaURL := "https://example.com/foo@v1.0.0.json"
	zipURL := "https://example.com/foo@v1.0.0.zip"
	meta := modregistry.Metadata{
		Name: "foo", Version: "v1.0.0", PackageZipURL: zipURL,
		PackageZipChecksums: modregistry.Checksums{Sha256: hexSHA256(zipData)},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	http := fakeHTTP{byURL: map[string][]byte{metaURL: metaJSON, zipURL: zipData}}
	c := New(t.TempDir(), modregistry.New(http))

	_, fetchErr := c.Fetch(context.Background(), p)
	if fetchErr == nil {
		t.Fatal("expected a zip-slip rejection")
	}
}
