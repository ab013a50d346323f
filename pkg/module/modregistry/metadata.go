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

// Package modregistry fetches package metadata and ZIPs over HTTPS,
// grounded on the teacher's mod/modregistry/client.go (an HTTP(S)-backed
// module registry client) with the OCI-registry transport it actually
// uses replaced by the plain HTTPS GET spec.md §4.2 describes ("downloads
// metadata + ZIP... over HTTPS using the configured HTTP client").
package modregistry

// Checksums holds the published hashes of one package's downloadable
// assets, as embedded in its metadata document (spec.md §6 "Package
// cache on disk").
type Checksums struct {
	Sha256 string `json:"sha256"`
}

// Dependency is one entry of a package's declared dependency map.
type Dependency struct {
	URI string `json:"uri"`
}

// Metadata is the parsed form of a package's `<name>@<ver>.json` document
// (spec.md §6 "Project file" / "Package cache on disk").
type Metadata struct {
	Name                string                `json:"name"`
	PackageURI          string                `json:"packageUri"`
	Version             string                `json:"version"`
	PackageZipURL       string                `json:"packageZipUrl"`
	PackageZipChecksums Checksums             `json:"packageZipChecksums"`
	Dependencies        map[string]Dependency `json:"dependencies"`
	Authors             []string              `json:"authors"`
	Annotations         map[string]string     `json:"annotations"`
}
