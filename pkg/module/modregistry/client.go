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

package modregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"pkl-lang.org/go/pkg/external"
	"pkl-lang.org/go/pkg/module"
)

// Client fetches a package's metadata document and ZIP asset over the
// host-supplied external.HTTPClient, the same seam the teacher's
// modregistry.Client uses for its OCI transport (transport is whatever
// the host configures — proxy, CA bundle, URL rewrites — per spec.md §6).
type Client struct {
	HTTP external.HTTPClient

	// Rewrite, when non-nil, is applied to every URL before it is fetched;
	// hosts wire pkg/module/modconfig's configured rewrite rules in here.
	Rewrite func(url string) string
}

func New(http external.HTTPClient) *Client { return &Client{HTTP: http} }

func (c *Client) url(u string) string {
	if c.Rewrite != nil {
		return c.Rewrite(u)
	}
	return u
}

// metadataURL is the well-known location a registry host serves a
// package's metadata document at. The exact layout is a registry-host
// convention; this mirrors the on-disk mirror of spec.md §6 ("Package
// cache on disk") one level up, at `https://<host>/<name>@<ver>.json`.
func metadataURL(p module.PackageURI) string {
	return fmt.Sprintf("https://%s/%s@%s.json", p.Host, p.Name, p.Version)
}

// FetchMetadata downloads and parses the metadata document for p,
// returning it together with its raw bytes' SHA-256 so the caller can
// apply spec.md §4.2 step 2's checksum check ("if the caller supplied a
// checksum, it must match exactly").
func (c *Client) FetchMetadata(ctx context.Context, p module.PackageURI) (*Metadata, string, error) {
	data, err := c.HTTP.Get(ctx, c.url(metadataURL(p)), nil)
	if err != nil {
		return nil, "", fmt.Errorf("modregistry: fetching metadata for %s: %w", p, err)
	}
	sum := sha256.Sum256(data)
	hexSum := hex.EncodeToString(sum[:])
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, "", fmt.Errorf("modregistry: parsing metadata for %s: %w", p, err)
	}
	return &meta, hexSum, nil
}

// FetchZip downloads the ZIP asset named by meta.PackageZipURL, returning
// its bytes together with their SHA-256 for the step-3 checksum check.
func (c *Client) FetchZip(ctx context.Context, meta *Metadata) ([]byte, string, error) {
	data, err := c.HTTP.Get(ctx, c.url(meta.PackageZipURL), nil)
	if err != nil {
		return nil, "", fmt.Errorf("modregistry: fetching zip %s: %w", meta.PackageZipURL, err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
