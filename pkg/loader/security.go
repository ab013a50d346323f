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

package loader

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// validateHost normalizes and validates a hostname taken from a
// `package:`/`https:` URI before it is checked against the allow-list
// (spec.md §4.1's allow-check), rejecting hosts with invalid IDNA
// encoding rather than letting a malformed Unicode host slip past a
// string-equality allow-list check. An explicit port (spec.md §6's
// `<host>[:port]`) is split off before the IDNA check and reattached to
// the result; IP literals pass through unchanged.
func validateHost(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	name, port := host, ""
	if h, p, err := net.SplitHostPort(host); err == nil {
		name, port = h, p
	}
	if ip := net.ParseIP(strings.Trim(name, "[]")); ip != nil {
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	if port != "" {
		return net.JoinHostPort(ascii, port), nil
	}
	return ascii, nil
}
