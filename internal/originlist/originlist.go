// Copyright 2025 Tom Barlow
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

// Package originlist implements the bridge handshake's origin allow-list
// check (spec §4.7). It is a pure function with no state of its own.
package originlist

import (
	"net/url"
	"strings"
)

// IsAllowed reports whether origin is permitted to complete a bridge
// handshake against allowList (spec §4.7).
//
// A file:// origin is allowed only when allowFileOrigins is set. Any other
// origin must be https with a non-empty host, and must match an allow-list
// entry that is itself https with the same host (case-insensitive);
// path and port are not compared.
func IsAllowed(origin string, allowList []string, allowFileOrigins bool) bool {
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if allowFileOrigins && strings.EqualFold(o.Scheme, "file") {
		return true
	}

	if !strings.EqualFold(o.Scheme, "https") || o.Host == "" {
		return false
	}

	for _, candidate := range allowList {
		c, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if strings.EqualFold(c.Scheme, "https") && strings.EqualFold(c.Hostname(), o.Hostname()) {
			return true
		}
	}

	return false
}
