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

package originlist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/partnersdk/journeycore/internal/originlist"
)

func TestIsAllowedMatchesHostCaseInsensitively(t *testing.T) {
	assert.True(t, originlist.IsAllowed("https://Example.com", []string{"https://example.COM"}, false))
}

func TestIsAllowedIgnoresPortAndPath(t *testing.T) {
	assert.True(t, originlist.IsAllowed("https://example.com:8443/some/path", []string{"https://example.com"}, false))
}

func TestIsAllowedRejectsUnlistedHost(t *testing.T) {
	assert.False(t, originlist.IsAllowed("https://evil.example", []string{"https://example.com"}, false))
}

// Property 3: non-https origins are rejected when allowFileOrigins is false.
func TestIsAllowedRejectsNonHTTPSWithoutFileOrigins(t *testing.T) {
	assert.False(t, originlist.IsAllowed("http://example.com", []string{"https://example.com"}, false))
	assert.False(t, originlist.IsAllowed("file:///tmp/page.html", []string{"https://example.com"}, false))
}

func TestIsAllowedAcceptsFileOriginWhenEnabled(t *testing.T) {
	assert.True(t, originlist.IsAllowed("file:///tmp/page.html", nil, true))
}

func TestIsAllowedRejectsHTTPSAllowListEntryMismatch(t *testing.T) {
	assert.False(t, originlist.IsAllowed("https://example.com", []string{"http://example.com"}, false))
}

func TestIsAllowedRejectsEmptyHost(t *testing.T) {
	assert.False(t, originlist.IsAllowed("https:///path", []string{"https://example.com"}, false))
}

func TestIsAllowedRejectsMalformedOrigin(t *testing.T) {
	assert.False(t, originlist.IsAllowed("://not-a-url", []string{"https://example.com"}, false))
}
