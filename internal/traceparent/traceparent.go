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

// Package traceparent generates W3C traceparent header values, shared by
// the API client (spec §4.3 step 2) and the bridge's outbound envelope
// meta (spec §4.5/§6).
package traceparent

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New generates a traceparent of the form 00-<16-byte-hex>-<8-byte-hex>-01.
func New() (string, error) {
	traceID := make([]byte, 16)
	if _, err := rand.Read(traceID); err != nil {
		return "", err
	}
	spanID := make([]byte, 8)
	if _, err := rand.Read(spanID); err != nil {
		return "", err
	}
	return fmt.Sprintf("00-%s-%s-01", hex.EncodeToString(traceID), hex.EncodeToString(spanID)), nil
}
