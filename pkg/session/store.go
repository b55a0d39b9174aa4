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

// Package session maintains the correlation identifiers and PII-free
// resume snapshot described in spec §4.6 / §6.
package session

import "context"

// Store is the secure key-value abstraction the session manager persists
// snapshots through (spec §4.6 "Store contract"). Implementations must be
// safe under the reader-writer discipline of §5: concurrent Get calls,
// exclusive Set/Delete calls.
type Store interface {
	// Set writes data under (service, account), returning true on success.
	Set(ctx context.Context, data []byte, service, account string) bool

	// Get reads the value stored under (service, account). Returns nil if
	// no value is present.
	Get(ctx context.Context, service, account string) []byte

	// Delete removes the value stored under (service, account), returning
	// true if a value was removed (or there was nothing to remove).
	Delete(ctx context.Context, service, account string) bool
}
