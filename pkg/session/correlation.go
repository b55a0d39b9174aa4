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

package session

import (
	"context"

	"github.com/google/uuid"
)

// CorrelationID identifies a session across every event it emits
// (spec §3 Session: "correlationId — created at session start; appears
// in every emitted event").
type CorrelationID string

// correlationKeyType is an unexported context key type to avoid collisions.
type correlationKeyType struct{}

var correlationKey = correlationKeyType{}

// NewCorrelationID generates a fresh RFC 4122 UUID correlation id.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}

// String returns the string form of the correlation id.
func (c CorrelationID) String() string { return string(c) }

// ToContext attaches a correlation id to a context for propagation into
// the API client and event emitter.
func ToContext(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// FromContext retrieves the correlation id from a context, generating a
// fresh one if none is present.
func FromContext(ctx context.Context) CorrelationID {
	if id, ok := ctx.Value(correlationKey).(CorrelationID); ok {
		return id
	}
	return NewCorrelationID()
}

// FromContextOrEmpty retrieves the correlation id, returning "" if absent
// rather than minting a new one. Used by transports that only want to
// propagate an existing id, never invent one.
func FromContextOrEmpty(ctx context.Context) CorrelationID {
	if id, ok := ctx.Value(correlationKey).(CorrelationID); ok {
		return id
	}
	return ""
}

// newIdempotencyKey generates a fresh per-session idempotency key
// (spec §3 Session: "idempotencyKey — freshly generated per session,
// preserved across snapshots").
func newIdempotencyKey() string {
	return uuid.New().String()
}
