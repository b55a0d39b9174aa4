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
	"encoding/json"
	"sync"
	"time"
)

const (
	// snapshotService and snapshotAccount identify the single snapshot
	// slot in the secure store (spec §4.6 "a fixed (service, account)
	// pair"; "Exactly one snapshot slot per process identity", §3).
	snapshotService = "journeycore"
	snapshotAccount = "session-snapshot"
)

// Snapshot is the PII-free, persisted resume record (spec §3 Snapshot).
type Snapshot struct {
	JourneyID      string    `json:"journeyId"`
	StepPointer    string    `json:"stepPointer"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Ts             time.Time `json:"ts"`
}

// Session is the mutable, process-local session state (spec §3 Session).
// It outlives individual journeys for the lifetime of the process.
type Session struct {
	store Store

	mu             sync.RWMutex
	correlationID  CorrelationID
	contextToken   string
	resumeToken    string
	stepPointer    string
	idempotencyKey string
}

// Start creates a session with a fresh correlation id and idempotency key
// (spec §4.6 "Fresh correlationId and idempotencyKey at process start and
// on startSession"). contextToken is the caller-supplied opaque
// authorization token (spec §3).
func Start(store Store, contextToken string) *Session {
	return &Session{
		store:          store,
		correlationID:  NewCorrelationID(),
		contextToken:   contextToken,
		idempotencyKey: newIdempotencyKey(),
	}
}

// CorrelationID returns the session's correlation id.
func (s *Session) CorrelationID() CorrelationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.correlationID
}

// ContextToken returns the caller-supplied authorization token.
func (s *Session) ContextToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contextToken
}

// IdempotencyKey returns the session's idempotency key.
func (s *Session) IdempotencyKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idempotencyKey
}

// StepPointer returns the identifier of the most recently entered step.
func (s *Session) StepPointer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepPointer
}

// ResumeToken returns the caller-supplied resume token bound to this
// session, if any.
func (s *Session) ResumeToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumeToken
}

// SaveSnapshot JSON-encodes {journeyId, stepPointer, idempotencyKey, ts}
// and writes it to the secure store, replacing any prior value
// unconditionally (spec §4.6 saveSnapshot).
func (s *Session) SaveSnapshot(ctx context.Context, journeyID, stepID string) bool {
	s.mu.Lock()
	s.stepPointer = stepID
	snap := Snapshot{
		JourneyID:      journeyID,
		StepPointer:    stepID,
		IdempotencyKey: s.idempotencyKey,
		Ts:             now(),
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return false
	}

	s.store.Delete(ctx, snapshotService, snapshotAccount)
	return s.store.Set(ctx, data, snapshotService, snapshotAccount)
}

// LoadSnapshot reads the snapshot slot and, if found, binds resumeToken
// to the session and restores stepPointer/idempotencyKey (spec §4.6
// loadSnapshot).
//
// resumeToken is not yet used to gate which snapshot is returned — the
// store holds exactly one slot and any token unlocks it. This is flagged
// in spec §9 open question 1 and intentionally left unresolved rather
// than guessed at.
// TODO: bind resumeToken to the snapshot once a keyed-lookup or
// authenticated-binding scheme is specified.
func (s *Session) LoadSnapshot(ctx context.Context, resumeToken string) (*Snapshot, bool) {
	data := s.store.Get(ctx, snapshotService, snapshotAccount)
	if data == nil {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}

	s.mu.Lock()
	s.resumeToken = resumeToken
	s.stepPointer = snap.StepPointer
	s.idempotencyKey = snap.IdempotencyKey
	s.mu.Unlock()

	return &snap, true
}

// now is a seam so tests can avoid depending on wall-clock time drift.
var now = time.Now
