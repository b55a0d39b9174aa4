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

// Package keystore resolves a JWS header's kid to the ES256 public key
// that should have produced the signature, for manifest signature
// verification (spec §4.1).
package keystore

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// Store resolves a kid to its ES256 public key.
type Store interface {
	Resolve(kid string) (*ecdsa.PublicKey, error)
}

// StaticStore is a fixed, in-memory kid → key table, the shape a partner
// application builds from its pinned trust material at startup. There is
// no remote refresh: the spec explicitly leaves that out of scope (§1
// Non-goals).
type StaticStore struct {
	mu   sync.RWMutex
	keys map[string]*ecdsa.PublicKey
}

// NewStaticStore builds a StaticStore from a kid → key table. The caller
// retains ownership of the map; NewStaticStore copies it.
func NewStaticStore(keys map[string]*ecdsa.PublicKey) *StaticStore {
	cp := make(map[string]*ecdsa.PublicKey, len(keys))
	for k, v := range keys {
		cp[k] = v
	}
	return &StaticStore{keys: cp}
}

// Resolve returns the public key for kid, or KeyNotFoundError if absent.
func (s *StaticStore) Resolve(kid string) (*ecdsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[kid]
	if !ok {
		return nil, &journeyerrors.KeyNotFoundError{Kid: kid}
	}
	return key, nil
}

// Put registers or replaces the key for kid. Exposed mainly for tests and
// for a caller wiring in keys fetched out-of-band at startup; the spec
// defines no remote-refresh protocol so no network-facing equivalent
// exists here.
func (s *StaticStore) Put(kid string, key *ecdsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = key
}

// ParseECPublicKeyPEM decodes a PEM-encoded SubjectPublicKeyInfo block
// into an ECDSA public key, the format trust material is typically
// distributed in.
func ParseECPublicKeyPEM(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("keystore: no PEM block found")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: parsing public key: %w", err)
	}

	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keystore: key is not an ECDSA public key")
	}
	return ecKey, nil
}
