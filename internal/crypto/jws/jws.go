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

// Package jws implements detached JWS compact serialization with ES256,
// the signing scheme used for the manifest's signature field and the
// bridge's outbound envelope signatures.
//
// A detached compact serialization has the form "header..signature": the
// payload segment is empty and must be reconstructed by the caller from an
// out-of-band canonical representation before verification. Reconstruction
// correctness depends entirely on matching the signer's canonicalization:
// sorted keys at every nesting level, compact separators, unescaped
// forward slashes.
package jws

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Alg is the only signing algorithm this runtime accepts.
const Alg = "ES256"

// Header is the JOSE header for a detached ES256 JWS.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// CanonicalJSON re-encodes v with object keys sorted lexicographically at
// every nesting level, compact separators, and no forward-slash escaping.
// v may be a raw struct/map or anything else json.Marshal accepts.
func CanonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jws: marshaling value for canonicalization: %w", err)
	}
	return CanonicalJSONFromRaw(data)
}

// CanonicalJSONFromRaw re-serializes a raw JSON document into canonical
// form, optionally dropping top-level fields first (used to strip the
// manifest's own "signature" field before reconstructing its signed
// payload).
func CanonicalJSONFromRaw(raw []byte, omit ...string) ([]byte, error) {
	var generic interface{} = map[string]interface{}{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("jws: decoding document for canonicalization: %w", err)
	}

	if len(omit) > 0 {
		doc, ok := generic.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("jws: cannot omit fields from a non-object document")
		}
		for _, f := range omit {
			delete(doc, f)
		}
		generic = doc
	}

	return encodeCanonical(generic)
}

// encodeCanonical relies on encoding/json sorting map[string]interface{}
// keys (it always has) and never escaping forward slashes; only HTML
// escaping needs to be disabled explicitly.
func encodeCanonical(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("jws: encoding canonical json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseHeader extracts the JOSE header from a detached compact
// serialization without verifying anything, so callers can resolve the
// signing key by kid before reconstructing the payload.
func ParseHeader(compact string) (Header, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return Header{}, fmt.Errorf("jws: malformed compact serialization")
	}
	if parts[1] != "" {
		return Header{}, fmt.Errorf("jws: expected detached serialization with an empty payload segment")
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Header{}, fmt.Errorf("jws: decoding header segment: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, fmt.Errorf("jws: decoding header: %w", err)
	}
	if header.Alg != Alg {
		return Header{}, fmt.Errorf("jws: unsupported alg %q, want %q", header.Alg, Alg)
	}
	if header.Kid == "" {
		return Header{}, fmt.Errorf("jws: header is missing kid")
	}
	return header, nil
}

// SignDetached produces a detached compact serialization "header..signature"
// over payload, signing with the given ES256 private key.
func SignDetached(payload []byte, kid string, key *ecdsa.PrivateKey) (string, error) {
	headerJSON, err := json.Marshal(Header{Alg: Alg, Kid: kid})
	if err != nil {
		return "", fmt.Errorf("jws: marshaling header: %w", err)
	}

	headerB64 := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	signingInput := headerB64 + "." + payloadB64

	sig, err := jwt.SigningMethodES256.Sign(signingInput, key)
	if err != nil {
		return "", fmt.Errorf("jws: signing: %w", err)
	}

	return headerB64 + ".." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyDetached verifies a detached compact serialization against the
// given reconstructed payload bytes. resolveKey resolves the header's kid
// to the public key that should have produced the signature.
func VerifyDetached(compact string, payload []byte, resolveKey func(kid string) (*ecdsa.PublicKey, error)) error {
	header, err := ParseHeader(compact)
	if err != nil {
		return err
	}

	pub, err := resolveKey(header.Kid)
	if err != nil {
		return err
	}

	parts := strings.Split(compact, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("jws: decoding signature segment: %w", err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	signingInput := parts[0] + "." + payloadB64

	if err := jwt.SigningMethodES256.Verify(signingInput, sig, pub); err != nil {
		return fmt.Errorf("jws: signature verification failed: %w", err)
	}
	return nil
}
