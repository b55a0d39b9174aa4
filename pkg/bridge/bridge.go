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

// Package bridge implements the signed, origin-gated message channel
// between the native runtime and a hosted web page (spec §4.5).
package bridge

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partnersdk/journeycore/internal/crypto/jws"
	"github.com/partnersdk/journeycore/internal/originlist"
	"github.com/partnersdk/journeycore/internal/traceparent"
	"github.com/partnersdk/journeycore/pkg/observability"
)

// BridgeVersion is the protocol version reported in every outbound
// envelope's meta (spec §4.5, §6).
const BridgeVersion = "1.1"

// Kind tags an inbound or outbound bridge message.
type Kind string

const (
	KindEvent    Kind = "event"
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// InboundEnvelope is a message arriving from the hosted page (spec §4.5,
// §6 "Inbound bridge message").
type InboundEnvelope struct {
	Kind    Kind                   `json:"kind"`
	Name    string                 `json:"name"`
	ID      json.RawMessage        `json:"id,omitempty"`
	Payload map[string]interface{} `json:"payload"`
}

// Meta carries the per-message metadata attached to every outbound
// envelope (spec §4.5 "meta = { ts, nonce, bridgeVersion, sdkVersion,
// traceparent }").
type Meta struct {
	Ts            string `json:"ts"`
	Nonce         string `json:"nonce"`
	BridgeVersion string `json:"bridgeVersion"`
	SdkVersion    string `json:"sdkVersion"`
	Traceparent   string `json:"traceparent"`
}

// OutboundEnvelope is a message delivered to the hosted page (spec §4.5,
// §6 "Outbound bridge message").
type OutboundEnvelope struct {
	Kind    Kind            `json:"kind"`
	Name    string          `json:"name"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload interface{}     `json:"payload"`
	Meta    Meta            `json:"meta"`
	Sig     string          `json:"sig,omitempty"`
}

// signedPayload is the canonical object an outbound envelope's signature
// covers: {name, payload, meta} with sorted keys (spec §4.5).
type signedPayload struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
	Meta    Meta        `json:"meta"`
}

// state is the bridge's two-state handshake model (spec §4.5).
type state int

const (
	stateNotReady state = iota
	stateReady
)

// EventSink receives events forwarded from the page once the bridge is
// ready (spec §6 "Event sink: emit(name, attributes)"), and allowed
// requests that no plugin handles. ORIGIN_BLOCKED and bridge_ready are
// sent to the page only, never to the sink.
type EventSink func(name string, payload map[string]interface{})

// Plugin is a native capability a request can be routed to (spec §6
// "Plugin: name, canHandle(method), handle(method, params) → result |
// error").
type Plugin interface {
	Name() string
	CanHandle(method string) bool
	Handle(method string, params map[string]interface{}) (interface{}, error)
}

// PluginRegistry resolves a method name to the plugin that handles it.
type PluginRegistry interface {
	Resolve(method string) (Plugin, bool)
}

// SendToPage delivers an outbound envelope to the hosted page (spec §6
// "Web view host: dispatchToPage(script)").
type SendToPage func(envelope OutboundEnvelope)

// AttestationCollector produces the opaque proof included in
// bridge_ready's sessionProofJws (spec §4.5 "<collector output>"). A nil
// collector yields an empty string.
type AttestationCollector func() (string, error)

// Bridge drives one web-bridge session's handshake and message routing.
type Bridge struct {
	allowList        []string
	allowFileOrigins bool
	sink             EventSink
	plugins          PluginRegistry
	sendToPage       SendToPage
	sdkVersion       string
	signer           *Signer
	attestation      AttestationCollector

	mu              sync.RWMutex
	st              state
	origin          string
	pageNonce       string
	allowedMethods  map[string]struct{}
}

// Signer produces the ES256 JWS over an outbound envelope's canonical
// {name, payload, meta}, when the runtime is configured to sign outbound
// messages (spec §4.5 "A sig field is present iff a signer is configured").
type Signer struct {
	Kid string
	Key *ecdsa.PrivateKey
}

func (s *Signer) sign(payload []byte) (string, error) {
	return jws.SignDetached(payload, s.Kid, s.Key)
}

// New constructs a Bridge in its initial notReady state.
func New(allowList []string, allowFileOrigins bool, sink EventSink, plugins PluginRegistry, sendToPage SendToPage, sdkVersion string, signer *Signer, attestation AttestationCollector) *Bridge {
	return &Bridge{
		allowList:        allowList,
		allowFileOrigins: allowFileOrigins,
		sink:             sink,
		plugins:          plugins,
		sendToPage:       sendToPage,
		sdkVersion:       sdkVersion,
		signer:           signer,
		attestation:      attestation,
		st:               stateNotReady,
		allowedMethods:   map[string]struct{}{},
	}
}

// IsReady reports whether the handshake has completed.
func (b *Bridge) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st == stateReady
}

// UpdateAllowedMethods atomically replaces the current step's request
// allow-list (spec §4.5 "allowedMethods update").
func (b *Bridge) UpdateAllowedMethods(methods []string) {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	b.mu.Lock()
	b.allowedMethods = set
	b.mu.Unlock()
}

// HandleInbound parses and dispatches a raw inbound message from the page.
func (b *Bridge) HandleInbound(raw []byte) error {
	var msg InboundEnvelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("bridge: decoding inbound message: %w", err)
	}
	b.Dispatch(msg)
	return nil
}

// Dispatch routes an already-parsed inbound message.
func (b *Bridge) Dispatch(msg InboundEnvelope) {
	// A bridge_hello is checked against the allow-list in either state, so a
	// later handshake from a disallowed origin still yields ORIGIN_BLOCKED.
	if msg.Name == "bridge_hello" {
		b.handleHello(msg)
		return
	}
	if !b.IsReady() {
		// Property 7 (spec §8): the bridge never emits anything else while
		// notReady, so every other message is silently dropped here.
		return
	}

	switch msg.Kind {
	case KindEvent:
		if b.sink != nil {
			b.sink(msg.Name, msg.Payload)
		}
	case KindRequest:
		b.handleRequest(msg)
	}
}

func (b *Bridge) handleHello(msg InboundEnvelope) {
	origin, _ := msg.Payload["origin"].(string)
	pageNonce, _ := msg.Payload["pageNonce"].(string)

	if !originlist.IsAllowed(origin, b.allowList, b.allowFileOrigins) {
		observability.RecordBridgeRejection("origin_blocked")
		b.send(KindEvent, "ORIGIN_BLOCKED", nil, map[string]interface{}{"origin": origin})
		return
	}

	b.mu.Lock()
	b.st = stateReady
	b.origin = origin
	b.pageNonce = pageNonce
	b.mu.Unlock()

	var proof string
	if b.attestation != nil {
		if p, err := b.attestation(); err == nil {
			proof = p
		}
	}

	b.send(KindEvent, "bridge_ready", nil, map[string]interface{}{
		"sdkCapabilities": []string{"bridge.v1", "attestation.stub"},
		"sessionProofJws": proof,
	})
}

func (b *Bridge) handleRequest(msg InboundEnvelope) {
	b.mu.RLock()
	_, allowed := b.allowedMethods[msg.Name]
	b.mu.RUnlock()

	if !allowed {
		observability.RecordBridgeRejection("bridge_forbidden")
		b.send(KindEvent, "BRIDGE_FORBIDDEN", msg.ID, map[string]interface{}{"method": msg.Name})
		return
	}

	if b.plugins != nil {
		if plugin, ok := b.plugins.Resolve(msg.Name); ok {
			result, err := plugin.Handle(msg.Name, msg.Payload)
			if err != nil {
				b.send(KindEvent, "BRIDGE_ERROR", msg.ID, map[string]interface{}{"reason": err.Error()})
				return
			}
			b.send(KindResponse, msg.Name, msg.ID, result)
			return
		}
	}

	if b.sink != nil {
		b.sink(msg.Name, msg.Payload)
	}
	b.send(KindResponse, msg.Name, msg.ID, map[string]interface{}{"ack": true})
}

// send builds and delivers an outbound envelope, signing it when a signer
// is configured (spec §4.5 Outbound envelope).
func (b *Bridge) send(kind Kind, name string, id json.RawMessage, payload interface{}) {
	tp, err := traceparent.New()
	if err != nil {
		tp = ""
	}

	meta := Meta{
		Ts:            time.Now().UTC().Format(time.RFC3339),
		Nonce:         uuid.NewString(),
		BridgeVersion: BridgeVersion,
		SdkVersion:    b.sdkVersion,
		Traceparent:   tp,
	}

	envelope := OutboundEnvelope{Kind: kind, Name: name, ID: id, Payload: payload, Meta: meta}

	if b.signer != nil {
		canonical, err := jws.CanonicalJSON(signedPayload{Name: name, Payload: payload, Meta: meta})
		if err == nil {
			if sig, err := b.signer.sign(canonical); err == nil {
				envelope.Sig = sig
			}
		}
	}

	if b.sendToPage != nil {
		b.sendToPage(envelope)
	}
}
