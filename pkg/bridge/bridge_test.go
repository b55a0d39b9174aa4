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

package bridge_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnersdk/journeycore/pkg/bridge"
)

func generateSigner(t *testing.T) *bridge.Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &bridge.Signer{Kid: "bridge-signing-key", Key: key}
}

type collectingSend struct {
	mu   sync.Mutex
	msgs []bridge.OutboundEnvelope
}

func (c *collectingSend) fn() bridge.SendToPage {
	return func(envelope bridge.OutboundEnvelope) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.msgs = append(c.msgs, envelope)
	}
}

func (c *collectingSend) all() []bridge.OutboundEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bridge.OutboundEnvelope, len(c.msgs))
	copy(out, c.msgs)
	return out
}

type collectingSink struct {
	mu    sync.Mutex
	names []string
}

func (s *collectingSink) fn() bridge.EventSink {
	return func(name string, payload map[string]interface{}) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.names = append(s.names, name)
	}
}

func (s *collectingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

type stubPlugin struct {
	method string
	result interface{}
	err    error
}

func (p *stubPlugin) Name() string                  { return "stub" }
func (p *stubPlugin) CanHandle(method string) bool  { return method == p.method }
func (p *stubPlugin) Handle(method string, params map[string]interface{}) (interface{}, error) {
	return p.result, p.err
}

type singlePluginRegistry struct {
	plugin bridge.Plugin
}

func (r *singlePluginRegistry) Resolve(method string) (bridge.Plugin, bool) {
	if r.plugin != nil && r.plugin.CanHandle(method) {
		return r.plugin, true
	}
	return nil, false
}

func helloMessage(origin, nonce string) bridge.InboundEnvelope {
	return bridge.InboundEnvelope{
		Kind: bridge.KindEvent,
		Name: "bridge_hello",
		Payload: map[string]interface{}{
			"origin":    origin,
			"pageNonce": nonce,
		},
	}
}

// TestHandshakeAllowedOriginTransitionsToReady covers spec §8 scenario S5:
// a bridge_hello from an allow-listed origin moves the bridge to ready and
// emits exactly one bridge_ready event.
func TestHandshakeAllowedOriginTransitionsToReady(t *testing.T) {
	send := &collectingSend{}
	b := bridge.New([]string{"https://partner.example"}, false, nil, nil, send.fn(), "1.0.0", nil, nil)

	assert.False(t, b.IsReady())
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))
	assert.True(t, b.IsReady())

	msgs := send.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bridge_ready", msgs[0].Name)
	assert.Equal(t, bridge.BridgeVersion, msgs[0].Meta.BridgeVersion)
	assert.NotEmpty(t, msgs[0].Meta.Traceparent)
	assert.Empty(t, msgs[0].Sig)
}

// TestHandshakeScenarioS5 matches spec §8 scenario S5 exactly: an allowed
// origin yields a signed bridge_ready with sessionProofJws set, and a
// subsequent disallowed origin yields ORIGIN_BLOCKED.
func TestHandshakeScenarioS5(t *testing.T) {
	send := &collectingSend{}
	signer := generateSigner(t)
	attest := func() (string, error) { return "attestation-proof", nil }
	b := bridge.New([]string{"https://example.com"}, false, nil, nil, send.fn(), "1.0.0", signer, attest)

	b.Dispatch(helloMessage("https://example.com", "p1"))
	b.Dispatch(helloMessage("https://evil.test", "p1"))

	msgs := send.all()
	require.Len(t, msgs, 2)

	assert.Equal(t, "bridge_ready", msgs[0].Name)
	assert.NotEmpty(t, msgs[0].Sig)
	payload, ok := msgs[0].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "attestation-proof", payload["sessionProofJws"])

	assert.Equal(t, "ORIGIN_BLOCKED", msgs[1].Name)
}

// TestHandshakeRejectedOriginStaysNotReadyAndEmitsOriginBlocked covers
// property 7 (spec §8): while notReady, the bridge never emits anything
// other than ORIGIN_BLOCKED or bridge_ready.
func TestHandshakeRejectedOriginStaysNotReadyAndEmitsOriginBlocked(t *testing.T) {
	send := &collectingSend{}
	b := bridge.New([]string{"https://partner.example"}, false, nil, nil, send.fn(), "1.0.0", nil, nil)

	b.Dispatch(helloMessage("https://evil.example", "nonce-1"))

	assert.False(t, b.IsReady())
	msgs := send.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ORIGIN_BLOCKED", msgs[0].Name)
}

// TestNotReadyIgnoresNonHelloMessages covers property 7: messages other
// than bridge_hello are dropped while notReady, with no emission at all.
func TestNotReadyIgnoresNonHelloMessages(t *testing.T) {
	send := &collectingSend{}
	sink := &collectingSink{}
	b := bridge.New(nil, false, sink.fn(), nil, send.fn(), "1.0.0", nil, nil)

	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindEvent, Name: "some_event", Payload: map[string]interface{}{}})

	assert.False(t, b.IsReady())
	assert.Empty(t, send.all())
	assert.Empty(t, sink.all())
}

// TestUnauthorizedMethodEmitsExactlyOneBridgeForbidden covers property 8:
// a request for a method outside the current step's allow-list produces
// exactly one BRIDGE_FORBIDDEN and does not reach the sink or a plugin.
func TestUnauthorizedMethodEmitsExactlyOneBridgeForbidden(t *testing.T) {
	send := &collectingSend{}
	sink := &collectingSink{}
	b := bridge.New([]string{"https://partner.example"}, false, sink.fn(), nil, send.fn(), "1.0.0", nil, nil)
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))
	b.UpdateAllowedMethods([]string{"device.getInfo"})

	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindRequest, Name: "device.reboot", Payload: map[string]interface{}{}})

	msgs := send.all()
	require.Len(t, msgs, 2) // bridge_ready + BRIDGE_FORBIDDEN
	assert.Equal(t, "BRIDGE_FORBIDDEN", msgs[1].Name)
	assert.Empty(t, sink.all())
}

func TestAllowedRequestRoutesToPluginOnSuccess(t *testing.T) {
	send := &collectingSend{}
	registry := &singlePluginRegistry{plugin: &stubPlugin{method: "device.getInfo", result: map[string]interface{}{"os": "ios"}}}
	b := bridge.New([]string{"https://partner.example"}, false, nil, registry, send.fn(), "1.0.0", nil, nil)
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))
	b.UpdateAllowedMethods([]string{"device.getInfo"})

	reqID := json.RawMessage(`"req-1"`)
	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindRequest, Name: "device.getInfo", ID: reqID, Payload: map[string]interface{}{}})

	msgs := send.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, bridge.KindResponse, msgs[1].Kind)
	assert.Equal(t, "device.getInfo", msgs[1].Name)
	assert.Equal(t, reqID, msgs[1].ID)
}

func TestAllowedRequestPluginErrorEmitsBridgeError(t *testing.T) {
	send := &collectingSend{}
	registry := &singlePluginRegistry{plugin: &stubPlugin{method: "device.getInfo", err: errors.New("denied by os")}}
	b := bridge.New([]string{"https://partner.example"}, false, nil, registry, send.fn(), "1.0.0", nil, nil)
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))
	b.UpdateAllowedMethods([]string{"device.getInfo"})

	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindRequest, Name: "device.getInfo", Payload: map[string]interface{}{}})

	msgs := send.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "BRIDGE_ERROR", msgs[1].Name)
}

func TestAllowedRequestWithNoPluginForwardsToSinkAndAcks(t *testing.T) {
	send := &collectingSend{}
	sink := &collectingSink{}
	b := bridge.New([]string{"https://partner.example"}, false, sink.fn(), nil, send.fn(), "1.0.0", nil, nil)
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))
	b.UpdateAllowedMethods([]string{"analytics.track"})

	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindRequest, Name: "analytics.track", Payload: map[string]interface{}{"event": "click"}})

	assert.Equal(t, []string{"analytics.track"}, sink.all())
	msgs := send.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, bridge.KindResponse, msgs[1].Kind)
}

func TestReadyEventMessagesForwardToSink(t *testing.T) {
	send := &collectingSend{}
	sink := &collectingSink{}
	b := bridge.New([]string{"https://partner.example"}, false, sink.fn(), nil, send.fn(), "1.0.0", nil, nil)
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))

	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindEvent, Name: "page_loaded", Payload: map[string]interface{}{}})

	assert.Equal(t, []string{"page_loaded"}, sink.all())
}

func TestUpdateAllowedMethodsReplacesPreviousSet(t *testing.T) {
	send := &collectingSend{}
	b := bridge.New([]string{"https://partner.example"}, false, nil, nil, send.fn(), "1.0.0", nil, nil)
	b.Dispatch(helloMessage("https://partner.example", "nonce-1"))

	b.UpdateAllowedMethods([]string{"a.one"})
	b.UpdateAllowedMethods([]string{"b.two"})

	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindRequest, Name: "a.one", Payload: map[string]interface{}{}})
	msgs := send.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "BRIDGE_FORBIDDEN", msgs[1].Name)
}

func TestFileOriginAllowedWhenEnabled(t *testing.T) {
	send := &collectingSend{}
	b := bridge.New(nil, true, nil, nil, send.fn(), "1.0.0", nil, nil)

	b.Dispatch(helloMessage("file:///index.html", "nonce-1"))

	assert.True(t, b.IsReady())
	msgs := send.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bridge_ready", msgs[0].Name)
}
