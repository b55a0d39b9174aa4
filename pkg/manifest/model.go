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

// Package manifest defines the Manifest v1.1 document model and its
// loader: fetch, detached-JWS verification, and validation.
package manifest

import "encoding/json"

// StepType is the kind of node a Step represents in the journey graph.
type StepType string

const (
	StepWeb      StepType = "web"
	StepNative   StepType = "native"
	StepServer   StepType = "server"
	StepTerminal StepType = "terminal"
)

// Manifest is the signed, versioned configuration document describing a
// journey. It is deserialized once and immutable thereafter.
type Manifest struct {
	ManifestVersion string            `json:"manifestVersion"`
	MinSdk          string            `json:"minSdk"`
	JourneyID       string            `json:"journeyId"`
	OapiBundle      string            `json:"oapiBundle"`
	StartStep       string            `json:"startStep"`
	Headers         map[string]string `json:"headers,omitempty"`
	Security        Security          `json:"security"`
	ResumePolicy    *ResumePolicy     `json:"resumePolicy,omitempty"`
	Steps           map[string]Step   `json:"steps"`
	// Signature is a detached JWS compact serialization ("header..signature").
	Signature string `json:"signature"`
}

// Security carries the manifest's origin allow-list and handshake/pinning
// flags (spec §3 Manifest.security).
type Security struct {
	AllowedOrigins   []string               `json:"allowedOrigins"`
	Pinning          bool                   `json:"pinning"`
	Attestation      map[string]interface{} `json:"attestation,omitempty"`
	RequireHandshake bool                   `json:"requireHandshake"`
}

// ResumePolicy names the steps at which a snapshot should be taken.
type ResumePolicy struct {
	SnapshotOn []string `json:"snapshotOn"`
}

// Step is one node of the journey state machine.
type Step struct {
	Type           StepType        `json:"type"`
	URL            string          `json:"url,omitempty"`
	Plugin         string          `json:"plugin,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	TimeoutMs      *int64          `json:"timeoutMs,omitempty"`
	Bindings       []Binding       `json:"bindings,omitempty"`
	On             map[string]Transition `json:"on,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	BridgeAllow    []string        `json:"bridgeAllow,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// Binding attaches an API operation to an inbound event at a step.
type Binding struct {
	OnEvent       string `json:"onEvent"`
	Call          Call   `json:"call"`
	OnSuccessEmit string `json:"onSuccessEmit,omitempty"`
	OnErrorEmit   string `json:"onErrorEmit,omitempty"`
}

// Call names the operation a Binding invokes and how to build its body.
type Call struct {
	OperationID string            `json:"operationId"`
	ArgsFrom    string            `json:"argsFrom,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Transition is a rule keyed by event name that moves the state machine
// from one step to another, possibly guarded.
type Transition struct {
	To        string `json:"to,omitempty"`
	Emit      string `json:"emit,omitempty"`
	GuardExpr string `json:"guardExpr,omitempty"`
}
