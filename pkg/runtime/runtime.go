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

// Package runtime composes the manifest loader, OpenAPI resolver, API
// client, bridge, and state machine into a single startJourney entry point
// (spec §1 overview, §4 "Lifecycles").
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/partnersdk/journeycore/internal/config"
	"github.com/partnersdk/journeycore/internal/crypto/keystore"
	"github.com/partnersdk/journeycore/pkg/apiclient"
	"github.com/partnersdk/journeycore/pkg/bridge"
	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
	"github.com/partnersdk/journeycore/pkg/httpclient"
	"github.com/partnersdk/journeycore/pkg/manifest"
	"github.com/partnersdk/journeycore/pkg/observability"
	"github.com/partnersdk/journeycore/pkg/openapi"
	"github.com/partnersdk/journeycore/pkg/session"
	"github.com/partnersdk/journeycore/pkg/statemachine"
)

// RuntimeVersion is reported to the manifest loader's minSdk check and used
// as the bridge's sdkVersion (spec §4.1, §4.5).
const RuntimeVersion = "1.1.0"

// ResultKind tags which of the four mutually exclusive startJourney
// outcomes occurred (spec §7 "User-visible result").
type ResultKind int

const (
	ResultCompleted ResultKind = iota
	ResultPending
	ResultCancelled
	ResultFailed
)

// Result is the single outcome delivered per startJourney call.
type Result struct {
	Kind        ResultKind
	Payload     map[string]interface{}
	Code        journeyerrors.Code
	Message     string
	Recoverable bool
}

// WebViewHost presents the web bridge's page and forwards scripts to it
// (spec §6 "Web view host").
type WebViewHost interface {
	Present(url string, allowedOrigins []string, allowFileOrigins bool) error
	DispatchToPage(envelope bridge.OutboundEnvelope)
}

// SignInHost performs an interactive sign-in when the manifest requires a
// handshake (spec §6 "Sign-in").
type SignInHost interface {
	SignInIfNeeded(ctx context.Context, authURL, redirectScheme string) (string, error)
}

// Options carries every collaborator a journey needs beyond the manifest
// itself.
type Options struct {
	Config         *config.RuntimeConfig
	KeyStore       keystore.Store
	SnapshotStore  session.Store
	WebViewHost    WebViewHost
	SignInHost     SignInHost
	Plugins        bridge.PluginRegistry
	Signer         *bridge.Signer
	Attestation    bridge.AttestationCollector
	Tracer         observability.Tracer
	PinnedFingerprints []string
}

// Runtime owns the collaborators created for a single startJourney call
// (spec §4 "created once per startJourney call and live until the terminal
// result is delivered or the session is cancelled").
type Runtime struct {
	opts    Options
	session *session.Session

	mu     sync.Mutex
	result *Result
	done   chan struct{}
}

// New constructs a Runtime. contextToken is the caller-supplied
// authorization token threaded through manifest fetch and API calls.
func New(opts Options, contextToken string) *Runtime {
	store := opts.SnapshotStore
	if store == nil {
		store = session.NewMemoryStore()
	}
	return &Runtime{
		opts:    opts,
		session: session.Start(store, contextToken),
		done:    make(chan struct{}),
	}
}

// Session exposes the runtime's session manager, e.g. for a caller that
// wants to resume a prior journey via LoadSnapshot before calling
// StartJourney.
func (r *Runtime) Session() *session.Session { return r.session }

// StartJourney loads journeyID's manifest, resolves its OpenAPI bundle,
// wires the bridge and state machine, and blocks until a terminal result
// is produced (spec §1, §4, §7).
func (r *Runtime) StartJourney(ctx context.Context, journeyID string) Result {
	httpClient, err := httpclient.New(httpclient.Config{
		Timeout: 30 * time.Second,
		// apiclient.Client owns its own fixed retry policy (spec §4.3); the
		// transport must not also retry, or a single logical attempt would
		// silently become up to 3×3 real requests.
		RetryAttempts:      0,
		UserAgent:          "journeycore/" + RuntimeVersion,
		PinnedFingerprints: r.opts.PinnedFingerprints,
	})
	if err != nil {
		return r.failf(journeyerrors.CodeUnknown, false, "building http client: %v", err)
	}

	loader := manifest.NewLoader(httpClient, r.opts.KeyStore, manifest.LoaderConfig{
		RemoteConfigURL:                       r.opts.Config.RemoteConfigURL,
		DisableManifestSignatureVerification: r.opts.Config.FeatureFlags.DisableManifestSignatureVerification,
	}, RuntimeVersion)

	m, err := loader.Load(ctx, journeyID, r.session.ContextToken())
	if err != nil {
		return r.terminalFromFatalError(err)
	}

	bundle, err := fetchBundle(ctx, httpClient, m.OapiBundle, r.session.ContextToken())
	if err != nil {
		return r.terminalFromFatalError(err)
	}

	resolver, err := openapi.Parse(bundle)
	if err != nil {
		return r.terminalFromFatalError(err)
	}
	if err := resolver.ValidateOperationIDs(m); err != nil {
		return r.terminalFromFatalError(err)
	}

	var clientOpts []apiclient.Option
	if r.opts.Tracer != nil {
		clientOpts = append(clientOpts, apiclient.WithTracer(r.opts.Tracer))
	}
	if len(m.Headers) > 0 {
		clientOpts = append(clientOpts, apiclient.WithDefaultHeaders(m.Headers))
	}
	client := apiclient.New(httpClient, resolver, resolver.ServerURL(), clientOpts...)

	if m.Security.RequireHandshake && r.opts.SignInHost != nil {
		if _, err := r.opts.SignInHost.SignInIfNeeded(ctx, resolver.ServerURL(), r.opts.Config.RedirectScheme); err != nil {
			return r.failf(journeyerrors.CodeAuthExpired, false, "sign-in failed: %v", err)
		}
	}

	var wireBridge *bridge.Bridge
	var webHost WebViewHost = r.opts.WebViewHost

	sm := statemachine.New(m.JourneyID, m.Steps, m.StartStep, client, r.session, func(name string, payload map[string]interface{}) {
		if wireBridge != nil {
			r.dispatchToBridge(wireBridge, name, payload)
		}
	}, statemachine.Callbacks{
		OnStepEnter: func(stepID string) {
			if wireBridge == nil {
				return
			}
			step := m.Steps[stepID]
			wireBridge.UpdateAllowedMethods(step.BridgeAllow)
		},
		OnTerminal: func(stepID string, step manifest.Step) {
			r.deliverTerminalStep(step)
		},
		OnError: func(code journeyerrors.Code, recoverable bool, message string) {
			if code == journeyerrors.CodeOriginBlocked {
				r.deliver(Result{Kind: ResultFailed, Code: code, Message: message, Recoverable: false})
			}
		},
	})

	wireBridge = bridge.New(m.Security.AllowedOrigins, r.opts.Config.FeatureFlags.AllowFileOrigins, func(name string, payload map[string]interface{}) {
		sm.HandleEvent(ctx, name, payload)
	}, r.opts.Plugins, func(envelope bridge.OutboundEnvelope) {
		if webHost != nil {
			webHost.DispatchToPage(envelope)
		}
		if envelope.Name == "ORIGIN_BLOCKED" {
			r.deliver(Result{Kind: ResultFailed, Code: journeyerrors.CodeOriginBlocked, Message: "bridge origin rejected", Recoverable: false})
		}
	}, RuntimeVersion, r.opts.Signer, r.opts.Attestation)

	if webHost != nil {
		if err := webHost.Present(resolver.ServerURL(), m.Security.AllowedOrigins, r.opts.Config.FeatureFlags.AllowFileOrigins); err != nil {
			return r.failf(journeyerrors.CodeUnknown, false, "presenting web view host: %v", err)
		}
	}

	sm.Start(ctx)

	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return *r.result
	case <-ctx.Done():
		return Result{Kind: ResultCancelled}
	}
}

// dispatchToBridge routes a state-machine emission into the bridge as an
// outbound event message (spec §4.5 event sink wiring is bidirectional:
// step_enter/step_exit/transition emits reach the page through the same
// channel a bridge_ready or BRIDGE_FORBIDDEN would).
func (r *Runtime) dispatchToBridge(b *bridge.Bridge, name string, payload map[string]interface{}) {
	b.Dispatch(bridge.InboundEnvelope{Kind: bridge.KindEvent, Name: name, Payload: payload})
}

func (r *Runtime) deliverTerminalStep(step manifest.Step) {
	var payload map[string]interface{}
	if len(step.Result) > 0 {
		_ = json.Unmarshal(step.Result, &payload)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	r.deliver(Result{Kind: ResultCompleted, Payload: payload})
}

func (r *Runtime) deliver(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result != nil {
		return
	}
	r.result = &res
	close(r.done)
}

func (r *Runtime) failf(code journeyerrors.Code, recoverable bool, format string, args ...interface{}) Result {
	res := Result{Kind: ResultFailed, Code: code, Message: fmt.Sprintf(format, args...), Recoverable: recoverable}
	r.deliver(res)
	return res
}

// terminalFromFatalError maps a manifest-loader or OpenAPI-resolution
// error onto failed(UNKNOWN or VALIDATION_FAIL, message, recoverable=false)
// (spec §7 "Manifest-loader and OpenAPI errors are fatal").
func (r *Runtime) terminalFromFatalError(err error) Result {
	code := journeyerrors.CodeUnknown
	if _, ok := err.(*journeyerrors.ValidationFailedError); ok {
		code = journeyerrors.CodeValidationFail
	}
	return r.failf(code, false, "%v", err)
}

// fetchBundle retrieves the OpenAPI bundle from a file:// or https:// URL,
// mirroring the manifest loader's own file-vs-network fetch split (spec
// §4.1 Fetch; the bundle has no signature, only the manifest does).
func fetchBundle(ctx context.Context, httpClient *http.Client, bundleURL, contextToken string) ([]byte, error) {
	u, err := url.Parse(bundleURL)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		path := bundleURL
		if err == nil && u.Scheme == "file" {
			path = u.Path
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, &journeyerrors.NetworkError{Cause: readErr}
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bundleURL, nil)
	if err != nil {
		return nil, &journeyerrors.RequestBuildFailedError{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+contextToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &journeyerrors.NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &journeyerrors.InvalidResponseError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &journeyerrors.NetworkError{Cause: err}
	}
	return data, nil
}
