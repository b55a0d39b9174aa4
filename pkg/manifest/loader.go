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

package manifest

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/partnersdk/journeycore/internal/crypto/jws"
	"github.com/partnersdk/journeycore/internal/crypto/keystore"
	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// DefaultProductionBaseURL is used when the caller supplies no
// remoteConfigURL (spec §4.1 URL resolution).
const DefaultProductionBaseURL = "https://journeys.partnersdk.example/v1"

// LoaderConfig configures manifest resolution and the dev-mode escape
// hatch (spec §4.1, §6 featureFlags.disableManifestSignatureVerification).
type LoaderConfig struct {
	// RemoteConfigURL, if set and ending in ".json", is used verbatim as
	// the manifest URL. Otherwise "/<journeyId>/manifest.json" is
	// appended to it, or to ProductionBaseURL if RemoteConfigURL is empty.
	RemoteConfigURL string

	// ProductionBaseURL overrides DefaultProductionBaseURL, mainly for tests.
	ProductionBaseURL string

	// DisableManifestSignatureVerification skips JWS verification and, for
	// file-URL manifests only, enables the relative-URL dev rewrite.
	// Production builds must never set this.
	DisableManifestSignatureVerification bool
}

// Loader fetches, verifies, and validates a Manifest.
type Loader struct {
	httpClient     *http.Client
	keyStore       keystore.Store
	cfg            LoaderConfig
	runtimeVersion string
}

// NewLoader builds a Loader. httpClient is used for network manifest
// fetches only; pass nil to use http.DefaultClient.
func NewLoader(httpClient *http.Client, keyStore keystore.Store, cfg LoaderConfig, runtimeVersion string) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Loader{httpClient: httpClient, keyStore: keyStore, cfg: cfg, runtimeVersion: runtimeVersion}
}

// Load resolves, fetches, verifies, and validates the manifest for journeyID.
func (l *Loader) Load(ctx context.Context, journeyID, contextToken string) (*Manifest, error) {
	resolved := l.resolveURL(journeyID)

	raw, isFileURL, err := l.fetch(ctx, resolved, contextToken)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &journeyerrors.DecodingError{Reason: "manifest", Cause: err}
	}

	if !l.cfg.DisableManifestSignatureVerification {
		if err := l.verifySignature(raw, &m); err != nil {
			return nil, err
		}
	} else if isFileURL {
		rewriteRelativeURLs(&m, filepath.Dir(resolved))
	}

	if err := Validate(&m, l.runtimeVersion); err != nil {
		return nil, err
	}

	return &m, nil
}

func (l *Loader) resolveURL(journeyID string) string {
	base := l.cfg.RemoteConfigURL
	if base == "" {
		if l.cfg.ProductionBaseURL != "" {
			base = l.cfg.ProductionBaseURL
		} else {
			base = DefaultProductionBaseURL
		}
	}

	if strings.HasSuffix(base, ".json") {
		return base
	}

	return strings.TrimRight(base, "/") + "/" + journeyID + "/manifest.json"
}

// fetch returns the manifest bytes and whether the resolved location was a
// local file:// or bare-path URL (spec §4.1 Fetch).
func (l *Loader) fetch(ctx context.Context, resolved, contextToken string) ([]byte, bool, error) {
	u, err := url.Parse(resolved)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		filePath := resolved
		if err == nil && u.Scheme == "file" {
			filePath = u.Path
		}
		data, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, true, &journeyerrors.NetworkError{Cause: readErr}
		}
		return data, true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, false, &journeyerrors.RequestBuildFailedError{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+contextToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, false, &journeyerrors.NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, &journeyerrors.InvalidResponseError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &journeyerrors.NetworkError{Cause: err}
	}
	return data, false, nil
}

// verifySignature checks the manifest's detached JWS per spec §4.1: parse
// the header for kid, resolve the key, reconstruct the canonical payload
// by stripping the signature field, and verify.
func (l *Loader) verifySignature(raw []byte, m *Manifest) error {
	header, err := jws.ParseHeader(m.Signature)
	if err != nil {
		return &journeyerrors.SignatureVerificationError{Reason: err.Error()}
	}

	pub, err := l.keyStore.Resolve(header.Kid)
	if err != nil {
		return err
	}

	payload, err := jws.CanonicalJSONFromRaw(raw, "signature")
	if err != nil {
		return &journeyerrors.SignatureVerificationError{Reason: "reconstructing canonical payload", Cause: err}
	}

	resolve := func(string) (*ecdsa.PublicKey, error) { return pub, nil }
	if err := jws.VerifyDetached(m.Signature, payload, resolve); err != nil {
		return &journeyerrors.SignatureVerificationError{Reason: "verification failed", Cause: err}
	}
	return nil
}

// rewriteRelativeURLs rewrites a relative oapiBundle and relative web-step
// URLs to absolute file:// URLs resolved against the manifest's own
// directory, for local development only (spec §4.1 Optional rewrite).
func rewriteRelativeURLs(m *Manifest, dir string) {
	m.OapiBundle = rewriteOne(m.OapiBundle, dir)

	for id, step := range m.Steps {
		if step.Type == StepWeb && step.URL != "" {
			step.URL = rewriteOne(step.URL, dir)
			m.Steps[id] = step
		}
	}
}

func rewriteOne(candidate, dir string) string {
	if candidate == "" {
		return candidate
	}
	if u, err := url.Parse(candidate); err == nil && u.IsAbs() {
		return candidate
	}
	return "file://" + path.Join(filepath.ToSlash(dir), candidate)
}
