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

package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnersdk/journeycore/pkg/manifest"
	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

func validManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ManifestVersion: "1.1",
		MinSdk:          "1.0.0",
		JourneyID:       "acct-open",
		OapiBundle:      "bundle.json",
		StartStep:       "start",
		Security: manifest.Security{
			AllowedOrigins: []string{"https://example.com"},
		},
		Steps: map[string]manifest.Step{
			"start": {Type: manifest.StepTerminal},
		},
	}
}

// Property 1 (spec §8): missing startStep -> ValidationFailed containing "startStep".
func TestValidateMissingStartStep(t *testing.T) {
	m := validManifest()
	m.StartStep = "missing"

	err := manifest.Validate(m, "1.0.0")
	require.Error(t, err)

	var valErr *journeyerrors.ValidationFailedError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Reason, "startStep")
}

// Property 2 (spec §8): empty allowedOrigins -> ValidationFailed containing "allowedOrigins".
func TestValidateEmptyAllowedOrigins(t *testing.T) {
	m := validManifest()
	m.Security.AllowedOrigins = nil

	err := manifest.Validate(m, "1.0.0")
	require.Error(t, err)

	var valErr *journeyerrors.ValidationFailedError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Reason, "allowedOrigins")
}

func TestValidateUnsupportedManifestVersion(t *testing.T) {
	m := validManifest()
	m.ManifestVersion = "2.0"

	err := manifest.Validate(m, "1.0.0")
	require.Error(t, err)

	var valErr *journeyerrors.ValidationFailedError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Reason, "manifestVersion")
}

func TestValidateMinSdkExceedsRuntime(t *testing.T) {
	m := validManifest()
	m.MinSdk = "2.0.0"

	err := manifest.Validate(m, "1.5.0")
	require.Error(t, err)

	var valErr *journeyerrors.ValidationFailedError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Reason, "minSdk")
}

func TestValidateMinSdkEqualOrBelowRuntimePasses(t *testing.T) {
	m := validManifest()
	m.MinSdk = "1.0.0"

	err := manifest.Validate(m, "1.5.0")
	assert.NoError(t, err)
}

func TestValidateTransitionTargetsUnknownStep(t *testing.T) {
	m := validManifest()
	m.Steps["start"] = manifest.Step{
		Type: manifest.StepNative,
		On: map[string]manifest.Transition{
			"go": {To: "nowhere"},
		},
	}

	err := manifest.Validate(m, "1.0.0")
	require.Error(t, err)

	var valErr *journeyerrors.ValidationFailedError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Reason, "nowhere")
}

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	err := manifest.Validate(validManifest(), "1.0.0")
	assert.NoError(t, err)
}
