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
	"fmt"
	"strconv"
	"strings"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// Validate checks the structural invariants of §3: manifestVersion,
// minSdk against the running SDK version, a non-empty origin allow-list,
// a resolvable startStep, and every transition target resolving to a
// known step. It returns the first violation found, matching the
// sequence the spec's property tests enumerate.
func Validate(m *Manifest, runtimeVersion string) error {
	if !strings.HasPrefix(m.ManifestVersion, "1.1") {
		return &journeyerrors.ValidationFailedError{
			Reason: fmt.Sprintf("Unsupported manifestVersion %q, want a 1.1.x document", m.ManifestVersion),
		}
	}

	if m.MinSdk != "" && runtimeVersion != "" {
		cmp, err := compareVersions(m.MinSdk, runtimeVersion)
		if err != nil {
			return &journeyerrors.ValidationFailedError{
				Reason: fmt.Sprintf("minSdk %q is not a comparable version: %v", m.MinSdk, err),
			}
		}
		if cmp > 0 {
			return &journeyerrors.ValidationFailedError{
				Reason: fmt.Sprintf("minSdk %q exceeds runtime version %q", m.MinSdk, runtimeVersion),
			}
		}
	}

	if len(m.Security.AllowedOrigins) == 0 {
		return &journeyerrors.ValidationFailedError{
			Reason: "security.allowedOrigins must be non-empty",
		}
	}

	if _, ok := m.Steps[m.StartStep]; !ok {
		return &journeyerrors.ValidationFailedError{
			Reason: fmt.Sprintf("startStep %q does not resolve to a known step", m.StartStep),
		}
	}

	for id, step := range m.Steps {
		for event, transition := range step.On {
			if transition.To == "" {
				continue
			}
			if _, ok := m.Steps[transition.To]; !ok {
				return &journeyerrors.ValidationFailedError{
					Reason: fmt.Sprintf("step %q transition on %q targets unknown step %q", id, event, transition.To),
				}
			}
		}
	}

	return nil
}

// compareVersions compares dotted numeric version strings segment by
// segment, returning <0, 0, >0 as a < b, a == b, a > b. Missing trailing
// segments compare as zero ("1.1" == "1.1.0").
func compareVersions(a, b string) (int, error) {
	as, err := splitVersion(a)
	if err != nil {
		return 0, err
	}
	bs, err := splitVersion(b)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			return av - bv, nil
		}
	}
	return 0, nil
}

func splitVersion(v string) ([]int, error) {
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid version segment %q in %q", p, v)
		}
		out[i] = n
	}
	return out, nil
}
