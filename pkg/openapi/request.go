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

package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// BuildRequest joins baseURL's path with operation.Path (each trimmed of
// leading/trailing slashes, rejoined with a single slash), JSON-encodes
// body when present, and applies default Content-Type/Accept headers
// plus any caller-supplied headers (spec §4.2 buildRequest).
func BuildRequest(ctx context.Context, baseURL string, op Operation, body interface{}, headers map[string]string) (*http.Request, error) {
	resolvedURL, err := joinURL(baseURL, op.Path)
	if err != nil {
		return nil, &journeyerrors.RequestBuildFailedError{Cause: err}
	}

	var bodyReader io.Reader
	hasBody := body != nil
	if hasBody {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &journeyerrors.InvalidBodyError{Cause: err}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, resolvedURL, bodyReader)
	if err != nil {
		return nil, &journeyerrors.RequestBuildFailedError{Cause: err}
	}

	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func joinURL(baseURL, opPath string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	basePath := strings.Trim(u.Path, "/")
	suffix := strings.Trim(opPath, "/")

	switch {
	case basePath == "" && suffix == "":
		u.Path = "/"
	case basePath == "":
		u.Path = "/" + suffix
	case suffix == "":
		u.Path = "/" + basePath
	default:
		u.Path = "/" + basePath + "/" + suffix
	}

	return u.String(), nil
}
