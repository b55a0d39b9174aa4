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

// Package openapi parses the OpenAPI bundle a manifest references and
// resolves manifest-declared operationIds to HTTP method+path pairs
// (spec §4.2). Only paths.<p>.<verb>.operationId and the first
// servers[].url are consumed; every other OpenAPI field is ignored.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/partnersdk/journeycore/pkg/manifest"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// Operation is the HTTP shape behind a manifest operationId.
type Operation struct {
	Method string
	Path   string
}

// Resolver maps operationId → Operation for a single parsed bundle.
type Resolver struct {
	operations map[string]Operation
	serverURL  string
}

type bundleDoc struct {
	Servers []struct {
		URL string `json:"url"`
	} `json:"servers"`
	Paths map[string]map[string]struct {
		OperationID string `json:"operationId"`
	} `json:"paths"`
}

// Parse decodes an OpenAPI bundle and builds its operationId index.
func Parse(bundleJSON []byte) (*Resolver, error) {
	var doc bundleDoc
	if err := json.Unmarshal(bundleJSON, &doc); err != nil {
		return nil, &journeyerrors.InvalidDocumentError{Reason: "decoding openapi bundle: " + err.Error()}
	}

	ops := make(map[string]Operation)
	for p, methods := range doc.Paths {
		for method, op := range methods {
			if op.OperationID == "" {
				continue
			}
			ops[op.OperationID] = Operation{Method: strings.ToUpper(method), Path: p}
		}
	}

	if len(ops) == 0 {
		return nil, &journeyerrors.InvalidDocumentError{Reason: "openapi bundle declares no operations"}
	}

	serverURL := ""
	if len(doc.Servers) > 0 {
		serverURL = doc.Servers[0].URL
	}

	return &Resolver{operations: ops, serverURL: serverURL}, nil
}

// ServerURL returns the bundle's first servers[].url, or "" if absent.
func (r *Resolver) ServerURL() string { return r.serverURL }

// Resolve looks up an operationId.
func (r *Resolver) Resolve(operationID string) (Operation, bool) {
	op, ok := r.operations[operationID]
	return op, ok
}

// ValidateOperationIDs traverses every binding in every step of m and
// returns InvalidDocumentError if any referenced operationId is unknown
// to this resolver (spec §4.2 validateOperationIds).
func (r *Resolver) ValidateOperationIDs(m *manifest.Manifest) error {
	for stepID, step := range m.Steps {
		for _, b := range step.Bindings {
			if _, ok := r.operations[b.Call.OperationID]; !ok {
				return &journeyerrors.InvalidDocumentError{
					Reason: fmt.Sprintf("step %q binding references unknown operationId %q", stepID, b.Call.OperationID),
				}
			}
		}
	}
	return nil
}
