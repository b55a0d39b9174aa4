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

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide journey metrics (SPEC_FULL.md §4 supplemented feature 2).
// These are registered against the default Prometheus registry, the same
// registry promhttp.Handler() (OTelProvider.MetricsHandler) serves.
var (
	bindingDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeycore_binding_dispatch_total",
			Help: "Total binding dispatches by operation and outcome.",
		},
		[]string{"operation_id", "outcome"},
	)

	apiCallRetryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeycore_api_call_retry_total",
			Help: "Total API client retry attempts by operation.",
		},
		[]string{"operation_id"},
	)

	bridgeRejectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeycore_bridge_rejection_total",
			Help: "Total bridge messages rejected, by reason.",
		},
		[]string{"reason"},
	)
)

// RecordBindingDispatch increments the binding-dispatch counter for
// operationID with the given outcome ("success" or "error").
func RecordBindingDispatch(operationID, outcome string) {
	bindingDispatchTotal.WithLabelValues(operationID, outcome).Inc()
}

// RecordAPICallRetry increments the retry counter for operationID.
func RecordAPICallRetry(operationID string) {
	apiCallRetryTotal.WithLabelValues(operationID).Inc()
}

// RecordBridgeRejection increments the bridge-rejection counter for the
// given reason (e.g. "origin_blocked", "bridge_forbidden").
func RecordBridgeRejection(reason string) {
	bridgeRejectionTotal.WithLabelValues(reason).Inc()
}
