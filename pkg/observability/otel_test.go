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

package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnersdk/journeycore/pkg/observability"
)

func TestOTelProviderStartsAndEndsSpan(t *testing.T) {
	provider, err := observability.NewOTelProvider("journeycore-test", "0.0.0")
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	tracer := provider.Tracer("journeycore.test")
	ctx, span := tracer.Start(context.Background(), "do-thing", observability.WithSpanKind(observability.SpanKindClient))
	require.NotNil(t, ctx)

	span.SetAttributes(map[string]any{"journeycore.operation_id": "createWidget"})
	span.AddEvent("retrying", map[string]any{"attempt": 1})
	span.SetStatus(observability.StatusCodeOK, "")
	span.End()

	assert.NotEmpty(t, span.SpanContext().TraceID)
	assert.NotEmpty(t, span.SpanContext().SpanID)
}

func TestOTelProviderRecordsErrorStatus(t *testing.T) {
	provider, err := observability.NewOTelProvider("journeycore-test", "0.0.0")
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	_, span := provider.Tracer("journeycore.test").Start(context.Background(), "fails")
	span.RecordError(assert.AnError)
	span.End()
}

func TestMetricsHelpersDoNotPanic(t *testing.T) {
	observability.RecordBindingDispatch("createWidget", "success")
	observability.RecordAPICallRetry("createWidget")
	observability.RecordBridgeRejection("origin_blocked")
}
