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

// Package apiclient is the stateful wrapper over an HTTP client that
// resolves manifest operationIds to requests and retries them per a fixed
// policy (spec §4.3).
package apiclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/partnersdk/journeycore/internal/traceparent"
	"github.com/partnersdk/journeycore/pkg/httpclient"
	"github.com/partnersdk/journeycore/pkg/observability"
	"github.com/partnersdk/journeycore/pkg/openapi"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// MaxAttempts is the fixed retry ceiling (spec §4.3 Retry policy).
const MaxAttempts = 3

// Result is the outcome of a successful Call (spec §4.3 Invocation contract).
type Result struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Client resolves manifest operationIds against an OpenAPI bundle and
// issues them over httpClient, retrying per the fixed policy.
type Client struct {
	httpClient     *http.Client
	resolver       *openapi.Resolver
	baseURL        string
	tracer         observability.Tracer
	defaultHeaders map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTracer attaches a tracer used to wrap each Call in a span
// (SPEC_FULL.md §4 supplemented feature 3).
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithDefaultHeaders attaches the manifest's top-level headers, applied to
// every Call and merged under the per-binding headers (spec §3 "headers:
// mapping of header name -> default value, applied to every API call").
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) { c.defaultHeaders = headers }
}

// New builds a Client. baseURL overrides resolver.ServerURL() when non-empty.
func New(httpClient *http.Client, resolver *openapi.Resolver, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = resolver.ServerURL()
	}
	c := &Client{httpClient: httpClient, resolver: resolver, baseURL: baseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call resolves operationID, builds a request, and issues it with up to
// MaxAttempts attempts per the retry policy in spec §4.3.
func (c *Client) Call(ctx context.Context, operationID string, body interface{}, headers map[string]string, idempotencyKey string) (*Result, error) {
	op, ok := c.resolver.Resolve(operationID)
	if !ok {
		return nil, &journeyerrors.InvalidDocumentError{Reason: fmt.Sprintf("unknown operationId %q", operationID)}
	}

	if c.tracer != nil {
		var span observability.SpanHandle
		ctx, span = c.tracer.Start(ctx, "apiclient.call", observability.WithSpanKind(observability.SpanKindClient), observability.WithAttributes(map[string]any{
			"journeycore.operation_id": operationID,
		}))
		defer span.End()

		result, err := c.callWithRetry(ctx, operationID, op, body, headers, idempotencyKey)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusCodeError, err.Error())
			return nil, err
		}
		span.SetStatus(observability.StatusCodeOK, "")
		span.SetAttributes(map[string]any{"http.status_code": result.Status})
		return result, nil
	}

	return c.callWithRetry(ctx, operationID, op, body, headers, idempotencyKey)
}

func (c *Client) callWithRetry(ctx context.Context, operationID string, op openapi.Operation, body interface{}, headers map[string]string, idempotencyKey string) (*Result, error) {
	var lastErr error
	mergedHeaders := mergeHeaders(c.defaultHeaders, headers)

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		req, err := openapi.BuildRequest(ctx, c.baseURL, op, body, mergedHeaders)
		if err != nil {
			return nil, err
		}

		tp, err := traceparent.New()
		if err != nil {
			return nil, &journeyerrors.RequestBuildFailedError{Cause: err}
		}
		req.Header.Set("traceparent", tp)

		if idempotencyKey != "" {
			req.Header.Set("X-Idempotency-Key", idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			var pinErr *httpclient.ErrPinMismatch
			if errors.As(err, &pinErr) {
				return nil, &journeyerrors.HttpError{Status: -1, Mapped: journeyerrors.CodePinningFail, Message: pinErr.Error()}
			}
			// Transport-level failures exit immediately without retry
			// (spec §4.3 step 4, §9 open question 2).
			return nil, &journeyerrors.TransportError{Cause: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, &journeyerrors.TransportError{Cause: readErr}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Result{Status: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
		}

		mapped := journeyerrors.MapStatus(resp.StatusCode, idempotencyKey != "")
		httpErr := &journeyerrors.HttpError{Status: resp.StatusCode, Mapped: mapped, Message: string(bytes.TrimSpace(respBody))}

		if !isRetryEligible(resp.StatusCode) {
			return nil, httpErr
		}

		lastErr = httpErr

		if attempt == MaxAttempts-1 {
			break
		}

		observability.RecordAPICallRetry(operationID)

		delay := backoffDelay(attempt, resp.Header.Get("Retry-After"))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &journeyerrors.TransportError{Cause: ctx.Err()}
		}
	}

	return nil, &journeyerrors.RetryLimitExceededError{Attempts: MaxAttempts, LastErr: lastErr}
}

// mergeHeaders layers per-call headers over the manifest's default headers;
// a key present in both keeps the per-call value (spec §3 "headers").
func mergeHeaders(defaults, perCall map[string]string) map[string]string {
	if len(defaults) == 0 {
		return perCall
	}
	merged := make(map[string]string, len(defaults)+len(perCall))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range perCall {
		merged[k] = v
	}
	return merged
}

func isRetryEligible(status int) bool {
	return status == 408 || status == 429 || (status >= 500 && status < 600)
}

// backoffDelay implements spec §4.3: Retry-After (seconds, possibly
// fractional) when present, else 0.5 × 2^attempt + rand(0..0.25) seconds,
// where attempt is the zero-based index of the failed attempt.
func backoffDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfterHeader != "" {
		if seconds, err := strconv.ParseFloat(retryAfterHeader, 64); err == nil && seconds >= 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}

	base := 0.5 * math.Pow(2, float64(attempt))
	jitter := randFraction() * 0.25
	return time.Duration((base + jitter) * float64(time.Second))
}

// randFraction returns a uniform value in [0, 1) using crypto/rand.
func randFraction() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<24))
	if err != nil {
		return 0
	}
	return float64(n.Int64()) / float64(1<<24)
}
