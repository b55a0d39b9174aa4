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

package log

import (
	"log/slog"
	"time"
)

// BridgeRequest describes an inbound bridge message for logging purposes
// (see the inbound envelope in spec §4.5 / §6).
type BridgeRequest struct {
	// Kind is "event" or "request".
	Kind string

	// Name is the message name.
	Name string

	// ID is the request correlation id, if present.
	ID string

	// Origin is the page origin that sent the message.
	Origin string
}

// BridgeResponse describes the outcome of handling a bridge message.
type BridgeResponse struct {
	// Success indicates the message was accepted and processed.
	Success bool

	// Code is a taxonomy error code (§7) if handling failed or was rejected.
	Code string

	// DurationMs is how long handling took.
	DurationMs int64
}

// LogBridgeRequest logs an incoming bridge message.
func LogBridgeRequest(logger *slog.Logger, req *BridgeRequest) {
	attrs := []any{
		"event", "bridge_message_received",
		"kind", req.Kind,
		"name", req.Name,
		"origin", req.Origin,
	}
	if req.ID != "" {
		attrs = append(attrs, "id", req.ID)
	}
	logger.Info("bridge message received", attrs...)
}

// LogBridgeResponse logs the outcome of handling a bridge message.
func LogBridgeResponse(logger *slog.Logger, req *BridgeRequest, resp *BridgeResponse) {
	attrs := []any{
		"event", "bridge_message_handled",
		"kind", req.Kind,
		"name", req.Name,
		"success", resp.Success,
		"duration_ms", resp.DurationMs,
	}
	if resp.Code != "" {
		attrs = append(attrs, "code", resp.Code)
	}

	level := slog.LevelInfo
	message := "bridge message handled"
	if !resp.Success {
		level = slog.LevelWarn
		message = "bridge message rejected"
	}
	logger.Log(nil, level, message, attrs...)
}

// BridgeMiddleware wraps bridge message handling with structured logging.
type BridgeMiddleware struct {
	logger *slog.Logger
}

// NewBridgeMiddleware creates a new bridge logging middleware.
func NewBridgeMiddleware(logger *slog.Logger) *BridgeMiddleware {
	return &BridgeMiddleware{logger: logger}
}

// Handle wraps a bridge message handler with request/response logging.
// The handler returns the taxonomy code emitted (if any) and whether
// handling succeeded.
func (m *BridgeMiddleware) Handle(req *BridgeRequest, handler func() (code string, ok bool)) {
	start := time.Now()
	LogBridgeRequest(m.logger, req)

	code, ok := handler()

	LogBridgeResponse(m.logger, req, &BridgeResponse{
		Success:    ok,
		Code:       code,
		DurationMs: time.Since(start).Milliseconds(),
	})
}
