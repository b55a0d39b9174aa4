// Package httpclient provides a unified HTTP client factory with consistent
// timeout, retry, and observability behavior for API client and bridge
// transport use within journeycore.
//
// The package creates HTTP clients with sensible, secure defaults including:
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - Correlation ID propagation for distributed tracing
//   - TLS 1.2 minimum (TLS 1.3 preferred), with an optional certificate
//     pinning hook
//   - Connection pooling for performance
//
// # Usage
//
// Create a client with default settings:
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("https://api.example.com/resource")
//
// Customize configuration:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "my-service/2.0"
//	cfg.Timeout = 60 * time.Second
//	client, err := httpclient.New(cfg)
//
// # Retry behavior
//
// This transport's own exponential-backoff retry (RetryAttempts > 0) is
// intended for ambient, non-API-operation HTTP traffic. The journey API
// client (pkg/apiclient) owns the retry policy for manifest-declared
// operations — exactly 3 attempts with its own backoff formula and status
// mapping — and pkg/runtime builds the *http.Client it hands to
// pkg/apiclient with RetryAttempts: 0 so the transport does not retry
// underneath it.
//
// # Security
//
// The package includes security features:
//   - Sensitive query parameters (api_key, token, password, etc.) are redacted from logs
//   - Authorization headers are never logged
//   - TLS 1.2 minimum with certificate validation enabled
//   - Optional certificate pinning via Config.PinnedFingerprints, surfacing
//     a pin mismatch as a PINNING_FAIL-mappable error
//   - Connection pooling limits prevent resource exhaustion
//
// # Observability
//
// All requests emit structured logs via log/slog:
//   - Debug level: successful requests (2xx status)
//   - Warn level: failed requests (4xx/5xx status, errors)
//   - Fields: method, url (sanitized), status, duration_ms, error
//   - Correlation IDs automatically propagated when present in request context
package httpclient
