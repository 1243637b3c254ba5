// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"fmt"
	"net/http"
)

// JolokiaError is a failure reported by the agent for a single request
//
// Error() returns the agent's error description verbatim so callers see
// exactly what the server reported.
type JolokiaError struct {
	// Status is the Jolokia status code of the entry (e.g. 404, 500)
	Status int

	// ErrorType is the Java exception class
	ErrorType string

	// Message is the error description reported by the agent
	Message string

	// Stacktrace is set when includeStackTrace was requested
	Stacktrace string

	// ErrorValue is the serialized exception (serializeException=true)
	ErrorValue Value
}

// Error implements the error interface
//
// The agent's message is returned verbatim. Entries without a message
// (for example a missing status) fall back to the status code.
func (e *JolokiaError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("jolokia: status %d", e.Status)
	}
	return e.Message
}

// DetailedError returns the message including status and exception type
//
// The stack trace is never included; use the Stacktrace field in secure
// logging contexts.
func (e *JolokiaError) DetailedError() string {
	if e.ErrorType == "" {
		return fmt.Sprintf("jolokia: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("jolokia: status %d: %s (%s)", e.Status, e.Message, e.ErrorType)
}

// HTTPError is returned when the agent answers with a non-200 HTTP status
type HTTPError struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Body is the (truncated) response body
	Body string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jolokia: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("jolokia: http status %d: %s", e.StatusCode, e.Body)
}

// TransientError defines patterns for detecting transient errors that should be retried
type TransientError struct {
	// StatusCode is the HTTP status code to match
	StatusCode int
}

// TransientErrors defines the list of HTTP status codes that should trigger automatic retry
//
// These errors are typically caused by temporary conditions such as:
//   - Too many requests (rate limiting in front of the agent)
//   - Bad gateway / gateway timeout (proxy cannot reach the JVM)
//   - Service unavailable (agent starting or overloaded)
//
// HTTP 500 is excluded: the Jolokia agent reports request failures inside the
// response body, so a 500 from the HTTP layer is a permanent server fault.
var TransientErrors = []TransientError{
	{StatusCode: http.StatusTooManyRequests},
	{StatusCode: http.StatusBadGateway},
	{StatusCode: http.StatusServiceUnavailable},
	{StatusCode: http.StatusGatewayTimeout},
}
