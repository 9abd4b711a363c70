// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loam

import (
	"errors"
	"fmt"

	"github.com/z5labs/loam/backend"
)

// ErrSessionClosed is returned when a call is attempted on a
// [Session] or [AsyncSession] which has already been closed.
var ErrSessionClosed = errors.New("loam: session is closed")

// ConfigurationError reports a programming mistake in how a resource,
// method or client was declared: a missing or duplicate HTTP verb,
// an unresolved path placeholder, conflicting body and form bindings,
// an unknown backend name or a missing endpoint.
//
// Declaration-time mistakes panic with a *ConfigurationError since
// they can never succeed; call-time mistakes are returned as errors.
type ConfigurationError struct {
	// Op identifies where the misconfiguration was detected,
	// e.g. "loam.Method" or "loam.Client.Call".
	Op string

	// Reason describes the misconfiguration.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "loam: " + e.Op + ": " + e.Reason
}

func configErrorf(op, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	}
}

// HTTPError wraps any failure surfaced by a backend during transport,
// as well as non-2xx responses for which no status handler was
// registered. The original backend error is available via
// [HTTPError.Unwrap] and the raw response, when one was received,
// via the Response field.
type HTTPError struct {
	// Cause is the underlying backend error.
	Cause error

	// Response is the raw response, if one was received.
	Response *backend.Response
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Cause == nil {
		return "loam: http error"
	}
	return "loam: " + e.Cause.Error()
}

// Unwrap returns the original backend error for use with [errors.Is]
// and [errors.As].
func (e *HTTPError) Unwrap() error {
	return e.Cause
}
