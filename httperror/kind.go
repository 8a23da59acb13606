// Copyright 2025 The Rivaas Authors
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

package httperror

import "net/http"

// Kind classifies an error by what went wrong, not by its Go type. Two
// unrelated error structs can share a Kind; the filter pipeline dispatches
// on Kind, never on a type switch over concrete error structs.
type Kind string

const (
	KindBadRequest         Kind = "BAD_REQUEST"
	KindValidation         Kind = "VALIDATION"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindMethodNotAllowed   Kind = "METHOD_NOT_ALLOWED"
	KindConflict           Kind = "CONFLICT"
	KindUnprocessable      Kind = "UNPROCESSABLE"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindTimeout            Kind = "TIMEOUT"
	KindInternal           Kind = "INTERNAL"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindPayloadTooLarge    Kind = "PAYLOAD_TOO_LARGE"
	KindRouteConflict      Kind = "ROUTE_CONFLICT" // startup-only, no HTTP status
	KindPluginError        Kind = "PLUGIN_ERROR"   // startup-only, no HTTP status
	KindNextCalledTwice    Kind = "NEXT_CALLED_TWICE"
	KindRequestCancelled   Kind = "REQUEST_CANCELLED"
)

// defaultStatus maps a Kind to its default HTTP status. KindRouteConflict
// and KindPluginError have no meaningful status: they abort startup before
// any response is possible.
var defaultStatus = map[Kind]int{
	KindBadRequest:         http.StatusBadRequest,
	KindValidation:         http.StatusBadRequest,
	KindUnauthenticated:    http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindMethodNotAllowed:   http.StatusMethodNotAllowed,
	KindConflict:           http.StatusConflict,
	KindUnprocessable:      http.StatusUnprocessableEntity,
	KindRateLimited:        http.StatusTooManyRequests,
	KindTimeout:            http.StatusRequestTimeout,
	KindInternal:           http.StatusInternalServerError,
	KindServiceUnavailable: http.StatusServiceUnavailable,
	KindPayloadTooLarge:    http.StatusRequestEntityTooLarge,
	KindNextCalledTwice:    http.StatusInternalServerError,
	// KindRequestCancelled has no meaningful status: the client has already
	// disconnected by the time this Kind is produced. 499 (nginx's
	// client-closed-request convention) is used only if something still
	// attempts to write a response.
	KindRequestCancelled: 499,
}

// Error is the concrete kind-based error used throughout the error filter
// pipeline. It implements ErrorType, ErrorDetails and ErrorCode so any of
// the three Formatters can render it.
type Error struct {
	Kind       Kind
	Message    string
	Fields     map[string]any // e.g. {"field": "email", "value": "not-an-email"}
	StatusCode int            // overrides defaultStatus[Kind] when non-zero
	ErrCode    string         // machine-readable code; defaults to string(Kind)
	RetryAfter int            // seconds; only meaningful for KindRateLimited
	cause      error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind that wraps cause; cause is
// reachable through errors.Unwrap and errors.Is/As.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus implements ErrorType.
func (e *Error) HTTPStatus() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	if status, ok := defaultStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Details implements ErrorDetails. RetryAfter is folded in for KindRateLimited
// so Simple/RFC9457/JSONAPI formatters surface it without special-casing.
func (e *Error) Details() any {
	if e.Fields == nil && e.RetryAfter == 0 {
		return nil
	}
	details := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		details[k] = v
	}
	if e.RetryAfter > 0 {
		details["retryAfter"] = e.RetryAfter
	}
	return details
}

// Code implements ErrorCode.
func (e *Error) Code() string {
	if e.ErrCode != "" {
		return e.ErrCode
	}
	return string(e.Kind)
}
