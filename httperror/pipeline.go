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

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Filter handles errors of the kinds it declares. Filters never call the
// request's next-middleware function; they are the terminal step once an
// error has aborted the handler chain.
type Filter struct {
	Name    string
	Kinds   []Kind
	Handler func(w http.ResponseWriter, req *http.Request, err error)
}

// handles reports whether f declares kind among the kinds it handles.
func (f Filter) handles(kind Kind) bool {
	for _, k := range f.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// FilterPipeline is an ordered list of Filters consulted for every error
// that aborts a request. The first filter declaring the error's Kind writes
// the response; a pipeline without a matching filter falls through to its
// terminal global filter, which renders the error with the status its
// formatter resolves (the Kind's status for an *Error, 500 for errors that
// declare no status).
//
// A FilterPipeline guarantees at most one response is written per request:
// a second call for the same *http.Request after one filter has already run
// is a no-op (the attempt is silently discarded; callers that need to know
// about it should log before calling Handle a second time).
type FilterPipeline struct {
	Formatter Formatter // used by the default global filter; nil means NewSimple()

	mu      sync.Mutex
	filters []Filter
	written sync.Map // *http.Request -> struct{}, tracks at-most-once
}

// NewFilterPipeline constructs a FilterPipeline with no filters registered;
// every error falls through to the terminal global filter until filters are
// added with Use.
func NewFilterPipeline(formatter Formatter) *FilterPipeline {
	return &FilterPipeline{Formatter: formatter}
}

// Use appends filter to the pipeline, preserving registration order.
func (p *FilterPipeline) Use(filter Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, filter)
}

// Handle finds the error's Kind (defaulting to KindInternal for errors that
// don't implement the Kind-carrying interface) and invokes the first filter
// that declares it, or the terminal global filter otherwise.
func (p *FilterPipeline) Handle(w http.ResponseWriter, req *http.Request, err error) {
	if _, already := p.written.LoadOrStore(req, struct{}{}); already {
		return
	}

	kind := kindOf(err)

	p.mu.Lock()
	filters := make([]Filter, len(p.filters))
	copy(filters, p.filters)
	p.mu.Unlock()

	for _, f := range filters {
		if f.handles(kind) {
			f.Handler(w, req, err)
			return
		}
	}
	p.globalFilter(w, req, err)
}

// kindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; anything else is treated as KindInternal.
func kindOf(err error) Kind {
	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}
	return KindInternal
}

// globalFilter is the terminal step: it formats every unmatched error as
// the response body dictated by p.Formatter (Simple by default).
func (p *FilterPipeline) globalFilter(w http.ResponseWriter, req *http.Request, err error) {
	formatter := p.Formatter
	if formatter == nil {
		formatter = NewSimple()
	}

	response := formatter.Format(req, err)
	body, ok := response.Body.(map[string]any)
	if !ok {
		body = map[string]any{"error": response.Body}
	}

	errFields := mergeEnvelope(body["error"], map[string]any{
		"statusCode": response.Status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"path":       req.URL.Path,
		"method":     req.Method,
		"requestId":  req.Header.Get("X-Request-Id"),
	})
	for k, v := range body {
		if _, taken := errFields[k]; !taken && k != "error" {
			errFields[k] = v
		}
	}
	envelope := map[string]any{"error": errFields}

	for k, values := range response.Headers {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	if rl, ok := err.(interface{ Details() any }); ok {
		if details, ok := rl.Details().(map[string]any); ok {
			if retryAfter, ok := details["retryAfter"]; ok {
				w.Header().Set("Retry-After", toString(retryAfter))
			}
		}
	}

	w.Header().Set("Content-Type", response.ContentType)
	w.WriteHeader(response.Status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// mergeEnvelope folds the formatter-produced error value (a string message,
// or a map with details/code) together with the spec-mandated envelope
// fields (statusCode, timestamp, path, method, requestId). globalFilter then
// adds the formatter body's sibling keys (Simple's details and code).
func mergeEnvelope(formatted any, envelope map[string]any) map[string]any {
	switch v := formatted.(type) {
	case map[string]any:
		for k, val := range envelope {
			v[k] = val
		}
		return v
	default:
		envelope["message"] = formatted
		return envelope
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
