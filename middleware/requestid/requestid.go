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

// Package requestid provides middleware that attaches a unique request ID
// to each request, for log correlation and distributed tracing.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/axiomhttp/core/middleware"
	"github.com/axiomhttp/core/router"
)

// Option configures the requestid middleware.
type Option func(*config)

type config struct {
	headerName    string
	generator     func() string
	allowClientID bool
}

func defaultConfig() *config {
	return &config{
		headerName:    "X-Request-ID",
		generator:     func() string { return uuid.NewString() },
		allowClientID: true,
	}
}

// WithHeader sets the header name used to read and write the request ID.
// Default: "X-Request-ID".
func WithHeader(name string) Option {
	return func(cfg *config) { cfg.headerName = name }
}

// WithGenerator replaces the default UUID v4 generator.
func WithGenerator(gen func() string) Option {
	return func(cfg *config) { cfg.generator = gen }
}

// WithAllowClientID controls whether an incoming header value is trusted as
// the request ID. Disable this at a public-facing edge to prevent clients
// from injecting arbitrary correlation IDs. Default: true.
func WithAllowClientID(allow bool) Option {
	return func(cfg *config) { cfg.allowClientID = allow }
}

// New returns middleware that ensures every request carries a request ID,
// set both on the response header and in the request context under
// middleware.RequestIDKey.
//
// Example:
//
//	r.Use(requestid.New())
func New(opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context) {
		var id string
		if cfg.allowClientID {
			id = c.Request.Header.Get(cfg.headerName)
		}
		if id == "" {
			id = cfg.generator()
		}

		c.Response.Header().Set(cfg.headerName, id)

		// Round-trip the generated id onto the request header too, so anything
		// downstream that reads the inbound header (e.g. the error pipeline's
		// requestId field) sees the generated id even when the client sent none.
		c.Request.Header.Set(cfg.headerName, id)

		ctx := context.WithValue(c.Request.Context(), middleware.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Get retrieves the request ID set by New from the request context, or
// the empty string if none was set.
func Get(c *router.Context) string {
	if id, ok := c.Request.Context().Value(middleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
