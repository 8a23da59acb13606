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

// Package router provides an HTTP router for Go.
//
// The router implements a routing system for cloud-native applications.
// It features path matching, parameter extraction, and comprehensive middleware support.
//
// # Key Features
//
//   - Path matching for static and parameterized routes
//   - Parameter extraction from URL paths
//   - Context pooling for request handling
//   - Route grouping for hierarchical API organization
//   - Template-based routing for route patterns
//   - Segmented LRU cache for dynamic route matches
//   - OpenTelemetry tracing and metrics integration
//   - Content-type dispatch for request body binding (JSON, YAML, TOML, MessagePack, Protobuf)
//   - Conditional request helpers (ETag, Last-Modified) and Vary merging
//   - Stock middleware subpackages (recovery, CORS, rate limiting, timeout, body limit, request ID)
//
// # Routing Details
//
//   - Static routes: Exact path matching
//   - Parameterized routes: Segment-based matching
//
// # Constructor Pattern
//
// The router follows a pragmatic constructor pattern:
//
//   - New() returns (*Router, error): after applying options it validates the
//     configuration and returns an error if it is invalid. MustNew panics instead.
//     There is no network I/O, file system access, or external dependencies during construction.
//
//   - Options are applied first and validated together afterwards, once, by New.
//
//   - All configuration options use the "With" prefix for consistency (e.g., WithH2C, WithLogger).
//
//   - Grouping options (e.g., WithServerTimeouts) accept multiple related settings to reduce API surface.
//
// This pattern differs from packages that initialize external resources (metrics, tracing, logging),
// which return errors because they may fail to connect to backends or validate complex configurations.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "net/http"
//	    "github.com/axiomhttp/core/router"
//	)
//
//	func main() {
//	    r := router.MustNew()
//
//	    r.GET("/", func(c *router.Context) {
//	        c.JSON(http.StatusOK, map[string]string{"message": "Hello World"})
//	    })
//
//	    r.GET("/users/:id", func(c *router.Context) {
//	        c.JSON(http.StatusOK, map[string]string{"user_id": c.Param("id")})
//	    })
//
//	    http.ListenAndServe(":8080", r)
//	}
//
// # Request Binding
//
// Context.Bind decodes the request body with the BodyDecoder registered for
// its Content-Type (JSON when the header is absent). Stock decoders cover
// JSON, YAML, TOML, MessagePack and Protocol Buffers. Path and query
// parameters are not bound; read them with Param and Query:
//
//	type UserRequest struct {
//	    Name  string `json:"name"`
//	    Email string `json:"email"`
//	}
//
//	func handler(c *router.Context) {
//	    var req UserRequest
//	    if err := c.Bind(&req); err != nil {
//	        c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
//	        return
//	    }
//	    // Use req...
//	}
//
// # Middleware
//
// Middleware can be applied globally, to route groups, or to individual routes.
// Stock middleware lives in per-concern subpackages under middleware/:
//
//	r.Use(recovery.New())
//	r.Use(requestid.New())
//
//	api := r.Group("/api")
//	api.Use(cors.New(cors.WithAllowedOrigins("https://example.com")))
//	api.GET("/users", handler)
//
// # Content Negotiation
//
// Context has no Accept-* negotiation helpers and no XML writer; handlers
// read Accept, Accept-Encoding and Accept-Language from c.Request.Header
// and pick a writer (JSON, YAML, HTML, String, Data) themselves:
//
//	r.GET("/users/:id", func(c *router.Context) {
//	    if strings.Contains(c.Request.Header.Get("Accept"), "text/html") {
//	        c.HTML(200, "<h1>"+html.EscapeString(user.Name)+"</h1>")
//	        return
//	    }
//	    c.JSON(200, user)
//	})
//
// Context.AddVary merges field names into the Vary header.
//
// # Observability
//
// OpenTelemetry integration for metrics and tracing:
//
//	r := router.MustNew()
//	r.SetObservabilityRecorder(myObservabilityRecorder)
package router
