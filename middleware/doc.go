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

/*
Package middleware holds the context keys shared across the middleware/*
subpackages. Each middleware lives in its own subpackage for independent
imports:

  - recovery:   panic recovery, routed through httperror as KindInternal
  - requestid:  request ID generation and propagation
  - timeout:    per-request deadline, routed through httperror as KindTimeout
  - ratelimit:  token bucket rate limiting, routed through httperror as KindRateLimited
  - bodylimit:  request body size limiting, routed through httperror as KindPayloadTooLarge
  - cors:       Cross-Origin Resource Sharing

Recommended ordering:

	r.Use(recovery.New())
	r.Use(requestid.New())
	r.Use(cors.New(cors.WithAllowedOrigins("https://example.com")))
	r.Use(ratelimit.New())
	r.Use(timeout.New(30 * time.Second))
	r.Use(bodylimit.New())
*/
package middleware
