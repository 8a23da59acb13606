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

// Package ratelimit provides token-bucket rate limiting middleware backed
// by an in-memory store. The Store interface describes the storage
// contract; New has no option to use another Store.
package ratelimit

import (
	"log/slog"

	"github.com/axiomhttp/core/router"
)

// Option configures the rate limit middleware.
type Option func(*config)

type config struct {
	logger            *slog.Logger
	requestsPerSecond int
	burst             int
	keyFunc           func(*router.Context) string
	onLimitExceeded   func(*router.Context, Meta)
}

// WithRequestsPerSecond sets the refill rate. Default: 100/s.
func WithRequestsPerSecond(rps int) Option {
	return func(cfg *config) {
		if rps > 0 {
			cfg.requestsPerSecond = rps
		}
	}
}

// WithBurst sets the maximum token bucket size. Default: 20.
func WithBurst(burst int) Option {
	return func(cfg *config) {
		if burst > 0 {
			cfg.burst = burst
		}
	}
}

// WithKeyFunc sets the function that derives the rate limit key from a
// request. Default: "ip:" + Context.ClientIP().
func WithKeyFunc(fn func(*router.Context) string) Option {
	return func(cfg *config) { cfg.keyFunc = fn }
}

// WithHandler sets a callback invoked instead of the default 429 response
// when the limit is exceeded. The callback is responsible for writing the
// response; New always aborts the chain afterward.
func WithHandler(fn func(*router.Context, Meta)) Option {
	return func(cfg *config) { cfg.onLimitExceeded = fn }
}

// WithLogger attaches a logger used to report store errors.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}
