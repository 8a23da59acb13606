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

package ratelimit

import (
	"strconv"
	"time"

	"github.com/axiomhttp/core/httperror"
	"github.com/axiomhttp/core/router"
)

// Meta carries rate limit state into WithHandler callbacks and the
// RateLimit-* response headers.
type Meta struct {
	Limit        int
	Remaining    int
	ResetSeconds int
	Key          string
	Route        string
	Method       string
	ClientIP     string
}

// New returns middleware implementing token-bucket rate limiting: each key
// (by default, the client IP) starts with Burst tokens and refills at
// RequestsPerSecond tokens/second; a request with no tokens available is
// rejected as KindRateLimited.
//
// Example:
//
//	r.Use(ratelimit.New(
//	    ratelimit.WithRequestsPerSecond(50),
//	    ratelimit.WithBurst(10),
//	))
func New(opts ...Option) router.HandlerFunc {
	cfg := &config{requestsPerSecond: 100, burst: 20}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.keyFunc == nil {
		cfg.keyFunc = func(c *router.Context) string { return "ip:" + c.ClientIP() }
	}

	store := NewInMemoryStore(cfg.requestsPerSecond, cfg.burst)

	return func(c *router.Context) {
		key := cfg.keyFunc(c)
		allowed, remaining, resetSeconds := store.Allow(key, time.Now())

		c.Header("RateLimit-Limit", strconv.Itoa(cfg.burst))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !allowed {
			meta := Meta{
				Limit:        cfg.burst,
				ResetSeconds: resetSeconds,
				Key:          key,
				Route:        c.RoutePattern(),
				Method:       c.Request.Method,
				ClientIP:     c.ClientIP(),
			}

			if cfg.onLimitExceeded != nil {
				cfg.onLimitExceeded(c, meta)
				c.Abort()
				return
			}

			err := httperror.New(httperror.KindRateLimited, "too many requests")
			err.RetryAfter = resetSeconds
			c.Fail(err)
			c.Abort()
			return
		}

		c.Next()
	}
}
