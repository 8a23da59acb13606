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

// Package timeout provides middleware that bounds how long the downstream
// chain may run before the request is treated as timed out.
package timeout

import (
	"context"
	"time"

	"github.com/axiomhttp/core/httperror"
	"github.com/axiomhttp/core/router"
)

// Option configures the timeout middleware.
type Option func(*config)

type config struct {
	errorHandler  func(c *router.Context)
	cancelHandler func(c *router.Context)
	skipPaths     map[string]bool
}

func defaultConfig() *config {
	return &config{
		errorHandler:  defaultHandler,
		cancelHandler: defaultCancelHandler,
		skipPaths:     make(map[string]bool),
	}
}

func defaultHandler(c *router.Context) {
	c.Fail(httperror.New(httperror.KindTimeout, "request timed out"))
}

func defaultCancelHandler(c *router.Context) {
	c.Fail(httperror.New(httperror.KindRequestCancelled, "client disconnected"))
}

// WithHandler replaces the default KindTimeout response.
func WithHandler(handler func(c *router.Context)) Option {
	return func(cfg *config) { cfg.errorHandler = handler }
}

// WithCancelHandler replaces the default KindRequestCancelled response,
// invoked when the client disconnects before the downstream chain finishes.
func WithCancelHandler(handler func(c *router.Context)) Option {
	return func(cfg *config) { cfg.cancelHandler = handler }
}

// WithSkipPaths exempts paths (exact match) from the timeout, for
// long-running endpoints like streaming or webhooks.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.skipPaths[p] = true
		}
	}
}

// New returns middleware that cancels the request context after d and
// invokes the error handler if the downstream chain hasn't finished by
// then.
//
// The chain runs in its own goroutine; on timeout that goroutine is left
// to finish on its own (Go has no way to force-preempt it) - handlers
// doing long work must check c.Request.Context().Done() to exit early.
//
// Example:
//
//	r.Use(timeout.New(30 * time.Second))
func New(d time.Duration, opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context) {
		if cfg.skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			switch ctx.Err() {
			case context.DeadlineExceeded:
				cfg.errorHandler(c)
			case context.Canceled:
				cfg.cancelHandler(c)
			}
		}
	}
}
