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

// Package recovery provides middleware that recovers from panics raised by
// downstream handlers, turning them into a KindInternal error routed
// through the dispatcher's error filter pipeline instead of a crashed
// goroutine.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/axiomhttp/core/httperror"
	"github.com/axiomhttp/core/router"
)

// Option configures the recovery middleware.
type Option func(*config)

type config struct {
	stackTrace      bool
	stackSize       int
	disableStackAll bool
	logger          func(c *router.Context, err any, stack []byte)
	handler         func(c *router.Context, err any)
}

func defaultConfig() *config {
	return &config{
		stackTrace:      true,
		stackSize:       4 << 10,
		disableStackAll: true,
		logger:          defaultLogger,
		handler:         defaultHandler,
	}
}

func defaultLogger(c *router.Context, err any, stack []byte) {
	logger := c.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("panic recovered", "error", fmt.Sprintf("%v", err), "stack", string(stack))
}

// defaultHandler routes the panic into the error filter pipeline as
// KindInternal. Context.Fail is a no-op write-wise when no pipeline is
// configured - it still records the error and aborts the chain.
func defaultHandler(c *router.Context, err any) {
	c.Fail(httperror.New(httperror.KindInternal, fmt.Sprintf("panic: %v", err)))
}

// WithStackTrace enables or disables stack trace capture. Default: true.
func WithStackTrace(enabled bool) Option {
	return func(cfg *config) { cfg.stackTrace = enabled }
}

// WithStackSize caps the captured stack trace at size bytes. Default: 4KB.
func WithStackSize(size int) Option {
	return func(cfg *config) { cfg.stackSize = size }
}

// WithLogger sets the function invoked with the recovered panic and its
// stack trace before the handler runs.
func WithLogger(logger func(c *router.Context, err any, stack []byte)) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithHandler replaces the default KindInternal response with a custom one.
func WithHandler(handler func(c *router.Context, err any)) Option {
	return func(cfg *config) { cfg.handler = handler }
}

// WithDisableStackAll limits the captured stack to the current goroutine
// instead of every goroutine. Default: true.
func WithDisableStackAll(disabled bool) Option {
	return func(cfg *config) { cfg.disableStackAll = disabled }
}

// New returns middleware that recovers from panics in request handlers.
// Register it first (or early) in the chain so it can catch panics from
// every middleware and handler that runs after it.
//
// Example:
//
//	r.Use(recovery.New())
func New(opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context) {
		defer func() {
			if err := recover(); err != nil {
				if span := c.Span(); span != nil && span.SpanContext().IsValid() {
					span.SetStatus(codes.Error, "panic recovered")
					span.SetAttributes(
						attribute.Bool("exception.escaped", true),
						attribute.String("exception.type", fmt.Sprintf("%T", err)),
						attribute.String("exception.message", fmt.Sprintf("%v", err)),
					)
					if actualErr, ok := err.(error); ok {
						span.RecordError(actualErr)
					}
				}

				var stack []byte
				if cfg.stackTrace {
					buf := make([]byte, cfg.stackSize)
					stack = buf[:runtime.Stack(buf, !cfg.disableStackAll)]
				}

				if cfg.logger != nil {
					cfg.logger(c, err, stack)
				}
				if cfg.handler != nil {
					cfg.handler(c, err)
				}
			}
		}()

		c.Next()
	}
}
