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

// Package bodylimit provides middleware that caps request body size,
// validating both the Content-Length header and the actual bytes read so
// a missing or spoofed header can't bypass the limit.
package bodylimit

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/axiomhttp/core/httperror"
	"github.com/axiomhttp/core/router"
)

// ErrBodyLimitExceeded is returned (wrapped) from body reads once the
// configured limit has been exceeded.
var ErrBodyLimitExceeded = errors.New("request body size exceeds limit")

// Option configures the bodylimit middleware.
type Option func(*config)

type config struct {
	limit        int64
	errorHandler func(c *router.Context, limit int64)
	skipPaths    map[string]bool
}

func defaultConfig() *config {
	return &config{
		limit:        2 * 1024 * 1024, // 2MB
		errorHandler: defaultErrorHandler,
		skipPaths:    make(map[string]bool),
	}
}

func defaultErrorHandler(c *router.Context, limit int64) {
	c.Fail(httperror.New(httperror.KindPayloadTooLarge,
		fmt.Sprintf("request body exceeds the %s limit", formatSize(limit))))
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fGB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1fKB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// limitedReader wraps an io.ReadCloser and errors once more than limit
// bytes have been read. Not safe for concurrent use - matches
// http.Request.Body's own single-goroutine contract.
type limitedReader struct {
	reader io.ReadCloser
	limit  int64
	read   int64
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.read >= lr.limit {
		return 0, io.EOF
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[0:remaining]
	}

	n, err := lr.reader.Read(p)
	lr.read += int64(n)

	if lr.read >= lr.limit && err == nil {
		var extra [1]byte
		extraN, extraErr := lr.reader.Read(extra[:])
		if extraN > 0 {
			return n, fmt.Errorf("%w: %d bytes", ErrBodyLimitExceeded, lr.limit)
		}
		if extraErr == io.EOF {
			err = io.EOF
		}
	}

	return n, err
}

func (lr *limitedReader) Close() error {
	return lr.reader.Close()
}

// WithLimit sets the maximum allowed body size in bytes. Default: 2MB.
func WithLimit(bytes int64) Option {
	return func(cfg *config) { cfg.limit = bytes }
}

// WithSkipPaths exempts paths (exact match) from the body limit, useful
// for upload endpoints with their own, larger limit.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.skipPaths[p] = true
		}
	}
}

// WithErrorHandler replaces the default KindPayloadTooLarge response.
func WithErrorHandler(handler func(c *router.Context, limit int64)) Option {
	return func(cfg *config) { cfg.errorHandler = handler }
}

// New returns middleware enforcing a maximum request body size.
//
// It rejects early on an oversized Content-Length header, and wraps the
// body reader so a missing or incorrect header (chunked encoding, spoofed
// Content-Length) still can't exceed the limit.
//
// Example:
//
//	r.Use(bodylimit.New(bodylimit.WithLimit(10 << 20)))
func New(opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context) {
		if cfg.skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if cl := c.Request.Header.Get("Content-Length"); cl != "" {
			if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > cfg.limit {
				cfg.errorHandler(c, cfg.limit)
				c.Abort()
				return
			}
		}

		if c.Request.Body != nil {
			c.Request.Body = &limitedReader{reader: c.Request.Body, limit: cfg.limit}
		}

		c.Next()
	}
}
