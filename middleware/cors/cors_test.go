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

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axiomhttp/core/router"
)

func newTestRouter(opts ...Option) *router.Router {
	r := router.MustNew()
	r.Use(New(opts...))
	r.GET("/ping", func(c *router.Context) {
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})
	r.OPTIONS("/ping", func(_ *router.Context) {})
	return r
}

func TestNew_RejectsUnlistedOrigin(t *testing.T) {
	t.Parallel()

	r := newTestRouter(WithAllowedOrigins("https://example.com"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_AllowsListedOrigin(t *testing.T) {
	t.Parallel()

	r := newTestRouter(WithAllowedOrigins("https://example.com"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_HandlesPreflight(t *testing.T) {
	t.Parallel()

	r := newTestRouter(WithAllowedOrigins("https://example.com"))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestNew_AllowAllOriginsWithCredentialsEchoesOrigin(t *testing.T) {
	t.Parallel()

	r := newTestRouter(WithAllowAllOrigins(true), WithAllowCredentials(true))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNew_NoOriginHeaderPassesThrough(t *testing.T) {
	t.Parallel()

	r := newTestRouter(WithAllowedOrigins("https://example.com"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
