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

package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomhttp/core/router"
)

func TestNew_GeneratesIDWhenAbsent(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New())
	var seen string
	r.GET("/ping", func(c *router.Context) {
		seen = Get(c)
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestNew_TrustsClientIDByDefault(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New())
	var seen string
	r.GET("/ping", func(c *router.Context) {
		seen = Get(c)
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "client-supplied-id", seen)
}

func TestNew_RejectsClientIDWhenDisallowed(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New(WithAllowClientID(false)))
	var seen string
	r.GET("/ping", func(c *router.Context) {
		seen = Get(c)
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, "client-supplied-id", seen)
}

func TestGet_ReturnsEmptyWhenUnset(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	var seen string
	r.GET("/ping", func(c *router.Context) {
		seen = Get(c)
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, seen)
}
