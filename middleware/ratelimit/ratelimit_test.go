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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axiomhttp/core/router"
)

func TestNew_BlocksAfterBurstExhausted(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New(WithRequestsPerSecond(1), WithBurst(1), WithKeyFunc(func(_ *router.Context) string {
		return "fixed-key"
	})))
	r.GET("/ping", func(c *router.Context) {
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEqual(t, http.StatusOK, w2.Code)
	assert.Equal(t, "0", w2.Header().Get("RateLimit-Remaining"))
}

func TestNew_InvokesOnLimitExceeded(t *testing.T) {
	t.Parallel()

	var gotMeta Meta
	r := router.MustNew()
	r.Use(New(
		WithRequestsPerSecond(1),
		WithBurst(1),
		WithKeyFunc(func(_ *router.Context) string { return "shared" }),
		WithHandler(func(c *router.Context, meta Meta) {
			gotMeta = meta
			c.String(http.StatusTooManyRequests, "slow down") //nolint:errcheck
		}),
	))
	r.GET("/ping", func(c *router.Context) {
		c.String(http.StatusOK, "pong") //nolint:errcheck
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "shared", gotMeta.Key)
}
