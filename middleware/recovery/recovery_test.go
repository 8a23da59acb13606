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

package recovery

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axiomhttp/core/router"
)

func TestNew_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New(WithStackTrace(false)))
	r.GET("/boom", func(_ *router.Context) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		r.ServeHTTP(w, req)
	})
}

func TestNew_InvokesCustomHandler(t *testing.T) {
	t.Parallel()

	var gotErr any
	r := router.MustNew()
	r.Use(New(WithHandler(func(c *router.Context, err any) {
		gotErr = err
		c.String(http.StatusTeapot, "handled") //nolint:errcheck
	})))
	r.GET("/boom", func(_ *router.Context) {
		panic("custom-panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "custom-panic", gotErr)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestNew_NoPanicPassesThrough(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New())
	r.GET("/ok", func(c *router.Context) {
		c.String(http.StatusOK, "fine") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fine", w.Body.String())
}
