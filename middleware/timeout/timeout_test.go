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

package timeout

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/axiomhttp/core/router"
)

func TestNew_AllowsFastHandler(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New(50 * time.Millisecond))
	r.GET("/fast", func(c *router.Context) {
		c.String(http.StatusOK, "ok") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/fast", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_InvokesHandlerOnDeadlineExceeded(t *testing.T) {
	t.Parallel()

	called := make(chan struct{}, 1)
	r := router.MustNew()
	r.Use(New(10*time.Millisecond, WithHandler(func(c *router.Context) {
		called <- struct{}{}
		c.String(http.StatusGatewayTimeout, "timed out") //nolint:errcheck
	})))
	r.GET("/slow", func(c *router.Context) {
		<-c.Request.Context().Done()
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("timeout handler was never invoked")
	}
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestNew_SkipsConfiguredPaths(t *testing.T) {
	t.Parallel()

	r := router.MustNew()
	r.Use(New(10*time.Millisecond, WithSkipPaths("/slow")))
	r.GET("/slow", func(c *router.Context) {
		time.Sleep(30 * time.Millisecond)
		c.String(http.StatusOK, "finished") //nolint:errcheck
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "finished", w.Body.String())
}
