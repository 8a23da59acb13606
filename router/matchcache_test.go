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

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCacheSegment_PutAndGet(t *testing.T) {
	t.Parallel()

	seg := newMatchCacheSegment(2)
	_, _, evicted := seg.put("a", matchCacheEntry{routePattern: "/a"})
	assert.False(t, evicted)

	got, ok := seg.get("a")
	require.True(t, ok)
	assert.Equal(t, "/a", got.routePattern)

	_, ok = seg.get("missing")
	assert.False(t, ok)
}

func TestMatchCacheSegment_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	seg := newMatchCacheSegment(2)
	seg.put("a", matchCacheEntry{routePattern: "/a"})
	seg.put("b", matchCacheEntry{routePattern: "/b"})

	// Touch "a" so "b" becomes the least recently used.
	seg.get("a")

	evictedKey, evictedEntry, evicted := seg.put("c", matchCacheEntry{routePattern: "/c"})
	require.True(t, evicted)
	assert.Equal(t, "b", evictedKey)
	assert.Equal(t, "/b", evictedEntry.routePattern)

	_, ok := seg.get("b")
	assert.False(t, ok, "evicted entry must no longer be retrievable")
}

func TestMatchCacheSegment_PutExistingKeyUpdatesInPlace(t *testing.T) {
	t.Parallel()

	seg := newMatchCacheSegment(2)
	seg.put("a", matchCacheEntry{routePattern: "/a"})
	_, _, evicted := seg.put("a", matchCacheEntry{routePattern: "/a-v2"})
	assert.False(t, evicted)

	got, ok := seg.get("a")
	require.True(t, ok)
	assert.Equal(t, "/a-v2", got.routePattern)
}

func TestMatchCache_PromotesOnSecondHit(t *testing.T) {
	t.Parallel()

	c := newMatchCache(0)
	c.put("GET /users/1", matchCacheEntry{routePattern: "/users/:id"})

	// First get: hit in probationary, promotes to protected.
	got, ok := c.get("GET /users/1")
	require.True(t, ok)
	assert.Equal(t, "/users/:id", got.routePattern)

	_, ok = c.protected.get("GET /users/1")
	assert.True(t, ok, "entry should have been promoted to the protected segment")
}

func TestMatchCache_MissReturnsFalse(t *testing.T) {
	t.Parallel()

	c := newMatchCache(0)
	_, ok := c.get("GET /nope")
	assert.False(t, ok)
}

func TestMatchCache_ProtectedEvictionDemotesToProbationary(t *testing.T) {
	t.Parallel()

	c := newMatchCache(0)
	c.protected = newMatchCacheSegment(1)

	c.put("GET /a", matchCacheEntry{routePattern: "/a"})
	c.get("GET /a") // promotes /a into the now-full protected segment

	c.put("GET /b", matchCacheEntry{routePattern: "/b"})
	c.get("GET /b") // promotes /b, evicting /a from protected

	_, ok := c.protected.get("GET /a")
	assert.False(t, ok)

	_, ok = c.probationary.get("GET /a")
	assert.True(t, ok, "evicted protected entry should be demoted back to probationary")
}
