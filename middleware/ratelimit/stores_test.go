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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_AllowsBurstThenBlocks(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore(10, 3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, _, _ := s.Allow("k", now)
		require.True(t, allowed, "request %d within burst should be allowed", i)
	}

	allowed, remaining, resetSeconds := s.Allow("k", now)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Positive(t, resetSeconds)
}

func TestInMemoryStore_RefillsOverTime(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore(10, 1)
	now := time.Now()

	allowed, _, _ := s.Allow("k", now)
	require.True(t, allowed)

	allowed, _, _ = s.Allow("k", now)
	require.False(t, allowed, "second immediate request should exhaust the single-token burst")

	later := now.Add(time.Second)
	allowed, _, _ = s.Allow("k", later)
	assert.True(t, allowed, "a full second later the bucket should have refilled")
}

func TestInMemoryStore_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore(10, 1)
	now := time.Now()

	allowed, _, _ := s.Allow("a", now)
	require.True(t, allowed)

	allowed, _, _ = s.Allow("b", now)
	assert.True(t, allowed, "a different key must have its own bucket")
}
