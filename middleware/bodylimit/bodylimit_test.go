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

package bodylimit

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"bytes", 512, "512B"},
		{"kilobytes", 2048, "2.0KB"},
		{"megabytes", 5 * 1024 * 1024, "5.0MB"},
		{"gigabytes", 2 * 1024 * 1024 * 1024, "2.0GB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestLimitedReader_AllowsExactlyTheLimit(t *testing.T) {
	t.Parallel()

	lr := &limitedReader{reader: io.NopCloser(strings.NewReader("hello")), limit: 5}
	buf := make([]byte, 16)
	n, err := lr.Read(buf)
	assert.Equal(t, 5, n)
	assert.True(t, err == nil || errors.Is(err, io.EOF))
}

func TestLimitedReader_ErrorsPastTheLimit(t *testing.T) {
	t.Parallel()

	lr := &limitedReader{reader: io.NopCloser(strings.NewReader("hello world")), limit: 5}
	buf := make([]byte, 16)

	n, err := lr.Read(buf)
	assert.Equal(t, 5, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBodyLimitExceeded))
}
