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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decoderTestUser struct {
	Name string `json:"name" yaml:"name" toml:"name" msgpack:"name"`
	Age  int    `json:"age" yaml:"age" toml:"age" msgpack:"age"`
}

func TestDefaultBodyDecoders_RegistersStockContentTypes(t *testing.T) {
	t.Parallel()

	decoders := defaultBodyDecoders()
	for _, ct := range []string{
		"application/json",
		"application/x-yaml",
		"application/yaml",
		"application/toml",
		"application/x-msgpack",
		"application/x-protobuf",
	} {
		_, ok := decoders[ct]
		assert.True(t, ok, "expected decoder registered for %q", ct)
	}
}

func TestDecodeJSONBody(t *testing.T) {
	t.Parallel()

	var u decoderTestUser
	err := decodeJSONBody(strings.NewReader(`{"name":"Ada","age":30}`), &u)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, 30, u.Age)
}

func TestDecodeYAMLBody(t *testing.T) {
	t.Parallel()

	var u decoderTestUser
	err := decodeYAMLBody(strings.NewReader("name: Ada\nage: 30\n"), &u)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, 30, u.Age)
}

func TestDecodeTOMLBody(t *testing.T) {
	t.Parallel()

	var u decoderTestUser
	err := decodeTOMLBody(strings.NewReader("name = \"Ada\"\nage = 30\n"), &u)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, 30, u.Age)
}

func TestDecodeProtobufBody_RejectsNonProtoMessage(t *testing.T) {
	t.Parallel()

	var u decoderTestUser
	err := decodeProtobufBody(strings.NewReader(""), &u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proto.Message")
}

func TestRouter_RegisterBodyDecoder_Overrides(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)
	called := false
	r.RegisterBodyDecoder("application/json", BodyDecoderFunc(func(_ io.Reader, dst any) error {
		called = true
		return nil
	}))

	dec, ok := r.bodyDecoder("application/json")
	require.True(t, ok)
	require.NoError(t, dec.Decode(strings.NewReader(""), nil))
	assert.True(t, called)
}
