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
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

// BodyDecoder decodes a request body into dst. Implementations are
// registered against a Content-Type (stripped of parameters, e.g.
// "application/json" for "application/json; charset=utf-8") and looked
// up by Context.Bind.
type BodyDecoder interface {
	Decode(r io.Reader, dst any) error
}

// BodyDecoderFunc adapts a plain function to BodyDecoder.
type BodyDecoderFunc func(r io.Reader, dst any) error

// Decode implements BodyDecoder.
func (f BodyDecoderFunc) Decode(r io.Reader, dst any) error { return f(r, dst) }

// defaultBodyDecoders returns the stock decoder set registered on every
// new Router: JSON, YAML, TOML, MessagePack, and Protocol Buffers, each a
// thin adapter over the corresponding library's reader-based API.
func defaultBodyDecoders() map[string]BodyDecoder {
	return map[string]BodyDecoder{
		"application/json":       BodyDecoderFunc(decodeJSONBody),
		"application/x-yaml":     BodyDecoderFunc(decodeYAMLBody),
		"application/yaml":       BodyDecoderFunc(decodeYAMLBody),
		"application/toml":       BodyDecoderFunc(decodeTOMLBody),
		"application/x-msgpack":  BodyDecoderFunc(decodeMsgpackBody),
		"application/x-protobuf": BodyDecoderFunc(decodeProtobufBody),
	}
}

func decodeJSONBody(r io.Reader, dst any) error {
	return json.NewDecoder(r).Decode(dst)
}

func decodeYAMLBody(r io.Reader, dst any) error {
	return yaml.NewDecoder(r).Decode(dst)
}

func decodeTOMLBody(r io.Reader, dst any) error {
	_, err := toml.NewDecoder(r).Decode(dst)
	return err
}

func decodeMsgpackBody(r io.Reader, dst any) error {
	return msgpack.NewDecoder(r).Decode(dst)
}

// decodeProtobufBody requires dst to implement proto.Message; unlike the
// other decoders it cannot stream, since proto.Unmarshal needs the full
// message bytes up front.
func decodeProtobufBody(r io.Reader, dst any) error {
	msg, ok := dst.(proto.Message)
	if !ok {
		return fmt.Errorf("router: protobuf binding requires a proto.Message, got %T", dst)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	return proto.Unmarshal(buf.Bytes(), msg)
}

// RegisterBodyDecoder installs or replaces the BodyDecoder used for
// contentType (compared against the request's Content-Type with any
// ";charset=..." parameters stripped). Safe to call after the router has
// started serving requests.
func (r *Router) RegisterBodyDecoder(contentType string, dec BodyDecoder) {
	r.bodyDecodersMu.Lock()
	defer r.bodyDecodersMu.Unlock()
	if r.bodyDecoders == nil {
		r.bodyDecoders = make(map[string]BodyDecoder)
	}
	r.bodyDecoders[contentType] = dec
}

// bodyDecoder looks up the decoder registered for mediaType.
func (r *Router) bodyDecoder(mediaType string) (BodyDecoder, bool) {
	r.bodyDecodersMu.RLock()
	defer r.bodyDecodersMu.RUnlock()
	dec, ok := r.bodyDecoders[mediaType]
	return dec, ok
}
