// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package cbor encodes settings documents as CBOR with stable key order and
// normalized decode types.
//
// CBOR Type Behavior:
//   - All integers decode as int64
//   - float32 decodes as float64
//   - Arrays decode as []any, nested maps as map[string]any
//   - uint64 values > MaxInt64 cause decode errors and should be avoided
//   - string, bool, []byte, nil are preserved exactly
package cbor

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Config holds CBOR encoder and decoder configurations for documents.
type Config struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewConfig creates a new CBOR configuration for document storage.
func NewConfig() (*Config, error) {
	// Canonical key order keeps files byte-stable across rewrites.
	encMode, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		ShortestFloat: cbor.ShortestFloatNone,
		BigIntConvert: cbor.BigIntConvertNone,
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagNone,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	decMode, err := cbor.DecOptions{
		BigIntDec:      cbor.BigIntDecodeValue,
		IntDec:         cbor.IntDecConvertSigned,
		DefaultMapType: reflect.TypeOf(map[string]any{}),
		UTF8:           cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}

	return &Config{
		encMode: encMode,
		decMode: decMode,
	}, nil
}

// NewEncoder creates a new CBOR encoder using the document configuration.
func (c *Config) NewEncoder(w io.Writer) *cbor.Encoder {
	return c.encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder using the document configuration.
func (c *Config) NewDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}

// Encode encodes a document to CBOR bytes.
func (c *Config) Encode(doc map[string]any) ([]byte, error) {
	return c.encMode.Marshal(doc)
}

// Decode decodes CBOR bytes to a document with type conversion applied.
func (c *Config) Decode(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := c.decMode.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	converted := make(map[string]any, len(raw))
	for k, v := range raw {
		converted[k] = convertCBORTypes(v)
	}
	return converted, nil
}

// convertCBORTypes walks decoded values so every nested container uses the
// document types the rest of the module expects.
func convertCBORTypes(value any) any {
	switch v := value.(type) {
	case []any:
		result := make([]any, len(v))
		for i, elem := range v {
			result[i] = convertCBORTypes(elem)
		}
		return result

	case map[string]any:
		result := make(map[string]any, len(v))
		for k, elem := range v {
			result[k] = convertCBORTypes(elem)
		}
		return result

	case map[any]any:
		result := make(map[string]any, len(v))
		for k, elem := range v {
			result[fmt.Sprint(k)] = convertCBORTypes(elem)
		}
		return result

	case float32:
		return float64(v)

	default:
		return v
	}
}
