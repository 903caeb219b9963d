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

package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/settingsgateway/internal/cbor"
	"github.com/cardinalhq/settingsgateway/provider"
)

// Codec converts documents to and from file contents.
type Codec interface {
	Extension() string
	Marshal(doc provider.Document) ([]byte, error)
	Unmarshal(data []byte) (provider.Document, error)
}

// CodecFor returns the codec registered under format: json, yaml or cbor.
func CodecFor(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	case "cbor":
		return NewCBORCodec()
	}
	return nil, fmt.Errorf("unknown document format %q", format)
}

type JSONCodec struct{}

func (JSONCodec) Extension() string { return ".json" }

func (JSONCodec) Marshal(doc provider.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte) (provider.Document, error) {
	var doc provider.Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type YAMLCodec struct{}

func (YAMLCodec) Extension() string { return ".yaml" }

func (YAMLCodec) Marshal(doc provider.Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func (YAMLCodec) Unmarshal(data []byte) (provider.Document, error) {
	var doc provider.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type CBORCodec struct {
	config *cbor.Config
}

func NewCBORCodec() (*CBORCodec, error) {
	config, err := cbor.NewConfig()
	if err != nil {
		return nil, err
	}
	return &CBORCodec{config: config}, nil
}

func (*CBORCodec) Extension() string { return ".cbor" }

func (c *CBORCodec) Marshal(doc provider.Document) ([]byte, error) {
	return c.config.Encode(doc)
}

func (c *CBORCodec) Unmarshal(data []byte) (provider.Document, error) {
	return c.config.Decode(data)
}
