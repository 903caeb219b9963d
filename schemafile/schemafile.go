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

// Package schemafile loads gateway and schema declarations from YAML.
//
// A file lists gateways; each gateway names its provider and declares its
// schema as a mapping. A mapping with a scalar "type" key is an entry, any
// other mapping is a folder, and a bare scalar is shorthand for an entry of
// that type:
//
//	gateways:
//	  - name: guilds
//	    provider: postgres
//	    idle_ttl: 30m
//	    schema:
//	      prefix: { type: string, default: "!", maximum: 10 }
//	      tags: { type: string, array: true }
//	      channels:
//	        modlog: string
//	        admin: { type: string, configurable: false }
//
// Declaration order is preserved.
package schemafile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/serializer"
)

var ErrInvalidDeclaration = errors.New("invalid schema declaration")

// Gateway is one declared gateway with its built schema.
type Gateway struct {
	Name     string
	Provider string
	IdleTTL  time.Duration
	Schema   *schema.Schema
}

// File is a parsed declaration file.
type File struct {
	Gateways []Gateway
}

type fileDecl struct {
	Gateways []gatewayDecl `yaml:"gateways"`
}

type gatewayDecl struct {
	Name     string        `yaml:"name"`
	Provider string        `yaml:"provider"`
	IdleTTL  time.Duration `yaml:"idle_ttl"`
	Schema   yaml.Node     `yaml:"schema"`
}

type entryDecl struct {
	Type         string     `yaml:"type"`
	Array        *bool      `yaml:"array"`
	Default      *yaml.Node `yaml:"default"`
	Minimum      *float64   `yaml:"minimum"`
	Maximum      *float64   `yaml:"maximum"`
	Inclusive    *bool      `yaml:"inclusive"`
	Configurable *bool      `yaml:"configurable"`
	Resolve      *bool      `yaml:"resolve"`
	Choices      []any      `yaml:"choices"`
}

// Load reads and parses path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse builds schemas from YAML bytes.
func Parse(data []byte) (*File, error) {
	var decl fileDecl
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("parsing schema file: %w", err)
	}

	out := &File{}
	seen := make(map[string]bool, len(decl.Gateways))
	for i, g := range decl.Gateways {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: gateway %d has no name", ErrInvalidDeclaration, i)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("%w: gateway %s declared twice", ErrInvalidDeclaration, g.Name)
		}
		seen[g.Name] = true
		if g.Provider == "" {
			return nil, fmt.Errorf("%w: gateway %s has no provider", ErrInvalidDeclaration, g.Name)
		}

		sch := schema.New()
		if g.Schema.Kind != 0 {
			if err := buildFolder(&sch.Folder, &g.Schema); err != nil {
				return nil, fmt.Errorf("gateway %s: %w", g.Name, err)
			}
		}
		out.Gateways = append(out.Gateways, Gateway{
			Name:     g.Name,
			Provider: g.Provider,
			IdleTTL:  g.IdleTTL,
			Schema:   sch,
		})
	}
	return out, nil
}

// Names lists the declared gateways in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Gateways))
	for i, g := range f.Gateways {
		names[i] = g.Name
	}
	return names
}

// Register adds every declared gateway to d.
func (f *File) Register(d *gateway.Driver, opts ...gateway.Option) error {
	for _, g := range f.Gateways {
		gwOpts := slices.Clone(opts)
		if g.IdleTTL > 0 {
			gwOpts = append(gwOpts, gateway.WithIdleTTL(g.IdleTTL))
		}
		if _, err := d.Register(g.Name, g.Schema, g.Provider, gwOpts...); err != nil {
			return err
		}
	}
	return nil
}

func buildFolder(f *schema.Folder, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: folder must be a mapping", ErrInvalidDeclaration, node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value

		switch {
		case valueNode.Kind == yaml.ScalarNode:
			if err := f.Add(key, valueNode.Value); err != nil {
				return fmt.Errorf("line %d: %w", keyNode.Line, err)
			}
		case isEntry(valueNode):
			opts, typ, err := entryOptions(valueNode)
			if err != nil {
				return fmt.Errorf("line %d: %s: %w", keyNode.Line, key, err)
			}
			if err := f.Add(key, typ, opts...); err != nil {
				return fmt.Errorf("line %d: %w", keyNode.Line, err)
			}
		case valueNode.Kind == yaml.MappingNode:
			err := f.AddFolder(key, func(child *schema.Folder) error {
				return buildFolder(child, valueNode)
			})
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: line %d: %s must be a type name, an entry or a folder",
				ErrInvalidDeclaration, keyNode.Line, key)
		}
	}
	return nil
}

func isEntry(node *yaml.Node) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "type" {
			return node.Content[i+1].Kind == yaml.ScalarNode
		}
	}
	return false
}

func entryOptions(node *yaml.Node) ([]schema.Option, string, error) {
	var decl entryDecl
	if err := node.Decode(&decl); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDeclaration, err)
	}

	var opts []schema.Option
	if decl.Array != nil {
		opts = append(opts, schema.WithArray(*decl.Array))
	}
	if decl.Default != nil {
		var def any
		if err := decl.Default.Decode(&def); err != nil {
			return nil, "", fmt.Errorf("%w: default: %v", ErrInvalidDeclaration, err)
		}
		opts = append(opts, schema.WithDefault(def))
	}
	if decl.Minimum != nil || decl.Maximum != nil {
		opts = append(opts, schema.WithBounds(decl.Minimum, decl.Maximum))
	}
	if decl.Inclusive != nil {
		opts = append(opts, schema.WithInclusive(*decl.Inclusive))
	}
	if decl.Configurable != nil {
		opts = append(opts, schema.WithConfigurable(*decl.Configurable))
	}
	if decl.Resolve != nil {
		opts = append(opts, schema.WithResolve(*decl.Resolve))
	}
	if len(decl.Choices) > 0 {
		opts = append(opts, schema.WithFilter(choicesFilter(decl.Choices)))
	}
	return opts, decl.Type, nil
}

// choicesFilter rejects validated values whose stored form is not one of
// choices.
func choicesFilter(choices []any) schema.FilterFunc {
	return func(_ context.Context, value any, sc *serializer.Context) bool {
		stored := value
		if sc != nil && sc.Entry != nil {
			if e, ok := sc.Entry.(*schema.Entry); ok {
				if s, err := e.Serializer(); err == nil {
					stored = s.Serialize(value)
				}
			}
		}
		for _, c := range choices {
			if docvalue.Equal(c, stored) {
				return false
			}
		}
		return true
	}
}
