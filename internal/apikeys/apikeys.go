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

// Package apikeys authenticates HTTP API callers against a YAML list of
// keys, each optionally limited to some gateways or to reads.
package apikeys

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownKey = errors.New("API key not found")

type APIKey struct {
	Name        string `json:"name" yaml:"name"`
	Key         string `json:"key,omitempty" yaml:"key,omitempty"`
	KeySHA256   string `json:"key_sha256,omitempty" yaml:"key_sha256,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Gateways limits the key to the named gateways; empty allows all.
	Gateways []string `json:"gateways,omitempty" yaml:"gateways,omitempty"`
	ReadOnly bool     `json:"read_only,omitempty" yaml:"read_only,omitempty"`
}

// Allows reports whether the key may act on gateway, writing when write is set.
func (k *APIKey) Allows(gateway string, write bool) bool {
	if write && k.ReadOnly {
		return false
	}
	return len(k.Gateways) == 0 || slices.Contains(k.Gateways, gateway)
}

type Config struct {
	APIKeys []APIKey `json:"apikeys,omitempty" yaml:"apikeys,omitempty"`
}

// Provider resolves presented keys.
type Provider interface {
	// Enabled reports whether any key is configured. When it is not, the API
	// is open.
	Enabled() bool
	Lookup(ctx context.Context, apiKey string) (*APIKey, error)
}

type fileProvider struct {
	config Config
}

var _ Provider = (*fileProvider)(nil)

// Setup loads keys from SETTINGS_API_KEYS_FILE, defaulting to
// /app/config/apikeys.yaml.
func Setup() (Provider, error) {
	path := os.Getenv("SETTINGS_API_KEYS_FILE")
	if path == "" {
		path = "/app/config/apikeys.yaml"
	}
	return NewFileProvider(path)
}

// NewFileProvider reads keys from filename, or from an environment variable
// when filename is "env:NAME". A missing file yields an open provider.
func NewFileProvider(filename string) (Provider, error) {
	if envVar, ok := strings.CutPrefix(filename, "env:"); ok {
		contents := os.Getenv(envVar)
		if contents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return NewProviderFromContents(filename, []byte(contents))
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileProvider{}, nil
		}
		return nil, fmt.Errorf("failed to read API keys from file %s: %w", filename, err)
	}
	return NewProviderFromContents(filename, contents)
}

// NewProviderFromContents parses YAML key declarations; source is used in errors.
func NewProviderFromContents(source string, contents []byte) (Provider, error) {
	var config Config
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal API keys from %s: %w", source, err)
	}
	for i, k := range config.APIKeys {
		if k.Key == "" && k.KeySHA256 == "" {
			return nil, fmt.Errorf("API key %d (%s) in %s has neither key nor key_sha256", i, k.Name, source)
		}
	}
	return &fileProvider{config: config}, nil
}

func (p *fileProvider) Enabled() bool { return len(p.config.APIKeys) > 0 }

func HashAPIKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

func (p *fileProvider) Lookup(_ context.Context, apiKey string) (*APIKey, error) {
	if apiKey == "" {
		return nil, ErrUnknownKey
	}
	hashed := HashAPIKey(apiKey)
	for _, key := range p.config.APIKeys {
		match := key.Key != "" && subtle.ConstantTimeCompare([]byte(key.Key), []byte(apiKey)) == 1
		if !match && key.KeySHA256 != "" {
			match = subtle.ConstantTimeCompare([]byte(strings.ToLower(key.KeySHA256)), []byte(hashed)) == 1
		}
		if match {
			// Never hand the secret back out.
			return &APIKey{
				Name:        key.Name,
				Description: key.Description,
				Gateways:    slices.Clone(key.Gateways),
				ReadOnly:    key.ReadOnly,
			}, nil
		}
	}
	return nil, ErrUnknownKey
}
