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

package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/internal/logctx"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/provider/memory"
	"github.com/cardinalhq/settingsgateway/settings"
)

const SupportedVersion = 1

// SeedFile holds settings documents keyed by gateway, then by id.
type SeedFile struct {
	Version  int                                  `yaml:"version" json:"version"`
	Settings map[string]map[string]map[string]any `yaml:"settings" json:"settings"`
}

// ImportOptions controls how seeded documents merge with stored ones.
type ImportOptions struct {
	// Replace resets every key not named in the seed document.
	Replace bool
	// DryRun validates the seed without writing.
	DryRun bool
}

// ImportStats counts what an import did.
type ImportStats struct {
	Documents int
	Changes   int
}

// ImportFromYAML writes every document in the seed file through its gateway,
// so values are validated exactly as API writes are. It stops at the first
// failing document.
func ImportFromYAML(ctx context.Context, filePath string, d *gateway.Driver, opts ImportOptions) (ImportStats, error) {
	ll := logctx.FromContext(ctx)
	ll.Info("Starting settings import from YAML", slog.String("file", filePath))

	seed, err := loadSeed(filePath)
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to load seed: %w", err)
	}
	if seed.Version != SupportedVersion {
		return ImportStats{}, fmt.Errorf("unsupported seed version %d, expected %d", seed.Version, SupportedVersion)
	}
	return Import(ctx, seed, d, opts)
}

// Import applies seed to the gateways of d.
func Import(ctx context.Context, seed *SeedFile, d *gateway.Driver, opts ImportOptions) (ImportStats, error) {
	ll := logctx.FromContext(ctx)
	var stats ImportStats

	for _, name := range sortedKeys(seed.Settings) {
		g, ok := d.Get(name)
		if !ok {
			return stats, fmt.Errorf("%w: %s", gateway.ErrGatewayNotFound, name)
		}
		docs := seed.Settings[name]
		for _, id := range sortedKeys(docs) {
			n, err := importDocument(ctx, g, id, docs[id], opts)
			if err != nil {
				return stats, fmt.Errorf("failed to import %s/%s: %w", name, id, err)
			}
			stats.Documents++
			stats.Changes += n
		}
		ll.Info("Imported gateway settings",
			slog.String("gateway", name),
			slog.Int("documents", len(docs)),
			slog.Bool("dry_run", opts.DryRun))
	}

	ll.Info("Settings import completed",
		slog.Int("documents", stats.Documents),
		slog.Int("changes", stats.Changes))
	return stats, nil
}

func importDocument(ctx context.Context, g *gateway.Gateway, id string, values map[string]any, opts ImportOptions) (int, error) {
	var s *settings.Settings
	if opts.DryRun {
		dry, err := newDryRunGateway(ctx, g, id)
		if err != nil {
			return 0, err
		}
		s = settings.New(g.Schema(), dry, id, nil)
	} else {
		s = g.Acquire(id, nil)
	}
	if err := s.Sync(ctx); err != nil {
		return 0, err
	}

	total := 0
	if opts.Replace {
		changes, err := s.Reset(ctx, nil)
		if err != nil {
			return 0, err
		}
		total += len(changes)
	}
	changes, err := s.UpdateMap(ctx, values, settings.WithArrayAction(settings.ArrayOverwrite))
	if err != nil {
		return total, err
	}
	return total + len(changes), nil
}

// dryRunGateway reads through the real gateway but writes into a scratch
// provider and emits nothing.
type dryRunGateway struct {
	*gateway.Gateway
	scratch *memory.Provider
}

func newDryRunGateway(ctx context.Context, g *gateway.Gateway, id string) (*dryRunGateway, error) {
	scratch := memory.New("dry-run")
	if err := scratch.CreateTable(ctx, g.Name()); err != nil {
		return nil, err
	}
	doc, err := g.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if err := scratch.Replace(ctx, g.Name(), id, doc); err != nil {
			return nil, err
		}
	}
	return &dryRunGateway{Gateway: g, scratch: scratch}, nil
}

func (d *dryRunGateway) Provider() (provider.Provider, error) { return d.scratch, nil }

func (d *dryRunGateway) Emit(context.Context, settings.Event) {}

func loadSeed(filePath string) (*SeedFile, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	var seed SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(false) // Allow unknown fields for forward compatibility
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return &seed, nil
}

// Export reads every stored document of the named gateways, or of all
// gateways when none are named, and writes them as a seed file.
func Export(ctx context.Context, d *gateway.Driver, w io.Writer, names ...string) error {
	if len(names) == 0 {
		names = d.Names()
	}
	seed := SeedFile{Version: SupportedVersion, Settings: map[string]map[string]map[string]any{}}
	for _, name := range names {
		g, ok := d.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", gateway.ErrGatewayNotFound, name)
		}
		p, err := g.Provider()
		if err != nil {
			return err
		}
		docs, err := p.GetAll(ctx, name, nil)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		out := make(map[string]map[string]any, len(docs))
		for _, doc := range docs {
			id, _ := doc["id"].(string)
			values := make(map[string]any, len(doc))
			for k, v := range doc {
				if k != "id" {
					values[k] = v
				}
			}
			out[id] = values
		}
		seed.Settings[name] = out
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seed); err != nil {
		return err
	}
	return enc.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
