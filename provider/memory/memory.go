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

// Package memory implements an in-process settings provider.
package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/provider"
)

// Name is the default registration name.
const Name = "memory"

// Provider keeps every document in memory. Documents are copied on the way
// in and out, so callers never share maps with the store.
type Provider struct {
	name   string
	mu     sync.RWMutex
	tables map[string]map[string]provider.Document
}

var _ provider.Provider = (*Provider)(nil)

// New returns an empty provider registered as name, or Name when empty.
func New(name string) *Provider {
	if name == "" {
		name = Name
	}
	return &Provider{name: name, tables: make(map[string]map[string]provider.Document)}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) HasTable(_ context.Context, table string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.tables[table]
	return ok, nil
}

func (p *Provider) CreateTable(_ context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tables[table]; !ok {
		p.tables[table] = make(map[string]provider.Document)
	}
	return nil
}

func (p *Provider) DeleteTable(_ context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tables, table)
	return nil
}

func (p *Provider) table(table string) (map[string]provider.Document, error) {
	t, ok := p.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrTableNotFound, table)
	}
	return t, nil
}

func copyDoc(doc provider.Document) provider.Document {
	if doc == nil {
		return nil
	}
	return docvalue.Clone(doc).(map[string]any)
}

func (p *Provider) Get(_ context.Context, table, id string) (provider.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.table(table)
	if err != nil {
		return nil, err
	}
	return copyDoc(t[id]), nil
}

func (p *Provider) GetAll(_ context.Context, table string, ids []string) ([]provider.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.table(table)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		keys := sortedKeys(t)
		out := make([]provider.Document, 0, len(keys))
		for _, k := range keys {
			out = append(out, copyDoc(t[k]))
		}
		return out, nil
	}

	var out []provider.Document
	for _, chunk := range provider.ChunkIDs(ids, provider.MaxChunkSize) {
		for _, id := range chunk {
			if doc, ok := t[id]; ok {
				out = append(out, copyDoc(doc))
			}
		}
	}
	return out, nil
}

func sortedKeys(t map[string]provider.Document) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (p *Provider) GetKeys(_ context.Context, table string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.table(table)
	if err != nil {
		return nil, err
	}
	return sortedKeys(t), nil
}

func (p *Provider) Has(_ context.Context, table, id string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.table(table)
	if err != nil {
		return false, err
	}
	_, ok := t[id]
	return ok, nil
}

func (p *Provider) GetRandom(_ context.Context, table string) (provider.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.table(table)
	if err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, nil
	}
	keys := sortedKeys(t)
	return copyDoc(t[keys[rand.IntN(len(keys))]]), nil
}

func (p *Provider) Create(_ context.Context, table, id string, changes []provider.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.table(table)
	if err != nil {
		return err
	}
	if _, ok := t[id]; ok {
		return fmt.Errorf("%w: %s/%s", provider.ErrDocumentExists, table, id)
	}
	t[id] = provider.MergeDocument(id, nil, changes)
	return nil
}

func (p *Provider) Update(_ context.Context, table, id string, changes []provider.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.table(table)
	if err != nil {
		return err
	}
	t[id] = provider.MergeDocument(id, t[id], changes)
	return nil
}

func (p *Provider) Replace(_ context.Context, table, id string, data provider.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.table(table)
	if err != nil {
		return err
	}
	t[id] = provider.NewDocument(id, data)
	return nil
}

func (p *Provider) Delete(_ context.Context, table, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.table(table)
	if err != nil {
		return err
	}
	delete(t, id)
	return nil
}

func (p *Provider) Close() error { return nil }
