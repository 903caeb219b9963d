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

// Package file implements a settings provider that keeps one file per
// document, one directory per table.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cardinalhq/settingsgateway/provider"
)

// Name is the default registration name.
const Name = "file"

// Provider stores documents below a root directory. Writes go through a
// temporary file and a rename, so readers never observe partial documents.
type Provider struct {
	name  string
	root  string
	codec Codec
	mu    sync.RWMutex
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider rooted at dir, creating it when missing.
func New(name, dir string, codec Codec) (*Provider, error) {
	if name == "" {
		name = Name
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory %s: %w", dir, err)
	}
	return &Provider{name: name, root: dir, codec: codec}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) tableDir(table string) string {
	return filepath.Join(p.root, url.PathEscape(table))
}

func (p *Provider) docPath(table, id string) string {
	return filepath.Join(p.tableDir(table), url.PathEscape(id)+p.codec.Extension())
}

func (p *Provider) checkTable(table string) error {
	info, err := os.Stat(p.tableDir(table))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return fmt.Errorf("%w: %s", provider.ErrTableNotFound, table)
	}
	return err
}

func (p *Provider) HasTable(_ context.Context, table string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	err := p.checkTable(table)
	if errors.Is(err, provider.ErrTableNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) CreateTable(_ context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return os.MkdirAll(p.tableDir(table), 0o755)
}

func (p *Provider) DeleteTable(_ context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return os.RemoveAll(p.tableDir(table))
}

func (p *Provider) read(table, id string) (provider.Document, error) {
	data, err := os.ReadFile(p.docPath(table, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := p.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", table, id, err)
	}
	return doc, nil
}

func (p *Provider) write(table, id string, doc provider.Document) error {
	data, err := p.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", table, id, err)
	}

	tmp, err := os.CreateTemp(p.tableDir(table), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.docPath(table, id))
}

func (p *Provider) keys(table string) ([]string, error) {
	entries, err := os.ReadDir(p.tableDir(table))
	if err != nil {
		return nil, err
	}
	ext := p.codec.Extension()
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		keys = append(keys, id)
	}
	slices.Sort(keys)
	return keys, nil
}

func (p *Provider) Get(_ context.Context, table, id string) (provider.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.checkTable(table); err != nil {
		return nil, err
	}
	return p.read(table, id)
}

func (p *Provider) GetAll(_ context.Context, table string, ids []string) ([]provider.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.checkTable(table); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		var err error
		if ids, err = p.keys(table); err != nil {
			return nil, err
		}
	}

	var out []provider.Document
	for _, chunk := range provider.ChunkIDs(ids, provider.MaxChunkSize) {
		for _, id := range chunk {
			doc, err := p.read(table, id)
			if err != nil {
				return nil, err
			}
			if doc != nil {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

func (p *Provider) GetKeys(_ context.Context, table string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.checkTable(table); err != nil {
		return nil, err
	}
	return p.keys(table)
}

func (p *Provider) Has(_ context.Context, table, id string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.checkTable(table); err != nil {
		return false, err
	}
	_, err := os.Stat(p.docPath(table, id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) GetRandom(_ context.Context, table string) (provider.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.checkTable(table); err != nil {
		return nil, err
	}
	keys, err := p.keys(table)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	return p.read(table, keys[rand.IntN(len(keys))])
}

func (p *Provider) Create(_ context.Context, table, id string, changes []provider.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTable(table); err != nil {
		return err
	}
	existing, err := p.read(table, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s/%s", provider.ErrDocumentExists, table, id)
	}
	return p.write(table, id, provider.MergeDocument(id, nil, changes))
}

func (p *Provider) Update(_ context.Context, table, id string, changes []provider.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTable(table); err != nil {
		return err
	}
	doc, err := p.read(table, id)
	if err != nil {
		return err
	}
	doc = provider.MergeDocument(id, doc, changes)
	return p.write(table, id, doc)
}

func (p *Provider) Replace(_ context.Context, table, id string, data provider.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTable(table); err != nil {
		return err
	}
	return p.write(table, id, provider.NewDocument(id, data))
}

func (p *Provider) Delete(_ context.Context, table, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTable(table); err != nil {
		return err
	}
	err := os.Remove(p.docPath(table, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *Provider) Close() error { return nil }
