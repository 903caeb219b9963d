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

// Package s3 implements a settings provider that stores each document as a
// JSON object in a bucket, under <prefix>/<table>/<id>.json.
package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/settingsgateway/internal/awsclient/s3helper"
	"github.com/cardinalhq/settingsgateway/provider"
)

// Name is the default registration name.
const Name = "s3"

const (
	tableMarker = ".table"
	docSuffix   = ".json"
	fetchLimit  = 16
	lockStripes = 64
)

// Provider keeps documents in an object store. Read-modify-write updates
// are serialized per document inside the process; creates rely on a
// conditional put.
type Provider struct {
	name   string
	store  ObjectStore
	prefix string
	locks  [lockStripes]sync.Mutex
}

var _ provider.Provider = (*Provider)(nil)

func New(name string, store ObjectStore, prefix string) *Provider {
	if name == "" {
		name = Name
	}
	return &Provider{name: name, store: store, prefix: strings.Trim(prefix, "/")}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) tablePrefix(table string) string {
	return path.Join(p.prefix, url.PathEscape(table)) + "/"
}

func (p *Provider) docKey(table, id string) string {
	return p.tablePrefix(table) + url.PathEscape(id) + docSuffix
}

func (p *Provider) lock(table, id string) func() {
	mu := &p.locks[stripe(table, id)]
	mu.Lock()
	return mu.Unlock
}

func stripe(table, id string) uint64 {
	return xxhash.Sum64String(table+"/"+id) % lockStripes
}

func (p *Provider) HasTable(ctx context.Context, table string) (bool, error) {
	return p.store.Exists(ctx, p.tablePrefix(table)+tableMarker)
}

func (p *Provider) CreateTable(ctx context.Context, table string) error {
	err := p.store.Put(ctx, p.tablePrefix(table)+tableMarker, []byte("{}"), true)
	if errors.Is(err, s3helper.ErrPreconditionFailed) {
		return nil
	}
	return err
}

func (p *Provider) DeleteTable(ctx context.Context, table string) error {
	keys, err := p.store.List(ctx, p.tablePrefix(table))
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for _, key := range keys {
		g.Go(func() error { return p.store.Delete(gctx, key) })
	}
	return g.Wait()
}

func (p *Provider) checkTable(ctx context.Context, table string) error {
	ok, err := p.HasTable(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", provider.ErrTableNotFound, table)
	}
	return nil
}

func (p *Provider) read(ctx context.Context, table, id string) (provider.Document, error) {
	data, err := p.store.Get(ctx, p.docKey(table, id))
	if err != nil || data == nil {
		return nil, err
	}
	var doc provider.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", table, id, err)
	}
	return doc, nil
}

func (p *Provider) write(ctx context.Context, table, id string, doc provider.Document, ifAbsent bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", table, id, err)
	}
	return p.store.Put(ctx, p.docKey(table, id), data, ifAbsent)
}

func (p *Provider) keys(ctx context.Context, table string) ([]string, error) {
	objects, err := p.store.List(ctx, p.tablePrefix(table))
	if err != nil {
		return nil, err
	}
	prefix := p.tablePrefix(table)
	var ids []string
	for _, key := range objects {
		name := strings.TrimPrefix(key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, docSuffix) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, docSuffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (p *Provider) Get(ctx context.Context, table, id string) (provider.Document, error) {
	if err := p.checkTable(ctx, table); err != nil {
		return nil, err
	}
	return p.read(ctx, table, id)
}

// GetAll fetches documents concurrently; results keep the order of ids.
func (p *Provider) GetAll(ctx context.Context, table string, ids []string) ([]provider.Document, error) {
	if err := p.checkTable(ctx, table); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		var err error
		if ids, err = p.keys(ctx, table); err != nil {
			return nil, err
		}
	}

	var out []provider.Document
	for _, chunk := range provider.ChunkIDs(ids, provider.MaxChunkSize) {
		docs := make([]provider.Document, len(chunk))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fetchLimit)
		for i, id := range chunk {
			g.Go(func() error {
				doc, err := p.read(gctx, table, id)
				docs[i] = doc
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if doc != nil {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

func (p *Provider) GetKeys(ctx context.Context, table string) ([]string, error) {
	if err := p.checkTable(ctx, table); err != nil {
		return nil, err
	}
	return p.keys(ctx, table)
}

func (p *Provider) Has(ctx context.Context, table, id string) (bool, error) {
	if err := p.checkTable(ctx, table); err != nil {
		return false, err
	}
	return p.store.Exists(ctx, p.docKey(table, id))
}

func (p *Provider) GetRandom(ctx context.Context, table string) (provider.Document, error) {
	if err := p.checkTable(ctx, table); err != nil {
		return nil, err
	}
	ids, err := p.keys(ctx, table)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return p.read(ctx, table, ids[rand.IntN(len(ids))])
}

func (p *Provider) Create(ctx context.Context, table, id string, changes []provider.Change) error {
	if err := p.checkTable(ctx, table); err != nil {
		return err
	}
	defer p.lock(table, id)()

	err := p.write(ctx, table, id, provider.MergeDocument(id, nil, changes), true)
	if errors.Is(err, s3helper.ErrPreconditionFailed) {
		return fmt.Errorf("%w: %s/%s", provider.ErrDocumentExists, table, id)
	}
	return err
}

func (p *Provider) Update(ctx context.Context, table, id string, changes []provider.Change) error {
	if err := p.checkTable(ctx, table); err != nil {
		return err
	}
	defer p.lock(table, id)()

	doc, err := p.read(ctx, table, id)
	if err != nil {
		return err
	}
	doc = provider.MergeDocument(id, doc, changes)
	return p.write(ctx, table, id, doc, false)
}

func (p *Provider) Replace(ctx context.Context, table, id string, data provider.Document) error {
	if err := p.checkTable(ctx, table); err != nil {
		return err
	}
	defer p.lock(table, id)()
	return p.write(ctx, table, id, provider.NewDocument(id, data), false)
}

func (p *Provider) Delete(ctx context.Context, table, id string) error {
	if err := p.checkTable(ctx, table); err != nil {
		return err
	}
	defer p.lock(table, id)()
	return p.store.Delete(ctx, p.docKey(table, id))
}

func (p *Provider) Close() error { return nil }
