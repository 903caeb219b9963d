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

// Package postgres implements a settings provider on a JSONB table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/settingsgateway/provider"
)

// Name is the default registration name.
const Name = "postgres"

// Provider stores each document as one JSONB row keyed by table and id.
type Provider struct {
	name      string
	pool      *pgxpool.Pool
	ownsPool  bool
	chunkSize int
}

var _ provider.Provider = (*Provider)(nil)

type Option func(*Provider)

// WithName overrides the registration name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithOwnedPool makes Close close the pool.
func WithOwnedPool() Option {
	return func(p *Provider) { p.ownsPool = true }
}

// WithChunkSize bounds the number of ids per bulk query.
func WithChunkSize(n int) Option {
	return func(p *Provider) { p.chunkSize = n }
}

func New(pool *pgxpool.Pool, opts ...Option) *Provider {
	p := &Provider{name: Name, pool: pool, chunkSize: provider.MaxChunkSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) HasTable(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM settings_tables WHERE name = $1)`, table).Scan(&exists)
	return exists, err
}

func (p *Provider) CreateTable(ctx context.Context, table string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO settings_tables (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, table)
	return err
}

func (p *Provider) DeleteTable(ctx context.Context, table string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM settings_tables WHERE name = $1`, table)
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func checkTable(ctx context.Context, q querier, table string) error {
	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM settings_tables WHERE name = $1)`, table).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", provider.ErrTableNotFound, table)
	}
	return nil
}

func decode(raw []byte) (provider.Document, error) {
	var doc provider.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding settings document: %w", err)
	}
	return doc, nil
}

func getDocument(ctx context.Context, q querier, table, id, suffix string) (provider.Document, error) {
	var raw []byte
	err := q.QueryRow(ctx,
		`SELECT data FROM settings_documents WHERE table_name = $1 AND id = $2`+suffix, table, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (p *Provider) Get(ctx context.Context, table, id string) (provider.Document, error) {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return nil, err
	}
	return getDocument(ctx, p.pool, table, id, "")
}

func (p *Provider) GetAll(ctx context.Context, table string, ids []string) ([]provider.Document, error) {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		rows, err := p.pool.Query(ctx,
			`SELECT data FROM settings_documents WHERE table_name = $1 ORDER BY id`, table)
		if err != nil {
			return nil, err
		}
		return collectDocuments(rows)
	}

	var out []provider.Document
	for _, chunk := range provider.ChunkIDs(ids, p.chunkSize) {
		rows, err := p.pool.Query(ctx,
			`SELECT data FROM settings_documents WHERE table_name = $1 AND id = ANY($2) ORDER BY id`, table, chunk)
		if err != nil {
			return nil, err
		}
		docs, err := collectDocuments(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

func collectDocuments(rows pgx.Rows) ([]provider.Document, error) {
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, err
	}
	out := make([]provider.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (p *Provider) GetKeys(ctx context.Context, table string) ([]string, error) {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id FROM settings_documents WHERE table_name = $1 ORDER BY id`, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *Provider) Has(ctx context.Context, table, id string) (bool, error) {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return false, err
	}
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM settings_documents WHERE table_name = $1 AND id = $2)`, table, id).Scan(&exists)
	return exists, err
}

func (p *Provider) GetRandom(ctx context.Context, table string) (provider.Document, error) {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return nil, err
	}
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM settings_documents WHERE table_name = $1 ORDER BY random() LIMIT 1`, table).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func encode(doc provider.Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding settings document: %w", err)
	}
	return raw, nil
}

func (p *Provider) Create(ctx context.Context, table, id string, changes []provider.Change) error {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return err
	}
	raw, err := encode(provider.MergeDocument(id, nil, changes))
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO settings_documents (table_name, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (table_name, id) DO NOTHING`, table, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", provider.ErrDocumentExists, table, id)
	}
	return nil
}

// Update merges changes into the stored document inside a transaction that
// holds the row lock, creating the document when it is missing.
func (p *Provider) Update(ctx context.Context, table, id string, changes []provider.Change) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := checkTable(ctx, tx, table); err != nil {
			return err
		}
		doc, err := getDocument(ctx, tx, table, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		doc = provider.MergeDocument(id, doc, changes)
		return upsert(ctx, tx, table, id, doc)
	})
}

func upsert(ctx context.Context, tx pgx.Tx, table, id string, doc provider.Document) error {
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO settings_documents (table_name, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (table_name, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		table, id, raw)
	return err
}

func (p *Provider) Replace(ctx context.Context, table, id string, data provider.Document) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := checkTable(ctx, tx, table); err != nil {
			return err
		}
		return upsert(ctx, tx, table, id, provider.NewDocument(id, data))
	})
}

func (p *Provider) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(ctx, p.pool, table); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx,
		`DELETE FROM settings_documents WHERE table_name = $1 AND id = $2`, table, id)
	return err
}

func (p *Provider) Close() error {
	if p.ownsPool {
		p.pool.Close()
	}
	return nil
}
