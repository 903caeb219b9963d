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

// Package provider defines the contract durable settings stores implement,
// the canonical change record they receive, and the registry gateways
// resolve them from.
package provider

import (
	"context"
	"errors"
	"strings"
)

// MaxChunkSize bounds the number of ids a single GetAll round trip requests.
const MaxChunkSize = 5000

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrTableNotFound     = errors.New("table not found")
	ErrDocumentExists    = errors.New("document already exists")
)

// Document is a stored settings document. Its "id" field always equals the
// key it is stored under.
type Document = map[string]any

// Change sets the value at Path inside a document.
type Change struct {
	Path  []string
	Value any
}

// NewChange builds a change from a dotted path.
func NewChange(path string, value any) Change {
	return Change{Path: strings.Split(path, "."), Value: value}
}

// Key returns the dotted form of the change path.
func (c Change) Key() string {
	return strings.Join(c.Path, ".")
}

// Provider is a durable document store addressed by table and id.
type Provider interface {
	Name() string

	HasTable(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string) error
	DeleteTable(ctx context.Context, table string) error

	// Get returns nil without error when the document does not exist.
	Get(ctx context.Context, table, id string) (Document, error)
	// GetAll returns the documents for ids, or every document when ids is empty.
	GetAll(ctx context.Context, table string, ids []string) ([]Document, error)
	GetKeys(ctx context.Context, table string) ([]string, error)
	Has(ctx context.Context, table, id string) (bool, error)
	// GetRandom returns nil without error when the table is empty.
	GetRandom(ctx context.Context, table string) (Document, error)

	Create(ctx context.Context, table, id string, changes []Change) error
	// Update merges changes into the stored document, creating it if needed.
	Update(ctx context.Context, table, id string, changes []Change) error
	Replace(ctx context.Context, table, id string, data Document) error
	Delete(ctx context.Context, table, id string) error

	Close() error
}
