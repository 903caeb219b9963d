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

package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/provider"
)

// AssertDocEqual compares documents the way stores round trip them: every
// numeric type compares as float64.
func AssertDocEqual(t *testing.T, want, got map[string]any, msgAndArgs ...any) {
	t.Helper()
	if !docvalue.Equal(want, got) {
		assert.Fail(t, fmt.Sprintf("documents differ\nwant: %#v\ngot:  %#v", want, got), msgAndArgs...)
	}
}

// RunProviderConformance exercises the provider contract against a fresh
// provider returned by newProvider for every subtest.
func RunProviderConformance(t *testing.T, newProvider func(t *testing.T) provider.Provider) {
	t.Helper()
	ctx := context.Background()

	setup := func(t *testing.T) provider.Provider {
		p := newProvider(t)
		t.Cleanup(func() { _ = p.Close() })
		require.NoError(t, p.CreateTable(ctx, "guilds"))
		return p
	}

	t.Run("tables", func(t *testing.T) {
		p := newProvider(t)
		defer p.Close()

		ok, err := p.HasTable(ctx, "users")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, p.CreateTable(ctx, "users"))
		require.NoError(t, p.CreateTable(ctx, "users"))
		ok, err = p.HasTable(ctx, "users")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, p.DeleteTable(ctx, "users"))
		ok, err = p.HasTable(ctx, "users")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing document", func(t *testing.T) {
		p := setup(t)
		doc, err := p.Get(ctx, "guilds", "nope")
		require.NoError(t, err)
		assert.Nil(t, doc)

		ok, err := p.Has(ctx, "guilds", "nope")
		require.NoError(t, err)
		assert.False(t, ok)

		doc, err = p.GetRandom(ctx, "guilds")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("create and update", func(t *testing.T) {
		p := setup(t)
		require.NoError(t, p.Create(ctx, "guilds", "1", []provider.Change{
			provider.NewChange("count", 2),
			provider.NewChange("channels.modlog", "c1"),
		}))

		doc, err := p.Get(ctx, "guilds", "1")
		require.NoError(t, err)
		AssertDocEqual(t, map[string]any{
			"id":       "1",
			"count":    2,
			"channels": map[string]any{"modlog": "c1"},
		}, doc)

		err = p.Create(ctx, "guilds", "1", nil)
		assert.ErrorIs(t, err, provider.ErrDocumentExists)

		require.NoError(t, p.Update(ctx, "guilds", "1", []provider.Change{
			provider.NewChange("channels.log", "c2"),
			provider.NewChange("messages", []any{"a", "b"}),
		}))
		doc, err = p.Get(ctx, "guilds", "1")
		require.NoError(t, err)
		AssertDocEqual(t, map[string]any{
			"id":       "1",
			"count":    2,
			"channels": map[string]any{"modlog": "c1", "log": "c2"},
			"messages": []any{"a", "b"},
		}, doc)

		ok, err := p.Has(ctx, "guilds", "1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("update creates missing document", func(t *testing.T) {
		p := setup(t)
		require.NoError(t, p.Update(ctx, "guilds", "2", []provider.Change{provider.NewChange("count", 1)}))
		doc, err := p.Get(ctx, "guilds", "2")
		require.NoError(t, err)
		AssertDocEqual(t, map[string]any{"id": "2", "count": 1}, doc)
	})

	t.Run("replace keeps id", func(t *testing.T) {
		p := setup(t)
		require.NoError(t, p.Create(ctx, "guilds", "1", []provider.Change{provider.NewChange("count", 2)}))
		require.NoError(t, p.Replace(ctx, "guilds", "1", provider.Document{"id": "wrong", "prefix": "!"}))
		doc, err := p.Get(ctx, "guilds", "1")
		require.NoError(t, err)
		AssertDocEqual(t, map[string]any{"id": "1", "prefix": "!"}, doc)
	})

	t.Run("changes never overwrite id", func(t *testing.T) {
		p := setup(t)
		require.NoError(t, p.Create(ctx, "guilds", "g1", []provider.Change{provider.NewChange("id", "other")}))
		doc, err := p.Get(ctx, "guilds", "g1")
		require.NoError(t, err)
		AssertDocEqual(t, map[string]any{"id": "g1"}, doc)

		require.NoError(t, p.Update(ctx, "guilds", "g1", []provider.Change{provider.NewChange("id", "other")}))
		require.NoError(t, p.Update(ctx, "guilds", "g2", []provider.Change{provider.NewChange("id", "other")}))
		docs, err := p.GetAll(ctx, "guilds", []string{"g1", "g2"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		for _, doc := range docs {
			assert.Contains(t, []any{"g1", "g2"}, doc["id"])
		}
		assert.NotEqual(t, docs[0]["id"], docs[1]["id"])
	})

	t.Run("bulk reads", func(t *testing.T) {
		p := setup(t)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, p.Create(ctx, "guilds", id, []provider.Change{provider.NewChange("name", id)}))
		}

		keys, err := p.GetKeys(ctx, "guilds")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)

		all, err := p.GetAll(ctx, "guilds", nil)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		some, err := p.GetAll(ctx, "guilds", []string{"a", "c", "missing", "a"})
		require.NoError(t, err)
		ids := make([]any, 0, len(some))
		for _, doc := range some {
			ids = append(ids, doc["id"])
		}
		assert.ElementsMatch(t, []any{"a", "c"}, ids)

		doc, err := p.GetRandom(ctx, "guilds")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Contains(t, []any{"a", "b", "c"}, doc["id"])
	})

	t.Run("delete", func(t *testing.T) {
		p := setup(t)
		require.NoError(t, p.Create(ctx, "guilds", "1", nil))
		require.NoError(t, p.Delete(ctx, "guilds", "1"))
		require.NoError(t, p.Delete(ctx, "guilds", "1"))
		doc, err := p.Get(ctx, "guilds", "1")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("returned documents are copies", func(t *testing.T) {
		p := setup(t)
		require.NoError(t, p.Create(ctx, "guilds", "1", []provider.Change{provider.NewChange("list", []any{"x"})}))
		doc, err := p.Get(ctx, "guilds", "1")
		require.NoError(t, err)
		doc["list"] = []any{"mutated"}

		again, err := p.Get(ctx, "guilds", "1")
		require.NoError(t, err)
		assert.Equal(t, []any{"x"}, again["list"])
	})
}

// CountingProvider wraps a provider, counting calls per method and
// optionally failing writes.
type CountingProvider struct {
	provider.Provider

	mu       sync.Mutex
	calls    map[string]int
	FailWith error
	// BeforeGet runs before every Get is forwarded.
	BeforeGet func(id string)
}

func NewCountingProvider(p provider.Provider) *CountingProvider {
	return &CountingProvider{Provider: p, calls: make(map[string]int)}
}

func (c *CountingProvider) count(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

// Calls returns how many times method was invoked.
func (c *CountingProvider) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Writes returns the number of Create, Update, Replace and Delete calls.
func (c *CountingProvider) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls["Create"] + c.calls["Update"] + c.calls["Replace"] + c.calls["Delete"]
}

func (c *CountingProvider) Get(ctx context.Context, table, id string) (provider.Document, error) {
	c.count("Get")
	if c.BeforeGet != nil {
		c.BeforeGet(id)
	}
	return c.Provider.Get(ctx, table, id)
}

func (c *CountingProvider) GetAll(ctx context.Context, table string, ids []string) ([]provider.Document, error) {
	c.count("GetAll")
	return c.Provider.GetAll(ctx, table, ids)
}

func (c *CountingProvider) CreateTable(ctx context.Context, table string) error {
	c.count("CreateTable")
	return c.Provider.CreateTable(ctx, table)
}

func (c *CountingProvider) Create(ctx context.Context, table, id string, changes []provider.Change) error {
	c.count("Create")
	if c.FailWith != nil {
		return c.FailWith
	}
	return c.Provider.Create(ctx, table, id, changes)
}

func (c *CountingProvider) Update(ctx context.Context, table, id string, changes []provider.Change) error {
	c.count("Update")
	if c.FailWith != nil {
		return c.FailWith
	}
	return c.Provider.Update(ctx, table, id, changes)
}

func (c *CountingProvider) Replace(ctx context.Context, table, id string, data provider.Document) error {
	c.count("Replace")
	if c.FailWith != nil {
		return c.FailWith
	}
	return c.Provider.Replace(ctx, table, id, data)
}

func (c *CountingProvider) Delete(ctx context.Context, table, id string) error {
	c.count("Delete")
	if c.FailWith != nil {
		return c.FailWith
	}
	return c.Provider.Delete(ctx, table, id)
}
