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

// Package gateway binds a settings schema to a named persistence provider.
// A gateway locks its schema on Init, ensures the backing table exists,
// caches one settings instance per entity id and deduplicates provider
// fetches so concurrent syncs of one id share a single read.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cardinalhq/settingsgateway/internal/logctx"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/serializer"
	"github.com/cardinalhq/settingsgateway/settings"
)

// syncConcurrency bounds concurrent per-entity syncs in a reverse proxy.
const syncConcurrency = 16

// EventSink receives every settings lifecycle event a gateway emits.
type EventSink interface {
	Handle(ctx context.Context, ev settings.Event) error
}

// Gateway owns a schema and the settings instances validated against it.
type Gateway struct {
	name         string
	providerName string
	schema       *schema.Schema

	providers   *provider.Registry
	serializers *serializer.Registry
	sinks       []EventSink
	ttl         time.Duration

	initMu   sync.Mutex
	ready    atomic.Bool
	provider provider.Provider

	cache   *ttlcache.Cache[string, *settings.Settings]
	host    Host
	fetches singleflight.Group
}

var _ settings.Gateway = (*Gateway)(nil)

// Option configures a gateway.
type Option func(*Gateway)

// WithProviders sets the registry the provider is resolved from on Init.
// The default is provider.Default.
func WithProviders(r *provider.Registry) Option {
	return func(g *Gateway) { g.providers = r }
}

// WithSerializers sets the registry attached to the schema on Init.
func WithSerializers(r *serializer.Registry) Option {
	return func(g *Gateway) { g.serializers = r }
}

// WithSinks adds event sinks.
func WithSinks(sinks ...EventSink) Option {
	return func(g *Gateway) { g.sinks = append(g.sinks, sinks...) }
}

// WithIdleTTL evicts cached settings not accessed for ttl. Zero keeps them
// until evicted explicitly.
func WithIdleTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.ttl = ttl }
}

// New returns a gateway that caches its own settings instances.
func New(name string, sch *schema.Schema, providerName string, opts ...Option) *Gateway {
	g := newGateway(name, sch, providerName, opts)
	g.cache = ttlcache.New(
		ttlcache.WithTTL[string, *settings.Settings](g.ttl),
	)
	g.cache.OnInsertion(func(ctx context.Context, _ *ttlcache.Item[string, *settings.Settings]) {
		cachedSettingsGauge.Add(ctx, 1, gatewayAttrs(g.name))
	})
	g.cache.OnEviction(func(ctx context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[string, *settings.Settings]) {
		cachedSettingsGauge.Add(ctx, -1, gatewayAttrs(g.name))
	})
	if g.ttl > 0 {
		go g.cache.Start()
	}
	return g
}

func newGateway(name string, sch *schema.Schema, providerName string, opts []Option) *Gateway {
	g := &Gateway{
		name:         name,
		providerName: providerName,
		schema:       sch,
		providers:    provider.Default,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.serializers == nil {
		g.serializers = serializer.NewDefaultRegistry()
	}
	return g
}

func (g *Gateway) Name() string           { return g.name }
func (g *Gateway) ProviderName() string   { return g.providerName }
func (g *Gateway) Schema() *schema.Schema { return g.schema }
func (g *Gateway) Ready() bool            { return g.ready.Load() }

// Init resolves the provider, validates the schema, ensures the table
// exists and locks the schema.
func (g *Gateway) Init(ctx context.Context) error {
	g.initMu.Lock()
	defer g.initMu.Unlock()

	if g.ready.Load() {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, g.name)
	}

	p, ok := g.providers.Get(g.providerName)
	if !ok {
		return fmt.Errorf("gateway %s: %w: %s", g.name, ErrProviderNotFound, g.providerName)
	}

	g.schema.Attach(g.serializers)
	if err := g.schema.Check(g.serializers); err != nil {
		return &SchemaInvalidError{Gateway: g.name, Err: err}
	}

	exists, err := p.HasTable(ctx, g.name)
	if err != nil {
		return fmt.Errorf("gateway %s: checking table: %w", g.name, err)
	}
	if !exists {
		if err := p.CreateTable(ctx, g.name); err != nil {
			return fmt.Errorf("gateway %s: creating table: %w", g.name, err)
		}
		logctx.FromContext(ctx).Info("Created settings table",
			slog.String("gateway", g.name),
			slog.String("provider", p.Name()))
	}

	g.provider = p
	g.schema.Lock()
	g.ready.Store(true)
	return nil
}

// Provider returns the provider resolved by Init.
func (g *Gateway) Provider() (provider.Provider, error) {
	if !g.ready.Load() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, g.name)
	}
	return g.provider, nil
}

// Fetch reads the stored document for id. Concurrent fetches of one id share
// a single provider read; each caller still honors its own context.
func (g *Gateway) Fetch(ctx context.Context, id string) (provider.Document, error) {
	p, err := g.Provider()
	if err != nil {
		return nil, err
	}

	ch := g.fetches.DoChan(id, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		doc, err := p.Get(fctx, g.name, id)
		recordFetch(fctx, g.name, err)
		return doc, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		doc, _ := res.Val.(provider.Document)
		return doc, nil
	}
}

// Emit delivers ev to every sink. Sink failures are logged, never returned.
func (g *Gateway) Emit(ctx context.Context, ev settings.Event) {
	for _, sink := range g.sinks {
		if err := sink.Handle(ctx, ev); err != nil {
			sinkErrorCounter.Add(ctx, 1, gatewayAttrs(g.name))
			logctx.FromContext(ctx).Warn("Event sink failed",
				slog.String("gateway", g.name),
				slog.String("event", string(ev.Type)),
				slog.String("id", ev.Settings.ID()),
				slog.Any("error", err))
		}
	}
}

// Get returns the cached settings for id.
func (g *Gateway) Get(id string) (*settings.Settings, bool) {
	if g.host != nil {
		return g.host.Settings(id)
	}
	item := g.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Create builds a new unsynchronized settings instance without caching it.
func (g *Gateway) Create(id string, target any) *settings.Settings {
	return settings.New(g.schema, g, id, target)
}

// Acquire returns the cached settings for id, creating and caching them when
// absent. A reverse proxy never caches; the host owns its instances.
func (g *Gateway) Acquire(id string, target any) *settings.Settings {
	if g.host != nil {
		if s, ok := g.host.Settings(id); ok {
			return s
		}
		return g.Create(id, target)
	}
	if item := g.cache.Get(id); item != nil {
		return item.Value()
	}
	item, _ := g.cache.GetOrSet(id, g.Create(id, target))
	return item.Value()
}

// Evict drops the cached settings for id.
func (g *Gateway) Evict(id string) {
	if g.cache != nil {
		g.cache.Delete(id)
	}
}

// Range calls fn for every known settings instance until fn returns false.
func (g *Gateway) Range(fn func(id string, s *settings.Settings) bool) {
	if g.host != nil {
		g.host.Range(fn)
		return
	}
	g.cache.Range(func(item *ttlcache.Item[string, *settings.Settings]) bool {
		return fn(item.Key(), item.Value())
	})
}

// Len returns the number of known settings instances.
func (g *Gateway) Len() int {
	if g.host != nil {
		n := 0
		g.host.Range(func(string, *settings.Settings) bool {
			n++
			return true
		})
		return n
	}
	return g.cache.Len()
}

// Sync synchronizes the given ids, or every known instance when none are
// given, reading documents in bulk.
func (g *Gateway) Sync(ctx context.Context, ids ...string) error {
	p, err := g.Provider()
	if err != nil {
		return err
	}
	if g.host != nil && len(ids) == 0 {
		return g.syncHost(ctx)
	}
	if len(ids) == 0 {
		ids = g.cache.Keys()
	}

	for _, chunk := range provider.ChunkIDs(ids, provider.MaxChunkSize) {
		docs, err := p.GetAll(ctx, g.name, chunk)
		if err != nil {
			return fmt.Errorf("gateway %s: bulk sync: %w", g.name, err)
		}
		byID := make(map[string]provider.Document, len(docs))
		for _, doc := range docs {
			if id, ok := doc["id"].(string); ok {
				byID[id] = doc
			}
		}
		for _, id := range chunk {
			g.Acquire(id, nil).ApplyDocument(ctx, byID[id])
		}
	}
	return nil
}

func (g *Gateway) syncHost(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(syncConcurrency)
	g.host.Range(func(_ string, s *settings.Settings) bool {
		eg.Go(func() error { return s.ForceSync(egctx) })
		return true
	})
	return eg.Wait()
}

// Close stops the cache and drops every cached instance.
func (g *Gateway) Close() {
	if g.cache == nil {
		return
	}
	if g.ttl > 0 {
		g.cache.Stop()
	}
	g.cache.DeleteAll()
}

func (g *Gateway) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":     g.name,
		"provider": g.providerName,
		"ready":    g.Ready(),
		"schema":   g.schema,
	})
}
