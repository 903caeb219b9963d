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

package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/serializer"
)

// Driver is a named collection of gateways sharing provider and serializer
// registries and event sinks.
type Driver struct {
	providers   *provider.Registry
	serializers *serializer.Registry
	sinks       []EventSink
	ttl         time.Duration

	mu       sync.RWMutex
	gateways map[string]*Gateway
}

type DriverOption func(*Driver)

func WithDriverProviders(r *provider.Registry) DriverOption {
	return func(d *Driver) { d.providers = r }
}

func WithDriverSerializers(r *serializer.Registry) DriverOption {
	return func(d *Driver) { d.serializers = r }
}

func WithDriverSinks(sinks ...EventSink) DriverOption {
	return func(d *Driver) { d.sinks = append(d.sinks, sinks...) }
}

func WithDriverIdleTTL(ttl time.Duration) DriverOption {
	return func(d *Driver) { d.ttl = ttl }
}

func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		providers: provider.Default,
		gateways:  make(map[string]*Gateway),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.serializers == nil {
		d.serializers = serializer.NewDefaultRegistry()
	}
	return d
}

func (d *Driver) Providers() *provider.Registry     { return d.providers }
func (d *Driver) Serializers() *serializer.Registry { return d.serializers }

func (d *Driver) defaults(opts []Option) []Option {
	base := []Option{
		WithProviders(d.providers),
		WithSerializers(d.serializers),
		WithSinks(d.sinks...),
		WithIdleTTL(d.ttl),
	}
	return append(base, opts...)
}

// Register creates and registers a cache-owning gateway.
func (d *Driver) Register(name string, sch *schema.Schema, providerName string, opts ...Option) (*Gateway, error) {
	return d.add(New(name, sch, providerName, d.defaults(opts)...))
}

// RegisterReverseProxy creates and registers a gateway over host entities.
func (d *Driver) RegisterReverseProxy(name string, sch *schema.Schema, providerName string, host Host, opts ...Option) (*Gateway, error) {
	return d.add(NewReverseProxy(name, sch, providerName, host, d.defaults(opts)...))
}

func (d *Driver) add(g *Gateway) (*Gateway, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.gateways[g.Name()]; ok {
		g.Close()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateGateway, g.Name())
	}
	d.gateways[g.Name()] = g
	return g, nil
}

func (d *Driver) Get(name string) (*Gateway, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.gateways[name]
	return g, ok
}

// Names returns the registered gateway names in sorted order.
func (d *Driver) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.gateways))
	for name := range d.gateways {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (d *Driver) all() []*Gateway {
	names := d.Names()
	out := make([]*Gateway, 0, len(names))
	for _, name := range names {
		if g, ok := d.Get(name); ok {
			out = append(out, g)
		}
	}
	return out
}

// Init initializes every gateway not yet ready and reports every failure.
func (d *Driver) Init(ctx context.Context) error {
	var errs []error
	for _, g := range d.all() {
		if g.Ready() {
			continue
		}
		if err := g.Init(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sync synchronizes every gateway concurrently.
func (d *Driver) Sync(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	for _, g := range d.all() {
		eg.Go(func() error { return g.Sync(egctx) })
	}
	return eg.Wait()
}

// Close closes every gateway and every registered provider.
func (d *Driver) Close() error {
	for _, g := range d.all() {
		g.Close()
	}
	return d.providers.Close()
}
