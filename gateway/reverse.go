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
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/settings"
)

// Host is a collection of entities that each own a settings instance.
type Host interface {
	// Settings returns the settings attached to the entity id.
	Settings(id string) (*settings.Settings, bool)
	// Range calls fn for every entity until fn returns false.
	Range(fn func(id string, s *settings.Settings) bool)
}

// NewReverseProxy returns a gateway whose settings live on host entities.
// The host calls OnEntityCreated for every entity it constructs.
func NewReverseProxy(name string, sch *schema.Schema, providerName string, host Host, opts ...Option) *Gateway {
	g := newGateway(name, sch, providerName, opts)
	g.host = host
	return g
}

// OnEntityCreated returns the settings a new host entity should own.
func (g *Gateway) OnEntityCreated(id string, target any) *settings.Settings {
	return g.Create(id, target)
}
