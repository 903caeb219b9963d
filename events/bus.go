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

package events

import (
	"context"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/settingsgateway/settings"
)

// Handler receives events from a Bus.
type Handler func(ctx context.Context, ev settings.Event)

// Bus delivers events to in-process subscribers, optionally filtered by type.
// Handlers run in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs []subscription
}

type subscription struct {
	id      int
	types   mapset.Set[settings.EventType]
	handler Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for the given event types, or every type when none
// are given. The returned function removes the subscription.
func (b *Bus) Subscribe(h Handler, types ...settings.EventType) func() {
	sub := subscription{handler: h}
	if len(types) > 0 {
		sub.types = mapset.NewThreadUnsafeSet(types...)
	}

	b.mu.Lock()
	sub.id = b.next
	b.next++
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == sub.id })
		b.mu.Unlock()
	}
}

func (b *Bus) Handle(ctx context.Context, ev settings.Event) error {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.types == nil || sub.types.Contains(ev.Type) {
			sub.handler(ctx, ev)
		}
	}
	return nil
}
