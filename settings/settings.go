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

// Package settings holds the cached settings tree for one entity: raw values
// mirroring a schema, the update and reset algorithms that validate writes
// through serializers, and the sync lifecycle against the owning gateway.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/schema"
)

// ExistenceStatus tracks whether the cached document is known to be stored.
type ExistenceStatus int

const (
	Unsynchronized ExistenceStatus = iota
	Exists
	NotExists
)

func (s ExistenceStatus) String() string {
	switch s {
	case Unsynchronized:
		return "unsynchronized"
	case Exists:
		return "exists"
	case NotExists:
		return "not_exists"
	}
	return fmt.Sprintf("ExistenceStatus(%d)", int(s))
}

// Gateway is what a Settings needs from the gateway that owns it.
type Gateway interface {
	Name() string
	Schema() *schema.Schema
	// Provider fails until the gateway has been initialized.
	Provider() (provider.Provider, error)
	// Fetch reads the stored document for id, nil when there is none.
	Fetch(ctx context.Context, id string) (provider.Document, error)
	Emit(ctx context.Context, ev Event)
}

type EventType string

const (
	EventSync   EventType = "settingsSync"
	EventCreate EventType = "settingsCreate"
	EventUpdate EventType = "settingsUpdate"
	EventDelete EventType = "settingsDelete"
)

// Event describes a persisted lifecycle transition. For EventDelete,
// Settings is a snapshot taken before the cache was reset.
type Event struct {
	Type     EventType
	Settings *Settings
	// Changes maps each changed path to its new value.
	Changes map[string]any
	Context *EventContext
}

// EventContext carries the details of a write.
type EventContext struct {
	Changes  []Change
	Target   any
	Language string
	Extra    any
}

// Change is one entry's transition produced by a write.
type Change struct {
	Previous any
	Next     any
	Entry    *schema.Entry
}

func (c Change) Path() string { return c.Entry.Path() }

// Settings is the root folder for one entity id.
type Settings struct {
	Folder

	id      string
	gateway Gateway
	target  any

	mu     sync.RWMutex
	status ExistenceStatus
}

// New builds settings for id holding every schema default. gw may be nil for
// detached instances, which can be read but not synchronized or written.
func New(sch *schema.Schema, gw Gateway, id string, target any) *Settings {
	s := &Settings{id: id, gateway: gw, target: target}
	s.Folder = *newFolder(s, &sch.Folder)
	return s
}

func (s *Settings) ID() string       { return s.id }
func (s *Settings) Gateway() Gateway { return s.gateway }
func (s *Settings) Target() any      { return s.target }

func (s *Settings) ExistenceStatus() ExistenceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Sync fetches the stored document unless the instance is already synchronized.
func (s *Settings) Sync(ctx context.Context) error {
	if s.ExistenceStatus() != Unsynchronized {
		return nil
	}
	return s.ForceSync(ctx)
}

// ForceSync fetches the stored document regardless of the current status.
func (s *Settings) ForceSync(ctx context.Context) error {
	if s.gateway == nil {
		return ErrNotReady
	}
	doc, err := s.gateway.Fetch(ctx, s.id)
	if err != nil {
		return fmt.Errorf("syncing settings %s/%s: %w", s.gateway.Name(), s.id, err)
	}
	s.ApplyDocument(ctx, doc)
	return nil
}

// ApplyDocument records the result of a fetch: a document patches the cache
// and marks the instance as existing, nil marks it as not existing and drops
// values cached from a document that has since been deleted.
func (s *Settings) ApplyDocument(ctx context.Context, doc provider.Document) {
	if doc == nil {
		s.mu.Lock()
		if s.status == Exists {
			s.resetValues()
		}
		s.status = NotExists
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.patch(doc)
	s.status = Exists
	s.mu.Unlock()

	if s.gateway != nil {
		s.gateway.Emit(ctx, Event{Type: EventSync, Settings: s})
	}
}

// Destroy deletes the stored document and resets the cache to defaults.
func (s *Settings) Destroy(ctx context.Context) error {
	if err := s.ForceSync(ctx); err != nil {
		return err
	}
	if s.ExistenceStatus() != Exists {
		return nil
	}

	p, err := s.gateway.Provider()
	if err != nil {
		return err
	}
	if err := p.Delete(ctx, s.gateway.Name(), s.id); err != nil {
		return fmt.Errorf("deleting settings %s/%s: %w", s.gateway.Name(), s.id, err)
	}

	snapshot := s.Clone()
	s.mu.Lock()
	s.resetValues()
	s.status = NotExists
	s.mu.Unlock()

	s.gateway.Emit(ctx, Event{Type: EventDelete, Settings: snapshot})
	return nil
}

// Clone returns an independent copy with the same id, target and gateway.
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Settings{id: s.id, gateway: s.gateway, target: s.target, status: s.status}
	c.Folder = *s.Folder.cloneInto(c)
	return c
}

// save persists changes, applies them to the cache and emits the matching event.
func (s *Settings) save(ctx context.Context, changes []Change, o *options) error {
	p, err := s.gateway.Provider()
	if err != nil {
		return err
	}

	records := make([]provider.Change, len(changes))
	flat := make(map[string]any, len(changes))
	for i, c := range changes {
		records[i] = provider.Change{Path: strings.Split(c.Path(), "."), Value: c.Next}
		flat[c.Path()] = docvalue.Clone(c.Next)
	}

	table := s.gateway.Name()
	evType := EventUpdate
	switch s.ExistenceStatus() {
	case Unsynchronized:
		return ErrUnsynchronized
	case NotExists:
		evType = EventCreate
		err = p.Create(ctx, table, s.id, records)
		if errors.Is(err, provider.ErrDocumentExists) {
			evType = EventUpdate
			err = p.Update(ctx, table, s.id, records)
		}
	case Exists:
		err = p.Update(ctx, table, s.id, records)
	}
	if err != nil {
		return fmt.Errorf("persisting settings %s/%s: %w", table, s.id, err)
	}

	s.mu.Lock()
	for _, c := range changes {
		s.setPath(c.Path(), docvalue.Clone(c.Next))
	}
	if s.status == NotExists {
		s.status = Exists
	}
	s.mu.Unlock()

	s.gateway.Emit(ctx, Event{
		Type:     evType,
		Settings: s,
		Changes:  flat,
		Context: &EventContext{
			Changes:  changes,
			Target:   s.target,
			Language: o.language,
			Extra:    o.extra,
		},
	})
	return nil
}
