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

// Package events turns settings lifecycle events into log lines, metrics and
// published messages.
package events

import (
	"time"

	"github.com/cardinalhq/settingsgateway/settings"
)

// Record is the serialized form of a settings event.
type Record struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Gateway    string         `json:"gateway"`
	SettingsID string         `json:"settings_id"`
	Status     string         `json:"status"`
	Changes    map[string]any `json:"changes,omitempty"`
	Previous   map[string]any `json:"previous,omitempty"`
	Language   string         `json:"language,omitempty"`
	Time       time.Time      `json:"time"`
}

// NewRecord flattens ev. For delete events the snapshot of the removed
// document is carried as Previous.
func NewRecord(id string, ev settings.Event, now time.Time) Record {
	r := Record{
		ID:      id,
		Type:    string(ev.Type),
		Changes: ev.Changes,
		Time:    now.UTC(),
	}
	if s := ev.Settings; s != nil {
		r.SettingsID = s.ID()
		r.Status = s.ExistenceStatus().String()
		if gw := s.Gateway(); gw != nil {
			r.Gateway = gw.Name()
		}
		if ev.Type == settings.EventDelete {
			r.Previous = s.ToMap()
		}
	}
	if ev.Context != nil {
		r.Language = ev.Context.Language
		if len(ev.Context.Changes) > 0 {
			r.Previous = make(map[string]any, len(ev.Context.Changes))
			for _, c := range ev.Context.Changes {
				r.Previous[c.Path()] = c.Previous
			}
		}
	}
	return r
}
