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

// Package settingsapi serves the gateways of a driver over a JSON HTTP API.
package settingsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/internal/apikeys"
	"github.com/cardinalhq/settingsgateway/settings"
)

const maxBodyBytes = 1 << 20

var tracer = otel.Tracer("github.com/cardinalhq/settingsgateway/settingsapi")

type Service struct {
	driver *gateway.Driver
	keys   apikeys.Provider
	port   int
}

func NewService(driver *gateway.Driver, keys apikeys.Provider, port int) *Service {
	if port == 0 {
		port = 8080
	}
	return &Service{driver: driver, keys: keys, port: port}
}

// Handler returns the routed API with request ids attached.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/gateways", s.apiKeyMiddleware(false, s.handleListGateways))
	mux.HandleFunc("GET /api/v1/gateways/{gateway}/schema", s.apiKeyMiddleware(false, s.handleSchema))
	mux.HandleFunc("GET /api/v1/gateways/{gateway}/settings/{id}", s.apiKeyMiddleware(false, s.handleGet))
	mux.HandleFunc("PATCH /api/v1/gateways/{gateway}/settings/{id}", s.apiKeyMiddleware(true, s.handleUpdate))
	mux.HandleFunc("DELETE /api/v1/gateways/{gateway}/settings/{id}", s.apiKeyMiddleware(true, s.handleDelete))
	mux.HandleFunc("POST /api/v1/gateways/{gateway}/settings/{id}/reset", s.apiKeyMiddleware(true, s.handleReset))
	mux.HandleFunc("GET /healthz", s.healthCheck)
	return requestIDMiddleware(mux)
}

func (s *Service) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(s.Handler(), "settingsapi"),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting settings API service", "addr", addr, "gateways", s.driver.Names())

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (s *Service) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GatewaySummary is one entry of the gateway listing.
type GatewaySummary struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Ready    bool   `json:"ready"`
	Cached   int    `json:"cached"`
}

// SettingsResponse is returned by every endpoint that reads or writes a
// settings document.
type SettingsResponse struct {
	Gateway  string          `json:"gateway"`
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Settings map[string]any  `json:"settings"`
	Changes  []ChangeSummary `json:"changes,omitempty"`
}

type ChangeSummary struct {
	Path     string `json:"path"`
	Previous any    `json:"previous"`
	Next     any    `json:"next"`
}

// UpdateRequest is the PATCH body. Either Path names a single key written
// with Value, or Values holds a nested object of keys to write.
type UpdateRequest struct {
	Path     string         `json:"path,omitempty"`
	Value    any            `json:"value,omitempty"`
	Values   map[string]any `json:"values,omitempty"`
	Action   string         `json:"action,omitempty"`
	Index    *int           `json:"index,omitempty"`
	Language string         `json:"language,omitempty"`
}

// ResetRequest is the reset body. Omitted or null paths reset every key.
type ResetRequest struct {
	Paths    []string `json:"paths"`
	Language string   `json:"language,omitempty"`
}

func (s *Service) handleListGateways(w http.ResponseWriter, r *http.Request) {
	key, _ := APIKeyFromContext(r.Context())
	out := []GatewaySummary{}
	for _, name := range s.driver.Names() {
		if key != nil && !key.Allows(name, false) {
			continue
		}
		g, ok := s.driver.Get(name)
		if !ok {
			continue
		}
		out = append(out, GatewaySummary{
			Name:     g.Name(),
			Provider: g.ProviderName(),
			Ready:    g.Ready(),
			Cached:   g.Len(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleSchema(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gatewayFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g.Schema())
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "settings.api.get")
	defer span.End()

	st, ok := s.synced(ctx, w, r, span)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, response(st, nil))
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "settings.api.update")
	defer span.End()

	var body UpdateRequest
	if !readBody(w, r, &body) {
		span.SetStatus(codes.Error, "invalid payload")
		return
	}
	if body.Path == "" && len(body.Values) == 0 {
		writeAPIError(w, http.StatusBadRequest, ValidationFailed, "either path or values is required")
		return
	}
	opts, err := updateOptions(body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, ValidationFailed, err.Error())
		return
	}

	st, ok := s.synced(ctx, w, r, span)
	if !ok {
		return
	}

	var changes []settings.Change
	if body.Path != "" {
		changes, err = st.Update(ctx, body.Path, body.Value, opts...)
	} else {
		changes, err = st.UpdateMap(ctx, body.Values, opts...)
	}
	if err != nil {
		fail(span, err)
		writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int("changes", len(changes)))
	writeJSON(w, http.StatusOK, response(st, changes))
}

func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "settings.api.reset")
	defer span.End()

	var body ResetRequest
	if r.ContentLength != 0 && !readBody(w, r, &body) {
		span.SetStatus(codes.Error, "invalid payload")
		return
	}

	st, ok := s.synced(ctx, w, r, span)
	if !ok {
		return
	}

	opts := []settings.Option{settings.OnlyConfigurable()}
	if body.Language != "" {
		opts = append(opts, settings.WithLanguage(body.Language))
	}
	changes, err := st.Reset(ctx, body.Paths, opts...)
	if err != nil {
		fail(span, err)
		writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int("changes", len(changes)))
	writeJSON(w, http.StatusOK, response(st, changes))
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "settings.api.delete")
	defer span.End()

	g, ok := s.gatewayFor(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := g.Acquire(id, nil).Destroy(ctx); err != nil {
		fail(span, err)
		writeError(w, r, err)
		return
	}
	g.Evict(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) gatewayFor(w http.ResponseWriter, r *http.Request) (*gateway.Gateway, bool) {
	name := r.PathValue("gateway")
	g, ok := s.driver.Get(name)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", gateway.ErrGatewayNotFound, name))
		return nil, false
	}
	return g, true
}

// synced returns the cached settings for the routed id after syncing them.
func (s *Service) synced(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span) (*settings.Settings, bool) {
	g, ok := s.gatewayFor(w, r)
	if !ok {
		span.SetStatus(codes.Error, "gateway not found")
		return nil, false
	}
	st := g.Acquire(r.PathValue("id"), nil)
	if err := st.Sync(ctx); err != nil {
		fail(span, err)
		writeError(w, r, err)
		return nil, false
	}
	return st, true
}

func (s *Service) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	return tracer.Start(r.Context(), name, trace.WithAttributes(
		attribute.String("gateway", r.PathValue("gateway")),
		attribute.String("settings.id", r.PathValue("id")),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func updateOptions(body UpdateRequest) ([]settings.Option, error) {
	opts := []settings.Option{settings.OnlyConfigurable()}
	switch action := settings.ArrayAction(body.Action); action {
	case "":
	case settings.ArrayAuto, settings.ArrayAdd, settings.ArrayRemove, settings.ArrayOverwrite:
		opts = append(opts, settings.WithArrayAction(action))
	default:
		return nil, fmt.Errorf("unknown array action %q", body.Action)
	}
	if body.Index != nil {
		opts = append(opts, settings.WithArrayIndex(*body.Index))
	}
	if body.Language != "" {
		opts = append(opts, settings.WithLanguage(body.Language))
	}
	return opts, nil
}

func response(st *settings.Settings, changes []settings.Change) SettingsResponse {
	resp := SettingsResponse{
		Gateway:  st.Gateway().Name(),
		ID:       st.ID(),
		Status:   st.ExistenceStatus().String(),
		Settings: st.ToMap(),
	}
	for _, c := range changes {
		resp.Changes = append(resp.Changes, ChangeSummary{
			Path:     c.Path(),
			Previous: c.Previous,
			Next:     c.Next,
		})
	}
	return resp
}

func readBody(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			writeAPIError(w, http.StatusBadRequest, InvalidJSON, "request body is empty")
			return false
		}
		writeAPIError(w, http.StatusBadRequest, InvalidJSON, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}
