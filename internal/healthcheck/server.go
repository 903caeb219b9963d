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

// Package healthcheck serves liveness and readiness probes on a side port.
// Readiness combines the process status with named probes that are run on
// every /readyz request.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cardinalhq/settingsgateway/internal/helpers"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Probe reports nil when the dependency it checks is usable.
type Probe func(ctx context.Context) error

type Response struct {
	Healthy bool              `json:"healthy"`
	Status  string            `json:"status"`
	Probes  map[string]string `json:"probes,omitempty"`
}

type Config struct {
	Port         int
	ProbeTimeout time.Duration
}

const (
	defaultPort         = 8090
	defaultProbeTimeout = 2 * time.Second
)

// GetConfigFromEnv reads SETTINGS_HEALTH_CHECK_PORT, falling back to
// HEALTH_CHECK_PORT, and SETTINGS_HEALTH_PROBE_TIMEOUT.
func GetConfigFromEnv() Config {
	cfg := Config{
		Port:         defaultPort,
		ProbeTimeout: helpers.GetDurationEnv("SETTINGS_HEALTH_PROBE_TIMEOUT", defaultProbeTimeout),
	}
	if p, ok := helpers.GetPortEnv("SETTINGS_HEALTH_CHECK_PORT", "HEALTH_CHECK_PORT"); ok {
		cfg.Port = p
	}
	return cfg
}

type Server struct {
	cfg    Config
	status atomic.Int32
	server *http.Server

	mu     sync.RWMutex
	probes map[string]Probe
}

func NewServer(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Server{cfg: cfg, probes: make(map[string]Probe)}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

// AddProbe registers a named readiness probe, replacing any with that name.
func (s *Server) AddProbe(name string, probe Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = probe
}

func (s *Server) RemoveProbe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.probes, name)
}

// Ready runs every probe and reports whether the server is healthy and all
// probes passed, along with each failing probe's error.
func (s *Server) Ready(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	probes := make(map[string]Probe, len(s.probes))
	for k, v := range s.probes {
		probes[k] = v
	}
	s.mu.RUnlock()
	slices.Sort(names)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	ready := s.GetStatus() == StatusHealthy
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := probes[name](ctx); err != nil {
			ready = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return ready, results
}

// Handler returns the probe routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthzHandler)
	mux.HandleFunc("GET /readyz", s.readyzHandler)
	mux.HandleFunc("GET /livez", s.livezHandler)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Starting health check server", slog.Int("port", s.cfg.Port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health check server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	writeResponse(w, Response{Healthy: status == StatusHealthy, Status: status.String()})
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ready, probes := s.Ready(r.Context())
	writeResponse(w, Response{Healthy: ready, Status: s.GetStatus().String(), Probes: probes})
}

func (s *Server) livezHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	writeResponse(w, Response{Healthy: status != StatusUnhealthy, Status: status.String()})
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
