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

package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStarting, "starting"},
		{StatusHealthy, "healthy"},
		{StatusUnhealthy, "unhealthy"},
		{Status(999), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("SETTINGS_HEALTH_CHECK_PORT", "")
	t.Setenv("HEALTH_CHECK_PORT", "")
	assert.Equal(t, 8090, GetConfigFromEnv().Port)

	t.Setenv("HEALTH_CHECK_PORT", "9090")
	assert.Equal(t, 9090, GetConfigFromEnv().Port)

	t.Setenv("SETTINGS_HEALTH_CHECK_PORT", "9191")
	assert.Equal(t, 9191, GetConfigFromEnv().Port)

	t.Setenv("SETTINGS_HEALTH_CHECK_PORT", "invalid")
	t.Setenv("HEALTH_CHECK_PORT", "70000")
	assert.Equal(t, 8090, GetConfigFromEnv().Port)
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(Config{})
	assert.Equal(t, 8090, s.cfg.Port)
	assert.Equal(t, defaultProbeTimeout, s.cfg.ProbeTimeout)
	assert.Equal(t, StatusStarting, s.GetStatus())
}

func get(t *testing.T, h http.Handler, path string) (int, Response) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return rr.Code, resp
}

func TestHealthEndpoints(t *testing.T) {
	s := NewServer(Config{})
	h := s.Handler()

	tests := []struct {
		name     string
		status   Status
		endpoint string
		code     int
	}{
		{"healthz starting", StatusStarting, "/healthz", http.StatusServiceUnavailable},
		{"healthz healthy", StatusHealthy, "/healthz", http.StatusOK},
		{"healthz unhealthy", StatusUnhealthy, "/healthz", http.StatusServiceUnavailable},
		{"readyz starting", StatusStarting, "/readyz", http.StatusServiceUnavailable},
		{"readyz healthy", StatusHealthy, "/readyz", http.StatusOK},
		{"livez starting", StatusStarting, "/livez", http.StatusOK},
		{"livez unhealthy", StatusUnhealthy, "/livez", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetStatus(tt.status)
			code, resp := get(t, h, tt.endpoint)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.code == http.StatusOK, resp.Healthy)
			assert.Equal(t, tt.status.String(), resp.Status)
		})
	}
}

func TestReadinessProbes(t *testing.T) {
	s := NewServer(Config{})
	s.SetStatus(StatusHealthy)

	failing := errors.New("table missing")
	s.AddProbe("provider", func(context.Context) error { return nil })
	s.AddProbe("gateways", func(context.Context) error { return failing })

	code, resp := get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"provider": "ok", "gateways": "table missing"}, resp.Probes)

	s.RemoveProbe("gateways")
	ready, probes := s.Ready(context.Background())
	assert.True(t, ready)
	assert.Equal(t, map[string]string{"provider": "ok"}, probes)
}

func TestProbeTimeout(t *testing.T) {
	s := NewServer(Config{ProbeTimeout: 10 * time.Millisecond})
	s.SetStatus(StatusHealthy)
	s.AddProbe("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ready, probes := s.Ready(context.Background())
	assert.False(t, ready)
	assert.Contains(t, probes["slow"], "deadline exceeded")
}
