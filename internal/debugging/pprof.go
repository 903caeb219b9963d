// Copyright (C) 2025 CardinalHQ, Inc
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

package debugging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/cardinalhq/settingsgateway/internal/helpers"
)

// RunPprof serves the pprof handlers on port until ctx is done.
// SETTINGS_PPROF_PORT or PPROF_PORT overrides port; a port of zero or less disables the server.
func RunPprof(ctx context.Context, port int) {
	port = PprofPort(port)
	if port <= 0 {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting pprof server", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Pprof server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down pprof server")
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down pprof server", slog.Any("error", err))
		}
	}()
}

// PprofPort resolves the port to serve on.
func PprofPort(configured int) int {
	name, envPort, ok := helpers.FirstEnv("SETTINGS_PPROF_PORT", "PPROF_PORT")
	if !ok {
		return configured
	}

	if envPort == "0" || envPort == "false" || envPort == "off" {
		return 0
	}

	port, err := strconv.Atoi(envPort)
	if err != nil {
		slog.Warn("Invalid pprof port, using configured port", slog.String("env", name), slog.String("value", envPort), slog.Int("port", configured))
		return configured
	}

	return port
}
