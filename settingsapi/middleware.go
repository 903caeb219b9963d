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

package settingsapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cardinalhq/settingsgateway/internal/apikeys"
	"github.com/cardinalhq/settingsgateway/internal/idgen"
	"github.com/cardinalhq/settingsgateway/internal/logctx"
)

const (
	apiKeyHeader    = "x-settings-api-key"
	requestIDHeader = "x-request-id"
)

type contextKey struct{}

var apiKeyKey = contextKey{}

// WithAPIKey returns a new context with the authenticated key stored in it.
func WithAPIKey(ctx context.Context, key *apikeys.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, key)
}

// APIKeyFromContext returns the key that authenticated the request, if any.
func APIKeyFromContext(ctx context.Context) (*apikeys.APIKey, bool) {
	key, ok := ctx.Value(apiKeyKey).(*apikeys.APIKey)
	return key, ok
}

// requestIDMiddleware tags every request with a short id, echoed in the
// response and carried by the request logger.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" {
			id = idgen.ShortID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logctx.With(req.Context(),
			slog.String("request_id", id),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// apiKeyMiddleware validates the x-settings-api-key header against the
// gateway named in the route. When no keys are configured the API is open.
func (s *Service) apiKeyMiddleware(write bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if s.keys == nil || !s.keys.Enabled() {
			next(w, req)
			return
		}

		apiKey := req.Header.Get(apiKeyHeader)
		if apiKey == "" {
			writeAPIError(w, http.StatusUnauthorized, ErrUnauthorized, "authentication required: "+apiKeyHeader+" header not provided")
			return
		}

		key, err := s.keys.Lookup(req.Context(), apiKey)
		if err != nil {
			if !errors.Is(err, apikeys.ErrUnknownKey) {
				loggerFor(req).Error("API key validation failed", slog.Any("error", err))
			}
			writeAPIError(w, http.StatusUnauthorized, ErrUnauthorized, "invalid API key")
			return
		}

		if gw := req.PathValue("gateway"); gw != "" && !key.Allows(gw, write) {
			writeAPIError(w, http.StatusForbidden, ErrForbidden, "API key is not allowed to access this gateway")
			return
		}

		ctx := logctx.With(WithAPIKey(req.Context(), key), slog.String("api_key", key.Name))
		next(w, req.WithContext(ctx))
	}
}

func loggerFor(req *http.Request) *slog.Logger {
	return logctx.FromContext(req.Context())
}
