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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/serializer"
	"github.com/cardinalhq/settingsgateway/settings"
)

type APIErrorCode string

const (
	InvalidJSON           APIErrorCode = "INVALID_JSON"
	ValidationFailed      APIErrorCode = "VALIDATION_FAILED"
	ErrUnknownKey         APIErrorCode = "UNKNOWN_KEY"
	ErrNotConfigurable    APIErrorCode = "NOT_CONFIGURABLE"
	ErrInternalError      APIErrorCode = "INTERNAL_ERROR"
	ErrClientClosed       APIErrorCode = "CLIENT_CLOSED"
	ErrDeadlineExceeded   APIErrorCode = "DEADLINE_EXCEEDED"
	ErrServiceUnavailable APIErrorCode = "SERVICE_UNAVAILABLE"
	ErrForbidden          APIErrorCode = "FORBIDDEN"
	ErrUnauthorized       APIErrorCode = "UNAUTHORIZED"
	ErrNotFound           APIErrorCode = "NOT_FOUND"
	ErrConflict           APIErrorCode = "CONFLICT"
)

type APIError struct {
	Status  int          `json:"status"`
	Code    APIErrorCode `json:"code"`
	Message string       `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, code APIErrorCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Status:  status,
		Code:    code,
		Message: msg,
	})
}

// Non-standard but used by many proxies for client disconnects.
const statusClientClosedRequest = 499

func statusAndCodeForError(err error) (int, APIErrorCode) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ErrClientClosed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrDeadlineExceeded
	case errors.Is(err, gateway.ErrGatewayNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, settings.ErrKeyNotFound):
		return http.StatusBadRequest, ErrUnknownKey
	case errors.Is(err, settings.ErrKeyNotConfigurable):
		return http.StatusForbidden, ErrNotConfigurable
	case errors.Is(err, settings.ErrIndexOutOfRange),
		errors.Is(err, settings.ErrDuplicateValue),
		errors.Is(err, settings.ErrMissingValue),
		errors.Is(err, settings.ErrFilteredValue),
		errors.Is(err, serializer.ErrInvalidValue),
		errors.Is(err, serializer.ErrOutOfBounds):
		return http.StatusUnprocessableEntity, ValidationFailed
	case errors.Is(err, provider.ErrDocumentExists):
		return http.StatusConflict, ErrConflict
	case errors.Is(err, gateway.ErrNotInitialized),
		errors.Is(err, gateway.ErrProviderNotFound),
		errors.Is(err, settings.ErrNotReady):
		return http.StatusServiceUnavailable, ErrServiceUnavailable
	}
	return http.StatusInternalServerError, ErrInternalError
}

// writeError maps err to a response. Internal failures are logged and
// reported without their detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusAndCodeForError(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		loggerFor(r).Error("Request failed", "error", err, "status", status)
		msg = http.StatusText(status)
	}
	writeAPIError(w, status, code, msg)
}
