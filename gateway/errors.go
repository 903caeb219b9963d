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
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrAlreadyInitialized = errors.New("gateway already initialized")
	ErrNotInitialized     = errors.New("gateway not initialized")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrDuplicateGateway   = errors.New("gateway already registered")
	ErrGatewayNotFound    = errors.New("gateway not found")
	ErrSchemaInvalid      = errors.New("schema is invalid")
)

// SchemaInvalidError lists every schema violation found while initializing
// a gateway.
type SchemaInvalidError struct {
	Gateway string
	Err     error
}

func (e *SchemaInvalidError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Gateway, ErrSchemaInvalid, e.Err)
}

func (e *SchemaInvalidError) Unwrap() []error { return []error{ErrSchemaInvalid, e.Err} }

// Violations returns the individual violations.
func (e *SchemaInvalidError) Violations() []error {
	var merr *multierror.Error
	if errors.As(e.Err, &merr) {
		var out []error
		for _, err := range merr.Errors {
			var nested *multierror.Error
			if errors.As(err, &nested) {
				out = append(out, nested.Errors...)
				continue
			}
			out = append(out, err)
		}
		return out
	}
	return []error{e.Err}
}
