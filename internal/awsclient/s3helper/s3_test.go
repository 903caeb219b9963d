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

package s3helper

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, S3ErrorIs404(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	assert.True(t, S3ErrorIs404(&types.NotFound{}))
	assert.False(t, S3ErrorIs404(fmt.Errorf("other")))

	assert.True(t, s3ErrorIs412(&smithy.GenericAPIError{Code: "PreconditionFailed"}))
	assert.False(t, s3ErrorIs412(&smithy.GenericAPIError{Code: "AccessDenied"}))
}
