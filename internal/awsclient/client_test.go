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

package awsclient

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFor(t *testing.T) {
	mgr := NewManagerFromConfig(aws.Config{Region: "us-east-1"})
	ctx := context.Background()

	client, err := mgr.ClientFor(ctx, BucketConfig{
		Endpoint:             "http://localhost:9000",
		UsePathStyle:         true,
		ChecksumWhenRequired: true,
	})
	require.NoError(t, err)
	require.NotNil(t, client.Client)
	assert.NotNil(t, client.Tracer)

	opts := client.Client.Options()
	assert.Equal(t, "us-east-1", opts.Region)
	assert.True(t, opts.UsePathStyle)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:9000", *opts.BaseEndpoint)
	assert.Equal(t, aws.RequestChecksumCalculationWhenRequired, opts.RequestChecksumCalculation)

	client, err = mgr.ClientFor(ctx, BucketConfig{Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", client.Client.Options().Region)
	assert.Nil(t, client.Client.Options().BaseEndpoint)
}

func TestCredentialsAreCachedPerRegionAndRole(t *testing.T) {
	mgr := NewManagerFromConfig(aws.Config{Region: "us-east-1"})
	ctx := context.Background()

	for _, b := range []BucketConfig{
		{Role: "arn:aws:iam::1:role/a"},
		{Role: "arn:aws:iam::1:role/a"},
		{Region: "eu-west-1"},
		{},
	} {
		_, err := mgr.ClientFor(ctx, b)
		require.NoError(t, err)
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	assert.Len(t, mgr.creds, 3)
	assert.Contains(t, mgr.creds, credentialKey{region: "eu-west-1"})
}
