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

package s3

import (
	"context"

	"github.com/cardinalhq/settingsgateway/internal/awsclient"
	"github.com/cardinalhq/settingsgateway/internal/awsclient/s3helper"
)

// ObjectStore is the subset of bucket operations the provider uses.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Put writes data; with ifAbsent set it fails with
	// s3helper.ErrPreconditionFailed when key exists.
	Put(ctx context.Context, key string, data []byte, ifAbsent bool) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// BucketStore is an ObjectStore on a real S3 bucket.
type BucketStore struct {
	client *awsclient.S3Client
	bucket string
}

func NewBucketStore(client *awsclient.S3Client, bucket string) *BucketStore {
	return &BucketStore{client: client, bucket: bucket}
}

func (b *BucketStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s3helper.GetObject(ctx, b.client, b.bucket, key)
}

func (b *BucketStore) Exists(ctx context.Context, key string) (bool, error) {
	return s3helper.HeadObject(ctx, b.client, b.bucket, key)
}

func (b *BucketStore) Put(ctx context.Context, key string, data []byte, ifAbsent bool) error {
	return s3helper.PutObject(ctx, b.client, b.bucket, key, "application/json", data, ifAbsent)
}

func (b *BucketStore) Delete(ctx context.Context, key string) error {
	return s3helper.DeleteS3Object(ctx, b.client, b.bucket, key)
}

func (b *BucketStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s3helper.ListKeys(ctx, b.client, b.bucket, prefix)
}
