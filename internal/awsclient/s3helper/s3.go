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

// Package s3helper wraps the small set of object operations the settings
// store needs, each traced through the client's tracer.
package s3helper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/settingsgateway/internal/awsclient"
)

// ErrPreconditionFailed is returned when a conditional write finds an
// existing object.
var ErrPreconditionFailed = errors.New("object already exists")

func S3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	if errors.As(err, &noKeyErr) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

func s3ErrorIs412(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

// GetObject returns the object's bytes, or nil when it does not exist.
func GetObject(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID string) ([]byte, error) {
	ctx, span := s3client.Tracer.Start(ctx, "s3helper.GetObject",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
			attribute.String("objectID", objectID),
		),
	)
	defer span.End()

	out, err := s3client.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketID),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if S3ErrorIs404(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", bucketID, objectID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucketID, objectID, err)
	}
	return data, nil
}

// HeadObject reports whether the object exists.
func HeadObject(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID string) (bool, error) {
	_, err := s3client.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketID),
		Key:    aws.String(objectID),
	})
	if err != nil {
		if S3ErrorIs404(err) {
			return false, nil
		}
		return false, fmt.Errorf("head %s/%s: %w", bucketID, objectID, err)
	}
	return true, nil
}

// PutObject uploads data. With ifAbsent set the write fails with
// ErrPreconditionFailed when the key already exists.
func PutObject(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID, contentType string, data []byte, ifAbsent bool) error {
	ctx, span := s3client.Tracer.Start(ctx, "s3helper.PutObject",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
			attribute.String("objectID", objectID),
		),
	)
	defer span.End()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucketID),
		Key:         aws.String(objectID),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"writer": "settingsgateway",
		},
	}
	if ifAbsent {
		input.IfNoneMatch = aws.String("*")
	}

	_, err := manager.NewUploader(s3client.Client).Upload(ctx, input)
	if err != nil {
		if s3ErrorIs412(err) {
			return fmt.Errorf("%w: %s/%s", ErrPreconditionFailed, bucketID, objectID)
		}
		return fmt.Errorf("failed to upload S3 object: %w", err)
	}
	return nil
}

func DeleteS3Object(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID string) error {
	var span trace.Span
	ctx, span = s3client.Tracer.Start(ctx, "s3helper.DeleteS3Object",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
		),
	)
	defer span.End()

	_, err := s3client.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketID),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}
	return nil
}

// ListKeys returns every key under prefix.
func ListKeys(ctx context.Context, s3client *awsclient.S3Client, bucketID, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s3client.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketID),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucketID, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
