/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/amtp-protocol/specregistry/internal/config"
)

// S3Store keeps artifacts in an S3-compatible bucket. Locations have the
// form s3://<bucket>/<object key>.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store connects to the endpoint and creates the bucket if missing.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	endpoint := cfg.Endpoint
	secure := cfg.Secure
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			secure = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) Location(key string) string {
	return "s3://" + s.bucket + "/" + joinPrefix(s.prefix, key)
}

func (s *S3Store) Write(ctx context.Context, key, mediaType string, data []byte) (string, error) {
	objectKey := joinPrefix(s.prefix, key)
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}
	return s.Location(key), nil
}

func (s *S3Store) Read(ctx context.Context, location string) ([]byte, error) {
	objectKey, err := objectKeyFromLocation("s3", s.bucket, location)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3Error(objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyS3Error(objectKey, err)
	}
	return data, nil
}

func (s *S3Store) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("s3 bucket %s does not exist", s.bucket)
	}
	return nil
}

func classifyS3Error(objectKey string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, objectKey)
	}
	return fmt.Errorf("failed to get object %s: %w", objectKey, err)
}

func joinPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// objectKeyFromLocation parses <scheme>://<bucket>/<key>.
func objectKeyFromLocation(scheme, bucket, location string) (string, error) {
	want := scheme + "://" + bucket + "/"
	if !strings.HasPrefix(location, want) || len(location) == len(want) {
		return "", fmt.Errorf("artifact location %q is not in %s%s", location, scheme+"://", bucket)
	}
	return strings.TrimPrefix(location, want), nil
}
