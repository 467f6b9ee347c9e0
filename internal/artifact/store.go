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

// Package artifact stores the raw bytes of uploaded documents. Each backend
// returns an opaque location string at write time which the catalog keeps
// and later hands back to Read.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amtp-protocol/specregistry/internal/config"
)

// ErrNotFound is returned by Read when the location holds no artifact.
var ErrNotFound = errors.New("artifact not found")

// Store persists document bytes.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Location returns where Write puts key, without touching the backend.
	Location(key string) string
	// Write stores data under key and returns Location(key). Data is
	// stored byte-for-byte and replaces any previous object at key.
	Write(ctx context.Context, key, mediaType string, data []byte) (string, error)
	// Read returns the bytes at a location previously returned by Write.
	Read(ctx context.Context, location string) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "filesystem":
		store, err = NewFileStore(cfg.Filesystem.BaseDir)
	case "s3":
		store, err = NewS3Store(ctx, cfg.S3)
	case "gcs":
		store, err = NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported artifact backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
