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

// Package catalog defines the version catalog: scopes, version records and
// the transactional store contract they are kept in.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrVersionNotFound     = errors.New("schema version not found")

	// ErrConflict means the transaction lost a race for a (scope, version)
	// slot or was aborted by the database to break one. The whole
	// allocation may be retried.
	ErrConflict = errors.New("version allocation conflict")
)

// DocumentInfo is the summary of the document's info object.
type DocumentInfo struct {
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

// Record is one stored schema version.
type Record struct {
	ID                uint
	Ref               Ref
	Version           int
	Location          string
	MediaType         string
	Checksum          string
	ChecksumAlgorithm string
	SizeBytes         int64
	Info              DocumentInfo
	UploadedAt        time.Time
}

// Reader performs non-locking lookups.
type Reader interface {
	FindApplication(ctx context.Context, name string) (uint, error)
	FindService(ctx context.Context, applicationID uint, name string) (uint, error)
	GetLatest(ctx context.Context, ref Ref) (*Record, error)
	GetByVersion(ctx context.Context, ref Ref, version int) (*Record, error)
	// ListAll returns records ascending by version.
	ListAll(ctx context.Context, ref Ref) ([]*Record, error)
}

// Tx is the write side of one catalog transaction.
type Tx interface {
	// EnsureApplication returns the id of the named application, creating
	// it if needed. Concurrent callers for the same name get the same id.
	EnsureApplication(ctx context.Context, name string) (uint, error)
	EnsureService(ctx context.Context, applicationID uint, name string) (uint, error)
	// LockScope blocks other transactions from allocating in ref until
	// this transaction ends.
	LockScope(ctx context.Context, ref Ref) error
	CountVersions(ctx context.Context, ref Ref) (int, error)
	// Insert adds rec, setting its ID. It fails with ErrConflict when the
	// (scope, version) pair is taken.
	Insert(ctx context.Context, rec *Record) error
}

// Store is a durable catalog.
type Store interface {
	Reader
	// Transact runs fn in a single transaction that commits only if fn
	// returns nil.
	Transact(ctx context.Context, fn func(tx Tx) error) error
	HealthCheck(ctx context.Context) error
	Close() error
}
