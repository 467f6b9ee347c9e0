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

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amtp-protocol/specregistry/internal/catalog"
)

type serviceKey struct {
	applicationID uint
	name          string
}

// MemoryStorage implements catalog.Store using in-memory maps.
//
// Transactions stage their writes and apply them at commit under the write
// lock. LockScope does not block; two transactions that allocate the same
// (scope, version) both proceed and the later commit fails with
// catalog.ErrConflict.
type MemoryStorage struct {
	mu           sync.RWMutex
	nextID       uint
	applications map[string]uint
	services     map[serviceKey]uint
	versions     map[catalog.Ref][]*catalog.Record
}

var _ catalog.Store = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		applications: make(map[string]uint),
		services:     make(map[serviceKey]uint),
		versions:     make(map[catalog.Ref][]*catalog.Record),
	}
}

func (ms *MemoryStorage) allocateID() uint {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.nextID++
	return ms.nextID
}

// Transact stages fn's writes and applies them only if fn succeeds.
func (ms *MemoryStorage) Transact(ctx context.Context, fn func(tx catalog.Tx) error) error {
	tx := &memoryTx{
		ms:       ms,
		apps:     make(map[string]uint),
		services: make(map[serviceKey]uint),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	return ms.commit(tx)
}

func (ms *MemoryStorage) commit(tx *memoryTx) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Names created concurrently by another transaction collapse onto the
	// committed id.
	remap := make(map[uint]uint)
	newApps := make(map[string]uint)
	for name, stagedID := range tx.apps {
		if id, ok := ms.applications[name]; ok {
			remap[stagedID] = id
		} else {
			newApps[name] = stagedID
		}
	}
	resolve := func(id uint) uint {
		if mapped, ok := remap[id]; ok {
			return mapped
		}
		return id
	}

	newServices := make(map[serviceKey]uint)
	for key, stagedID := range tx.services {
		key.applicationID = resolve(key.applicationID)
		if id, ok := ms.services[key]; ok {
			remap[stagedID] = id
		} else {
			newServices[key] = stagedID
		}
	}

	inserts := make([]*catalog.Record, 0, len(tx.inserts))
	for _, staged := range tx.inserts {
		rec := *staged
		rec.Ref = catalog.Ref{ApplicationID: resolve(rec.Ref.ApplicationID), ServiceID: resolve(rec.Ref.ServiceID)}
		for _, existing := range ms.versions[rec.Ref] {
			if existing.Version == rec.Version {
				return fmt.Errorf("commit schema version %d: %w", rec.Version, catalog.ErrConflict)
			}
		}
		inserts = append(inserts, &rec)
	}

	for name, id := range newApps {
		ms.applications[name] = id
	}
	for key, id := range newServices {
		ms.services[key] = id
	}
	for _, rec := range inserts {
		series := append(ms.versions[rec.Ref], rec)
		sort.Slice(series, func(i, j int) bool { return series[i].Version < series[j].Version })
		ms.versions[rec.Ref] = series
	}
	return nil
}

// FindApplication returns the id of the named application.
func (ms *MemoryStorage) FindApplication(ctx context.Context, name string) (uint, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	id, ok := ms.applications[name]
	if !ok {
		return 0, catalog.ErrApplicationNotFound
	}
	return id, nil
}

// FindService returns the id of the named service under applicationID.
func (ms *MemoryStorage) FindService(ctx context.Context, applicationID uint, name string) (uint, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	id, ok := ms.services[serviceKey{applicationID: applicationID, name: name}]
	if !ok {
		return 0, catalog.ErrServiceNotFound
	}
	return id, nil
}

// GetLatest returns the highest version of the scope.
func (ms *MemoryStorage) GetLatest(ctx context.Context, ref catalog.Ref) (*catalog.Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	series := ms.versions[ref]
	if len(series) == 0 {
		return nil, catalog.ErrVersionNotFound
	}
	rec := *series[len(series)-1]
	return &rec, nil
}

// GetByVersion returns one version of the scope.
func (ms *MemoryStorage) GetByVersion(ctx context.Context, ref catalog.Ref, version int) (*catalog.Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, existing := range ms.versions[ref] {
		if existing.Version == version {
			rec := *existing
			return &rec, nil
		}
	}
	return nil, catalog.ErrVersionNotFound
}

// ListAll returns every version of the scope, oldest first.
func (ms *MemoryStorage) ListAll(ctx context.Context, ref catalog.Ref) ([]*catalog.Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	series := ms.versions[ref]
	records := make([]*catalog.Record, 0, len(series))
	for _, existing := range series {
		rec := *existing
		records = append(records, &rec)
	}
	return records, nil
}

// Close is a no-op for memory storage
func (ms *MemoryStorage) Close() error {
	return nil
}

// HealthCheck always succeeds for memory storage
func (ms *MemoryStorage) HealthCheck(ctx context.Context) error {
	return nil
}

type memoryTx struct {
	ms       *MemoryStorage
	apps     map[string]uint
	services map[serviceKey]uint
	inserts  []*catalog.Record
}

func (t *memoryTx) EnsureApplication(ctx context.Context, name string) (uint, error) {
	if id, err := t.ms.FindApplication(ctx, name); err == nil {
		return id, nil
	}
	if id, ok := t.apps[name]; ok {
		return id, nil
	}
	id := t.ms.allocateID()
	t.apps[name] = id
	return id, nil
}

func (t *memoryTx) EnsureService(ctx context.Context, applicationID uint, name string) (uint, error) {
	if id, err := t.ms.FindService(ctx, applicationID, name); err == nil {
		return id, nil
	}
	key := serviceKey{applicationID: applicationID, name: name}
	if id, ok := t.services[key]; ok {
		return id, nil
	}
	id := t.ms.allocateID()
	t.services[key] = id
	return id, nil
}

func (t *memoryTx) LockScope(ctx context.Context, ref catalog.Ref) error {
	return ctx.Err()
}

func (t *memoryTx) CountVersions(ctx context.Context, ref catalog.Ref) (int, error) {
	t.ms.mu.RLock()
	count := len(t.ms.versions[ref])
	t.ms.mu.RUnlock()

	for _, staged := range t.inserts {
		if staged.Ref == ref {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) Insert(ctx context.Context, rec *catalog.Record) error {
	if rec.Version < 1 {
		return fmt.Errorf("invalid schema version %d", rec.Version)
	}
	for _, staged := range t.inserts {
		if staged.Ref == rec.Ref && staged.Version == rec.Version {
			return fmt.Errorf("insert schema version %d: %w", rec.Version, catalog.ErrConflict)
		}
	}
	if _, err := t.ms.GetByVersion(ctx, rec.Ref, rec.Version); err == nil {
		return fmt.Errorf("insert schema version %d: %w", rec.Version, catalog.ErrConflict)
	}

	rec.ID = t.ms.allocateID()
	staged := *rec
	t.inserts = append(t.inserts, &staged)
	return nil
}
