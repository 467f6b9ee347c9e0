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
	"errors"
	"testing"
	"time"

	"github.com/amtp-protocol/specregistry/internal/catalog"
)

func insertVersion(t *testing.T, ms *MemoryStorage, scope catalog.Scope, path string) *catalog.Record {
	t.Helper()
	var rec *catalog.Record
	err := ms.Transact(context.Background(), func(tx catalog.Tx) error {
		ref, err := catalog.Resolve(context.Background(), tx, scope)
		if err != nil {
			return err
		}
		version, err := catalog.AllocateNextVersion(context.Background(), tx, ref)
		if err != nil {
			return err
		}
		rec = &catalog.Record{
			Ref:        ref,
			Version:    version,
			Location:   path,
			MediaType:  "application/json",
			Checksum:   "abc",
			UploadedAt: time.Now().UTC(),
		}
		return tx.Insert(context.Background(), rec)
	})
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	return rec
}

func TestNewMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	if storage == nil {
		t.Fatal("Expected storage to be created")
	}
	if storage.applications == nil || storage.services == nil || storage.versions == nil {
		t.Error("Expected maps to be initialized")
	}
}

func TestMemoryStorage_SequentialVersions(t *testing.T) {
	storage := NewMemoryStorage()
	scope := catalog.ServiceScope{Application: "shop", Service: "orders"}

	for want := 1; want <= 3; want++ {
		rec := insertVersion(t, storage, scope, "p")
		if rec.Version != want {
			t.Errorf("Expected version %d, got %d", want, rec.Version)
		}
		if rec.ID == 0 {
			t.Error("Expected record ID to be set")
		}
	}

	ref, err := catalog.Lookup(context.Background(), storage, scope)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	records, err := storage.ListAll(context.Background(), ref)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Version != i+1 {
			t.Errorf("Expected version %d at index %d, got %d", i+1, i, rec.Version)
		}
	}

	latest, err := storage.GetLatest(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.Version != 3 {
		t.Errorf("Expected latest version 3, got %d", latest.Version)
	}
}

func TestMemoryStorage_IndependentScopes(t *testing.T) {
	storage := NewMemoryStorage()

	insertVersion(t, storage, catalog.ApplicationScope{Application: "shop"}, "a1")
	insertVersion(t, storage, catalog.ApplicationScope{Application: "shop"}, "a2")
	svc := insertVersion(t, storage, catalog.ServiceScope{Application: "shop", Service: "orders"}, "s1")
	other := insertVersion(t, storage, catalog.ApplicationScope{Application: "billing"}, "b1")

	if svc.Version != 1 {
		t.Errorf("Expected service series to start at 1, got %d", svc.Version)
	}
	if other.Version != 1 {
		t.Errorf("Expected other application series to start at 1, got %d", other.Version)
	}

	appRef, _ := catalog.Lookup(context.Background(), storage, catalog.ApplicationScope{Application: "shop"})
	records, _ := storage.ListAll(context.Background(), appRef)
	if len(records) != 2 {
		t.Errorf("Expected application series to hold 2 records, got %d", len(records))
	}
}

func TestMemoryStorage_RollbackOnError(t *testing.T) {
	storage := NewMemoryStorage()
	boom := errors.New("artifact write failed")

	err := storage.Transact(context.Background(), func(tx catalog.Tx) error {
		ref, err := catalog.Resolve(context.Background(), tx, catalog.ServiceScope{Application: "shop", Service: "orders"})
		if err != nil {
			return err
		}
		if err := tx.Insert(context.Background(), &catalog.Record{Ref: ref, Version: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected transaction error to be returned, got %v", err)
	}

	if _, err := storage.FindApplication(context.Background(), "shop"); !errors.Is(err, catalog.ErrApplicationNotFound) {
		t.Errorf("Expected application to be rolled back, got %v", err)
	}
}

func TestMemoryStorage_CommitConflict(t *testing.T) {
	storage := NewMemoryStorage()
	scope := catalog.ApplicationScope{Application: "shop"}
	ctx := context.Background()

	// The first transaction allocates, then a second one commits the same
	// slot before the first reaches commit.
	err := storage.Transact(ctx, func(tx catalog.Tx) error {
		ref, err := catalog.Resolve(ctx, tx, scope)
		if err != nil {
			return err
		}
		version, err := catalog.AllocateNextVersion(ctx, tx, ref)
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, &catalog.Record{Ref: ref, Version: version}); err != nil {
			return err
		}
		insertVersion(t, storage, scope, "racer")
		return nil
	})
	if !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	ref, _ := catalog.Lookup(ctx, storage, scope)
	records, _ := storage.ListAll(ctx, ref)
	if len(records) != 1 || records[0].Location != "racer" {
		t.Errorf("Expected only the winning record, got %+v", records)
	}
}

func TestMemoryStorage_InsertDuplicate(t *testing.T) {
	storage := NewMemoryStorage()
	rec := insertVersion(t, storage, catalog.ApplicationScope{Application: "shop"}, "p")

	err := storage.Transact(context.Background(), func(tx catalog.Tx) error {
		return tx.Insert(context.Background(), &catalog.Record{Ref: rec.Ref, Version: rec.Version})
	})
	if !errors.Is(err, catalog.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestMemoryStorage_NotFound(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	if _, err := storage.FindApplication(ctx, "missing"); !errors.Is(err, catalog.ErrApplicationNotFound) {
		t.Errorf("Expected ErrApplicationNotFound, got %v", err)
	}

	rec := insertVersion(t, storage, catalog.ApplicationScope{Application: "shop"}, "p")
	if _, err := storage.FindService(ctx, rec.Ref.ApplicationID, "missing"); !errors.Is(err, catalog.ErrServiceNotFound) {
		t.Errorf("Expected ErrServiceNotFound, got %v", err)
	}
	if _, err := storage.GetByVersion(ctx, rec.Ref, 7); !errors.Is(err, catalog.ErrVersionNotFound) {
		t.Errorf("Expected ErrVersionNotFound, got %v", err)
	}
	if _, err := storage.GetLatest(ctx, catalog.Ref{ApplicationID: 999}); !errors.Is(err, catalog.ErrVersionNotFound) {
		t.Errorf("Expected ErrVersionNotFound, got %v", err)
	}
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	storage := NewMemoryStorage()
	rec := insertVersion(t, storage, catalog.ApplicationScope{Application: "shop"}, "p")

	got, _ := storage.GetByVersion(context.Background(), rec.Ref, 1)
	got.Location = "mutated"

	again, _ := storage.GetByVersion(context.Background(), rec.Ref, 1)
	if again.Location != "p" {
		t.Errorf("Expected stored record to be unchanged, got %q", again.Location)
	}
}

func TestMemoryStorage_HealthCheck(t *testing.T) {
	storage := NewMemoryStorage()
	if err := storage.HealthCheck(context.Background()); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
