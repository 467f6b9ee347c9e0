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
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amtp-protocol/specregistry/internal/catalog"
)

// DatabaseStorage is the PostgreSQL version catalog.
//
// Allocation in a scope is serialized by a row lock on the scope's owner
// (the service row, or the application row for application-level
// versions), so READ COMMITTED is enough for count+1 to be exact. The
// partial unique indexes on schema_versions catch anything that slips past.
type DatabaseStorage struct {
	config    DatabaseStorageConfig
	db        *gorm.DB
	txOptions *sql.TxOptions
}

var _ catalog.Store = (*DatabaseStorage)(nil)

// NewDatabaseStorage creates a new database storage instance. If dbOverride is non-nil, it is used (for testing).
func NewDatabaseStorage(config DatabaseStorageConfig, dbOverride ...*gorm.DB) (*DatabaseStorage, error) {
	var db *gorm.DB
	var err error
	if len(dbOverride) > 0 && dbOverride[0] != nil {
		db = dbOverride[0]
	} else {
		gormConfig := &gorm.Config{TranslateError: true}
		if config.Logger != nil {
			gormConfig.Logger = config.Logger
		}
		db, err = gorm.Open(
			postgres.New(postgres.Config{
				DriverName: config.Driver,
				DSN:        config.ConnectionString,
			}),
			gormConfig,
		)
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if config.MaxConnections > 0 {
			sqlDB.SetMaxOpenConns(config.MaxConnections)
		}
		if config.MaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(config.MaxIdleTime)
		}

		if config.AutoMigrate {
			if err := Migrate(config.ConnectionString); err != nil {
				sqlDB.Close()
				return nil, err
			}
		}
	}

	ds := &DatabaseStorage{
		config: config,
		db:     db,
	}
	if config.Isolation == IsolationSerializable {
		ds.txOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return ds, nil
}

// Transact runs fn inside one database transaction.
func (ds *DatabaseStorage) Transact(ctx context.Context, fn func(tx catalog.Tx) error) error {
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&databaseTx{db: tx})
	}, ds.txOptions)
	if err != nil && !errors.Is(err, catalog.ErrConflict) && isConflict(err) {
		// Serialization failures can surface at COMMIT.
		return classify("commit transaction", err)
	}
	return err
}

// FindApplication returns the id of the named application.
func (ds *DatabaseStorage) FindApplication(ctx context.Context, name string) (uint, error) {
	var app Application
	err := ds.db.WithContext(ctx).Where("name = ?", name).Take(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, catalog.ErrApplicationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get application: %w", err)
	}
	return app.ID, nil
}

// FindService returns the id of the named service under applicationID.
func (ds *DatabaseStorage) FindService(ctx context.Context, applicationID uint, name string) (uint, error) {
	var svc Service
	err := ds.db.WithContext(ctx).
		Where("application_id = ? AND name = ?", applicationID, name).
		Take(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, catalog.ErrServiceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get service: %w", err)
	}
	return svc.ID, nil
}

// GetLatest returns the highest version of the scope.
func (ds *DatabaseStorage) GetLatest(ctx context.Context, ref catalog.Ref) (*catalog.Record, error) {
	var row SchemaVersion
	err := inScope(ds.db.WithContext(ctx), ref).
		Order("version DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest schema version: %w", err)
	}
	return row.toRecord()
}

// GetByVersion returns one version of the scope.
func (ds *DatabaseStorage) GetByVersion(ctx context.Context, ref catalog.Ref, version int) (*catalog.Record, error) {
	var row SchemaVersion
	err := inScope(ds.db.WithContext(ctx), ref).
		Where("version = ?", version).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	return row.toRecord()
}

// ListAll returns every version of the scope, oldest first.
func (ds *DatabaseStorage) ListAll(ctx context.Context, ref catalog.Ref) ([]*catalog.Record, error) {
	var rows []SchemaVersion
	if err := inScope(ds.db.WithContext(ctx), ref).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list schema versions: %w", err)
	}

	records := make([]*catalog.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the database connection
func (ds *DatabaseStorage) Close() error {
	if ds.db == nil {
		return fmt.Errorf("database instance is nil")
	}
	db, err := ds.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return db.Close()
}

// HealthCheck performs a health check on the database connection
func (ds *DatabaseStorage) HealthCheck(ctx context.Context) error {
	if ds.db == nil {
		return fmt.Errorf("database instance is nil")
	}
	db, err := ds.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// inScope restricts a schema_versions query to exactly one series.
func inScope(db *gorm.DB, ref catalog.Ref) *gorm.DB {
	q := db.Model(&SchemaVersion{}).Where("application_id = ?", ref.ApplicationID)
	if ref.IsServiceScope() {
		return q.Where("service_id = ?", ref.ServiceID)
	}
	return q.Where("service_id IS NULL")
}

type databaseTx struct {
	db *gorm.DB
}

func (t *databaseTx) EnsureApplication(ctx context.Context, name string) (uint, error) {
	var app Application
	err := t.db.WithContext(ctx).Where("name = ?", name).Take(&app).Error
	if err == nil {
		return app.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, classify("get application", err)
	}

	app = Application{Name: name}
	err = t.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&app).Error
	if err != nil {
		return 0, classify("create application", err)
	}
	if app.ID != 0 {
		return app.ID, nil
	}

	// Another transaction created it first; ON CONFLICT waited for it to
	// commit, so a fresh read sees the row.
	if err := t.db.WithContext(ctx).Where("name = ?", name).Take(&app).Error; err != nil {
		return 0, classify("reload application", err)
	}
	return app.ID, nil
}

func (t *databaseTx) EnsureService(ctx context.Context, applicationID uint, name string) (uint, error) {
	var svc Service
	err := t.db.WithContext(ctx).
		Where("application_id = ? AND name = ?", applicationID, name).
		Take(&svc).Error
	if err == nil {
		return svc.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, classify("get service", err)
	}

	svc = Service{ApplicationID: applicationID, Name: name}
	err = t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&svc).Error
	if err != nil {
		return 0, classify("create service", err)
	}
	if svc.ID != 0 {
		return svc.ID, nil
	}

	if err := t.db.WithContext(ctx).
		Where("application_id = ? AND name = ?", applicationID, name).
		Take(&svc).Error; err != nil {
		return 0, classify("reload service", err)
	}
	return svc.ID, nil
}

// LockScope takes FOR NO KEY UPDATE on the scope owner row. Foreign key
// checks from inserts into services and schema_versions take FOR KEY SHARE
// on the same rows, which FOR UPDATE would block; NO KEY UPDATE still
// serializes allocators of one scope without stalling other scopes.
func (t *databaseTx) LockScope(ctx context.Context, ref catalog.Ref) error {
	locking := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "NO KEY UPDATE"}).Select("id")
	var err error
	if ref.IsServiceScope() {
		err = locking.Where("id = ?", ref.ServiceID).Take(&Service{}).Error
	} else {
		err = locking.Where("id = ?", ref.ApplicationID).Take(&Application{}).Error
	}
	return classify("lock scope", err)
}

func (t *databaseTx) CountVersions(ctx context.Context, ref catalog.Ref) (int, error) {
	var count int64
	if err := inScope(t.db.WithContext(ctx), ref).Count(&count).Error; err != nil {
		return 0, classify("count schema versions", err)
	}
	return int(count), nil
}

func (t *databaseTx) Insert(ctx context.Context, rec *catalog.Record) error {
	row, err := newSchemaVersion(rec)
	if err != nil {
		return fmt.Errorf("failed to encode schema version: %w", err)
	}
	if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
		return classify("insert schema version", err)
	}
	rec.ID = row.ID
	return nil
}
