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
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// Isolation levels accepted by DatabaseStorageConfig.
const (
	IsolationReadCommitted = "read_committed"
	IsolationSerializable  = "serializable"
)

// StorageConfig defines configuration for catalog implementations
type StorageConfig struct {
	Type string `yaml:"type" json:"type"` // "memory" or "database"

	// Database storage config
	Database *DatabaseStorageConfig `yaml:"database,omitempty" json:"database,omitempty"`
}

// DatabaseStorageConfig configures the PostgreSQL catalog
type DatabaseStorageConfig struct {
	Driver           string        `yaml:"driver" json:"driver"`
	ConnectionString string        `yaml:"connection_string" json:"connection_string"`
	MaxConnections   int           `yaml:"max_connections" json:"max_connections"`
	MaxIdleTime      time.Duration `yaml:"max_idle_time" json:"max_idle_time"`
	Isolation        string        `yaml:"isolation" json:"isolation"`
	AutoMigrate      bool          `yaml:"auto_migrate" json:"auto_migrate"`

	// Logger receives gorm's SQL diagnostics. Nil keeps gorm's default.
	Logger gormlogger.Interface `yaml:"-" json:"-"`
}
