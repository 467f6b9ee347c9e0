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
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/amtp-protocol/specregistry/internal/catalog"
)

// Application model
type Application struct {
	ID        uint      `gorm:"primarykey"`
	Name      string    `gorm:"size:255;uniqueIndex:uq_application_name;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// Service model
type Service struct {
	ID            uint      `gorm:"primarykey"`
	ApplicationID uint      `gorm:"not null;uniqueIndex:uq_service_per_app"`
	Name          string    `gorm:"size:255;not null;uniqueIndex:uq_service_per_app"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// SchemaVersion model. ServiceID is nil for application-level versions.
type SchemaVersion struct {
	ID                uint           `gorm:"primarykey"`
	ApplicationID     uint           `gorm:"not null"`
	ServiceID         *uint          `gorm:"index"`
	Version           int            `gorm:"not null"`
	Path              string         `gorm:"type:text;not null"`
	MediaType         string         `gorm:"size:64;not null"`
	Checksum          string         `gorm:"size:128;not null"`
	ChecksumAlgorithm string         `gorm:"size:16;not null;default:sha256"`
	SizeBytes         int64          `gorm:"not null;default:0"`
	Info              datatypes.JSON `gorm:"type:jsonb"`
	UploadedAt        time.Time      `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for Application
func (Application) TableName() string {
	return "applications"
}

// TableName returns the table name for Service
func (Service) TableName() string {
	return "services"
}

// TableName returns the table name for SchemaVersion
func (SchemaVersion) TableName() string {
	return "schema_versions"
}

func newSchemaVersion(rec *catalog.Record) (*SchemaVersion, error) {
	row := &SchemaVersion{
		ApplicationID:     rec.Ref.ApplicationID,
		Version:           rec.Version,
		Path:              rec.Location,
		MediaType:         rec.MediaType,
		Checksum:          rec.Checksum,
		ChecksumAlgorithm: rec.ChecksumAlgorithm,
		SizeBytes:         rec.SizeBytes,
		UploadedAt:        rec.UploadedAt,
	}
	if rec.Ref.IsServiceScope() {
		serviceID := rec.Ref.ServiceID
		row.ServiceID = &serviceID
	}
	if rec.Info != (catalog.DocumentInfo{}) {
		info, err := json.Marshal(rec.Info)
		if err != nil {
			return nil, err
		}
		row.Info = datatypes.JSON(info)
	}
	return row, nil
}

func (sv *SchemaVersion) toRecord() (*catalog.Record, error) {
	rec := &catalog.Record{
		ID:                sv.ID,
		Ref:               catalog.Ref{ApplicationID: sv.ApplicationID},
		Version:           sv.Version,
		Location:          sv.Path,
		MediaType:         sv.MediaType,
		Checksum:          sv.Checksum,
		ChecksumAlgorithm: sv.ChecksumAlgorithm,
		SizeBytes:         sv.SizeBytes,
		UploadedAt:        sv.UploadedAt.UTC(),
	}
	if sv.ServiceID != nil {
		rec.Ref.ServiceID = *sv.ServiceID
	}
	if len(sv.Info) > 0 {
		if err := json.Unmarshal(sv.Info, &rec.Info); err != nil {
			return nil, fmt.Errorf("failed to decode info of schema version %d: %w", sv.ID, err)
		}
	}
	return rec, nil
}
