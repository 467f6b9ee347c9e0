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

package types

import "time"

// Media types accepted for stored documents.
const (
	MediaTypeJSON = "application/json"
	MediaTypeYAML = "application/yaml"
)

// UploadResponse is returned by POST /schemas/upload.
type UploadResponse struct {
	Application string    `json:"application"`
	Service     *string   `json:"service"`
	Version     int       `json:"version"`
	MediaType   string    `json:"media_type"`
	Checksum    string    `json:"checksum"`
	Path        string    `json:"path"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// VersionEntry describes one stored version in a listing.
type VersionEntry struct {
	Version    int       `json:"version"`
	UploadedAt time.Time `json:"uploaded_at"`
	MediaType  string    `json:"media_type"`
	Checksum   string    `json:"checksum"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	Title      string    `json:"title,omitempty"`
}

// VersionListResponse is returned by GET /schemas/versions.
type VersionListResponse struct {
	Application string         `json:"application"`
	Service     *string        `json:"service"`
	Versions    []VersionEntry `json:"versions"`
}

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status string `json:"status"`
}

// ReadinessStatus reports the state of each dependency.
type ReadinessStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ErrorResponse represents an API error response. Detail mirrors
// Error.Message for clients that only read a flat reason string.
type ErrorResponse struct {
	Detail string      `json:"detail"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail provides detailed error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}
