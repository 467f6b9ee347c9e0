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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amtp-protocol/specregistry/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error", errors.New("boom"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["level"] != "warn" {
		t.Errorf("Expected warn level, got %v", entries[0]["level"])
	}
	if entries[1]["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entries[1]["error"])
	}
}

func TestLoggerComponentAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.WithComponent("registry").
		WithContext(ctx).
		WithFields(map[string]interface{}{"application": "payments"}).
		WithField("version", 3).
		Info("uploaded")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["component"] != "registry" {
		t.Errorf("Unexpected component: %v", entry["component"])
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("Unexpected request_id: %v", entry["request_id"])
	}
	if entry["application"] != "payments" {
		t.Errorf("Unexpected application: %v", entry["application"])
	}
	if entry["version"] != float64(3) {
		t.Errorf("Unexpected version: %v", entry["version"])
	}
}

func TestLogRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info"}, &buf)

	logger.LogRequest("GET", "/schemas", "127.0.0.1", "curl", 200, 15*time.Millisecond)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["path"] != "/schemas" || entries[0]["status_code"] != float64(200) {
		t.Errorf("Unexpected request entry: %v", entries[0])
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("Expected empty request id, got %q", id)
	}
}
