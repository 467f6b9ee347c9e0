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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, flags, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != ":8000" {
		t.Errorf("Expected default address :8000, got %s", cfg.Server.Address)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected memory storage, got %s", cfg.Storage.Type)
	}
	if cfg.Artifacts.Filesystem.BaseDir != "data" {
		t.Errorf("Expected data base dir, got %s", cfg.Artifacts.Filesystem.BaseDir)
	}
	if cfg.Registry.MaxAllocationAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.Registry.MaxAllocationAttempts)
	}
	if flags.HealthCheck || flags.MigrateOnly {
		t.Error("Expected run-mode flags to be off")
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":9000"
  read_timeout: 5s
storage:
  type: memory
artifacts:
  backend: filesystem
  filesystem:
    base_dir: /var/lib/specregistry
registry:
  digest_algorithm: blake3
logging:
  level: debug
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("SPECREG_SERVER_ADDRESS", ":9100")
	t.Setenv("SPECREG_REGISTRY_MAX_ALLOCATION_ATTEMPTS", "7")

	cfg, _, err := Load([]string{"--config", file, "--log-level", "warn"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != ":9100" {
		t.Errorf("Expected env to override YAML address, got %s", cfg.Server.Address)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected YAML read timeout 5s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Artifacts.Filesystem.BaseDir != "/var/lib/specregistry" {
		t.Errorf("Unexpected base dir: %s", cfg.Artifacts.Filesystem.BaseDir)
	}
	if cfg.Registry.DigestAlgorithm != "blake3" {
		t.Errorf("Expected blake3, got %s", cfg.Registry.DigestAlgorithm)
	}
	if cfg.Registry.MaxAllocationAttempts != 7 {
		t.Errorf("Expected env attempts 7, got %d", cfg.Registry.MaxAllocationAttempts)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected flag to override log level, got %s", cfg.Logging.Level)
	}
	// Untouched defaults survive every layer.
	if cfg.Server.MaxUploadSize != 10*1024*1024 {
		t.Errorf("Unexpected max upload size: %d", cfg.Server.MaxUploadSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil || !strings.Contains(err.Error(), "failed to load YAML config") {
		t.Fatalf("Expected YAML load error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:     "database without dsn",
			mutate:   func(c *Config) { c.Storage.Type = "database" },
			errorMsg: "database dsn is required",
		},
		{
			name: "database with bad isolation",
			mutate: func(c *Config) {
				c.Storage.Type = "database"
				c.Storage.Database.DSN = "postgres://localhost/db"
				c.Storage.Database.Isolation = "chaos"
			},
			errorMsg: "unsupported isolation level",
		},
		{
			name:     "unknown storage",
			mutate:   func(c *Config) { c.Storage.Type = "redis" },
			errorMsg: "unsupported storage type",
		},
		{
			name:     "s3 without bucket",
			mutate:   func(c *Config) { c.Artifacts.Backend = "s3"; c.Artifacts.S3.Endpoint = "localhost:9000" },
			errorMsg: "s3 endpoint and bucket are required",
		},
		{
			name:     "gcs without bucket",
			mutate:   func(c *Config) { c.Artifacts.Backend = "gcs" },
			errorMsg: "gcs bucket is required",
		},
		{
			name:     "unknown digest",
			mutate:   func(c *Config) { c.Registry.DigestAlgorithm = "md5" },
			errorMsg: "unsupported digest algorithm",
		},
		{
			name:     "zero attempts",
			mutate:   func(c *Config) { c.Registry.MaxAllocationAttempts = 0 },
			errorMsg: "max allocation attempts",
		},
		{
			name:     "half TLS",
			mutate:   func(c *Config) { c.Server.TLSCertFile = "cert.pem" },
			errorMsg: "TLS cert and key",
		},
		{
			name:     "tracing without endpoint",
			mutate:   func(c *Config) { c.Tracing.Enabled = true },
			errorMsg: "tracing endpoint is required",
		},
		{
			name:     "rate limit without rps",
			mutate:   func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.RequestsPerSecond = 0 },
			errorMsg: "rate limit requires",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}
