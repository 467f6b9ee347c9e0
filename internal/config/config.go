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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SPECREG_"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Artifacts ArtifactConfig  `yaml:"artifacts" envPrefix:"ARTIFACTS_"`
	Registry  RegistryConfig  `yaml:"registry" envPrefix:"REGISTRY_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Tracing   TracingConfig   `yaml:"tracing" envPrefix:"TRACING_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	CORS      CORSConfig      `yaml:"cors" envPrefix:"CORS_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address       string        `yaml:"address" env:"ADDRESS"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	MaxUploadSize int64         `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE"`
	TLSCertFile   string        `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile    string        `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// StorageConfig selects and configures the version catalog backend.
type StorageConfig struct {
	Type     string         `yaml:"type" env:"TYPE"` // "memory" or "database"
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
}

// DatabaseConfig holds relational catalog settings.
type DatabaseConfig struct {
	Driver         string        `yaml:"driver" env:"DRIVER"`
	DSN            string        `yaml:"dsn" env:"DSN"`
	MaxConnections int           `yaml:"max_connections" env:"MAX_CONNECTIONS"`
	MaxIdleTime    time.Duration `yaml:"max_idle_time" env:"MAX_IDLE_TIME"`
	Isolation      string        `yaml:"isolation" env:"ISOLATION"` // "read_committed" or "serializable"
	AutoMigrate    bool          `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// ArtifactConfig selects where uploaded document bytes are kept.
type ArtifactConfig struct {
	Backend    string           `yaml:"backend" env:"BACKEND"` // "filesystem", "s3" or "gcs"
	Filesystem FilesystemConfig `yaml:"filesystem" envPrefix:"FS_"`
	S3         S3Config         `yaml:"s3" envPrefix:"S3_"`
	GCS        GCSConfig        `yaml:"gcs" envPrefix:"GCS_"`
}

// FilesystemConfig holds local artifact tree settings.
type FilesystemConfig struct {
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
}

// S3Config holds settings for S3-compatible object stores.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
	Region    string `yaml:"region" env:"REGION"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Secure    bool   `yaml:"secure" env:"SECURE"`
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	Prefix          string `yaml:"prefix" env:"PREFIX"`
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
}

// RegistryConfig tunes upload handling.
type RegistryConfig struct {
	DigestAlgorithm       string `yaml:"digest_algorithm" env:"DIGEST_ALGORITHM"`
	MaxAllocationAttempts int    `yaml:"max_allocation_attempts" env:"MAX_ALLOCATION_ATTEMPTS"`
	StrictStructure       bool   `yaml:"strict_structure" env:"STRICT_STRUCTURE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Format     string `yaml:"format" env:"FORMAT"`
	Output     string `yaml:"output" env:"OUTPUT"` // "stdout", "stderr" or "file"
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool    `yaml:"insecure" env:"INSECURE"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" env:"ENABLED"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RPS"`
	Burst             int     `yaml:"burst" env:"BURST"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Flags are command-line switches that select a run mode rather than
// configure the service.
type Flags struct {
	ConfigFile  string
	HealthCheck bool
	MigrateOnly bool
}

// Load loads configuration from defaults, a YAML file, environment variables
// and command-line flags, in increasing order of precedence.
func Load(args []string) (*Config, *Flags, error) {
	fs := pflag.NewFlagSet("specregistry", pflag.ContinueOnError)
	flags := &Flags{}
	fs.StringVarP(&flags.ConfigFile, "config", "c", os.Getenv(EnvPrefix+"CONFIG_FILE"), "Path to configuration file (YAML)")
	fs.BoolVar(&flags.HealthCheck, "health-check", false, "Probe /healthz of a running server and exit")
	fs.BoolVar(&flags.MigrateOnly, "migrate-only", false, "Apply catalog migrations and exit")
	address := fs.String("address", "", "HTTP listen address")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	storageType := fs.String("storage", "", "Catalog backend (memory, database)")
	dsn := fs.String("dsn", "", "Database connection string")
	artifactDir := fs.String("artifact-dir", "", "Base directory for the filesystem artifact store")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := getDefaultConfig()

	if err := loadFromYAML(cfg, flags.ConfigFile); err != nil {
		return nil, nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if *address != "" {
		cfg.Server.Address = *address
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}
	if *dsn != "" {
		cfg.Storage.Database.DSN = *dsn
	}
	if *artifactDir != "" {
		cfg.Artifacts.Filesystem.BaseDir = *artifactDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, flags, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return getDefaultConfig()
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:       ":8000",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   120 * time.Second,
			MaxUploadSize: 10 * 1024 * 1024, // 10MB
		},
		Storage: StorageConfig{
			Type: "memory",
			Database: DatabaseConfig{
				Driver:         "pgx",
				MaxConnections: 20,
				MaxIdleTime:    5 * time.Minute,
				Isolation:      "read_committed",
				AutoMigrate:    true,
			},
		},
		Artifacts: ArtifactConfig{
			Backend: "filesystem",
			Filesystem: FilesystemConfig{
				BaseDir: "data",
			},
			S3: S3Config{
				Region: "us-east-1",
				Secure: true,
			},
		},
		Registry: RegistryConfig{
			DigestAlgorithm:       "sha256",
			MaxAllocationAttempts: 5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "specregistry",
			SampleRatio: 1.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(cfg *Config, configFile string) error {
	if configFile == "" {
		return nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config file %s: %w", configFile, err)
	}

	return nil
}

// loadFromEnv overrides fields whose SPECREG_* variable is set.
func loadFromEnv(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("TLS cert and key files must be set together")
	}

	switch c.Storage.Type {
	case "memory":
	case "database":
		if c.Storage.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for database storage")
		}
		switch c.Storage.Database.Isolation {
		case "", "read_committed", "serializable":
		default:
			return fmt.Errorf("unsupported isolation level: %s", c.Storage.Database.Isolation)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	switch c.Artifacts.Backend {
	case "filesystem":
		if c.Artifacts.Filesystem.BaseDir == "" {
			return fmt.Errorf("filesystem base dir is required")
		}
	case "s3":
		if c.Artifacts.S3.Endpoint == "" || c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("s3 endpoint and bucket are required")
		}
	case "gcs":
		if c.Artifacts.GCS.Bucket == "" {
			return fmt.Errorf("gcs bucket is required")
		}
	default:
		return fmt.Errorf("unsupported artifact backend: %s", c.Artifacts.Backend)
	}

	switch c.Registry.DigestAlgorithm {
	case "sha256", "blake3":
	default:
		return fmt.Errorf("unsupported digest algorithm: %s", c.Registry.DigestAlgorithm)
	}
	if c.Registry.MaxAllocationAttempts < 1 {
		return fmt.Errorf("max allocation attempts must be at least 1")
	}

	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("log file path is required when output is file")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	return nil
}
