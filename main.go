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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amtp-protocol/specregistry/internal/artifact"
	"github.com/amtp-protocol/specregistry/internal/config"
	"github.com/amtp-protocol/specregistry/internal/digest"
	"github.com/amtp-protocol/specregistry/internal/logging"
	"github.com/amtp-protocol/specregistry/internal/metrics"
	"github.com/amtp-protocol/specregistry/internal/openapi"
	"github.com/amtp-protocol/specregistry/internal/registry"
	"github.com/amtp-protocol/specregistry/internal/server"
	"github.com/amtp-protocol/specregistry/internal/storage"
	"github.com/amtp-protocol/specregistry/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 30 * time.Second

func runHealthCheck(addr string) error {
	// If addr starts with :, prepend localhost
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	client := &http.Client{
		Timeout: 2 * time.Second,
	}
	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func storageConfig(cfg *config.Config, logger *logging.Logger) storage.StorageConfig {
	if cfg.Storage.Type != "database" {
		return storage.DefaultStorageConfig()
	}
	db := cfg.Storage.Database
	return storage.StorageConfig{
		Type: cfg.Storage.Type,
		Database: &storage.DatabaseStorageConfig{
			Driver:           db.Driver,
			ConnectionString: db.DSN,
			MaxConnections:   db.MaxConnections,
			MaxIdleTime:      db.MaxIdleTime,
			Isolation:        db.Isolation,
			AutoMigrate:      db.AutoMigrate,
			Logger: gormlogger.New(logger.WithComponent("gorm"), gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			}),
		},
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "specregistry: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, flags, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.HealthCheck {
		return runHealthCheck(cfg.Server.Address)
	}

	logger := logging.NewLogger(cfg.Logging)

	if flags.MigrateOnly {
		if cfg.Storage.Type != "database" {
			return fmt.Errorf("--migrate-only requires database storage")
		}
		if err := storage.Migrate(cfg.Storage.Database.DSN); err != nil {
			return err
		}
		logger.Info("Catalog migrations applied")
		return nil
	}

	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(ctx, cfg.Tracing, version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to flush traces", err)
		}
	}()

	catalogStore, err := storage.NewStorage(storageConfig(cfg, logger))
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	defer catalogStore.Close()

	artifacts, err := artifact.New(ctx, cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}

	digester, err := digest.New(cfg.Registry.DigestAlgorithm)
	if err != nil {
		return err
	}
	validator, err := openapi.NewValidator(openapi.Options{StrictStructure: cfg.Registry.StrictStructure})
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsProvider := metrics.NewMetrics(promRegistry)

	svc, err := registry.NewService(registry.Options{
		Catalog:               catalogStore,
		Artifacts:             artifacts,
		Validator:             validator,
		Digester:              digester,
		Metrics:               metricsProvider,
		Logger:                logger,
		MaxAllocationAttempts: cfg.Registry.MaxAllocationAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	srv, err := server.New(server.Options{
		Config:   cfg,
		Registry: svc,
		Logger:   logger,
		Metrics:  metricsProvider,
		Gatherer: promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"version":   version,
		"storage":   cfg.Storage.Type,
		"artifacts": artifacts.Name(),
		"digest":    digester.Algorithm(),
	}).Info("Schema registry configured")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}
