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

package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/amtp-protocol/specregistry/internal/config"
	"github.com/amtp-protocol/specregistry/internal/logging"
	"github.com/amtp-protocol/specregistry/internal/metrics"
	"github.com/amtp-protocol/specregistry/internal/middleware"
	"github.com/amtp-protocol/specregistry/internal/registry"
)

// multipartOverhead is the allowance for form boundaries and the non-file
// fields on top of the configured document size.
const multipartOverhead = 1 << 20

// Options wires a Server. Config and Registry are required.
type Options struct {
	Config   *config.Config
	Registry *registry.Service
	Logger   *logging.Logger
	Metrics  metrics.Provider
	// Gatherer backs the metrics endpoint. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// Server is the schema registry HTTP server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	router     *gin.Engine
	registry   *registry.Service
	logger     *logging.Logger
	metrics    metrics.Provider
	gatherer   prometheus.Gatherer
}

// New creates the server and its routes. It does not start listening.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server requires a configuration")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("server requires a registry")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	provider := opts.Metrics
	if provider == nil {
		provider = metrics.Nop{}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	server := &Server{
		config:   opts.Config,
		router:   gin.New(),
		registry: opts.Registry,
		logger:   logger.WithComponent("server"),
		metrics:  provider,
		gatherer: gatherer,
	}

	server.setupMiddleware()
	server.setupRoutes()

	cfg := opts.Config.Server
	server.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if cfg.TLSCertFile != "" {
		server.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return server, nil
}

// Start listens until Shutdown is called. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")
	if s.config.Server.TLSCertFile != "" {
		return s.httpServer.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the Gin router for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	if s.config.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(s.config.Tracing.ServiceName))
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.CORS(s.config.CORS))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.RateLimit(s.config.RateLimit))
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/readyz", s.handleReady)

	schemas := s.router.Group("/schemas")
	{
		schemas.POST("/upload", middleware.RequestSizeLimit(s.config.Server.MaxUploadSize+multipartOverhead), s.handleUpload)
		schemas.GET("", s.handleGetSchema)
		schemas.GET("/versions", s.handleListVersions)
	}

	if s.config.Metrics.Enabled {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}
