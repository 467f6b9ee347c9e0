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

// Package registry implements schema upload, retrieval and history on top
// of a version catalog and an artifact store.
package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amtp-protocol/specregistry/internal/artifact"
	"github.com/amtp-protocol/specregistry/internal/catalog"
	"github.com/amtp-protocol/specregistry/internal/digest"
	"github.com/amtp-protocol/specregistry/internal/errors"
	"github.com/amtp-protocol/specregistry/internal/logging"
	"github.com/amtp-protocol/specregistry/internal/metrics"
	"github.com/amtp-protocol/specregistry/internal/openapi"
)

// DefaultMaxAllocationAttempts bounds retries after a lost version race.
const DefaultMaxAllocationAttempts = 5

var errArtifactWrite = stderrors.New("artifact write failed")

// UploadRequest is one document upload.
type UploadRequest struct {
	Application string
	Service     string
	Content     []byte
}

// Entry is a stored version and the scope it belongs to.
type Entry struct {
	Scope  catalog.Scope
	Record *catalog.Record
}

// Document is an Entry with its stored bytes.
type Document struct {
	Entry
	Content []byte
}

// History lists every version of a scope, oldest first.
type History struct {
	Scope   catalog.Scope
	Records []*catalog.Record
}

// Options wires a Service. Catalog and Artifacts are required.
type Options struct {
	Catalog               catalog.Store
	Artifacts             artifact.Store
	Validator             *openapi.Validator
	Digester              digest.Digester
	Metrics               metrics.Provider
	Logger                *logging.Logger
	MaxAllocationAttempts int
}

// Service is the schema registry.
type Service struct {
	catalog     catalog.Store
	artifacts   artifact.Store
	validator   *openapi.Validator
	digester    digest.Digester
	metrics     metrics.Provider
	logger      *logging.Logger
	tracer      trace.Tracer
	locks       *scopeLocks
	maxAttempts int
	now         func() time.Time
}

// NewService fills unset options with defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("registry requires a catalog")
	}
	if opts.Artifacts == nil {
		return nil, fmt.Errorf("registry requires an artifact store")
	}

	s := &Service{
		catalog:     opts.Catalog,
		artifacts:   opts.Artifacts,
		validator:   opts.Validator,
		digester:    opts.Digester,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		tracer:      otel.Tracer("github.com/amtp-protocol/specregistry/internal/registry"),
		locks:       newScopeLocks(),
		maxAttempts: opts.MaxAllocationAttempts,
		now:         time.Now,
	}
	if s.validator == nil {
		v, err := openapi.NewValidator(openapi.Options{})
		if err != nil {
			return nil, err
		}
		s.validator = v
	}
	if s.digester == nil {
		d, err := digest.New(digest.SHA256)
		if err != nil {
			return nil, err
		}
		s.digester = d
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAllocationAttempts
	}
	s.logger = s.logger.WithComponent("registry")
	return s, nil
}

// Upload validates content, allocates the next version of its scope and
// stores it. Returned errors are *errors.RegistryError.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Upload")
	defer span.End()
	timer := metrics.NewTimer()

	scope, err := catalog.NewScope(req.Application, req.Service)
	if err != nil {
		s.metrics.RecordUpload(metrics.OutcomeRejected, "unknown", timer.Duration(), 0)
		return nil, errors.NewMissingFieldError("application")
	}
	kind := scopeKind(scope)
	span.SetAttributes(scopeAttributes(scope)...)
	log := s.logger.WithContext(ctx).WithFields(scopeFields(scope))

	doc, err := s.validator.Validate(req.Content)
	if err != nil {
		s.metrics.RecordUpload(metrics.OutcomeRejected, kind, timer.Duration(), 0)
		regErr := documentError(err)
		log.Debugf("Upload rejected: %s", regErr.Message)
		span.SetStatus(codes.Error, regErr.Message)
		return nil, regErr
	}
	checksum := s.digester.Digest(req.Content)

	unlock, err := s.locks.Lock(ctx, scope.Key())
	if err != nil {
		regErr := errors.Wrap(errors.ErrTimeout, "Request cancelled while waiting for the scope lock", err)
		s.metrics.RecordUpload(metrics.OutcomeFailed, kind, timer.Duration(), 0)
		log.Warnf("Upload abandoned waiting for scope lock: %v", err)
		span.SetStatus(codes.Error, regErr.Message)
		return nil, regErr
	}
	defer unlock()

	var entry *Entry
	for attempt := 1; ; attempt++ {
		entry, err = s.store(ctx, scope, doc, checksum, req.Content)
		if err == nil || !stderrors.Is(err, catalog.ErrConflict) || attempt >= s.maxAttempts {
			break
		}
		s.metrics.RecordAllocationRetry(kind)
		log.WithField("attempt", attempt).Warnf("Version allocation conflict, retrying: %v", err)
	}
	if err != nil {
		regErr, outcome := uploadError(err)
		s.metrics.RecordUpload(outcome, kind, timer.Duration(), 0)
		s.metrics.RecordError("registry", string(regErr.Code), "server_error")
		log.Error("Upload failed", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, regErr.Message)
		return nil, regErr
	}

	s.metrics.RecordUpload(metrics.OutcomeStored, kind, timer.Duration(), entry.Record.SizeBytes)
	span.SetAttributes(attribute.Int("schema.version", entry.Record.Version))
	log.WithFields(map[string]interface{}{
		"version":    entry.Record.Version,
		"media_type": entry.Record.MediaType,
		"checksum":   entry.Record.Checksum,
	}).Info("Schema uploaded")
	return entry, nil
}

// store runs one allocation attempt. The catalog row is inserted before the
// artifact is written so a lost race fails before touching the backend.
func (s *Service) store(ctx context.Context, scope catalog.Scope, doc *openapi.Document, checksum string, content []byte) (*Entry, error) {
	var rec *catalog.Record
	err := s.catalog.Transact(ctx, func(tx catalog.Tx) error {
		ref, err := catalog.Resolve(ctx, tx, scope)
		if err != nil {
			return err
		}
		version, err := catalog.AllocateNextVersion(ctx, tx, ref)
		if err != nil {
			return err
		}

		key := artifact.Key(scope, version, doc.MediaType)
		rec = &catalog.Record{
			Ref:               ref,
			Version:           version,
			Location:          s.artifacts.Location(key),
			MediaType:         doc.MediaType,
			Checksum:          checksum,
			ChecksumAlgorithm: s.digester.Algorithm(),
			SizeBytes:         int64(len(content)),
			Info:              catalog.DocumentInfo{Title: doc.Info.Title, Version: doc.Info.Version},
			UploadedAt:        s.now().UTC(),
		}
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}

		timer := metrics.NewTimer()
		location, err := s.artifacts.Write(ctx, key, doc.MediaType, content)
		if err != nil {
			s.metrics.RecordArtifactOperation(s.artifacts.Name(), "write", "error", timer.Duration())
			return fmt.Errorf("%w: %w", errArtifactWrite, err)
		}
		s.metrics.RecordArtifactOperation(s.artifacts.Name(), "write", "success", timer.Duration())
		rec.Location = location
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Entry{Scope: scope, Record: rec}, nil
}

// Get returns the latest version of the scope, or the given version when
// version is non-nil.
func (s *Service) Get(ctx context.Context, application, service string, version *int) (*Document, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Get")
	defer span.End()

	scope, ref, err := s.lookup(ctx, application, service)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(scopeAttributes(scope)...)
	log := s.logger.WithContext(ctx).WithFields(scopeFields(scope))

	var rec *catalog.Record
	if version == nil {
		rec, err = s.catalog.GetLatest(ctx, ref)
	} else {
		span.SetAttributes(attribute.Int("schema.version", *version))
		rec, err = s.catalog.GetByVersion(ctx, ref, *version)
	}
	if stderrors.Is(err, catalog.ErrVersionNotFound) {
		log.Debug("Schema not found")
		return nil, errors.New(errors.ErrSchemaNotFound, "Schema not found")
	}
	if err != nil {
		log.Error("Failed to read catalog", err)
		span.RecordError(err)
		return nil, errors.NewStorageError(errors.ErrCatalogFailed, "Failed to read schema catalog", err)
	}

	timer := metrics.NewTimer()
	content, err := s.artifacts.Read(ctx, rec.Location)
	if err != nil {
		s.metrics.RecordArtifactOperation(s.artifacts.Name(), "read", "error", timer.Duration())
		log.WithField("version", rec.Version).Error("Failed to read schema artifact", err)
		span.RecordError(err)
		return nil, errors.NewStorageError(errors.ErrArtifactFailed, "Failed to read schema document", err)
	}
	s.metrics.RecordArtifactOperation(s.artifacts.Name(), "read", "success", timer.Duration())

	return &Document{Entry: Entry{Scope: scope, Record: rec}, Content: content}, nil
}

// List returns the version history of the scope.
func (s *Service) List(ctx context.Context, application, service string) (*History, error) {
	ctx, span := s.tracer.Start(ctx, "registry.List")
	defer span.End()

	scope, ref, err := s.lookup(ctx, application, service)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(scopeAttributes(scope)...)

	records, err := s.catalog.ListAll(ctx, ref)
	if err != nil {
		s.logger.WithContext(ctx).WithFields(scopeFields(scope)).Error("Failed to list versions", err)
		span.RecordError(err)
		return nil, errors.NewStorageError(errors.ErrCatalogFailed, "Failed to read schema catalog", err)
	}
	return &History{Scope: scope, Records: records}, nil
}

// HealthCheck checks the catalog and the artifact store. The map holds one
// entry per dependency.
func (s *Service) HealthCheck(ctx context.Context) (map[string]error, bool) {
	results := map[string]error{
		"catalog":   s.catalog.HealthCheck(ctx),
		"artifacts": s.artifacts.HealthCheck(ctx),
	}
	healthy := true
	for _, err := range results {
		if err != nil {
			healthy = false
		}
	}
	return results, healthy
}

func (s *Service) lookup(ctx context.Context, application, service string) (catalog.Scope, catalog.Ref, error) {
	scope, err := catalog.NewScope(application, service)
	if err != nil {
		return nil, catalog.Ref{}, errors.NewMissingFieldError("application")
	}

	ref, err := catalog.Lookup(ctx, s.catalog, scope)
	switch {
	case err == nil:
		return scope, ref, nil
	case stderrors.Is(err, catalog.ErrApplicationNotFound):
		return nil, catalog.Ref{}, errors.New(errors.ErrApplicationNotFound, "Application not found")
	case stderrors.Is(err, catalog.ErrServiceNotFound):
		return nil, catalog.Ref{}, errors.New(errors.ErrServiceNotFound, "Service not found")
	default:
		s.logger.WithContext(ctx).WithFields(scopeFields(scope)).Error("Failed to resolve scope", err)
		return nil, catalog.Ref{}, errors.NewStorageError(errors.ErrCatalogFailed, "Failed to read schema catalog", err)
	}
}

func documentError(err error) *errors.RegistryError {
	var docErr *openapi.DocumentError
	if stderrors.As(err, &docErr) {
		return errors.Wrap(errors.ErrInvalidDocument, "Invalid OpenAPI spec: "+docErr.Reason, err).
			WithDetails(map[string]interface{}{"reason": docErr.KindName()})
	}
	return errors.Wrap(errors.ErrInvalidDocument, "Invalid OpenAPI spec: "+err.Error(), err)
}

func uploadError(err error) (*errors.RegistryError, string) {
	switch {
	case stderrors.Is(err, catalog.ErrConflict):
		return errors.Wrap(errors.ErrVersionConflict, "Could not allocate a schema version, please retry", err), metrics.OutcomeConflict
	case stderrors.Is(err, errArtifactWrite):
		return errors.NewStorageError(errors.ErrArtifactFailed, "Failed to store schema document", err), metrics.OutcomeFailed
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(errors.ErrTimeout, "Upload did not complete in time", err), metrics.OutcomeFailed
	default:
		return errors.NewStorageError(errors.ErrCatalogFailed, "Failed to record schema version", err), metrics.OutcomeFailed
	}
}

func scopeKind(scope catalog.Scope) string {
	if _, ok := scope.ServiceName(); ok {
		return "service"
	}
	return "application"
}

func scopeFields(scope catalog.Scope) map[string]interface{} {
	fields := map[string]interface{}{"application": scope.ApplicationName()}
	if service, ok := scope.ServiceName(); ok {
		fields["service"] = service
	}
	return fields
}

func scopeAttributes(scope catalog.Scope) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("schema.application", scope.ApplicationName())}
	if service, ok := scope.ServiceName(); ok {
		attrs = append(attrs, attribute.String("schema.service", service))
	}
	return attrs
}
