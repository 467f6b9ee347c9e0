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
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amtp-protocol/specregistry/internal/catalog"
	"github.com/amtp-protocol/specregistry/internal/errors"
	"github.com/amtp-protocol/specregistry/internal/middleware"
	"github.com/amtp-protocol/specregistry/internal/registry"
	"github.com/amtp-protocol/specregistry/internal/types"
)

const (
	readinessTimeout = 5 * time.Second
	// maxFormMemory is how much of a multipart body is buffered in memory
	// before spilling to temp files.
	maxFormMemory = 32 << 20
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthStatus{Status: "ok"})
}

// handleReady checks the catalog and artifact store.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	results, healthy := s.registry.HealthCheck(ctx)
	checks := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			s.logger.WithContext(ctx).WithField("dependency", name).Warnf("Readiness check failed: %v", err)
			checks[name] = "unavailable"
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !healthy {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, types.ReadinessStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// handleUpload stores a multipart upload with fields application, service
// and spec.
func (s *Server) handleUpload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.respondWithError(c, middleware.PayloadTooLarge(s.config.Server.MaxUploadSize))
			return
		}
		s.respondWithError(c, errors.Wrap(errors.ErrInvalidRequestFormat, "Malformed multipart body", err))
		return
	}
	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll()
	}

	application := c.Request.PostFormValue("application")
	if strings.TrimSpace(application) == "" {
		s.respondWithError(c, errors.NewMissingFieldError("application"))
		return
	}

	file, header, err := c.Request.FormFile("spec")
	if err != nil {
		s.respondWithError(c, errors.NewMissingFieldError("spec"))
		return
	}
	defer file.Close()

	maxSize := s.config.Server.MaxUploadSize
	if header.Size > maxSize {
		s.respondWithError(c, middleware.PayloadTooLarge(maxSize))
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondWithError(c, errors.Wrap(errors.ErrInvalidRequestFormat, "Failed to read uploaded file", err))
		return
	}
	if int64(len(content)) > maxSize {
		s.respondWithError(c, middleware.PayloadTooLarge(maxSize))
		return
	}

	entry, err := s.registry.Upload(c.Request.Context(), registry.UploadRequest{
		Application: application,
		Service:     c.Request.PostFormValue("service"),
		Content:     content,
	})
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	rec := entry.Record
	c.JSON(http.StatusOK, types.UploadResponse{
		Application: entry.Scope.ApplicationName(),
		Service:     serviceName(entry.Scope),
		Version:     rec.Version,
		MediaType:   rec.MediaType,
		Checksum:    rec.Checksum,
		Path:        rec.Location,
		UploadedAt:  rec.UploadedAt,
	})
}

// handleGetSchema returns the raw bytes of the latest or requested version.
func (s *Server) handleGetSchema(c *gin.Context) {
	application, ok := requiredQuery(c, "application")
	if !ok {
		s.respondWithError(c, errors.NewMissingFieldError("application"))
		return
	}

	// version=0 selects the latest version. Negative versions never exist
	// and fall through to a 404 from the catalog.
	var version *int
	if raw, present := c.GetQuery("version"); present && raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			s.respondWithError(c, errors.Newf(errors.ErrInvalidParameter, "Invalid version: %q must be an integer", raw).
				WithDetails(map[string]interface{}{"field": "version"}))
			return
		}
		if v != 0 {
			version = &v
		}
	}

	doc, err := s.registry.Get(c.Request.Context(), application, c.Query("service"), version)
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	rec := doc.Record
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifactFilename(rec.Location)))
	c.Header("X-Schema-Version", strconv.Itoa(rec.Version))
	c.Header("X-Schema-Checksum", rec.Checksum)
	c.Data(http.StatusOK, rec.MediaType, doc.Content)
}

// handleListVersions lists every version of a scope, oldest first.
func (s *Server) handleListVersions(c *gin.Context) {
	application, ok := requiredQuery(c, "application")
	if !ok {
		s.respondWithError(c, errors.NewMissingFieldError("application"))
		return
	}

	history, err := s.registry.List(c.Request.Context(), application, c.Query("service"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	versions := make([]types.VersionEntry, 0, len(history.Records))
	for _, rec := range history.Records {
		versions = append(versions, types.VersionEntry{
			Version:    rec.Version,
			UploadedAt: rec.UploadedAt,
			MediaType:  rec.MediaType,
			Checksum:   rec.Checksum,
			Path:       rec.Location,
			SizeBytes:  rec.SizeBytes,
			Title:      rec.Info.Title,
		})
	}

	c.JSON(http.StatusOK, types.VersionListResponse{
		Application: history.Scope.ApplicationName(),
		Service:     serviceName(history.Scope),
		Versions:    versions,
	})
}

func requiredQuery(c *gin.Context, name string) (string, bool) {
	value, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func serviceName(scope catalog.Scope) *string {
	if name, ok := scope.ServiceName(); ok {
		return &name
	}
	return nil
}

// artifactFilename is the last element of a stored location, which may be a
// file path or an object URL.
func artifactFilename(location string) string {
	return path.Base(filepath.ToSlash(location))
}
