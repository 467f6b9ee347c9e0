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
	"github.com/gin-gonic/gin"

	"github.com/amtp-protocol/specregistry/internal/errors"
)

// respondWithError sends a standardized error response. Errors that are not
// a RegistryError are reported as internal without exposing their text.
func (s *Server) respondWithError(c *gin.Context, err error) {
	regErr, ok := errors.AsRegistryError(err)
	if !ok {
		regErr = errors.NewInternalError("Internal server error", err)
	}
	regErr.RequestID = c.GetString("request_id")
	statusCode := regErr.GetHTTPStatus()

	logger := s.logger.WithContext(c.Request.Context()).WithFields(map[string]interface{}{
		"status_code": statusCode,
		"error_code":  regErr.Code,
		"method":      c.Request.Method,
		"path":        c.Request.URL.Path,
	})

	// Rejections and lookups that miss are normal traffic.
	if statusCode >= 500 {
		logger.Error(regErr.Message, regErr.Cause)
	} else {
		logger.Debug(regErr.Message)
	}

	s.metrics.RecordError("server", string(regErr.Code), getErrorType(statusCode))
	c.AbortWithStatusJSON(statusCode, regErr.ToErrorResponse())
}

// getErrorType categorizes errors by HTTP status code
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "unknown"
	}
}
