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

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrValidationFailed, "Test validation error")

	if err.Code != ErrValidationFailed {
		t.Errorf("Expected code %s, got %s", ErrValidationFailed, err.Code)
	}

	if err.Message != "Test validation error" {
		t.Errorf("Expected message 'Test validation error', got %s", err.Message)
	}

	if err.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	if err.Cause != nil {
		t.Error("Expected no cause for new error")
	}
}

func TestWrapf(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrapf(ErrArtifactFailed, cause, "failed to store artifact for %s", "payments")

	if err.Message != "failed to store artifact for payments" {
		t.Errorf("Unexpected message: %s", err.Message)
	}
	if !stderrors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
	if err.Error() != "ARTIFACT_FAILED: failed to store artifact for payments (caused by: disk full)" {
		t.Errorf("Unexpected Error(): %s", err.Error())
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrValidationFailed, 400},
		{ErrInvalidDocument, 400},
		{ErrMissingField, 422},
		{ErrInvalidParameter, 422},
		{ErrApplicationNotFound, 404},
		{ErrServiceNotFound, 404},
		{ErrSchemaNotFound, 404},
		{ErrPayloadTooLarge, 413},
		{ErrRateLimitExceeded, 429},
		{ErrVersionConflict, 503},
		{ErrCatalogFailed, 500},
		{ErrArtifactFailed, 500},
		{ErrTimeout, 504},
		{ErrorCode("SOMETHING_ELSE"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x").GetHTTPStatus(); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !New(ErrVersionConflict, "x").IsRetryable() {
		t.Error("Expected version conflict to be retryable")
	}
	if New(ErrInvalidDocument, "x").IsRetryable() {
		t.Error("Expected invalid document not to be retryable")
	}
	if New(ErrCatalogFailed, "x").IsRetryable() {
		t.Error("Expected catalog failure not to be retryable")
	}
}

func TestIsClientError(t *testing.T) {
	if !New(ErrSchemaNotFound, "x").IsClientError() {
		t.Error("Expected not found to be a client error")
	}
	if New(ErrArtifactFailed, "x").IsClientError() {
		t.Error("Expected artifact failure not to be a client error")
	}
}

func TestToErrorResponse(t *testing.T) {
	err := NewMissingFieldError("spec").WithRequestID("req-1")
	resp := err.ToErrorResponse()

	if resp.Detail != "Field required: spec" {
		t.Errorf("Unexpected detail: %s", resp.Detail)
	}
	if resp.Error.Code != "MISSING_FIELD" {
		t.Errorf("Unexpected code: %s", resp.Error.Code)
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("Unexpected request id: %s", resp.Error.RequestID)
	}
	if resp.Error.Details["field"] != "spec" {
		t.Errorf("Unexpected details: %v", resp.Error.Details)
	}
}

func TestAsRegistryError(t *testing.T) {
	base := New(ErrServiceNotFound, "Service not found")
	wrapped := fmt.Errorf("lookup: %w", base)

	got, ok := AsRegistryError(wrapped)
	if !ok || got != base {
		t.Fatalf("Expected to unwrap registry error, got %v %v", got, ok)
	}
	if !HasCode(wrapped, ErrServiceNotFound) {
		t.Error("Expected HasCode to match")
	}
	if _, ok := AsRegistryError(fmt.Errorf("plain")); ok {
		t.Error("Expected plain error not to convert")
	}
}
